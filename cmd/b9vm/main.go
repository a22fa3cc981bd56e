// Command b9vm runs one function of a compiled module:
//
//	b9vm [flags] <module-path> <function-name> [args...]
//
// Exits 0 on success, non-zero on a module load failure or an unhandled
// runtime fault. Flags mirror Config one-to-one, the same plain
// flag-parsing the reference corpus's own cmd/sentra uses rather than a
// third-party CLI framework.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"b9vm/internal/config"
	"b9vm/internal/diagnostics"
	"b9vm/internal/jit"
	"b9vm/internal/module"
	"b9vm/internal/value"
	"b9vm/internal/vm"
)

func main() {
	cfg := config.Default()
	var (
		diagBackend string
		diagDSN     string
	)

	args := os.Args[1:]
	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-jit":
			cfg.JIT = true
		case "-direct-call":
			cfg.DirectCall = true
		case "-pass-param":
			cfg.PassParam = true
		case "-lazy-vm-state":
			cfg.LazyVMState = true
		case "-debug":
			cfg.Debug = true
		case "-verbose":
			cfg.Verbose = true
		case "-max-inline-depth":
			i++
			if i >= len(args) {
				log.Fatal("-max-inline-depth requires a value")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				log.Fatalf("invalid -max-inline-depth %q", args[i])
			}
			cfg.MaxInlineDepth = uint(n)
		case "-diag-backend":
			i++
			if i >= len(args) {
				log.Fatal("-diag-backend requires a value")
			}
			diagBackend = args[i]
		case "-diag-dsn":
			i++
			if i >= len(args) {
				log.Fatal("-diag-dsn requires a value")
			}
			diagDSN = args[i]
		case "-h", "-help", "--help":
			usage()
			return
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) < 2 {
		usage()
		os.Exit(1)
	}
	modulePath, functionName := positional[0], positional[1]
	callArgs, err := parseArgs(positional[2:])
	if err != nil {
		log.Fatalf("b9vm: %v", err)
	}

	f, err := os.Open(modulePath)
	if err != nil {
		log.Fatalf("b9vm: %v", err)
	}
	defer f.Close()

	primitiveTable := vm.DefaultPrimitives()
	m, err := module.Load(f, primitiveTable)
	if err != nil {
		log.Fatalf("b9vm: load %s: %v", modulePath, err)
	}

	vmachine := vm.New(cfg, nil)
	if cfg.JIT {
		vmachine.SetCodeGenerator(jit.New(vmachine, cfg.Verbose))
	}
	if err := vmachine.Initialize(); err != nil {
		log.Fatalf("b9vm: %v", err)
	}
	defer vmachine.Shutdown()

	if diagBackend != "" {
		sink, err := diagnostics.Open(diagBackend, diagDSN)
		if err != nil {
			log.Fatalf("b9vm: diagnostics: %v", err)
		}
		defer sink.Close()
		vmachine.AttachDiagnostics(sink, modulePath+":"+functionName)
	}

	vmachine.Load(m)
	if cfg.JIT {
		if err := vmachine.GenerateAllCode(); err != nil {
			log.Fatalf("b9vm: %v", err)
		}
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "b9vm: running %s from %s\n", functionName, modulePath)
	}

	result, err := vmachine.Run(functionName, callArgs)
	if err != nil {
		log.Fatalf("b9vm: %v", err)
	}

	fmt.Println(result.Int())
}

// parseArgs converts the program's trailing command-line arguments to
// integer-tagged Values; PRIMITIVE_CALL/object arguments have no
// textual form, so every argument passed this way is an integer.
func parseArgs(raw []string) ([]value.Value, error) {
	out := make([]value.Value, len(raw))
	for i, s := range raw {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an integer", s)
		}
		out[i] = value.NewInt(n)
	}
	return out, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: b9vm [flags] <module-path> <function-name> [args...]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "flags:")
	fmt.Fprintln(os.Stderr, "  -jit                  enable the code generator")
	fmt.Fprintln(os.Stderr, "  -direct-call          permit native-to-native direct dispatch")
	fmt.Fprintln(os.Stderr, "  -pass-param           use the register calling convention")
	fmt.Fprintln(os.Stderr, "  -lazy-vm-state        defer materializing VM state in the code generator")
	fmt.Fprintln(os.Stderr, "  -debug                record every instruction executed to the diagnostics sink")
	fmt.Fprintln(os.Stderr, "  -verbose              report run and JIT-tier notices")
	fmt.Fprintln(os.Stderr, "  -max-inline-depth N   bound code generator inlining depth (default 1)")
	fmt.Fprintln(os.Stderr, "  -diag-backend NAME    diagnostics driver (sqlite3, postgres, mysql, sqlserver, sqlite)")
	fmt.Fprintln(os.Stderr, "  -diag-dsn DSN         diagnostics data source name")
}
