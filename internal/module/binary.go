package module

import (
	"bytes"
	"encoding/binary"
	"io"

	"b9vm/internal/bytecode"
	"b9vm/internal/errors"
)

// magic is the 8-byte file signature every module begins with.
var magic = [8]byte{'b', '9', 'm', 'o', 'd', 'u', 'l', 'e'}

const (
	sectionFunctionTable = uint32(1)
	sectionStringPool    = uint32(2)
	sectionPrimitives    = uint32(3)
)

// Load parses the binary module format from r. primitives is the
// host-supplied table of native routines that PRIMITIVE_CALL bindings
// are resolved against by name; a name declared in the module with no
// matching entry is a ModuleLoadError.
func Load(r io.Reader, primitives map[string]Primitive) (*Module, error) {
	br := &byteReader{r: r}

	var gotMagic [8]byte
	if err := br.read(gotMagic[:]); err != nil {
		return nil, errors.NewModuleLoadError("truncated module: %v", err)
	}
	if gotMagic != magic {
		return nil, errors.NewModuleLoadError("bad magic: got %q", gotMagic[:])
	}

	var functions []FunctionSpec
	var strings []string
	var primNames []string
	var primFuncs []Primitive
	seenFunctions, seenStrings, seenPrimitives := false, false, false

	for {
		code, err := br.readU32()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated module: %v", err)
		}
		switch code {
		case sectionFunctionTable:
			if seenFunctions {
				return nil, errors.NewModuleLoadError("duplicate function table section")
			}
			seenFunctions = true
			functions, err = readFunctionTable(br)
		case sectionStringPool:
			if seenStrings {
				return nil, errors.NewModuleLoadError("duplicate string pool section")
			}
			seenStrings = true
			strings, err = readStringPool(br)
		case sectionPrimitives:
			if seenPrimitives {
				return nil, errors.NewModuleLoadError("duplicate primitive table section")
			}
			seenPrimitives = true
			primNames, err = readStringPool(br)
		default:
			return nil, errors.NewModuleLoadError("unknown section code %d", code)
		}
		if err != nil {
			return nil, err
		}
	}
	if !seenFunctions && !seenStrings && !seenPrimitives {
		return nil, errors.NewModuleLoadError("truncated module: no sections after magic")
	}

	for _, name := range primNames {
		fn, ok := primitives[name]
		if !ok {
			return nil, errors.NewModuleLoadError("no primitive bound to name %q", name)
		}
		primFuncs = append(primFuncs, fn)
	}

	m := New(functions, strings, primNames, primFuncs)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func readFunctionTable(br *byteReader) ([]FunctionSpec, error) {
	count, err := br.readU32()
	if err != nil {
		return nil, errors.NewModuleLoadError("truncated function table: %v", err)
	}
	specs := make([]FunctionSpec, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := br.readString()
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated function record %d: %v", i, err)
		}
		index, err := br.readU32()
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated function record %d: %v", i, err)
		}
		nargs, err := br.readU32()
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated function record %d: %v", i, err)
		}
		nregs, err := br.readU32()
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated function record %d: %v", i, err)
		}
		code, err := readCode(br)
		if err != nil {
			return nil, errors.NewModuleLoadError("function %q: %v", name, err)
		}
		specs = append(specs, FunctionSpec{Name: name, Index: index, NArgs: nargs, NRegs: nregs, Code: code})
	}
	return specs, nil
}

// readCode reads 32-bit instructions until it reads one equal to
// bytecode.End, which it includes as the final element.
func readCode(br *byteReader) ([]bytecode.Instruction, error) {
	var code []bytecode.Instruction
	for {
		raw, err := br.readU32()
		if err != nil {
			return nil, err
		}
		instr := bytecode.Instruction(raw)
		code = append(code, instr)
		if instr == bytecode.End {
			return code, nil
		}
	}
}

func readStringPool(br *byteReader) ([]string, error) {
	count, err := br.readU32()
	if err != nil {
		return nil, errors.NewModuleLoadError("truncated string pool: %v", err)
	}
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := br.readString()
		if err != nil {
			return nil, errors.NewModuleLoadError("truncated string record %d: %v", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Write serializes m in the binary module format. Combined with Load,
// serialize(deserialize(bytes)) reproduces the original bytes exactly
// because section order, record order, and
// END_SECTION placement are all deterministic from m's fields.
func Write(w io.Writer, m *Module) error {
	bw := &byteWriter{w: w}
	if err := bw.write(magic[:]); err != nil {
		return err
	}

	bw.writeU32(sectionFunctionTable)
	bw.writeU32(uint32(len(m.Functions)))
	for _, f := range m.Functions {
		bw.writeString(f.Name)
		bw.writeU32(f.Index)
		bw.writeU32(f.NArgs)
		bw.writeU32(f.NRegs)
		for _, instr := range f.Code {
			bw.writeU32(uint32(instr))
		}
	}

	bw.writeU32(sectionStringPool)
	bw.writeU32(uint32(len(m.Strings)))
	for _, s := range m.Strings {
		bw.writeString(s)
	}

	if len(m.PrimitiveNames) > 0 {
		bw.writeU32(sectionPrimitives)
		bw.writeU32(uint32(len(m.PrimitiveNames)))
		for _, s := range m.PrimitiveNames {
			bw.writeString(s)
		}
	}

	return bw.err
}

// Bytes serializes m and returns the resulting byte slice, a
// convenience for round-trip tests and in-memory producers.
func Bytes(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type byteReader struct {
	r io.Reader
}

func (br *byteReader) read(p []byte) error {
	_, err := io.ReadFull(br.r, p)
	return err
}

func (br *byteReader) readU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (br *byteReader) readString() (string, error) {
	n, err := br.readU32()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := br.read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

type byteWriter struct {
	w   io.Writer
	err error
}

func (bw *byteWriter) write(p []byte) error {
	if bw.err != nil {
		return bw.err
	}
	_, bw.err = bw.w.Write(p)
	return bw.err
}

func (bw *byteWriter) writeU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	bw.write(buf[:])
}

func (bw *byteWriter) writeString(s string) {
	bw.writeU32(uint32(len(s)))
	bw.write([]byte(s))
}
