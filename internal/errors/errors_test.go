package errors

import (
	stderrors "errors"
	"testing"
)

func TestModuleLoadErrorMessage(t *testing.T) {
	err := NewModuleLoadError("bad magic: got %q", "xxxx")
	if err.Kind != ModuleLoad {
		t.Fatalf("got kind %v", err.Kind)
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestBadFunctionCallCarriesCounts(t *testing.T) {
	err := NewBadFunctionCall("fib", 1, 2)
	if !Is(err, BadFunction) {
		t.Fatal("expected BadFunctionCall kind")
	}
	if err.Function != "fib" {
		t.Fatalf("got function %q", err.Function)
	}
}

func TestRuntimeFaultCarriesOpcodeSite(t *testing.T) {
	err := NewRuntimeFault("main", 12, "stack underflow")
	if err.PC != 12 || err.Function != "main" {
		t.Fatalf("got pc=%d function=%q", err.PC, err.Function)
	}
	if !Is(err, Runtime) {
		t.Fatal("expected RuntimeFault kind")
	}
}

func TestJITInitErrorUnwraps(t *testing.T) {
	cause := stderrors.New("no backend available")
	err := NewJITInitError(cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected JITInitError to unwrap to its cause")
	}
	if !Is(err, JITInit) {
		t.Fatal("expected JITInitError kind")
	}
}

func TestIsReturnsFalseForWrongKind(t *testing.T) {
	err := NewModuleLoadError("truncated")
	if Is(err, Runtime) {
		t.Fatal("expected Is to reject mismatched kind")
	}
}

func TestIsReturnsFalseForNil(t *testing.T) {
	if Is(nil, Runtime) {
		t.Fatal("expected Is(nil, ...) to be false")
	}
}
