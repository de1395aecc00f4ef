package vm

import (
	"encoding/binary"
	"math"
	"testing"

	"lunar/internal/bytecode"
	"lunar/internal/module"
)

// codeBuilder assembles a minimal module blob the same way
// internal/module's loader tests do, so the dispatch loop can be exercised
// end to end without a real compiler.
type codeBuilder struct {
	buf []byte
}

func (b *codeBuilder) u8(v uint8) *codeBuilder {
	b.buf = append(b.buf, v)
	return b
}

func (b *codeBuilder) word(w bytecode.Word) *codeBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(w))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *codeBuilder) varint(v uint32) *codeBuilder {
	for {
		if v < 0x80 {
			b.buf = append(b.buf, byte(v))
			return b
		}
		b.buf = append(b.buf, byte(v&0x7F)|0x80)
		v >>= 7
	}
}

func (b *codeBuilder) f64(v float64) *codeBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *codeBuilder) str(s string) *codeBuilder {
	b.varint(uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *codeBuilder) bytes() []byte { return b.buf }

// moduleHeader writes the common prefix shared by every test module: the
// version byte (3) followed by the string table. Each test writes its own
// prototype count, prototypes and constants after it.
func moduleHeader(b *codeBuilder, strings []string) {
	b.u8(3)
	b.varint(uint32(len(strings)))
	for _, s := range strings {
		b.str(s)
	}
}

func TestArithmeticAddAndReturn(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(1) // one prototype

	b.u8(3) // maxStack
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(4) // sizeCode
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 1))
	b.word(bytecode.EncodeAD(bytecode.LOADN, 1, 2))
	b.word(bytecode.EncodeABC(bytecode.ADD, 2, 0, 1))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 2, 2, 0))

	b.varint(0) // no constants
	b.varint(0) // no nested protos
	b.varint(1) // lineDefined
	b.varint(0) // debugNameIdx
	b.u8(0)     // no line info
	b.u8(0)     // no debug info
	b.varint(0) // main proto

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(3) {
		t.Errorf("entry() = %v, want [3]", results)
	}
}

func TestNumericForLoopCounts(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(1)

	b.u8(4)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(8)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 3)) // limit
	b.word(bytecode.EncodeAD(bytecode.LOADN, 1, 1)) // step
	b.word(bytecode.EncodeAD(bytecode.LOADN, 2, 0)) // index
	b.word(bytecode.EncodeAD(bytecode.LOADN, 3, 0)) // counter
	b.word(bytecode.EncodeAD(bytecode.FORNPREP, 0, 2))
	b.word(bytecode.EncodeABC(bytecode.ADDK, 3, 3, 0))
	b.word(bytecode.EncodeAD(bytecode.FORNLOOP, 0, -2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 3, 2, 0))

	b.varint(1) // one constant
	b.u8(2)     // constNumber
	b.f64(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(4) {
		t.Errorf("entry() = %v, want [4] (index 0..3 inclusive: loop runs 4 times)", results)
	}
}

func TestTableSetThenGet(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, []string{"k"})
	b.varint(1)

	b.u8(3)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(8)
	b.word(bytecode.EncodeABC(bytecode.NEWTABLE, 0, 0, 0))
	b.word(bytecode.Word(0)) // array size hint
	b.word(bytecode.EncodeAD(bytecode.LOADN, 1, 42))
	b.word(bytecode.EncodeABC(bytecode.SETTABLEKS, 1, 0, 0)) // table[K] = r1
	b.word(bytecode.Word(0))                                 // constant index 0 -> "k"
	b.word(bytecode.EncodeABC(bytecode.GETTABLEKS, 2, 0, 0)) // r2 = table[K]
	b.word(bytecode.Word(0))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 2, 2, 0))

	b.varint(1)
	b.u8(3) // constString
	b.varint(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(42) {
		t.Errorf("entry() = %v, want [42]", results)
	}
}

func TestGlobalRoundTrip(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, []string{"counter"})
	b.varint(1)

	b.u8(2)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(6) // LOADN, SETGLOBAL+aux, GETGLOBAL+aux, RETURN
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 7))
	b.word(bytecode.EncodeABC(bytecode.SETGLOBAL, 0, 0, 0))
	b.word(bytecode.Word(0)) // aux: constant index 0 -> "counter"
	b.word(bytecode.EncodeABC(bytecode.GETGLOBAL, 1, 0, 0))
	b.word(bytecode.Word(0))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 1, 2, 0))

	b.varint(1)
	b.u8(3) // constString
	b.varint(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(7) {
		t.Errorf("entry() = %v, want [7]", results)
	}
}

func TestShortCircuitPreservesOperandValue(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, []string{"x"})
	b.varint(1)

	b.u8(4)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(5)
	b.word(bytecode.EncodeABC(bytecode.LOADB, 0, 0, 0)) // r0 = false
	b.word(bytecode.EncodeAD(bytecode.LOADK, 1, 0))     // r1 = "x"
	b.word(bytecode.EncodeABC(bytecode.AND, 2, 0, 1))   // r2 = AND(r0, r1)
	b.word(bytecode.EncodeABC(bytecode.OR, 3, 0, 1))    // r3 = OR(r0, r1)
	b.word(bytecode.EncodeABC(bytecode.RETURN, 2, 3, 0))

	b.varint(1)
	b.u8(3)
	b.varint(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("entry() = %v, want 2 results", results)
	}
	if results[0] != module.False {
		t.Errorf("AND(false, \"x\") = %v, want false", results[0])
	}
	if results[1] != module.String("x") {
		t.Errorf("OR(false, \"x\") = %v, want x", results[1])
	}
}

func TestCallingNonClosureReportsFailure(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(1)

	b.u8(2)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(3)
	b.word(bytecode.EncodeABC(bytecode.LOADNIL, 0, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.CALL, 0, 1, 1))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 1, 0))

	b.varint(0)
	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := entry(); err == nil {
		t.Error("entry() calling a nil value: want error, got nil")
	}
}

// TestNewClosureCapturesAndMutatesUpvalue builds a two-prototype module: the
// main prototype seeds a local, NEWCLOSUREs a nested prototype that captures
// it by reference (CAPTURE mode 1), calls the closure, and returns both the
// local and the call result. The nested prototype mutates the upvalue via
// SETUPVAL, so a correct capture must make both returned values equal.
func TestNewClosureCapturesAndMutatesUpvalue(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(2) // two prototypes

	// proto 0: main
	b.u8(2) // maxStack
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(5)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 10))
	b.word(bytecode.EncodeAD(bytecode.NEWCLOSURE, 1, 0)) // r1 = closure(proto local idx 0)
	b.word(bytecode.EncodeABC(bytecode.CAPTURE, 1, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.CALL, 1, 1, 2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 3, 0)) // return r0, r1

	b.varint(0)
	b.varint(1) // sizeP
	b.varint(1) // local proto 0 -> module proto 1
	b.varint(1) // lineDefined
	b.varint(0) // debugNameIdx
	b.u8(0)
	b.u8(0)

	// proto 1: inner closure, captures one upvalue by reference
	b.u8(2)
	b.u8(0)
	b.u8(1) // numUpvalues
	b.u8(0)

	b.varint(4)
	b.word(bytecode.EncodeABC(bytecode.GETUPVAL, 0, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.ADDK, 1, 0, 0)) // r1 = r0 + 1
	b.word(bytecode.EncodeABC(bytecode.SETUPVAL, 1, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 1, 2, 0))

	b.varint(1)
	b.u8(2) // constNumber
	b.f64(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	b.varint(0) // main proto index

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 2 || results[0] != module.Number(11) || results[1] != module.Number(11) {
		t.Errorf("entry() = %v, want [11, 11]", results)
	}
}

// TestDupClosureConsumesCaptureInstructions checks that the dispatch loop
// advances past exactly as many CAPTURE pseudo-instructions as the target
// prototype has upvalues, landing on the real next instruction rather than
// misinterpreting a CAPTURE word as code.
func TestDupClosureConsumesCaptureInstructions(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(2)

	// proto 0: main
	b.u8(3)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(6)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 5))
	b.word(bytecode.EncodeAD(bytecode.DUPCLOSURE, 1, 0)) // r1 = closure(constant 0)
	b.word(bytecode.EncodeABC(bytecode.CAPTURE, 1, 0, 0))
	b.word(bytecode.EncodeAD(bytecode.LOADN, 2, 123)) // sentinel right after the capture
	b.word(bytecode.EncodeABC(bytecode.CALL, 1, 1, 2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 1, 2, 0))

	b.varint(1)
	b.u8(6) // constClosure
	b.varint(0)

	b.varint(1)
	b.varint(1)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	// proto 1: inner closure, same shape as above but no mutation needed.
	b.u8(2)
	b.u8(0)
	b.u8(1)
	b.u8(0)

	b.varint(3)
	b.word(bytecode.EncodeABC(bytecode.GETUPVAL, 0, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.ADDK, 1, 0, 0))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 1, 2, 0))

	b.varint(1)
	b.u8(2)
	b.f64(1)

	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(6) {
		t.Errorf("entry() = %v, want [6]", results)
	}
}

// TestGetImportResolvesFromEnv exercises GETIMPORT's single-level chain
// against the host environment table, the path taken whenever
// UseImportConstants is off (the default).
func TestGetImportResolvesFromEnv(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, []string{"foo"})
	b.varint(1)

	b.u8(1)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(3)
	b.word(bytecode.EncodeAD(bytecode.GETIMPORT, 0, 0))
	b.word(bytecode.Word(uint32(1)<<30 | uint32(1)<<20)) // count=1, K0=1 ("foo")
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 2, 0))

	b.varint(0)
	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	env := module.NewTable(0)
	env.Set(module.String("foo"), module.Number(42))

	entry, _, err := Load(b.bytes(), env, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(42) {
		t.Errorf("entry() = %v, want [42]", results)
	}
}

// TestNamecallDispatchesTableMethod builds a table with one method (via
// DUPCLOSURE), then calls it through NAMECALL+CALL the way a method-call
// expression compiles: NAMECALL fetches the function and plants the
// receiver as the implicit self argument right after it.
func TestNamecallDispatchesTableMethod(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, []string{"get"})
	b.varint(2)

	// proto 0: main
	b.u8(4)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(9)
	b.word(bytecode.EncodeABC(bytecode.NEWTABLE, 0, 0, 0))
	b.word(bytecode.Word(0))
	b.word(bytecode.EncodeAD(bytecode.DUPCLOSURE, 1, 0))
	b.word(bytecode.EncodeABC(bytecode.SETTABLEKS, 1, 0, 0)) // table["get"] = r1
	b.word(bytecode.Word(1))                                 // constant index 1 -> "get"
	b.word(bytecode.EncodeABC(bytecode.NAMECALL, 2, 0, 0))   // r2 = table.get, r3 = self
	b.word(bytecode.Word(1))
	b.word(bytecode.EncodeABC(bytecode.CALL, 2, 2, 2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 2, 2, 0))

	b.varint(2)
	b.u8(6) // constClosure
	b.varint(0)
	b.u8(3) // constString
	b.varint(1)

	b.varint(1)
	b.varint(1)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	// proto 1: "get" method, ignores self and returns 7
	b.u8(1)
	b.u8(1) // numParams (self)
	b.u8(0)
	b.u8(0)

	b.varint(2)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 7))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 2, 0))

	b.varint(0)
	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(7) {
		t.Errorf("entry() = %v, want [7]", results)
	}
}

// TestForgLoopIteratesTableViaCoroutine drives FORGPREP/FORGLOOP over a
// plain table, the path that installs an iteratorCoroutine keyed by the
// FORGLOOP instruction's own pc and resumes it on every iteration.
func TestForgLoopIteratesTableViaCoroutine(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(1)

	b.u8(9)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(14)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 0))      // r0 = sum = 0
	b.word(bytecode.EncodeABC(bytecode.NEWTABLE, 2, 0, 0)) // r2 = {}
	b.word(bytecode.Word(0))
	b.word(bytecode.EncodeAD(bytecode.LOADN, 8, 5))
	b.word(bytecode.EncodeABC(bytecode.SETTABLEN, 8, 2, 0)) // r2[1] = 5
	b.word(bytecode.EncodeAD(bytecode.LOADN, 8, 7))
	b.word(bytecode.EncodeABC(bytecode.SETTABLEN, 8, 2, 1)) // r2[2] = 7
	b.word(bytecode.EncodeABC(bytecode.LOADNIL, 3, 0, 0))   // state
	b.word(bytecode.EncodeABC(bytecode.LOADNIL, 4, 0, 0))   // control
	b.word(bytecode.EncodeAD(bytecode.FORGPREP, 2, 1))
	b.word(bytecode.EncodeABC(bytecode.ADD, 0, 0, 6)) // body: sum += value
	b.word(bytecode.EncodeAD(bytecode.FORGLOOP, 2, -3))
	b.word(bytecode.Word(2)) // aux: nvars = 2 (key, value)
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 2, 0))

	b.varint(0)
	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)
	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(12) {
		t.Errorf("entry() = %v, want [12] (5 + 7)", results)
	}
}

// TestForgLoopIteratesDirectClosureIterator drives FORGPREP/FORGLOOP with a
// scripted closure as the iterator value, the path forgPrep treats as a
// no-op and forgLoop drives by calling the closure directly each
// iteration with (state, control) until it returns no values.
func TestForgLoopIteratesDirectClosureIterator(t *testing.T) {
	b := &codeBuilder{}
	moduleHeader(b, nil)
	b.varint(2)

	// proto 0: main
	b.u8(6)
	b.u8(0)
	b.u8(0)
	b.u8(0)

	b.varint(9)
	b.word(bytecode.EncodeAD(bytecode.LOADN, 0, 0))       // r0 = sum = 0
	b.word(bytecode.EncodeAD(bytecode.NEWCLOSURE, 2, 0))  // r2 = iterator closure
	b.word(bytecode.EncodeABC(bytecode.LOADNIL, 3, 0, 0)) // state
	b.word(bytecode.EncodeABC(bytecode.LOADNIL, 4, 0, 0)) // control
	b.word(bytecode.EncodeAD(bytecode.FORGPREP, 2, 1))
	b.word(bytecode.EncodeABC(bytecode.ADD, 0, 0, 5)) // body: sum += loop var
	b.word(bytecode.EncodeAD(bytecode.FORGLOOP, 2, -3))
	b.word(bytecode.Word(1)) // aux: nvars = 1
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 2, 0))

	b.varint(0)
	b.varint(1)
	b.varint(1)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	// proto 1: iterator. Returns 1 on the first call (control is nil), 2 on
	// the second (control == 1), and stops on any other control value.
	b.u8(4)
	b.u8(2) // numParams: state, control
	b.u8(0)
	b.u8(0)

	b.varint(9)
	b.word(bytecode.EncodeAD(bytecode.JUMPIFNOT, 1, 4)) // if !control: first branch
	b.word(bytecode.EncodeAD(bytecode.LOADN, 2, 1))
	b.word(bytecode.EncodeAD(bytecode.JUMPIFEQ, 1, 3)) // if control == r2(1): second branch
	b.word(bytecode.Word(2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 0, 1, 0)) // stop: no results
	b.word(bytecode.EncodeAD(bytecode.LOADN, 3, 1))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 3, 2, 0)) // first: return 1
	b.word(bytecode.EncodeAD(bytecode.LOADN, 3, 2))
	b.word(bytecode.EncodeABC(bytecode.RETURN, 3, 2, 0)) // second: return 2

	b.varint(0)
	b.varint(0)
	b.varint(1)
	b.varint(0)
	b.u8(0)
	b.u8(0)

	b.varint(0)

	entry, _, err := Load(b.bytes(), module.NewTable(0), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	results, err := entry()
	if err != nil {
		t.Fatalf("entry() error = %v", err)
	}
	if len(results) != 1 || results[0] != module.Number(3) {
		t.Errorf("entry() = %v, want [3] (1 + 2)", results)
	}
}

func TestCallDepthLimitEnforced(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxCallDepth = 2
	v := &VM{settings: settings, alive: true, env: module.NewTable(0)}
	v.depth = 2

	native := module.NewNativeClosure("f", func(args []module.Value) ([]module.Value, error) {
		return nil, nil
	})
	if _, err := v.call(native, nil); err == nil {
		t.Error("call() at the depth limit: want error, got nil")
	}
}
