// Package module implements the bytecode loader (C3) and the value model
// (C4) it produces values for: the Module/Prototype/Instruction graph, and
// the tagged Value that flows through every register, constant slot, and
// table entry in the interpreter.
//
// Value and Prototype live in the same package deliberately: a closure
// Value holds a *Prototype, and a Prototype's constant pool holds Values —
// the two types are co-recursive by nature, the same way a register VM's
// function objects and value representation usually are.
package module

import (
	"fmt"
	"math"
)

// Kind tags the variant a Value currently holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindVector
	KindClosure
)

// Value is a tagged union over nil, boolean, 64-bit float, string, table,
// vector, and closure. It is deliberately a plain comparable struct rather
// than a NaN-boxed 64-bit word: the latter is how a from-scratch register
// VM typically squeezes allocations out of primitive values, but hand
// verifying the bit-packing without running the toolchain is not a trade
// worth making here (see DESIGN.md). Keeping Value comparable lets Table
// use it directly as a map key.
type Value struct {
	kind Kind
	num  float64
	str  string
	obj  interface{} // *Table, *Vector, *Closure
}

// Nil is the canonical nil value.
var Nil = Value{kind: KindNil}

// True and False are the canonical boolean values.
var (
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool, num: 0}
)

// Bool boxes a Go bool.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Number boxes a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String boxes a Go string. Equality between two String values is by
// content, which subsumes the "interned handle" equality the spec
// describes as an implementation detail: two constant-pool slots with
// identical bytes observe as equal either way.
func String(s string) Value { return Value{kind: KindString, str: s} }

// FromTable boxes a *Table.
func FromTable(t *Table) Value { return Value{kind: KindTable, obj: t} }

// FromVector boxes a *Vector.
func FromVector(v *Vector) Value { return Value{kind: KindVector, obj: v} }

// FromClosure boxes a *Closure.
func FromClosure(c *Closure) Value { return Value{kind: KindClosure, obj: c} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool     { return v.kind == KindNil }
func (v Value) IsBool() bool    { return v.kind == KindBool }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsTable() bool   { return v.kind == KindTable }
func (v Value) IsVector() bool  { return v.kind == KindVector }
func (v Value) IsClosure() bool { return v.kind == KindClosure }

// Truthy implements the source language's truthiness rule: everything is
// truthy except nil and false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.num != 0
	default:
		return true
	}
}

// AsBool returns the boolean payload; callers must check IsBool first.
func (v Value) AsBool() bool { return v.num != 0 }

// AsNumber returns the float64 payload; callers must check IsNumber first.
func (v Value) AsNumber() float64 { return v.num }

// AsString returns the string payload; callers must check IsString first.
func (v Value) AsString() string { return v.str }

// AsTable returns the *Table payload; callers must check IsTable first.
func (v Value) AsTable() *Table { return v.obj.(*Table) }

// AsVector returns the *Vector payload; callers must check IsVector first.
func (v Value) AsVector() *Vector { return v.obj.(*Vector) }

// AsClosure returns the *Closure payload; callers must check IsClosure first.
func (v Value) AsClosure() *Closure { return v.obj.(*Closure) }

// ToNumber attempts the numeric coercion FORNPREP needs: numbers pass
// through; numeric strings parse. Anything else fails.
func (v Value) ToNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		var f float64
		if _, err := fmt.Sscanf(v.str, "%g", &f); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// TypeName returns the diagnostic type name used in error messages.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindVector:
		return "vector"
	case KindClosure:
		return "function"
	default:
		return "unknown"
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		if v.num == math.Trunc(v.num) && !math.IsInf(v.num, 0) {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case KindString:
		return v.str
	case KindTable:
		return fmt.Sprintf("table: %p", v.obj)
	case KindVector:
		return v.AsVector().String()
	case KindClosure:
		return fmt.Sprintf("function: %p", v.obj)
	default:
		return "<invalid>"
	}
}

// Vector is a 3- or 4-component float tuple. Size is fixed by the host's
// vector_size setting at load time.
type Vector struct {
	X, Y, Z, W float64
	Size       int
}

func (vec *Vector) String() string {
	if vec.Size == 3 {
		return fmt.Sprintf("vector(%g, %g, %g)", vec.X, vec.Y, vec.Z)
	}
	return fmt.Sprintf("vector(%g, %g, %g, %g)", vec.X, vec.Y, vec.Z, vec.W)
}
