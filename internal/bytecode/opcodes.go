// Package bytecode describes the on-wire instruction format shared by the
// loader and the interpreter: opcode identities, their operand layout, how
// a K operand is bound to the constant pool, and raw 32-bit word decoding.
//
// Nothing in this package touches runtime values — it is pure metadata plus
// bit twiddling, mirrored after the static tables a register VM keeps next
// to its dispatch loop.
package bytecode

// OpCode identifies one of the instructions in the dispatch loop.
type OpCode uint8

// OperandMode describes how a raw instruction word's operand fields are
// populated. The names follow the layouts used on the wire:
//
//	None — opcode only, no operands
//	A    — opcode + A
//	AB   — opcode + A + B
//	ABC  — opcode + A + B + C
//	AD   — opcode + A + signed 16-bit D
//	AE   — opcode + signed 24-bit E (no separate A)
type OperandMode uint8

const (
	ModeNone OperandMode = iota
	ModeA
	ModeAB
	ModeABC
	ModeAD
	ModeAE
)

// KMode selects how an instruction's K (constant-pool reference) field is
// resolved during the loader's constant-binding pass. See module.bindConstants.
type KMode uint8

const (
	KNone      KMode = iota // instruction has no constant operand
	KAux                    // K = constants[aux+1]              (mode 1)
	KC                      // K = constants[C+1]                (mode 2)
	KD                      // K = constants[D+1]                (mode 3)
	KImport                 // aux packs an import id chain       (mode 4)
	KAuxBool                // K = aux&1, KN = aux>>31            (mode 5)
	KAuxNumber              // K = constants[(aux&0xFFFFFF)+1]    (mode 6)
	KB                      // K = constants[B+1]                 (mode 7)
	KAuxCount               // Aux = aux & 0xF, K left unset        (mode 8)
)

// Opcode identities. The order matches the grouping used throughout the
// spec and the dispatch loop's case statements; the numeric values are
// otherwise arbitrary (this is a from-scratch encoding, not a wire format
// shared with any external compiler).
const (
	NOP OpCode = iota
	BREAK

	LOADNIL
	LOADB
	LOADN
	LOADK
	LOADKX
	MOVE

	GETGLOBAL
	SETGLOBAL
	GETUPVAL
	SETUPVAL
	CLOSEUPVALS

	GETIMPORT

	GETTABLE
	SETTABLE
	GETTABLEKS
	SETTABLEKS
	GETTABLEN
	SETTABLEN

	NEWCLOSURE
	DUPCLOSURE
	CAPTURE // pseudo-instruction, never dispatched directly

	NAMECALL
	CALL
	RETURN

	JUMP
	JUMPBACK
	JUMPX
	JUMPIF
	JUMPIFNOT
	JUMPIFEQ
	JUMPIFLE
	JUMPIFLT
	JUMPIFNOTEQ
	JUMPIFNOTLE
	JUMPIFNOTLT

	ADD
	SUB
	MUL
	DIV
	MOD
	POW
	IDIV

	ADDK
	SUBK
	MULK
	DIVK
	MODK
	POWK
	IDIVK
	SUBRK
	DIVRK

	AND
	OR
	ANDK
	ORK
	NOT
	MINUS
	LENGTH
	CONCAT

	NEWTABLE
	DUPTABLE
	SETLIST

	FORNPREP
	FORNLOOP

	FORGPREP
	FORGLOOP
	FORGPREP_INEXT
	FORGPREP_NEXT

	GETVARARGS

	JUMPXEQKNIL
	JUMPXEQKB
	JUMPXEQKN
	JUMPXEQKS

	COVERAGE

	FASTCALL
	FASTCALL1
	FASTCALL2
	FASTCALL2K
	FASTCALL3

	PREPVARARGS

	// AUXSLOT is not a real instruction. It occupies the code slot right
	// after any has_aux instruction so that pc arithmetic lines up with
	// the word-for-word layout of the binary; the dispatch loop never
	// executes it directly, only skips over it.
	AUXSLOT

	opcodeCount
)

// TableSize is the number of entries in the static opcode table (including
// reserved/unused slots); the spec fixes this at 83.
const TableSize = 83

// Info is the static metadata the loader and dispatch loop consult for a
// given opcode.
type Info struct {
	Name   string
	Mode   OperandMode
	KMode  KMode
	HasAux bool
}

var table [TableSize]Info

func def(op OpCode, name string, mode OperandMode, kmode KMode, hasAux bool) {
	table[op] = Info{Name: name, Mode: mode, KMode: kmode, HasAux: hasAux}
}

func init() {
	def(NOP, "NOP", ModeNone, KNone, false)
	def(BREAK, "BREAK", ModeNone, KNone, false)

	def(LOADNIL, "LOADNIL", ModeA, KNone, false)
	def(LOADB, "LOADB", ModeABC, KNone, false)
	def(LOADN, "LOADN", ModeAD, KNone, false)
	def(LOADK, "LOADK", ModeAD, KD, false)
	def(LOADKX, "LOADKX", ModeA, KAux, true)
	def(MOVE, "MOVE", ModeAB, KNone, false)

	def(GETGLOBAL, "GETGLOBAL", ModeA, KAux, true)
	def(SETGLOBAL, "SETGLOBAL", ModeA, KAux, true)
	def(GETUPVAL, "GETUPVAL", ModeAB, KNone, false)
	def(SETUPVAL, "SETUPVAL", ModeAB, KNone, false)
	def(CLOSEUPVALS, "CLOSEUPVALS", ModeA, KNone, false)

	def(GETIMPORT, "GETIMPORT", ModeAD, KImport, true)

	def(GETTABLE, "GETTABLE", ModeABC, KNone, false)
	def(SETTABLE, "SETTABLE", ModeABC, KNone, false)
	def(GETTABLEKS, "GETTABLEKS", ModeABC, KAux, true)
	def(SETTABLEKS, "SETTABLEKS", ModeABC, KAux, true)
	def(GETTABLEN, "GETTABLEN", ModeABC, KNone, false)
	def(SETTABLEN, "SETTABLEN", ModeABC, KNone, false)

	def(NEWCLOSURE, "NEWCLOSURE", ModeAD, KNone, false)
	def(DUPCLOSURE, "DUPCLOSURE", ModeAD, KD, false)
	def(CAPTURE, "CAPTURE", ModeABC, KNone, false)

	def(NAMECALL, "NAMECALL", ModeABC, KAux, true)
	def(CALL, "CALL", ModeABC, KNone, false)
	def(RETURN, "RETURN", ModeAB, KNone, false)

	def(JUMP, "JUMP", ModeAD, KNone, false)
	def(JUMPBACK, "JUMPBACK", ModeAD, KNone, false)
	def(JUMPX, "JUMPX", ModeAE, KNone, false)
	def(JUMPIF, "JUMPIF", ModeAD, KNone, false)
	def(JUMPIFNOT, "JUMPIFNOT", ModeAD, KNone, false)
	def(JUMPIFEQ, "JUMPIFEQ", ModeAD, KNone, true)
	def(JUMPIFLE, "JUMPIFLE", ModeAD, KNone, true)
	def(JUMPIFLT, "JUMPIFLT", ModeAD, KNone, true)
	def(JUMPIFNOTEQ, "JUMPIFNOTEQ", ModeAD, KNone, true)
	def(JUMPIFNOTLE, "JUMPIFNOTLE", ModeAD, KNone, true)
	def(JUMPIFNOTLT, "JUMPIFNOTLT", ModeAD, KNone, true)

	def(ADD, "ADD", ModeABC, KNone, false)
	def(SUB, "SUB", ModeABC, KNone, false)
	def(MUL, "MUL", ModeABC, KNone, false)
	def(DIV, "DIV", ModeABC, KNone, false)
	def(MOD, "MOD", ModeABC, KNone, false)
	def(POW, "POW", ModeABC, KNone, false)
	def(IDIV, "IDIV", ModeABC, KNone, false)

	def(ADDK, "ADDK", ModeABC, KC, false)
	def(SUBK, "SUBK", ModeABC, KC, false)
	def(MULK, "MULK", ModeABC, KC, false)
	def(DIVK, "DIVK", ModeABC, KC, false)
	def(MODK, "MODK", ModeABC, KC, false)
	def(POWK, "POWK", ModeABC, KC, false)
	def(IDIVK, "IDIVK", ModeABC, KC, false)
	def(SUBRK, "SUBRK", ModeABC, KC, false)
	def(DIVRK, "DIVRK", ModeABC, KC, false)

	def(AND, "AND", ModeABC, KNone, false)
	def(OR, "OR", ModeABC, KNone, false)
	def(ANDK, "ANDK", ModeABC, KC, false)
	def(ORK, "ORK", ModeABC, KC, false)
	def(NOT, "NOT", ModeAB, KNone, false)
	def(MINUS, "MINUS", ModeAB, KNone, false)
	def(LENGTH, "LENGTH", ModeAB, KNone, false)
	def(CONCAT, "CONCAT", ModeABC, KNone, false)

	def(NEWTABLE, "NEWTABLE", ModeA, KNone, true)
	def(DUPTABLE, "DUPTABLE", ModeAD, KD, false)
	def(SETLIST, "SETLIST", ModeABC, KNone, true)

	def(FORNPREP, "FORNPREP", ModeAD, KNone, false)
	def(FORNLOOP, "FORNLOOP", ModeAD, KNone, false)

	def(FORGPREP, "FORGPREP", ModeAD, KNone, false)
	def(FORGLOOP, "FORGLOOP", ModeAD, KAuxCount, true)
	def(FORGPREP_INEXT, "FORGPREP_INEXT", ModeAD, KNone, false)
	def(FORGPREP_NEXT, "FORGPREP_NEXT", ModeAD, KNone, false)

	def(GETVARARGS, "GETVARARGS", ModeAB, KNone, false)

	def(JUMPXEQKNIL, "JUMPXEQKNIL", ModeAD, KAuxBool, true)
	def(JUMPXEQKB, "JUMPXEQKB", ModeAD, KAuxBool, true)
	def(JUMPXEQKN, "JUMPXEQKN", ModeAD, KAuxNumber, true)
	def(JUMPXEQKS, "JUMPXEQKS", ModeAD, KAuxNumber, true)

	def(COVERAGE, "COVERAGE", ModeAE, KNone, false)

	def(FASTCALL, "FASTCALL", ModeABC, KNone, false)
	def(FASTCALL1, "FASTCALL1", ModeABC, KNone, false)
	def(FASTCALL2, "FASTCALL2", ModeABC, KNone, true)
	def(FASTCALL2K, "FASTCALL2K", ModeABC, KNone, true)
	def(FASTCALL3, "FASTCALL3", ModeABC, KNone, true)

	def(PREPVARARGS, "PREPVARARGS", ModeA, KNone, false)

	def(AUXSLOT, "AUXSLOT", ModeNone, KNone, false)

	for i := int(opcodeCount); i < TableSize; i++ {
		table[i] = Info{Name: "RESERVED", Mode: ModeNone, KMode: KNone, HasAux: false}
	}
}

// Lookup returns the static metadata for op, and whether op is a recognized
// opcode (false for bytes beyond the defined range, or an unassigned slot —
// the loader treats those as Unsupported per §9).
func Lookup(op OpCode) (Info, bool) {
	if int(op) >= TableSize {
		return Info{}, false
	}
	info := table[op]
	if info.Name == "" || info.Name == "RESERVED" {
		return Info{}, false
	}
	return info, true
}

func (op OpCode) String() string {
	if int(op) < TableSize && table[op].Name != "" {
		return table[op].Name
	}
	return "UNKNOWN"
}
