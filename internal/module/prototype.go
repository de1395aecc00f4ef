package module

import "lunar/internal/bytecode"

// Instruction is a fully decoded code-stream entry: the raw operand fields
// plus whatever K/K0-K2/KC/KN the loader's constant-binding pass resolved
// for it. has_aux-bearing instructions occupy two code slots on the wire;
// Aux is only meaningful when HasAux is true.
type Instruction struct {
	Op bytecode.OpCode
	A  uint8
	B  uint8
	C  uint8
	D  int16
	E  int32

	HasAux bool
	Aux    uint32

	K Value // resolved constant operand (LOADK, GETGLOBAL, arithmetic-K, ...)

	// Import chain (GETIMPORT, K-mode 4).
	ImportCount int
	K0, K1, K2  uint32

	// Negation/sign bit used by JUMPXEQK*. For K-mode 8 (FORGLOOP) it is
	// true when the generic-for variable count, which is carried in Aux,
	// is non-zero.
	KN bool
}

// Prototype is a compiled function body plus metadata. Immutable once the
// loader returns it.
type Prototype struct {
	MaxStackSize int
	NumParams    int
	NumUpvalues  int
	IsVararg     bool

	Code      []Instruction
	Constants []Value
	Protos    []int // indices into Module.Protos

	// tableConstants and closureConstants hold the Table/Closure-kind
	// constant-pool metadata the loader can't materialize eagerly: a
	// Table constant needs a fresh *Table per DUPTABLE execution, and a
	// Closure constant needs the closure factory's upvalue-capture pass.
	// Indexed the same as Constants; nil entries are non-Table/Closure
	// constants.
	tableConstants   []tableConstant
	closureConstants []closureConstant

	LineDefined int
	DebugName   string

	LineInfoEnabled bool
	InstructionLine []int32 // pc -> source line, materialized at load time

	BytecodeID int // stable index within Module.Protos
}

// TableConstantKeys returns the string-key indices (wire string-table
// indices, 1-based) a Table-kind constant at constIndex was declared with,
// for DUPTABLE to materialize a fresh table against. Returns nil if
// constIndex is out of range or wasn't a Table constant.
func (p *Prototype) TableConstantKeys(constIndex int) []uint32 {
	if constIndex < 0 || constIndex >= len(p.tableConstants) {
		return nil
	}
	return p.tableConstants[constIndex].keys
}

// ClosureConstantProto returns the target prototype index a Closure-kind
// constant at constIndex refers to, for DUPCLOSURE to hand to the closure
// factory.
func (p *Prototype) ClosureConstantProto(constIndex int) (int, bool) {
	if constIndex < 0 || constIndex >= len(p.closureConstants) {
		return 0, false
	}
	return p.closureConstants[constIndex].protoIndex, true
}

// Line returns the source line recorded for pc, or 0 if line info was not
// present in the module.
func (p *Prototype) Line(pc int) int {
	if !p.LineInfoEnabled || pc < 0 || pc >= len(p.InstructionLine) {
		return 0
	}
	return int(p.InstructionLine[pc])
}

// Module is the fully linked result of loading a compiled blob: an
// interned string table, every prototype in the compilation unit, and the
// index of the prototype to execute first.
type Module struct {
	Strings     []string // Strings[0] is unused; wire indices are 1-based
	Protos      []*Prototype
	MainProto   int
	TypesVer    uint8
	BytecodeVer uint8

	// ID is a per-load identifier for host-side log correlation; it has no
	// bearing on interpreter semantics. See DESIGN.md (google/uuid).
	ID string
}

// Main returns the prototype execution begins at.
func (m *Module) Main() *Prototype { return m.Protos[m.MainProto] }

// String resolves a 1-based wire string index; index 0 means "no string"
// and resolves to "".
func (m *Module) String(idx uint32) string {
	if idx == 0 || int(idx) >= len(m.Strings) {
		return ""
	}
	return m.Strings[idx]
}
