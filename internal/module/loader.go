package module

import (
	"github.com/google/uuid"

	"lunar/internal/bytecode"
	lunarerrors "lunar/internal/errors"
)

// VectorCtor builds a vector value from exactly VectorSize components,
// ordered x, y, z[, w]. The loader calls it once per Vector-kind constant.
type VectorCtor func(components []float64) *Vector

func defaultVectorCtor(size int) VectorCtor {
	return func(c []float64) *Vector {
		v := &Vector{Size: size}
		if len(c) > 0 {
			v.X = c[0]
		}
		if len(c) > 1 {
			v.Y = c[1]
		}
		if len(c) > 2 {
			v.Z = c[2]
		}
		if len(c) > 3 {
			v.W = c[3]
		}
		return v
	}
}

// LoadOptions configures the parts of loading that are host-policy rather
// than wire-format mechanics: vector construction arity, and whether
// GETIMPORT chains are eagerly pre-resolved against a static environment.
type LoadOptions struct {
	VectorCtor         VectorCtor
	VectorSize         int // 3 or 4; defaults to 3
	UseImportConstants bool
	StaticEnvironment  *Table
}

func (o *LoadOptions) normalized() LoadOptions {
	out := LoadOptions{}
	if o != nil {
		out = *o
	}
	if out.VectorSize != 3 && out.VectorSize != 4 {
		out.VectorSize = 3
	}
	if out.VectorCtor == nil {
		out.VectorCtor = defaultVectorCtor(out.VectorSize)
	}
	return out
}

// constKind mirrors the u8 tag preceding each constant-pool entry.
type constKind uint8

const (
	constNil constKind = iota
	constBool
	constNumber
	constString
	constImport
	constTable
	constClosure
	constVector
)

// tableConstant records a Table-kind constant's declared keys (string
// indices into the module string table); DUPTABLE materializes a table
// with these keys present and Nil values, to be filled by SETTABLEKS.
type tableConstant struct {
	keys []uint32
}

// closureConstant records a Closure-kind constant: just the target
// prototype index. DUPCLOSURE resolves this at runtime via the closure
// factory — the constant pool never holds an actual *Closure.
type closureConstant struct {
	protoIndex int
}

// Load decodes a compiled module blob into a fully linked Module graph.
// See spec §4.3 / §6 for the wire format this implements.
func Load(data []byte, opts *LoadOptions) (*Module, error) {
	o := opts.normalized()
	r := bytecode.NewReader(data)

	version, err := r.U8()
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, lunarerrors.NewLoadError("module is a compiler syntax-error marker, not bytecode")
	}
	if version < 3 || version > 6 {
		return nil, lunarerrors.NewLoadError("unsupported bytecode version %d", version)
	}

	var typesVersion uint8
	if version >= 4 {
		typesVersion, err = r.U8()
		if err != nil {
			return nil, err
		}
	}

	nStrings, err := r.Varint()
	if err != nil {
		return nil, err
	}
	strings := make([]string, nStrings+1) // index 0 reserved, unused
	for i := uint32(1); i <= nStrings; i++ {
		s, err := r.LengthPrefixedString()
		if err != nil {
			return nil, err
		}
		strings[i] = s
	}

	if typesVersion == 3 {
		if err := skipUserdataRemap(r); err != nil {
			return nil, err
		}
	}

	nProtos, err := r.Varint()
	if err != nil {
		return nil, err
	}
	protos := make([]*Prototype, nProtos)
	for i := uint32(0); i < nProtos; i++ {
		p, err := loadPrototype(r, version, strings, o)
		if err != nil {
			return nil, err
		}
		p.BytecodeID = int(i)
		protos[i] = p
	}

	mainProto, err := r.Varint()
	if err != nil {
		return nil, err
	}
	if int(mainProto) >= len(protos) {
		return nil, lunarerrors.NewLoadError("main prototype index %d out of range (%d protos)", mainProto, len(protos))
	}

	return &Module{
		Strings:     strings,
		Protos:      protos,
		MainProto:   int(mainProto),
		TypesVer:    typesVersion,
		BytecodeVer: version,
		ID:          uuid.NewString(),
	}, nil
}

// skipUserdataRemap consumes the (index byte, name string) pairs of a
// types-version-3 userdata remap table, terminated by an index of 0. The
// core has no userdata kind of its own, so the table is read only to keep
// the cursor aligned for what follows.
func skipUserdataRemap(r *bytecode.Reader) error {
	for {
		index, err := r.U8()
		if err != nil {
			return err
		}
		if index == 0 {
			return nil
		}
		if _, err := r.LengthPrefixedString(); err != nil {
			return err
		}
	}
}

func loadPrototype(r *bytecode.Reader, version uint8, strings []string, o LoadOptions) (*Prototype, error) {
	maxStack, err := r.U8()
	if err != nil {
		return nil, err
	}
	numParams, err := r.U8()
	if err != nil {
		return nil, err
	}
	numUpvalues, err := r.U8()
	if err != nil {
		return nil, err
	}
	isVarargByte, err := r.U8()
	if err != nil {
		return nil, err
	}

	if version >= 4 {
		if _, err := r.U8(); err != nil { // flags byte, unused by the core
			return nil, err
		}
		typeLen, err := r.Varint()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(int(typeLen)); err != nil {
			return nil, err
		}
	}

	p := &Prototype{
		MaxStackSize: int(maxStack),
		NumParams:    int(numParams),
		NumUpvalues:  int(numUpvalues),
		IsVararg:     isVarargByte != 0,
	}

	rawWords, err := decodeCodePass1(r)
	if err != nil {
		return nil, err
	}

	var tableConsts []tableConstant
	var closureConsts []closureConstant
	constants, err := loadConstants(r, strings, o, &tableConsts, &closureConsts)
	if err != nil {
		return nil, err
	}
	p.Constants = constants

	if err := bindConstants(rawWords, p, strings, tableConsts, closureConsts, o); err != nil {
		return nil, err
	}
	p.Code = rawWords.instructions

	sizeP, err := r.Varint()
	if err != nil {
		return nil, err
	}
	p.Protos = make([]int, sizeP)
	for i := uint32(0); i < sizeP; i++ {
		idx, err := r.Varint()
		if err != nil {
			return nil, err
		}
		p.Protos[i] = int(idx)
	}

	lineDefined, err := r.Varint()
	if err != nil {
		return nil, err
	}
	p.LineDefined = int(lineDefined)

	debugNameIdx, err := r.Varint()
	if err != nil {
		return nil, err
	}
	if debugNameIdx == 0 {
		p.DebugName = "(??)"
	} else if int(debugNameIdx) < len(strings) {
		p.DebugName = strings[debugNameIdx]
	}

	lineInfoEnabled, err := r.U8()
	if err != nil {
		return nil, err
	}
	if lineInfoEnabled != 0 {
		if err := loadLineInfo(r, p); err != nil {
			return nil, err
		}
	}

	debugInfoPresent, err := r.U8()
	if err != nil {
		return nil, err
	}
	if debugInfoPresent != 0 {
		if err := skipDebugInfo(r); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// rawCode holds pass-1 decode output before constant binding: the decoded
// Instruction slice (with AUX placeholder slots already inserted so its
// length equals size_code) plus the parallel aux words, kept around so
// bindConstants can resolve K without re-reading the stream.
type rawCode struct {
	instructions []Instruction
	auxWords     []uint32 // auxWords[pc] valid only where instructions[pc].HasAux
}

func decodeCodePass1(r *bytecode.Reader) (*rawCode, error) {
	sizeCode, err := r.Varint()
	if err != nil {
		return nil, err
	}

	rc := &rawCode{
		instructions: make([]Instruction, 0, sizeCode),
		auxWords:     make([]uint32, 0, sizeCode),
	}

	for uint32(len(rc.instructions)) < sizeCode {
		word, err := r.Word()
		if err != nil {
			return nil, err
		}
		op := word.Opcode()
		info, known := bytecode.Lookup(op)
		inst := Instruction{Op: op}
		if known {
			switch info.Mode {
			case bytecode.ModeABC:
				inst.A, inst.B, inst.C = word.A(), word.B(), word.C()
			case bytecode.ModeAB:
				inst.A, inst.B = word.A(), word.B()
			case bytecode.ModeA:
				inst.A = word.A()
			case bytecode.ModeAD:
				inst.A, inst.D = word.A(), word.D()
			case bytecode.ModeAE:
				inst.E = word.E()
			}
			inst.HasAux = info.HasAux
		}
		// Unsupported opcode byte: warned-and-skipped per the dispatch
		// loop's unknown-opcode policy. An unknown opcode carries no
		// metadata, so we conservatively assume it has no AUX word.

		rc.instructions = append(rc.instructions, inst)
		rc.auxWords = append(rc.auxWords, 0)

		if inst.HasAux {
			auxWord, err := r.Word()
			if err != nil {
				return nil, err
			}
			rc.auxWords[len(rc.auxWords)-1] = uint32(auxWord)
			rc.instructions = append(rc.instructions, Instruction{Op: bytecode.AUXSLOT})
			rc.auxWords = append(rc.auxWords, 0)
		}
	}

	return rc, nil
}

// bindConstants runs the loader's constant-binding pass: for every
// recognized instruction, records its aux word (if any) and resolves K (and
// the import chain, and the JUMPXEQK sign bit) per its KMode, per §4.3/§6.
func bindConstants(rc *rawCode, p *Prototype, strings []string, tableConsts []tableConstant, closureConsts []closureConstant, o LoadOptions) error {
	for pc := range rc.instructions {
		inst := &rc.instructions[pc]
		if inst.Op == bytecode.AUXSLOT {
			continue
		}
		info, known := bytecode.Lookup(inst.Op)
		if !known {
			continue
		}
		var aux uint32
		if inst.HasAux {
			aux = rc.auxWords[pc]
			inst.Aux = aux
		}

		switch info.KMode {
		case bytecode.KNone:
			// No constant operand: SETLIST/NEWTABLE/FASTCALL*'s aux is a
			// count/target and JUMPIF*'s aux is a register, not a K
			// reference.
		case bytecode.KAux:
			inst.K = resolveK(p.Constants, aux)
		case bytecode.KC:
			inst.K = resolveK(p.Constants, uint32(inst.C))
		case bytecode.KD:
			inst.K = resolveK(p.Constants, uint32(inst.D))
		case bytecode.KB:
			inst.K = resolveK(p.Constants, uint32(inst.B))
		case bytecode.KImport:
			count := aux >> 30
			inst.ImportCount = int(count)
			inst.K0 = (aux >> 20) & 0x3FF
			inst.K1 = (aux >> 10) & 0x3FF
			inst.K2 = aux & 0x3FF
			if o.UseImportConstants && o.StaticEnvironment != nil {
				if v, ok := resolveImportChain(strings, o.StaticEnvironment, inst.ImportCount, inst.K0, inst.K1, inst.K2); ok {
					inst.K = v
				}
			}
		case bytecode.KAuxBool:
			inst.K = Bool(aux&1 != 0)
			inst.KN = aux>>31 != 0
		case bytecode.KAuxNumber:
			inst.K = resolveK(p.Constants, aux&0xFFFFFF)
			inst.KN = aux>>31 != 0
		case bytecode.KAuxCount:
			// Verbatim per the wire format: the low nibble of aux is the
			// generic-for variable count, not a constant-pool index.
			inst.KN = aux&0xF != 0
			inst.Aux = aux & 0xF
		}
	}

	// DUPTABLE and DUPCLOSURE constants are resolved lazily at runtime
	// (the former needs a fresh Table per execution, the latter needs the
	// closure factory's upvalue-capture machinery), but the loader still
	// needs to hand the dispatch loop the key/proto metadata it recorded.
	p.tableConstants = tableConsts
	p.closureConstants = closureConsts

	return nil
}

// resolveK resolves a K-mode operand to a constant-pool entry. The wire
// formula is phrased as "constants[x + 1]" against a conceptually 1-based
// array; against Constants as a plain 0-based Go slice that collapses to a
// direct index, with no separate sentinel for "no constant" — every
// has_aux/K-mode instruction the loader binds this way always carries a
// valid operand.
func resolveK(constants []Value, index uint32) Value {
	if int(index) >= len(constants) {
		return Nil
	}
	return constants[index]
}

// resolveImportChain performs the eager static-environment walk
// use_import_constants enables: static[name(k0)][name(k1)][name(k2)],
// stopping at count steps or the first non-table intermediate.
func resolveImportChain(strings []string, static *Table, count int, k0, k1, k2 uint32) (Value, bool) {
	if count <= 0 || count > 3 {
		return Nil, false
	}
	ids := [3]uint32{k0, k1, k2}
	cur := FromTable(static)
	for i := 0; i < count; i++ {
		if !cur.IsTable() {
			return Nil, false
		}
		idx := ids[i]
		if int(idx) >= len(strings) {
			return Nil, false
		}
		cur = cur.AsTable().Get(String(strings[idx]))
	}
	return cur, true
}

func loadConstants(r *bytecode.Reader, strings []string, o LoadOptions, tableConsts *[]tableConstant, closureConsts *[]closureConstant) ([]Value, error) {
	sizeK, err := r.Varint()
	if err != nil {
		return nil, err
	}
	consts := make([]Value, sizeK)
	*tableConsts = make([]tableConstant, sizeK)
	*closureConsts = make([]closureConstant, sizeK)

	for i := uint32(0); i < sizeK; i++ {
		kindByte, err := r.U8()
		if err != nil {
			return nil, err
		}
		switch constKind(kindByte) {
		case constNil:
			consts[i] = Nil
		case constBool:
			b, err := r.U8()
			if err != nil {
				return nil, err
			}
			consts[i] = Bool(b != 0)
		case constNumber:
			f, err := r.F64()
			if err != nil {
				return nil, err
			}
			consts[i] = Number(f)
		case constString:
			idx, err := r.Varint()
			if err != nil {
				return nil, err
			}
			s := ""
			if int(idx) < len(strings) {
				s = strings[idx]
			}
			consts[i] = String(s)
		case constImport:
			// The packed import id is only meaningful attached to a
			// GETIMPORT instruction's K field; the constant slot itself
			// isn't read by any instruction directly, so we leave it Nil.
			if _, err := r.U32LE(); err != nil {
				return nil, err
			}
			consts[i] = Nil
		case constTable:
			n, err := r.Varint()
			if err != nil {
				return nil, err
			}
			keys := make([]uint32, n)
			for j := uint32(0); j < n; j++ {
				keys[j], err = r.Varint()
				if err != nil {
					return nil, err
				}
			}
			(*tableConsts)[i] = tableConstant{keys: keys}
			consts[i] = Nil // materialized lazily by DUPTABLE
		case constClosure:
			idx, err := r.Varint()
			if err != nil {
				return nil, err
			}
			(*closureConsts)[i] = closureConstant{protoIndex: int(idx)}
			consts[i] = Nil // DUPCLOSURE resolves the real closure at runtime
		case constVector:
			comps := make([]float64, 4)
			for j := 0; j < 4; j++ {
				f, err := r.F32()
				if err != nil {
					return nil, err
				}
				comps[j] = float64(f)
			}
			if o.VectorSize == 3 {
				comps = comps[:3]
			}
			consts[i] = FromVector(o.VectorCtor(comps))
		default:
			return nil, lunarerrors.NewLoadError("malformed constant tag %d at index %d", kindByte, i)
		}
	}
	return consts, nil
}

func loadLineInfo(r *bytecode.Reader, p *Prototype) error {
	gapLog2, err := r.U8()
	if err != nil {
		return err
	}
	sizeCode := len(p.Code)

	relLine := make([]int32, sizeCode)
	var acc int8
	for i := 0; i < sizeCode; i++ {
		delta, err := r.U8()
		if err != nil {
			return err
		}
		acc += int8(delta)
		relLine[i] = int32(acc)
	}

	numAbs := ((sizeCode - 1) >> gapLog2) + 1
	if sizeCode == 0 {
		numAbs = 0
	}
	absLine := make([]int32, numAbs)
	var absAcc uint32
	for i := 0; i < numAbs; i++ {
		delta, err := r.U32LE()
		if err != nil {
			return err
		}
		absAcc += delta
		absLine[i] = int32(absAcc)
	}

	lines := make([]int32, sizeCode)
	for pc := 0; pc < sizeCode; pc++ {
		lines[pc] = absLine[pc>>gapLog2] + relLine[pc]
	}

	p.LineInfoEnabled = true
	p.InstructionLine = lines
	return nil
}

func skipDebugInfo(r *bytecode.Reader) error {
	nLocals, err := r.Varint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < nLocals; i++ {
		if _, err := r.Varint(); err != nil { // name
			return err
		}
		if _, err := r.Varint(); err != nil { // start pc
			return err
		}
		if _, err := r.Varint(); err != nil { // end pc
			return err
		}
		if _, err := r.U8(); err != nil { // register
			return err
		}
	}
	nUpvals, err := r.Varint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < nUpvals; i++ {
		if _, err := r.Varint(); err != nil { // name
			return err
		}
	}
	return nil
}
