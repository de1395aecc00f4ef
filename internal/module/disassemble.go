package module

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"golang.org/x/exp/maps"
)

// Disassemble renders p's code stream one instruction per line: pc,
// mnemonic, operands, and — where the instruction carries a resolved
// constant — its value rendered with kr/pretty so nested table/closure
// constants print legibly instead of as a Go-internal struct dump. The
// header's instruction, parameter and upvalue counts are rendered with
// go-humanize so large prototypes stay readable at a glance.
func Disassemble(p *Prototype) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "function %s (%s instructions, %s params, %s upvalues)\n",
		p.DebugName,
		humanize.Comma(int64(len(p.Code))),
		humanize.Comma(int64(p.NumParams)),
		humanize.Comma(int64(p.NumUpvalues)))

	for pc, inst := range p.Code {
		if inst.Op.String() == "AUXSLOT" {
			continue
		}
		line := ""
		if p.LineInfoEnabled {
			line = fmt.Sprintf(" ; line %d", p.Line(pc))
		}
		operands := fmt.Sprintf("A=%d B=%d C=%d D=%d E=%d", inst.A, inst.B, inst.C, inst.D, inst.E)
		if inst.HasAux {
			operands += fmt.Sprintf(" aux=%d", inst.Aux)
		}
		if !inst.K.IsNil() {
			operands += fmt.Sprintf(" K=%s", pretty.Sprint(inst.K.String()))
		}
		fmt.Fprintf(&sb, "%4d  %-14s %s%s\n", pc, inst.Op.String(), operands, line)
	}

	return sb.String()
}

// DumpGlobals renders env's string-keyed entries as "name = value", one per
// line, sorted by name. env.hash iterates in Go's randomized map order, so
// maps.Keys is sorted before printing — two runs against the same globals
// must produce byte-identical output for this to be useful as a diagnostic.
func DumpGlobals(env *Table) string {
	if env == nil {
		return ""
	}
	keys := maps.Keys(env.hash)
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.IsString() {
			names = append(names, k.AsString())
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s = %s\n", name, env.Get(String(name)).String())
	}
	return sb.String()
}

// DisassembleModule renders every prototype in m, main prototype first.
func DisassembleModule(m *Module) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s: %s prototypes, bytecode v%d\n",
		m.ID, humanize.Comma(int64(len(m.Protos))), m.BytecodeVer)
	sb.WriteString(Disassemble(m.Main()))
	for i, p := range m.Protos {
		if i == m.MainProto {
			continue
		}
		sb.WriteString(Disassemble(p))
	}
	return sb.String()
}
