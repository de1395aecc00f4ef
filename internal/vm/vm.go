package vm

import (
	"math"
	"strings"

	"lunar/internal/bytecode"
	"lunar/internal/module"

	lunarerrors "lunar/internal/errors"
)

// run executes proto's code stream against frame f until RETURN, an
// unrecoverable failure, or the alive flag goes false. It is the dispatch
// loop (C6): one case per opcode, PC/top/upvalue/iterator bookkeeping, and
// the hook invocations §4.6 specifies.
func (vm *VM) run(c *module.Closure, f *Frame) ([]module.Value, *runtimeFailure) {
	proto := f.proto
	code := proto.Code

	for {
		if !vm.alive {
			return nil, nil
		}
		if f.pc < 0 || f.pc >= len(code) {
			return nil, typeFailure(f, "RETURN", "fell off the end of the code stream")
		}

		inst := &code[f.pc]
		f.lastPC = f.pc
		f.lastOp = inst.Op.String()

		if vm.settings.Hooks.Step != nil {
			vm.settings.Hooks.Step(f, proto)
		}

		fallthroughPC := f.pc + 1
		if inst.HasAux {
			fallthroughPC++
		}

		switch inst.Op {
		case bytecode.NOP:
			f.pc = fallthroughPC

		case bytecode.BREAK:
			if vm.settings.Hooks.Break != nil {
				vm.settings.Hooks.Break(f, proto)
			}
			f.pc = fallthroughPC

		case bytecode.LOADNIL:
			f.set(inst.A, module.Nil)
			f.pc = fallthroughPC

		case bytecode.LOADB:
			f.set(inst.A, module.Bool(inst.B != 0))
			f.pc = fallthroughPC + int(inst.C)

		case bytecode.LOADN:
			f.set(inst.A, module.Number(float64(inst.D)))
			f.pc = fallthroughPC

		case bytecode.LOADK:
			f.set(inst.A, inst.K)
			f.pc = fallthroughPC

		case bytecode.LOADKX:
			f.set(inst.A, inst.K)
			f.pc = fallthroughPC

		case bytecode.MOVE:
			f.set(inst.A, f.get(inst.B))
			f.pc = fallthroughPC

		case bytecode.GETGLOBAL:
			f.set(inst.A, vm.lookupGlobal(inst.K.AsString()))
			f.pc = fallthroughPC

		case bytecode.SETGLOBAL:
			vm.setGlobal(inst.K.AsString(), f.get(inst.A))
			f.pc = fallthroughPC

		case bytecode.GETUPVAL:
			f.set(inst.A, c.Upvalues[inst.B].Get())
			f.pc = fallthroughPC

		case bytecode.SETUPVAL:
			c.Upvalues[inst.B].Set(f.get(inst.A))
			f.pc = fallthroughPC

		case bytecode.CLOSEUPVALS:
			f.closeFrom(inst.A)
			f.pc = fallthroughPC

		case bytecode.GETIMPORT:
			v, failure := vm.getImport(f, inst)
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.GETTABLE:
			v, failure := tableGet(f, f.get(inst.B), f.get(inst.C))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.SETTABLE:
			if failure := tableSet(f, f.get(inst.B), f.get(inst.C), f.get(inst.A)); failure != nil {
				return nil, failure
			}
			f.pc = fallthroughPC

		case bytecode.GETTABLEKS:
			v, failure := tableGet(f, f.get(inst.B), inst.K)
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.SETTABLEKS:
			if failure := tableSet(f, f.get(inst.B), inst.K, f.get(inst.A)); failure != nil {
				return nil, failure
			}
			f.pc = fallthroughPC

		case bytecode.GETTABLEN:
			v, failure := tableGet(f, f.get(inst.B), module.Number(float64(inst.C)+1))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.SETTABLEN:
			if failure := tableSet(f, f.get(inst.B), module.Number(float64(inst.C)+1), f.get(inst.A)); failure != nil {
				return nil, failure
			}
			f.pc = fallthroughPC

		case bytecode.NEWCLOSURE:
			nc, consumed := vm.makeClosure(f, int(inst.D), nil)
			f.set(inst.A, module.FromClosure(nc))
			f.pc = fallthroughPC + consumed

		case bytecode.DUPCLOSURE:
			protoIdx, _ := proto.ClosureConstantProto(closureConstIndex(inst))
			nc, consumed := vm.makeClosure(f, protoIdx, nil)
			f.set(inst.A, module.FromClosure(nc))
			f.pc = fallthroughPC + consumed

		case bytecode.CAPTURE:
			// Pseudo-instruction; only reached if control flow skips past
			// NEWCLOSURE/DUPCLOSURE's consumption loop. Treat as a no-op.
			f.pc = fallthroughPC

		case bytecode.NAMECALL:
			failure := vm.namecall(f, inst)
			if failure != nil {
				return nil, failure
			}
			f.pc = fallthroughPC

		case bytecode.CALL:
			results, failure := vm.doCall(f, inst)
			if failure != nil {
				return nil, failure
			}
			spliceCall(f, inst.A, inst.C, results)
			f.pc = fallthroughPC

		case bytecode.RETURN:
			if vm.settings.Hooks.Interrupt != nil {
				vm.settings.Hooks.Interrupt(f, proto)
			}
			return returnValues(f, inst.A, inst.B), nil

		case bytecode.JUMP:
			f.pc = fallthroughPC + int(inst.D)

		case bytecode.JUMPBACK:
			if vm.settings.Hooks.Interrupt != nil {
				vm.settings.Hooks.Interrupt(f, proto)
			}
			f.pc = fallthroughPC + int(inst.D)

		case bytecode.JUMPX:
			if vm.settings.Hooks.Interrupt != nil {
				vm.settings.Hooks.Interrupt(f, proto)
			}
			f.pc = fallthroughPC + int(inst.E)

		case bytecode.JUMPIF:
			if f.get(inst.A).Truthy() {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.JUMPIFNOT:
			if !f.get(inst.A).Truthy() {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.JUMPIFEQ, bytecode.JUMPIFLE, bytecode.JUMPIFLT,
			bytecode.JUMPIFNOTEQ, bytecode.JUMPIFNOTLE, bytecode.JUMPIFNOTLT:
			taken, failure := evalJumpCompare(f, inst)
			if failure != nil {
				return nil, failure
			}
			if taken {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD, bytecode.POW, bytecode.IDIV:
			v, failure := arith(f, inst.Op, f.get(inst.B), f.get(inst.C))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.ADDK, bytecode.SUBK, bytecode.MULK, bytecode.DIVK, bytecode.MODK, bytecode.POWK, bytecode.IDIVK:
			v, failure := arith(f, arithKBase(inst.Op), f.get(inst.B), inst.K)
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.SUBRK:
			v, failure := arith(f, bytecode.SUB, inst.K, f.get(inst.B))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.DIVRK:
			v, failure := arith(f, bytecode.DIV, inst.K, f.get(inst.B))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.AND:
			f.set(inst.A, logicalAnd(f.get(inst.B), f.get(inst.C)))
			f.pc = fallthroughPC

		case bytecode.OR:
			f.set(inst.A, logicalOr(f.get(inst.B), f.get(inst.C)))
			f.pc = fallthroughPC

		case bytecode.ANDK:
			f.set(inst.A, logicalAnd(f.get(inst.B), inst.K))
			f.pc = fallthroughPC

		case bytecode.ORK:
			f.set(inst.A, logicalOr(f.get(inst.B), inst.K))
			f.pc = fallthroughPC

		case bytecode.NOT:
			f.set(inst.A, module.Bool(!f.get(inst.B).Truthy()))
			f.pc = fallthroughPC

		case bytecode.MINUS:
			n, failure := numOperand(f, f.get(inst.B), "MINUS")
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, module.Number(-n))
			f.pc = fallthroughPC

		case bytecode.LENGTH:
			v, failure := lengthOf(f, f.get(inst.B))
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.CONCAT:
			v, failure := concatRange(f, inst.B, inst.C)
			if failure != nil {
				return nil, failure
			}
			f.set(inst.A, v)
			f.pc = fallthroughPC

		case bytecode.NEWTABLE:
			f.set(inst.A, module.FromTable(module.NewTable(int(inst.Aux))))
			f.pc = fallthroughPC

		case bytecode.DUPTABLE:
			f.set(inst.A, module.FromTable(vm.dupTable(proto, inst)))
			f.pc = fallthroughPC

		case bytecode.SETLIST:
			vm.setList(f, inst)
			f.pc = fallthroughPC

		case bytecode.FORNPREP:
			skip, failure := vm.fornPrep(f, inst.A)
			if failure != nil {
				return nil, failure
			}
			if skip {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.FORNLOOP:
			if vm.settings.Hooks.Interrupt != nil {
				vm.settings.Hooks.Interrupt(f, proto)
			}
			if vm.fornLoop(f, inst.A) {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.FORGPREP:
			targetPC := fallthroughPC + int(inst.D)
			if failure := vm.forgPrep(f, inst, targetPC); failure != nil {
				return nil, failure
			}
			f.pc = targetPC

		case bytecode.FORGLOOP:
			if vm.settings.Hooks.Interrupt != nil {
				vm.settings.Hooks.Interrupt(f, proto)
			}
			cont, failure := vm.forgLoop(f, inst)
			if failure != nil {
				return nil, failure
			}
			if cont {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.FORGPREP_INEXT, bytecode.FORGPREP_NEXT:
			if !f.get(inst.A).IsClosure() {
				return nil, typeFailure(f, inst.Op.String(), "attempt to iterate using a non-function value")
			}
			f.pc = fallthroughPC + int(inst.D)

		case bytecode.GETVARARGS:
			n := vm.getVarargs(f, inst.A, inst.B)
			_ = n
			f.pc = fallthroughPC

		case bytecode.JUMPXEQKNIL, bytecode.JUMPXEQKB, bytecode.JUMPXEQKN, bytecode.JUMPXEQKS:
			taken := evalJumpXEqK(f, inst)
			if taken {
				f.pc = fallthroughPC + int(inst.D)
			} else {
				f.pc = fallthroughPC
			}

		case bytecode.COVERAGE:
			f.pc = fallthroughPC

		case bytecode.FASTCALL, bytecode.FASTCALL1, bytecode.FASTCALL2, bytecode.FASTCALL2K, bytecode.FASTCALL3:
			f.pc = fallthroughPC

		case bytecode.PREPVARARGS:
			f.pc = fallthroughPC

		case bytecode.AUXSLOT:
			// Never dispatched directly; every path that lands here is a
			// malformed jump target.
			f.pc = fallthroughPC

		default:
			// Unknown opcode byte: warned-and-skipped rather than fatal,
			// per the core's forward-compatibility stance. The decode
			// pass already assumed no AUX word for this instruction, so
			// the fallthrough here stays aligned with the word stream.
			if vm.settings.Logger != nil {
				loc := lunarerrors.Location{DebugName: f.debugName, PC: f.pc, OpName: f.lastOp}
				vm.settings.Logger.Warningf("%s", lunarerrors.NewUnsupported(loc, uint8(inst.Op)).Error())
			}
			f.pc = fallthroughPC
		}
	}
}

func (vm *VM) lookupGlobal(name string) module.Value {
	if vm.settings.Extensions != nil {
		if v := vm.settings.Extensions.Get(module.String(name)); !v.IsNil() {
			return v
		}
	}
	if vm.env != nil {
		return vm.env.Get(module.String(name))
	}
	return module.Nil
}

func (vm *VM) setGlobal(name string, v module.Value) {
	if vm.env != nil {
		vm.env.Set(module.String(name), v)
	}
}

func (vm *VM) getImport(f *Frame, inst *module.Instruction) (module.Value, *runtimeFailure) {
	if vm.settings.UseImportConstants && !inst.K.IsNil() {
		return inst.K, nil
	}

	ids := [3]uint32{inst.K0, inst.K1, inst.K2}
	var cur module.Value
	if vm.settings.Extensions != nil {
		cur = vm.settings.Extensions.Get(module.String(vm.mod.String(ids[0])))
	}
	if cur.IsNil() && vm.env != nil {
		cur = vm.env.Get(module.String(vm.mod.String(ids[0])))
	}
	for i := 1; i < inst.ImportCount; i++ {
		if !cur.IsTable() {
			return module.Nil, nil
		}
		cur = cur.AsTable().Get(module.String(vm.mod.String(ids[i])))
	}
	return cur, nil
}

func tableGet(f *Frame, container, key module.Value) (module.Value, *runtimeFailure) {
	if !container.IsTable() {
		return module.Nil, typeFailure(f, "GETTABLE", "attempt to index a %s value", container.TypeName())
	}
	return container.AsTable().Get(key), nil
}

func tableSet(f *Frame, container, key, val module.Value) *runtimeFailure {
	if !container.IsTable() {
		return typeFailure(f, "SETTABLE", "attempt to index a %s value", container.TypeName())
	}
	container.AsTable().Set(key, val)
	return nil
}

func closureConstIndex(inst *module.Instruction) int {
	return int(inst.D)
}

// makeClosure builds a closure for the prototype at slot localProtoIdx of
// the current prototype's Protos list and consumes the capture
// pseudo-instructions that follow. An out-of-range slot yields an empty
// Closure and consumes nothing.
func (vm *VM) makeClosure(f *Frame, localProtoIdx int, _ []*module.UpvalueCell) (*module.Closure, int) {
	proto := f.proto
	var target *module.Prototype
	if localProtoIdx >= 0 && localProtoIdx < len(proto.Protos) {
		target = vm.mod.Protos[proto.Protos[localProtoIdx]]
	}
	if target == nil {
		return &module.Closure{}, 0
	}

	upvalues := make([]*module.UpvalueCell, target.NumUpvalues)
	consumed := 0
	pc := f.pc + 1
	for i := 0; i < target.NumUpvalues && pc < len(proto.Code); i++ {
		capture := &proto.Code[pc]
		switch capture.A {
		case 0: // value capture: snapshot register B
			upvalues[i] = module.NewClosedUpvalue(f.get(capture.B))
		case 1: // reference capture: shared open cell on register B
			upvalues[i] = f.openUpvalue(capture.B)
		case 2: // parent upvalue passthrough
			if int(capture.B) < len(f.currentUpvalues) {
				upvalues[i] = f.currentUpvalues[capture.B]
			} else {
				upvalues[i] = module.NewClosedUpvalue(module.Nil)
			}
		}
		pc++
		consumed++
	}

	return wrapProto(target, upvalues), consumed
}

func (vm *VM) namecall(f *Frame, inst *module.Instruction) *runtimeFailure {
	receiver := f.get(inst.B)
	method := inst.K.AsString()
	f.set(inst.A+1, receiver)

	if vm.settings.UseNativeNamecall && vm.settings.NamecallHandler != nil {
		handled, results, err := vm.settings.NamecallHandler(receiver, method, nil)
		if err != nil {
			return runtimeFailureFromErr(f, "NAMECALL", err)
		}
		if handled {
			f.pendingNamecallResults = results
			return nil
		}
	}

	if !receiver.IsTable() {
		return typeFailure(f, "NAMECALL", "attempt to call method '%s' on a %s value", method, receiver.TypeName())
	}
	f.set(inst.A, receiver.AsTable().Get(module.String(method)))
	return nil
}

func (vm *VM) doCall(f *Frame, inst *module.Instruction) ([]module.Value, *runtimeFailure) {
	if vm.settings.Hooks.Interrupt != nil {
		vm.settings.Hooks.Interrupt(f, f.proto)
	}

	if f.pendingNamecallResults != nil {
		results := f.pendingNamecallResults
		f.pendingNamecallResults = nil
		return results, nil
	}

	callee := f.get(inst.A)
	if !callee.IsClosure() {
		return nil, typeFailure(f, "CALL", "attempt to call a %s value", callee.TypeName())
	}

	var nargs int
	if inst.B == 0 {
		nargs = f.top - int(inst.A)
	} else {
		nargs = int(inst.B) - 1
	}
	args := make([]module.Value, nargs)
	for i := 0; i < nargs; i++ {
		args[i] = f.get(inst.A + 1 + uint8(i))
	}

	results, rf := vm.call(callee.AsClosure(), args)
	if rf != nil {
		return nil, rf
	}
	return results, nil
}

func spliceCall(f *Frame, base uint8, c uint8, results []module.Value) {
	if c == 0 {
		for i, v := range results {
			f.set(base+uint8(i), v)
		}
		f.top = int(base) + len(results) - 1
		return
	}
	want := int(c) - 1
	for i := 0; i < want; i++ {
		if i < len(results) {
			f.set(base+uint8(i), results[i])
		} else {
			f.set(base+uint8(i), module.Nil)
		}
	}
}

func returnValues(f *Frame, a, b uint8) []module.Value {
	var n int
	switch {
	case b == 1:
		n = 0
	case b == 0:
		n = f.top - int(a) + 1
	default:
		n = int(b) - 1
	}
	if n <= 0 {
		return nil
	}
	out := make([]module.Value, n)
	for i := 0; i < n; i++ {
		out[i] = f.get(a + uint8(i))
	}
	return out
}

func evalJumpCompare(f *Frame, inst *module.Instruction) (bool, *runtimeFailure) {
	lhs := f.get(inst.A)
	rhs := f.get(uint8(inst.Aux))

	var result bool
	var failure *runtimeFailure
	switch inst.Op {
	case bytecode.JUMPIFEQ, bytecode.JUMPIFNOTEQ:
		result = valuesEqual(lhs, rhs)
	case bytecode.JUMPIFLE, bytecode.JUMPIFNOTLE:
		result, failure = compareLE(f, lhs, rhs)
	case bytecode.JUMPIFLT, bytecode.JUMPIFNOTLT:
		result, failure = compareLT(f, lhs, rhs)
	}
	if failure != nil {
		return false, failure
	}

	switch inst.Op {
	case bytecode.JUMPIFNOTEQ, bytecode.JUMPIFNOTLE, bytecode.JUMPIFNOTLT:
		result = !result
	}
	return result, nil
}

func valuesEqual(a, b module.Value) bool {
	return a == b
}

func compareLE(f *Frame, a, b module.Value) (bool, *runtimeFailure) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.AsString() <= b.AsString(), nil
	}
	return false, typeFailure(f, "JUMPIFLE", "attempt to compare %s with %s", a.TypeName(), b.TypeName())
}

func compareLT(f *Frame, a, b module.Value) (bool, *runtimeFailure) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.AsString() < b.AsString(), nil
	}
	return false, typeFailure(f, "JUMPIFLT", "attempt to compare %s with %s", a.TypeName(), b.TypeName())
}

func numOperand(f *Frame, v module.Value, op string) (float64, *runtimeFailure) {
	if v.IsNumber() {
		return v.AsNumber(), nil
	}
	return 0, typeFailure(f, op, "attempt to perform arithmetic on a %s value", v.TypeName())
}

// arithKBase maps a *K arithmetic opcode onto the register-register opcode
// arith() already knows how to evaluate, since the operation itself is
// identical — only where the right operand comes from differs.
func arithKBase(op bytecode.OpCode) bytecode.OpCode {
	switch op {
	case bytecode.ADDK:
		return bytecode.ADD
	case bytecode.SUBK:
		return bytecode.SUB
	case bytecode.MULK:
		return bytecode.MUL
	case bytecode.DIVK:
		return bytecode.DIV
	case bytecode.MODK:
		return bytecode.MOD
	case bytecode.POWK:
		return bytecode.POW
	case bytecode.IDIVK:
		return bytecode.IDIV
	}
	return op
}

func arith(f *Frame, op bytecode.OpCode, lhs, rhs module.Value) (module.Value, *runtimeFailure) {
	a, failure := numOperand(f, lhs, op.String())
	if failure != nil {
		return module.Nil, failure
	}
	b, failure := numOperand(f, rhs, op.String())
	if failure != nil {
		return module.Nil, failure
	}
	switch op {
	case bytecode.ADD:
		return module.Number(a + b), nil
	case bytecode.SUB:
		return module.Number(a - b), nil
	case bytecode.MUL:
		return module.Number(a * b), nil
	case bytecode.DIV:
		return module.Number(a / b), nil
	case bytecode.MOD:
		return module.Number(a - math.Floor(a/b)*b), nil
	case bytecode.POW:
		return module.Number(math.Pow(a, b)), nil
	case bytecode.IDIV:
		return module.Number(math.Floor(a / b)), nil
	}
	return module.Nil, typeFailure(f, op.String(), "unsupported arithmetic opcode")
}

// logicalAnd/logicalOr preserve source-language truthiness per §9: the
// "false" branch of a short-circuit is the original operand, not a
// canonical boolean, so chained `a and b and c` reads as intended even when
// an intermediate value is a non-boolean falsey-looking value.
func logicalAnd(b, c module.Value) module.Value {
	if !b.Truthy() {
		return b
	}
	return c
}

func logicalOr(b, c module.Value) module.Value {
	if b.Truthy() {
		return b
	}
	return c
}

func lengthOf(f *Frame, v module.Value) (module.Value, *runtimeFailure) {
	switch {
	case v.IsString():
		return module.Number(float64(len(v.AsString()))), nil
	case v.IsTable():
		return module.Number(float64(v.AsTable().Len())), nil
	default:
		return module.Nil, typeFailure(f, "LENGTH", "attempt to get length of a %s value", v.TypeName())
	}
}

func concatRange(f *Frame, b, c uint8) (module.Value, *runtimeFailure) {
	var sb strings.Builder
	for i := b; i <= c; i++ {
		v := f.get(i)
		if !v.IsString() && !v.IsNumber() {
			return module.Nil, typeFailure(f, "CONCAT", "attempt to concatenate a %s value", v.TypeName())
		}
		sb.WriteString(v.String())
		if i == c {
			break
		}
	}
	return module.String(sb.String()), nil
}

func (vm *VM) dupTable(proto *module.Prototype, inst *module.Instruction) *module.Table {
	keys := proto.TableConstantKeys(int(inst.D))
	t := module.NewTable(len(keys))
	for _, strIdx := range keys {
		t.Set(module.String(vm.mod.String(strIdx)), module.Nil)
	}
	return t
}

func (vm *VM) setList(f *Frame, inst *module.Instruction) {
	target := f.get(inst.A)
	if !target.IsTable() {
		return
	}
	var count int
	if inst.C == 0 {
		count = f.top - int(inst.B) + 1
	} else {
		count = int(inst.C) - 1
	}
	start := inst.Aux
	for i := 0; i < count; i++ {
		target.AsTable().Set(module.Number(float64(start)+float64(i)), f.get(inst.B+uint8(i)))
	}
}

func (vm *VM) fornPrep(f *Frame, a uint8) (bool, *runtimeFailure) {
	limit, ok := f.get(a).ToNumber()
	if !ok {
		return false, typeFailure(f, "FORNPREP", "'for' limit must be a number")
	}
	step, ok := f.get(a + 1).ToNumber()
	if !ok {
		return false, typeFailure(f, "FORNPREP", "'for' step must be a number")
	}
	index, ok := f.get(a + 2).ToNumber()
	if !ok {
		return false, typeFailure(f, "FORNPREP", "'for' initial value must be a number")
	}
	f.set(a, module.Number(limit))
	f.set(a+1, module.Number(step))
	f.set(a+2, module.Number(index))

	if step > 0 {
		return limit < index, nil
	}
	return limit > index, nil
}

func (vm *VM) fornLoop(f *Frame, a uint8) bool {
	limit := f.get(a).AsNumber()
	step := f.get(a + 1).AsNumber()
	index := f.get(a+2).AsNumber() + step
	f.set(a+2, module.Number(index))

	if step > 0 {
		return index <= limit
	}
	return index >= limit
}

// forgPrep installs a generalized-iteration coroutine keyed by the pc of
// the FORGLOOP this FORGPREP jumps to, when the iterator in register A is
// not a function. Plain function iterators need no coroutine: FORGLOOP
// calls them directly.
func (vm *VM) forgPrep(f *Frame, inst *module.Instruction, targetPC int) *runtimeFailure {
	iter := f.get(inst.A)
	if iter.IsClosure() {
		return nil
	}
	if !vm.settings.GeneralizedIteration {
		return typeFailure(f, "FORGPREP", "attempt to iterate over a %s value", iter.TypeName())
	}
	coro, err := newIteratorCoroutine(iter)
	if err != nil {
		return typeFailure(f, "FORGPREP", "%s", err.Error())
	}
	if f.generalizedIterators == nil {
		f.generalizedIterators = make(map[int]*iteratorCoroutine)
	}
	if old, ok := f.generalizedIterators[targetPC]; ok {
		old.close()
	}
	f.generalizedIterators[targetPC] = coro
	return nil
}

// forgLoop implements FORGLOOP: true means "continue, jump back to the
// loop body"; false means the loop fell through (iterator exhausted).
func (vm *VM) forgLoop(f *Frame, inst *module.Instruction) (bool, *runtimeFailure) {
	f.top = int(inst.A) + 6
	nvars := int(inst.Aux)

	iter := f.get(inst.A)
	if iter.IsClosure() {
		results, rf := vm.call(iter.AsClosure(), []module.Value{f.get(inst.A + 1), f.get(inst.A + 2)})
		if rf != nil {
			return false, rf
		}
		if len(results) == 0 || results[0].IsNil() {
			return false, nil
		}
		for i := 0; i < nvars; i++ {
			if i < len(results) {
				f.set(inst.A+3+uint8(i), results[i])
			} else {
				f.set(inst.A+3+uint8(i), module.Nil)
			}
		}
		f.set(inst.A+2, results[0])
		return true, nil
	}

	coro, ok := f.generalizedIterators[f.pc]
	if !ok {
		return false, typeFailure(f, "FORGLOOP", "no active iterator coroutine")
	}
	results, alive := coro.resume()
	if !alive {
		coro.close()
		delete(f.generalizedIterators, f.pc)
		return false, nil
	}
	for i := 0; i < nvars; i++ {
		if i < len(results) {
			f.set(inst.A+3+uint8(i), results[i])
		} else {
			f.set(inst.A+3+uint8(i), module.Nil)
		}
	}
	return true, nil
}

func (vm *VM) getVarargs(f *Frame, a, b uint8) int {
	if b == 1 {
		f.top = int(a) + len(f.varargs) - 1
		for i, v := range f.varargs {
			f.set(a+uint8(i), v)
		}
		return len(f.varargs)
	}
	n := int(b) - 1
	for i := 0; i < n; i++ {
		if i < len(f.varargs) {
			f.set(a+uint8(i), f.varargs[i])
		} else {
			f.set(a+uint8(i), module.Nil)
		}
	}
	return n
}

func evalJumpXEqK(f *Frame, inst *module.Instruction) bool {
	v := f.get(inst.A)
	var eq bool
	switch inst.Op {
	case bytecode.JUMPXEQKNIL:
		eq = v.IsNil()
	case bytecode.JUMPXEQKB:
		eq = v.IsBool() && v.AsBool() == inst.K.AsBool()
	case bytecode.JUMPXEQKN:
		eq = v.IsNumber() && v.AsNumber() == inst.K.AsNumber()
	case bytecode.JUMPXEQKS:
		eq = v.IsString() && v.AsString() == inst.K.AsString()
	}
	return eq != inst.KN
}
