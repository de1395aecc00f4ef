package vm

import "lunar/internal/module"

// Frame is the per-invocation execution state the dispatch loop mutates:
// one frame per closure call, discarded on return.
type Frame struct {
	stack []module.Value
	pc    int
	top   int // high-water live register index; -1 means empty

	varargs []module.Value

	openUpvalues map[int]*module.UpvalueCell // register index -> cell

	// generalizedIterators is keyed by the pc of the FORGLOOP instruction
	// that owns the coroutine, per §3's "weak by keys" iterator map.
	generalizedIterators map[int]*iteratorCoroutine

	proto *module.Prototype

	// currentUpvalues is the calling closure's own upvalue vector, needed
	// when a nested NEWCLOSURE/DUPCLOSURE uses capture mode 2 (parent
	// upvalue passthrough).
	currentUpvalues []*module.UpvalueCell

	// pendingNamecallResults holds a native namecall handler's results
	// between NAMECALL and the CALL instruction required to follow it.
	pendingNamecallResults []module.Value

	debugName string
	lastPC    int
	lastOp    string
}

func newFrame(proto *module.Prototype, upvalues []*module.UpvalueCell, args []module.Value) *Frame {
	f := &Frame{
		stack:           make([]module.Value, proto.MaxStackSize),
		top:             -1,
		proto:           proto,
		currentUpvalues: upvalues,
		debugName:       proto.DebugName,
	}

	n := proto.NumParams
	if n > len(args) {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		f.stack[i] = args[i]
	}
	for i := n; i < proto.NumParams && i < len(f.stack); i++ {
		f.stack[i] = module.Nil
	}

	if len(args) > proto.NumParams {
		f.varargs = append([]module.Value(nil), args[proto.NumParams:]...)
	}

	return f
}

func (f *Frame) get(reg uint8) module.Value {
	return f.stack[reg]
}

func (f *Frame) set(reg uint8, v module.Value) {
	f.stack[reg] = v
	if int(reg) > f.top {
		f.top = int(reg)
	}
}

// openUpvalue returns the cell aliasing register reg, creating one if none
// exists yet, so that multiple closures created from the same frame share
// identity.
func (f *Frame) openUpvalue(reg uint8) *module.UpvalueCell {
	if f.openUpvalues == nil {
		f.openUpvalues = make(map[int]*module.UpvalueCell)
	}
	if cell, ok := f.openUpvalues[int(reg)]; ok {
		return cell
	}
	cell := module.NewOpenUpvalue(&f.stack[reg])
	f.openUpvalues[int(reg)] = cell
	return cell
}

// closeFrom closes every open upvalue cell with register index >= from,
// per CLOSEUPVALS and frame exit.
func (f *Frame) closeFrom(from uint8) {
	for reg, cell := range f.openUpvalues {
		if reg >= int(from) {
			cell.Close()
			delete(f.openUpvalues, reg)
		}
	}
}

// closeAll closes every remaining open upvalue and every live iterator
// coroutine, on frame exit.
func (f *Frame) closeAll() {
	for reg, cell := range f.openUpvalues {
		cell.Close()
		delete(f.openUpvalues, reg)
	}
	for pc, it := range f.generalizedIterators {
		it.close()
		delete(f.generalizedIterators, pc)
	}
}
