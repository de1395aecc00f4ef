package module

// UpvalueCell is the two-state cell the spec's upvalue model describes.
// Open: ptr aliases a live register slot in the frame that created it (a
// *Value into that frame's register slice), so writes through SETUPVAL and
// writes to the register itself via MOVE/ordinary instructions are both
// visible to every closure sharing the cell. Closed: the cell owns its
// value outright. The transition is one-directional.
type UpvalueCell struct {
	ptr    *Value // non-nil while open
	closed Value
}

// NewOpenUpvalue creates a cell aliasing slot (normally &frame.stack[reg]).
func NewOpenUpvalue(slot *Value) *UpvalueCell {
	return &UpvalueCell{ptr: slot}
}

// NewClosedUpvalue creates a cell that already owns its value (used by
// NEWCLOSURE's value-capture mode, which snapshots the register
// immediately rather than sharing it).
func NewClosedUpvalue(v Value) *UpvalueCell {
	return &UpvalueCell{closed: v}
}

// Get reads the current value.
func (u *UpvalueCell) Get() Value {
	if u.ptr != nil {
		return *u.ptr
	}
	return u.closed
}

// Set writes through to the live register (if open) or to the owned value
// (if closed).
func (u *UpvalueCell) Set(v Value) {
	if u.ptr != nil {
		*u.ptr = v
		return
	}
	u.closed = v
}

// IsOpen reports whether the cell still aliases a live frame register.
func (u *UpvalueCell) IsOpen() bool { return u.ptr != nil }

// Close snapshots the current value and severs the alias to the frame.
// Idempotent: closing an already-closed cell is a no-op.
func (u *UpvalueCell) Close() {
	if u.ptr == nil {
		return
	}
	u.closed = *u.ptr
	u.ptr = nil
}

// NativeFunc is a host-supplied callable: an extension function, a
// namecall fallback, or anything else the host hands the interpreter as a
// first-class value. It receives already-evaluated arguments and returns
// result values or an error.
type NativeFunc func(args []Value) ([]Value, error)

// Closure binds either a scripted Prototype plus its captured upvalues, or
// a host-supplied NativeFunc. Exactly one of Proto/Native is set.
type Closure struct {
	Proto    *Prototype
	Upvalues []*UpvalueCell

	Native     NativeFunc
	NativeName string
}

// IsNative reports whether this is a host function rather than a compiled
// closure, i.e. whether it has no Proto.
func (c *Closure) IsNative() bool { return c.Proto == nil }

// DebugName returns the name used in diagnostics and disassembly.
func (c *Closure) DebugName() string {
	if c.IsNative() {
		if c.NativeName != "" {
			return c.NativeName
		}
		return "(native)"
	}
	return c.Proto.DebugName
}

// NewNativeClosure wraps a host function as a Closure value.
func NewNativeClosure(name string, fn NativeFunc) *Closure {
	return &Closure{Native: fn, NativeName: name}
}
