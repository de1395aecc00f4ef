package vm

import (
	"fmt"

	"lunar/internal/module"
)

// wrapProto binds a prototype to its captured upvalues, producing an
// invocable closure. The returned closure does nothing on its own; calling
// it is call()'s job, which sets up a fresh frame and runs the dispatch
// loop.
func wrapProto(proto *module.Prototype, upvalues []*module.UpvalueCell) *module.Closure {
	return &module.Closure{Proto: proto, Upvalues: upvalues}
}

// call invokes c with args and returns whatever runtimeFailure the dispatch
// loop produced, unreported. Every invocation issued from inside the
// dispatch loop itself (CALL's doCall, FORGLOOP's direct-closure-iterator
// path) goes through this, so a failure nested several frames deep
// propagates as plain data rather than tripping the protected-call
// boundary at each unwinding frame.
func (vm *VM) call(c *module.Closure, args []module.Value) ([]module.Value, *runtimeFailure) {
	limit := vm.settings.MaxCallDepth
	if limit <= 0 {
		limit = defaultMaxCallDepth
	}
	if vm.depth >= limit {
		err := fmt.Errorf("call depth exceeded %d", limit)
		return nil, &runtimeFailure{payload: module.String(err.Error()), cause: err}
	}
	vm.depth++
	defer func() { vm.depth-- }()

	if c.IsNative() {
		results, err := c.Native(args)
		if err != nil {
			return nil, nativeFailure(c.NativeName, err)
		}
		return results, nil
	}

	f := newFrame(c.Proto, c.Upvalues, args)
	defer f.closeAll()

	if vm.settings.Logger != nil {
		vm.settings.Logger.Debugf("entering %s at depth %d", c.Proto.DebugName, vm.depth)
	}

	return vm.run(c, f)
}

// protectedCall is the single protected-call boundary §4.6/§4.8 describes:
// the entry point returned by Load wraps the outermost call() in this, so
// the panic hook fires and the diagnostic is formatted exactly once no
// matter how deep in the call stack the failure originated.
func (vm *VM) protectedCall(c *module.Closure, args []module.Value) ([]module.Value, error) {
	results, failure := vm.call(c, args)
	if failure == nil {
		return results, nil
	}
	return nil, vm.reportFailure(failure)
}
