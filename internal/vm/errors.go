package vm

import (
	"errors"
	"fmt"

	"lunar/internal/module"

	lunarerrors "lunar/internal/errors"
)

// runtimeFailure carries a dispatch-loop error together with the frame
// location it occurred at, so the protected-call boundary can format a
// diagnostic without the dispatch loop itself knowing whether one will be
// requested.
type runtimeFailure struct {
	payload module.Value
	cause   error
	loc     lunarerrors.Location
}

func typeFailure(f *Frame, inst string, format string, args ...interface{}) *runtimeFailure {
	msg := fmt.Sprintf(format, args...)
	return &runtimeFailure{
		payload: module.String(msg),
		cause:   lunarerrors.NewTypeError(lunarerrors.Location{DebugName: f.debugName, PC: f.pc, OpName: inst}, "%s", msg),
		loc:     lunarerrors.Location{DebugName: f.debugName, PC: f.pc, OpName: inst},
	}
}

func runtimeFailureFromErr(f *Frame, inst string, err error) *runtimeFailure {
	return &runtimeFailure{
		payload: module.String(err.Error()),
		cause:   err,
		loc:     lunarerrors.Location{DebugName: f.debugName, PC: f.pc, OpName: inst},
	}
}

// nativeFailure wraps an error returned by a native closure into the same
// runtimeFailure shape the dispatch loop produces, so native and bytecode
// failures flow through the one protected-call boundary in protectedCall().
func nativeFailure(name string, err error) *runtimeFailure {
	loc := lunarerrors.Location{OpName: name}
	return &runtimeFailure{
		payload: module.String(err.Error()),
		cause:   lunarerrors.NewRuntimeError(loc, err, "%s", err.Error()),
		loc:     loc,
	}
}

// reportFailure implements the protected-call boundary (C8): invokes the
// panic hook if error_handling is enabled, then formats the diagnostic or
// passes the raw payload through per allow_proxy_errors/error_handling.
func (vm *VM) reportFailure(rf *runtimeFailure) error {
	if !vm.settings.ErrorHandling {
		// Unprotected: the host observes the failure directly, with no
		// location formatting applied.
		if rf.cause != nil {
			return rf.cause
		}
		return errors.New(rf.payload.String())
	}

	if vm.settings.Logger != nil {
		vm.settings.Logger.Errorf("%s", rf.payload.String())
	}
	if vm.settings.Hooks.Panic != nil {
		vm.settings.Hooks.Panic(rf.cause)
	}

	payload := rf.payload.String()
	if !vm.settings.AllowProxyErrors && !rf.payload.IsString() {
		payload = rf.payload.TypeName()
	}
	return lunarerrors.NewRuntimeError(rf.loc, rf.cause, "%s", payload)
}
