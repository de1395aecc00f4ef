package vm

import (
	"github.com/tliron/commonlog"

	"lunar/internal/module"
)

// StepHook fires before each instruction the dispatch loop executes.
type StepHook func(f *Frame, proto *module.Prototype)

// BreakHook fires when a BREAK instruction executes.
type BreakHook func(f *Frame, proto *module.Prototype)

// InterruptHook fires before CALL, RETURN, JUMPBACK, JUMPX, and each
// FORNLOOP/FORGLOOP iteration.
type InterruptHook func(f *Frame, proto *module.Prototype)

// PanicHook fires once at protected-call failure, before the diagnostic is
// surfaced to the caller.
type PanicHook func(err error)

// Hooks groups the four call hooks a host may install.
type Hooks struct {
	Step      StepHook
	Break     BreakHook
	Interrupt InterruptHook
	Panic     PanicHook
}

// NamecallHandler is the host's optional native dispatcher for NAMECALL.
// It receives the receiver and method name, and reports whether it handled
// the call; on true, its results replace what a CALL would have spliced.
type NamecallHandler func(receiver module.Value, method string, args []module.Value) (handled bool, results []module.Value, err error)

// Settings is the host configuration record threaded through every
// invocation: extensions/env resolution, namecall dispatch, vector
// construction, hooks, and the error/iteration policy knobs from the host
// interface.
type Settings struct {
	VectorCtor module.VectorCtor
	VectorSize int

	UseNativeNamecall bool
	NamecallHandler   NamecallHandler

	Extensions *module.Table

	Hooks Hooks

	ErrorHandling        bool
	GeneralizedIteration bool
	AllowProxyErrors     bool

	UseImportConstants bool
	StaticEnvironment  *module.Table

	// Logger receives load/run diagnostics (§4.10); nil disables the sink
	// entirely rather than falling back to fmt.Println.
	Logger commonlog.Logger

	// MaxCallDepth bounds Go call recursion through nested vm.call
	// invocations; 0 means the compiled-in default (see defaultMaxCallDepth).
	MaxCallDepth int

	// JITDisabled is informational only: this interpreter has no JIT, so the
	// field exists solely so a lunar.toml written for a JIT-capable sibling
	// loads here without error.
	JITDisabled bool

	// LogLevel records the log_level named in a config file. Nothing in this
	// repository reads it: the CLI driver configures commonlog from its
	// -v/-vv flags only.
	LogLevel string
}

// defaultMaxCallDepth is used whenever Settings.MaxCallDepth is left at its
// zero value.
const defaultMaxCallDepth = 200

// DefaultSettings returns the policy the loader/VM fall back to when the
// host supplies nothing: no hooks, no extensions, protected top-level
// calls, generalized iteration enabled, proxy errors disallowed (payloads
// are stringified).
func DefaultSettings() *Settings {
	return &Settings{
		VectorSize:           3,
		ErrorHandling:        true,
		GeneralizedIteration: true,
		AllowProxyErrors:     false,
	}
}
