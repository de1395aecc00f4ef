// Package vm implements the closure factory and dispatch loop (C5/C6) that
// execute a loaded module: frame setup, the ~80-opcode interpreter, the
// generalized-iteration coroutine subsystem, and the protected-call
// boundary around a host invocation.
package vm

import "lunar/internal/module"

// EntryPoint is a callable produced by Load: invoking it runs the module's
// main prototype (or, for a value returned from it, any closure value) to
// completion and returns its results or a diagnostic.
type EntryPoint func(args ...module.Value) ([]module.Value, error)

// CloseHandle sets the interpreter's alive flag false, telling any
// in-flight invocation to wind down at its next cooperative check point.
type CloseHandle func()

// VM holds the state shared by every invocation produced from one Load
// call: the immutable module graph, the host environment table, and the
// host settings record. alive, flipped by the returned CloseHandle, and
// depth, the current nested call depth, are its mutable state.
type VM struct {
	mod      *module.Module
	env      *module.Table
	settings *Settings
	alive    bool
	depth    int
}

// Load decodes data into a module and returns an entry point bound to its
// main prototype plus a handle that cooperatively cancels any execution in
// progress. This is the host-facing API surface: load(module_bytes, env,
// settings) -> (entry_point, close_handle).
func Load(data []byte, env *module.Table, settings *Settings) (EntryPoint, CloseHandle, error) {
	if settings == nil {
		settings = DefaultSettings()
	}

	opts := &module.LoadOptions{
		VectorCtor:         settings.VectorCtor,
		VectorSize:         settings.VectorSize,
		UseImportConstants: settings.UseImportConstants,
		StaticEnvironment:  settings.StaticEnvironment,
	}
	// The content-keyed cache is only used when these options decode every
	// blob the same way (default vector constructor and size, no import
	// pre-resolution); any other options get a fresh decode.
	var mod *module.Module
	var err error
	if opts.VectorCtor == nil && opts.VectorSize != 4 && !opts.UseImportConstants {
		mod, err = module.LoadCached(data, opts)
	} else {
		mod, err = module.Load(data, opts)
	}
	if err != nil {
		return nil, nil, err
	}

	v := &VM{mod: mod, env: env, settings: settings, alive: true}
	main := wrapProto(mod.Main(), nil)

	entry := func(args ...module.Value) ([]module.Value, error) {
		return v.protectedCall(main, args)
	}
	close := func() { v.alive = false }

	return entry, close, nil
}
