package vm

import (
	"lunar/internal/module"
)

// iteratorCoroutine drives the generalized-iteration protocol for a
// FORGLOOP whose iterator register holds something other than a plain
// function. The source models this as a coroutine; Go has no language-level
// coroutine, so a goroutine paired with a pair of handshake channels plays
// the same role: resume() hands control to the producer and blocks for
// exactly one yielded tuple, never running concurrently with the caller.
type iteratorCoroutine struct {
	resumeCh chan struct{}
	resultCh chan []module.Value
	doneCh   chan struct{}
}

// newIteratorCoroutine starts a coroutine walking v's keys in the order the
// language's length/key-iteration guarantees for v's kind. The goroutine
// never runs ahead of the caller: it blocks on resumeCh before producing
// each tuple.
func newIteratorCoroutine(v module.Value) (*iteratorCoroutine, error) {
	keys, err := generalizedKeys(v)
	if err != nil {
		return nil, err
	}

	ic := &iteratorCoroutine{
		resumeCh: make(chan struct{}),
		resultCh: make(chan []module.Value),
		doneCh:   make(chan struct{}),
	}

	go func() {
		defer close(ic.resultCh)
		for _, k := range keys {
			select {
			case <-ic.resumeCh:
			case <-ic.doneCh:
				return
			}
			val := generalizedGet(v, k)
			select {
			case ic.resultCh <- []module.Value{k, val}:
			case <-ic.doneCh:
				return
			}
		}
		// One final handshake so the caller's resume() that discovers
		// end-of-stream also goes through the same request/response
		// protocol as every other step.
		select {
		case <-ic.resumeCh:
		case <-ic.doneCh:
		}
	}()

	return ic, nil
}

// resume requests the next bound-value tuple. ok is false once the
// underlying iteration is exhausted (the generalized-iteration terminator).
func (ic *iteratorCoroutine) resume() (vals []module.Value, ok bool) {
	select {
	case ic.resumeCh <- struct{}{}:
	case <-ic.doneCh:
		return nil, false
	}
	vals, ok = <-ic.resultCh
	return vals, ok
}

// close abandons the coroutine, whether or not it has been exhausted. Safe
// to call more than once.
func (ic *iteratorCoroutine) close() {
	select {
	case <-ic.doneCh:
	default:
		close(ic.doneCh)
	}
}

// generalizedKeys enumerates the keys a non-function iterator value yields
// values for, in the language's stable iteration order for that kind:
// tables expose their contiguous 1-based integer prefix first, then their
// remaining keys.
func generalizedKeys(v module.Value) ([]module.Value, error) {
	switch {
	case v.IsTable():
		return v.AsTable().Keys(), nil
	case v.IsString():
		s := v.AsString()
		keys := make([]module.Value, len(s))
		for i := range s {
			keys[i] = module.Number(float64(i + 1))
		}
		return keys, nil
	default:
		return nil, &TypeErrorValue{Value: v}
	}
}

func generalizedGet(v module.Value, key module.Value) module.Value {
	if v.IsTable() {
		return v.AsTable().Get(key)
	}
	if v.IsString() {
		s := v.AsString()
		i := int(key.AsNumber())
		if i >= 1 && i <= len(s) {
			return module.String(string(s[i-1]))
		}
	}
	return module.Nil
}

// TypeErrorValue reports that v cannot be iterated by the generalized
// iteration protocol.
type TypeErrorValue struct {
	Value module.Value
}

func (e *TypeErrorValue) Error() string {
	return "attempt to iterate over a " + e.Value.TypeName() + " value"
}
