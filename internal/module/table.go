package module

// Table is the source language's general-purpose associative structure.
// It keeps a dense 1-based integer-keyed prefix in array (so GETTABLEN /
// SETTABLEN / SETLIST / the length operator are O(1) or O(length)) and
// everything else — string keys, sparse integer keys, non-contiguous
// numeric keys — in hash.
type Table struct {
	array []Value // array[i] is key i+1
	hash  map[Value]Value
}

// NewTable allocates a table with an optional capacity hint (from
// NEWTABLE's aux word); 0 is a valid "no hint" value.
func NewTable(capHint int) *Table {
	t := &Table{}
	if capHint > 0 {
		t.array = make([]Value, 0, capHint)
	}
	return t
}

func asArrayIndex(key Value) (int, bool) {
	if !key.IsNumber() {
		return 0, false
	}
	n := key.AsNumber()
	i := int(n)
	if float64(i) != n || i < 1 {
		return 0, false
	}
	return i, true
}

// Get looks up key, returning Nil if absent.
func (t *Table) Get(key Value) Value {
	if i, ok := asArrayIndex(key); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	if t.hash == nil {
		return Nil
	}
	if v, ok := t.hash[key]; ok {
		return v
	}
	return Nil
}

// Set assigns key = val. Assigning Nil to an existing key removes it;
// assigning Nil to a key that was already absent is a no-op.
func (t *Table) Set(key Value, val Value) {
	if i, ok := asArrayIndex(key); ok {
		switch {
		case i <= len(t.array):
			t.array[i-1] = val
			if val.IsNil() && i == len(t.array) {
				t.shrinkArray()
			}
			return
		case i == len(t.array)+1 && !val.IsNil():
			t.array = append(t.array, val)
			t.absorbFromHash()
			return
		}
	}
	if val.IsNil() {
		if t.hash != nil {
			delete(t.hash, key)
		}
		return
	}
	if t.hash == nil {
		t.hash = make(map[Value]Value)
	}
	t.hash[key] = val
}

// shrinkArray trims trailing Nil entries after a deletion at the border.
func (t *Table) shrinkArray() {
	for len(t.array) > 0 && t.array[len(t.array)-1].IsNil() {
		t.array = t.array[:len(t.array)-1]
	}
}

// absorbFromHash pulls any now-contiguous integer keys out of hash and
// into array after an append grows the dense prefix.
func (t *Table) absorbFromHash() {
	if t.hash == nil {
		return
	}
	for {
		next := Number(float64(len(t.array) + 1))
		v, ok := t.hash[next]
		if !ok {
			return
		}
		delete(t.hash, next)
		t.array = append(t.array, v)
	}
}

// Len returns the length of the contiguous 1-based integer prefix (the
// `#t` operator).
func (t *Table) Len() int { return len(t.array) }

// Keys returns every key currently present, array keys first in order
// followed by hash keys in map iteration order (unordered, per the spec's
// "no ordering guarantees" outside the numeric prefix).
func (t *Table) Keys() []Value {
	keys := make([]Value, 0, len(t.array)+len(t.hash))
	for i := range t.array {
		if !t.array[i].IsNil() {
			keys = append(keys, Number(float64(i+1)))
		}
	}
	for k := range t.hash {
		keys = append(keys, k)
	}
	return keys
}
