package runtime

import (
	"errors"
	"math"
)

type (
	// Table is a container object that acts both as an array and a map. Keys
	// 1..n live in the array part, everything else in an insertion ordered hash
	// part so that next keeps a stable order while a traversal clears fields.
	Table struct {
		gcHeader
		array     []any
		index     map[any]int
		entries   []tableEntry
		dead      int
		metatable *Table
	}
	tableEntry struct {
		key any
		val any
	}
)

var (
	errNilIndex   = errors.New("table index is nil")
	errNaNIndex   = errors.New("table index is NaN")
	errInvalidKey = errors.New("invalid key to 'next'")
)

func newTable(arraySize, hashSize int) *Table {
	return &Table{
		array: make([]any, 0, arraySize),
		index: make(map[any]int, hashSize),
	}
}

// hashKey maps a value to the go value used to index the hash part. Strings
// hash by content.
func hashKey(key any) any {
	if str, ok := key.(*String); ok {
		return str.val
	}
	return key
}

func arrayIndex(key any) (int, bool) {
	num, ok := key.(float64)
	if !ok || num < 1 || num != math.Trunc(num) || num > math.MaxInt32 {
		return 0, false
	}
	return int(num), true
}

// Get will return the value for the key, nil when it is not present.
func (t *Table) Get(key any) any {
	if i, ok := arrayIndex(key); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	if key == nil {
		return nil
	}
	if idx, ok := t.index[hashKey(key)]; ok {
		return t.entries[idx].val
	}
	return nil
}

// Set will set a value at a given key. Setting nil removes the key. Nil and
// NaN keys are not allowed.
func (t *Table) Set(key, val any) error {
	switch tkey := key.(type) {
	case nil:
		return errNilIndex
	case float64:
		if math.IsNaN(tkey) {
			return errNaNIndex
		}
	}
	if i, ok := arrayIndex(key); ok {
		if i <= len(t.array) {
			t.array[i-1] = val
			if i == len(t.array) && val == nil {
				t.trimArray()
			}
			return nil
		} else if i == len(t.array)+1 && val != nil {
			t.removeHash(key)
			t.array = append(t.array, val)
			t.migrate()
			return nil
		}
	}
	t.setHash(key, val)
	return nil
}

func (t *Table) setHash(key, val any) {
	hkey := hashKey(key)
	if idx, ok := t.index[hkey]; ok {
		entry := &t.entries[idx]
		if entry.val == nil && val != nil {
			t.dead--
		} else if entry.val != nil && val == nil {
			t.dead++
		}
		entry.val = val
		return
	} else if val == nil {
		return
	}
	if t.dead > len(t.entries)/2 {
		t.compact()
	}
	t.index[hkey] = len(t.entries)
	t.entries = append(t.entries, tableEntry{key: key, val: val})
}

func (t *Table) removeHash(key any) {
	if idx, ok := t.index[hashKey(key)]; ok && t.entries[idx].val != nil {
		t.entries[idx].val = nil
		t.dead++
	}
}

// migrate moves the keys following the array part out of the hash part.
func (t *Table) migrate() {
	for {
		next := float64(len(t.array) + 1)
		idx, ok := t.index[next]
		if !ok || t.entries[idx].val == nil {
			return
		}
		t.array = append(t.array, t.entries[idx].val)
		t.entries[idx].val = nil
		t.dead++
	}
}

func (t *Table) trimArray() {
	end := len(t.array)
	for end > 0 && t.array[end-1] == nil {
		end--
	}
	clear(t.array[end:])
	t.array = t.array[:end]
}

func (t *Table) compact() {
	live := make([]tableEntry, 0, len(t.entries)-t.dead)
	clear(t.index)
	for _, entry := range t.entries {
		if entry.val != nil {
			t.index[hashKey(entry.key)] = len(live)
			live = append(live, entry)
		}
	}
	t.entries = live
	t.dead = 0
}

// Len returns the border of the array part.
func (t *Table) Len() int { return len(t.array) }

// ArraySize is the number of slots in the array part.
func (t *Table) ArraySize() int { return len(t.array) }

// HashSize is the number of live keys in the hash part.
func (t *Table) HashSize() int { return len(t.entries) - t.dead }

// Next returns the key and value that follow key in traversal order. A nil
// key starts the traversal and a nil returned key ends it.
func (t *Table) Next(key any) (any, any, error) {
	start := 0
	if key != nil {
		i, isIndex := arrayIndex(key)
		if idx, inHash := t.index[hashKey(key)]; isIndex && i <= len(t.array) {
			start = i
		} else if inHash {
			start = len(t.array) + idx + 1
		} else if isIndex {
			// the array part was trimmed behind the traversal
			start = len(t.array)
		} else {
			return nil, nil, errInvalidKey
		}
	}
	for i := start; i < len(t.array); i++ {
		if t.array[i] != nil {
			return float64(i + 1), t.array[i], nil
		}
	}
	for i := max(start-len(t.array), 0); i < len(t.entries); i++ {
		if entry := t.entries[i]; entry.val != nil {
			return entry.key, entry.val, nil
		}
	}
	return nil, nil, nil
}

// Insert shifts the array part up from pos and places val there.
func (t *Table) Insert(pos int, val any) error {
	if pos < 1 || pos > len(t.array)+1 {
		return errors.New("position out of bounds")
	}
	t.array = append(t.array, nil)
	copy(t.array[pos:], t.array[pos-1:])
	t.array[pos-1] = val
	if val == nil {
		t.trimArray()
	} else {
		t.migrate()
	}
	return nil
}

// Remove deletes the element at pos shifting the rest of the array down.
func (t *Table) Remove(pos int) any {
	if pos < 1 || pos > len(t.array) {
		return nil
	}
	val := t.array[pos-1]
	copy(t.array[pos-1:], t.array[pos:])
	t.array[len(t.array)-1] = nil
	t.array = t.array[:len(t.array)-1]
	t.trimArray()
	return val
}

// Metatable returns the metatable of the table if one was set.
func (t *Table) Metatable() *Table { return t.metatable }

// SetMetatable replaces the metatable of the table.
func (t *Table) SetMetatable(meta *Table) { t.metatable = meta }

func (t *Table) trace(m *marker) {
	for _, val := range t.array {
		m.mark(val)
	}
	for _, entry := range t.entries {
		if entry.val != nil {
			m.mark(entry.key)
			m.mark(entry.val)
		}
	}
	if t.metatable != nil {
		m.mark(t.metatable)
	}
}
