package runtime

// String is an interned string value. The pool hands out a single instance
// per distinct content so that pointer equality is value equality.
type String struct {
	gcHeader
	val string
}

// StringPool interns strings. Entries are weak: the collector drops strings
// nothing refers to anymore.
type StringPool struct {
	strings map[string]*String
	heap    *Heap
}

func newStringPool(heap *Heap) *StringPool {
	return &StringPool{strings: map[string]*String{}, heap: heap}
}

// Intern returns the canonical instance for str, allocating it on first use.
func (pool *StringPool) Intern(str string) *String {
	if s, ok := pool.strings[str]; ok {
		return s
	}
	s := &String{val: str}
	pool.strings[str] = s
	pool.heap.track(s)
	return s
}

// Len is the number of live interned strings.
func (pool *StringPool) Len() int { return len(pool.strings) }

func (pool *StringPool) release(s *String) {
	if pool.strings[s.val] == s {
		delete(pool.strings, s.val)
	}
}

// Value returns the go string.
func (s *String) Value() string { return s.val }

func (s *String) String() string { return s.val }

func (s *String) trace(*marker) {}
