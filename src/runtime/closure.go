package runtime

type (
	// Closure is a runtime instance of a prototype with its captured upvalues.
	Closure struct {
		gcHeader
		proto    *Function
		upvalues []*Upvalue
	}
	// Upvalue is a heap cell holding a captured variable. While the variable
	// is in scope the register that held it refers to the cell, so the frame
	// and every closure capturing it see the same value.
	Upvalue struct {
		gcHeader
		Value any
	}
)

// Proto returns the prototype the closure was made from.
func (c *Closure) Proto() *Function { return c.proto }

// Upvalue returns the cell of upvalue i.
func (c *Closure) Upvalue(i int) *Upvalue { return c.upvalues[i] }

func (c *Closure) trace(m *marker) {
	m.mark(c.proto)
	for _, up := range c.upvalues {
		m.mark(up)
	}
}

func (u *Upvalue) trace(m *marker) { m.mark(u.Value) }

// deref unwraps a register that was promoted to an upvalue cell.
func deref(val any) any {
	if up, ok := val.(*Upvalue); ok {
		return up.Value
	}
	return val
}
