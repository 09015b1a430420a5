package runtime

type (
	// UserData wraps an arbitrary go value so it can be handed to lua code.
	// Field access goes through the __index and __newindex fields of its
	// metatable.
	UserData struct {
		gcHeader
		Data      any
		metatable *Table
		destroyed bool
	}
	// Destroyer is implemented by userdata payloads that hold resources which
	// must be released when the collector frees them.
	Destroyer interface {
		Destroy()
	}
)

// Metatable returns the metatable of the userdata.
func (ud *UserData) Metatable() *Table { return ud.metatable }

// SetMetatable replaces the metatable of the userdata.
func (ud *UserData) SetMetatable(meta *Table) { ud.metatable = meta }

func (ud *UserData) destroy() {
	if ud.destroyed {
		return
	}
	ud.destroyed = true
	if d, ok := ud.Data.(Destroyer); ok {
		d.Destroy()
	}
}

func (ud *UserData) trace(m *marker) {
	if ud.metatable != nil {
		m.mark(ud.metatable)
	}
}
