package taivm

// PrimitiveFunc receives a view of the argument values on the operand stack.
// The view stays valid across Reserve, which updates the stack in place, but
// values copied out of it before a Reserve may be stale afterwards.
type PrimitiveFunc func(m *Machine, args []Value) (Value, error)

type Primitive struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 for any
	Func    PrimitiveFunc
}

// Resume is where the dispatch loop continues after a high primitive.
type Resume struct {
	Addr Addr
	Env  Ref
}

// HighPrimitiveFunc takes over the dispatch loop. On entry the callee and its
// argc arguments are on top of the stack, and beneath them is whatever the
// callee must eventually return to. The primitive rearranges the stack and
// names the next instruction instead of producing a value.
type HighPrimitiveFunc func(m *Machine, argc int) (Resume, error)

type HighPrimitive struct {
	Name    string
	MinArgs int
	MaxArgs int
	Func    HighPrimitiveFunc
}

func acceptsArgs(min, max, argc int) bool {
	return argc >= min && (max < 0 || argc <= max)
}

func (m *Machine) RegisterPrimitive(p Primitive) Value {
	m.primitives = append(m.primitives, p)
	return PrimitiveValue(len(m.primitives) - 1)
}

func (m *Machine) RegisterHighPrimitive(p HighPrimitive) Value {
	m.highPrimitives = append(m.highPrimitives, p)
	return HighPrimitiveValue(len(m.highPrimitives) - 1)
}

// PrimitiveName returns the registered name of a primitive value.
func (m *Machine) PrimitiveName(v Value) string {
	switch v.Kind {
	case KindPrimitive:
		if v.Index() < len(m.primitives) {
			return m.primitives[v.Index()].Name
		}
	case KindHighPrimitive:
		if v.Index() < len(m.highPrimitives) {
			return m.highPrimitives[v.Index()].Name
		}
	}
	return ""
}
