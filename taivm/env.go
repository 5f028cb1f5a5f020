package taivm

type Binding struct {
	Name *Text
	Val  Value
}

// Globals is an append-only table of global bindings.
type Globals struct {
	Name     string
	Bindings []Binding

	// number of linear scans performed by Lookup
	Scans int
}

func NewGlobals(name string) *Globals {
	return &Globals{
		Name: name,
	}
}

// Lookup finds the binding index of name by linear scan.
func (g *Globals) Lookup(name *Text) (int, bool) {
	g.Scans++
	for i := range g.Bindings {
		if g.Bindings[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// Define updates the binding of name or appends a new one.
func (g *Globals) Define(name *Text, val Value) int {
	for i := range g.Bindings {
		if g.Bindings[i].Name == name {
			g.Bindings[i].Val = val
			return i
		}
	}
	g.Bindings = append(g.Bindings, Binding{
		Name: name,
		Val:  val,
	})
	return len(g.Bindings) - 1
}

func (g *Globals) Get(i int) Value {
	return g.Bindings[i].Val
}

func (g *Globals) Set(i int, val Value) {
	g.Bindings[i].Val = val
}

func (g *Globals) Len() int {
	return len(g.Bindings)
}

// Value returns the value bound to name without touching the scan counter.
func (g *Globals) Value(name *Text) (Value, bool) {
	for _, b := range g.Bindings {
		if b.Name == name {
			return b.Val, true
		}
	}
	return Value{}, false
}

func (g *Globals) roots(visit func(*Value)) {
	for i := range g.Bindings {
		visit(&g.Bindings[i].Val)
	}
}
