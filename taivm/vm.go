package taivm

import (
	"io"
	"log/slog"
)

type Options struct {
	HeapCells int
	HeapLimit int
	StackSize int
	Output    io.Writer
	Logger    *slog.Logger

	// check heap consistency after every collection
	VerifyHeap bool
}

const (
	DefaultHeapCells = 1 << 16
	DefaultHeapLimit = 1 << 26
	DefaultStackSize = 1 << 16
)

type Machine struct {
	Program  *Program
	Heap     *Heap
	Symbols  *Symbols
	User     *Globals
	Compiler *Globals
	Output   io.Writer

	globals *Globals
	tables  []*Globals

	stack []Value
	sp    int
	base  int
	env   Ref
	pc    Addr

	pinned  Value
	running bool

	primitives     []Primitive
	highPrimitives []HighPrimitive

	returnStub Addr

	logger     *slog.Logger
	verifyHeap bool
	verifyErr  error
}

func NewMachine(opts Options) *Machine {
	if opts.HeapCells <= 0 {
		opts.HeapCells = DefaultHeapCells
	}
	if opts.HeapLimit <= 0 {
		opts.HeapLimit = DefaultHeapLimit
	}
	if opts.StackSize <= 0 {
		opts.StackSize = DefaultStackSize
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Machine{
		Program:    NewProgram(),
		Heap:       NewHeap(opts.HeapCells, opts.HeapLimit),
		Symbols:    NewSymbols(),
		User:       NewGlobals("user"),
		Compiler:   NewGlobals("compiler"),
		Output:     opts.Output,
		stack:      make([]Value, opts.StackSize),
		logger:     logger,
		verifyHeap: opts.VerifyHeap,
	}
	m.tables = []*Globals{m.User, m.Compiler}
	m.globals = m.User
	m.returnStub = m.Program.Append(Simple(OpReturn))

	m.Heap.OnCollect = func(stats CollectStats) {
		m.logger.Debug("collect",
			"before", stats.Before,
			"after", stats.After,
			"capacity", stats.Capacity,
			"duration", stats.Duration,
		)
		if m.verifyHeap && m.verifyErr == nil {
			m.verifyErr = m.Heap.Verify(m.roots)
		}
	}
	return m
}

func (m *Machine) Logger() *slog.Logger {
	return m.logger
}

// Globals returns the active global table.
func (m *Machine) Globals() *Globals {
	return m.globals
}

// UseGlobals switches the active global table.
func (m *Machine) UseGlobals(g *Globals) {
	m.globals = g
}

func (m *Machine) globalsIndex(g *Globals) int {
	for i, t := range m.tables {
		if t == g {
			return i
		}
	}
	m.tables = append(m.tables, g)
	return len(m.tables) - 1
}

// SavedGlobals returns a return-channel value restoring g when popped by Return.
func (m *Machine) SavedGlobals(g *Globals) Value {
	return globalsValue(m.globalsIndex(g))
}

// ReturnStub is the address of a lone Return instruction.
func (m *Machine) ReturnStub() Addr {
	return m.returnStub
}

func (m *Machine) Env() Ref {
	return m.env
}

func (m *Machine) PC() Addr {
	return m.pc
}

// Pin registers v as an extra root until the next Pin or Unpin.
func (m *Machine) Pin(v Value) {
	m.pinned = v
}

func (m *Machine) Pinned() Value {
	return m.pinned
}

func (m *Machine) Unpin() {
	m.pinned = Void
}

func (m *Machine) roots(visit func(*Value)) {
	for _, g := range m.tables {
		g.roots(visit)
	}
	for i := 0; i < m.sp; i++ {
		visit(&m.stack[i])
	}
	env := EnvValue(m.env)
	visit(&env)
	m.env = env.Ref()
	visit(&m.pinned)
}

// Reserve guarantees n free heap cells. It may run a collection, after which
// only values held in roots are valid.
func (m *Machine) Reserve(n int) error {
	if err := m.Heap.Reserve(n, m.roots); err != nil {
		return err
	}
	if m.verifyErr != nil {
		err := Errorf(ErrResource, "heap corrupted: %v", m.verifyErr)
		m.verifyErr = nil
		return err
	}
	return nil
}

// Collect forces a collection.
func (m *Machine) Collect() error {
	m.Heap.Collect(m.roots)
	if m.verifyErr != nil {
		err := Errorf(ErrResource, "heap corrupted: %v", m.verifyErr)
		m.verifyErr = nil
		return err
	}
	return nil
}

func (m *Machine) VerifyHeap() error {
	return m.Heap.Verify(m.roots)
}

// Verifying reports whether every collection is followed by VerifyHeap.
func (m *Machine) Verifying() bool {
	return m.verifyHeap
}

// Stack returns the live operand stack.
func (m *Machine) Stack() []Value {
	return m.stack[:m.sp]
}

func (m *Machine) SP() int {
	return m.sp
}

func (m *Machine) StackSize() int {
	return len(m.stack)
}

func (m *Machine) Push(v Value) error {
	if m.sp >= len(m.stack) {
		return Errorf(ErrResource, "operand stack overflow")
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *Machine) Pop() Value {
	if m.sp <= 0 {
		return Void
	}
	m.sp--
	v := m.stack[m.sp]
	m.stack[m.sp] = Value{}
	return v
}

// Drop discards n values from the top of the stack.
func (m *Machine) Drop(n int) {
	if n > m.sp {
		n = m.sp
	}
	clear(m.stack[m.sp-n : m.sp])
	m.sp -= n
}

// Reset abandons any evaluation in progress.
func (m *Machine) Reset() {
	clear(m.stack[:m.sp])
	m.sp = 0
	m.base = 0
	m.env = 0
	m.running = false
	m.globals = m.User
	m.pinned = Void
}

// Define binds name in the active global table.
func (m *Machine) Define(name string, v Value) {
	m.globals.Define(m.Symbols.Intern(name).Text(), v)
}

// Lookup returns the value of name in the active global table.
func (m *Machine) Lookup(name string) (Value, bool) {
	sym, ok := m.Symbols.Lookup(name)
	if !ok {
		return Value{}, false
	}
	return m.globals.Value(sym.Text())
}

func (m *Machine) Cons(first, rest Value) Value {
	return m.Heap.Cons(first, rest)
}

func (m *Machine) First(pair Value) Value {
	return m.Heap.First(pair)
}

func (m *Machine) Rest(pair Value) Value {
	return m.Heap.Rest(pair)
}
