package taivm

import (
	"errors"
	"fmt"
)

var ErrReentrant = errors.New("taivm: Execute called while the machine is running")

// Execute runs the dispatch loop from entry until a Return leaves nothing
// beneath its result. Entry code runs in the global frame.
func (m *Machine) Execute(entry Addr) (Value, error) {
	if m.running {
		return Value{}, ErrReentrant
	}
	m.running = true
	globals := m.globals
	base := m.sp
	m.base = base
	m.pc = entry
	m.env = 0

	res, err := m.run()
	m.running = false
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.PC < 0 {
			e.PC = m.lastPC()
		}
		clear(m.stack[base:m.sp])
		m.sp = base
		m.env = 0
		m.globals = globals
		m.pinned = Void
		return Value{}, err
	}
	return res, nil
}

// minimum operand count per instruction
var pops = [OpEnd + 1]int{
	OpDefineGlobal: 1,
	OpAssignVar:    1,
	OpAssignGlobal: 1,
	OpJumpIfFalse:  1,
	OpReturn:       1,
	OpPop:          1,
	OpCons:         2,
}

func (m *Machine) lastPC() Addr {
	if m.pc > 0 {
		return m.pc - 1
	}
	return 0
}

func (m *Machine) overflow() error {
	return Errorf(ErrResource, "operand stack overflow (%d slots)", len(m.stack))
}

func (m *Machine) run() (Value, error) {
	for {
		if m.pc < 0 || int(m.pc) >= len(m.Program.code) {
			return Value{}, Errorf(ErrMalformed, "program counter out of range: %d", m.pc)
		}
		inst := &m.Program.code[m.pc]
		m.pc++
		if inst.Op.Valid() && m.sp-m.base < pops[inst.Op] {
			return Value{}, Errorf(ErrMalformed, "stack underflow in %s", inst.Op)
		}

		switch inst.Op {

		case OpLoadConst:
			if m.sp >= len(m.stack) {
				return Value{}, m.overflow()
			}
			m.stack[m.sp] = inst.Const
			m.sp++

		case OpLoadVar:
			frame, err := m.frame(inst.A, inst.B)
			if err != nil {
				return Value{}, err
			}
			if m.sp >= len(m.stack) {
				return Value{}, m.overflow()
			}
			m.stack[m.sp] = m.Heap.FrameSlot(frame, inst.B)
			m.sp++

		case OpLoadGlobal:
			i, err := m.resolve(inst)
			if err != nil {
				return Value{}, err
			}
			if m.sp >= len(m.stack) {
				return Value{}, m.overflow()
			}
			m.stack[m.sp] = m.globals.Get(i)
			m.sp++

		case OpDefineGlobal:
			m.globals.Define(inst.Name, m.stack[m.sp-1])
			m.stack[m.sp-1] = Void

		case OpAssignVar:
			frame, err := m.frame(inst.A, inst.B)
			if err != nil {
				return Value{}, err
			}
			m.Heap.SetFrameSlot(frame, inst.B, m.stack[m.sp-1])
			m.stack[m.sp-1] = Void

		case OpAssignGlobal:
			i, err := m.resolve(inst)
			if err != nil {
				return Value{}, err
			}
			m.globals.Set(i, m.stack[m.sp-1])
			m.stack[m.sp-1] = Void

		case OpJump:
			m.pc = Addr(inst.A)

		case OpJumpIfFalse:
			m.sp--
			v := m.stack[m.sp]
			m.stack[m.sp] = Value{}
			if v.IsFalse() {
				m.pc = Addr(inst.A)
			}

		case OpMakeClosure:
			arity, body := Arity(inst.A), Addr(inst.B)
			if m.sp >= len(m.stack) {
				return Value{}, m.overflow()
			}
			if err := m.Reserve(ClosureCells); err != nil {
				return Value{}, err
			}
			m.stack[m.sp] = m.Heap.NewClosure(arity, body, m.env)
			m.sp++

		case OpCall:
			if err := m.call(inst.A); err != nil {
				return Value{}, err
			}

		case OpTailCall:
			r, err := m.TailApply(inst.A)
			if err != nil {
				return Value{}, err
			}
			m.pc = r.Addr
			m.env = r.Env

		case OpReturn:
			done, res, err := m.ret()
			if err != nil {
				return Value{}, err
			}
			if done {
				return res, nil
			}

		case OpPop:
			m.sp--
			m.stack[m.sp] = Value{}

		case OpCons:
			if err := m.Reserve(PairCells); err != nil {
				return Value{}, err
			}
			pair := m.Heap.Cons(m.stack[m.sp-2], m.stack[m.sp-1])
			m.sp--
			m.stack[m.sp] = Value{}
			m.stack[m.sp-1] = pair

		case OpBoundary:

		case OpEnd:
			return Value{}, Errorf(ErrMalformed, "executed end-of-stream marker")

		default:
			return Value{}, Errorf(ErrMalformed, "invalid opcode %d", inst.Op)
		}
	}
}

// frame walks depth outer links from the current environment.
func (m *Machine) frame(depth, slot int) (Ref, error) {
	frame := m.env
	for range depth {
		if frame == 0 {
			break
		}
		frame = m.Heap.FrameOuter(frame)
	}
	if frame == 0 {
		return 0, Errorf(ErrMalformed, "no frame at depth %d", depth)
	}
	if slot < 0 || slot >= m.Heap.FrameLen(frame) {
		return 0, Errorf(ErrMalformed, "slot %d out of frame of %d", slot, m.Heap.FrameLen(frame))
	}
	return frame, nil
}

// resolve memoizes the global index named by a by-name instruction.
func (m *Machine) resolve(inst *Instr) (int, error) {
	if inst.table == m.globals {
		return inst.index, nil
	}
	i, ok := m.globals.Lookup(inst.Name)
	if !ok {
		return 0, Errorf(ErrName, "%s", inst.Name.S)
	}
	inst.table = m.globals
	inst.index = i
	return i, nil
}

func (m *Machine) ret() (done bool, res Value, err error) {
	m.sp--
	res = m.stack[m.sp]
	m.stack[m.sp] = Value{}
	if m.sp <= m.base {
		return true, res, nil
	}
	if m.sp-2 < m.base {
		return false, res, Errorf(ErrMalformed, "corrupt stack: no return record")
	}
	addr := m.stack[m.sp-1]
	env := m.stack[m.sp-2]
	if addr.Kind != KindSavedAddress || env.Kind != KindSavedEnv {
		return false, res, Errorf(ErrMalformed, "corrupt stack: expecting return record, got %s %s", env.Kind, addr.Kind)
	}
	m.sp -= 2
	clear(m.stack[m.sp : m.sp+2])
	if m.sp > m.base && m.stack[m.sp-1].Kind == KindSavedGlobals {
		m.sp--
		m.globals = m.tables[m.stack[m.sp].Index()]
		m.stack[m.sp] = Value{}
	}
	m.pc = addr.Addr()
	m.env = env.Ref()
	m.stack[m.sp] = res
	m.sp++
	return false, res, nil
}

func (m *Machine) notApplicable(callee Value) error {
	return Errorf(ErrApplicability, "%s", m.describe(callee))
}

func (m *Machine) arityError(name string, argc int) error {
	return Errorf(ErrArity, "%s: got %d", name, argc)
}

func (m *Machine) call(argc int) error {
	calleeIdx := m.sp - argc - 1
	if calleeIdx < m.base {
		return Errorf(ErrMalformed, "stack underflow during call")
	}
	callee := m.stack[calleeIdx]

	switch callee.Kind {

	case KindPrimitive:
		return m.callPrimitive(calleeIdx, argc)

	case KindClosure:
		return m.enterClosure(calleeIdx, argc, false)

	case KindHighPrimitive:
		p := m.highPrimitives[callee.Index()]
		if !acceptsArgs(p.MinArgs, p.MaxArgs, argc) {
			return m.arityError(p.Name, argc)
		}
		// save the return point beneath the call region so the primitive
		// always acts in tail position
		if m.sp+2 > len(m.stack) {
			return m.overflow()
		}
		copy(m.stack[calleeIdx+2:], m.stack[calleeIdx:m.sp])
		m.stack[calleeIdx] = EnvValue(m.env)
		m.stack[calleeIdx+1] = AddressValue(m.pc)
		m.sp += 2
		r, err := p.Func(m, argc)
		if err != nil {
			return err
		}
		m.pc = r.Addr
		m.env = r.Env
		return nil

	}
	return m.notApplicable(callee)
}

func (m *Machine) callPrimitive(calleeIdx, argc int) error {
	p := m.primitives[m.stack[calleeIdx].Index()]
	if !acceptsArgs(p.MinArgs, p.MaxArgs, argc) {
		return m.arityError(p.Name, argc)
	}
	res, err := p.Func(m, m.stack[calleeIdx+1:m.sp])
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			err = Errorf(ErrType, "%s: %v", p.Name, err)
		} else if e.Msg != "" && e.Kind == ErrType {
			e.Msg = p.Name + ": " + e.Msg
		}
		return err
	}
	m.stack[calleeIdx] = res
	clear(m.stack[calleeIdx+1 : m.sp])
	m.sp = calleeIdx + 1
	return nil
}

// TailApply transfers control to the callee sitting beneath the top argc
// values without saving a return point. Primitive results continue at the
// return stub.
func (m *Machine) TailApply(argc int) (Resume, error) {
	calleeIdx := m.sp - argc - 1
	if calleeIdx < m.base {
		return Resume{}, Errorf(ErrMalformed, "stack underflow during call")
	}
	callee := m.stack[calleeIdx]

	switch callee.Kind {

	case KindPrimitive:
		if err := m.callPrimitive(calleeIdx, argc); err != nil {
			return Resume{}, err
		}
		return Resume{Addr: m.returnStub, Env: m.env}, nil

	case KindClosure:
		if err := m.enterClosure(calleeIdx, argc, true); err != nil {
			return Resume{}, err
		}
		return Resume{Addr: m.pc, Env: m.env}, nil

	case KindHighPrimitive:
		p := m.highPrimitives[callee.Index()]
		if !acceptsArgs(p.MinArgs, p.MaxArgs, argc) {
			return Resume{}, m.arityError(p.Name, argc)
		}
		return p.Func(m, argc)

	}
	return Resume{}, m.notApplicable(callee)
}

// enterClosure binds the arguments into a new frame and jumps to the body.
// Non-tail calls leave [saved env, return address] in place of the call
// region.
func (m *Machine) enterClosure(calleeIdx, argc int, tail bool) error {
	arity := m.Heap.ClosureArity(m.stack[calleeIdx])
	if !arity.Accepts(argc) {
		return Errorf(ErrArity, "procedure expects %s arguments, got %d", arity, argc)
	}
	if !tail && calleeIdx+2 > len(m.stack) {
		return m.overflow()
	}
	required := arity.Required()
	cells := FrameCells(arity.FrameSize())
	if arity.Variadic() {
		cells += PairCells * (argc - required)
	}
	if err := m.Reserve(cells); err != nil {
		return err
	}

	closure := m.stack[calleeIdx]
	args := m.stack[calleeIdx+1 : m.sp]
	frame := m.Heap.NewFrame(m.Heap.ClosureEnv(closure), arity.FrameSize())
	for i := range required {
		m.Heap.SetFrameSlot(frame, i, args[i])
	}
	if arity.Variadic() {
		rest := Nil
		for i := argc - 1; i >= required; i-- {
			rest = m.Heap.Cons(args[i], rest)
		}
		m.Heap.SetFrameSlot(frame, required, rest)
	}
	body := m.Heap.ClosureBody(closure)

	clear(m.stack[calleeIdx:m.sp])
	if tail {
		m.sp = calleeIdx
	} else {
		m.stack[calleeIdx] = EnvValue(m.env)
		m.stack[calleeIdx+1] = AddressValue(m.pc)
		m.sp = calleeIdx + 2
	}
	m.env = frame
	m.pc = body
	return nil
}

// Apply is a convenience for high primitives: it replaces the top argc
// values and the callee with proc and args, then tail-applies proc.
func (m *Machine) Apply(proc Value, args []Value) (Resume, error) {
	if m.sp+1+len(args) > len(m.stack) {
		return Resume{}, m.overflow()
	}
	m.stack[m.sp] = proc
	m.sp++
	for _, arg := range args {
		m.stack[m.sp] = arg
		m.sp++
	}
	return m.TailApply(len(args))
}

func (m *Machine) describe(v Value) string {
	if name := m.PrimitiveName(v); name != "" {
		return fmt.Sprintf("#<primitive %s>", name)
	}
	return v.String()
}
