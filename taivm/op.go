package taivm

import "fmt"

type OpCode uint8

const (
	OpLoadConst OpCode = iota + 1
	OpLoadVar
	OpLoadGlobal
	OpDefineGlobal
	OpAssignVar
	OpAssignGlobal
	OpJump
	OpJumpIfFalse
	OpMakeClosure
	OpCall
	OpTailCall
	OpReturn
	OpPop
	OpCons
	OpBoundary
	OpEnd
)

var opNames = [...]string{
	OpLoadConst:    "load-constant",
	OpLoadVar:      "load-variable",
	OpLoadGlobal:   "load-by-name",
	OpDefineGlobal: "define-global",
	OpAssignVar:    "assign-variable",
	OpAssignGlobal: "assign-by-name",
	OpJump:         "jump",
	OpJumpIfFalse:  "jump-if-false",
	OpMakeClosure:  "make-closure",
	OpCall:         "call",
	OpTailCall:     "tail-call",
	OpReturn:       "return",
	OpPop:          "pop-discard",
	OpCons:         "cons-top-two",
	OpBoundary:     "expression-boundary",
	OpEnd:          "end-of-stream",
}

func (o OpCode) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

func (o OpCode) Valid() bool {
	return o >= OpLoadConst && o <= OpEnd
}

// Arity is a closure parameter descriptor. The high bit marks a variadic
// procedure, the remaining bits count the required parameters.
type Arity uint32

const variadicBit Arity = 1 << 31

func FixedArity(n int) Arity {
	return Arity(n)
}

func VariadicArity(required int) Arity {
	return Arity(required) | variadicBit
}

func (a Arity) Required() int {
	return int(a &^ variadicBit)
}

func (a Arity) Variadic() bool {
	return a&variadicBit != 0
}

// FrameSize is the number of slots a call of this arity binds.
func (a Arity) FrameSize() int {
	if a.Variadic() {
		return a.Required() + 1
	}
	return a.Required()
}

func (a Arity) Accepts(argc int) bool {
	if a.Variadic() {
		return argc >= a.Required()
	}
	return argc == a.Required()
}

func (a Arity) String() string {
	if a.Variadic() {
		return fmt.Sprintf("%d+", a.Required())
	}
	return fmt.Sprintf("%d", a.Required())
}

// Instr is one instruction. Operand use depends on Op:
//
//	LoadVar, AssignVar: A depth, B slot
//	Jump, JumpIfFalse:  A target
//	MakeClosure:        A arity, B body address
//	Call, TailCall:     A argument count
//	LoadConst:          Const
//	by-name ops:        Name
type Instr struct {
	Op    OpCode
	A     int
	B     int
	Const Value
	Name  *Text

	// memo of a by-name instruction, valid for table only
	table *Globals
	index int
}

func LoadConst(v Value) Instr {
	return Instr{Op: OpLoadConst, Const: v}
}

func LoadVar(depth, slot int) Instr {
	return Instr{Op: OpLoadVar, A: depth, B: slot}
}

func LoadGlobal(name Value) Instr {
	return Instr{Op: OpLoadGlobal, Name: name.Text()}
}

func DefineGlobal(name Value) Instr {
	return Instr{Op: OpDefineGlobal, Name: name.Text()}
}

func AssignVar(depth, slot int) Instr {
	return Instr{Op: OpAssignVar, A: depth, B: slot}
}

func AssignGlobal(name Value) Instr {
	return Instr{Op: OpAssignGlobal, Name: name.Text()}
}

func Jump(target Addr) Instr {
	return Instr{Op: OpJump, A: int(target)}
}

func JumpIfFalse(target Addr) Instr {
	return Instr{Op: OpJumpIfFalse, A: int(target)}
}

func MakeClosure(arity Arity, body Addr) Instr {
	return Instr{Op: OpMakeClosure, A: int(arity), B: int(body)}
}

func Call(argc int) Instr {
	return Instr{Op: OpCall, A: argc}
}

func TailCall(argc int) Instr {
	return Instr{Op: OpTailCall, A: argc}
}

func Simple(op OpCode) Instr {
	return Instr{Op: op}
}

// Target returns the jump target or closure body address.
func (i Instr) Target() Addr {
	switch i.Op {
	case OpJump, OpJumpIfFalse:
		return Addr(i.A)
	case OpMakeClosure:
		return Addr(i.B)
	}
	return -1
}

// WithTarget returns a copy of a jump or closure instruction aimed at target.
func (i Instr) WithTarget(target Addr) Instr {
	switch i.Op {
	case OpJump, OpJumpIfFalse:
		i.A = int(target)
	case OpMakeClosure:
		i.B = int(target)
	}
	return i
}

func (i Instr) Resolved() bool {
	return i.table != nil
}

func (i Instr) String() string {
	switch i.Op {
	case OpLoadConst:
		return fmt.Sprintf("%s %v", i.Op, i.Const)
	case OpLoadVar, OpAssignVar:
		return fmt.Sprintf("%s %d %d", i.Op, i.A, i.B)
	case OpLoadGlobal, OpDefineGlobal, OpAssignGlobal:
		if i.Name == nil {
			return i.Op.String()
		}
		return fmt.Sprintf("%s %s", i.Op, i.Name.S)
	case OpJump, OpJumpIfFalse:
		return fmt.Sprintf("%s %d", i.Op, i.A)
	case OpMakeClosure:
		return fmt.Sprintf("%s %s %d", i.Op, Arity(i.A), i.B)
	case OpCall, OpTailCall:
		return fmt.Sprintf("%s %d", i.Op, i.A)
	}
	return i.Op.String()
}
