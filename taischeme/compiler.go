package taischeme

import (
	"github.com/reusee/taischeme/taivm"
)

// Compiler is the seed compiler. It translates Nodes into instructions
// appended to a Program, and its output is instruction-for-instruction the
// same as that of compiler.scm running on the machine.
type Compiler struct {
	program *taivm.Program
	symbols *taivm.Symbols
}

func NewCompiler(program *taivm.Program, symbols *taivm.Symbols) *Compiler {
	return &Compiler{
		program: program,
		symbols: symbols,
	}
}

// lexical scope, one per closure frame
type scope struct {
	names []*taivm.Text
	outer *scope
}

func (s *scope) lookup(name *taivm.Text) (depth, slot int, ok bool) {
	for ; s != nil; s = s.outer {
		for i, n := range s.names {
			if n == name {
				return depth, i, true
			}
		}
		depth++
	}
	return 0, 0, false
}

func (c *Compiler) errorf(n *Node, format string, args ...any) error {
	return taivm.Errorf(taivm.ErrMalformed, format+": %s", append(args, n)...)
}

func (c *Compiler) sym(name string) *Node {
	return AtomNode(c.symbols.Intern(name))
}

func (c *Compiler) emit(inst taivm.Instr) taivm.Addr {
	return c.program.Append(inst)
}

func (c *Compiler) finish(tail bool) {
	if tail {
		c.emit(taivm.Simple(taivm.OpReturn))
	}
}

// CompileTopLevel compiles one top-level expression in tail position
// followed by a boundary marker, returning its entry address. On error
// nothing is left in the program.
func (c *Compiler) CompileTopLevel(n *Node) (taivm.Addr, error) {
	start := c.program.NextAddress()
	if err := c.compile(n, nil, true); err != nil {
		c.program.Truncate(start)
		return 0, err
	}
	c.emit(taivm.Simple(taivm.OpBoundary))
	return start, nil
}

func (c *Compiler) compile(n *Node, s *scope, tail bool) error {
	switch {
	case n.IsSymbol():
		c.reference(n, s)
		c.finish(tail)
		return nil
	case n.IsPair():
		return c.compilePair(n, s, tail)
	}
	v := n.Value
	if n.IsList {
		v = taivm.Nil
	}
	c.emit(taivm.LoadConst(v))
	c.finish(tail)
	return nil
}

func (c *Compiler) reference(n *Node, s *scope) {
	if depth, slot, ok := s.lookup(n.Value.Text()); ok {
		c.emit(taivm.LoadVar(depth, slot))
	} else {
		c.emit(taivm.LoadGlobal(n.Value))
	}
}

var derivedForms = map[string]bool{
	"let":    true,
	"let*":   true,
	"letrec": true,
	"cond":   true,
	"and":    true,
	"or":     true,
	"when":   true,
	"unless": true,
}

func (c *Compiler) compilePair(n *Node, s *scope, tail bool) error {
	if !n.Proper() {
		return c.errorf(n, "improper form")
	}
	head := n.List[0]
	if head.IsSymbol() {
		switch name := head.Value.Str(); name {

		case "quote":
			if n.Len() != 2 {
				return c.errorf(n, "bad quote")
			}
			c.compileQuote(n.List[1])
			c.finish(tail)
			return nil

		case "if":
			return c.compileIf(n, s, tail)

		case "define":
			return c.compileDefine(n, s, tail)

		case "set!":
			return c.compileSet(n, s, tail)

		case "lambda":
			if n.Len() < 3 {
				return c.errorf(n, "bad lambda")
			}
			if err := c.compileLambda(n.List[1], n.List[2:], s); err != nil {
				return err
			}
			c.finish(tail)
			return nil

		case "begin":
			return c.compileBody(n.List[1:], s, tail)

		default:
			if derivedForms[name] {
				expanded, err := c.expand(n)
				if err != nil {
					return err
				}
				return c.compile(expanded, s, tail)
			}
		}
	}
	return c.compileApplication(n, s, tail)
}

func (c *Compiler) compileQuote(d *Node) {
	if !d.IsList {
		c.emit(taivm.LoadConst(d.Value))
		return
	}
	c.quoteList(d.List, d.Tail)
}

func (c *Compiler) quoteList(items []*Node, tail *Node) {
	if len(items) == 0 {
		if tail == nil {
			c.emit(taivm.LoadConst(taivm.Nil))
		} else {
			c.compileQuote(tail)
		}
		return
	}
	c.compileQuote(items[0])
	c.quoteList(items[1:], tail)
	c.emit(taivm.Simple(taivm.OpCons))
}

func (c *Compiler) compileIf(n *Node, s *scope, tail bool) error {
	if n.Len() != 3 && n.Len() != 4 {
		return c.errorf(n, "bad if")
	}
	if err := c.compile(n.List[1], s, false); err != nil {
		return err
	}
	jif := c.emit(taivm.JumpIfFalse(0))
	if err := c.compile(n.List[2], s, tail); err != nil {
		return err
	}
	jmp := c.emit(taivm.Jump(0))
	if err := c.program.PatchTarget(jif, c.program.NextAddress()); err != nil {
		return err
	}
	if n.Len() == 3 {
		c.emit(taivm.LoadConst(taivm.Void))
		c.finish(tail)
	} else if err := c.compile(n.List[3], s, tail); err != nil {
		return err
	}
	return c.program.PatchTarget(jmp, c.program.NextAddress())
}

func (c *Compiler) compileDefine(n *Node, s *scope, tail bool) error {
	if n.Len() < 2 {
		return c.errorf(n, "bad define")
	}
	if n.List[1].IsPair() {
		expanded, err := c.expandDefine(n)
		if err != nil {
			return err
		}
		return c.compile(expanded, s, tail)
	}
	if n.Len() != 3 || !n.List[1].IsSymbol() {
		return c.errorf(n, "bad define")
	}
	if s != nil {
		return c.errorf(n, "define not at top level")
	}
	if err := c.compile(n.List[2], s, false); err != nil {
		return err
	}
	c.emit(taivm.DefineGlobal(n.List[1].Value))
	c.finish(tail)
	return nil
}

func (c *Compiler) compileSet(n *Node, s *scope, tail bool) error {
	if n.Len() != 3 || !n.List[1].IsSymbol() {
		return c.errorf(n, "bad set!")
	}
	if err := c.compile(n.List[2], s, false); err != nil {
		return err
	}
	name := n.List[1].Value
	if depth, slot, ok := s.lookup(name.Text()); ok {
		c.emit(taivm.AssignVar(depth, slot))
	} else {
		c.emit(taivm.AssignGlobal(name))
	}
	c.finish(tail)
	return nil
}

// parameters returns the frame slot names and arity of a lambda list
func (c *Compiler) parameters(params *Node) ([]*taivm.Text, taivm.Arity, error) {
	if params.IsSymbol() {
		return []*taivm.Text{params.Value.Text()}, taivm.VariadicArity(0), nil
	}
	if !params.IsList {
		return nil, 0, c.errorf(params, "bad parameter list")
	}
	var names []*taivm.Text
	for _, param := range params.List {
		if !param.IsSymbol() {
			return nil, 0, c.errorf(params, "bad parameter list")
		}
		names = append(names, param.Value.Text())
	}
	if params.Tail == nil {
		return names, taivm.FixedArity(len(names)), nil
	}
	if !params.Tail.IsSymbol() {
		return nil, 0, c.errorf(params, "bad parameter list")
	}
	required := len(names)
	names = append(names, params.Tail.Value.Text())
	return names, taivm.VariadicArity(required), nil
}

func (c *Compiler) compileLambda(params *Node, body []*Node, s *scope) error {
	names, arity, err := c.parameters(params)
	if err != nil {
		return err
	}
	body, err = c.expandBody(body)
	if err != nil {
		return err
	}
	jmp := c.emit(taivm.Jump(0))
	start := c.program.NextAddress()
	inner := &scope{
		names: names,
		outer: s,
	}
	if err := c.compileBody(body, inner, true); err != nil {
		return err
	}
	if err := c.program.PatchTarget(jmp, c.program.NextAddress()); err != nil {
		return err
	}
	c.emit(taivm.MakeClosure(arity, start))
	return nil
}

func (c *Compiler) compileBody(body []*Node, s *scope, tail bool) error {
	if len(body) == 0 {
		c.emit(taivm.LoadConst(taivm.Void))
		c.finish(tail)
		return nil
	}
	for _, expr := range body[:len(body)-1] {
		if err := c.compile(expr, s, false); err != nil {
			return err
		}
		c.emit(taivm.Simple(taivm.OpPop))
	}
	return c.compile(body[len(body)-1], s, tail)
}

func (c *Compiler) compileApplication(n *Node, s *scope, tail bool) error {
	for _, expr := range n.List {
		if err := c.compile(expr, s, false); err != nil {
			return err
		}
	}
	argc := n.Len() - 1
	if tail {
		c.emit(taivm.TailCall(argc))
	} else {
		c.emit(taivm.Call(argc))
	}
	return nil
}
