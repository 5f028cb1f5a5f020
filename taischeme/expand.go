package taischeme

import (
	"github.com/reusee/taischeme/taivm"
)

// expand rewrites a derived form into core forms. The rewrites match the
// ones in compiler.scm exactly.
func (c *Compiler) expand(n *Node) (*Node, error) {
	args := n.List[1:]
	switch n.List[0].Value.Str() {

	case "let":
		return c.expandLet(n)

	case "let*":
		return c.expandLetStar(n)

	case "letrec":
		return c.expandLetrec(n)

	case "cond":
		return c.expandCond(n, args)

	case "and":
		switch len(args) {
		case 0:
			return AtomNode(taivm.True), nil
		case 1:
			return args[0], nil
		}
		return ListNode(
			c.sym("if"),
			args[0],
			ListNode(append([]*Node{c.sym("and")}, args[1:]...)...),
			AtomNode(taivm.False),
		), nil

	case "or":
		switch len(args) {
		case 0:
			return AtomNode(taivm.False), nil
		case 1:
			return args[0], nil
		}
		tmp := c.sym("%or-tmp")
		return ListNode(
			c.sym("let"),
			ListNode(ListNode(tmp, args[0])),
			ListNode(
				c.sym("if"),
				tmp,
				tmp,
				ListNode(append([]*Node{c.sym("or")}, args[1:]...)...),
			),
		), nil

	case "when":
		if len(args) < 1 {
			return nil, c.errorf(n, "bad when")
		}
		return ListNode(
			c.sym("if"),
			args[0],
			ListNode(append([]*Node{c.sym("begin")}, args[1:]...)...),
		), nil

	case "unless":
		if len(args) < 1 {
			return nil, c.errorf(n, "bad unless")
		}
		return ListNode(
			c.sym("if"),
			args[0],
			ListNode(c.sym("begin")),
			ListNode(append([]*Node{c.sym("begin")}, args[1:]...)...),
		), nil

	}
	return nil, c.errorf(n, "unknown form")
}

// bindings splits ((name init) ...) into names and inits
func (c *Compiler) bindings(n *Node) (names, inits []*Node, err error) {
	if !n.IsList || !n.Proper() {
		return nil, nil, c.errorf(n, "bad bindings")
	}
	for _, b := range n.List {
		if !b.IsList || b.Len() != 2 || !b.Proper() || !b.List[0].IsSymbol() {
			return nil, nil, c.errorf(n, "bad bindings")
		}
		names = append(names, b.List[0])
		inits = append(inits, b.List[1])
	}
	return
}

func (c *Compiler) lambdaNode(params *Node, body []*Node) *Node {
	return ListNode(append([]*Node{c.sym("lambda"), params}, body...)...)
}

// (let ((v e) ...) body ...) => ((lambda (v ...) body ...) e ...)
// (let name ((v e) ...) body ...) => ((letrec ((name (lambda (v ...) body ...))) name) e ...)
func (c *Compiler) expandLet(n *Node) (*Node, error) {
	if n.Len() < 3 {
		return nil, c.errorf(n, "bad let")
	}
	if name := n.List[1]; name.IsSymbol() {
		if n.Len() < 4 {
			return nil, c.errorf(n, "bad let")
		}
		names, inits, err := c.bindings(n.List[2])
		if err != nil {
			return nil, err
		}
		letrec := ListNode(
			c.sym("letrec"),
			ListNode(ListNode(name, c.lambdaNode(ListNode(names...), n.List[3:]))),
			name,
		)
		return ListNode(append([]*Node{letrec}, inits...)...), nil
	}
	names, inits, err := c.bindings(n.List[1])
	if err != nil {
		return nil, err
	}
	lambda := c.lambdaNode(ListNode(names...), n.List[2:])
	return ListNode(append([]*Node{lambda}, inits...)...), nil
}

func (c *Compiler) expandLetStar(n *Node) (*Node, error) {
	if n.Len() < 3 || !n.List[1].IsList {
		return nil, c.errorf(n, "bad let*")
	}
	bindings, body := n.List[1], n.List[2:]
	if bindings.Len() <= 1 {
		return ListNode(append([]*Node{c.sym("let"), bindings}, body...)...), nil
	}
	return ListNode(
		c.sym("let"),
		ListNode(bindings.List[0]),
		ListNode(append([]*Node{c.sym("let*"), ListNode(bindings.List[1:]...)}, body...)...),
	), nil
}

// (letrec ((v e) ...) body ...) => (let () (define v e) ... body ...)
func (c *Compiler) expandLetrec(n *Node) (*Node, error) {
	if n.Len() < 3 {
		return nil, c.errorf(n, "bad letrec")
	}
	names, inits, err := c.bindings(n.List[1])
	if err != nil {
		return nil, err
	}
	items := []*Node{c.sym("let"), ListNode()}
	for i, name := range names {
		items = append(items, ListNode(c.sym("define"), name, inits[i]))
	}
	items = append(items, n.List[2:]...)
	return ListNode(items...), nil
}

func (c *Compiler) expandCond(n *Node, clauses []*Node) (*Node, error) {
	if len(clauses) == 0 {
		return ListNode(c.sym("begin")), nil
	}
	clause, rest := clauses[0], clauses[1:]
	if !clause.IsPair() || !clause.Proper() {
		return nil, c.errorf(n, "bad cond clause")
	}
	if clause.List[0].Is("else") {
		return ListNode(append([]*Node{c.sym("begin")}, clause.List[1:]...)...), nil
	}
	next := ListNode(append([]*Node{c.sym("cond")}, rest...)...)
	if clause.Len() == 1 {
		return ListNode(c.sym("or"), clause.List[0], next), nil
	}
	// (test => receiver)
	if clause.List[1].Is("=>") {
		if clause.Len() != 3 {
			return nil, c.errorf(n, "bad cond clause")
		}
		tmp := c.sym("%cond-tmp")
		return ListNode(
			c.sym("let"),
			ListNode(ListNode(tmp, clause.List[0])),
			ListNode(
				c.sym("if"),
				tmp,
				ListNode(clause.List[2], tmp),
				next,
			),
		), nil
	}
	return ListNode(
		c.sym("if"),
		clause.List[0],
		ListNode(append([]*Node{c.sym("begin")}, clause.List[1:]...)...),
		next,
	), nil
}

// (define (name . params) body ...) => (define name (lambda params body ...))
func (c *Compiler) expandDefine(n *Node) (*Node, error) {
	target := n.List[1]
	if n.Len() < 3 {
		return nil, c.errorf(n, "bad define")
	}
	params := DottedNode(target.List[1:], target.Tail)
	return ListNode(c.sym("define"), target.List[0], c.lambdaNode(params, n.List[2:])), nil
}

// expandBody turns leading internal defines into a binding lambda:
//
//	((lambda (v ...) (set! v e) ... body ...) undefined ...)
func (c *Compiler) expandBody(body []*Node) ([]*Node, error) {
	var names, sets []*Node
	i := 0
	for ; i < len(body); i++ {
		d := body[i]
		if !d.IsPair() || !d.List[0].Is("define") {
			break
		}
		if d.Len() >= 2 && d.List[1].IsPair() {
			var err error
			if d, err = c.expandDefine(d); err != nil {
				return nil, err
			}
		}
		if d.Len() != 3 || !d.List[1].IsSymbol() {
			return nil, c.errorf(d, "bad define")
		}
		names = append(names, d.List[1])
		sets = append(sets, ListNode(c.sym("set!"), d.List[1], d.List[2]))
	}
	if len(names) == 0 {
		return body, nil
	}
	inner := append(sets, body[i:]...)
	call := []*Node{c.lambdaNode(ListNode(names...), inner)}
	for range names {
		call = append(call, AtomNode(taivm.Undefined))
	}
	return []*Node{ListNode(call...)}, nil
}
