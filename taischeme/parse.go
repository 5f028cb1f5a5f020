package taischeme

import (
	"io"
	"slices"
	"strings"

	"github.com/reusee/taischeme/taivm"
)

// Node is a datum as seen by the seed compiler. A list node holds its
// elements in List and, for an improper list, the final cdr in Tail.
// The empty list is a list node with no elements.
type Node struct {
	Value  taivm.Value
	List   []*Node
	Tail   *Node
	IsList bool
}

func AtomNode(v taivm.Value) *Node {
	return &Node{Value: v}
}

func ListNode(items ...*Node) *Node {
	return &Node{
		List:   items,
		IsList: true,
	}
}

// DottedNode builds a list node ending in tail, flattening list tails.
func DottedNode(items []*Node, tail *Node) *Node {
	for tail != nil && tail.IsList {
		items = append(slices.Clip(items), tail.List...)
		tail = tail.Tail
	}
	if tail != nil && tail.Value.Kind == taivm.KindNil {
		tail = nil
	}
	if len(items) == 0 && tail != nil {
		return tail
	}
	return &Node{
		List:   items,
		Tail:   tail,
		IsList: true,
	}
}

func (n *Node) IsPair() bool {
	return n.IsList && len(n.List) > 0
}

func (n *Node) IsSymbol() bool {
	return !n.IsList && n.Value.Kind == taivm.KindSymbol
}

// Is reports whether n is the symbol named name.
func (n *Node) Is(name string) bool {
	return n.IsSymbol() && n.Value.Str() == name
}

func (n *Node) Proper() bool {
	return !n.IsList || n.Tail == nil
}

// Len is the number of elements of a list node.
func (n *Node) Len() int {
	return len(n.List)
}

func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if !n.IsList {
		b.WriteString(n.Value.String())
		return
	}
	b.WriteByte('(')
	for i, item := range n.List {
		if i > 0 {
			b.WriteByte(' ')
		}
		item.write(b)
	}
	if n.Tail != nil {
		b.WriteString(" . ")
		n.Tail.write(b)
	}
	b.WriteByte(')')
}

type Parser struct {
	lexer *Lexer
	quote taivm.Value
}

func NewParser(lexer *Lexer) *Parser {
	return &Parser{
		lexer: lexer,
		quote: lexer.symbols.Intern("quote"),
	}
}

// Next returns the next datum, or io.EOF when the input is exhausted.
func (p *Parser) Next() (*Node, error) {
	tok, err := p.lexer.Next()
	if err != nil {
		return nil, err
	}
	if tok.Kind == TokenEOF {
		return nil, io.EOF
	}
	return p.datum(tok)
}

func (p *Parser) datum(tok Token) (*Node, error) {
	switch tok.Kind {
	case TokenDatum:
		return AtomNode(tok.Value), nil
	case TokenQuote:
		quoted, err := p.required()
		if err != nil {
			return nil, err
		}
		return ListNode(AtomNode(p.quote), quoted), nil
	case TokenOpen:
		return p.list()
	case TokenEOF:
		return nil, p.lexer.errorf("unexpected end of input")
	}
	return nil, p.lexer.errorf("unexpected %q", punctuation[tok.Kind])
}

func (p *Parser) required() (*Node, error) {
	tok, err := p.lexer.Next()
	if err != nil {
		return nil, err
	}
	return p.datum(tok)
}

func (p *Parser) list() (*Node, error) {
	var items []*Node
	for {
		tok, err := p.lexer.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokenClose:
			return ListNode(items...), nil
		case TokenDot:
			tail, err := p.required()
			if err != nil {
				return nil, err
			}
			tok, err := p.lexer.Next()
			if err != nil {
				return nil, err
			}
			if tok.Kind != TokenClose {
				return nil, p.lexer.errorf("expecting ) after dotted tail")
			}
			return DottedNode(items, tail), nil
		case TokenEOF:
			return nil, p.lexer.errorf("unexpected end of input")
		}
		item, err := p.datum(tok)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// ParseAll reads every datum from src.
func ParseAll(symbols *taivm.Symbols, name, src string) ([]*Node, error) {
	parser := NewParser(NewLexer(name, strings.NewReader(src), symbols))
	var ret []*Node
	for {
		node, err := parser.Next()
		if err == io.EOF {
			return ret, nil
		} else if err != nil {
			return nil, err
		}
		ret = append(ret, node)
	}
}

// Incomplete reports whether src ends inside an open list or string, so an
// interactive reader should ask for more input.
func Incomplete(src string) bool {
	lexer := NewLexer("", strings.NewReader(src), taivm.NewSymbols())
	depth := 0
	for {
		tok, err := lexer.Next()
		if err != nil {
			return strings.Contains(err.Error(), "unterminated string")
		}
		switch tok.Kind {
		case TokenEOF:
			return depth > 0
		case TokenOpen:
			depth++
		case TokenClose:
			depth--
		}
	}
}

// NodeFromValue converts a heap datum into a Node. Cyclic data and
// procedures are rejected.
func NodeFromValue(heap *taivm.Heap, v taivm.Value) (*Node, error) {
	return nodeFromValue(heap, v, make(map[taivm.Ref]bool))
}

func nodeFromValue(heap *taivm.Heap, v taivm.Value, active map[taivm.Ref]bool) (*Node, error) {
	switch v.Kind {
	case taivm.KindPair, taivm.KindNil:
	case taivm.KindClosure, taivm.KindPrimitive, taivm.KindHighPrimitive:
		return nil, taivm.Errorf(taivm.ErrMalformed, "cannot compile a procedure literal")
	default:
		if v.Kind > taivm.KindUndefined {
			return nil, taivm.Errorf(taivm.ErrMalformed, "cannot compile %s", v.Kind)
		}
		return AtomNode(v), nil
	}

	var items []*Node
	var refs []taivm.Ref
	defer func() {
		for _, ref := range refs {
			delete(active, ref)
		}
	}()
	for v.Kind == taivm.KindPair {
		ref := v.Ref()
		if active[ref] {
			return nil, taivm.Errorf(taivm.ErrMalformed, "cannot compile cyclic data")
		}
		active[ref] = true
		refs = append(refs, ref)
		item, err := nodeFromValue(heap, heap.First(v), active)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		v = heap.Rest(v)
	}
	var tail *Node
	if v.Kind != taivm.KindNil {
		var err error
		tail, err = nodeFromValue(heap, v, active)
		if err != nil {
			return nil, err
		}
	}
	return DottedNode(items, tail), nil
}

// Cells is the number of heap cells BuildValue needs for n.
func (n *Node) Cells() int {
	if !n.IsList {
		return 0
	}
	cells := taivm.PairCells * len(n.List)
	for _, item := range n.List {
		cells += item.Cells()
	}
	if n.Tail != nil {
		cells += n.Tail.Cells()
	}
	return cells
}

// BuildValue allocates n as heap data. n.Cells() cells must be reserved.
func BuildValue(heap *taivm.Heap, n *Node) taivm.Value {
	if !n.IsList {
		return n.Value
	}
	ret := taivm.Nil
	if n.Tail != nil {
		ret = BuildValue(heap, n.Tail)
	}
	for i := len(n.List) - 1; i >= 0; i-- {
		ret = heap.Cons(BuildValue(heap, n.List[i]), ret)
	}
	return ret
}
