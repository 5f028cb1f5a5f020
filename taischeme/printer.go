package taischeme

import (
	"io"
	"strconv"
	"strings"

	"github.com/reusee/taischeme/taivm"
)

var writeCharNames = map[rune]string{
	' ':  "space",
	'\n': "newline",
	'\t': "tab",
	'\r': "return",
	0:    "nul",
}

type printer struct {
	m      *taivm.Machine
	b      *strings.Builder
	write  bool
	active map[taivm.Ref]bool
}

// Format renders v the way display (write false) or write (write true) does.
// Cycles print as "...".
func Format(m *taivm.Machine, v taivm.Value, write bool) string {
	var b strings.Builder
	p := &printer{
		m:      m,
		b:      &b,
		write:  write,
		active: make(map[taivm.Ref]bool),
	}
	p.value(v)
	return b.String()
}

func Print(w io.Writer, m *taivm.Machine, v taivm.Value, write bool) error {
	_, err := io.WriteString(w, Format(m, v, write))
	return err
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (p *printer) value(v taivm.Value) {
	switch v.Kind {

	case taivm.KindPair:
		p.pair(v)

	case taivm.KindFloat:
		p.b.WriteString(formatFloat(v.Float()))

	case taivm.KindString:
		if p.write {
			p.b.WriteString(quoteString(v.Str()))
		} else {
			p.b.WriteString(v.Str())
		}

	case taivm.KindCharacter:
		if !p.write {
			p.b.WriteRune(v.Char())
		} else if name, ok := writeCharNames[v.Char()]; ok {
			p.b.WriteString(`#\` + name)
		} else {
			p.b.WriteString(`#\` + string(v.Char()))
		}

	case taivm.KindClosure:
		p.b.WriteString("#<procedure>")

	case taivm.KindPrimitive, taivm.KindHighPrimitive:
		p.b.WriteString("#<primitive " + p.m.PrimitiveName(v) + ">")

	default:
		p.b.WriteString(v.String())
	}
}

func (p *printer) pair(v taivm.Value) {
	heap := p.m.Heap
	if _, eof, ok := TokenMarker(heap, v); ok && eof {
		p.b.WriteString("#<eof>")
		return
	}
	if p.active[v.Ref()] {
		p.b.WriteString("...")
		return
	}

	var refs []taivm.Ref
	defer func() {
		for _, ref := range refs {
			delete(p.active, ref)
		}
	}()

	p.b.WriteByte('(')
	for {
		p.active[v.Ref()] = true
		refs = append(refs, v.Ref())
		p.value(heap.First(v))
		v = heap.Rest(v)
		if v.Kind == taivm.KindNil {
			break
		}
		if v.Kind != taivm.KindPair {
			p.b.WriteString(" . ")
			p.value(v)
			break
		}
		if p.active[v.Ref()] {
			p.b.WriteString(" ...")
			break
		}
		p.b.WriteByte(' ')
	}
	p.b.WriteByte(')')
}
