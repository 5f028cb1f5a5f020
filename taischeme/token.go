package taischeme

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/reusee/taischeme/taivm"
)

type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenOpen
	TokenClose
	TokenQuote
	TokenDot
	TokenDatum
)

type Token struct {
	Kind  TokenKind
	Value taivm.Value // for TokenDatum
	Line  int
}

// punctuation characters carried by encoded tokens
var punctuation = map[TokenKind]rune{
	TokenOpen:  '(',
	TokenClose: ')',
	TokenQuote: '\'',
	TokenDot:   '.',
}

type Lexer struct {
	name    string
	in      io.RuneScanner
	symbols *taivm.Symbols
	line    int
}

func NewLexer(name string, r io.Reader, symbols *taivm.Symbols) *Lexer {
	in, ok := r.(io.RuneScanner)
	if !ok {
		in = bufio.NewReader(r)
	}
	return &Lexer{
		name:    name,
		in:      in,
		symbols: symbols,
		line:    1,
	}
}

func (l *Lexer) errorf(format string, args ...any) error {
	prefix := l.name
	if prefix == "" {
		prefix = "input"
	}
	return taivm.Errorf(taivm.ErrMalformed, "%s:%d: "+format, append([]any{prefix, l.line}, args...)...)
}

func (l *Lexer) read() (rune, error) {
	r, _, err := l.in.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == '\n' {
		l.line++
	}
	return r, nil
}

func (l *Lexer) unread(r rune) {
	if r == '\n' {
		l.line--
	}
	_ = l.in.UnreadRune()
}

func isDelimiter(r rune) bool {
	switch r {
	case '(', ')', '"', ';', '\'':
		return true
	}
	return unicode.IsSpace(r)
}

// Next returns the next token. End of input is a TokenEOF, not an error.
func (l *Lexer) Next() (Token, error) {
	for {
		r, err := l.read()
		if errors.Is(err, io.EOF) {
			return Token{Kind: TokenEOF, Line: l.line}, nil
		} else if err != nil {
			return Token{}, err
		}

		switch {
		case unicode.IsSpace(r):
			continue

		case r == ';':
			for {
				r, err := l.read()
				if err != nil || r == '\n' {
					break
				}
			}
			continue

		case r == '(':
			return Token{Kind: TokenOpen, Line: l.line}, nil
		case r == ')':
			return Token{Kind: TokenClose, Line: l.line}, nil
		case r == '\'':
			return Token{Kind: TokenQuote, Line: l.line}, nil

		case r == '"':
			return l.readString()

		case r == '#':
			return l.readHash()
		}

		l.unread(r)
		word, err := l.readWord()
		if err != nil {
			return Token{}, err
		}
		if word == "." {
			return Token{Kind: TokenDot, Line: l.line}, nil
		}
		v, err := l.atom(word)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokenDatum, Value: v, Line: l.line}, nil
	}
}

func (l *Lexer) readWord() (string, error) {
	var b strings.Builder
	for {
		r, err := l.read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return "", err
		}
		if isDelimiter(r) {
			l.unread(r)
			break
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func (l *Lexer) atom(word string) (taivm.Value, error) {
	if looksNumeric(word) {
		if i, err := strconv.ParseInt(word, 10, 64); err == nil {
			return taivm.Int(i), nil
		} else if errors.Is(err, strconv.ErrRange) {
			return taivm.Value{}, l.errorf("integer literal out of range: %s", word)
		}
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return taivm.Float(f), nil
		}
		return taivm.Value{}, l.errorf("bad number literal: %s", word)
	}
	return l.symbols.Intern(word), nil
}

func looksNumeric(word string) bool {
	s := word
	if len(s) > 1 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return len(s) > 1 && s[0] == '.' && s[1] >= '0' && s[1] <= '9'
}

func (l *Lexer) readString() (Token, error) {
	line := l.line
	var b strings.Builder
	for {
		r, err := l.read()
		if errors.Is(err, io.EOF) {
			return Token{}, l.errorf("unterminated string starting at line %d", line)
		} else if err != nil {
			return Token{}, err
		}
		switch r {
		case '"':
			return Token{Kind: TokenDatum, Value: taivm.String(b.String()), Line: line}, nil
		case '\\':
			r, err := l.read()
			if err != nil {
				return Token{}, l.errorf("unterminated string starting at line %d", line)
			}
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '0':
				b.WriteRune(0)
			case '\\', '"':
				b.WriteRune(r)
			default:
				return Token{}, l.errorf("unknown string escape \\%c", r)
			}
		default:
			b.WriteRune(r)
		}
	}
}

var charNames = map[string]rune{
	"space":   ' ',
	"newline": '\n',
	"tab":     '\t',
	"nul":     0,
	"return":  '\r',
}

func (l *Lexer) readHash() (Token, error) {
	r, err := l.read()
	if err != nil {
		return Token{}, l.errorf("unexpected end of input after #")
	}
	switch r {
	case '\\':
		first, err := l.read()
		if err != nil {
			return Token{}, l.errorf("unexpected end of input in character literal")
		}
		rest, err := l.readWord()
		if err != nil {
			return Token{}, err
		}
		if rest == "" {
			return Token{Kind: TokenDatum, Value: taivm.Char(first), Line: l.line}, nil
		}
		name := string(first) + rest
		c, ok := charNames[strings.ToLower(name)]
		if !ok {
			return Token{}, l.errorf("unknown character name: %s", name)
		}
		return Token{Kind: TokenDatum, Value: taivm.Char(c), Line: l.line}, nil
	}

	l.unread(r)
	word, err := l.readWord()
	if err != nil {
		return Token{}, err
	}
	switch word {
	case "t", "true":
		return Token{Kind: TokenDatum, Value: taivm.True, Line: l.line}, nil
	case "f", "false":
		return Token{Kind: TokenDatum, Value: taivm.False, Line: l.line}, nil
	}
	return Token{}, l.errorf("bad # syntax: #%s", word)
}

// EncodeToken represents a token as a value for code running on the machine:
// punctuation is the pair (undefined . char), end of input is the pair
// (undefined . undefined), and data tokens are themselves. The caller must
// have reserved taivm.PairCells.
func EncodeToken(heap *taivm.Heap, tok Token) taivm.Value {
	switch tok.Kind {
	case TokenDatum:
		return tok.Value
	case TokenEOF:
		return heap.Cons(taivm.Undefined, taivm.Undefined)
	}
	return heap.Cons(taivm.Undefined, taivm.Char(punctuation[tok.Kind]))
}

// TokenMarker reports whether an encoded token is punctuation or end of
// input, returning the punctuation character.
func TokenMarker(heap *taivm.Heap, v taivm.Value) (c rune, eof bool, ok bool) {
	if v.Kind != taivm.KindPair || heap.First(v).Kind != taivm.KindUndefined {
		return 0, false, false
	}
	rest := heap.Rest(v)
	if rest.Kind == taivm.KindUndefined {
		return 0, true, true
	}
	return rest.Char(), false, true
}
