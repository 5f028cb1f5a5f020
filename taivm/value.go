package taivm

import (
	"fmt"
	"math"
)

type Kind uint8

const (
	KindNil Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindCharacter
	KindString
	KindSymbol
	KindPrimitive
	KindHighPrimitive
	KindClosure
	KindPair
	KindVoid
	KindUndefined

	// return-channel kinds, never visible to programs
	KindSavedEnv
	KindSavedAddress
	KindSavedGlobals

	// heap object header, only found inside the heap
	kindHeader
)

var kindNames = [...]string{
	KindNil:           "nil",
	KindInteger:       "integer",
	KindFloat:         "float",
	KindBoolean:       "boolean",
	KindCharacter:     "character",
	KindString:        "string",
	KindSymbol:        "symbol",
	KindPrimitive:     "primitive",
	KindHighPrimitive: "high-primitive",
	KindClosure:       "closure",
	KindPair:          "pair",
	KindVoid:          "void",
	KindUndefined:     "undefined",
	KindSavedEnv:      "saved-env",
	KindSavedAddress:  "saved-address",
	KindSavedGlobals:  "saved-globals",
	kindHeader:        "header",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Text is the immutable payload of strings and symbols.
type Text struct {
	S string
}

// Value is a tagged datum. The word holds the payload of every kind except
// strings and symbols, which use text.
type Value struct {
	Kind Kind
	word uint64
	text *Text
}

var (
	Nil       = Value{Kind: KindNil}
	Void      = Value{Kind: KindVoid}
	Undefined = Value{Kind: KindUndefined}
	True      = Value{Kind: KindBoolean, word: 1}
	False     = Value{Kind: KindBoolean}
)

func Int(i int64) Value {
	return Value{Kind: KindInteger, word: uint64(i)}
}

func Float(f float64) Value {
	return Value{Kind: KindFloat, word: math.Float64bits(f)}
}

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Char(r rune) Value {
	return Value{Kind: KindCharacter, word: uint64(r)}
}

func String(s string) Value {
	return Value{Kind: KindString, text: &Text{S: s}}
}

func symbolValue(t *Text) Value {
	return Value{Kind: KindSymbol, text: t}
}

func PrimitiveValue(index int) Value {
	return Value{Kind: KindPrimitive, word: uint64(index)}
}

func HighPrimitiveValue(index int) Value {
	return Value{Kind: KindHighPrimitive, word: uint64(index)}
}

func pairValue(ref Ref) Value {
	return Value{Kind: KindPair, word: uint64(ref)}
}

func closureValue(ref Ref) Value {
	return Value{Kind: KindClosure, word: uint64(ref)}
}

// EnvValue wraps a frame reference. Ref 0 is the global frame.
func EnvValue(ref Ref) Value {
	return Value{Kind: KindSavedEnv, word: uint64(ref)}
}

func AddressValue(addr Addr) Value {
	return Value{Kind: KindSavedAddress, word: uint64(addr)}
}

func globalsValue(index int) Value {
	return Value{Kind: KindSavedGlobals, word: uint64(index)}
}

func (v Value) Int() int64 {
	return int64(v.word)
}

func (v Value) Float() float64 {
	return math.Float64frombits(v.word)
}

func (v Value) Bool() bool {
	return v.word != 0
}

func (v Value) Char() rune {
	return rune(v.word)
}

// Str returns the text of a string or the name of a symbol.
func (v Value) Str() string {
	if v.text == nil {
		return ""
	}
	return v.text.S
}

func (v Value) Text() *Text {
	return v.text
}

func (v Value) Index() int {
	return int(v.word)
}

func (v Value) Ref() Ref {
	return Ref(v.word)
}

func (v Value) Addr() Addr {
	return Addr(v.word)
}

func (v Value) IsFalse() bool {
	return v.Kind == KindBoolean && v.word == 0
}

func (v Value) IsNumber() bool {
	return v.Kind == KindInteger || v.Kind == KindFloat
}

func (v Value) IsProcedure() bool {
	switch v.Kind {
	case KindPrimitive, KindHighPrimitive, KindClosure:
		return true
	}
	return false
}

// IsHeap reports whether the value references a heap object.
func (v Value) IsHeap() bool {
	switch v.Kind {
	case KindPair, KindClosure:
		return true
	case KindSavedEnv:
		return v.word != 0
	}
	return false
}

// Eq is identity comparison.
func Eq(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString, KindSymbol:
		return a.text == b.text
	}
	return a.word == b.word
}

// Eqv is Eq extended with numeric and character value comparison.
func Eqv(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindFloat:
		return a.Float() == b.Float()
	}
	return Eq(a, b)
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("%d", v.Int())
	case KindFloat:
		return fmt.Sprintf("%g", v.Float())
	case KindBoolean:
		if v.Bool() {
			return "#t"
		}
		return "#f"
	case KindCharacter:
		return fmt.Sprintf("#\\%c", v.Char())
	case KindString:
		return fmt.Sprintf("%q", v.Str())
	case KindSymbol:
		return v.Str()
	case KindNil:
		return "()"
	case KindVoid:
		return "#<void>"
	case KindUndefined:
		return "#<undefined>"
	}
	return fmt.Sprintf("#<%s %d>", v.Kind, v.word)
}

// Symbols interns symbol names.
type Symbols struct {
	table map[string]*Text
}

func NewSymbols() *Symbols {
	return &Symbols{
		table: make(map[string]*Text),
	}
}

func (s *Symbols) Intern(name string) Value {
	t, ok := s.table[name]
	if !ok {
		t = &Text{S: name}
		s.table[name] = t
	}
	return symbolValue(t)
}

// Lookup returns the interned symbol without creating one.
func (s *Symbols) Lookup(name string) (Value, bool) {
	t, ok := s.table[name]
	if !ok {
		return Value{}, false
	}
	return symbolValue(t), true
}

func (s *Symbols) Len() int {
	return len(s.table)
}
