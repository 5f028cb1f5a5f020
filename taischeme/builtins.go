package taischeme

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/reusee/taischeme/taivm"
)

type (
	Value = taivm.Value
	M     = *taivm.Machine
)

func wantInt(v Value) (int64, error) {
	if v.Kind != taivm.KindInteger {
		return 0, taivm.TypeError("integer", v)
	}
	return v.Int(), nil
}

func wantPair(v Value) error {
	if v.Kind != taivm.KindPair {
		return taivm.TypeError("pair", v)
	}
	return nil
}

func wantString(v Value) (string, error) {
	if v.Kind != taivm.KindString {
		return "", taivm.TypeError("string", v)
	}
	return v.Str(), nil
}

func wantChar(v Value) (rune, error) {
	if v.Kind != taivm.KindCharacter {
		return 0, taivm.TypeError("character", v)
	}
	return v.Char(), nil
}

func toFloat(v Value) float64 {
	if v.Kind == taivm.KindInteger {
		return float64(v.Int())
	}
	return v.Float()
}

func checkNumbers(args []Value) error {
	for _, arg := range args {
		if !arg.IsNumber() {
			return taivm.TypeError("number", arg)
		}
	}
	return nil
}

// arith combines two numbers, staying exact while both are integers and
// ints reports an exact result
func arith(a, b Value, ints func(x, y int64) (int64, bool), floats func(x, y float64) float64) Value {
	if a.Kind == taivm.KindInteger && b.Kind == taivm.KindInteger {
		if r, ok := ints(a.Int(), b.Int()); ok {
			return taivm.Int(r)
		}
	}
	return taivm.Float(floats(toFloat(a), toFloat(b)))
}

func add(a, b Value) Value {
	return arith(a, b,
		func(x, y int64) (int64, bool) { return x + y, true },
		func(x, y float64) float64 { return x + y },
	)
}

func sub(a, b Value) Value {
	return arith(a, b,
		func(x, y int64) (int64, bool) { return x - y, true },
		func(x, y float64) float64 { return x - y },
	)
}

func mul(a, b Value) Value {
	return arith(a, b,
		func(x, y int64) (int64, bool) { return x * y, true },
		func(x, y float64) float64 { return x * y },
	)
}

func div(a, b Value) (Value, error) {
	if b.Kind == taivm.KindInteger && b.Int() == 0 {
		return Value{}, taivm.Errorf(taivm.ErrType, "division by zero")
	}
	return arith(a, b,
		func(x, y int64) (int64, bool) { return x / y, x%y == 0 },
		func(x, y float64) float64 { return x / y },
	), nil
}

func fold(unit Value, op func(a, b Value) Value) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		if err := checkNumbers(args); err != nil {
			return Value{}, err
		}
		acc := unit
		for _, arg := range args {
			acc = op(acc, arg)
		}
		return acc, nil
	}
}

func compare(ints func(x, y int64) bool, floats func(x, y float64) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		if err := checkNumbers(args); err != nil {
			return Value{}, err
		}
		for i := 1; i < len(args); i++ {
			a, b := args[i-1], args[i]
			var ok bool
			if a.Kind == taivm.KindInteger && b.Kind == taivm.KindInteger {
				ok = ints(a.Int(), b.Int())
			} else {
				ok = floats(toFloat(a), toFloat(b))
			}
			if !ok {
				return taivm.False, nil
			}
		}
		return taivm.True, nil
	}
}

func integerDivision(op func(x, y int64) int64) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		x, err := wantInt(args[0])
		if err != nil {
			return Value{}, err
		}
		y, err := wantInt(args[1])
		if err != nil {
			return Value{}, err
		}
		if y == 0 {
			return Value{}, taivm.Errorf(taivm.ErrType, "division by zero")
		}
		return taivm.Int(op(x, y)), nil
	}
}

func extremum(pick func(a, b float64) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		if err := checkNumbers(args); err != nil {
			return Value{}, err
		}
		ret := args[0]
		inexact := false
		for _, arg := range args {
			if arg.Kind == taivm.KindFloat {
				inexact = true
			}
			if pick(toFloat(arg), toFloat(ret)) {
				ret = arg
			}
		}
		if inexact {
			return taivm.Float(toFloat(ret)), nil
		}
		return ret, nil
	}
}

func predicate(fn func(v Value) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		return taivm.Bool(fn(args[0])), nil
	}
}

func numberPredicate(fn func(v Value) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		if !args[0].IsNumber() {
			return Value{}, taivm.TypeError("number", args[0])
		}
		return taivm.Bool(fn(args[0])), nil
	}
}

// ParseNumber parses a numeric literal the way the reader does.
func ParseNumber(s string) (Value, bool) {
	if !looksNumeric(s) {
		return Value{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return taivm.Int(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return taivm.Float(f), true
	}
	return Value{}, false
}

// ListLength counts the elements of a proper list, rejecting improper and
// cyclic lists.
func ListLength(heap *taivm.Heap, v Value) (int, error) {
	n := 0
	slow := v
	for v.Kind == taivm.KindPair {
		n++
		v = heap.Rest(v)
		if n%2 == 0 {
			slow = heap.Rest(slow)
			if v.Kind == taivm.KindPair && taivm.Eq(v, slow) {
				return 0, taivm.Errorf(taivm.ErrType, "cyclic list")
			}
		}
	}
	if v.Kind != taivm.KindNil {
		return 0, taivm.TypeError("list", v)
	}
	return n, nil
}

// ListItems collects the elements of a list already checked by ListLength.
func ListItems(heap *taivm.Heap, v Value) []Value {
	var ret []Value
	for v.Kind == taivm.KindPair {
		ret = append(ret, heap.First(v))
		v = heap.Rest(v)
	}
	return ret
}

// cxr composes car and cdr, applying path right to left like the name
func cxr(path string) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		v := args[0]
		for i := len(path) - 1; i >= 0; i-- {
			if err := wantPair(v); err != nil {
				return Value{}, err
			}
			if path[i] == 'a' {
				v = m.Heap.First(v)
			} else {
				v = m.Heap.Rest(v)
			}
		}
		return v, nil
	}
}

// Equal is structural equality, terminating on cyclic data.
func Equal(heap *taivm.Heap, a, b Value) bool {
	return equal(heap, a, b, make(map[[2]taivm.Ref]bool))
}

func equal(heap *taivm.Heap, a, b Value, seen map[[2]taivm.Ref]bool) bool {
	for {
		if a.Kind == taivm.KindString && b.Kind == taivm.KindString {
			return a.Str() == b.Str()
		}
		if a.Kind != taivm.KindPair || b.Kind != taivm.KindPair {
			return taivm.Eqv(a, b)
		}
		key := [2]taivm.Ref{a.Ref(), b.Ref()}
		if seen[key] {
			return true
		}
		seen[key] = true
		if !equal(heap, heap.First(a), heap.First(b), seen) {
			return false
		}
		a, b = heap.Rest(a), heap.Rest(b)
	}
}

func member(same func(heap *taivm.Heap, a, b Value) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		for list := args[1]; list.Kind == taivm.KindPair; list = m.Heap.Rest(list) {
			if same(m.Heap, args[0], m.Heap.First(list)) {
				return list, nil
			}
		}
		return taivm.False, nil
	}
}

func assoc(same func(heap *taivm.Heap, a, b Value) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		for list := args[1]; list.Kind == taivm.KindPair; list = m.Heap.Rest(list) {
			entry := m.Heap.First(list)
			if err := wantPair(entry); err != nil {
				return Value{}, err
			}
			if same(m.Heap, args[0], m.Heap.First(entry)) {
				return entry, nil
			}
		}
		return taivm.False, nil
	}
}

func eqFunc(heap *taivm.Heap, a, b Value) bool {
	return taivm.Eq(a, b)
}

func eqvFunc(heap *taivm.Heap, a, b Value) bool {
	return taivm.Eqv(a, b)
}

func output(m M, s string) error {
	if _, err := io.WriteString(m.Output, s); err != nil {
		return taivm.Errorf(taivm.ErrResource, "output: %v", err)
	}
	return nil
}

func stringCompare(cmp func(a, b string) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		for i := range args {
			if _, err := wantString(args[i]); err != nil {
				return Value{}, err
			}
		}
		for i := 1; i < len(args); i++ {
			if !cmp(args[i-1].Str(), args[i].Str()) {
				return taivm.False, nil
			}
		}
		return taivm.True, nil
	}
}

func charCompare(cmp func(a, b rune) bool) taivm.PrimitiveFunc {
	return func(m M, args []Value) (Value, error) {
		for i := range args {
			if _, err := wantChar(args[i]); err != nil {
				return Value{}, err
			}
		}
		for i := 1; i < len(args); i++ {
			if !cmp(args[i-1].Char(), args[i].Char()) {
				return taivm.False, nil
			}
		}
		return taivm.True, nil
	}
}

// Builtins is the primitive set shared by the user and compiler global
// tables.
var Builtins = []taivm.Primitive{

	// numbers
	{Name: "+", MaxArgs: -1, Func: fold(taivm.Int(0), add)},
	{Name: "*", MaxArgs: -1, Func: fold(taivm.Int(1), mul)},
	{Name: "-", MinArgs: 1, MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		if err := checkNumbers(args); err != nil {
			return Value{}, err
		}
		if len(args) == 1 {
			return sub(taivm.Int(0), args[0]), nil
		}
		acc := args[0]
		for _, arg := range args[1:] {
			acc = sub(acc, arg)
		}
		return acc, nil
	}},
	{Name: "/", MinArgs: 1, MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		if err := checkNumbers(args); err != nil {
			return Value{}, err
		}
		if len(args) == 1 {
			return div(taivm.Int(1), args[0])
		}
		acc := args[0]
		for _, arg := range args[1:] {
			var err error
			if acc, err = div(acc, arg); err != nil {
				return Value{}, err
			}
		}
		return acc, nil
	}},
	{Name: "quotient", MinArgs: 2, MaxArgs: 2, Func: integerDivision(func(x, y int64) int64 {
		return x / y
	})},
	{Name: "remainder", MinArgs: 2, MaxArgs: 2, Func: integerDivision(func(x, y int64) int64 {
		return x % y
	})},
	{Name: "modulo", MinArgs: 2, MaxArgs: 2, Func: integerDivision(func(x, y int64) int64 {
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return r
	})},
	{Name: "=", MinArgs: 1, MaxArgs: -1, Func: compare(
		func(x, y int64) bool { return x == y },
		func(x, y float64) bool { return x == y },
	)},
	{Name: "<", MinArgs: 1, MaxArgs: -1, Func: compare(
		func(x, y int64) bool { return x < y },
		func(x, y float64) bool { return x < y },
	)},
	{Name: ">", MinArgs: 1, MaxArgs: -1, Func: compare(
		func(x, y int64) bool { return x > y },
		func(x, y float64) bool { return x > y },
	)},
	{Name: "<=", MinArgs: 1, MaxArgs: -1, Func: compare(
		func(x, y int64) bool { return x <= y },
		func(x, y float64) bool { return x <= y },
	)},
	{Name: ">=", MinArgs: 1, MaxArgs: -1, Func: compare(
		func(x, y int64) bool { return x >= y },
		func(x, y float64) bool { return x >= y },
	)},
	{Name: "abs", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		v := args[0]
		switch v.Kind {
		case taivm.KindInteger:
			if v.Int() < 0 {
				return taivm.Int(-v.Int()), nil
			}
			return v, nil
		case taivm.KindFloat:
			return taivm.Float(math.Abs(v.Float())), nil
		}
		return Value{}, taivm.TypeError("number", v)
	}},
	{Name: "min", MinArgs: 1, MaxArgs: -1, Func: extremum(func(a, b float64) bool { return a < b })},
	{Name: "max", MinArgs: 1, MaxArgs: -1, Func: extremum(func(a, b float64) bool { return a > b })},
	{Name: "number?", MinArgs: 1, MaxArgs: 1, Func: predicate(Value.IsNumber)},
	{Name: "integer?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		switch v.Kind {
		case taivm.KindInteger:
			return true
		case taivm.KindFloat:
			return v.Float() == math.Trunc(v.Float())
		}
		return false
	})},
	{Name: "float?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindFloat
	})},
	{Name: "exact?", MinArgs: 1, MaxArgs: 1, Func: numberPredicate(func(v Value) bool {
		return v.Kind == taivm.KindInteger
	})},
	{Name: "inexact?", MinArgs: 1, MaxArgs: 1, Func: numberPredicate(func(v Value) bool {
		return v.Kind == taivm.KindFloat
	})},
	{Name: "zero?", MinArgs: 1, MaxArgs: 1, Func: numberPredicate(func(v Value) bool {
		return toFloat(v) == 0
	})},
	{Name: "positive?", MinArgs: 1, MaxArgs: 1, Func: numberPredicate(func(v Value) bool {
		return toFloat(v) > 0
	})},
	{Name: "negative?", MinArgs: 1, MaxArgs: 1, Func: numberPredicate(func(v Value) bool {
		return toFloat(v) < 0
	})},
	{Name: "even?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		i, err := wantInt(args[0])
		return taivm.Bool(i%2 == 0), err
	}},
	{Name: "odd?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		i, err := wantInt(args[0])
		return taivm.Bool(i%2 != 0), err
	}},
	{Name: "exact->inexact", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		if !args[0].IsNumber() {
			return Value{}, taivm.TypeError("number", args[0])
		}
		return taivm.Float(toFloat(args[0])), nil
	}},
	{Name: "inexact->exact", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		v := args[0]
		switch v.Kind {
		case taivm.KindInteger:
			return v, nil
		case taivm.KindFloat:
			f := v.Float()
			if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
				return Value{}, taivm.Errorf(taivm.ErrType, "no exact representation of %s", formatFloat(f))
			}
			return taivm.Int(int64(f)), nil
		}
		return Value{}, taivm.TypeError("number", v)
	}},
	{Name: "number->string", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		v := args[0]
		switch v.Kind {
		case taivm.KindInteger:
			return taivm.String(strconv.FormatInt(v.Int(), 10)), nil
		case taivm.KindFloat:
			return taivm.String(formatFloat(v.Float())), nil
		}
		return Value{}, taivm.TypeError("number", v)
	}},
	{Name: "string->number", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		s, err := wantString(args[0])
		if err != nil {
			return Value{}, err
		}
		if v, ok := ParseNumber(s); ok {
			return v, nil
		}
		return taivm.False, nil
	}},

	// pairs and lists
	{Name: "cons", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		if err := m.Reserve(taivm.PairCells); err != nil {
			return Value{}, err
		}
		return m.Cons(args[0], args[1]), nil
	}},
	{Name: "car", MinArgs: 1, MaxArgs: 1, Func: cxr("a")},
	{Name: "cdr", MinArgs: 1, MaxArgs: 1, Func: cxr("d")},
	{Name: "caar", MinArgs: 1, MaxArgs: 1, Func: cxr("aa")},
	{Name: "cadr", MinArgs: 1, MaxArgs: 1, Func: cxr("ad")},
	{Name: "cdar", MinArgs: 1, MaxArgs: 1, Func: cxr("da")},
	{Name: "cddr", MinArgs: 1, MaxArgs: 1, Func: cxr("dd")},
	{Name: "caddr", MinArgs: 1, MaxArgs: 1, Func: cxr("add")},
	{Name: "cdddr", MinArgs: 1, MaxArgs: 1, Func: cxr("ddd")},
	{Name: "cadddr", MinArgs: 1, MaxArgs: 1, Func: cxr("addd")},
	{Name: "set-car!", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		if err := wantPair(args[0]); err != nil {
			return Value{}, err
		}
		m.Heap.SetFirst(args[0], args[1])
		return taivm.Void, nil
	}},
	{Name: "set-cdr!", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		if err := wantPair(args[0]); err != nil {
			return Value{}, err
		}
		m.Heap.SetRest(args[0], args[1])
		return taivm.Void, nil
	}},
	{Name: "list", MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		if err := m.Reserve(taivm.PairCells * len(args)); err != nil {
			return Value{}, err
		}
		ret := taivm.Nil
		for i := len(args) - 1; i >= 0; i-- {
			ret = m.Cons(args[i], ret)
		}
		return ret, nil
	}},
	{Name: "length", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		n, err := ListLength(m.Heap, args[0])
		return taivm.Int(int64(n)), err
	}},
	{Name: "append", MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		if len(args) == 0 {
			return taivm.Nil, nil
		}
		// built back to front, one reservation per list
		m.Pin(args[len(args)-1])
		defer m.Unpin()
		for i := len(args) - 2; i >= 0; i-- {
			n, err := ListLength(m.Heap, args[i])
			if err != nil {
				return Value{}, err
			}
			if err := m.Reserve(taivm.PairCells * n); err != nil {
				return Value{}, err
			}
			items := ListItems(m.Heap, args[i])
			ret := m.Pinned()
			for j := len(items) - 1; j >= 0; j-- {
				ret = m.Cons(items[j], ret)
			}
			m.Pin(ret)
		}
		return m.Pinned(), nil
	}},
	{Name: "reverse", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		n, err := ListLength(m.Heap, args[0])
		if err != nil {
			return Value{}, err
		}
		if err := m.Reserve(taivm.PairCells * n); err != nil {
			return Value{}, err
		}
		ret := taivm.Nil
		for v := args[0]; v.Kind == taivm.KindPair; v = m.Rest(v) {
			ret = m.Cons(m.First(v), ret)
		}
		return ret, nil
	}},
	{Name: "list-tail", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		k, err := wantInt(args[1])
		if err != nil {
			return Value{}, err
		}
		v := args[0]
		for ; k > 0; k-- {
			if err := wantPair(v); err != nil {
				return Value{}, err
			}
			v = m.Rest(v)
		}
		return v, nil
	}},
	{Name: "list-ref", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		k, err := wantInt(args[1])
		if err != nil {
			return Value{}, err
		}
		v := args[0]
		for ; k > 0; k-- {
			if err := wantPair(v); err != nil {
				return Value{}, err
			}
			v = m.Rest(v)
		}
		if err := wantPair(v); err != nil {
			return Value{}, err
		}
		return m.First(v), nil
	}},
	{Name: "memq", MinArgs: 2, MaxArgs: 2, Func: member(eqFunc)},
	{Name: "memv", MinArgs: 2, MaxArgs: 2, Func: member(eqvFunc)},
	{Name: "member", MinArgs: 2, MaxArgs: 2, Func: member(Equal)},
	{Name: "assq", MinArgs: 2, MaxArgs: 2, Func: assoc(eqFunc)},
	{Name: "assv", MinArgs: 2, MaxArgs: 2, Func: assoc(eqvFunc)},
	{Name: "assoc", MinArgs: 2, MaxArgs: 2, Func: assoc(Equal)},
	{Name: "pair?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindPair
	})},
	{Name: "null?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindNil
	})},
	{Name: "list?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		_, err := ListLength(m.Heap, args[0])
		return taivm.Bool(err == nil), nil
	}},

	// equivalence
	{Name: "eq?", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		return taivm.Bool(taivm.Eq(args[0], args[1])), nil
	}},
	{Name: "eqv?", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		return taivm.Bool(taivm.Eqv(args[0], args[1])), nil
	}},
	{Name: "equal?", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
		return taivm.Bool(Equal(m.Heap, args[0], args[1])), nil
	}},
	{Name: "not", MinArgs: 1, MaxArgs: 1, Func: predicate(Value.IsFalse)},

	// symbols, strings and characters
	{Name: "symbol?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindSymbol
	})},
	{Name: "string?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindString
	})},
	{Name: "char?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindCharacter
	})},
	{Name: "boolean?", MinArgs: 1, MaxArgs: 1, Func: predicate(func(v Value) bool {
		return v.Kind == taivm.KindBoolean
	})},
	{Name: "procedure?", MinArgs: 1, MaxArgs: 1, Func: predicate(Value.IsProcedure)},
	{Name: "symbol->string", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		if args[0].Kind != taivm.KindSymbol {
			return Value{}, taivm.TypeError("symbol", args[0])
		}
		return taivm.String(args[0].Str()), nil
	}},
	{Name: "string->symbol", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		s, err := wantString(args[0])
		if err != nil {
			return Value{}, err
		}
		return m.Symbols.Intern(s), nil
	}},
	{Name: "string-append", MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		var b strings.Builder
		for _, arg := range args {
			s, err := wantString(arg)
			if err != nil {
				return Value{}, err
			}
			b.WriteString(s)
		}
		return taivm.String(b.String()), nil
	}},
	{Name: "string-length", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		s, err := wantString(args[0])
		return taivm.Int(int64(len([]rune(s)))), err
	}},
	{Name: "substring", MinArgs: 2, MaxArgs: 3, Func: func(m M, args []Value) (Value, error) {
		s, err := wantString(args[0])
		if err != nil {
			return Value{}, err
		}
		runes := []rune(s)
		start, err := wantInt(args[1])
		if err != nil {
			return Value{}, err
		}
		end := int64(len(runes))
		if len(args) > 2 {
			if end, err = wantInt(args[2]); err != nil {
				return Value{}, err
			}
		}
		if start < 0 || end > int64(len(runes)) || start > end {
			return Value{}, taivm.Errorf(taivm.ErrType, "range [%d, %d) out of string of length %d", start, end, len(runes))
		}
		return taivm.String(string(runes[start:end])), nil
	}},
	{Name: "string=?", MinArgs: 1, MaxArgs: -1, Func: stringCompare(func(a, b string) bool { return a == b })},
	{Name: "string<?", MinArgs: 1, MaxArgs: -1, Func: stringCompare(func(a, b string) bool { return a < b })},
	{Name: "char->integer", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		c, err := wantChar(args[0])
		return taivm.Int(int64(c)), err
	}},
	{Name: "integer->char", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		i, err := wantInt(args[0])
		if err != nil {
			return Value{}, err
		}
		if i < 0 || i > math.MaxInt32 {
			return Value{}, taivm.Errorf(taivm.ErrType, "no character %d", i)
		}
		return taivm.Char(rune(i)), nil
	}},
	{Name: "char=?", MinArgs: 1, MaxArgs: -1, Func: charCompare(func(a, b rune) bool { return a == b })},
	{Name: "char<?", MinArgs: 1, MaxArgs: -1, Func: charCompare(func(a, b rune) bool { return a < b })},

	// output
	{Name: "display", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		return taivm.Void, output(m, Format(m, args[0], false))
	}},
	{Name: "write", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		return taivm.Void, output(m, Format(m, args[0], true))
	}},
	{Name: "newline", Func: func(m M, args []Value) (Value, error) {
		return taivm.Void, output(m, "\n")
	}},

	// control and runtime
	{Name: "error", MinArgs: 1, MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		parts := []string{Format(m, args[0], false)}
		for _, arg := range args[1:] {
			parts = append(parts, Format(m, arg, true))
		}
		return Value{}, taivm.Errorf(taivm.ErrUser, "%s", strings.Join(parts, " "))
	}},
	{Name: "void", MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
		return taivm.Void, nil
	}},
	{Name: "eof-object?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
		_, eof, ok := TokenMarker(m.Heap, args[0])
		return taivm.Bool(ok && eof), nil
	}},
	{Name: "collect-garbage", Func: func(m M, args []Value) (Value, error) {
		return taivm.Void, m.Collect()
	}},
	{Name: "heap-stats", Func: func(m M, args []Value) (Value, error) {
		if err := m.Reserve(taivm.PairCells * 4); err != nil {
			return Value{}, err
		}
		stats := m.Heap.Stats()
		ret := taivm.Nil
		for _, n := range []int{stats.Limit, stats.Used, stats.Capacity, stats.Collections} {
			ret = m.Cons(taivm.Int(int64(n)), ret)
		}
		return ret, nil
	}},
}

// apply spreads its last argument onto the stack and tail-applies the
// procedure, so (apply f ...) in tail position stays a tail call.
var applyPrimitive = taivm.HighPrimitive{
	Name:    "apply",
	MinArgs: 2,
	MaxArgs: -1,
	Func: func(m M, argc int) (taivm.Resume, error) {
		stack := m.Stack()
		region := stack[len(stack)-argc:]
		proc := region[0]
		list := region[argc-1]
		if _, err := ListLength(m.Heap, list); err != nil {
			return taivm.Resume{}, err
		}
		args := append([]Value(nil), region[1:argc-1]...)
		args = append(args, ListItems(m.Heap, list)...)
		m.Drop(argc + 1)
		return m.Apply(proc, args)
	},
}
