package taischeme

import (
	"testing"

	"github.com/reusee/taischeme/taivm"
)

func TestNumbers(t *testing.T) {
	interp := testInterpreter(t, SeedCompiler)
	expectResults(t, interp, [][2]string{
		{"(+)", "0"},
		{"(*)", "1"},
		{"(+ 1 2.5)", "3.5"},
		{"(- 5)", "-5"},
		{"(- 10 1 2)", "7"},
		{"(* 2 3 4)", "24"},
		{"(/ 6 3)", "2"},
		{"(/ 1 2)", "0.5"},
		{"(/ 2)", "0.5"},
		{"(/ 6.0 3)", "2.0"},
		{"(quotient -7 2)", "-3"},
		{"(remainder -7 2)", "-1"},
		{"(modulo -7 2)", "1"},
		{"(modulo 7 -2)", "-1"},
		{"(= 1 1.0)", "#t"},
		{"(< 1 2 3)", "#t"},
		{"(< 1 3 2)", "#f"},
		{"(>= 3 3 1)", "#t"},
		{"(abs -4)", "4"},
		{"(abs -1.5)", "1.5"},
		{"(min 3 1 2)", "1"},
		{"(max 1 2.0)", "2.0"},
		{"(integer? 2.0)", "#t"},
		{"(integer? 2.5)", "#f"},
		{"(exact? 1)", "#t"},
		{"(inexact? 1.0)", "#t"},
		{"(zero? 0.0)", "#t"},
		{"(positive? -1)", "#f"},
		{"(negative? -1)", "#t"},
		{"(even? 4)", "#t"},
		{"(odd? 4)", "#f"},
		{"(exact->inexact 3)", "3.0"},
		{"(inexact->exact 3.0)", "3"},
		{"(number->string 42)", `"42"`},
		{"(number->string 2.0)", `"2.0"`},
		{`(string->number "12")`, "12"},
		{`(string->number "-1.5")`, "-1.5"},
		{`(string->number "zz")`, "#f"},
		{"(number? 'a)", "#f"},
	})

	for _, src := range []string{
		"(+ 1 'a)",
		"(< 1 \"2\")",
		"(quotient 1 0)",
		"(even? 1.5)",
		"(inexact->exact 1.5)",
		"(zero? 'a)",
	} {
		_, err := interp.RunString("test", src)
		expectKind(t, err, taivm.ErrType)
	}
}

func TestLists(t *testing.T) {
	interp := testInterpreter(t, SeedCompiler)
	expectResults(t, interp, [][2]string{
		{"(cons 1 '())", "(1)"},
		{"(car '(1 2))", "1"},
		{"(cdr '(1 2))", "(2)"},
		{"(cadr '(1 2 3))", "2"},
		{"(cddr '(1 2 3))", "(3)"},
		{"(caddr '(1 2 3))", "3"},
		{"(caar '((1) 2))", "1"},
		{"(cdar '((1 . 4) 2))", "4"},
		{"(cdddr '(1 2 3 4))", "(4)"},
		{"(cadddr '(1 2 3 4))", "4"},
		{"(list)", "()"},
		{"(list 1 2 3)", "(1 2 3)"},
		{"(length '())", "0"},
		{"(length '(1 2 3))", "3"},
		{"(append)", "()"},
		{"(append '(1) '(2) '(3 4) 5)", "(1 2 3 4 . 5)"},
		{"(append '() '())", "()"},
		{"(reverse '(1 2 3))", "(3 2 1)"},
		{"(list-tail '(1 2 3) 1)", "(2 3)"},
		{"(list-ref '(1 2 3) 2)", "3"},
		{"(memq 'c '(a b c d))", "(c d)"},
		{"(memv 1.5 '(1 1.5))", "(1.5)"},
		{"(member '(1) '(2 (1) 3))", "((1) 3)"},
		{"(memq 'z '(a b))", "#f"},
		{"(assq 'b '((a . 1) (b . 2)))", "(b . 2)"},
		{"(assv 2 '((1 . a) (2 . b)))", "(2 . b)"},
		{`(assoc "b" '(("a" . 1) ("b" . 2)))`, `("b" . 2)`},
		{"(pair? '())", "#f"},
		{"(null? '())", "#t"},
		{"(list? '(1 . 2))", "#f"},
		{"(list? '(1 2))", "#t"},
	})

	for _, src := range []string{
		"(car '())",
		"(cadr '(1))",
		"(length '(1 . 2))",
		"(append '(1 . 2) '(3))",
		"(list-ref '(1) 1)",
		"(assq 'a '(1))",
		"(set-car! '() 1)",
	} {
		_, err := interp.RunString("test", src)
		expectKind(t, err, taivm.ErrType)
	}
}

func TestEquivalence(t *testing.T) {
	interp := testInterpreter(t, SeedCompiler)
	expectResults(t, interp, [][2]string{
		{"(eq? 'a 'a)", "#t"},
		{"(eq? '() '())", "#t"},
		{`(eq? "a" "a")`, "#f"},
		{`(equal? "a" "a")`, "#t"},
		{"(eqv? 1.5 1.5)", "#t"},
		{"(eqv? 1 1.0)", "#f"},
		{"(eq? (list 1) (list 1))", "#f"},
		{`(equal? '(1 (2 #\a "s")) (list 1 (list 2 #\a "s")))`, "#t"},
		{"(equal? '(1 2) '(1 3))", "#f"},
		{"(not #f)", "#t"},
		{"(not '())", "#f"},
		{"(boolean? #f)", "#t"},
	})
}

func TestStringsAndChars(t *testing.T) {
	interp := testInterpreter(t, SeedCompiler)
	expectResults(t, interp, [][2]string{
		{`(string-append "a" "b" "")`, `"ab"`},
		{`(string-length "héllo")`, "5"},
		{`(substring "hello" 1 3)`, `"el"`},
		{`(substring "hello" 2)`, `"llo"`},
		{`(string=? "a" "a" "a")`, "#t"},
		{`(string<? "a" "b")`, "#t"},
		{"(symbol->string 'abc)", `"abc"`},
		{`(string->symbol "x")`, "x"},
		{`(eq? (string->symbol "x") 'x)`, "#t"},
		{`(string? "s")`, "#t"},
		{"(symbol? 's)", "#t"},
		{`(char? #\a)`, "#t"},
		{`(char->integer #\A)`, "65"},
		{"(integer->char 97)", `#\a`},
		{`(char=? #\a #\a)`, "#t"},
		{`(char<? #\a #\b)`, "#t"},
		{`"tab\there"`, `"tab\there"`},
	})

	for _, src := range []string{
		`(substring "abc" 2 1)`,
		`(string-append "a" 1)`,
		"(symbol->string \"s\")",
		"(integer->char -1)",
	} {
		_, err := interp.RunString("test", src)
		expectKind(t, err, taivm.ErrType)
	}
}

func TestParseNumber(t *testing.T) {
	for s, expected := range map[string]string{
		"1":    "1",
		"-2":   "-2",
		"+3":   "3",
		"1.5":  "1.5",
		".5":   "0.5",
		"1e3":  "1000",
		"abc":  "",
		"-":    "",
		"1x":   "",
		"-.5x": "",
	} {
		v, ok := ParseNumber(s)
		if expected == "" {
			if ok {
				t.Fatalf("%s: got %v", s, v)
			}
			continue
		}
		if !ok || v.String() != expected {
			t.Fatalf("%s: got %v", s, v)
		}
	}
}
