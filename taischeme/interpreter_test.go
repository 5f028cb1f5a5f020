package taischeme

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/reusee/taischeme/taivm"
)

func testInterpreter(t *testing.T, kind CompilerKind) *Interpreter {
	t.Helper()
	interp, err := New(Options{
		Compiler: kind,
		Options: taivm.Options{
			VerifyHeap: true,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return interp
}

// eachCompiler runs fn under the seed and the self compiler
func eachCompiler(t *testing.T, fn func(t *testing.T, interp *Interpreter)) {
	for _, kind := range []CompilerKind{SeedCompiler, SelfCompiler} {
		t.Run(string(kind), func(t *testing.T) {
			fn(t, testInterpreter(t, kind))
		})
	}
}

func expectKind(t *testing.T, err error, kind taivm.ErrorKind) *taivm.Error {
	t.Helper()
	var e *taivm.Error
	if !errors.As(err, &e) {
		t.Fatalf("expecting %s, got %v", kind, err)
	}
	if e.Kind != kind {
		t.Fatalf("expecting %s, got %v", kind, err)
	}
	return e
}

func evalString(t *testing.T, interp *Interpreter, src string) string {
	t.Helper()
	v, err := interp.RunString("test", src)
	if err != nil {
		t.Fatalf("%s: %v", src, err)
	}
	return interp.Format(v)
}

func expectResults(t *testing.T, interp *Interpreter, cases [][2]string) {
	t.Helper()
	for _, c := range cases {
		if got := evalString(t, interp, c[0]); got != c[1] {
			t.Fatalf("%s: got %s, expecting %s", c[0], got, c[1])
		}
	}
}

func TestTailLoop(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(define (loop n) (if (= n 0) 0 (loop (- n 1)))) (loop 1000000)`, "0"},
			{`(let loop ((i 0)) (if (< i 100000) (loop (+ i 1)) i))`, "100000"},
			{`(define (count-apply n) (if (= n 0) 'done (apply count-apply (list (- n 1))))) (count-apply 100000)`, "done"},
		})
	})
}

func TestMutation(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(define p (cons 1 2)) (set-car! p 99) p`, "(99 . 2)"},
			{`(set-cdr! p '(3)) p`, "(99 3)"},
			{`(define x 1) (set! x (+ x 1)) x`, "2"},
			{`(define (make-counter) (let ((n 0)) (lambda () (set! n (+ n 1)) n)))
			  (define c (make-counter))
			  (c) (c) (c)`, "3"},
		})
	})
}

func TestSpecialForms(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(if #f 1)`, "#<void>"},
			{`(if '() 1 2)`, "1"},
			{`(begin 1 2 3)`, "3"},
			{`(begin)`, "#<void>"},
			{`'(1 (2 3) . 4)`, "(1 (2 3) . 4)"},
			{`(quote ())`, "()"},
			{`(let loop ((i 0) (acc '())) (if (= i 3) (reverse acc) (loop (+ i 1) (cons i acc))))`, "(0 1 2)"},
			{`(let () 5)`, "5"},
			{`(let* ((x 1) (y (+ x 1))) (* x y))`, "2"},
			{`(let* () 7)`, "7"},
			{`(letrec ((even? (lambda (n) (if (= n 0) #t (odd? (- n 1)))))
			           (odd? (lambda (n) (if (= n 0) #f (even? (- n 1))))))
			    (even? 100))`, "#t"},
			{`(cond (#f 1) ((memq 'c '(a b c))) (else 3))`, "(c)"},
			{`(cond (#f 1) ((= 1 1) 'one 'two))`, "two"},
			{`(cond (#f 1))`, "#<void>"},
			{`(cond ((assv 2 '((1 . a) (2 . b))) => cdr) (else 'no))`, "b"},
			{`(cond ((assv 3 '((1 . a))) => cdr) (else 'no))`, "no"},
			{`(cond (#f => car) ((memq 'b '(a b c)) => length))`, "2"},
			{`(and 1 2 3)`, "3"},
			{`(and)`, "#t"},
			{`(and 1 #f 3)`, "#f"},
			{`(or #f #f)`, "#f"},
			{`(or #f 7)`, "7"},
			{`(or)`, "#f"},
			{`(when #f 1)`, "#<void>"},
			{`(when 1 2 3)`, "3"},
			{`(unless #f 1 2)`, "2"},
			{`(unless #t 1)`, "#<void>"},
		})
	})
}

func TestProcedures(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(define (f . args) args) (f 1 2 3)`, "(1 2 3)"},
			{`(define (g a . rest) (list a rest)) (g 1)`, "(1 ())"},
			{`((lambda x x))`, "()"},
			{`((lambda (a b) (- a b)) 10 3)`, "7"},
			{`(define (h x) (define y (* x 2)) (define (k) (+ y 1)) (k)) (h 5)`, "11"},
			{`(define (adder n) (lambda (x) (+ x n))) ((adder 3) 4)`, "7"},
			{`(procedure? car)`, "#t"},
			{`(procedure? (lambda () 1))`, "#t"},
			{`(procedure? 'car)`, "#f"},
			{`car`, "#<primitive car>"},
			{`(lambda () 1)`, "#<procedure>"},
		})
	})
}

func TestPrelude(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(map (lambda (x) (* x x)) '(1 2 3))`, "(1 4 9)"},
			{`(map + '(1 2) '(10 20 30))`, "(11 22)"},
			{`(define acc '()) (for-each (lambda (x) (set! acc (cons x acc))) '(1 2 3)) acc`, "(3 2 1)"},
			{`(filter odd? '(1 2 3 4 5))`, "(1 3 5)"},
			{`(remove odd? '(1 2 3 4 5))`, "(2 4)"},
			{`(fold-left + 0 '(1 2 3))`, "6"},
			{`(fold-left cons '() '(1 2))`, "((() . 1) . 2)"},
			{`(fold-right cons '() '(1 2))`, "(1 2)"},
			{`(reduce + 0 '(1 2 3 4))`, "10"},
			{`(reduce + 0 '())`, "0"},
			{`(delete 2 '(1 2 3 2))`, "(1 3)"},
			{`(last-pair '(1 2 3))`, "(3)"},
			{`(list-copy '(1 2))`, "(1 2)"},
			{`(list-index even? '(1 3 4))`, "2"},
			{`(iota 3)`, "(0 1 2)"},
			{`(iota 3 1)`, "(1 2 3)"},
			{`(apply + 1 2 '(3 4))`, "10"},
			{`(apply list '())`, "()"},
		})
	})
}

func TestOutput(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		buf := new(bytes.Buffer)
		interp.Machine.Output = buf
		evalString(t, interp, `
			(display "hi") (write "hi") (newline)
			(display #\a) (write #\a) (write #\space)
			(display 1.0) (display '(1 "s" #\c))
			(write '(1 "s" #\c))
		`)
		expected := "hi\"hi\"\na#\\a#\\space1.0(1 s c)(1 \"s\" #\\c)"
		if got := buf.String(); got != expected {
			t.Fatalf("got %q", got)
		}
	})
}

func TestCyclicData(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(define l (list 1 2)) (set-cdr! (cdr l) l) l`, "(1 2 ...)"},
			{`(list? l)`, "#f"},
			{`(equal? l l)`, "#t"},
		})
		_, err := interp.RunString("test", "(length l)")
		expectKind(t, err, taivm.ErrType)
	})
}

func TestErrors(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		_, err := interp.RunString("test", "(foo)")
		e := expectKind(t, err, taivm.ErrName)
		if e.Msg != "foo" {
			t.Fatalf("got %q", e.Msg)
		}

		_, err = interp.RunString("test", "(car 1)")
		e = expectKind(t, err, taivm.ErrType)
		if !strings.HasPrefix(e.Msg, "car: ") {
			t.Fatalf("got %q", e.Msg)
		}

		_, err = interp.RunString("test", `(error "bad thing:" 42 'x "s")`)
		e = expectKind(t, err, taivm.ErrUser)
		if e.Msg != `bad thing: 42 x "s"` {
			t.Fatalf("got %q", e.Msg)
		}

		_, err = interp.RunString("test", "(1 2)")
		expectKind(t, err, taivm.ErrApplicability)

		_, err = interp.RunString("test", "((lambda (x) x))")
		expectKind(t, err, taivm.ErrArity)

		_, err = interp.RunString("test", "(car 1 2)")
		expectKind(t, err, taivm.ErrArity)

		_, err = interp.RunString("test", "(set! undefined-variable 1)")
		expectKind(t, err, taivm.ErrName)

		_, err = interp.RunString("test", "(if)")
		expectKind(t, err, taivm.ErrMalformed)

		_, err = interp.RunString("test", "(+ 1")
		expectKind(t, err, taivm.ErrMalformed)

		_, err = interp.RunString("test", "(apply + 1)")
		expectKind(t, err, taivm.ErrType)

		_, err = interp.RunString("test", "(/ 1 0)")
		expectKind(t, err, taivm.ErrType)
	})
}

func TestStackOverflow(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		_, err := interp.RunString("test", `
			(define (count n) (if (= n 0) 0 (+ 1 (count (- n 1)))))
			(count 1000000)
		`)
		e := expectKind(t, err, taivm.ErrResource)
		if !strings.Contains(e.Msg, "stack overflow") {
			t.Fatalf("got %q", e.Msg)
		}
		if got := evalString(t, interp, "(count 100)"); got != "100" {
			t.Fatalf("got %s", got)
		}
	})
}

func TestRecoverAfterError(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		evalString(t, interp, "(define x 42)")
		if _, err := interp.RunString("test", "(define y 1) (car '())"); err == nil {
			t.Fatal("should fail")
		}
		expectResults(t, interp, [][2]string{
			{"x", "42"},
			{"y", "1"},
			{"(+ x y)", "43"},
		})
		if sp := interp.Machine.SP(); sp != 0 {
			t.Fatalf("stack not empty: %d", sp)
		}
	})
}

func TestCompilerGlobalsIsolated(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		// user definitions named like compiler internals must not break compilation
		expectResults(t, interp, [][2]string{
			{"(define (compile-expression . args) 'user) (define expand 1) (+ 1 2)", "3"},
			{"(compile-expression)", "user"},
			{"(let loop ((i 0)) (if (< i 3) (loop (+ i 1)) i))", "3"},
		})
		_, err := interp.RunString("test", "(emit-return)")
		expectKind(t, err, taivm.ErrName)
	})
}

func TestGarbageCollection(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		before := interp.Machine.Heap.Stats().Collections
		expectResults(t, interp, [][2]string{
			{`(define (build n acc) (if (= n 0) acc (build (- n 1) (cons n acc))))
			  (length (build 100000 '()))`, "100000"},
			{`(collect-garbage)`, "#<void>"},
			{`(length (heap-stats))`, "4"},
		})
		if interp.Machine.Heap.Stats().Collections <= before {
			t.Fatal("no collection")
		}
	})
}

func TestReadAndEval(t *testing.T) {
	eachCompiler(t, func(t *testing.T, interp *Interpreter) {
		expectResults(t, interp, [][2]string{
			{`(define x (read)) (foo bar . 1) x`, "(foo bar . 1)"},
			{`(list (read) (read)) 'a "b"`, `((quote a) "b")`},
			{`(eof-object? (read))`, "#t"},
			{`(eval '(+ 1 2))`, "3"},
			{`(eval (list 'define 'z 5)) z`, "5"},
			{`((eval '(lambda () 7)))`, "7"},
			{`(eval (read)) (* 6 7)`, "42"},
			{`(define (f) (eval '(if #t 'in-eval))) (f)`, "in-eval"},
		})
		_, err := interp.RunString("test", "(read) (")
		expectKind(t, err, taivm.ErrMalformed)
		_, err = interp.RunString("test", "(eval (list 'quote car))")
		expectKind(t, err, taivm.ErrMalformed)
	})
}

func TestKind(t *testing.T) {
	interp, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if interp.Kind() != SelfCompiler {
		t.Fatalf("got %s", interp.Kind())
	}
	_, err = New(Options{Compiler: "bogus"})
	expectKind(t, err, taivm.ErrMalformed)
}
