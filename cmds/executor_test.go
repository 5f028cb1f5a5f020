package cmds

import (
	"strings"
	"testing"
)

func TestExecutor(t *testing.T) {
	executor := NewExecutor()

	var cells int
	executor.Define("-small-heap", Func(func() {
		cells = 64
	}))
	executor.Define("-heap-cells", Func(func(n int) {
		cells = n
	}))

	if err := executor.Execute([]string{
		"-small-heap",
	}); err != nil {
		t.Fatal(err)
	}
	if cells != 64 {
		t.Fatalf("got %v", cells)
	}

	if err := executor.Execute([]string{
		"-heap-cells", "1024",
	}); err != nil {
		t.Fatal(err)
	}
	if cells != 1024 {
		t.Fatalf("got %v", cells)
	}

	err := executor.Execute([]string{
		"foo",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown command: foo") {
		t.Fatalf("got %v", err)
	}

	err = executor.Execute([]string{
		"-heap-cells", "many",
	})
	if err == nil || !strings.Contains(err.Error(), "-heap-cells: convert many to int") {
		t.Fatalf("got %v", err)
	}

	err = executor.Execute([]string{
		"-heap-cells",
	})
	if err == nil || !strings.Contains(err.Error(), "expecting int argument") {
		t.Fatalf("got %v", err)
	}
}

func TestSubCommands(t *testing.T) {
	executor := NewExecutor()
	var file string
	var stack int
	executor.Define("run", Sub(map[string]*Command{
		"-stack": Func(func(n int) {
			stack = n
		}),
		"file": Func(func(path string) {
			file = path
		}),
	}))

	if err := executor.Execute([]string{
		"run",
		"-stack", "42",
		"file", "loop.scm",
	}); err != nil {
		t.Fatal(err)
	}
	if stack != 42 {
		t.Fatalf("got %v", stack)
	}
	if file != "loop.scm" {
		t.Fatalf("got %v", file)
	}

	// sub commands are only visible after their parent
	err := NewExecutor().Execute([]string{"file", "x"})
	if err == nil {
		t.Fatal("should error")
	}
}

func TestDuplicatedSubCommand(t *testing.T) {
	executor := NewExecutor()
	executor.Define("run", Sub(map[string]*Command{
		"a": nil,
	}))
	executor.Define("compile", Sub(map[string]*Command{
		"a": nil,
	}))
	err := executor.Execute([]string{"run", "compile"})
	if err == nil || !strings.Contains(err.Error(), "duplicated sub command: compile a") {
		t.Fatalf("got %v", err)
	}
}

func TestDuplicatedCommand(t *testing.T) {
	executor := NewExecutor()
	defer func() {
		if p := recover(); p == nil {
			t.Fatal("should panic")
		}
	}()
	executor.Define("help", Func(func() {}))
}

func TestOptionalArgument(t *testing.T) {
	executor := NewExecutor()
	var path string
	var output string
	executor.Define("compile", Func(func(in *string, out *string) {
		path = *in
		output = *out
	}))

	err := executor.Execute([]string{"compile", "a.scm", "a.tsbc"})
	if err != nil {
		t.Fatal(err)
	}
	if path != "a.scm" || output != "a.tsbc" {
		t.Fatalf("got %v %v", path, output)
	}

	err = executor.Execute([]string{"compile", "b.scm"})
	if err != nil {
		t.Fatal(err)
	}
	if path != "b.scm" || output != "" {
		t.Fatalf("got %v %v", path, output)
	}

	err = executor.Execute([]string{"compile"})
	if err != nil {
		t.Fatal(err)
	}
	if path != "" || output != "" {
		t.Fatalf("got %v %v", path, output)
	}
}

func TestCommandError(t *testing.T) {
	executor := NewExecutor()
	executor.Define("fail", Func(func() error {
		return errFailed
	}))
	if err := executor.Execute([]string{"fail"}); err != errFailed {
		t.Fatalf("got %v", err)
	}
}

type failedError struct{}

func (failedError) Error() string {
	return "failed"
}

var errFailed error = failedError{}
