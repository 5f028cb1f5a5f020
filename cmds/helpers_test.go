package cmds

import (
	"fmt"
	"testing"
)

func TestVar(t *testing.T) {
	cells := Var[int]("-test-heap-cells")
	compiler := Var[string]("-test-compiler")
	GlobalExecutor.MustExecute([]string{
		"-test-heap-cells", "4096",
		"-test-compiler", "seed",
	})
	if *cells != 4096 {
		t.Fatalf("got %v", *cells)
	}
	if *compiler != "seed" {
		t.Fatalf("got %v", *compiler)
	}
	GlobalExecutor.MustExecute([]string{
		"-test-heap-cells.",
	})
	if *cells != 0 {
		t.Fatalf("got %v", *cells)
	}
}

func TestSwitch(t *testing.T) {
	verify := Switch("TestSwitch")
	GlobalExecutor.MustExecute([]string{
		"TestSwitch",
	})
	if !*verify {
		t.Fatal()
	}
	GlobalExecutor.MustExecute([]string{
		"!TestSwitch",
	})
	if *verify {
		t.Fatal()
	}
}

func TestCollect(t *testing.T) {
	files := Collect[string]("TestCollect")
	GlobalExecutor.MustExecute([]string{
		"TestCollect", "a.scm",
		"TestCollect", "b.scm",
	})
	if str := fmt.Sprintf("%v", *files); str != "[a.scm b.scm]" {
		t.Fatalf("got %s", str)
	}
	GlobalExecutor.MustExecute([]string{
		"TestCollect.",
		"TestCollect", "c.scm",
	})
	if str := fmt.Sprintf("%v", *files); str != "[c.scm]" {
		t.Fatalf("got %s", str)
	}
}

func TestTypedVar(t *testing.T) {
	type Kind string
	v := Var[Kind]("TestTypedVar")
	GlobalExecutor.MustExecute([]string{
		"TestTypedVar", "self",
	})
	if *v != "self" {
		t.Fatalf("got %v", *v)
	}
}
