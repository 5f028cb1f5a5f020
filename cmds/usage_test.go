package cmds

import (
	"bytes"
	"strings"
	"testing"
)

func TestUsage(t *testing.T) {
	executor := NewExecutor()
	buf := new(bytes.Buffer)
	executor.Output = buf
	executor.Define("run", Sub(map[string]*Command{
		"file": Func(func(path string) {
		}).Desc("FILE"),
		"opts": Sub(map[string]*Command{
			"-seed": Func(func() {}).Desc("SEED"),
		}).Desc("OPTS"),
	}).Desc("RUN"))
	executor.Define("compile", Func(func(in string, out *string) {
	}).Desc("COMPILE"))

	executor.PrintUsage()
	out := buf.String()
	for _, want := range []string{
		"--help, -h, -help, help\tprint this usage",
		"compile <string> [string]\tCOMPILE",
		"run\tRUN",
		"  file <string>\tFILE",
		"  opts\tOPTS",
		"    -seed\tSEED",
	} {
		if !strings.Contains(out, want+"\n") {
			t.Fatalf("got %v", out)
		}
	}
	if strings.Index(out, "compile") > strings.Index(out, "run") {
		t.Fatalf("got %v", out)
	}
}

func TestHelpExits(t *testing.T) {
	executor := NewExecutor()
	executor.Output = new(bytes.Buffer)
	code := -1
	executor.exit = func(c int) {
		code = c
	}
	if err := executor.Execute([]string{"-h"}); err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Fatalf("got %v", code)
	}
}
