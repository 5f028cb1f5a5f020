package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/reusee/dscope"
	"github.com/reusee/e5"
	"github.com/reusee/taischeme/cmds"
	"github.com/reusee/taischeme/logs"
	"github.com/reusee/taischeme/modes"
	"github.com/reusee/taischeme/taischeme"
	"github.com/reusee/taischeme/taivm"
	"golang.org/x/term"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

// Action is the work selected on the command line.
type Action func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error

var development = cmds.Switch("-dev")

var (
	action     Action
	actionName string
	actionErr  error
)

func setAction(name string, a Action) {
	if action != nil {
		actionErr = fmt.Errorf("conflicting commands: %s and %s", actionName, name)
		return
	}
	action = a
	actionName = name
}

func init() {
	cmds.Define("run", cmds.Func(func(path string) {
		setAction("run", func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
			return runFile(ctx, logger, interp, path)
		})
	}).Desc("run a source file, - for stdin"))

	cmds.Define("eval", cmds.Func(func(expr string) {
		setAction("eval", func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
			res, err := interp.RunString("eval", expr)
			if err != nil {
				return err
			}
			printResult(interp, res)
			return nil
		})
	}).Desc("evaluate expressions and print the last value"))

	cmds.Define("repl", cmds.Func(func() {
		setAction("repl", runREPL)
	}).Desc("interactive read-eval-print loop"))

	cmds.Define("compile", cmds.Func(func(src string, out string) {
		setAction("compile", func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
			r, closeInput, err := openInput(src)
			if err != nil {
				return err
			}
			defer closeInput()
			data, err := interp.Compile(src, r)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "compiled",
				"source", src,
				"output", out,
				"bytes", len(data),
			)
			return os.WriteFile(out, data, 0644)
		})
	}).Desc("compile a source file to bytecode").Alias("c"))

	cmds.Define("exec", cmds.Func(func(path string) {
		setAction("exec", func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "exec", "file", path)
			_, err = interp.Load(data)
			return err
		})
	}).Desc("execute compiled bytecode"))

	cmds.Define("disasm", cmds.Func(func(path string) {
		setAction("disasm", func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return interp.Disassemble(os.Stdout, data)
		})
	}).Desc("list the instructions of compiled bytecode"))

	cmds.Define("bootstrap", cmds.Func(func(out string) {
		setAction("bootstrap", bootstrap(out))
	}).Desc("compile the compiler with itself and write the image"))
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func runFile(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter, path string) error {
	r, closeInput, err := openInput(path)
	if err != nil {
		return err
	}
	defer closeInput()
	logger.InfoContext(ctx, "run", "file", path)
	_, err = interp.Run(path, r)
	return err
}

func printResult(interp *taischeme.Interpreter, v taivm.Value) {
	if v.Kind == taivm.KindVoid {
		return
	}
	fmt.Fprintln(os.Stdout, interp.Format(v))
}

func bootstrap(out string) Action {
	return func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
		if interp.Kind() != taischeme.SelfCompiler {
			return fmt.Errorf("bootstrap needs the self compiler, got %s", interp.Kind())
		}
		image, err := interp.SelfCompileImage()
		if err != nil {
			return err
		}
		loaded, err := interp.CompilerImage()
		if err != nil {
			return err
		}
		if !bytes.Equal(image, loaded) {
			return fmt.Errorf("compiler is not a fixed point: self-compiled image differs from the running one")
		}
		logger.InfoContext(ctx, "bootstrap",
			"output", out,
			"bytes", len(image),
		)
		return os.WriteFile(out, image, 0644)
	}
}

func main() {
	if err := cmds.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(taivm.ExitUsage)
	}
	if actionErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", actionErr)
		os.Exit(taivm.ExitUsage)
	}
	if action == nil {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			action = runREPL
		} else {
			action = func(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
				return runFile(ctx, logger, interp, "-")
			}
		}
	}

	mode := modes.ForProduction()
	if *development {
		mode = modes.ForDevelopment()
	}

	var err error
	dscope.New(
		new(Module),
		mode,
	).Call(func(
		logger logs.Logger,
		newSpan logs.NewSpan,
		newInterpreter taischeme.NewInterpreter,
	) {
		ctx, _ := newSpan(context.Background(), "")
		interp, e := newInterpreter()
		if e != nil {
			err = e
		} else {
			err = action(ctx, logger, interp)
		}
		if err != nil {
			logger.DebugContext(ctx, "failed",
				"error", logs.WrapSpan(ctx, wrap(err)),
			)
		}
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(taivm.ExitCode(err))
	}
}
