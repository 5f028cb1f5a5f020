package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/reusee/taischeme/logs"
	"github.com/reusee/taischeme/taischeme"
	"golang.org/x/term"
)

func runREPL(ctx context.Context, logger logs.Logger, interp *taischeme.Interpreter) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return runFile(ctx, logger, interp, "-")
	}

	var historyFile string
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".taischeme_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	logger.DebugContext(ctx, "repl",
		"compiler", interp.Kind(),
		"history", historyFile,
	)

	var pending strings.Builder
	for {
		if pending.Len() > 0 {
			rl.SetPrompt(". ")
		} else {
			rl.SetPrompt("> ")
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// drop the partial expression
			pending.Reset()
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		src := pending.String()
		if taischeme.Incomplete(src) {
			continue
		}
		pending.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}

		interp.SetInput("repl", strings.NewReader(src))
		for {
			res, ok, err := interp.Next()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				break
			}
			if !ok {
				break
			}
			printResult(interp, res)
		}
	}
}
