package logs

import (
	"io"
	"os"

	"github.com/reusee/taischeme/cmds"
)

// Writer receives the text log. It is stderr unless -log-file names a file.
type Writer io.Writer

var logFile = cmds.Var[string]("-log-file")

func (Module) Writer() Writer {
	if *logFile == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// keep logging somewhere
		return os.Stderr
	}
	return f
}
