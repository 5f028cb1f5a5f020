package taischeme

import (
	"io"
	"os"

	"github.com/reusee/dscope"
	"github.com/reusee/taischeme/logs"
	"github.com/reusee/taischeme/modes"
	"github.com/reusee/taischeme/schemeconfigs"
	"github.com/reusee/taischeme/taivm"
)

type Module struct {
	dscope.Module
	Configs schemeconfigs.Module
}

// Output receives display, write and newline.
type Output io.Writer

func (Module) Output() Output {
	return os.Stdout
}

// NewInterpreter builds an interpreter from the configured settings.
type NewInterpreter func() (*Interpreter, error)

func (Module) NewInterpreter(
	logger logs.Logger,
	mode modes.Mode,
	output Output,
	heapCells schemeconfigs.HeapCells,
	heapLimit schemeconfigs.HeapLimit,
	stackSize schemeconfigs.StackSize,
	compiler schemeconfigs.CompilerKind,
	image schemeconfigs.BootstrapImage,
	verify schemeconfigs.VerifyHeap,
	preload schemeconfigs.Preload,
) NewInterpreter {
	return func() (*Interpreter, error) {
		opts := Options{
			Options: taivm.Options{
				HeapCells:  int(heapCells),
				HeapLimit:  int(heapLimit),
				StackSize:  int(stackSize),
				Output:     output,
				Logger:     logger,
				VerifyHeap: bool(verify) || mode.Checked(),
			},
			Compiler: CompilerKind(compiler),
		}
		if image != "" {
			data, err := os.ReadFile(string(image))
			if err != nil {
				return nil, err
			}
			opts.Image = data
		}

		interp, err := New(opts)
		if err != nil {
			return nil, err
		}
		for _, path := range preload {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			_, err = interp.Run(path, f)
			f.Close()
			if err != nil {
				return nil, err
			}
		}
		logger.Debug("interpreter ready",
			"compiler", interp.Kind(),
			"mode", mode,
			"preload", len(preload),
		)
		return interp, nil
	}
}
