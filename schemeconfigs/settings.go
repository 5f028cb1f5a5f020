package schemeconfigs

import (
	"slices"

	"github.com/reusee/taischeme/cmds"
	"github.com/reusee/taischeme/configs"
	"github.com/reusee/taischeme/vars"
)

type (
	HeapCells      int
	HeapLimit      int
	StackSize      int
	CompilerKind   string
	BootstrapImage string
	VerifyHeap     bool
)

var (
	_ configs.Configurable = HeapCells(0)
	_ configs.Configurable = HeapLimit(0)
	_ configs.Configurable = StackSize(0)
	_ configs.Configurable = CompilerKind("")
	_ configs.Configurable = BootstrapImage("")
	_ configs.Configurable = VerifyHeap(false)
)

func (HeapCells) ConfigPath() string      { return "heap_cells" }
func (HeapLimit) ConfigPath() string      { return "heap_limit" }
func (StackSize) ConfigPath() string      { return "stack_size" }
func (CompilerKind) ConfigPath() string   { return "compiler" }
func (BootstrapImage) ConfigPath() string { return "bootstrap_image" }
func (VerifyHeap) ConfigPath() string     { return "verify_heap" }

var (
	heapCellsFlag      = cmds.Var[int]("-heap-cells")
	heapLimitFlag      = cmds.Var[int]("-heap-limit")
	stackSizeFlag      = cmds.Var[int]("-stack-size")
	compilerFlag       = cmds.Var[string]("-compiler")
	bootstrapImageFlag = cmds.Var[string]("-image")
	verifyHeapFlag     = cmds.Switch("-verify-heap")
	preloadFlag        = cmds.Collect[string]("-preload")
)

// setting picks the flag when set, then the config files, then zero, which
// callers read as the built-in default
func setting[T interface {
	configs.Configurable
	comparable
}](loader configs.Loader, flag T) T {
	var zero T
	if flag != zero {
		return flag
	}
	value, _, err := configs.Lookup[T](loader)
	if err != nil {
		panic(err)
	}
	return value
}

func (Module) HeapCells(loader configs.Loader) HeapCells {
	return setting(loader, HeapCells(vars.DerefOrZero(heapCellsFlag)))
}

func (Module) HeapLimit(loader configs.Loader) HeapLimit {
	return setting(loader, HeapLimit(vars.DerefOrZero(heapLimitFlag)))
}

func (Module) StackSize(loader configs.Loader) StackSize {
	return setting(loader, StackSize(vars.DerefOrZero(stackSizeFlag)))
}

func (Module) CompilerKind(loader configs.Loader) CompilerKind {
	return vars.FirstNonZero(
		setting(loader, CompilerKind(vars.DerefOrZero(compilerFlag))),
		"self",
	)
}

func (Module) BootstrapImage(loader configs.Loader) BootstrapImage {
	return setting(loader, BootstrapImage(vars.DerefOrZero(bootstrapImageFlag)))
}

func (Module) VerifyHeap(loader configs.Loader) VerifyHeap {
	return setting(loader, VerifyHeap(vars.DerefOrZero(verifyHeapFlag)))
}

// Preload is every file given by -preload, then every preload file named by
// any config file, most specific file first.
type Preload []string

func (Module) Preload(loader configs.Loader) Preload {
	ret := Preload(slices.Clone(*preloadFlag))
	for files, err := range configs.All[[]string](loader, "preload") {
		if err != nil {
			panic(err)
		}
		ret = append(ret, files...)
	}
	return ret
}
