package taischeme

import (
	"io"
	"log/slog"
	"strings"

	"github.com/reusee/taischeme/taivm"
)

type CompilerKind string

const (
	// compiler.scm running on the machine
	SelfCompiler CompilerKind = "self"
	// the Go compiler
	SeedCompiler CompilerKind = "seed"
)

type Options struct {
	taivm.Options
	Compiler CompilerKind
	// precompiled compiler bytecode, see Interpreter.CompilerImage
	Image []byte
}

// Interpreter reads, compiles and executes top-level expressions.
type Interpreter struct {
	Machine *taivm.Machine

	kind   CompilerKind
	seed   *Compiler
	lexer  *Lexer
	parser *Parser
	logger *slog.Logger

	compileStub taivm.Addr
	parseStub   taivm.Addr

	// compiler bytecode
	compilerStart taivm.Addr
	compilerEnd   taivm.Addr
}

func New(opts Options) (*Interpreter, error) {
	if opts.Compiler == "" {
		opts.Compiler = SelfCompiler
	}
	switch opts.Compiler {
	case SelfCompiler, SeedCompiler:
	default:
		return nil, taivm.Errorf(taivm.ErrMalformed, "unknown compiler: %s", opts.Compiler)
	}

	m := taivm.NewMachine(opts.Options)
	i := &Interpreter{
		Machine: m,
		kind:    opts.Compiler,
		seed:    NewCompiler(m.Program, m.Symbols),
		logger:  m.Logger(),
	}
	i.installPrimitives()

	if err := i.loadCompiler(opts.Image); err != nil {
		return nil, err
	}
	if _, err := i.RunString("prelude.scm", preludeSource); err != nil {
		return nil, err
	}
	i.SetInput("", strings.NewReader(""))
	return i, nil
}

func (i *Interpreter) installPrimitives() {
	m := i.Machine
	define := func(g *taivm.Globals, name string, v taivm.Value) {
		g.Define(m.Symbols.Intern(name).Text(), v)
	}

	for _, p := range Builtins {
		v := m.RegisterPrimitive(p)
		define(m.User, p.Name, v)
		define(m.Compiler, p.Name, v)
	}
	apply := m.RegisterHighPrimitive(applyPrimitive)
	define(m.User, applyPrimitive.Name, apply)
	define(m.Compiler, applyPrimitive.Name, apply)

	for _, p := range i.compilerPrimitives() {
		define(m.Compiler, p.Name, m.RegisterPrimitive(p))
	}
	for _, p := range i.userHighPrimitives() {
		define(m.User, p.Name, m.RegisterHighPrimitive(p))
	}
}

func (i *Interpreter) Kind() CompilerKind {
	return i.kind
}

// SetInput replaces the source of top-level expressions and of read.
func (i *Interpreter) SetInput(name string, r io.Reader) {
	i.lexer = NewLexer(name, r, i.Machine.Symbols)
	i.parser = NewParser(i.lexer)
}

// compileNext compiles the next top-level expression of the input. ok is
// false at end of input.
func (i *Interpreter) compileNext() (addr taivm.Addr, ok bool, err error) {
	m := i.Machine
	if i.kind == SeedCompiler {
		node, err := i.parser.Next()
		if err == io.EOF {
			return 0, false, nil
		} else if err != nil {
			return 0, false, err
		}
		addr, err := i.seed.CompileTopLevel(node)
		if err != nil {
			return 0, false, err
		}
		return addr, true, nil
	}

	start := m.Program.NextAddress()
	m.UseGlobals(m.Compiler)
	res, err := m.Execute(i.compileStub)
	m.UseGlobals(m.User)
	if err != nil {
		m.Program.Truncate(start)
		return 0, false, err
	}
	if _, eof, isToken := TokenMarker(m.Heap, res); isToken && eof {
		return 0, false, nil
	}
	if res.Kind != taivm.KindInteger {
		m.Program.Truncate(start)
		return 0, false, taivm.Errorf(taivm.ErrMalformed, "compiler returned %s", res.Kind)
	}
	return taivm.Addr(res.Int()), true, nil
}

// Next compiles and executes one top-level expression. ok is false at end of
// input.
func (i *Interpreter) Next() (res taivm.Value, ok bool, err error) {
	addr, ok, err := i.compileNext()
	if err != nil || !ok {
		return taivm.Void, ok, err
	}
	res, err = i.Machine.Execute(addr)
	if err != nil {
		return taivm.Void, true, err
	}
	return res, true, nil
}

// Run evaluates every expression read from r, returning the value of the
// last one.
func (i *Interpreter) Run(name string, r io.Reader) (taivm.Value, error) {
	i.SetInput(name, r)
	last := taivm.Void
	for {
		res, ok, err := i.Next()
		if err != nil {
			return taivm.Void, err
		}
		if !ok {
			return last, nil
		}
		last = res
	}
}

func (i *Interpreter) RunString(name, src string) (taivm.Value, error) {
	return i.Run(name, strings.NewReader(src))
}

// Compile compiles every expression read from r without executing any of
// them, returning the serialized bytecode.
func (i *Interpreter) Compile(name string, r io.Reader) ([]byte, error) {
	m := i.Machine
	i.SetInput(name, r)
	start := m.Program.NextAddress()
	defer m.Program.Truncate(start)
	for {
		_, ok, err := i.compileNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	return taivm.Serialize(m.Program, start, m.Program.NextAddress())
}

// Load appends serialized bytecode and executes its top-level expressions
// in order, returning the value of the last one.
func (i *Interpreter) Load(data []byte) (taivm.Value, error) {
	m := i.Machine
	seg, err := taivm.Deserialize(m.Program, m.Symbols, data)
	if err != nil {
		return taivm.Void, err
	}
	i.logger.Debug("load bytecode",
		"start", seg.Start,
		"end", seg.End,
		"entries", len(seg.Entries),
	)
	last := taivm.Void
	for _, entry := range seg.Entries {
		res, err := m.Execute(entry)
		if err != nil {
			return taivm.Void, err
		}
		last = res
	}
	return last, nil
}

// Format renders a value in write form.
func (i *Interpreter) Format(v taivm.Value) string {
	return Format(i.Machine, v, true)
}

// Disassemble lists the instructions of serialized bytecode.
func (i *Interpreter) Disassemble(w io.Writer, data []byte) error {
	program := taivm.NewProgram()
	seg, err := taivm.Deserialize(program, taivm.NewSymbols(), data)
	if err != nil {
		return err
	}
	return program.Disassemble(w, seg.Start, seg.End)
}

// CompilerImage serializes the compiler bytecode, for loading through
// Options.Image.
func (i *Interpreter) CompilerImage() ([]byte, error) {
	return taivm.Serialize(i.Machine.Program, i.compilerStart, i.compilerEnd)
}

// SelfCompileImage compiles the compiler source with the running compiler.
// With the self compiler it is byte-identical to CompilerImage.
func (i *Interpreter) SelfCompileImage() ([]byte, error) {
	return i.Compile("compiler.scm", strings.NewReader(compilerSource))
}
