package taischeme

import (
	_ "embed"
	"io"
	"strings"

	"github.com/reusee/taischeme/taivm"
)

//go:embed compiler.scm
var compilerSource string

//go:embed prelude.scm
var preludeSource string

// CompilerSource returns the source of the self-hosted compiler.
func CompilerSource() string {
	return compilerSource
}

// loadCompiler installs the compiler bytecode into the compiler globals,
// from image when given, otherwise by seed-compiling compiler.scm. It then
// emits the two entry stubs.
func (i *Interpreter) loadCompiler(image []byte) error {
	m := i.Machine
	m.UseGlobals(m.Compiler)
	defer m.UseGlobals(m.User)

	if len(image) > 0 {
		seg, err := taivm.Deserialize(m.Program, m.Symbols, image)
		if err != nil {
			return err
		}
		i.compilerStart, i.compilerEnd = seg.Start, seg.End
		// the image ends with an end marker that the code range excludes
		if i.compilerEnd > i.compilerStart && m.Program.At(i.compilerEnd-1).Op == taivm.OpEnd {
			i.compilerEnd--
		}
		for _, entry := range seg.Entries {
			if _, err := m.Execute(entry); err != nil {
				return err
			}
		}
		i.logger.Debug("compiler loaded from image",
			"instructions", int(i.compilerEnd-i.compilerStart),
		)

	} else {
		i.compilerStart = m.Program.NextAddress()
		parser := NewParser(NewLexer("compiler.scm", strings.NewReader(compilerSource), m.Symbols))
		for {
			node, err := parser.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return err
			}
			entry, err := i.seed.CompileTopLevel(node)
			if err != nil {
				return err
			}
			if _, err := m.Execute(entry); err != nil {
				return err
			}
		}
		i.compilerEnd = m.Program.NextAddress()
		i.logger.Debug("compiler built by seed compiler",
			"instructions", int(i.compilerEnd-i.compilerStart),
		)
	}

	for _, name := range []string{"parse", "parse-and-compile", "compile"} {
		if _, ok := m.Lookup(name); !ok {
			return taivm.Errorf(taivm.ErrMalformed, "compiler does not define %s", name)
		}
	}

	i.compileStub = i.stub("parse-and-compile")
	i.parseStub = i.stub("parse")
	return nil
}

// stub emits LoadGlobal name; Call 0; Return
func (i *Interpreter) stub(name string) taivm.Addr {
	p := i.Machine.Program
	addr := p.Append(taivm.LoadGlobal(i.Machine.Symbols.Intern(name)))
	p.Append(taivm.Call(0))
	p.Append(taivm.Simple(taivm.OpReturn))
	return addr
}

func emitter(name string, minArgs, maxArgs int, build func(args []Value) (taivm.Instr, error)) taivm.Primitive {
	return taivm.Primitive{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Func: func(m M, args []Value) (Value, error) {
			inst, err := build(args)
			if err != nil {
				return Value{}, err
			}
			return taivm.Int(int64(m.Program.Append(inst))), nil
		},
	}
}

func wantSymbol(v Value) (Value, error) {
	if v.Kind != taivm.KindSymbol {
		return Value{}, taivm.TypeError("symbol", v)
	}
	return v, nil
}

func wantCount(v Value) (int, error) {
	n, err := wantInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 1<<31-1 {
		return 0, taivm.Errorf(taivm.ErrType, "operand out of range: %d", n)
	}
	return int(n), nil
}

func simpleEmitter(op taivm.OpCode) func(args []Value) (taivm.Instr, error) {
	return func(args []Value) (taivm.Instr, error) {
		return taivm.Simple(op), nil
	}
}

func countEmitter(build func(n int) taivm.Instr) func(args []Value) (taivm.Instr, error) {
	return func(args []Value) (taivm.Instr, error) {
		n, err := wantCount(args[0])
		if err != nil {
			return taivm.Instr{}, err
		}
		return build(n), nil
	}
}

func nameEmitter(build func(name Value) taivm.Instr) func(args []Value) (taivm.Instr, error) {
	return func(args []Value) (taivm.Instr, error) {
		name, err := wantSymbol(args[0])
		if err != nil {
			return taivm.Instr{}, err
		}
		return build(name), nil
	}
}

func slotEmitter(build func(depth, slot int) taivm.Instr) func(args []Value) (taivm.Instr, error) {
	return func(args []Value) (taivm.Instr, error) {
		depth, err := wantCount(args[0])
		if err != nil {
			return taivm.Instr{}, err
		}
		slot, err := wantCount(args[1])
		if err != nil {
			return taivm.Instr{}, err
		}
		return build(depth, slot), nil
	}
}

func targetEmitter(build func(target taivm.Addr) taivm.Instr) func(args []Value) (taivm.Instr, error) {
	return countEmitter(func(n int) taivm.Instr {
		return build(taivm.Addr(n))
	})
}

// compilerPrimitives is what compiler.scm sees beyond the builtins
func (i *Interpreter) compilerPrimitives() []taivm.Primitive {
	return []taivm.Primitive{

		{Name: "read-token", Func: func(m M, args []Value) (Value, error) {
			tok, err := i.lexer.Next()
			if err != nil {
				return Value{}, err
			}
			if err := m.Reserve(taivm.PairCells); err != nil {
				return Value{}, err
			}
			return EncodeToken(m.Heap, tok), nil
		}},

		{Name: "eof-token?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
			_, eof, ok := TokenMarker(m.Heap, args[0])
			return taivm.Bool(ok && eof), nil
		}},

		{Name: "punctuation-token?", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
			_, eof, ok := TokenMarker(m.Heap, args[0])
			return taivm.Bool(ok && !eof), nil
		}},

		{Name: "token-char", MinArgs: 1, MaxArgs: 1, Func: func(m M, args []Value) (Value, error) {
			c, eof, ok := TokenMarker(m.Heap, args[0])
			if !ok || eof {
				return Value{}, taivm.TypeError("punctuation token", args[0])
			}
			return taivm.Char(c), nil
		}},

		{Name: "next-address", Func: func(m M, args []Value) (Value, error) {
			return taivm.Int(int64(m.Program.NextAddress())), nil
		}},

		emitter("emit-constant", 1, 1, func(args []Value) (taivm.Instr, error) {
			v := args[0]
			if v.IsHeap() || v.IsProcedure() || v.Kind > taivm.KindUndefined {
				return taivm.Instr{}, taivm.Errorf(taivm.ErrMalformed, "emit-constant: %s is not a literal", v.Kind)
			}
			return taivm.LoadConst(v), nil
		}),
		emitter("emit-load-variable", 2, 2, slotEmitter(taivm.LoadVar)),
		emitter("emit-load-global", 1, 1, nameEmitter(taivm.LoadGlobal)),
		emitter("emit-define-global", 1, 1, nameEmitter(taivm.DefineGlobal)),
		emitter("emit-assign-variable", 2, 2, slotEmitter(taivm.AssignVar)),
		emitter("emit-assign-global", 1, 1, nameEmitter(taivm.AssignGlobal)),
		emitter("emit-jump", 1, 1, targetEmitter(taivm.Jump)),
		emitter("emit-jump-if-false", 1, 1, targetEmitter(taivm.JumpIfFalse)),
		emitter("emit-make-closure", 3, 3, func(args []Value) (taivm.Instr, error) {
			required, err := wantCount(args[0])
			if err != nil {
				return taivm.Instr{}, err
			}
			start, err := wantCount(args[2])
			if err != nil {
				return taivm.Instr{}, err
			}
			arity := taivm.FixedArity(required)
			if !args[1].IsFalse() {
				arity = taivm.VariadicArity(required)
			}
			return taivm.MakeClosure(arity, taivm.Addr(start)), nil
		}),
		emitter("emit-call", 1, 1, countEmitter(taivm.Call)),
		emitter("emit-tail-call", 1, 1, countEmitter(taivm.TailCall)),
		emitter("emit-return", 0, 0, simpleEmitter(taivm.OpReturn)),
		emitter("emit-pop", 0, 0, simpleEmitter(taivm.OpPop)),
		emitter("emit-cons", 0, 0, simpleEmitter(taivm.OpCons)),
		emitter("emit-boundary", 0, 0, simpleEmitter(taivm.OpBoundary)),

		{Name: "patch-target!", MinArgs: 2, MaxArgs: 2, Func: func(m M, args []Value) (Value, error) {
			addr, err := wantCount(args[0])
			if err != nil {
				return Value{}, err
			}
			target, err := wantCount(args[1])
			if err != nil {
				return Value{}, err
			}
			return taivm.Void, m.Program.PatchTarget(taivm.Addr(addr), taivm.Addr(target))
		}},

		{Name: "undefined-marker", Func: func(m M, args []Value) (Value, error) {
			return taivm.Undefined, nil
		}},

		{Name: "fatal", MinArgs: 1, MaxArgs: -1, Func: func(m M, args []Value) (Value, error) {
			msg := Format(m, args[0], false)
			if len(args) > 1 {
				parts := make([]string, 0, len(args)-1)
				for _, arg := range args[1:] {
					parts = append(parts, Format(m, arg, true))
				}
				msg += ": " + strings.Join(parts, " ")
			}
			return Value{}, taivm.Errorf(taivm.ErrMalformed, "%s", msg)
		}},
	}
}

// read and eval, the high primitives of the user globals
func (i *Interpreter) userHighPrimitives() []taivm.HighPrimitive {
	return []taivm.HighPrimitive{

		{Name: "read", Func: func(m M, argc int) (taivm.Resume, error) {
			m.Drop(argc + 1)
			if i.kind == SelfCompiler {
				// the parse stub returns through this record, and the
				// saved globals beneath it restore the caller's table
				if err := m.Push(m.SavedGlobals(m.Globals())); err != nil {
					return taivm.Resume{}, err
				}
				if err := m.Push(taivm.EnvValue(m.Env())); err != nil {
					return taivm.Resume{}, err
				}
				if err := m.Push(taivm.AddressValue(m.ReturnStub())); err != nil {
					return taivm.Resume{}, err
				}
				m.UseGlobals(m.Compiler)
				return taivm.Resume{Addr: i.parseStub}, nil
			}

			node, err := i.parser.Next()
			var datum Value
			if err == io.EOF {
				if err := m.Reserve(taivm.PairCells); err != nil {
					return taivm.Resume{}, err
				}
				datum = EncodeToken(m.Heap, Token{Kind: TokenEOF})
			} else if err != nil {
				return taivm.Resume{}, err
			} else {
				if err := m.Reserve(node.Cells()); err != nil {
					return taivm.Resume{}, err
				}
				datum = BuildValue(m.Heap, node)
			}
			if err := m.Push(datum); err != nil {
				return taivm.Resume{}, err
			}
			return taivm.Resume{Addr: m.ReturnStub(), Env: m.Env()}, nil
		}},

		{Name: "eval", MinArgs: 1, MaxArgs: 2, Func: func(m M, argc int) (taivm.Resume, error) {
			stack := m.Stack()
			node, err := NodeFromValue(m.Heap, stack[len(stack)-argc])
			if err != nil {
				return taivm.Resume{}, err
			}
			entry, err := i.seed.CompileTopLevel(node)
			if err != nil {
				return taivm.Resume{}, err
			}
			m.Drop(argc + 1)
			// evaluated expressions run in the global frame
			return taivm.Resume{Addr: entry}, nil
		}},
	}
}
