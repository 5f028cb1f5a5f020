package taivm

import (
	"fmt"
	"io"
)

// Addr is a dense instruction address in a Program.
type Addr int

type Program struct {
	code []Instr
}

func NewProgram() *Program {
	return &Program{
		code: make([]Instr, 0, 1024),
	}
}

func (p *Program) Append(inst Instr) Addr {
	addr := Addr(len(p.code))
	p.code = append(p.code, inst)
	return addr
}

func (p *Program) NextAddress() Addr {
	return Addr(len(p.code))
}

func (p *Program) Patch(addr Addr, inst Instr) error {
	if !p.contains(addr) {
		return Errorf(ErrMalformed, "patch out of range: %d", addr)
	}
	p.code[addr] = inst
	return nil
}

// PatchTarget re-aims the jump or closure instruction at addr.
func (p *Program) PatchTarget(addr Addr, target Addr) error {
	if !p.contains(addr) {
		return Errorf(ErrMalformed, "patch out of range: %d", addr)
	}
	inst := p.code[addr]
	switch inst.Op {
	case OpJump, OpJumpIfFalse, OpMakeClosure:
	default:
		return Errorf(ErrMalformed, "instruction at %d has no target: %s", addr, inst.Op)
	}
	p.code[addr] = inst.WithTarget(target)
	return nil
}

// Truncate discards every instruction from addr on.
func (p *Program) Truncate(addr Addr) {
	if addr < 0 || int(addr) >= len(p.code) {
		return
	}
	clear(p.code[addr:])
	p.code = p.code[:addr]
}

func (p *Program) At(addr Addr) Instr {
	return p.code[addr]
}

func (p *Program) Len() int {
	return len(p.code)
}

func (p *Program) contains(addr Addr) bool {
	return addr >= 0 && int(addr) < len(p.code)
}

func (p *Program) Disassemble(w io.Writer, start, end Addr) error {
	if start < 0 {
		start = 0
	}
	if int(end) > len(p.code) {
		end = Addr(len(p.code))
	}
	for addr := start; addr < end; addr++ {
		if _, err := fmt.Fprintf(w, "%6d  %s\n", addr, p.code[addr]); err != nil {
			return err
		}
	}
	return nil
}
