package taivm

import (
	"bytes"
	"testing"
)

func assemble(t *testing.T, m *Machine) (start, end Addr) {
	t.Helper()
	p := m.Program
	sym := m.Symbols.Intern
	start = p.NextAddress()
	p.Append(Jump(0))
	body := p.Append(LoadVar(0, 0))
	p.Append(LoadVar(0, 1))
	p.Append(Simple(OpCons))
	p.Append(Simple(OpReturn))
	mk := p.Append(MakeClosure(VariadicArity(1), body))
	p.Append(DefineGlobal(sym("pair-up")))
	p.Append(Simple(OpReturn))
	p.Append(Simple(OpBoundary))
	p.Append(LoadGlobal(sym("pair-up")))
	p.Append(LoadConst(Int(-7)))
	p.Append(LoadConst(Float(1.5)))
	p.Append(LoadConst(String("s")))
	p.Append(LoadConst(sym("y")))
	p.Append(LoadConst(Char('λ')))
	p.Append(LoadConst(True))
	p.Append(LoadConst(Nil))
	p.Append(Call(6))
	jif := p.Append(JumpIfFalse(0))
	p.Append(LoadConst(Void))
	p.Append(Simple(OpReturn))
	alt := p.Append(LoadConst(Undefined))
	p.Append(Simple(OpReturn))
	p.Append(Simple(OpBoundary))
	end = p.NextAddress()
	if err := p.PatchTarget(start, mk); err != nil {
		t.Fatal(err)
	}
	if err := p.PatchTarget(jif, alt); err != nil {
		t.Fatal(err)
	}
	return
}

func TestCodec_RoundTrip(t *testing.T) {
	m := NewMachine(Options{})
	start, end := assemble(t, m)
	data, err := Serialize(m.Program, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, Magic) {
		t.Fatal("no magic")
	}
	if data[len(data)-1] != byte(OpEnd) {
		t.Fatal("no end marker")
	}

	// load at a different base address
	other := NewMachine(Options{})
	for range 5 {
		other.Program.Append(Simple(OpPop))
	}
	seg, err := Deserialize(other.Program, other.Symbols, data)
	if err != nil {
		t.Fatal(err)
	}
	offset := seg.Start - start
	if seg.End-seg.Start != end-start+1 {
		t.Fatalf("got %d instructions", seg.End-seg.Start)
	}
	if len(seg.Entries) != 2 {
		t.Fatalf("got entries %v", seg.Entries)
	}
	if seg.Entries[0] != seg.Start || seg.Entries[1] != seg.Start+9 {
		t.Fatalf("got entries %v", seg.Entries)
	}
	for addr := start; addr < end; addr++ {
		want := m.Program.At(addr)
		if target := want.Target(); target >= 0 {
			want = want.WithTarget(target + offset)
		}
		got := other.Program.At(addr + offset)
		if got.String() != want.String() {
			t.Fatalf("at %d: got %s, want %s", addr, got, want)
		}
	}
	if other.Program.At(seg.End-1).Op != OpEnd {
		t.Fatal("expecting end marker")
	}

	// reserializing the loaded segment reproduces the bytes
	again, err := Serialize(other.Program, seg.Start, seg.End)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Fatal("bytes differ")
	}
}

func TestCodec_SymbolsInterned(t *testing.T) {
	m := NewMachine(Options{})
	p := m.Program
	start := p.NextAddress()
	p.Append(LoadConst(m.Symbols.Intern("k")))
	p.Append(Simple(OpReturn))
	data, err := Serialize(p, start, p.NextAddress())
	if err != nil {
		t.Fatal(err)
	}
	other := NewMachine(Options{})
	k := other.Symbols.Intern("k")
	seg, err := Deserialize(other.Program, other.Symbols, data)
	if err != nil {
		t.Fatal(err)
	}
	res, err := other.Execute(seg.Entries[0])
	if err != nil {
		t.Fatal(err)
	}
	if !Eq(res, k) {
		t.Fatal("symbol not interned")
	}
}

func TestCodec_Execute(t *testing.T) {
	m := testMachine(t, Options{})
	entry := buildLoop(t, m, 10)
	end := m.Program.NextAddress()
	data, err := Serialize(m.Program, entry, end)
	if err != nil {
		t.Fatal(err)
	}

	other := testMachine(t, Options{})
	other.Program.Append(Simple(OpPop))
	seg, err := Deserialize(other.Program, other.Symbols, data)
	if err != nil {
		t.Fatal(err)
	}
	res, err := other.Execute(seg.Start)
	if err != nil {
		t.Fatal(err)
	}
	if res.Str() != "done" {
		t.Fatalf("got %v", res)
	}
}

func TestCodec_Malformed(t *testing.T) {
	m := NewMachine(Options{})
	start, end := assemble(t, m)
	good, err := Serialize(m.Program, start, end)
	if err != nil {
		t.Fatal(err)
	}

	jump := append(append([]byte(nil), Magic...), byte(OpJump), 0, 0, 0, 9, byte(OpEnd))
	cases := map[string][]byte{
		"empty":       nil,
		"bad magic":   append([]byte("XXXX"), good[4:]...),
		"truncated":   good[:len(good)-3],
		"trailing":    append(append([]byte(nil), good...), 0),
		"bad opcode":  append(append([]byte(nil), Magic...), 0xee),
		"bad const":   append(append([]byte(nil), Magic...), byte(OpLoadConst), 'z', byte(OpEnd)),
		"bad target":  jump,
		"no text end": append(append([]byte(nil), Magic...), byte(OpLoadGlobal), 'a', 'b'),
	}
	for name, data := range cases {
		other := NewMachine(Options{})
		before := other.Program.Len()
		_, err := Deserialize(other.Program, other.Symbols, data)
		expectKind(t, err, ErrMalformed)
		if other.Program.Len() != before {
			t.Fatalf("%s: program modified", name)
		}
	}
}

func TestCodec_SerializeRejects(t *testing.T) {
	m := NewMachine(Options{})
	p := m.Program
	start := p.NextAddress()
	p.Append(LoadConst(String("a\x00b")))
	if _, err := Serialize(p, start, p.NextAddress()); err == nil {
		t.Fatal("expecting error")
	}

	start = p.NextAddress()
	p.Append(Jump(0))
	if _, err := Serialize(p, start, p.NextAddress()); err == nil {
		t.Fatal("expecting error")
	}

	if _, err := Serialize(p, 5, 2); err == nil {
		t.Fatal("expecting error")
	}
}
