package taivm

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
)

// Magic starts every serialized segment.
var Magic = []byte{'T', 'S', 'B', 'C', 0x00, 0x01}

// constant type bytes
const (
	constInteger   = 'i'
	constFloat     = 'f'
	constBoolean   = 'b'
	constCharacter = 'c'
	constString    = 's'
	constSymbol    = 'y'
	constNil       = 'n'
	constVoid      = 'v'
	constUndefined = 'u'
)

// Segment is a deserialized range of the program.
type Segment struct {
	Start Addr
	End   Addr
	// first instruction of every top-level expression
	Entries []Addr
}

// Serialize encodes instructions [start, end) with addresses relative to
// start. The encoding always ends with an end-of-stream record.
func Serialize(p *Program, start, end Addr) ([]byte, error) {
	if start < 0 || start > end || int(end) > len(p.code) {
		return nil, Errorf(ErrMalformed, "bad range [%d, %d)", start, end)
	}
	buf := new(bytes.Buffer)
	buf.Write(Magic)

	relative := func(target Addr) (uint32, error) {
		if target < start || target > end {
			return 0, Errorf(ErrMalformed, "target %d outside segment [%d, %d)", target, start, end)
		}
		return uint32(target - start), nil
	}

	ended := false
	for addr := start; addr < end; addr++ {
		inst := p.code[addr]
		buf.WriteByte(byte(inst.Op))
		switch inst.Op {

		case OpLoadConst:
			if err := writeConst(buf, inst.Const); err != nil {
				return nil, err
			}

		case OpLoadVar, OpAssignVar:
			if inst.A > math.MaxUint16 || inst.B > math.MaxUint16 {
				return nil, Errorf(ErrMalformed, "lexical address %d %d too large", inst.A, inst.B)
			}
			buf.Write(binary.BigEndian.AppendUint16(nil, uint16(inst.A)))
			buf.Write(binary.BigEndian.AppendUint16(nil, uint16(inst.B)))

		case OpLoadGlobal, OpDefineGlobal, OpAssignGlobal:
			if err := writeText(buf, inst.Name.S); err != nil {
				return nil, err
			}

		case OpJump, OpJumpIfFalse:
			rel, err := relative(Addr(inst.A))
			if err != nil {
				return nil, err
			}
			buf.Write(binary.BigEndian.AppendUint32(nil, rel))

		case OpMakeClosure:
			rel, err := relative(Addr(inst.B))
			if err != nil {
				return nil, err
			}
			buf.Write(binary.BigEndian.AppendUint32(nil, uint32(inst.A)))
			buf.Write(binary.BigEndian.AppendUint32(nil, rel))

		case OpCall, OpTailCall:
			buf.Write(binary.BigEndian.AppendUint32(nil, uint32(inst.A)))

		case OpReturn, OpPop, OpCons, OpBoundary:

		case OpEnd:
			ended = addr == end-1

		default:
			return nil, Errorf(ErrMalformed, "invalid opcode %d at %d", inst.Op, addr)
		}
	}
	if !ended {
		buf.WriteByte(byte(OpEnd))
	}
	return buf.Bytes(), nil
}

func writeText(buf *bytes.Buffer, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return Errorf(ErrMalformed, "text %q contains a null byte", s)
	}
	buf.WriteString(s)
	buf.WriteByte(0)
	return nil
}

func writeConst(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindInteger:
		buf.WriteByte(constInteger)
		buf.Write(binary.BigEndian.AppendUint64(nil, v.word))
	case KindFloat:
		buf.WriteByte(constFloat)
		buf.Write(binary.BigEndian.AppendUint64(nil, v.word))
	case KindBoolean:
		buf.WriteByte(constBoolean)
		buf.WriteByte(byte(v.word))
	case KindCharacter:
		buf.WriteByte(constCharacter)
		buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v.word)))
	case KindString:
		buf.WriteByte(constString)
		return writeText(buf, v.Str())
	case KindSymbol:
		buf.WriteByte(constSymbol)
		return writeText(buf, v.Str())
	case KindNil:
		buf.WriteByte(constNil)
	case KindVoid:
		buf.WriteByte(constVoid)
	case KindUndefined:
		buf.WriteByte(constUndefined)
	default:
		return Errorf(ErrMalformed, "cannot serialize %s constant", v.Kind)
	}
	return nil
}

type decoder struct {
	data   []byte
	offset int
}

func (d *decoder) eof() error {
	return Errorf(ErrMalformed, "truncated bytecode at byte %d", d.offset)
}

func (d *decoder) byte() (byte, error) {
	if d.offset >= len(d.data) {
		return 0, d.eof()
	}
	b := d.data[d.offset]
	d.offset++
	return b, nil
}

func (d *decoder) uint16() (uint16, error) {
	if d.offset+2 > len(d.data) {
		return 0, d.eof()
	}
	v := binary.BigEndian.Uint16(d.data[d.offset:])
	d.offset += 2
	return v, nil
}

func (d *decoder) uint32() (uint32, error) {
	if d.offset+4 > len(d.data) {
		return 0, d.eof()
	}
	v := binary.BigEndian.Uint32(d.data[d.offset:])
	d.offset += 4
	return v, nil
}

func (d *decoder) uint64() (uint64, error) {
	if d.offset+8 > len(d.data) {
		return 0, d.eof()
	}
	v := binary.BigEndian.Uint64(d.data[d.offset:])
	d.offset += 8
	return v, nil
}

func (d *decoder) text() (string, error) {
	i := bytes.IndexByte(d.data[d.offset:], 0)
	if i < 0 {
		return "", Errorf(ErrMalformed, "unterminated text at byte %d", d.offset)
	}
	s := string(d.data[d.offset : d.offset+i])
	d.offset += i + 1
	return s, nil
}

func (d *decoder) constant(symbols *Symbols) (Value, error) {
	tag, err := d.byte()
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case constInteger:
		w, err := d.uint64()
		return Value{Kind: KindInteger, word: w}, err
	case constFloat:
		w, err := d.uint64()
		return Value{Kind: KindFloat, word: w}, err
	case constBoolean:
		b, err := d.byte()
		return Bool(b != 0), err
	case constCharacter:
		w, err := d.uint32()
		return Char(rune(w)), err
	case constString:
		s, err := d.text()
		return String(s), err
	case constSymbol:
		s, err := d.text()
		return symbols.Intern(s), err
	case constNil:
		return Nil, nil
	case constVoid:
		return Void, nil
	case constUndefined:
		return Undefined, nil
	}
	return Value{}, Errorf(ErrMalformed, "invalid constant type %q at byte %d", tag, d.offset-1)
}

// Deserialize appends an encoded segment to p, rebasing relative addresses
// onto the load address. On error p is left unchanged.
func Deserialize(p *Program, symbols *Symbols, data []byte) (seg Segment, err error) {
	if !bytes.HasPrefix(data, Magic) {
		return seg, Errorf(ErrMalformed, "bad bytecode magic")
	}
	start := p.NextAddress()
	defer func() {
		if err != nil {
			p.Truncate(start)
		}
	}()

	d := &decoder{
		data:   data,
		offset: len(Magic),
	}
	name := func() (*Text, error) {
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		return symbols.Intern(s).Text(), nil
	}

	seg.Start = start
	seg.Entries = append(seg.Entries, start)
	var targets []Addr
	for {
		op, err := d.byte()
		if err != nil {
			return seg, err
		}
		inst := Instr{Op: OpCode(op)}
		switch inst.Op {

		case OpLoadConst:
			if inst.Const, err = d.constant(symbols); err != nil {
				return seg, err
			}

		case OpLoadVar, OpAssignVar:
			depth, err := d.uint16()
			if err != nil {
				return seg, err
			}
			slot, err := d.uint16()
			if err != nil {
				return seg, err
			}
			inst.A, inst.B = int(depth), int(slot)

		case OpLoadGlobal, OpDefineGlobal, OpAssignGlobal:
			if inst.Name, err = name(); err != nil {
				return seg, err
			}

		case OpJump, OpJumpIfFalse:
			rel, err := d.uint32()
			if err != nil {
				return seg, err
			}
			inst.A = int(start) + int(rel)
			targets = append(targets, Addr(inst.A))

		case OpMakeClosure:
			arity, err := d.uint32()
			if err != nil {
				return seg, err
			}
			rel, err := d.uint32()
			if err != nil {
				return seg, err
			}
			inst.A = int(Arity(arity))
			inst.B = int(start) + int(rel)
			targets = append(targets, Addr(inst.B))

		case OpCall, OpTailCall:
			argc, err := d.uint32()
			if err != nil {
				return seg, err
			}
			inst.A = int(argc)

		case OpReturn, OpPop, OpCons, OpBoundary, OpEnd:

		default:
			return seg, Errorf(ErrMalformed, "invalid opcode %d at byte %d", op, d.offset-1)
		}

		addr := p.Append(inst)
		if inst.Op == OpBoundary {
			seg.Entries = append(seg.Entries, addr+1)
		}
		if inst.Op == OpEnd {
			break
		}
	}

	if d.offset != len(d.data) {
		return seg, Errorf(ErrMalformed, "trailing bytes after end-of-stream marker")
	}
	seg.End = p.NextAddress()
	for _, target := range targets {
		if target < start || target >= seg.End {
			return seg, Errorf(ErrMalformed, "target %d outside loaded segment", target)
		}
	}
	// the entry after the last boundary is the end marker
	if last := seg.Entries[len(seg.Entries)-1]; p.code[last].Op == OpEnd {
		seg.Entries = seg.Entries[:len(seg.Entries)-1]
	}
	return seg, nil
}
