package taivm

import "fmt"

// Ref is the cell index of a heap object. Ref 0 is never allocated.
type Ref uint32

type objectKind uint8

const (
	objPair objectKind = iota + 1
	objClosure
	objFrame
)

const (
	PairCells    = 3
	ClosureCells = 3
)

// FrameCells is the heap footprint of a frame with n slots.
func FrameCells(n int) int {
	return 2 + n
}

const maxObjectSize = 1<<24 - 1

// header layout: kind in bits 0-7, payload size in bits 8-31, extra in 32-63
func header(kind objectKind, size int, extra uint32) Value {
	return Value{
		Kind: kindHeader,
		word: uint64(kind) | uint64(size)<<8 | uint64(extra)<<32,
	}
}

func (v Value) objectKind() objectKind {
	return objectKind(v.word & 0xff)
}

func (v Value) objectSize() int {
	return int(v.word>>8) & maxObjectSize
}

func (v Value) objectExtra() uint32 {
	return uint32(v.word >> 32)
}

// Heap is a contiguous cell space managed by a copying collector.
// Objects are laid out as a header cell followed by their payload:
//
//	pair:    header, first, rest
//	closure: header(arity), body address, captured environment
//	frame:   header(slots+1), outer environment, slot0 .. slotN-1
type Heap struct {
	cells       []Value
	capacity    int
	limit       int
	collections int

	OnCollect func(CollectStats)
}

func NewHeap(capacity, limit int) *Heap {
	if capacity < 16 {
		capacity = 16
	}
	if limit < capacity {
		limit = capacity
	}
	return &Heap{
		cells:    make([]Value, 1, capacity),
		capacity: capacity,
		limit:    limit,
	}
}

type HeapStats struct {
	Collections int
	Capacity    int
	Limit       int
	Used        int
}

func (h *Heap) Stats() HeapStats {
	return HeapStats{
		Collections: h.collections,
		Capacity:    h.capacity,
		Limit:       h.limit,
		Used:        len(h.cells),
	}
}

func (h *Heap) Free() int {
	return h.capacity - len(h.cells)
}

func (h *Heap) alloc(kind objectKind, size int, extra uint32) Ref {
	if len(h.cells)+1+size > h.capacity {
		panic(fmt.Errorf("heap allocation of %d cells without reservation", 1+size))
	}
	ref := Ref(len(h.cells))
	h.cells = append(h.cells, header(kind, size, extra))
	for range size {
		h.cells = append(h.cells, Undefined)
	}
	return ref
}

// Cons allocates a pair. Headroom must have been reserved.
func (h *Heap) Cons(first, rest Value) Value {
	ref := h.alloc(objPair, 2, 0)
	h.cells[ref+1] = first
	h.cells[ref+2] = rest
	return pairValue(ref)
}

func (h *Heap) First(pair Value) Value {
	return h.cells[pair.Ref()+1]
}

func (h *Heap) Rest(pair Value) Value {
	return h.cells[pair.Ref()+2]
}

func (h *Heap) SetFirst(pair Value, v Value) {
	h.cells[pair.Ref()+1] = v
}

func (h *Heap) SetRest(pair Value, v Value) {
	h.cells[pair.Ref()+2] = v
}

// NewClosure allocates a closure. Headroom must have been reserved.
func (h *Heap) NewClosure(arity Arity, body Addr, env Ref) Value {
	ref := h.alloc(objClosure, 2, uint32(arity))
	h.cells[ref+1] = AddressValue(body)
	h.cells[ref+2] = EnvValue(env)
	return closureValue(ref)
}

func (h *Heap) ClosureArity(closure Value) Arity {
	return Arity(h.cells[closure.Ref()].objectExtra())
}

func (h *Heap) ClosureBody(closure Value) Addr {
	return h.cells[closure.Ref()+1].Addr()
}

func (h *Heap) ClosureEnv(closure Value) Ref {
	return h.cells[closure.Ref()+2].Ref()
}

// NewFrame allocates an environment frame with n undefined slots.
// Headroom must have been reserved.
func (h *Heap) NewFrame(outer Ref, n int) Ref {
	ref := h.alloc(objFrame, n+1, 0)
	h.cells[ref+1] = EnvValue(outer)
	return ref
}

func (h *Heap) FrameLen(frame Ref) int {
	return h.cells[frame].objectSize() - 1
}

func (h *Heap) FrameOuter(frame Ref) Ref {
	return h.cells[frame+1].Ref()
}

func (h *Heap) FrameSlot(frame Ref, slot int) Value {
	return h.cells[int(frame)+2+slot]
}

func (h *Heap) SetFrameSlot(frame Ref, slot int, v Value) {
	h.cells[int(frame)+2+slot] = v
}

// Roots enumerates every root slot. The collector rewrites each slot in place.
type Roots func(visit func(*Value))

// Reserve guarantees n free cells, collecting and growing as needed.
// This is the only operation that moves objects.
func (h *Heap) Reserve(n int, roots Roots) error {
	if len(h.cells)+n <= h.capacity {
		return nil
	}
	if n > maxObjectSize {
		return Errorf(ErrResource, "allocation of %d cells is too large", n)
	}
	h.collect(h.capacity, roots)
	for len(h.cells) > h.capacity/2 || len(h.cells)+n > h.capacity {
		if h.capacity >= h.limit {
			if len(h.cells)+n <= h.capacity {
				return nil
			}
			return Errorf(ErrResource, "out of memory: %d cells live, %d requested, limit %d",
				len(h.cells), n, h.limit)
		}
		// the last step lands on the limit
		h.capacity = min(h.capacity*2, h.limit)
		h.collect(h.capacity, roots)
	}
	return nil
}

// Collect forces a collection without changing capacity.
func (h *Heap) Collect(roots Roots) {
	h.collect(h.capacity, roots)
}
