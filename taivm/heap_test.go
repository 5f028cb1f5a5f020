package taivm

import (
	"errors"
	"reflect"
	"testing"
)

func rootsOf(slots ...*Value) Roots {
	return func(visit func(*Value)) {
		for _, slot := range slots {
			visit(slot)
		}
	}
}

func listOf(t *testing.T, h *Heap, vals ...Value) Value {
	t.Helper()
	slots := make([]*Value, len(vals))
	for i := range vals {
		slots[i] = &vals[i]
	}
	if err := h.Reserve(PairCells*len(vals), rootsOf(slots...)); err != nil {
		t.Fatal(err)
	}
	list := Nil
	for i := len(vals) - 1; i >= 0; i-- {
		list = h.Cons(vals[i], list)
	}
	return list
}

func TestHeap_AllocWithoutReservation(t *testing.T) {
	h := NewHeap(16, 16)
	defer func() {
		if recover() == nil {
			t.Fatal("expecting panic")
		}
	}()
	for range 10 {
		h.Cons(Nil, Nil)
	}
}

func TestHeap_CollectKeepsReachable(t *testing.T) {
	h := NewHeap(64, 64)
	if err := h.Reserve(39, rootsOf()); err != nil {
		t.Fatal(err)
	}
	for range 5 {
		h.Cons(Int(0), Nil) // garbage
	}
	list := h.Cons(Int(1), h.Cons(Int(2), h.Cons(Int(3), Nil)))
	for range 5 {
		h.Cons(Int(0), Nil)
	}

	h.Collect(rootsOf(&list))
	if used := h.Stats().Used; used != 1+3*PairCells {
		t.Fatalf("got %d cells", used)
	}
	var got []int64
	for v := list; v.Kind == KindPair; v = h.Rest(v) {
		got = append(got, h.First(v).Int())
	}
	if !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("got %v", got)
	}
	if err := h.Verify(rootsOf(&list)); err != nil {
		t.Fatal(err)
	}
}

func TestHeap_CyclesAndSharing(t *testing.T) {
	h := NewHeap(64, 64)
	if err := h.Reserve(PairCells*2, rootsOf()); err != nil {
		t.Fatal(err)
	}
	cycle := h.Cons(Int(1), Nil)
	h.SetRest(cycle, cycle)
	shared := h.Cons(String("s"), Nil)
	alias := shared

	h.Collect(rootsOf(&cycle, &shared, &alias))
	if !Eq(h.Rest(cycle), cycle) {
		t.Fatal("cycle broken")
	}
	if !Eq(shared, alias) {
		t.Fatal("sharing broken")
	}
	if h.Stats().Used != 1+2*PairCells {
		t.Fatalf("got %d", h.Stats().Used)
	}
}

func TestHeap_ClosuresAndFrames(t *testing.T) {
	h := NewHeap(64, 64)
	if err := h.Reserve(FrameCells(1)+FrameCells(2)+ClosureCells, rootsOf()); err != nil {
		t.Fatal(err)
	}
	outer := h.NewFrame(0, 1)
	h.SetFrameSlot(outer, 0, Int(10))
	inner := h.NewFrame(outer, 2)
	h.SetFrameSlot(inner, 1, Int(20))
	closure := h.NewClosure(VariadicArity(2), 99, inner)

	h.Collect(rootsOf(&closure))
	if err := h.Verify(rootsOf(&closure)); err != nil {
		t.Fatal(err)
	}
	if a := h.ClosureArity(closure); a != VariadicArity(2) {
		t.Fatalf("got %v", a)
	}
	if h.ClosureBody(closure) != 99 {
		t.Fatalf("got %d", h.ClosureBody(closure))
	}
	env := h.ClosureEnv(closure)
	if h.FrameLen(env) != 2 || h.FrameSlot(env, 1).Int() != 20 {
		t.Fatal("bad inner frame")
	}
	if h.FrameSlot(env, 0).Kind != KindUndefined {
		t.Fatal("expecting undefined slot")
	}
	up := h.FrameOuter(env)
	if h.FrameLen(up) != 1 || h.FrameSlot(up, 0).Int() != 10 {
		t.Fatal("bad outer frame")
	}
	if h.FrameOuter(up) != 0 {
		t.Fatal("expecting global frame")
	}
}

func TestHeap_CollectTwiceIdentical(t *testing.T) {
	h := NewHeap(128, 128)
	list := listOf(t, h, Int(1), String("a"), Float(2.5))
	nested := listOf(t, h, list, list)
	roots := rootsOf(&list, &nested)

	h.Collect(roots)
	first := append([]Value(nil), h.cells...)
	h.Collect(roots)
	if !reflect.DeepEqual(first, h.cells) {
		t.Fatal("second collection changed the heap")
	}
}

func TestHeap_Growth(t *testing.T) {
	h := NewHeap(16, 64)
	list := Nil
	roots := rootsOf(&list)
	n := 0
	var err error
	for range 100 {
		if err = h.Reserve(PairCells, roots); err != nil {
			break
		}
		list = h.Cons(Int(int64(n)), list)
		n++
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrResource {
		t.Fatalf("got %v", err)
	}
	if n != 21 {
		t.Fatalf("got %d pairs", n)
	}
	stats := h.Stats()
	if stats.Capacity != 64 {
		t.Fatalf("got capacity %d", stats.Capacity)
	}
	if stats.Collections == 0 {
		t.Fatal("expecting collections")
	}
	for v := list; v.Kind == KindPair; v = h.Rest(v) {
		n--
		if h.First(v).Int() != int64(n) {
			t.Fatalf("got %v", h.First(v))
		}
	}
}

func TestHeap_GrowthReachesLimit(t *testing.T) {
	h := NewHeap(1000, 5000)
	list := Nil
	roots := rootsOf(&list)
	n := 0
	var err error
	for range 2000 {
		if err = h.Reserve(PairCells, roots); err != nil {
			break
		}
		list = h.Cons(Int(int64(n)), list)
		n++
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != ErrResource {
		t.Fatalf("got %v", err)
	}
	// cell 0 is never allocated
	if n != (5000-1)/PairCells {
		t.Fatalf("got %d pairs", n)
	}
	if c := h.Stats().Capacity; c != 5000 {
		t.Fatalf("got capacity %d", c)
	}
}

func TestMachine_GrowthReachesLimit(t *testing.T) {
	m := NewMachine(Options{
		HeapCells: 1000,
		HeapLimit: 5000,
	})
	list := Nil
	for i := range 1500 {
		m.Pin(list)
		if err := m.Reserve(PairCells); err != nil {
			t.Fatalf("%d pairs: %v", i, err)
		}
		list = m.Cons(Int(int64(i)), m.Pinned())
	}
	m.Unpin()
	if c := m.Heap.Stats().Capacity; c != 5000 {
		t.Fatalf("got capacity %d", c)
	}
}

func TestHeap_ReserveSkipsCollection(t *testing.T) {
	h := NewHeap(64, 64)
	if err := h.Reserve(10, rootsOf()); err != nil {
		t.Fatal(err)
	}
	if h.Stats().Collections != 0 {
		t.Fatal("unexpected collection")
	}
	if h.Free() != 63 {
		t.Fatalf("got %d", h.Free())
	}
}

func TestHeap_VerifyCorruption(t *testing.T) {
	h := NewHeap(64, 64)
	if err := h.Reserve(PairCells, rootsOf()); err != nil {
		t.Fatal(err)
	}
	pair := h.Cons(Nil, Nil)
	bogus := closureValue(pair.Ref())
	if err := h.Verify(rootsOf(&pair)); err != nil {
		t.Fatal(err)
	}
	if err := h.Verify(rootsOf(&bogus)); err == nil {
		t.Fatal("expecting error")
	}
	dangling := pairValue(1000)
	if err := h.Verify(rootsOf(&dangling)); err == nil {
		t.Fatal("expecting error")
	}
}
