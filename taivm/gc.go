package taivm

import (
	"fmt"
	"time"
)

type CollectStats struct {
	Before   int
	After    int
	Capacity int
	Duration time.Duration
}

// collect copies every object reachable from roots into a fresh space of the
// given capacity. Forwarding addresses live in a side table indexed by old
// reference, and the copied space is scanned iteratively.
func (h *Heap) collect(capacity int, roots Roots) {
	start := time.Now()
	from := h.cells
	to := make([]Value, 1, capacity)
	forward := make([]Ref, len(from))

	move := func(v Value) Value {
		switch v.Kind {
		case KindPair, KindClosure:
		case KindSavedEnv:
			if v.word == 0 {
				return v
			}
		default:
			return v
		}
		ref := v.Ref()
		if moved := forward[ref]; moved != 0 {
			v.word = uint64(moved)
			return v
		}
		size := from[ref].objectSize()
		moved := Ref(len(to))
		to = append(to, from[ref:int(ref)+1+size]...)
		forward[ref] = moved
		v.word = uint64(moved)
		return v
	}

	roots(func(slot *Value) {
		*slot = move(*slot)
	})
	for scan := 1; scan < len(to); {
		size := to[scan].objectSize()
		for i := scan + 1; i <= scan+size; i++ {
			v := move(to[i])
			to[i] = v
		}
		scan += 1 + size
	}

	h.cells = to
	h.collections++
	if h.OnCollect != nil {
		h.OnCollect(CollectStats{
			Before:   len(from),
			After:    len(to),
			Capacity: capacity,
			Duration: time.Since(start),
		})
	}
}

// Verify checks that every reference held by roots or heap objects points at
// an object header of the matching kind.
func (h *Heap) Verify(roots Roots) error {
	check := func(v Value) error {
		var want objectKind
		switch v.Kind {
		case KindPair:
			want = objPair
		case KindClosure:
			want = objClosure
		case KindSavedEnv:
			if v.word == 0 {
				return nil
			}
			want = objFrame
		case kindHeader:
			return fmt.Errorf("header cell used as value")
		default:
			return nil
		}
		ref := v.Ref()
		if ref == 0 || int(ref) >= len(h.cells) {
			return fmt.Errorf("%s reference %d out of heap (%d cells)", v.Kind, ref, len(h.cells))
		}
		hdr := h.cells[ref]
		if hdr.Kind != kindHeader || hdr.objectKind() != want {
			return fmt.Errorf("%s reference %d does not point at a %s header", v.Kind, ref, v.Kind)
		}
		return nil
	}

	var err error
	roots(func(slot *Value) {
		if err == nil {
			err = check(*slot)
		}
	})
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}

	for scan := 1; scan < len(h.cells); {
		hdr := h.cells[scan]
		if hdr.Kind != kindHeader {
			return fmt.Errorf("expecting header at cell %d, got %s", scan, hdr.Kind)
		}
		size := hdr.objectSize()
		if scan+size >= len(h.cells) {
			return fmt.Errorf("object at cell %d overruns heap", scan)
		}
		for i := scan + 1; i <= scan+size; i++ {
			if err := check(h.cells[i]); err != nil {
				return fmt.Errorf("cell %d: %w", i, err)
			}
		}
		if hdr.objectKind() == objFrame && h.cells[scan+1].Kind != KindSavedEnv {
			return fmt.Errorf("frame at cell %d has no outer link", scan)
		}
		scan += 1 + size
	}
	return nil
}
