package app

import "testing"

func TestRingEvictsOldest(t *testing.T) {
	r := newRing[int](3)

	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	if r.len() != 3 {
		t.Fatalf("expected 3 items, got %d", r.len())
	}

	items := r.snapshot()
	want := []int{3, 4, 5}
	for i, v := range want {
		if items[i] != v {
			t.Errorf("item %d: expected %d, got %d", i, v, items[i])
		}
	}
}

func TestRingSnapshotIsCopy(t *testing.T) {
	r := newRing[int](4)
	r.push(1)
	r.push(2)

	snap := r.snapshot()
	snap[0] = 99

	if r.snapshot()[0] != 1 {
		t.Error("mutating a snapshot leaked into the ring")
	}
}

func TestRingLast(t *testing.T) {
	r := newRing[string](2)

	if _, ok := r.last(); ok {
		t.Error("expected no last element in empty ring")
	}

	r.push("a")
	r.push("b")
	r.push("c")

	last, ok := r.last()
	if !ok || last != "c" {
		t.Errorf("expected last=c, got %q ok=%v", last, ok)
	}
}

func TestRingZeroLimit(t *testing.T) {
	r := newRing[int](0)
	r.push(1)
	r.push(2)

	if r.len() != 1 {
		t.Fatalf("expected limit clamped to 1, got %d items", r.len())
	}
	if r.snapshot()[0] != 2 {
		t.Error("expected newest item kept")
	}
}
