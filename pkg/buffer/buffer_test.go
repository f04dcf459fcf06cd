package buffer

import "testing"

func TestAllocateExhaustsFreeList(t *testing.T) {
	b := New(2)

	c1 := b.Allocate()
	c2 := b.Allocate()
	if c1 == nil || c2 == nil {
		t.Fatalf("Allocate: got nil before exhausting the pool")
	}
	if c1 == c2 {
		t.Fatalf("Allocate: returned the same chunk twice")
	}

	if c3 := b.Allocate(); c3 != nil {
		t.Errorf("Allocate: got %v, want nil once exhausted", c3)
	}

	if _, free, total := b.Stats(); free != 0 || total != 2 {
		t.Errorf("Stats: got free=%d total=%d, want free=0 total=2", free, total)
	}
}

func TestReturnMakesChunkReusable(t *testing.T) {
	b := New(1)

	c := b.Allocate()
	if c == nil {
		t.Fatalf("Allocate: got nil")
	}
	c.Write([]byte{1, 2, 3})

	b.Return(c)
	if allocated, free, _ := b.Stats(); allocated != 0 || free != 1 {
		t.Errorf("Stats after Return: got allocated=%d free=%d, want 0,1", allocated, free)
	}

	c2 := b.Allocate()
	if c2 != c {
		t.Fatalf("Allocate: got a different chunk than the one returned")
	}
	if !c2.IsEmpty() {
		t.Errorf("Allocate: chunk was not reset before reuse")
	}
}

func TestReturnNilIsNoOp(t *testing.T) {
	b := New(1)
	b.Return(nil)
	if _, free, _ := b.Stats(); free != 1 {
		t.Errorf("Return(nil): free list size changed, got %d want 1", free)
	}
}
