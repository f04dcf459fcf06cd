package pipe

import "github.com/drgolem/musictools/pkg/chunk"
import "testing"

type fakeFree struct {
	returned []*chunk.Chunk
}

func (f *fakeFree) Return(c *chunk.Chunk) {
	f.returned = append(f.returned, c)
}

func TestPushPopOrdersFIFO(t *testing.T) {
	free := &fakeFree{}
	p := New(free)

	c1, c2 := &chunk.Chunk{}, &chunk.Chunk{}
	p.Push(c1)
	p.Push(c2)

	if p.Size() != 2 {
		t.Fatalf("Size: got %d, want 2", p.Size())
	}
	if got := p.Pop(); got != c1 {
		t.Errorf("Pop: got %v, want c1", got)
	}
	if got := p.Pop(); got != c2 {
		t.Errorf("Pop: got %v, want c2", got)
	}
	if got := p.Pop(); got != nil {
		t.Errorf("Pop on empty pipe: got %v, want nil", got)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	free := &fakeFree{}
	p := New(free)
	c := &chunk.Chunk{}
	p.Push(c)

	if got := p.Peek(); got != c {
		t.Fatalf("Peek: got %v, want c", got)
	}
	if p.Size() != 1 {
		t.Errorf("Size after Peek: got %d, want 1", p.Size())
	}
}

func TestCancelReturnsAllToFreeList(t *testing.T) {
	free := &fakeFree{}
	p := New(free)
	c1, c2, c3 := &chunk.Chunk{}, &chunk.Chunk{}, &chunk.Chunk{}
	p.Push(c1)
	p.Push(c2)
	p.Push(c3)

	p.Cancel()

	if p.Size() != 0 {
		t.Errorf("Size after Cancel: got %d, want 0", p.Size())
	}
	if len(free.returned) != 3 {
		t.Fatalf("Cancel: returned %d chunks to free list, want 3", len(free.returned))
	}
}
