package output

import (
	"testing"

	"github.com/drgolem/musictools/pkg/buffer"
	"github.com/drgolem/musictools/pkg/chunk"
	"github.com/drgolem/musictools/pkg/filter"
	"github.com/drgolem/musictools/pkg/pipe"
)

func newTestSource(t *testing.T) (*Source, *buffer.Buffer, *pipe.Pipe) {
	t.Helper()
	buf := buffer.New(4)
	p := pipe.New(buf)
	s := NewSource(p, buf, filter.NewChain())
	if _, err := s.Open(chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, buf, p
}

func noLock()   {}
func noUnlock() {}

func TestFillReturnsFalseOnEmptyPipe(t *testing.T) {
	s, _, _ := newTestSource(t)
	ok, err := s.Fill(noUnlock, noLock)
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if ok {
		t.Errorf("Fill on empty pipe: got true, want false")
	}
}

func TestFillAndConsumeReturnsChunkToFreeList(t *testing.T) {
	s, buf, p := newTestSource(t)

	c := buf.Allocate()
	c.Format = chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	c.Write([]byte{1, 2, 3, 4})
	p.Push(c)

	ok, err := s.Fill(noUnlock, noLock)
	if err != nil || !ok {
		t.Fatalf("Fill: ok=%v err=%v", ok, err)
	}
	if len(s.Pending()) != 4 {
		t.Fatalf("Pending: got %d bytes, want 4", len(s.Pending()))
	}

	s.ConsumeData(4)
	if len(s.Pending()) != 0 {
		t.Errorf("Pending after full consume: got %d bytes, want 0", len(s.Pending()))
	}

	if _, free, _ := buf.Stats(); free != 4 {
		t.Errorf("Stats after consume: free=%d, want 4 (chunk returned)", free)
	}
}

func TestMixLinearBlendsTowardRatio(t *testing.T) {
	s, _, _ := newTestSource(t)

	primary := []byte{0, 0, 0, 0} // two zero samples
	other := make([]byte, 4)
	putSampleAt(other, 0, 10000)
	putSampleAt(other, 2, 10000)

	mixed, err := s.mix(primary, other, 1) // ratio=1 => all primary
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if v := sampleAt(mixed, 0); v != 0 {
		t.Errorf("mix ratio=1: got %d, want 0 (all primary)", v)
	}

	mixed2, err := s.mix(primary, other, 0) // ratio=0 => all other
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if v := sampleAt(mixed2, 0); v != 10000 {
		t.Errorf("mix ratio=0: got %d, want 10000 (all other)", v)
	}
}

func TestMixAdditiveSumsForMixRampRatio(t *testing.T) {
	s, _, _ := newTestSource(t)

	primary := make([]byte, 2)
	putSampleAt(primary, 0, 1000)
	other := make([]byte, 2)
	putSampleAt(other, 0, 2000)

	mixed, err := s.mix(primary, other, -1)
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if v := sampleAt(mixed, 0); v != 3000 {
		t.Errorf("additive mix: got %d, want 3000", v)
	}
}

func TestMixClampsOverflow(t *testing.T) {
	s, _, _ := newTestSource(t)
	primary := make([]byte, 2)
	putSampleAt(primary, 0, 30000)
	other := make([]byte, 2)
	putSampleAt(other, 0, 30000)

	mixed, err := s.mix(primary, other, -1)
	if err != nil {
		t.Fatalf("mix: %v", err)
	}
	if v := sampleAt(mixed, 0); v != 32767 {
		t.Errorf("additive mix overflow: got %d, want clamped to 32767", v)
	}
}
