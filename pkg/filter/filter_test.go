package filter

import (
	"encoding/binary"
	"testing"

	"github.com/drgolem/musictools/pkg/chunk"
)

func TestGainFilterOffPassesThrough(t *testing.T) {
	g := NewGainFilter()
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:2], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(pcm[2:4], uint16(int16(-1000)))

	g.Open(chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16})
	out, err := g.FilterPCM(pcm)
	if err != nil {
		t.Fatalf("FilterPCM: %v", err)
	}
	if s := int16(binary.LittleEndian.Uint16(out[0:2])); s != 1000 {
		t.Errorf("sample 0: got %d, want 1000 (gain off)", s)
	}
}

func TestGainFilterScalesDown(t *testing.T) {
	g := NewGainFilter()
	g.SetMode(GainTrack)
	g.SetInfo(&chunk.ReplayGainInfo{TrackGain: -6, TrackPeak: 0})
	g.Open(chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16})

	pcm := make([]byte, 2)
	binary.LittleEndian.PutUint16(pcm, uint16(int16(10000)))

	out, err := g.FilterPCM(pcm)
	if err != nil {
		t.Fatalf("FilterPCM: %v", err)
	}
	s := int16(binary.LittleEndian.Uint16(out))
	if s >= 10000 {
		t.Errorf("expected -6dB gain to reduce sample below 10000, got %d", s)
	}
}

func TestGainFilterClampsToPeak(t *testing.T) {
	g := NewGainFilter()
	g.SetMode(GainTrack)
	// +6dB boost but a peak of 0.8 must cap the factor at 1/0.8 = 1.25.
	g.SetInfo(&chunk.ReplayGainInfo{TrackGain: 6, TrackPeak: 0.8})
	g.Open(chunk.Format{SampleRate: 44100, Channels: 1, BitsPerSample: 16})

	pcm := make([]byte, 2)
	binary.LittleEndian.PutUint16(pcm, uint16(int16(20000)))
	out, _ := g.FilterPCM(pcm)
	s := int16(binary.LittleEndian.Uint16(out))
	want := int16(20000 * 1.25)
	if s != want {
		t.Errorf("got %d, want %d (factor capped at 1/peak)", s, want)
	}
}

func TestChainRunsStagesInOrder(t *testing.T) {
	g1 := NewGainFilter()
	g1.SetMode(GainTrack)
	g1.SetInfo(&chunk.ReplayGainInfo{TrackGain: -6, TrackPeak: 0})
	g2 := NewGainFilter()
	g2.SetMode(GainTrack)
	g2.SetInfo(&chunk.ReplayGainInfo{TrackGain: -6, TrackPeak: 0})

	c := NewChain(g1, g2)
	out, err := c.Open(chunk.Format{SampleRate: 44100, Channels: 1, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if out.SampleRate != 44100 {
		t.Errorf("Open: got %+v, want unchanged format", out)
	}

	pcm := make([]byte, 2)
	binary.LittleEndian.PutUint16(pcm, uint16(int16(10000)))
	filtered, err := c.FilterPCM(pcm)
	if err != nil {
		t.Fatalf("FilterPCM: %v", err)
	}
	s := int16(binary.LittleEndian.Uint16(filtered))
	if s >= 10000 {
		t.Errorf("expected two -6dB stages to reduce the sample, got %d", s)
	}
}

func TestResampleFilterNoOpAtSameRate(t *testing.T) {
	r := NewResampleFilter(44100)
	out, err := r.Open(chunk.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if out.SampleRate != 44100 {
		t.Errorf("Open: got %d, want 44100 unchanged", out.SampleRate)
	}

	pcm := []byte{1, 2, 3, 4}
	filtered, err := r.FilterPCM(pcm)
	if err != nil {
		t.Fatalf("FilterPCM: %v", err)
	}
	if len(filtered) != len(pcm) {
		t.Errorf("FilterPCM at matching rate: got len %d, want %d (pass-through)", len(filtered), len(pcm))
	}
}
