package chunk

import "testing"

func TestFormatFrameSize(t *testing.T) {
	tests := []struct {
		f    Format
		want int
	}{
		{Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}, 4},
		{Format{SampleRate: 48000, Channels: 1, BitsPerSample: 24}, 3},
		{Format{SampleRate: 96000, Channels: 6, BitsPerSample: 32}, 24},
	}

	for _, tt := range tests {
		if got := tt.f.FrameSize(); got != tt.want {
			t.Errorf("FrameSize(%+v): got %d, want %d", tt.f, got, tt.want)
		}
	}
}

func TestChunkWriteRespectsCapacity(t *testing.T) {
	var c Chunk
	data := make([]byte, MaxCapacity+100)
	for i := range data {
		data[i] = byte(i)
	}

	n := c.Write(data)
	if n != MaxCapacity {
		t.Fatalf("Write: got %d, want %d", n, MaxCapacity)
	}
	if !c.IsFull() {
		t.Errorf("IsFull: got false after filling to capacity")
	}

	n2 := c.Write([]byte{1, 2, 3})
	if n2 != 0 {
		t.Errorf("Write past capacity: got %d, want 0", n2)
	}
}

func TestChunkResetClearsMetadataButNotCapacity(t *testing.T) {
	c := Chunk{
		Length:           10,
		Format:           Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16},
		Tag:              &Tag{Title: "x"},
		Other:            &Chunk{},
		MixRatio:         0.5,
		ReplayGainSerial: 3,
	}
	c.Write([]byte{1, 2, 3})

	c.Reset()

	if !c.IsEmpty() {
		t.Errorf("IsEmpty: got false after Reset")
	}
	if c.Tag != nil || c.Other != nil || c.ReplayGainSerial != 0 {
		t.Errorf("Reset did not clear metadata: %+v", c)
	}
}

func TestCheckFormat(t *testing.T) {
	c := Chunk{Format: Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}}
	if !c.CheckFormat(Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}) {
		t.Errorf("CheckFormat: expected match")
	}
	if c.CheckFormat(Format{SampleRate: 48000, Channels: 2, BitsPerSample: 16}) {
		t.Errorf("CheckFormat: expected mismatch")
	}
}
