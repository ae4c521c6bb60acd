package audioio

import (
	"math"
	"testing"
	"time"
)

func TestChunkBytesRoundTrip(t *testing.T) {
	orig := AudioChunk{
		Samples:    []int16{0, 1, -1, 32767, -32768, 12345},
		SampleRate: 16000,
		Channels:   1,
	}
	data := orig.Bytes()
	if len(data) != len(orig.Samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(orig.Samples)*2, len(data))
	}

	var back AudioChunk
	back.FromBytes(data, 16000, 1)
	if len(back.Samples) != len(orig.Samples) {
		t.Fatalf("Expected %d samples, got %d", len(orig.Samples), len(back.Samples))
	}
	for i := range orig.Samples {
		if back.Samples[i] != orig.Samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, orig.Samples[i], back.Samples[i])
		}
	}
}

func TestChunkDuration(t *testing.T) {
	c := AudioChunk{Samples: make([]int16, 1280), SampleRate: 16000, Channels: 1}
	if d := c.Duration(); d != 80*time.Millisecond {
		t.Errorf("Expected 80ms, got %s", d)
	}
	stereo := AudioChunk{Samples: make([]int16, 640), SampleRate: 8000, Channels: 2}
	if d := stereo.Duration(); d != 40*time.Millisecond {
		t.Errorf("Expected 40ms, got %s", d)
	}
}

func TestStereoToMono(t *testing.T) {
	mono := StereoToMono([]int16{100, 200, -100, -200, 0, 50})
	want := []int16{150, -150, 25}
	if len(mono) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(mono))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], mono[i])
		}
	}
}

func TestToneGeneratorRMS(t *testing.T) {
	gen := NewToneGenerator(DefaultFormat(), 440, 0.5)
	chunk := gen.Next(time.Second)
	if len(chunk.Samples) != 16000 {
		t.Fatalf("Expected 16000 samples, got %d", len(chunk.Samples))
	}
	// A sine at amplitude 0.5 has RMS 0.5/sqrt(2)
	rms := CalculateRMS(chunk.Samples)
	want := 0.5 / math.Sqrt2
	if math.Abs(rms-want) > 0.01 {
		t.Errorf("Expected RMS near %.3f, got %.3f", want, rms)
	}
}

func TestToneGeneratorChunks(t *testing.T) {
	gen := NewToneGenerator(DefaultFormat(), 440, 0.8)
	chunks := gen.Chunks(3*time.Second, 80*time.Millisecond)
	if len(chunks) != 37 {
		t.Errorf("Expected 37 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Samples) != 1280 {
			t.Fatalf("Chunk %d: expected 1280 samples, got %d", i, len(c.Samples))
		}
	}
}
