package codec

import (
	"errors"
	"testing"
)

func TestULawSilence(t *testing.T) {
	// Canonical G.711: linear zero encodes to 0xFF in mu-law
	pcm := []byte{0, 0, 0, 0}
	out, err := PCM16ToULaw(pcm)
	if err != nil {
		t.Fatalf("PCM16ToULaw failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 bytes, got %d", len(out))
	}
	for i, b := range out {
		if b != 0xff {
			t.Errorf("Sample %d: expected 0xff, got 0x%02x", i, b)
		}
	}
}

func TestALawSilence(t *testing.T) {
	// Canonical G.711: linear zero encodes to 0xD5 in A-law
	out, err := PCM16ToALaw([]byte{0, 0})
	if err != nil {
		t.Fatalf("PCM16ToALaw failed: %v", err)
	}
	if out[0] != 0xd5 {
		t.Errorf("Expected 0xd5, got 0x%02x", out[0])
	}
}

func TestULawByteRoundTrip(t *testing.T) {
	// Every mu-law byte except 0x7F survives decode->encode unchanged.
	// 0x7F is negative zero, which collapses to positive zero (0xFF).
	for b := 0; b < 256; b++ {
		if b == 0x7f {
			continue
		}
		s := decodeULawSample(byte(b))
		got := encodeULawSample(s)
		if got != byte(b) {
			t.Errorf("Byte 0x%02x: decoded to %d, re-encoded to 0x%02x", b, s, got)
		}
	}
}

func TestALawByteRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		s := decodeALawSample(byte(b))
		got := encodeALawSample(s)
		if got != byte(b) {
			t.Errorf("Byte 0x%02x: decoded to %d, re-encoded to 0x%02x", b, s, got)
		}
	}
}

func TestULawQuantizationError(t *testing.T) {
	// Round-tripping linear samples through mu-law must stay within the
	// top-segment quantization step plus clipping loss.
	values := []int16{0, 1, -1, 7, -8, 100, -100, 1000, -1000, 8000, -8000, 30000, -30000, 32767, -32768}
	for _, v := range values {
		enc := encodeULawSample(v)
		dec := decodeULawSample(enc)
		diff := int32(v) - int32(dec)
		if diff < 0 {
			diff = -diff
		}
		if diff > 700 {
			t.Errorf("Sample %d: round-trip gave %d (error %d)", v, dec, diff)
		}
	}
}

func TestALawQuantizationError(t *testing.T) {
	values := []int16{0, 1, -1, 50, -50, 500, -500, 5000, -5000, 20000, -20000, 32767, -32768}
	for _, v := range values {
		enc := encodeALawSample(v)
		dec := decodeALawSample(enc)
		diff := int32(v) - int32(dec)
		if diff < 0 {
			diff = -diff
		}
		if diff > 700 {
			t.Errorf("Sample %d: round-trip gave %d (error %d)", v, dec, diff)
		}
	}
}

func TestULawStreamRoundTrip(t *testing.T) {
	// A full expand->compress pass over a stream of bytes must reproduce it
	// (modulo the negative-zero byte).
	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
		if src[i] == 0x7f {
			src[i] = 0xff
		}
	}
	pcm := ULawToPCM16(src)
	if len(pcm) != len(src)*2 {
		t.Fatalf("Expected %d PCM bytes, got %d", len(src)*2, len(pcm))
	}
	back, err := PCM16ToULaw(pcm)
	if err != nil {
		t.Fatalf("PCM16ToULaw failed: %v", err)
	}
	for i := range src {
		if back[i] != src[i] {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, src[i], back[i])
		}
	}
}

func TestOddPCMLength(t *testing.T) {
	if _, err := PCM16ToULaw([]byte{1, 2, 3}); !errors.Is(err, ErrOddPCMLength) {
		t.Errorf("Expected ErrOddPCMLength, got %v", err)
	}
	if _, err := PCM16ToALaw([]byte{1}); !errors.Is(err, ErrOddPCMLength) {
		t.Errorf("Expected ErrOddPCMLength, got %v", err)
	}
}

func BenchmarkULawToPCM16(b *testing.B) {
	src := make([]byte, 160)
	for i := range src {
		src[i] = byte(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ULawToPCM16(src)
	}
}

func BenchmarkPCM16ToULaw(b *testing.B) {
	pcm := make([]byte, 320)
	for i := range pcm {
		pcm[i] = byte(i * 7)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PCM16ToULaw(pcm)
	}
}
