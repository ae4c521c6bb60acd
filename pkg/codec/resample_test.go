package codec

import "testing"

func TestResampleUpsample(t *testing.T) {
	input := make([]int16, 160)
	for i := range input {
		input[i] = int16(i * 10)
	}
	output := Resample(input, 8000, 16000)
	if len(output) != 320 {
		t.Errorf("Expected 320 samples, got %d", len(output))
	}
}

func TestResampleDownsample(t *testing.T) {
	input := make([]int16, 320)
	for i := range input {
		input[i] = int16(i)
	}
	output := Resample(input, 16000, 8000)
	if len(output) != 160 {
		t.Errorf("Expected 160 samples, got %d", len(output))
	}
}

func TestResampleSameRate(t *testing.T) {
	input := []int16{1, 2, 3, 4}
	output := Resample(input, 16000, 16000)
	if len(output) != len(input) {
		t.Fatalf("Expected %d samples, got %d", len(input), len(output))
	}
	for i := range input {
		if output[i] != input[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, input[i], output[i])
		}
	}
	// Must be a copy, not the same backing array
	output[0] = 99
	if input[0] == 99 {
		t.Error("Resample returned the input slice instead of a copy")
	}
}

func TestResamplerExactCounts(t *testing.T) {
	up, err := NewResampler(8000, 16000)
	if err != nil {
		t.Fatalf("NewResampler failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		out := up.Process(make([]int16, 160))
		if len(out) != 320 {
			t.Fatalf("Chunk %d: expected 320 samples, got %d", i, len(out))
		}
	}

	down, err := NewResampler(16000, 8000)
	if err != nil {
		t.Fatalf("NewResampler failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		out := down.Process(make([]int16, 1280))
		if len(out) != 640 {
			t.Fatalf("Chunk %d: expected 640 samples, got %d", i, len(out))
		}
	}
}

func TestResamplerChunkingInvariance(t *testing.T) {
	// Splitting the stream into chunks must not change the output: the
	// carried tail sample bridges every boundary.
	input := make([]int16, 640)
	for i := range input {
		input[i] = int16((i%80)*400 - 16000)
	}

	whole, _ := NewResampler(8000, 16000)
	want := whole.Process(input)

	split, _ := NewResampler(8000, 16000)
	var got []int16
	for _, n := range []int{160, 80, 240, 160} {
		got = append(got, split.Process(input[:n])...)
		input = input[n:]
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestResamplerContinuity(t *testing.T) {
	// Upsampling a smooth ramp must stay smooth across chunk boundaries.
	r, _ := NewResampler(8000, 16000)
	var out []int16
	sample := int16(0)
	for c := 0; c < 4; c++ {
		chunk := make([]int16, 160)
		for i := range chunk {
			chunk[i] = sample
			sample += 4
		}
		out = append(out, r.Process(chunk)...)
	}
	for i := 1; i < len(out); i++ {
		diff := int32(out[i]) - int32(out[i-1])
		if diff < 0 || diff > 4 {
			t.Fatalf("Discontinuity at sample %d: %d -> %d", i, out[i-1], out[i])
		}
	}
}

func TestResamplerReset(t *testing.T) {
	r, _ := NewResampler(16000, 8000)
	r.Process(make([]int16, 321))
	r.Reset()
	out := r.Process(make([]int16, 320))
	if len(out) != 160 {
		t.Errorf("Expected 160 samples after reset, got %d", len(out))
	}
}

func TestNewResamplerInvalidRates(t *testing.T) {
	if _, err := NewResampler(0, 16000); err == nil {
		t.Error("Expected error for zero from-rate")
	}
	if _, err := NewResampler(8000, -1); err == nil {
		t.Error("Expected error for negative to-rate")
	}
}

func BenchmarkResamplerUpsample(b *testing.B) {
	r, _ := NewResampler(8000, 16000)
	chunk := make([]int16, 160)
	for i := range chunk {
		chunk[i] = int16(i * 100)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Process(chunk)
	}
}
