package codec

import "fmt"

// Resample converts a single buffer of PCM16 samples between rates using
// linear interpolation. It is stateless: each call is interpolated in
// isolation, so feeding it a stream chunk by chunk produces a small
// discontinuity at every boundary. Streaming callers want Resampler.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := len(samples) * toRate / fromRate
	out := make([]int16, outLen)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := srcPos - float64(srcIdx)
		out[i] = lerp(samples[srcIdx], samples[srcIdx+1], frac)
	}
	return out
}

// Resampler converts a PCM16 stream between two fixed rates, carrying the
// fractional read position and the previous chunk's final sample across
// calls so that chunk boundaries stay continuous. One Resampler handles one
// direction of one call; it is not safe for concurrent use.
type Resampler struct {
	fromRate int
	toRate   int

	// acc is the not-yet-emitted remainder of len(in)*toRate, in units of
	// 1/toRate input samples. Zero for every telephony frame size, so the
	// common path is integer-exact.
	acc    int
	prev   int16
	primed bool
}

// NewResampler returns a Resampler converting fromRate to toRate.
func NewResampler(fromRate, toRate int) (*Resampler, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("codec: invalid resample rates %d -> %d", fromRate, toRate)
	}
	return &Resampler{fromRate: fromRate, toRate: toRate}, nil
}

// Rates returns the configured from and to sample rates.
func (r *Resampler) Rates() (int, int) {
	return r.fromRate, r.toRate
}

// Reset clears carry state, as at the start of a new call.
func (r *Resampler) Reset() {
	r.acc = 0
	r.prev = 0
	r.primed = false
}

// Process converts one chunk. The output length is exact over the life of
// the stream: after N input samples the resampler has emitted
// floor(N*toRate/fromRate) output samples. Interpolation runs one sample
// behind the input so the previous chunk's tail is bridged instead of
// clamped.
func (r *Resampler) Process(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	if r.fromRate == r.toRate {
		out := make([]int16, len(in))
		copy(out, in)
		r.prev = in[len(in)-1]
		r.primed = true
		return out
	}
	if !r.primed {
		r.prev = in[0]
		r.primed = true
	}

	total := len(in)*r.toRate + r.acc
	outLen := total / r.fromRate
	accIn := r.acc
	r.acc = total % r.fromRate

	step := float64(r.fromRate) / float64(r.toRate)
	offset := -1 - float64(accIn)/float64(r.toRate)
	out := make([]int16, outLen)

	for i := range out {
		pos := offset + float64(i)*step
		switch {
		case pos <= -1:
			out[i] = r.prev
		case pos < 0:
			out[i] = lerp(r.prev, in[0], pos+1)
		default:
			j := int(pos)
			if j >= len(in)-1 {
				out[i] = in[len(in)-1]
				continue
			}
			out[i] = lerp(in[j], in[j+1], pos-float64(j))
		}
	}

	r.prev = in[len(in)-1]
	return out
}

func lerp(a, b int16, frac float64) int16 {
	return int16(float64(a)*(1-frac) + float64(b)*frac)
}
