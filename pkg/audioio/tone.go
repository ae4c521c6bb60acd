package audioio

import (
	"math"
	"time"
)

// ToneGenerator produces a continuous sine wave as successive chunks,
// carrying phase across calls. Frequency 0 yields silence. Used by the
// call simulator, the RTP probe, and pipeline tests in place of a live
// caller.
type ToneGenerator struct {
	format    Format
	frequency float64
	amplitude float64
	phase     float64
}

// NewToneGenerator creates a generator for the given format.
// Amplitude is linear in [0, 1].
func NewToneGenerator(format Format, frequency, amplitude float64) *ToneGenerator {
	return &ToneGenerator{format: format, frequency: frequency, amplitude: amplitude}
}

// Next returns the next chunk of the configured duration.
func (g *ToneGenerator) Next(d time.Duration) AudioChunk {
	frames := int(d * time.Duration(g.format.SampleRate) / time.Second)
	samples := make([]int16, frames*g.format.Channels)

	if g.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := g.amplitude * math.Sin(2*math.Pi*g.frequency*g.phase/float64(g.format.SampleRate))
			s := int16(v * 32767)
			for ch := 0; ch < g.format.Channels; ch++ {
				samples[i*g.format.Channels+ch] = s
			}
			g.phase++
			if g.phase >= float64(g.format.SampleRate) {
				g.phase = 0
			}
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: g.format.SampleRate,
		Channels:   g.format.Channels,
		Timestamp:  time.Now(),
	}
}

// Chunks returns total/chunk chunks covering the total duration, dropping
// any remainder shorter than one full chunk.
func (g *ToneGenerator) Chunks(total, chunk time.Duration) []AudioChunk {
	n := int(total / chunk)
	out := make([]AudioChunk, n)
	for i := range out {
		out[i] = g.Next(chunk)
	}
	return out
}
