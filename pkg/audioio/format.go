package audioio

import (
	"fmt"
	"time"
)

// Chunk duration bounds enforced by Format.Validate. Shorter chunks are
// transport noise; longer ones indicate a stalled or misframed sender.
const (
	MinChunkDuration = 10 * time.Millisecond
	MaxChunkDuration = 1000 * time.Millisecond
)

// Format describes the PCM envelope audio must satisfy on a media path.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

// DefaultFormat is the pipeline-side format: 16 kHz mono PCM16.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
}

// TelephonyFormat is the narrow-band wire format: 8 kHz mono PCM16.
func TelephonyFormat() Format {
	return Format{SampleRate: 8000, Channels: 1, BitDepth: 16}
}

// FrameSize returns the byte size of one sample frame across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond returns the data rate of this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns the playback duration of n bytes in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Check verifies the format itself is usable.
func (f Format) Check() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", f.BitDepth)
	}
	return nil
}

// Validate checks one raw chunk against the format envelope. A nil return
// means the chunk is safe to record and queue. Failures are *ValidationError
// values so callers can count them without string matching.
func (f Format) Validate(data []byte) error {
	if len(data) == 0 {
		return &ValidationError{Reason: "empty chunk"}
	}
	fs := f.FrameSize()
	if fs > 0 && len(data)%fs != 0 {
		return &ValidationError{
			Reason: fmt.Sprintf("length %d is not a multiple of frame size %d", len(data), fs),
		}
	}
	d := f.Duration(len(data))
	if d < MinChunkDuration {
		return &ValidationError{
			Reason: fmt.Sprintf("duration %s below minimum %s", d, MinChunkDuration),
		}
	}
	if d > MaxChunkDuration {
		return &ValidationError{
			Reason: fmt.Sprintf("duration %s above maximum %s", d, MaxChunkDuration),
		}
	}
	return nil
}

// ValidationError describes a chunk rejected by Format.Validate.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "audioio: invalid chunk: " + e.Reason
}
