package audioio

import (
	"encoding/binary"
	"sync"
	"time"
)

// RecordingBuffer accumulates the raw PCM of one call for post-call
// persistence. Append-only while the call runs; WAV() wraps the bytes in a
// standard 44-byte-header container at the recorded rate, never resampling.
type RecordingBuffer struct {
	mu     sync.Mutex
	format Format
	data   []byte
	chunks int
}

// NewRecordingBuffer creates a buffer recording in the given format.
func NewRecordingBuffer(format Format) *RecordingBuffer {
	return &RecordingBuffer{format: format}
}

// Append adds one validated chunk of raw PCM bytes.
func (b *RecordingBuffer) Append(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, data...)
	b.chunks++
}

// Len returns the cumulative byte count.
func (b *RecordingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Chunks returns how many appends have occurred.
func (b *RecordingBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunks
}

// Format returns the declared recording format.
func (b *RecordingBuffer) Format() Format {
	return b.format
}

// Duration returns the recorded playback time: bytes divided by the
// format's data rate.
func (b *RecordingBuffer) Duration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format.Duration(len(b.data))
}

// WAV returns the recording as a WAV file image.
func (b *RecordingBuffer) WAV() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	blockAlign := b.format.FrameSize()
	byteRate := b.format.BytesPerSecond()

	out := make([]byte, 44+len(b.data))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(b.data)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(b.format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(b.format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(b.format.BitDepth))
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(b.data)))
	copy(out[44:], b.data)
	return out
}

// Clear drops all recorded audio, as after a post-call save.
func (b *RecordingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	b.chunks = 0
}
