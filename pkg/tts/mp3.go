package tts

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/codec"
)

// DecodeMP3 decodes MP3 audio to mono PCM16 at the target sample rate.
// Providers that only emit MP3 use this to feed the PCM call pipeline.
func DecodeMP3(data []byte, targetRate int) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tts: decode mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("tts: read mp3: %w", err)
	}

	// go-mp3 always emits 16-bit stereo regardless of source channels.
	mono := audioio.StereoToMono(audioio.BytesToSamples(raw))

	if dec.SampleRate() != targetRate {
		mono = codec.Resample(mono, dec.SampleRate(), targetRate)
	}

	return audioio.SamplesToBytes(mono), nil
}
