package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google"

// Google Cloud TTS voice names for en-US.
const (
	VoiceNeural2F = "en-US-Neural2-F" // Female neural voice
	VoiceNeural2D = "en-US-Neural2-D" // Male neural voice
	VoiceWaveNetF = "en-US-Wavenet-F" // Female WaveNet voice
	VoiceWaveNetD = "en-US-Wavenet-D" // Male WaveNet voice
)

// Google implements Provider for Google Cloud Text-to-Speech.
//
// Authentication uses a service account key passed via
// WithCredentialsJSON, or Application Default Credentials when no key is
// configured.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a new Google Cloud TTS provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ""
	cfg.VoiceID = VoiceNeural2F
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	if len(cfg.CredentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, cfg.CredentialsJSON, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("parse credentials: %w", err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(creds.TokenSource))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts,
			option.WithEndpoint(cfg.BaseURL),
			option.WithoutAuthentication(),
		)
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (g *Google) Synthesize(ctx context.Context, text string, opts StreamOptions) (*AudioResult, error) {
	start := time.Now()

	voice := g.config.VoiceID
	if opts.VoiceID != "" {
		voice = opts.VoiceID
	}
	sampleRate := SampleRateFromEncoding(g.config.OutputFormat)
	if opts.SampleRate != 0 {
		sampleRate = opts.SampleRate
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(sampleRate),
		},
	}

	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, g.wrapAPIError(err)
	}

	latency := time.Since(start).Milliseconds()

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	// LINEAR16 arrives in a WAV container; the pipeline wants bare PCM.
	audio = StripWAVHeader(audio)

	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", voice,
	)

	format := AudioFormat{
		Encoding:   g.config.OutputFormat,
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
		Duration:  pcmDuration(len(audio), sampleRate),
	}, nil
}

// Stream converts text to audio with streaming output.
// Google's REST API has no streaming endpoint, so this falls back to Synthesize.
func (g *Google) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := g.Synthesize(ctx, text, StreamOptions{})
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// StartStream opens an incremental session. Text is buffered until Flush
// and synthesized in one request.
func (g *Google) StartStream(ctx context.Context, opts StreamOptions) (StreamSession, error) {
	sampleRate := SampleRateFromEncoding(g.config.OutputFormat)
	if opts.SampleRate != 0 {
		sampleRate = opts.SampleRate
	}
	format := AudioFormat{
		Encoding:   g.config.OutputFormat,
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
	return newBufferedSession(ctx, format, func(ctx context.Context, text string) ([]byte, error) {
		result, err := g.Synthesize(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		return result.Audio, nil
	}), nil
}

// Health checks API connectivity by listing available voices.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.svc.Voices.List().LanguageCode(g.config.LanguageCode).Context(ctx).Do()
	if err != nil {
		return g.wrapAPIError(err)
	}
	return nil
}

// Name returns the provider identifier.
func (g *Google) Name() string {
	return providerGoogle
}

// Capabilities describes provider features.
func (g *Google) Capabilities() Capabilities {
	return Capabilities{
		Streaming:   false,
		Incremental: false,
		VoiceClone:  false,
	}
}

// Close releases resources.
func (g *Google) Close() error {
	return nil
}

// VoiceID returns the configured voice name.
func (g *Google) VoiceID() string {
	return g.config.VoiceID
}

// wrapAPIError converts googleapi errors to the package error types.
func (g *Google) wrapAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// StripWAVHeader removes the 44-byte RIFF/WAVE header if present,
// returning bare PCM sample data.
func StripWAVHeader(data []byte) []byte {
	if len(data) >= 44 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return data[44:]
	}
	return data
}

// pcmDuration estimates playback duration for mono PCM16 data.
func pcmDuration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
