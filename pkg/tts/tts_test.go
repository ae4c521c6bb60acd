package tts_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world", tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 16000 {
			t.Errorf("expected 16000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Stream returns audio stream", func(t *testing.T) {
		stream, err := mock.Stream(ctx, "Test stream")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer stream.Close()

		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
		if len(chunk) == 0 {
			t.Error("expected audio chunk")
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		calls := mock.Calls()
		if len(calls) != 3 {
			t.Errorf("expected 3 calls, got %d", len(calls))
		}
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockRecordsRequestVoice(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello", tts.StreamOptions{VoiceID: "voice-a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, err := mock.StartStream(ctx, tts.StreamOptions{VoiceID: "voice-b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session.Close()

	calls := mock.Calls()
	if len(calls) < 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(calls))
	}
	if calls[0].Method != "Synthesize" || calls[0].VoiceID != "voice-a" {
		t.Errorf("expected Synthesize with voice-a, got %+v", calls[0])
	}
	if calls[1].Method != "StartStream" || calls[1].VoiceID != "voice-b" {
		t.Errorf("expected StartStream with voice-b, got %+v", calls[1])
	}
}

func TestMockStreamSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Flush produces audio then closes channel", func(t *testing.T) {
		mock := tts.NewMock()
		session, err := mock.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := session.SendText("Hello "); err != nil {
			t.Fatalf("send error: %v", err)
		}
		if err := session.SendText("caller"); err != nil {
			t.Fatalf("send error: %v", err)
		}
		if err := session.Flush(); err != nil {
			t.Fatalf("flush error: %v", err)
		}

		var total int
		for chunk := range session.Audio() {
			total += len(chunk)
		}
		if total == 0 {
			t.Error("expected audio from session")
		}
		if err := session.Err(); err != nil {
			t.Errorf("unexpected session error: %v", err)
		}
		if session.Format().SampleRate != 16000 {
			t.Errorf("expected 16000 sample rate, got %d", session.Format().SampleRate)
		}
		session.Close()
	})

	t.Run("SendText after Flush returns ErrSessionClosed", func(t *testing.T) {
		mock := tts.NewMock()
		session, err := mock.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		session.SendText("hi")
		session.Flush()

		if err := session.SendText("more"); !errors.Is(err, tts.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
		for range session.Audio() {
		}
		session.Close()
	})

	t.Run("Close without Flush closes audio channel", func(t *testing.T) {
		mock := tts.NewMock()
		session, err := mock.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		session.SendText("never spoken")
		session.Close()

		if _, ok := <-session.Audio(); ok {
			t.Error("expected audio channel to be closed")
		}
	})

	t.Run("Flush with no text yields no audio", func(t *testing.T) {
		mock := tts.NewMock()
		session, err := mock.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := session.Flush(); err != nil {
			t.Fatalf("flush error: %v", err)
		}
		var total int
		for chunk := range session.Audio() {
			total += len(chunk)
		}
		if total != 0 {
			t.Errorf("expected no audio, got %d bytes", total)
		}
		session.Close()
	})

	t.Run("Synthesis error is reported via Err", func(t *testing.T) {
		synthErr := errors.New("synth exploded")
		mock := tts.NewMock()
		mock.SynthesizeFunc = func(ctx context.Context, text string, opts tts.StreamOptions) (*tts.AudioResult, error) {
			return nil, synthErr
		}

		session, err := mock.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		session.SendText("boom")
		session.Flush()
		for range session.Audio() {
		}
		if !errors.Is(session.Err(), synthErr) {
			t.Errorf("expected synthesis error, got %v", session.Err())
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	t.Run("Synthesize returns error", func(t *testing.T) {
		_, err := mock.Synthesize(ctx, "Hello", tts.StreamOptions{})
		if err == nil {
			t.Error("expected error")
		}
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Stream returns error", func(t *testing.T) {
		_, err := mock.Stream(ctx, "Hello")
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("StartStream returns error", func(t *testing.T) {
		_, err := mock.StartStream(ctx, tts.StreamOptions{})
		if !errors.Is(err, testErr) {
			t.Errorf("expected test error, got %v", err)
		}
	})

	t.Run("Health returns error", func(t *testing.T) {
		err := mock.Health(ctx)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.NewMock()
	mock = tts.WithLatency(mock, 50*time.Millisecond)
	ctx := context.Background()

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(ctx, "Hello", tts.StreamOptions{})
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := mock.Synthesize(ctx, "Hello", tts.StreamOptions{})
		if err == nil {
			t.Error("expected context deadline error")
		}
	})
}

func TestDefaultVoiceSettings(t *testing.T) {
	settings := tts.DefaultVoiceSettings()

	if settings.Stability != 0.5 {
		t.Errorf("expected stability 0.5, got %f", settings.Stability)
	}
	if settings.SimilarityBoost != 0.75 {
		t.Errorf("expected similarity 0.75, got %f", settings.SimilarityBoost)
	}
	if settings.Style != 0.0 {
		t.Errorf("expected style 0.0, got %f", settings.Style)
	}
	if !settings.SpeakerBoost {
		t.Error("expected speaker boost true")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := tts.DefaultConfig()

	if cfg.OutputFormat != tts.EncodingPCM16 {
		t.Errorf("expected PCM16 default, got %s", cfg.OutputFormat)
	}
	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected en-US, got %s", cfg.LanguageCode)
	}
	if cfg.ModelID != tts.ModelTurboV2_5 {
		t.Errorf("expected turbo model, got %s", cfg.ModelID)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice("test-voice"),
		tts.WithModel("test-model"),
		tts.WithTimeout(5*time.Second),
		tts.WithOutputFormat(tts.EncodingMP3),
		tts.WithLanguage("en-GB"),
		tts.WithStreamBaseURL("wss://example.com/v1/tts"),
	)

	if cfg.VoiceID != "test-voice" {
		t.Errorf("expected voice test-voice, got %s", cfg.VoiceID)
	}
	if cfg.ModelID != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.ModelID)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.OutputFormat != tts.EncodingMP3 {
		t.Errorf("expected MP3 format, got %s", cfg.OutputFormat)
	}
	if cfg.LanguageCode != "en-GB" {
		t.Errorf("expected en-GB, got %s", cfg.LanguageCode)
	}
	if cfg.StreamBaseURL != "wss://example.com/v1/tts" {
		t.Errorf("expected stream base URL, got %s", cfg.StreamBaseURL)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); err != tts.ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("Validate passes with API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.ValidateWithVoice(); err != tts.ErrNoVoiceID {
			t.Errorf("expected ErrNoVoiceID, got %v", err)
		}
	})

	t.Run("ValidateWithVoice passes with both", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		cfg.VoiceID = "test-voice"
		if err := cfg.ValidateWithVoice(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("IsRateLimited", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 429, Message: "rate limited"}
		if !err.IsRateLimited() {
			t.Error("expected IsRateLimited true")
		}
		if err.IsUnauthorized() {
			t.Error("expected IsUnauthorized false")
		}
	})

	t.Run("IsUnauthorized", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 401, Message: "unauthorized"}
		if !err.IsUnauthorized() {
			t.Error("expected IsUnauthorized true")
		}
	})

	t.Run("IsServerError", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			err := &tts.APIError{StatusCode: code}
			if !err.IsServerError() {
				t.Errorf("expected IsServerError true for %d", code)
			}
			if !err.IsRetryable() {
				t.Errorf("expected IsRetryable true for %d", code)
			}
		}
	})

	t.Run("Error message format", func(t *testing.T) {
		err := &tts.APIError{
			StatusCode: 400,
			Message:    "bad request",
			Code:       "invalid_input",
			Provider:   "elevenlabs",
		}
		msg := err.Error()
		if msg != "tts [elevenlabs]: API error 400 (invalid_input): bad request" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		encoding   tts.Encoding
		sampleRate int
	}{
		{tts.EncodingPCM16, 16000},
		{tts.EncodingPCM22, 22050},
		{tts.EncodingPCM24, 24000},
		{tts.EncodingPCM44, 44100},
		{tts.EncodingMP3, 44100},
		{tts.EncodingULaw, 8000},
	}

	for _, tt := range tests {
		t.Run(string(tt.encoding), func(t *testing.T) {
			rate := tts.SampleRateFromEncoding(tt.encoding)
			if rate != tt.sampleRate {
				t.Errorf("expected %d, got %d", tt.sampleRate, rate)
			}
		})
	}
}

func TestStripWAVHeader(t *testing.T) {
	t.Run("strips RIFF header", func(t *testing.T) {
		header := make([]byte, 44)
		copy(header[0:4], "RIFF")
		copy(header[8:12], "WAVE")
		payload := []byte{1, 2, 3, 4}

		got := tts.StripWAVHeader(append(header, payload...))
		if !bytes.Equal(got, payload) {
			t.Errorf("expected payload %v, got %v", payload, got)
		}
	})

	t.Run("passes through bare PCM", func(t *testing.T) {
		pcm := []byte{9, 8, 7, 6}
		got := tts.StripWAVHeader(pcm)
		if !bytes.Equal(got, pcm) {
			t.Errorf("expected %v, got %v", pcm, got)
		}
	})

	t.Run("passes through short data", func(t *testing.T) {
		short := []byte("RIFF")
		got := tts.StripWAVHeader(short)
		if !bytes.Equal(got, short) {
			t.Errorf("expected %v, got %v", short, got)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires providers", func(t *testing.T) {
		_, err := tts.NewChain()
		if err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First provider succeeds", func(t *testing.T) {
		mock1 := tts.NewMock()
		mock2 := tts.NewMock()

		chain, err := tts.NewChain(mock1, mock2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		_, err = chain.Synthesize(ctx, "Hello", tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Only first provider should be called
		if mock1.CallCount("Synthesize") != 1 {
			t.Error("expected first provider to be called")
		}
		if mock2.CallCount("Synthesize") != 0 {
			t.Error("expected second provider not to be called")
		}
	})

	t.Run("Fallback on failure", func(t *testing.T) {
		failMock := tts.WithError(errors.New("provider 1 failed"))
		successMock := tts.NewMock()

		chain, err := tts.NewChain(failMock, successMock)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		result, err := chain.Synthesize(ctx, "Hello", tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			t.Error("expected result from fallback provider")
		}
	})

	t.Run("StartStream falls back on failure", func(t *testing.T) {
		failMock := tts.WithError(errors.New("no sessions here"))
		successMock := tts.NewMock()

		chain, err := tts.NewChain(failMock, successMock)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		session, err := chain.StartStream(ctx, tts.StreamOptions{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		session.SendText("Hello")
		session.Flush()
		for range session.Audio() {
		}
		session.Close()

		if successMock.CallCount("StartStream") != 1 {
			t.Error("expected fallback provider session")
		}
	})

	t.Run("All providers fail", func(t *testing.T) {
		fail1 := tts.WithError(errors.New("fail 1"))
		fail2 := tts.WithError(errors.New("fail 2"))

		chain, err := tts.NewChain(fail1, fail2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		_, err = chain.Synthesize(ctx, "Hello", tts.StreamOptions{})
		if err == nil {
			t.Error("expected error when all providers fail")
		}
	})

	t.Run("Health checks all providers", func(t *testing.T) {
		mock1 := tts.NewMock()
		mock2 := tts.NewMock()

		chain, err := tts.NewChain(mock1, mock2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err = chain.Health(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestCapabilities(t *testing.T) {
	mock := tts.NewMock()

	if mock.Name() != "mock" {
		t.Errorf("expected name mock, got %s", mock.Name())
	}
	caps := mock.Capabilities()
	if !caps.Streaming || !caps.Incremental {
		t.Errorf("expected streaming and incremental capabilities, got %+v", caps)
	}

	chain, err := tts.NewChain(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !chain.Capabilities().Incremental {
		t.Error("expected chain to inherit incremental capability")
	}
}

func TestResolveElevenLabsVoice(t *testing.T) {
	t.Run("preset names map to voice IDs", func(t *testing.T) {
		id := tts.ResolveElevenLabsVoice(tts.DefaultElevenLabsVoice)
		if id == tts.DefaultElevenLabsVoice {
			t.Errorf("expected default preset to resolve to a voice ID, got %s", id)
		}
		if !tts.IsElevenLabsPreset(tts.DefaultElevenLabsVoice) {
			t.Error("expected default preset to be known")
		}
	})

	t.Run("raw IDs pass through", func(t *testing.T) {
		raw := "XrExE9yKIg1WjnnlVkGX"
		if got := tts.ResolveElevenLabsVoice(raw); got != raw {
			t.Errorf("expected raw ID passthrough, got %s", got)
		}
		if tts.IsElevenLabsPreset(raw) {
			t.Error("expected raw ID not to be a preset")
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("elevenlabs", inner)

	if err == nil {
		t.Fatal("expected error")
	}

	if err.Error() != "tts [elevenlabs]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	// Unwrap should return inner error
	var pe *tts.ProviderError
	if !errors.As(err, &pe) {
		t.Error("expected ProviderError")
	}
	if pe.Provider != "elevenlabs" {
		t.Errorf("expected provider elevenlabs, got %s", pe.Provider)
	}
}
