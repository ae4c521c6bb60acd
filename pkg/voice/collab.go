package voice

import (
	"context"
	"time"
)

// RecordingSink receives the full-call audio after hang-up.
type RecordingSink interface {
	// SaveRecording persists the WAV-encoded call audio.
	SaveRecording(ctx context.Context, callID string, wav []byte, duration time.Duration) error
}

// TranscriptSink receives the turn-by-turn transcript after hang-up.
type TranscriptSink interface {
	SaveTranscript(ctx context.Context, callID string, turns []Turn) error
}

// Guardrails supplies the canned utterances the agent falls back to
// when a provider fails mid-call. The platform layer can swap in
// campaign-specific copy; the pipeline only needs text back.
type Guardrails interface {
	// Fallback is spoken after a transient provider error, keeping the
	// call alive for another attempt.
	Fallback(callID string) string

	// Goodbye is spoken before ending a call the pipeline cannot
	// recover. Callers are never hung up on silently.
	Goodbye(callID string) string
}

// StaticGuardrails returns fixed utterances for every call.
type StaticGuardrails struct {
	FallbackText string
	GoodbyeText  string
}

// NewStaticGuardrails returns guardrails with stock phrasing.
func NewStaticGuardrails() *StaticGuardrails {
	return &StaticGuardrails{
		FallbackText: "Sorry, I missed that. Could you say it one more time?",
		GoodbyeText:  "I'm having some technical trouble on my end, so I'll let you go. Thanks for your time, goodbye.",
	}
}

// Fallback implements Guardrails.
func (g *StaticGuardrails) Fallback(callID string) string { return g.FallbackText }

// Goodbye implements Guardrails.
func (g *StaticGuardrails) Goodbye(callID string) string { return g.GoodbyeText }

// discardSink drops recordings and transcripts. It is the default when
// no persistence is wired, so the pipeline never nil-checks sinks.
type discardSink struct{}

func (discardSink) SaveRecording(ctx context.Context, callID string, wav []byte, duration time.Duration) error {
	return nil
}

func (discardSink) SaveTranscript(ctx context.Context, callID string, turns []Turn) error {
	return nil
}

var (
	_ Guardrails     = (*StaticGuardrails)(nil)
	_ RecordingSink  = discardSink{}
	_ TranscriptSink = discardSink{}
)
