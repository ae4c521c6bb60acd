// Package persist stores post-call artifacts on the local filesystem:
// one WAV recording and one JSON transcript per call, grouped by date.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

// Store writes call artifacts under a base directory:
//
//	<base>/2026-08-29/<call-id>.wav
//	<base>/2026-08-29/<call-id>.json
type Store struct {
	base string
	log  *slog.Logger
}

// NewStore creates the base directory if needed.
func NewStore(base string) (*Store, error) {
	if base == "" {
		return nil, fmt.Errorf("persist: base directory required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create base dir: %w", err)
	}
	return &Store{base: base, log: log.With("component", "persist")}, nil
}

// transcriptFile is the on-disk transcript document.
type transcriptFile struct {
	CallID  string       `json:"call_id"`
	SavedAt time.Time    `json:"saved_at"`
	Turns   []voice.Turn `json:"turns"`
}

// SaveRecording implements voice.RecordingSink.
func (s *Store) SaveRecording(ctx context.Context, callID string, wav []byte, duration time.Duration) error {
	path, err := s.callPath(callID, "wav")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return fmt.Errorf("persist: write recording: %w", err)
	}
	s.log.Info("recording saved", "call_id", callID, "path", path,
		"bytes", len(wav), "duration", duration)
	return nil
}

// SaveTranscript implements voice.TranscriptSink.
func (s *Store) SaveTranscript(ctx context.Context, callID string, turns []voice.Turn) error {
	path, err := s.callPath(callID, "json")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(transcriptFile{
		CallID:  callID,
		SavedAt: time.Now(),
		Turns:   turns,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encode transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist: write transcript: %w", err)
	}
	s.log.Info("transcript saved", "call_id", callID, "path", path, "turns", len(turns))
	return nil
}

func (s *Store) callPath(callID, ext string) (string, error) {
	day := time.Now().Format("2006-01-02")
	dir := filepath.Join(s.base, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("persist: create day dir: %w", err)
	}
	return filepath.Join(dir, callID+"."+ext), nil
}

var (
	_ voice.RecordingSink  = (*Store)(nil)
	_ voice.TranscriptSink = (*Store)(nil)
)
