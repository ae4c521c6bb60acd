package voice

import (
	"testing"
	"time"
)

func TestTurnMetricsDerived(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := TurnMetrics{
		SpeechEnd:  base,
		LLMStart:   base.Add(20 * time.Millisecond),
		LLMEnd:     base.Add(320 * time.Millisecond),
		TTSStart:   base.Add(25 * time.Millisecond),
		TTSEnd:     base.Add(500 * time.Millisecond),
		AudioStart: base.Add(450 * time.Millisecond),
	}

	if got := m.TotalLatency(); got != 450*time.Millisecond {
		t.Errorf("Expected total 450ms, got %s", got)
	}
	if got := m.LLMLatency(); got != 300*time.Millisecond {
		t.Errorf("Expected LLM 300ms, got %s", got)
	}
	if got := m.TTSLatency(); got != 475*time.Millisecond {
		t.Errorf("Expected TTS 475ms, got %s", got)
	}
	if got := m.TimeToFirstAudio(); got != 425*time.Millisecond {
		t.Errorf("Expected first audio 425ms, got %s", got)
	}
	if !m.WithinTarget() {
		t.Error("450ms should be within the 700ms target")
	}
}

func TestWithinTargetBoundary(t *testing.T) {
	base := time.Now()

	at := func(total time.Duration) TurnMetrics {
		return TurnMetrics{SpeechEnd: base, AudioStart: base.Add(total)}
	}
	if !at(699 * time.Millisecond).WithinTarget() {
		t.Error("699ms should be within target")
	}
	if at(700 * time.Millisecond).WithinTarget() {
		t.Error("700ms should not be within target")
	}
	if (TurnMetrics{}).WithinTarget() {
		t.Error("Unstamped turn should not be within target")
	}
}

func TestTrackerMarksRequireTrackedTurn(t *testing.T) {
	tr := NewTracker()

	// Marks before StartTurn are no-ops, not panics.
	tr.MarkLLMStart("call-1")
	tr.MarkAudioStart("call-1")
	if _, ok := tr.Current("call-1"); ok {
		t.Error("Expected no tracked turn")
	}

	tr.StartTurn("call-1", 1)
	tr.MarkLLMStart("call-1")
	tr.MarkLLMEnd("call-1")
	tr.MarkTTSStart("call-1")
	tr.MarkAudioStart("call-1")
	tr.MarkTTSEnd("call-1")

	m, ok := tr.Current("call-1")
	if !ok {
		t.Fatal("Expected tracked turn")
	}
	if m.SpeechEnd.IsZero() || m.LLMStart.IsZero() || m.AudioStart.IsZero() {
		t.Error("Expected all stages stamped")
	}
	if m.TotalLatency() < 0 {
		t.Error("Latency must not be negative")
	}
}

func TestTrackerAudioStartStampsOnce(t *testing.T) {
	tr := NewTracker()
	tr.StartTurn("call-1", 1)
	tr.MarkAudioStart("call-1")
	first, _ := tr.Current("call-1")

	time.Sleep(2 * time.Millisecond)
	tr.MarkAudioStart("call-1")
	second, _ := tr.Current("call-1")

	if !first.AudioStart.Equal(second.AudioStart) {
		t.Error("AudioStart must keep the first stamp")
	}
}

func TestTrackerLogMetricsArchives(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.LogMetrics("call-1"); ok {
		t.Error("LogMetrics without a turn should report nothing")
	}

	tr.StartTurn("call-1", 1)
	tr.MarkAudioStart("call-1")
	m, ok := tr.LogMetrics("call-1")
	if !ok {
		t.Fatal("Expected archived metrics")
	}
	if m.TurnID != 1 {
		t.Errorf("Expected turn 1, got %d", m.TurnID)
	}
	if _, ok := tr.Current("call-1"); ok {
		t.Error("Current slot should clear after archive")
	}
	if got := len(tr.History("call-1")); got != 1 {
		t.Errorf("Expected 1 archived turn, got %d", got)
	}
}

func TestTrackerHistoryBounded(t *testing.T) {
	tr := NewTracker()
	for i := 1; i <= maxTurnHistory+20; i++ {
		tr.StartTurn("call-1", i)
		tr.LogMetrics("call-1")
	}
	hist := tr.History("call-1")
	if len(hist) != maxTurnHistory {
		t.Fatalf("Expected history capped at %d, got %d", maxTurnHistory, len(hist))
	}
	if hist[0].TurnID != 21 {
		t.Errorf("Expected oldest surviving turn 21, got %d", hist[0].TurnID)
	}
}

func TestTrackerOnUpdate(t *testing.T) {
	tr := NewTracker()
	updates := make(chan TurnMetrics, 1)
	tr.OnUpdate(func(m TurnMetrics) { updates <- m })

	tr.StartTurn("call-1", 7)
	tr.LogMetrics("call-1")

	select {
	case m := <-updates:
		if m.CallID != "call-1" || m.TurnID != 7 {
			t.Errorf("Unexpected update: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected update callback")
	}
}

func TestTrackerEndCall(t *testing.T) {
	tr := NewTracker()
	tr.StartTurn("call-1", 1)
	tr.LogMetrics("call-1")
	tr.StartTurn("call-1", 2)

	tr.EndCall("call-1")
	if _, ok := tr.Current("call-1"); ok {
		t.Error("Expected no current turn after EndCall")
	}
	if len(tr.History("call-1")) != 0 {
		t.Error("Expected no history after EndCall")
	}
}
