package voice

import (
	"sync"
	"time"
)

// LatencyTarget is the speech-end to first-audio budget for one turn.
// Turns over the target are flagged, never cut off.
const LatencyTarget = 700 * time.Millisecond

// maxTurnHistory bounds the per-call metrics archive.
const maxTurnHistory = 100

// TurnMetrics holds the stage timestamps for one conversation turn.
// All latencies derive from these stamps; unset stages yield zero
// durations rather than nonsense.
type TurnMetrics struct {
	CallID string
	TurnID int

	SpeechEnd  time.Time // caller turn boundary detected
	LLMStart   time.Time // LLM stream opened
	LLMEnd     time.Time // last token received
	TTSStart   time.Time // synthesis session opened
	TTSEnd     time.Time // synthesis completed
	AudioStart time.Time // first audio chunk queued for playback
}

// TotalLatency is speech end to first output audio, the number the
// caller actually experiences as silence.
func (m TurnMetrics) TotalLatency() time.Duration {
	if m.SpeechEnd.IsZero() || m.AudioStart.IsZero() {
		return 0
	}
	return m.AudioStart.Sub(m.SpeechEnd)
}

// LLMLatency is the full LLM generation time for the turn.
func (m TurnMetrics) LLMLatency() time.Duration {
	if m.LLMStart.IsZero() || m.LLMEnd.IsZero() {
		return 0
	}
	return m.LLMEnd.Sub(m.LLMStart)
}

// TTSLatency is the full synthesis time for the turn.
func (m TurnMetrics) TTSLatency() time.Duration {
	if m.TTSStart.IsZero() || m.TTSEnd.IsZero() {
		return 0
	}
	return m.TTSEnd.Sub(m.TTSStart)
}

// TimeToFirstAudio is synthesis start to first audible chunk.
func (m TurnMetrics) TimeToFirstAudio() time.Duration {
	if m.TTSStart.IsZero() || m.AudioStart.IsZero() {
		return 0
	}
	return m.AudioStart.Sub(m.TTSStart)
}

// WithinTarget reports whether the turn met the latency budget.
func (m TurnMetrics) WithinTarget() bool {
	total := m.TotalLatency()
	return total > 0 && total < LatencyTarget
}

// Tracker collects per-turn latency metrics across concurrent calls.
// It is goroutine-safe; marks for calls without a tracked turn are
// no-ops so callers never need to guard the hot path.
type Tracker struct {
	mu      sync.Mutex
	current map[string]*TurnMetrics
	history map[string][]TurnMetrics

	onUpdate func(TurnMetrics)
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		current: make(map[string]*TurnMetrics),
		history: make(map[string][]TurnMetrics),
	}
}

// OnUpdate sets a callback fired whenever a turn is archived. The
// callback runs on its own goroutine and must not block forever.
func (t *Tracker) OnUpdate(fn func(TurnMetrics)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = fn
}

// StartTurn begins tracking a turn and stamps the speech-end reference
// point. Any unarchived previous turn for the call is discarded.
func (t *Tracker) StartTurn(callID string, turnID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[callID] = &TurnMetrics{
		CallID:    callID,
		TurnID:    turnID,
		SpeechEnd: time.Now(),
	}
}

// MarkLLMStart stamps LLM stream open for the tracked turn, if any.
func (t *Tracker) MarkLLMStart(callID string) { t.mark(callID, func(m *TurnMetrics) { m.LLMStart = time.Now() }) }

// MarkLLMEnd stamps last-token time for the tracked turn, if any.
func (t *Tracker) MarkLLMEnd(callID string) { t.mark(callID, func(m *TurnMetrics) { m.LLMEnd = time.Now() }) }

// MarkTTSStart stamps synthesis-session open for the tracked turn, if any.
func (t *Tracker) MarkTTSStart(callID string) { t.mark(callID, func(m *TurnMetrics) { m.TTSStart = time.Now() }) }

// MarkTTSEnd stamps synthesis completion for the tracked turn, if any.
func (t *Tracker) MarkTTSEnd(callID string) { t.mark(callID, func(m *TurnMetrics) { m.TTSEnd = time.Now() }) }

// MarkAudioStart stamps the first output chunk, once per turn.
func (t *Tracker) MarkAudioStart(callID string) {
	t.mark(callID, func(m *TurnMetrics) {
		if m.AudioStart.IsZero() {
			m.AudioStart = time.Now()
		}
	})
}

func (t *Tracker) mark(callID string, stamp func(*TurnMetrics)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.current[callID]; ok {
		stamp(m)
	}
}

// Current returns a snapshot of the in-flight turn for a call.
func (t *Tracker) Current(callID string) (TurnMetrics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.current[callID]
	if !ok {
		return TurnMetrics{}, false
	}
	return *m, true
}

// LogMetrics archives the tracked turn into the call's bounded history
// and clears the current slot. It is a no-op for untracked calls.
func (t *Tracker) LogMetrics(callID string) (TurnMetrics, bool) {
	t.mu.Lock()
	m, ok := t.current[callID]
	if !ok {
		t.mu.Unlock()
		return TurnMetrics{}, false
	}
	delete(t.current, callID)

	hist := append(t.history[callID], *m)
	if len(hist) > maxTurnHistory {
		hist = hist[1:]
	}
	t.history[callID] = hist
	fn := t.onUpdate
	snapshot := *m
	t.mu.Unlock()

	if fn != nil {
		go fn(snapshot)
	}
	return snapshot, true
}

// History returns a copy of the archived turns for a call.
func (t *Tracker) History(callID string) []TurnMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := t.history[callID]
	out := make([]TurnMetrics, len(hist))
	copy(out, hist)
	return out
}

// AverageTotalLatency averages archived total latency for a call.
func (t *Tracker) AverageTotalLatency(callID string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	hist := t.history[callID]
	if len(hist) == 0 {
		return 0
	}
	var sum time.Duration
	for _, m := range hist {
		sum += m.TotalLatency()
	}
	return sum / time.Duration(len(hist))
}

// EndCall drops all tracker state for a call after persistence.
func (t *Tracker) EndCall(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.current, callID)
	delete(t.history, callID)
}
