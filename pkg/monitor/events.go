package monitor

import (
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

// Event types published to dashboards.
const (
	EventCallState  = "call.state"
	EventTranscript = "call.transcript"
	EventLatency    = "call.latency"
)

// Event is the envelope broadcast to every dashboard client.
type Event struct {
	Type      string      `json:"type"`
	CallID    string      `json:"call_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// StateData reports a pipeline state transition.
type StateData struct {
	State      string `json:"state"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// TranscriptData reports one recognized or spoken utterance fragment.
type TranscriptData struct {
	Role    string  `json:"role"`
	Text    string  `json:"text"`
	IsFinal bool    `json:"is_final"`
	// Confidence is the recognizer's score for caller text; zero for
	// agent text.
	Confidence float64 `json:"confidence,omitempty"`
}

// LatencyData reports per-turn stage latencies in milliseconds.
type LatencyData struct {
	TurnID           int   `json:"turn_id"`
	TotalMs          int64 `json:"total_ms"`
	LLMMs            int64 `json:"llm_ms"`
	TTSMs            int64 `json:"tts_ms"`
	TimeToFirstAudio int64 `json:"time_to_first_audio_ms"`
	WithinTarget     bool  `json:"within_target"`
}

// NewStateEvent builds a state transition event.
func NewStateEvent(callID, campaignID string, state voice.State) Event {
	return Event{
		Type:      EventCallState,
		CallID:    callID,
		Timestamp: time.Now(),
		Data:      StateData{State: state.String(), CampaignID: campaignID},
	}
}

// NewTranscriptEvent builds a transcript fragment event.
func NewTranscriptEvent(callID, role, text string, isFinal bool, confidence float64) Event {
	return Event{
		Type:      EventTranscript,
		CallID:    callID,
		Timestamp: time.Now(),
		Data: TranscriptData{
			Role:       role,
			Text:       text,
			IsFinal:    isFinal,
			Confidence: confidence,
		},
	}
}

// NewLatencyEvent builds a per-turn latency event.
func NewLatencyEvent(m voice.TurnMetrics) Event {
	return Event{
		Type:      EventLatency,
		CallID:    m.CallID,
		Timestamp: time.Now(),
		Data: LatencyData{
			TurnID:           m.TurnID,
			TotalMs:          m.TotalLatency().Milliseconds(),
			LLMMs:            m.LLMLatency().Milliseconds(),
			TTSMs:            m.TTSLatency().Milliseconds(),
			TimeToFirstAudio: m.TimeToFirstAudio().Milliseconds(),
			WithinTarget:     m.WithinTarget(),
		},
	}
}

// Attach wires an orchestrator's callbacks into the hub so every call
// it runs is visible on the dashboard.
func Attach(h *Hub, orc *voice.Orchestrator) {
	orc.OnStateChange(func(sess *voice.CallSession, state voice.State) {
		h.Publish(NewStateEvent(sess.CallID, sess.CampaignID, state))
	})
	orc.OnTranscript(func(callID string, chunk stt.TranscriptChunk) {
		h.Publish(NewTranscriptEvent(callID, voice.RoleCaller, chunk.Text, chunk.IsFinal, chunk.Confidence))
	})
	orc.Tracker().OnUpdate(func(m voice.TurnMetrics) {
		h.Publish(NewLatencyEvent(m))
	})
}
