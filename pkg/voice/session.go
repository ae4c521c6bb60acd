package voice

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/inference"
)

// State is the position of a call in the conversation loop.
type State int

const (
	// StateStarting covers provider setup before any audio is consumed.
	StateStarting State = iota

	// StateListening means caller audio is streaming into recognition.
	StateListening

	// StateThinking means a caller turn ended and the LLM is working.
	StateThinking

	// StateSpeaking means agent audio is being synthesized and played.
	StateSpeaking

	// StateEnding covers post-call persistence and teardown.
	StateEnding
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Speaker roles for transcript turns.
const (
	RoleCaller = "caller"
	RoleAgent  = "agent"
)

// Turn is one utterance in the call transcript.
type Turn struct {
	TurnID    int       `json:"turn_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CallSession is the per-call conversation state. It is created when a
// call is answered, owned exclusively by the Orchestrator running the
// call, and discarded after post-call persistence. Nothing outside the
// orchestrator goroutine mutates it.
type CallSession struct {
	// CallID is the platform call identifier, a UUID.
	CallID string

	// Campaign metadata carried through from the media gateway.
	CampaignID      string
	LeadID          string
	ProviderCallRef string

	// SystemPrompt steers the LLM for this call.
	SystemPrompt string

	// VoiceID selects the TTS voice.
	VoiceID string

	// Language is a BCP-47 tag for recognition, e.g. "en-US".
	Language string

	mu     sync.Mutex
	state  State
	turnID int
	turns  []Turn
}

// NewCallSession creates a session in StateStarting with a fresh call ID.
func NewCallSession(meta gateway.Metadata, systemPrompt, voiceID, language string) *CallSession {
	return &CallSession{
		CallID:          uuid.NewString(),
		CampaignID:      meta.CampaignID,
		LeadID:          meta.LeadID,
		ProviderCallRef: meta.ProviderCallRef,
		SystemPrompt:    systemPrompt,
		VoiceID:         voiceID,
		Language:        language,
		state:           StateStarting,
	}
}

// State returns the current pipeline state.
func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CallSession) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// NextTurnID increments and returns the turn counter.
func (s *CallSession) NextTurnID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnID++
	return s.turnID
}

// TurnID returns the current turn counter without advancing it.
func (s *CallSession) TurnID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID
}

// AddTurn appends one utterance to the transcript.
func (s *CallSession) AddTurn(role, text string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn := Turn{
		TurnID:    s.turnID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
	s.turns = append(s.turns, turn)
	return turn
}

// Turns returns a copy of the transcript so far.
func (s *CallSession) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Messages renders the system prompt plus transcript as an LLM
// conversation history.
func (s *CallSession) Messages() []inference.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]inference.Message, 0, len(s.turns)+1)
	if s.SystemPrompt != "" {
		msgs = append(msgs, inference.NewSystemMessage(s.SystemPrompt))
	}
	for _, t := range s.turns {
		if t.Role == RoleAgent {
			msgs = append(msgs, inference.NewAssistantMessage(t.Text))
		} else {
			msgs = append(msgs, inference.NewUserMessage(t.Text))
		}
	}
	return msgs
}
