package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/inference"
	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/tts"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func startedGateway(t *testing.T, callID string) *gateway.WebSocket {
	t.Helper()
	g := gateway.NewWebSocket()
	if err := g.Initialize(gateway.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if err := g.OnCallStarted(callID, gateway.Metadata{CampaignID: "camp-1"}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { g.Cleanup() })
	return g
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

type captureSinks struct {
	mu       sync.Mutex
	wav      []byte
	duration time.Duration
	turns    []Turn
}

func (c *captureSinks) SaveRecording(ctx context.Context, callID string, wav []byte, duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wav = wav
	c.duration = duration
	return nil
}

func (c *captureSinks) SaveTranscript(ctx context.Context, callID string, turns []Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = turns
	return nil
}

func TestOrchestratorFullTurn(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{CampaignID: "camp-1"}, "You are a helpful agent.", "voice-1", "en-US")
	g := startedGateway(t, sess.CallID)

	sttMock := stt.NewMockScripted("hello there")
	llmMock := inference.NewMockScripted("Hi, how can I help?")
	ttsMock := tts.NewMock()

	orc, err := NewOrchestrator(g, sttMock, llmMock, ttsMock, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	sinks := &captureSinks{}
	orc.UseSinks(sinks, sinks)

	// One caller chunk paces the scripted turn.
	if err := g.OnAudioReceived(sess.CallID, make([]byte, 640)); err != nil {
		t.Fatal(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- orc.Run(context.Background(), sess) }()

	waitFor(t, "agent turn", func() bool {
		for _, turn := range sess.Turns() {
			if turn.Role == RoleAgent {
				return true
			}
		}
		return false
	})

	// Synthesized audio must land on the output queue.
	waitFor(t, "output audio", func() bool { return g.OutputQueue(sess.CallID).Len() > 0 })

	g.OnCallEnded(sess.CallID, "test hangup")
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after hangup")
	}

	turns := sess.Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 transcript turns, got %d: %+v", len(turns), turns)
	}
	if turns[0].Role != RoleCaller || turns[0].Text != "hello there" {
		t.Errorf("Unexpected caller turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAgent || turns[1].Text != "Hi, how can I help?" {
		t.Errorf("Unexpected agent turn: %+v", turns[1])
	}
	if sess.State() != StateEnding {
		t.Errorf("Expected StateEnding, got %s", sess.State())
	}

	sinks.mu.Lock()
	defer sinks.mu.Unlock()
	if len(sinks.wav) == 0 {
		t.Error("Expected recording saved")
	}
	if len(sinks.turns) != 2 {
		t.Errorf("Expected 2 persisted turns, got %d", len(sinks.turns))
	}
}

func TestOrchestratorSessionVoiceReachesSynthesis(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{}, "prompt", "aria", "en-US")
	g := startedGateway(t, sess.CallID)

	ttsMock := tts.NewMock()
	orc, err := NewOrchestrator(g, stt.NewMockScripted("hello"),
		inference.NewMockScripted("Hi there."), ttsMock, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	g.OnAudioReceived(sess.CallID, make([]byte, 640))

	runErr := make(chan error, 1)
	go func() { runErr <- orc.Run(context.Background(), sess) }()

	waitFor(t, "agent turn", func() bool {
		for _, turn := range sess.Turns() {
			if turn.Role == RoleAgent {
				return true
			}
		}
		return false
	})

	g.OnCallEnded(sess.CallID, "test hangup")
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after hangup")
	}

	var found bool
	for _, call := range ttsMock.Calls() {
		if call.Method == "StartStream" {
			found = true
			if call.VoiceID != "aria" {
				t.Errorf("Expected session voice aria on synthesis session, got %q", call.VoiceID)
			}
		}
	}
	if !found {
		t.Fatal("Expected a StartStream call on the TTS provider")
	}
}

func TestOrchestratorTurnLatencyTracked(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{}, "prompt", "voice-1", "en-US")
	g := startedGateway(t, sess.CallID)

	orc, err := NewOrchestrator(g, stt.NewMockScripted("what time is it"),
		inference.NewMockScripted("It is noon."), tts.NewMock(), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	updates := make(chan TurnMetrics, 4)
	orc.Tracker().OnUpdate(func(m TurnMetrics) { updates <- m })

	g.OnAudioReceived(sess.CallID, make([]byte, 640))
	go orc.Run(context.Background(), sess)

	select {
	case m := <-updates:
		if m.CallID != sess.CallID || m.TurnID != 1 {
			t.Errorf("Unexpected metrics identity: %+v", m)
		}
		if m.TotalLatency() <= 0 {
			t.Error("Expected positive total latency")
		}
		if m.TotalLatency() != m.AudioStart.Sub(m.SpeechEnd) {
			t.Error("Total latency must be audio start minus speech end")
		}
		if !m.WithinTarget() {
			t.Errorf("Mock providers should beat the target, total %s", m.TotalLatency())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected tracker update after the turn")
	}
	g.OnCallEnded(sess.CallID, "done")
}

// pinnedSession is a TTS session whose audio channel never closes on its
// own, so a turn stays in Speaking until interrupted.
type pinnedSession struct {
	audio  chan []byte
	closed sync.Once
}

func newPinnedSession(chunks int) *pinnedSession {
	s := &pinnedSession{audio: make(chan []byte, chunks+1)}
	for i := 0; i < chunks; i++ {
		s.audio <- make([]byte, 2560)
	}
	return s
}

func (s *pinnedSession) SendText(text string) error { return nil }
func (s *pinnedSession) Flush() error               { return nil }
func (s *pinnedSession) Audio() <-chan []byte       { return s.audio }
func (s *pinnedSession) Err() error                 { return nil }
func (s *pinnedSession) Format() tts.AudioFormat {
	return tts.AudioFormat{Encoding: tts.EncodingPCM16, SampleRate: 16000, Channels: 1, BitDepth: 16}
}
func (s *pinnedSession) Close() error {
	s.closed.Do(func() { close(s.audio) })
	return nil
}

func TestOrchestratorBargeIn(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{}, "prompt", "voice-1", "en-US")
	g := startedGateway(t, sess.CallID)

	// Recognition events are driven directly by the test.
	events := make(chan stt.Event, 16)
	sttMock := stt.NewMock()
	sttMock.StreamTranscribeFunc = func(ctx context.Context, audio <-chan audioio.AudioChunk, opts stt.TranscribeOptions) (<-chan stt.Event, error) {
		go func() {
			for range audio {
			}
		}()
		return events, nil
	}

	ttsMock := tts.NewMock()
	ttsMock.StartStreamFunc = func(ctx context.Context, opts tts.StreamOptions) (tts.StreamSession, error) {
		return newPinnedSession(2), nil
	}

	orc, err := NewOrchestrator(g, sttMock,
		inference.NewMockScripted("a long story that will be cut off"), ttsMock, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- orc.Run(context.Background(), sess) }()

	events <- stt.Event{Transcript: &stt.TranscriptChunk{Text: "tell me a story", IsFinal: true}}
	events <- stt.Event{Transcript: &stt.TranscriptChunk{IsFinal: true}}

	// Let playback begin, then interrupt.
	waitFor(t, "playback to start", func() bool { return g.OutputQueue(sess.CallID).Len() >= 2 })
	events <- stt.Event{BargeIn: true}

	waitFor(t, "return to listening", func() bool { return sess.State() == StateListening })
	if got := g.OutputQueue(sess.CallID).Len(); got != 0 {
		t.Errorf("Expected flushed output queue after barge-in, got %d chunks", got)
	}

	// Nothing else may play after the interrupt.
	time.Sleep(50 * time.Millisecond)
	if got := g.OutputQueue(sess.CallID).Len(); got != 0 {
		t.Errorf("Expected no output after barge-in, got %d chunks", got)
	}

	// The interrupted turn has no agent utterance.
	for _, turn := range sess.Turns() {
		if turn.Role == RoleAgent {
			t.Errorf("Interrupted turn must not record agent text: %+v", turn)
		}
	}

	close(events)
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorFallbackThenEscalation(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{}, "prompt", "voice-1", "en-US")
	g := startedGateway(t, sess.CallID)

	sttMock := stt.NewMockScripted("turn one", "turn two", "turn three")
	llmMock := inference.WithError(errors.New("upstream 500"))
	ttsMock := tts.NewMock()

	orc, err := NewOrchestrator(g, sttMock, llmMock, ttsMock, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Three caller chunks pace three scripted turns, all of which fail.
	for i := 0; i < 3; i++ {
		g.OnAudioReceived(sess.CallID, make([]byte, 640))
	}

	runErr := make(chan error, 1)
	go func() { runErr <- orc.Run(context.Background(), sess) }()

	var got error
	select {
	case got = <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not escalate")
	}
	if got == nil {
		t.Fatal("Expected error after consecutive provider failures")
	}

	// Two fallbacks plus the goodbye, never a silent hang-up.
	if n := ttsMock.CallCount("Synthesize"); n != 3 {
		t.Errorf("Expected 3 guardrails utterances, got %d", n)
	}
	// Guardrails lines speak with the session voice too.
	for _, call := range ttsMock.Calls() {
		if call.Method == "Synthesize" && call.VoiceID != "voice-1" {
			t.Errorf("Expected session voice voice-1 on guardrails synthesis, got %q", call.VoiceID)
		}
	}
	st, ok := g.Stats(sess.CallID)
	if !ok || !st.Ended {
		t.Fatal("Expected gateway call ended")
	}
	if st.EndReason != "provider failure" {
		t.Errorf("Expected provider failure end reason, got %q", st.EndReason)
	}
	if sess.State() != StateEnding {
		t.Errorf("Expected StateEnding, got %s", sess.State())
	}
}

func TestOrchestratorTransientErrorKeepsCall(t *testing.T) {
	sess := NewCallSession(gateway.Metadata{}, "prompt", "voice-1", "en-US")
	g := startedGateway(t, sess.CallID)

	// First LLM call fails, later calls succeed.
	var calls int
	var mu sync.Mutex
	llmMock := inference.NewMock()
	llmMock.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("transient timeout")
		}
		return inference.NewTokenStream(inference.SplitTokens("Back with you now.")...), nil
	}

	orc, err := NewOrchestrator(g, stt.NewMockScripted("first", "second"), llmMock, tts.NewMock(), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	g.OnAudioReceived(sess.CallID, make([]byte, 640))
	g.OnAudioReceived(sess.CallID, make([]byte, 640))

	runErr := make(chan error, 1)
	go func() { runErr <- orc.Run(context.Background(), sess) }()

	waitFor(t, "recovered agent turn", func() bool {
		for _, turn := range sess.Turns() {
			if turn.Role == RoleAgent && turn.Text == "Back with you now." {
				return true
			}
		}
		return false
	})

	g.OnCallEnded(sess.CallID, "test hangup")
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOrchestratorConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveErrors = 0
	if _, err := NewOrchestrator(nil, nil, nil, nil, cfg); err == nil {
		t.Error("Expected config validation error")
	}
}
