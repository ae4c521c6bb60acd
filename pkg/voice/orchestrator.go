package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/inference"
	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/tts"
)

// Internal turn outcomes. Barge-in and hang-up travel as errors through
// the turn path but are normal control flow, not failures.
var (
	errBargeIn    = errors.New("voice: barge-in")
	errCallerGone = errors.New("voice: caller stream closed")
)

// Orchestrator runs the streaming STT -> LLM -> TTS loop for calls on
// one media gateway. One Orchestrator serves many calls; Run is invoked
// once per call on its own goroutine.
type Orchestrator struct {
	gw      gateway.Gateway
	stt     stt.Provider
	llm     inference.Provider
	tts     tts.Provider
	cfg     Config
	tracker *Tracker
	guard   Guardrails

	recordings  RecordingSink
	transcripts TranscriptSink

	log *slog.Logger

	onState      func(sess *CallSession, state State)
	onTranscript func(callID string, chunk stt.TranscriptChunk)
}

// NewOrchestrator wires the pipeline stages together. Provider handles
// are shared across calls and stay open until the owner closes them.
func NewOrchestrator(gw gateway.Gateway, sttP stt.Provider, llm inference.Provider, ttsP tts.Provider, cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		gw:          gw,
		stt:         sttP,
		llm:         llm,
		tts:         ttsP,
		cfg:         cfg,
		tracker:     NewTracker(),
		guard:       NewStaticGuardrails(),
		recordings:  discardSink{},
		transcripts: discardSink{},
		log:         log.With("component", "voice.orchestrator"),
	}, nil
}

// Tracker returns the latency tracker, e.g. to attach a monitor callback.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// UseGuardrails replaces the stock fallback/goodbye utterances.
func (o *Orchestrator) UseGuardrails(g Guardrails) {
	if g != nil {
		o.guard = g
	}
}

// UseSinks wires post-call persistence. Nil sinks keep the discard
// default.
func (o *Orchestrator) UseSinks(rec RecordingSink, tr TranscriptSink) {
	if rec != nil {
		o.recordings = rec
	}
	if tr != nil {
		o.transcripts = tr
	}
}

// OnStateChange sets a callback fired on every state transition.
func (o *Orchestrator) OnStateChange(fn func(sess *CallSession, state State)) {
	o.onState = fn
}

// OnTranscript sets a callback fired for every transcript chunk,
// interim and final. It feeds live monitoring, nothing else.
func (o *Orchestrator) OnTranscript(fn func(callID string, chunk stt.TranscriptChunk)) {
	o.onTranscript = fn
}

// Run drives one call from answer to teardown. It blocks until the
// caller hangs up, the context is canceled, or the pipeline escalates
// out of an unrecoverable provider failure. The gateway session for
// sess.CallID must already be started.
func (o *Orchestrator) Run(ctx context.Context, sess *CallSession) error {
	logger := o.log.With("call_id", sess.CallID)
	logger.Info("call pipeline starting",
		"campaign_id", sess.CampaignID,
		"stt", o.stt.Name(), "llm", o.llm.Name(), "tts", o.tts.Name())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	audioCh := make(chan audioio.AudioChunk, 16)
	go o.pumpAudio(ctx, sess.CallID, audioCh)

	events, err := o.stt.StreamTranscribe(ctx, audioCh, stt.TranscribeOptions{
		Language:       sess.Language,
		SampleRate:     o.cfg.SampleRate,
		Context:        o.cfg.ContextHints,
		InterimResults: o.cfg.InterimResults,
	})
	if err != nil {
		// Fatal setup failure: the call never reaches Listening.
		o.finish(sess, "setup failed", logger)
		return fmt.Errorf("voice: open transcription stream: %w", err)
	}

	lp := &callLoop{o: o, sess: sess, events: events, log: logger}
	return lp.run(ctx)
}

// pumpAudio moves caller audio from the gateway input queue to the
// recognition stream. It owns the channel close, which is how the STT
// stream learns the caller is gone.
func (o *Orchestrator) pumpAudio(ctx context.Context, callID string, out chan<- audioio.AudioChunk) {
	defer close(out)

	q := o.gw.AudioQueue(callID)
	if q == nil {
		return
	}
	for {
		chunk, ok := q.PopWait(o.cfg.PollInterval)
		if !ok {
			select {
			case <-ctx.Done():
				return
			default:
			}
			st, found := o.gw.Stats(callID)
			if !found || (st.Ended && q.Len() == 0) {
				return
			}
			continue
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) setState(sess *CallSession, state State) {
	sess.setState(state)
	if o.onState != nil {
		o.onState(sess, state)
	}
}

// callLoop holds the mutable state of one running call.
type callLoop struct {
	o      *Orchestrator
	sess   *CallSession
	events <-chan stt.Event
	log    *slog.Logger

	finals   []string // final transcript chunks of the turn in progress
	failures int      // consecutive provider errors
}

func (lp *callLoop) run(ctx context.Context) error {
	o := lp.o
	o.setState(lp.sess, StateListening)

	for {
		select {
		case <-ctx.Done():
			o.finish(lp.sess, "canceled", lp.log)
			return ctx.Err()

		case ev, ok := <-lp.events:
			if !ok {
				o.finish(lp.sess, "caller hangup", lp.log)
				return nil
			}
			if done, err := lp.handleEvent(ctx, ev); done {
				return err
			}
		}
	}
}

// handleEvent processes one recognition event while Listening. The
// returned done flag means the call is over.
func (lp *callLoop) handleEvent(ctx context.Context, ev stt.Event) (bool, error) {
	o := lp.o

	if ev.BargeIn {
		// Nothing is playing; the caller talking is just the caller
		// talking.
		return false, nil
	}
	if ev.Transcript == nil {
		return false, nil
	}
	chunk := *ev.Transcript
	if o.onTranscript != nil {
		o.onTranscript(lp.sess.CallID, chunk)
	}

	if !chunk.TurnBoundary() {
		if chunk.IsFinal {
			lp.finals = append(lp.finals, chunk.Text)
		}
		return false, nil
	}

	text := strings.TrimSpace(strings.Join(lp.finals, " "))
	lp.finals = lp.finals[:0]
	if text == "" {
		return false, nil
	}

	turnID := lp.sess.NextTurnID()
	lp.sess.AddTurn(RoleCaller, text)
	lp.log.Info("caller turn complete", "turn_id", turnID, "chars", len(text))

	err := lp.runTurn(ctx, turnID, text)
	switch {
	case err == nil:
		lp.failures = 0
		o.setState(lp.sess, StateListening)

	case errors.Is(err, errBargeIn):
		// Interrupted, not failed.
		lp.failures = 0
		o.setState(lp.sess, StateListening)

	case errors.Is(err, errCallerGone):
		o.finish(lp.sess, "caller hangup", lp.log)
		return true, nil

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.finish(lp.sess, "canceled", lp.log)
		return true, err

	default:
		lp.failures++
		lp.log.Warn("turn failed", "turn_id", turnID, "failures", lp.failures, "error", err)
		if lp.failures >= o.cfg.MaxConsecutiveErrors {
			o.speak(ctx, lp.sess, o.guard.Goodbye(lp.sess.CallID))
			o.finish(lp.sess, "provider failure", lp.log)
			return true, fmt.Errorf("voice: ending call after %d consecutive provider errors: %w", lp.failures, err)
		}
		o.speak(ctx, lp.sess, o.guard.Fallback(lp.sess.CallID))
		o.setState(lp.sess, StateListening)
	}
	return false, nil
}

// runTurn generates and speaks one agent response. LLM token deltas are
// fed into the TTS session as they arrive, and synthesized audio is
// queued for egress as it arrives, so the three stages overlap.
func (lp *callLoop) runTurn(ctx context.Context, turnID int, userText string) error {
	o := lp.o
	sess := lp.sess

	o.setState(sess, StateThinking)
	o.tracker.StartTurn(sess.CallID, turnID)

	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()

	o.tracker.MarkLLMStart(sess.CallID)
	stream, err := o.llm.Stream(turnCtx, &inference.ChatRequest{
		Messages:    sess.Messages(),
		Temperature: o.cfg.LLMTemperature,
		MaxTokens:   o.cfg.LLMMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("voice: open llm stream: %w", err)
	}
	defer stream.Close()

	ttsSess, err := o.tts.StartStream(turnCtx, tts.StreamOptions{
		VoiceID:    sess.VoiceID,
		SampleRate: o.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("voice: open tts session: %w", err)
	}
	defer ttsSess.Close()
	o.tracker.MarkTTSStart(sess.CallID)

	reply := make(chan string, 1)
	llmErr := make(chan error, 1)
	go lp.pipeTokens(stream, ttsSess, reply, llmErr)

	format := ttsSess.Format()
	firstAudio := false
	var assistantText string
	haveReply := false

	for {
		select {
		case <-turnCtx.Done():
			return turnCtx.Err()

		case err := <-llmErr:
			return fmt.Errorf("voice: llm stream: %w", err)

		case text := <-reply:
			assistantText = text
			haveReply = true

		case ev, ok := <-lp.events:
			if !ok {
				return errCallerGone
			}
			if ev.BargeIn {
				lp.log.Info("barge-in, interrupting playback", "turn_id", turnID)
				cancelTurn()
				ttsSess.Close()
				dropped := o.gw.FlushOutput(sess.CallID)
				lp.log.Debug("flushed output queue", "chunks", dropped)
				return errBargeIn
			}
			// Caller speech recognized while the agent talks becomes
			// the start of the next turn.
			if ev.Transcript != nil && ev.Transcript.IsFinal && !ev.Transcript.TurnBoundary() {
				lp.finals = append(lp.finals, ev.Transcript.Text)
			}

		case audio, ok := <-ttsSess.Audio():
			if !ok {
				if err := ttsSess.Err(); err != nil {
					return fmt.Errorf("voice: tts session: %w", err)
				}
				o.tracker.MarkTTSEnd(sess.CallID)
				if !haveReply {
					select {
					case assistantText = <-reply:
					case err := <-llmErr:
						return fmt.Errorf("voice: llm stream: %w", err)
					case <-turnCtx.Done():
						return turnCtx.Err()
					}
				}
				sess.AddTurn(RoleAgent, assistantText)
				metrics, _ := o.tracker.LogMetrics(sess.CallID)
				lp.log.Info("agent turn complete",
					"turn_id", turnID,
					"total_latency", metrics.TotalLatency(),
					"within_target", metrics.WithinTarget())
				return nil
			}
			if !firstAudio {
				firstAudio = true
				o.tracker.MarkAudioStart(sess.CallID)
			}
			o.enqueueAudio(sess, audio, format)
		}
	}
}

// pipeTokens drains the LLM stream into the TTS session. The first
// delta flips the call to Speaking.
func (lp *callLoop) pipeTokens(stream inference.Stream, ttsSess tts.StreamSession, reply chan<- string, llmErr chan<- error) {
	o := lp.o
	var b strings.Builder

	for {
		chunk, err := stream.Recv()
		if err != nil {
			llmErr <- err
			return
		}
		if chunk.Done {
			break
		}
		if chunk.Delta == "" {
			continue
		}
		if b.Len() == 0 {
			o.setState(lp.sess, StateSpeaking)
		}
		b.WriteString(chunk.Delta)
		if err := ttsSess.SendText(chunk.Delta); err != nil {
			llmErr <- err
			return
		}
	}

	o.tracker.MarkLLMEnd(lp.sess.CallID)
	if err := ttsSess.Flush(); err != nil {
		llmErr <- err
		return
	}
	reply <- b.String()
}

// enqueueAudio chops one synthesis result into egress-sized chunks on
// the gateway output queue.
func (o *Orchestrator) enqueueAudio(sess *CallSession, pcm []byte, format tts.AudioFormat) {
	rate := format.SampleRate
	if rate == 0 {
		rate = o.cfg.SampleRate
	}
	channels := format.Channels
	if channels == 0 {
		channels = 1
	}

	frame := int(o.cfg.OutputChunkDuration.Seconds() * float64(rate))
	samples := audioio.BytesToSamples(pcm)
	for len(samples) > 0 {
		n := frame
		if n > len(samples) {
			n = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[:n],
			SampleRate: rate,
			Channels:   channels,
			Timestamp:  time.Now(),
		}
		samples = samples[n:]
		if err := o.gw.SendAudio(sess.CallID, chunk); err != nil {
			o.log.Warn("send audio failed", "call_id", sess.CallID, "error", err)
			return
		}
	}
}

// speak synthesizes one whole utterance outside the streaming path,
// used for guardrails fallback and goodbye lines. Failures are logged
// and swallowed; there is nothing better to do with a broken mouth.
func (o *Orchestrator) speak(ctx context.Context, sess *CallSession, text string) {
	if text == "" {
		return
	}
	o.setState(sess, StateSpeaking)
	result, err := o.tts.Synthesize(ctx, text, tts.StreamOptions{
		VoiceID:    sess.VoiceID,
		SampleRate: o.cfg.SampleRate,
	})
	if err != nil {
		o.log.Warn("guardrails synthesis failed", "call_id", sess.CallID, "error", err)
		return
	}
	sess.AddTurn(RoleAgent, text)
	o.enqueueAudio(sess, result.Audio, result.Format)
}

// finish runs post-call persistence and releases call state. It is
// safe to call once per call, from the loop that owns the session.
func (o *Orchestrator) finish(sess *CallSession, reason string, logger *slog.Logger) {
	o.setState(sess, StateEnding)
	logger.Info("call pipeline ending", "reason", reason, "turns", len(sess.Turns()))

	// Persistence gets its own deadline: the call context is usually
	// already canceled by the time we get here.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rec := o.gw.Recording(sess.CallID); rec != nil && rec.Len() > 0 {
		if err := o.recordings.SaveRecording(ctx, sess.CallID, rec.WAV(), rec.Duration()); err != nil {
			logger.Error("save recording failed", "error", err)
		}
		if err := o.gw.ClearRecording(sess.CallID); err != nil {
			logger.Warn("clear recording failed", "error", err)
		}
	}

	if turns := sess.Turns(); len(turns) > 0 {
		if err := o.transcripts.SaveTranscript(ctx, sess.CallID, turns); err != nil {
			logger.Error("save transcript failed", "error", err)
		}
	}

	if st, ok := o.gw.Stats(sess.CallID); ok && !st.Ended {
		if err := o.gw.OnCallEnded(sess.CallID, reason); err != nil {
			logger.Warn("gateway end failed", "error", err)
		}
	}
	o.tracker.EndCall(sess.CallID)
}
