package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crosstalk-ai/crosstalk/internal/httpc"
	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
)

const (
	deepgramListenURL = "wss://api.deepgram.com/v1/listen"
	deepgramAPIURL    = "https://api.deepgram.com/v1/projects"

	// Deepgram drops idle connections after ~10s without audio or keepalive.
	deepgramKeepalive = 5 * time.Second
)

// Deepgram streams audio to the Deepgram live transcription API over a
// WebSocket and relays results as transcript events. SpeechStarted VAD
// events are surfaced as barge-in signals.
type Deepgram struct {
	cfg *Config
}

// NewDeepgram creates a Deepgram provider. Configuration errors (missing
// key, bad sample rate) fail here, before any call is accepted.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Deepgram{cfg: cfg}, nil
}

// Name returns "deepgram".
func (d *Deepgram) Name() string {
	return "deepgram"
}

// Capabilities reports full streaming support.
func (d *Deepgram) Capabilities() Capabilities {
	return Capabilities{Streaming: true, InterimResults: true, BargeIn: true}
}

// Health checks API reachability and key validity.
func (d *Deepgram) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, deepgramAPIURL, nil)
	if err != nil {
		return WrapError("deepgram", err)
	}
	req.Header.Set("Authorization", "Token "+d.cfg.APIKey)

	resp, err := httpc.Client.Do(req)
	if err != nil {
		return WrapError("deepgram", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "health check failed", Provider: "deepgram"}
	}
	return nil
}

// Close releases provider resources. Streams hold their own connections,
// so there is nothing global to tear down.
func (d *Deepgram) Close() error {
	return nil
}

// StreamTranscribe opens a live transcription session and pumps audio
// into it until ctx is canceled or the audio channel closes.
func (d *Deepgram) StreamTranscribe(ctx context.Context, audio <-chan audioio.AudioChunk, opts TranscribeOptions) (<-chan Event, error) {
	wsURL, err := d.buildURL(opts)
	if err != nil {
		return nil, WrapError("deepgram", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.Timeout}
	header := http.Header{}
	header.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error(), Provider: "deepgram"}
		}
		return nil, WrapError("deepgram", err)
	}

	d.cfg.Logger.Debug("deepgram stream opened",
		"model", d.cfg.Model,
		"sample_rate", sampleRateFor(opts, d.cfg),
	)

	events := make(chan Event, 32)
	go d.writeLoop(ctx, conn, audio)
	go d.readLoop(ctx, conn, events)
	return events, nil
}

func (d *Deepgram) buildURL(opts TranscribeOptions) (string, error) {
	base := d.cfg.BaseURL
	if base == "" {
		base = deepgramListenURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	lang := opts.Language
	if lang == "" {
		lang = d.cfg.Language
	}

	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRateFor(opts, d.cfg)))
	q.Set("channels", "1")
	q.Set("model", d.cfg.Model)
	q.Set("language", lang)
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	q.Set("vad_events", "true")
	q.Set("endpointing", strconv.Itoa(int(d.cfg.Endpointing.Milliseconds())))
	if len(opts.Context) > 0 {
		for _, phrase := range opts.Context {
			q.Add("keywords", phrase)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sampleRateFor(opts TranscribeOptions, cfg *Config) int {
	if opts.SampleRate > 0 {
		return opts.SampleRate
	}
	return cfg.SampleRate
}

// writeLoop forwards PCM16 audio frames and periodic keepalives. It is the
// sole writer on the connection.
func (d *Deepgram) writeLoop(ctx context.Context, conn *websocket.Conn, audio <-chan audioio.AudioChunk) {
	keepalive := time.NewTicker(deepgramKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			// Force the read loop off its blocking read.
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return

		case chunk, ok := <-audio:
			if !ok {
				// End of caller audio: ask for final results and let the
				// read loop drain them.
				conn.WriteJSON(map[string]string{"type": "CloseStream"})
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Bytes()); err != nil {
				d.cfg.Logger.Warn("deepgram write failed", "error", err)
				return
			}

		case <-keepalive.C:
			if err := conn.WriteJSON(map[string]string{"type": "KeepAlive"}); err != nil {
				return
			}
		}
	}
}

// readLoop parses server messages into events until the connection ends.
func (d *Deepgram) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	st := &streamState{}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
				d.cfg.Logger.Warn("deepgram read failed", "error", err)
			}
			return
		}
		for _, ev := range d.handleMessage(data, st) {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// streamState tracks per-stream dedup state for turn boundaries.
type streamState struct {
	// sawSpeech is true once any non-empty transcript arrived since the
	// last turn boundary. Guards against boundary events during silence.
	sawSpeech bool
}

type deepgramMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// handleMessage converts one server message into zero or more events.
func (d *Deepgram) handleMessage(data []byte, st *streamState) []Event {
	var msg deepgramMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.cfg.Logger.Warn("deepgram sent undecodable message", "error", err)
		return nil
	}

	switch msg.Type {
	case "Results":
		if len(msg.Channel.Alternatives) == 0 {
			return nil
		}
		alt := msg.Channel.Alternatives[0]
		var out []Event
		if alt.Transcript != "" {
			st.sawSpeech = true
			out = append(out, Event{Transcript: &TranscriptChunk{
				Text:       alt.Transcript,
				IsFinal:    msg.IsFinal,
				Confidence: alt.Confidence,
			}})
		}
		if msg.SpeechFinal && st.sawSpeech {
			st.sawSpeech = false
			out = append(out, Event{Transcript: &TranscriptChunk{IsFinal: true}})
		}
		return out

	case "SpeechStarted":
		return []Event{{BargeIn: true}}

	case "UtteranceEnd":
		// VAD fallback when no speech_final arrived for the utterance.
		if st.sawSpeech {
			st.sawSpeech = false
			return []Event{{Transcript: &TranscriptChunk{IsFinal: true}}}
		}
		return nil
	}
	return nil
}

// String implements fmt.Stringer for logging.
func (d *Deepgram) String() string {
	return fmt.Sprintf("stt.Deepgram(model=%s)", d.cfg.Model)
}

// Ensure Deepgram implements Provider.
var _ Provider = (*Deepgram)(nil)
