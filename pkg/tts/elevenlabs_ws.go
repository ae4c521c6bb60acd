package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsWSBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	wsHandshakeTimeout  = 10 * time.Second
)

// StartStream opens an incremental synthesis session over the ElevenLabs
// stream-input WebSocket. Each session covers one utterance: the server
// starts emitting audio while later text fragments are still arriving,
// and closes the stream after Flush once the final chunk is sent.
func (e *ElevenLabs) StartStream(ctx context.Context, opts StreamOptions) (StreamSession, error) {
	wsURL := e.wsBaseURL
	if wsURL == "" {
		wsURL = elevenLabsWSBaseURL
	}
	voice := e.voiceFor(opts)
	format := e.formatFor(opts)
	url := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		wsURL, voice, e.config.ModelID, string(format.Encoding))

	headers := http.Header{}
	headers.Set("xi-api-key", e.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: wsHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    err.Error(),
				Provider:   providerElevenLabs,
			}
		}
		return nil, WrapError(providerElevenLabs, fmt.Errorf("websocket dial: %w", err))
	}

	// Begin-of-stream message carries voice settings. The short
	// chunk_length_schedule trades some quality for time to first byte.
	bos := map[string]interface{}{
		"text": " ",
		"voice_settings": map[string]interface{}{
			"stability":        e.config.VoiceSettings.Stability,
			"similarity_boost": e.config.VoiceSettings.SimilarityBoost,
		},
		"generation_config": map[string]interface{}{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := conn.WriteJSON(bos); err != nil {
		conn.Close()
		return nil, WrapError(providerElevenLabs, fmt.Errorf("send BOS: %w", err))
	}

	s := &wsSession{
		conn:   conn,
		format: format,
		logger: e.logger,
		audio:  make(chan []byte, 32),
		quit:   make(chan struct{}),
	}

	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.quit:
		}
	}()

	e.logger.Debug("stream session opened", "voice", voice, "model", e.config.ModelID)

	return s, nil
}

// wsSession is one utterance over the stream-input WebSocket.
type wsSession struct {
	conn   *websocket.Conn
	format AudioFormat
	logger *slog.Logger

	audio chan []byte
	quit  chan struct{}

	writeMu sync.Mutex
	flushed bool
	closed  bool

	errMu sync.Mutex
	err   error
}

// wsTextMessage is the frame sent for each text fragment. An empty Text
// marks end of stream.
type wsTextMessage struct {
	Text string `json:"text"`
}

// wsAudioMessage is the frame received for each audio chunk.
type wsAudioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SendText forwards a text fragment for synthesis.
func (s *wsSession) SendText(text string) error {
	if text == "" {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed || s.flushed {
		return ErrSessionClosed
	}

	if err := s.conn.WriteJSON(wsTextMessage{Text: text}); err != nil {
		s.setErr(err)
		return WrapError(providerElevenLabs, fmt.Errorf("send text: %w", err))
	}
	return nil
}

// Flush sends the end-of-stream marker. Audio keeps arriving until the
// server marks the final chunk.
func (s *wsSession) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.flushed {
		return nil
	}
	s.flushed = true

	if err := s.conn.WriteJSON(wsTextMessage{Text: ""}); err != nil {
		s.setErr(err)
		return WrapError(providerElevenLabs, fmt.Errorf("send EOS: %w", err))
	}
	return nil
}

// Audio returns the channel of PCM audio chunks.
func (s *wsSession) Audio() <-chan []byte {
	return s.audio
}

// Format returns the session output format.
func (s *wsSession) Format() AudioFormat {
	return s.format
}

// Err returns the first session error, if any.
func (s *wsSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close aborts the session. The read loop exits on the closed connection
// and closes the Audio channel.
func (s *wsSession) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.quit)

	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// readLoop receives audio frames until the final chunk or an error.
func (s *wsSession) readLoop() {
	defer func() {
		close(s.audio)
		s.Close()
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.writeMu.Lock()
			closed := s.closed
			s.writeMu.Unlock()
			if !closed && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(err)
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var resp wsAudioMessage
		if err := json.Unmarshal(message, &resp); err != nil {
			s.logger.Warn("failed to parse response", "error", err)
			continue
		}

		if resp.Error != "" {
			s.setErr(fmt.Errorf("tts [%s]: %s: %s", providerElevenLabs, resp.Error, resp.Message))
			return
		}

		if resp.Audio != "" {
			data, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				s.logger.Warn("failed to decode audio", "error", err)
				continue
			}
			select {
			case s.audio <- data:
			case <-s.quit:
				return
			}
		}

		if resp.IsFinal {
			return
		}
	}
}

func (s *wsSession) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Verify wsSession implements StreamSession at compile time.
var _ StreamSession = (*wsSession)(nil)
