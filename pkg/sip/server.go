// Package sip answers inbound SIP calls and bridges their RTP media
// into the voice pipeline. One Server owns the signalling socket; each
// accepted INVITE gets its own RTP socket, gateway session, and
// orchestrator goroutine.
package sip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emiago/sipgo"
	sipmsg "github.com/emiago/sipgo/sip"

	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

// InviteInfo is what the platform layer gets to decide how to handle
// an inbound call.
type InviteInfo struct {
	SIPCallID  string
	From       string
	To         string
	RequestURI string
}

// SessionConfig is the per-call pipeline configuration: what the agent
// should say, how it should sound, what language to listen for.
type SessionConfig struct {
	SystemPrompt string
	VoiceID      string
	Language     string
}

// call tracks one answered SIP dialog.
type call struct {
	sipCallID    string
	sess         *voice.CallSession
	conn         *net.UDPConn
	rtpPort      int
	createdAt    time.Time
	lastActivity time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

func (c *call) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// Server terminates SIP signalling and hands media to an RTP gateway.
type Server struct {
	cfg Config
	ua  *sipgo.UserAgent
	srv *sipgo.Server
	gw  *gateway.RTP
	orc *voice.Orchestrator
	log *slog.Logger

	onConfigure func(invite InviteInfo) (SessionConfig, error)

	callsMu sync.Mutex
	calls   map[string]*call

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewServer creates the SIP user agent and server. The gateway must be
// initialized before Start.
func NewServer(cfg Config, gw *gateway.RTP, orc *voice.Orchestrator) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ua, err := sipgo.NewUA()
	if err != nil {
		return nil, fmt.Errorf("sip: create user agent: %w", err)
	}
	srv, err := sipgo.NewServer(ua)
	if err != nil {
		ua.Close()
		return nil, fmt.Errorf("sip: create server: %w", err)
	}
	return &Server{
		cfg:         cfg,
		ua:          ua,
		srv:         srv,
		gw:          gw,
		orc:         orc,
		log:         log.With("component", "sip"),
		calls:       make(map[string]*call),
		stopCleanup: make(chan struct{}),
	}, nil
}

// OnConfigure sets a hook that resolves the pipeline configuration per
// call, e.g. by campaign lookup. Without it the static Config defaults
// apply to every call.
func (s *Server) OnConfigure(fn func(invite InviteInfo) (SessionConfig, error)) {
	s.onConfigure = fn
}

// Start registers handlers and listens for SIP over UDP. It blocks
// until the listener fails or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.srv.OnInvite(s.handleInvite)
	s.srv.OnAck(s.handleAck)
	s.srv.OnBye(s.handleBye)

	go s.sweepStaleCalls()

	addr := fmt.Sprintf("%s:%d", s.cfg.ListenAddr, s.cfg.Port)
	s.log.Info("sip listener starting", "addr", addr)
	if err := s.srv.ListenAndServe(ctx, "udp", addr); err != nil {
		return fmt.Errorf("sip: listen: %w", err)
	}
	return nil
}

// Stop shuts down signalling and ends every active call.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })

	s.callsMu.Lock()
	active := make([]*call, 0, len(s.calls))
	for _, c := range s.calls {
		active = append(active, c)
	}
	s.callsMu.Unlock()
	for _, c := range active {
		s.endCall(c, "server shutdown")
	}

	if s.srv != nil {
		s.srv.Close()
	}
	if s.ua != nil {
		s.ua.Close()
	}
}

// ActiveCalls returns the number of live SIP dialogs.
func (s *Server) ActiveCalls() int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return len(s.calls)
}

func (s *Server) respond(tx sipmsg.ServerTransaction, resp *sipmsg.Response) {
	if err := tx.Respond(resp); err != nil {
		s.log.Error("send sip response failed", "status", resp.StatusCode, "error", err)
	}
}

func (s *Server) handleInvite(req *sipmsg.Request, tx sipmsg.ServerTransaction) {
	sipCallID := req.CallID().Value()
	from := req.From().Address.String()
	to := req.To().Address.String()
	s.log.Info("invite received", "sip_call_id", sipCallID, "from", from, "to", to)

	s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusTrying, "Trying", nil))

	gwCodec := s.gatewayCodec()
	offer := OfferCodecs{PCMU: true} // no SDP offer: assume PCMU per convention
	if body := req.Body(); len(body) > 0 {
		offer = ParseOffer(string(body))
	}
	if !offer.Supports(gwCodec) {
		s.log.Warn("no codec overlap with offer", "sip_call_id", sipCallID, "codec", gwCodec)
		s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusNotAcceptableHere, "Not Acceptable Here", nil))
		return
	}

	sc := SessionConfig{
		SystemPrompt: s.cfg.SystemPrompt,
		VoiceID:      s.cfg.VoiceID,
		Language:     s.cfg.Language,
	}
	if s.onConfigure != nil {
		var err error
		sc, err = s.onConfigure(InviteInfo{
			SIPCallID:  sipCallID,
			From:       from,
			To:         to,
			RequestURI: req.Recipient.String(),
		})
		if err != nil {
			s.log.Error("call configuration failed", "sip_call_id", sipCallID, "error", err)
			s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusServiceUnavailable, "Service Unavailable", nil))
			return
		}
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		s.log.Error("rtp socket failed", "sip_call_id", sipCallID, "error", err)
		s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusInternalServerError, "Internal Server Error", nil))
		return
	}
	rtpPort := conn.LocalAddr().(*net.UDPAddr).Port

	sess := voice.NewCallSession(gateway.Metadata{
		ProviderCallRef: sipCallID,
		From:            from,
		To:              to,
	}, sc.SystemPrompt, sc.VoiceID, sc.Language)

	if err := s.gw.OnCallStarted(sess.CallID, gateway.Metadata{
		ProviderCallRef: sipCallID,
		From:            from,
		To:              to,
	}); err != nil {
		conn.Close()
		s.log.Error("gateway start failed", "sip_call_id", sipCallID, "error", err)
		s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusInternalServerError, "Internal Server Error", nil))
		return
	}
	if err := s.gw.BindTransport(sess.CallID, conn); err != nil {
		conn.Close()
		s.gw.OnCallEnded(sess.CallID, "setup failed")
		s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusInternalServerError, "Internal Server Error", nil))
		return
	}

	answer, err := BuildAnswer(s.cfg.publicIP(), rtpPort, gwCodec)
	if err != nil {
		s.log.Error("sdp answer failed", "sip_call_id", sipCallID, "error", err)
		s.endTransport(sess.CallID, conn, "setup failed")
		s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusInternalServerError, "Internal Server Error", nil))
		return
	}

	now := time.Now()
	c := &call{
		sipCallID:    sipCallID,
		sess:         sess,
		conn:         conn,
		rtpPort:      rtpPort,
		createdAt:    now,
		lastActivity: now,
	}
	s.callsMu.Lock()
	s.calls[sipCallID] = c
	total := len(s.calls)
	s.callsMu.Unlock()
	s.log.Info("call answered", "sip_call_id", sipCallID, "call_id", sess.CallID,
		"rtp_port", rtpPort, "codec", gwCodec, "active_calls", total)

	resp := sipmsg.NewResponseFromRequest(req, sipmsg.StatusOK, "OK", []byte(answer))
	contentType := sipmsg.ContentTypeHeader("application/sdp")
	resp.AppendHeader(&contentType)
	if contact := req.Contact(); contact != nil {
		resp.AppendHeader(contact)
	}
	s.respond(tx, resp)
}

// handleAck confirms the dialog and launches the pipeline. A repeated
// ACK only refreshes activity.
func (s *Server) handleAck(req *sipmsg.Request, tx sipmsg.ServerTransaction) {
	sipCallID := req.CallID().Value()
	s.callsMu.Lock()
	c := s.calls[sipCallID]
	s.callsMu.Unlock()
	if c == nil {
		return
	}
	c.touch()

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		if err := s.orc.Run(ctx, c.sess); err != nil {
			s.log.Warn("pipeline ended with error", "call_id", c.sess.CallID, "error", err)
		}
		s.removeCall(c)
	}()
}

func (s *Server) handleBye(req *sipmsg.Request, tx sipmsg.ServerTransaction) {
	sipCallID := req.CallID().Value()
	s.log.Info("bye received", "sip_call_id", sipCallID)

	s.callsMu.Lock()
	c := s.calls[sipCallID]
	s.callsMu.Unlock()
	if c != nil {
		s.endCall(c, "caller hangup")
	}
	s.respond(tx, sipmsg.NewResponseFromRequest(req, sipmsg.StatusOK, "OK", nil))
}

// endCall signals the gateway; the pipeline drains, returns, and calls
// removeCall for the final teardown.
func (s *Server) endCall(c *call, reason string) {
	s.gw.OnCallEnded(c.sess.CallID, reason)

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		// ACK never arrived; nothing will drive teardown.
		s.removeCall(c)
	}
}

func (s *Server) removeCall(c *call) {
	s.callsMu.Lock()
	delete(s.calls, c.sipCallID)
	s.callsMu.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	s.endTransport(c.sess.CallID, c.conn, "cleanup")
	s.log.Info("call removed", "sip_call_id", c.sipCallID, "call_id", c.sess.CallID)
}

func (s *Server) endTransport(callID string, conn *net.UDPConn, reason string) {
	if st, ok := s.gw.Stats(callID); ok && !st.Ended {
		s.gw.OnCallEnded(callID, reason)
	}
	s.gw.ReleaseTransport(callID)
}

func (s *Server) gatewayCodec() string {
	if s.gw.PayloadType() == 8 {
		return gateway.CodecPCMA
	}
	return gateway.CodecPCMU
}

// sweepStaleCalls ends calls past the duration cap and reaps dialogs
// that never completed setup.
func (s *Server) sweepStaleCalls() {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
		}

		now := time.Now()
		s.callsMu.Lock()
		stale := make([]*call, 0)
		for _, c := range s.calls {
			c.mu.Lock()
			age := now.Sub(c.createdAt)
			started := c.started
			idle := now.Sub(c.lastActivity)
			c.mu.Unlock()

			if age > s.cfg.MaxCallDuration {
				stale = append(stale, c)
			} else if !started && idle > time.Minute {
				// INVITE answered but no ACK: dead dialog.
				stale = append(stale, c)
			}
		}
		s.callsMu.Unlock()

		for _, c := range stale {
			s.log.Info("sweeping stale call", "sip_call_id", c.sipCallID)
			s.endCall(c, "max call duration")
		}
	}
}
