package web

import (
	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"

	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/monitor"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

// CallInfo is one active call in the /api/calls listing.
type CallInfo struct {
	CallID  string        `json:"call_id"`
	Gateway string        `json:"gateway"`
	Stats   gateway.Stats `json:"stats"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleListCalls lists live calls across both gateways, ended calls
// still draining included.
func (s *Server) handleListCalls(c *fiber.Ctx) error {
	calls := make([]CallInfo, 0)
	for _, g := range []gateway.Gateway{s.trunk, s.browser} {
		for _, id := range g.ActiveCalls() {
			if st, ok := g.Stats(id); ok {
				calls = append(calls, CallInfo{CallID: id, Gateway: g.Name(), Stats: st})
			}
		}
	}
	return c.JSON(calls)
}

func (s *Server) handleGetCall(c *fiber.Ctx) error {
	id := c.Params("id")
	for _, g := range []gateway.Gateway{s.trunk, s.browser} {
		if st, ok := g.Stats(id); ok {
			return c.JSON(CallInfo{CallID: id, Gateway: g.Name(), Stats: st})
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "call not found"})
}

func (s *Server) handleEndCall(c *fiber.Ctx) error {
	id := c.Params("id")
	for _, g := range []gateway.Gateway{s.trunk, s.browser} {
		if _, ok := g.Stats(id); ok {
			if err := g.OnCallEnded(id, "operator hangup"); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{"call_id": id, "ended": true})
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "call not found"})
}

// BrowserOfferRequest starts a browser call from an SDP offer.
type BrowserOfferRequest struct {
	Offer        string `json:"offer"`
	CampaignID   string `json:"campaign_id,omitempty"`
	LeadID       string `json:"lead_id,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	Language     string `json:"language,omitempty"`
}

// handleBrowserOffer answers the browser's WebRTC offer and launches the
// call pipeline. The answer carries all ICE candidates, so this single
// round trip is the whole signalling exchange.
func (s *Server) handleBrowserOffer(c *fiber.Ctx) error {
	var req BrowserOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Offer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "offer required"})
	}

	meta := gateway.Metadata{CampaignID: req.CampaignID, LeadID: req.LeadID}
	sess := voice.NewCallSession(meta,
		fallback(req.SystemPrompt, s.cfg.SystemPrompt),
		fallback(req.VoiceID, s.cfg.VoiceID),
		fallback(req.Language, s.cfg.Language))

	if err := s.browser.OnCallStarted(sess.CallID, meta); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	transport, err := gateway.NewWebRTCTransport(s.browser, sess.CallID, func(reason string) {
		s.browser.OnCallEnded(sess.CallID, reason)
	})
	if err != nil {
		s.browser.OnCallEnded(sess.CallID, "setup failed")
		s.log.Error("webrtc transport failed", "call_id", sess.CallID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transport setup failed"})
	}

	answer, err := transport.HandleOffer(req.Offer)
	if err != nil {
		transport.Close()
		s.log.Warn("webrtc offer rejected", "call_id", sess.CallID, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "offer rejected"})
	}

	s.runCall(sess, s.browserOrc)
	s.log.Info("browser call started", "call_id", sess.CallID, "campaign_id", req.CampaignID)

	return c.JSON(fiber.Map{"call_id": sess.CallID, "answer": answer})
}

// handleVoIPWS serves one trunk connection; ServeConn blocks until the
// socket closes.
func (s *Server) handleVoIPWS(c *contribws.Conn) {
	s.trunk.ServeConn(c)
}

// handleMonitorWS attaches one dashboard client to the event hub.
func (s *Server) handleMonitorWS(c *fiberws.Conn) {
	monitor.NewClient(s.hub, c).Run()
}
