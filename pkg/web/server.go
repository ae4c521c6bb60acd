// Package web exposes the platform's HTTP surface: health and call APIs,
// the VoIP trunk WebSocket, browser call signalling, and the dashboard
// event feed.
package web

import (
	"context"
	"log/slog"
	"sync"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"

	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/monitor"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

// Config holds the web server options.
type Config struct {
	// Port to listen on. Default "8080".
	Port string

	// StaticDir serves dashboard assets at / when set.
	StaticDir string

	// Defaults applied to calls that arrive without their own agent
	// configuration.
	SystemPrompt string
	VoiceID      string
	Language     string
}

func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	return c
}

// Server routes the three call-facing surfaces onto one fiber app: VoIP
// trunks over /ws/voip, browser calls over /api/calls/browser, and the
// dashboard over /ws/monitor. Each media gateway gets its own
// orchestrator because an orchestrator is bound to one gateway for the
// life of the process.
type Server struct {
	cfg Config
	app *fiber.App
	log *slog.Logger

	trunk      *gateway.WebSocket
	trunkOrc   *voice.Orchestrator
	browser    *gateway.Browser
	browserOrc *voice.Orchestrator
	hub        *monitor.Hub

	runsMu sync.Mutex
	runs   map[string]context.CancelFunc
}

// NewServer wires the routes. Start must still be called.
func NewServer(cfg Config, trunk *gateway.WebSocket, trunkOrc *voice.Orchestrator,
	browser *gateway.Browser, browserOrc *voice.Orchestrator, hub *monitor.Hub) *Server {

	s := &Server{
		cfg:        cfg.withDefaults(),
		log:        log.With("component", "web"),
		trunk:      trunk,
		trunkOrc:   trunkOrc,
		browser:    browser,
		browserOrc: browserOrc,
		hub:        hub,
		runs:       make(map[string]context.CancelFunc),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Crosstalk",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if s.cfg.StaticDir != "" {
		app.Static("/", s.cfg.StaticDir)
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/calls", s.handleListCalls)
	api.Get("/calls/:id", s.handleGetCall)
	api.Post("/calls/browser", s.handleBrowserOffer)
	api.Post("/calls/:id/end", s.handleEndCall)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if contribws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voip", contribws.New(s.handleVoIPWS))
	app.Get("/ws/monitor", fiberws.New(s.handleMonitorWS))

	s.app = app

	trunk.OnStart(s.startTrunkCall)
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Info("web server listening", "port", s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown cancels every running call pipeline and stops the listener.
func (s *Server) Shutdown() error {
	s.runsMu.Lock()
	for _, cancel := range s.runs {
		cancel()
	}
	s.runsMu.Unlock()
	return s.app.Shutdown()
}

// startTrunkCall launches the pipeline for a call opened by a VoIP trunk.
// The trunk names its own calls, so the session takes the trunk's ID.
func (s *Server) startTrunkCall(callID string, start gateway.CallStartData) {
	sess := voice.NewCallSession(start.Metadata(),
		fallback(start.SystemPrompt, s.cfg.SystemPrompt),
		fallback(start.VoiceID, s.cfg.VoiceID),
		fallback(start.Language, s.cfg.Language))
	sess.CallID = callID
	s.runCall(sess, s.trunkOrc)
}

// runCall runs one call pipeline to completion in the background.
func (s *Server) runCall(sess *voice.CallSession, orc *voice.Orchestrator) {
	ctx, cancel := context.WithCancel(context.Background())
	s.runsMu.Lock()
	s.runs[sess.CallID] = cancel
	s.runsMu.Unlock()

	go func() {
		defer func() {
			s.runsMu.Lock()
			delete(s.runs, sess.CallID)
			s.runsMu.Unlock()
			cancel()
		}()
		if err := orc.Run(ctx, sess); err != nil {
			s.log.Error("call pipeline failed", "call_id", sess.CallID, "error", err)
		}
	}()
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
