// crosstalk: AI voice call server.
// Terminates VoIP trunk, SIP, and browser calls and runs the streaming
// speech-to-speech pipeline on each one.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crosstalk-ai/crosstalk/internal/config"
	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/inference"
	"github.com/crosstalk-ai/crosstalk/pkg/monitor"
	"github.com/crosstalk-ai/crosstalk/pkg/persist"
	"github.com/crosstalk-ai/crosstalk/pkg/sip"
	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/tts"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
	"github.com/crosstalk-ai/crosstalk/pkg/web"
)

var (
	version = "1.0.0"
	port    = flag.String("port", "", "HTTP server port (overrides PORT)")
	sipOn   = flag.Bool("sip", false, "enable the SIP listener (overrides SIP_ENABLED)")
	debug   = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()
	godotenv.Load()

	level := config.Get("LOG_LEVEL", "info")
	if *debug {
		level = "debug"
	}
	log.Init(level)
	log.Info("crosstalk starting", "version", version)

	if err := run(); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	providers := buildProviders()

	sttP, err := providers.NewSTT(config.Get("STT_PROVIDER", "deepgram"))
	if err != nil {
		return err
	}
	llm, err := providers.NewLLM(config.Get("LLM_PROVIDER", "openai"))
	if err != nil {
		return err
	}
	ttsP, err := providers.NewTTS(config.Get("TTS_PROVIDER", "elevenlabs"))
	if err != nil {
		return err
	}

	store, err := persist.NewStore(config.Get("DATA_DIR", "./data"))
	if err != nil {
		return err
	}

	hub := monitor.NewHub()
	go hub.Run()
	defer hub.Stop()

	gateways := gateway.NewDefaultRegistry()
	gwCfg := gateway.DefaultConfig()
	gwCfg.Codec = config.Get("RTP_CODEC", gateway.CodecPCMU)
	gwCfg.MaxQueueSize = config.GetInt("MAX_QUEUE_SIZE", gwCfg.MaxQueueSize)

	pipeCfg := voice.DefaultConfig()
	pipeCfg.SampleRate = gwCfg.SampleRate

	newOrchestrator := func(name string) (gateway.Gateway, *voice.Orchestrator, error) {
		gw, err := gateways.New(name, gwCfg)
		if err != nil {
			return nil, nil, err
		}
		orc, err := voice.NewOrchestrator(gw, sttP, llm, ttsP, pipeCfg)
		if err != nil {
			return nil, nil, err
		}
		orc.UseSinks(store, store)
		monitor.Attach(hub, orc)
		return gw, orc, nil
	}

	trunkGW, trunkOrc, err := newOrchestrator("websocket")
	if err != nil {
		return err
	}
	browserGW, browserOrc, err := newOrchestrator("browser")
	if err != nil {
		return err
	}
	trunk := trunkGW.(*gateway.WebSocket)
	browser := browserGW.(*gateway.Browser)
	defer trunk.Cleanup()
	defer browser.Cleanup()

	webCfg := web.Config{
		Port:         config.Get("PORT", "8080"),
		StaticDir:    config.Get("STATIC_DIR", ""),
		SystemPrompt: config.Get("SYSTEM_PROMPT", ""),
		VoiceID:      config.Get("VOICE_ID", ""),
		Language:     config.Get("LANGUAGE", "en-US"),
	}
	if *port != "" {
		webCfg.Port = *port
	}
	server := web.NewServer(webCfg, trunk, trunkOrc, browser, browserOrc, hub)
	server.StartAsync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sipServer *sip.Server
	if *sipOn || config.Get("SIP_ENABLED", "") == "true" {
		rtpGW, rtpOrc, err := newOrchestrator("rtp")
		if err != nil {
			return err
		}
		defer rtpGW.Cleanup()

		sipCfg := sip.DefaultConfig()
		sipCfg.Port = config.GetInt("SIP_PORT", sipCfg.Port)
		sipCfg.PublicIP = config.Get("SIP_PUBLIC_IP", "")
		sipCfg.MaxCallDuration = config.GetDuration("MAX_CALL_DURATION", sipCfg.MaxCallDuration)
		if webCfg.SystemPrompt != "" {
			sipCfg.SystemPrompt = webCfg.SystemPrompt
		}
		sipCfg.VoiceID = webCfg.VoiceID
		sipCfg.Language = webCfg.Language

		sipServer, err = sip.NewServer(sipCfg, rtpGW.(*gateway.RTP), rtpOrc)
		if err != nil {
			return err
		}
		go func() {
			if err := sipServer.Start(ctx); err != nil {
				log.Error("sip listener stopped", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if sipServer != nil {
		sipServer.Stop()
	}
	if err := server.Shutdown(); err != nil {
		log.Error("web shutdown failed", "error", err)
	}
	return nil
}

// buildProviders registers every supported pipeline provider. Factories
// read their keys lazily so unused providers need no configuration.
func buildProviders() *voice.Registry {
	r := voice.NewRegistry()

	r.RegisterSTT("deepgram", func() (stt.Provider, error) {
		return stt.NewDeepgram(
			stt.WithAPIKey(config.Require("DEEPGRAM_API_KEY")),
			stt.WithModel(config.Get("DEEPGRAM_MODEL", "nova-2")),
		)
	})
	r.RegisterSTT("mock", func() (stt.Provider, error) {
		return stt.NewMock(), nil
	})

	r.RegisterLLM("openai", func() (inference.Provider, error) {
		return inference.NewClient(
			inference.WithAPIKey(config.Require("OPENAI_API_KEY")),
			inference.WithBaseURL(config.Get("LLM_BASE_URL", "https://api.openai.com/v1")),
			inference.WithModel(config.Get("LLM_MODEL", "gpt-4o-mini")),
		)
	})
	r.RegisterLLM("mock", func() (inference.Provider, error) {
		return inference.NewMock(), nil
	})

	r.RegisterTTS("elevenlabs", func() (tts.Provider, error) {
		return tts.NewElevenLabs(
			tts.WithAPIKey(config.Require("ELEVENLABS_API_KEY")),
			tts.WithVoice(config.Get("VOICE_ID", tts.DefaultElevenLabsVoice)),
		)
	})
	r.RegisterTTS("openai", func() (tts.Provider, error) {
		return tts.NewOpenAI(
			tts.WithAPIKey(config.Require("OPENAI_API_KEY")),
		)
	})
	r.RegisterTTS("google", func() (tts.Provider, error) {
		return tts.NewGoogle(context.Background())
	})
	// Fallback chain: ElevenLabs first, OpenAI when it fails.
	r.RegisterTTS("chain", func() (tts.Provider, error) {
		primary, err := r.NewTTS("elevenlabs")
		if err != nil {
			return nil, err
		}
		backup, err := r.NewTTS("openai")
		if err != nil {
			return nil, err
		}
		return tts.NewChain(primary, backup)
	})
	r.RegisterTTS("mock", func() (tts.Provider, error) {
		return tts.NewMock(), nil
	})

	return r
}
