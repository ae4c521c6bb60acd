// callsim: run one simulated call through the full voice pipeline with
// mock providers and print a per-turn latency report. Useful for
// verifying pipeline behavior and timing without any provider accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/log"
	"github.com/crosstalk-ai/crosstalk/pkg/audioio"
	"github.com/crosstalk-ai/crosstalk/pkg/gateway"
	"github.com/crosstalk-ai/crosstalk/pkg/inference"
	"github.com/crosstalk-ai/crosstalk/pkg/stt"
	"github.com/crosstalk-ai/crosstalk/pkg/tts"
	"github.com/crosstalk-ai/crosstalk/pkg/voice"
)

var (
	latency = flag.Duration("latency", 120*time.Millisecond, "simulated provider latency per stage")
	verbose = flag.Bool("v", false, "log state transitions")
)

var callerLines = []string{
	"Hi, who am I speaking with?",
	"I'm calling about my order from last week.",
	"Great, that answers it. Goodbye.",
}

var agentLines = []string{
	"Hello! This is the Crosstalk assistant. How can I help you today?",
	"I can look into that. Your order shipped yesterday and arrives tomorrow.",
	"Happy to help. Have a great day!",
}

func main() {
	flag.Parse()
	if *verbose {
		log.Init("debug")
	} else {
		log.Init("error")
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "callsim:", err)
		os.Exit(1)
	}
}

func run() error {
	gw := gateway.NewWebSocket()
	if err := gw.Initialize(gateway.DefaultConfig()); err != nil {
		return err
	}

	sttP := stt.WithLatency(stt.NewMockScripted(callerLines...), *latency)
	llm := inference.NewMockScripted(agentLines...)
	ttsP := tts.WithLatency(tts.NewMock(), *latency)

	cfg := voice.DefaultConfig()
	cfg.PollInterval = 20 * time.Millisecond

	orc, err := voice.NewOrchestrator(gw, sttP, llm, ttsP, cfg)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var metrics []voice.TurnMetrics
	orc.Tracker().OnUpdate(func(m voice.TurnMetrics) {
		mu.Lock()
		metrics = append(metrics, m)
		mu.Unlock()
	})
	if *verbose {
		orc.OnStateChange(func(sess *voice.CallSession, state voice.State) {
			fmt.Printf("  [state] %s\n", state)
		})
	}

	sess := voice.NewCallSession(gateway.Metadata{CampaignID: "sim"},
		"You are a helpful voice agent.", "sim-voice", "en-US")
	if err := gw.OnCallStarted(sess.CallID, gateway.Metadata{CampaignID: "sim"}); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- orc.Run(context.Background(), sess) }()

	fmt.Printf("simulated call %s: %d caller turns, %v provider latency\n\n",
		sess.CallID, len(callerLines), *latency)

	// One audio chunk triggers one scripted caller turn; wait for the
	// agent's reply before speaking again, like a real caller would.
	tone := audioio.NewToneGenerator(audioio.DefaultFormat(), 440, 0.3)
	for i := range callerLines {
		chunk := tone.Next(80 * time.Millisecond)
		if err := gw.OnAudioReceived(sess.CallID, chunk.Bytes()); err != nil {
			return err
		}
		if err := waitForTurns(sess, 2*(i+1), 10*time.Second); err != nil {
			return err
		}
	}

	gw.OnCallEnded(sess.CallID, "caller hangup")
	if err := <-done; err != nil {
		return err
	}

	printTranscript(sess)
	mu.Lock()
	defer mu.Unlock()
	printReport(metrics)
	return nil
}

func waitForTurns(sess *voice.CallSession, n int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(sess.Turns()) >= n {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for turn %d", n)
}

func printTranscript(sess *voice.CallSession) {
	fmt.Println("transcript:")
	for _, turn := range sess.Turns() {
		fmt.Printf("  %2d %-7s %s\n", turn.TurnID, turn.Role+":", turn.Text)
	}
	fmt.Println()
}

func printReport(metrics []voice.TurnMetrics) {
	fmt.Println("latency report:")
	fmt.Printf("  %-5s %10s %10s %10s %12s  %s\n",
		"turn", "total", "llm", "tts", "first-audio", "target")

	var total time.Duration
	for _, m := range metrics {
		status := "ok"
		if !m.WithinTarget() {
			status = "MISSED"
		}
		fmt.Printf("  %-5d %10s %10s %10s %12s  %s\n",
			m.TurnID,
			m.TotalLatency().Round(time.Millisecond),
			m.LLMLatency().Round(time.Millisecond),
			m.TTSLatency().Round(time.Millisecond),
			m.TimeToFirstAudio().Round(time.Millisecond),
			status)
		total += m.TotalLatency()
	}
	if len(metrics) > 0 {
		fmt.Printf("\n  average total: %s (target %s)\n",
			(total / time.Duration(len(metrics))).Round(time.Millisecond),
			voice.LatencyTarget)
	}
}
