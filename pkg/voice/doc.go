// Package voice runs the streaming conversation pipeline for one call.
//
// The Orchestrator owns a call from answer to hang-up. It pulls caller
// audio from a media gateway, streams it to a speech-to-text provider,
// turns each completed caller utterance into an LLM request, and pipes
// token deltas straight into an incremental text-to-speech session so the
// agent starts speaking before the LLM finishes writing. Synthesized audio
// goes back out through the gateway's output queue.
//
// # Turn lifecycle
//
// A call moves through Starting, Listening, Thinking, Speaking, and
// Ending. Listening accumulates final transcript chunks until the provider
// signals a turn boundary (an empty final chunk). Thinking opens the LLM
// stream; the first token flips the call to Speaking. A barge-in event
// while Speaking cancels the in-flight LLM and TTS work, flushes any
// unplayed output audio, and drops straight back to Listening.
//
// # Usage
//
//	orc, err := voice.NewOrchestrator(gw, sttProvider, llmProvider, ttsProvider, voice.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess := voice.NewCallSession(meta, systemPrompt, voiceID, "en-US")
//	if err := orc.Run(ctx, sess); err != nil {
//	    log.Printf("call %s: %v", sess.CallID, err)
//	}
//
// # Latency
//
// A Tracker stamps each pipeline stage per turn. The headline number is
// speech-end to first output audio; under 700 ms the turn counts as within
// target. Metrics history is bounded per call and can feed a monitor hub
// through the tracker's update callback.
package voice
