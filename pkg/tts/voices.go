package tts

// ElevenLabsVoices maps preset names to ElevenLabs voice IDs. Campaigns
// pick voices by preset name so operators never handle raw IDs; anything
// not in this table is treated as a raw voice ID and passed through.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// DefaultElevenLabsVoice is the preset used when a campaign sets no voice.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice maps a preset name to its voice ID. Names not
// in the preset table are returned unchanged.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}

// IsElevenLabsPreset reports whether name is a known preset.
func IsElevenLabsPreset(name string) bool {
	_, ok := ElevenLabsVoices[name]
	return ok
}
