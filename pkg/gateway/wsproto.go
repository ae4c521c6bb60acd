package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a message on the VoIP control channel. Audio may
// travel either as binary WebSocket frames (raw PCM16) or inside a
// call.audio envelope with a base64 payload; both reach the same ingest
// path.
type MessageType string

const (
	// Trunk → platform messages
	TypeCallStart MessageType = "call.start"
	TypeCallAudio MessageType = "call.audio"
	TypeCallEnd   MessageType = "call.end"

	// Bidirectional health check
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the JSON envelope for the VoIP control channel.
type Message struct {
	Type      MessageType     `json:"type"`
	CallID    string          `json:"call_id,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates an envelope with the current timestamp.
func NewMessage(msgType MessageType, callID string, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		CallID:    callID,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseMessage parses a JSON envelope from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("gateway: parse message: %w", err)
	}
	return &msg, nil
}

// ParseData unmarshals the envelope payload into v.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// CallStartData opens a call: the trunk supplies routing metadata and the
// agent configuration resolved by the campaign layer.
type CallStartData struct {
	CampaignID      string `json:"campaign_id,omitempty"`
	LeadID          string `json:"lead_id,omitempty"`
	ProviderCallRef string `json:"provider_call_ref,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`

	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Metadata extracts the gateway-facing fields.
func (d *CallStartData) Metadata() Metadata {
	return Metadata{
		CampaignID:      d.CampaignID,
		LeadID:          d.LeadID,
		ProviderCallRef: d.ProviderCallRef,
		From:            d.From,
		To:              d.To,
	}
}

// CallAudioData carries one audio chunk inside the JSON channel.
type CallAudioData struct {
	// Audio is base64-encoded PCM16 little-endian.
	Audio string `json:"audio"`
}

// Decode returns the raw PCM bytes.
func (d *CallAudioData) Decode() ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(d.Audio)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode audio payload: %w", err)
	}
	return pcm, nil
}

// CallEndData closes a call.
type CallEndData struct {
	Reason string `json:"reason,omitempty"`
}

// NewPongMessage answers a ping, echoing its timestamp.
func NewPongMessage(callID string, pingTS int64) (*Message, error) {
	return NewMessage(TypePong, callID, map[string]int64{"ping_ts": pingTS})
}
