package voxlink

import "encoding/json"

// ConnectionState represents the state of the session link.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ConnectionState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "disconnected":
		*s = StateDisconnected
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	case "reconnecting":
		*s = StateReconnecting
	case "error":
		*s = StateError
	default:
		*s = StateDisconnected
	}
	return nil
}

// Credentials identifies the player and character for one logical session.
// Captured at Connect time and reused unchanged across reconnects.
type Credentials struct {
	// APIKey authenticates the client with the backend.
	APIKey string `json:"apiKey"`

	// CharacterID selects the character to converse with. Required.
	CharacterID string `json:"characterId"`

	// PlayerID identifies the end user. Required.
	PlayerID string `json:"playerId"`

	// PlaybackSampleRate is the sample rate (Hz) the client will play
	// bot audio at. The server resamples its TTS output to match.
	PlaybackSampleRate int `json:"playbackSampleRate"`
}

// Session holds the identifiers the server assigns when it confirms the
// handshake. It exists only while the link is connected; any disconnect
// clears it.
type Session struct {
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
	CharacterID    string `json:"characterId"`
	PlayerID       string `json:"playerId"`
}
