package voxlink

import "encoding/base64"

// Outbound application event names (client -> server).
const (
	eventAuthenticate          = "authenticate"
	eventText                  = "text"
	eventStreamAudio           = "stream_audio"
	eventStartVoice            = "start_voice"
	eventStopVoice             = "stop_voice"
	eventAudioPlaybackComplete = "audio_playback_complete"
	eventUpdatePreferences     = "update_preferences"
	eventCameraImage           = "camera_image"
	eventVisionPending         = "vision_pending"
)

// Inbound application event names (server -> client).
const (
	eventSessionInfo   = "session_info"
	eventBotResponse   = "bot_response"
	eventBotVoice      = "bot_voice"
	eventSTTResponse   = "stt_response"
	eventInterrupt     = "interrupt"
	eventAuthError     = "auth_error"
	eventError         = "error"
	eventQuotaExceeded = "quota_exceeded"
	eventCameraCapture = "camera_capture"
)

// EventKind identifies the type of a dispatched Event.
type EventKind int

const (
	// KindConnected fires once per handshake, when the server confirms
	// the session. Event.SessionInfo carries the session identifiers.
	KindConnected EventKind = iota

	// KindDisconnected fires on any loss of the link, solicited or not.
	KindDisconnected

	// KindSessionInfo carries the server-assigned session identifiers.
	KindSessionInfo

	// KindBotResponse carries one streamed text fragment of a response.
	KindBotResponse

	// KindBotVoice carries one streamed audio fragment of a response.
	KindBotVoice

	// KindTranscript carries a speech-to-text fragment of the user's own
	// voice input.
	KindTranscript

	// KindInterrupt signals that the server stopped the in-flight
	// response, usually because the user spoke over it.
	KindInterrupt

	// KindError carries fatal and informational server errors. Fatal
	// errors (auth rejection, exhausted reconnects) coincide with a
	// transition to StateError; informational ones leave the state alone.
	KindError

	// KindQuotaExceeded signals the account hit its usage quota.
	KindQuotaExceeded

	// KindCameraCapture asks the host to capture and send a camera image.
	KindCameraCapture
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	case KindSessionInfo:
		return "session_info"
	case KindBotResponse:
		return "bot_response"
	case KindBotVoice:
		return "bot_voice"
	case KindTranscript:
		return "transcript"
	case KindInterrupt:
		return "interrupt"
	case KindError:
		return "error"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindCameraCapture:
		return "camera_capture"
	default:
		return "unknown"
	}
}

// BotResponse is a streamed text fragment of a character response.
type BotResponse struct {
	Text           string `json:"text"`
	IsFinal        bool   `json:"isFinal"`
	MessageID      string `json:"messageId"`
	ChunkIndex     int    `json:"chunkIndex"`
	IsInterjection bool   `json:"isInterjection"`
}

// BotVoice is a streamed audio fragment of a character response.
type BotVoice struct {
	// AudioBase64 is the PCM16 mono payload as received on the wire.
	AudioBase64 string `json:"audio"`

	// Audio is the decoded PCM, populated when AudioBase64 decodes cleanly.
	Audio []byte `json:"-"`

	SampleRate     int    `json:"sampleRate"`
	ChunkIndex     int    `json:"chunkIndex"`
	MessageID      string `json:"messageId"`
	IsInterjection bool   `json:"isInterjection"`
}

// Transcript is a speech-to-text fragment of the user's voice input.
type Transcript struct {
	Text       string  `json:"text"`
	IsFinal    bool    `json:"isFinal"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// Interrupt notifies that the in-flight response was cut off.
type Interrupt struct {
	// MessageID is the response being interrupted. May be empty, in which
	// case the engine falls back to the response currently streaming in.
	MessageID string `json:"messageId"`
	Reason    string `json:"reason"`
}

// ServerNotice is the payload of error and quota events.
type ServerNotice struct {
	Message string `json:"message"`
}

// CameraCapture asks the host to take a picture and send it back via
// SendCameraImage with the same RequestID.
type CameraCapture struct {
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
}

// CameraImage is an outbound camera frame, sent in reply to a capture
// request or spontaneously.
type CameraImage struct {
	// ImageBase64 is the encoded image payload.
	ImageBase64 string `json:"image"`

	// MimeType describes the encoding, e.g. "image/jpeg".
	MimeType string `json:"mimeType"`

	// RequestID correlates the image with a camera_capture request.
	// Left empty, the engine assigns one.
	RequestID string `json:"requestId,omitempty"`

	// Text is an optional caption or question about the image.
	Text string `json:"text,omitempty"`

	// SampleRate is the playback rate for any spoken reply.
	SampleRate int `json:"sampleRate,omitempty"`
}

// Event is the closed variant type delivered to subscribers. Kind selects
// which payload field is set; all others are nil.
type Event struct {
	Kind EventKind

	SessionInfo   *Session
	BotResponse   *BotResponse
	BotVoice      *BotVoice
	Transcript    *Transcript
	Interrupt     *Interrupt
	Notice        *ServerNotice
	CameraCapture *CameraCapture

	// Err is set for KindError events.
	Err *Error
}

// decodeVoicePayload fills BotVoice.Audio from the base64 field. A payload
// that fails to decode is still surfaced with the raw string so subscribers
// can decide what to do with it.
func (v *BotVoice) decode() {
	if v.AudioBase64 == "" {
		return
	}
	if pcm, err := base64.StdEncoding.DecodeString(v.AudioBase64); err == nil {
		v.Audio = pcm
	}
}
