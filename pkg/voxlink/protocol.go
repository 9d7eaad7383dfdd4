package voxlink

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ================== Wire protocol constants ==================

// The link speaks a two-layer text protocol. The transport layer uses
// single-character tokens; the event layer prefixes frames with a
// two-character marker followed by an optional namespace and a JSON body.
const (
	tokenOpen = "0" // server -> client, channel opened (carries metadata)
	tokenPing = "2" // server -> client, keepalive probe
	tokenPong = "3" // client -> server, keepalive reply

	markerJoin      = "40" // join namespace / join acknowledged
	markerLeave     = "41" // leave namespace
	markerEvent     = "42" // application event, bidirectional
	markerJoinError = "44" // join rejected
)

// DefaultNamespace is the event-layer namespace joined after the transport
// handshake.
const DefaultNamespace = "/chat"

// packetKind classifies a decoded inbound frame.
type packetKind int

const (
	packetUnknown packetKind = iota
	packetOpen
	packetPing
	packetPong
	packetJoined
	packetJoinError
	packetEvent
)

// frame is one decoded inbound wire frame. Transient; it lives only for the
// duration of a single dispatch call.
type frame struct {
	kind      packetKind
	namespace string
	name      string          // event name, packetEvent only
	payload   json.RawMessage // event or error payload, may be nil
}

// ================== Encoding ==================

// encodeJoin builds the namespace-connect frame. Credentials are never
// embedded here; authentication is a separate event after the join ack.
func encodeJoin(namespace string) string {
	return markerJoin + namespace
}

// encodeLeave builds the best-effort namespace-disconnect frame.
func encodeLeave(namespace string) string {
	return markerLeave + namespace
}

// encodeEvent builds an event frame: "42<namespace>,[name, payload]".
// A nil payload produces a single-element array.
func encodeEvent(namespace, name string, payload any) (string, error) {
	arr := []any{name}
	if payload != nil {
		arr = append(arr, payload)
	}
	body, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("encode event %q: %w", name, err)
	}
	return sanitizeFrame(markerEvent + namespace + "," + string(body)), nil
}

// sanitizeFrame strips control characters and truncates anything trailing
// past the last JSON terminator. The upstream channel has been observed to
// append garbage bytes to frames; transmitting them corrupts the peer's
// parser, so this is part of the wire contract.
func sanitizeFrame(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if r < 0x20 || r == 0x7f {
				continue
			}
			b.WriteRune(r)
		}
		s = b.String()
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}

// base64Alphabet covers standard base64 plus padding.
func isBase64Byte(c byte) bool {
	return c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c >= '0' && c <= '9' ||
		c == '+' || c == '/' || c == '='
}

// cleanBase64 strips bytes outside the base64 alphabet and pads the result
// with '=' to a length multiple of four. An empty result means the chunk
// carried no usable audio and must not be transmitted.
func cleanBase64(s string) string {
	clean := s
	if strings.IndexFunc(s, func(r rune) bool { return r > 0x7f || !isBase64Byte(byte(r)) }) >= 0 {
		var b strings.Builder
		b.Grow(len(s))
		for i := 0; i < len(s); i++ {
			if isBase64Byte(s[i]) {
				b.WriteByte(s[i])
			}
		}
		clean = b.String()
	}
	if clean == "" {
		return ""
	}
	if rem := len(clean) % 4; rem != 0 {
		clean += strings.Repeat("=", 4-rem)
	}
	return clean
}

// ================== Decoding ==================

// decodeFrame classifies a raw inbound frame by its leading marker.
// Unrecognized prefixes yield packetUnknown; malformed event bodies return
// an error. Neither condition may propagate past the dispatch layer.
func decodeFrame(raw string) (*frame, error) {
	switch {
	case raw == tokenPing:
		return &frame{kind: packetPing}, nil
	case raw == tokenPong:
		return &frame{kind: packetPong}, nil
	case strings.HasPrefix(raw, markerEvent):
		return decodeEventFrame(raw)
	case strings.HasPrefix(raw, markerJoinError):
		ns, body := splitNamespaceBody(raw[len(markerJoinError):])
		return &frame{kind: packetJoinError, namespace: ns, payload: json.RawMessage(body)}, nil
	case strings.HasPrefix(raw, markerJoin):
		ns, _ := splitNamespaceBody(raw[len(markerJoin):])
		return &frame{kind: packetJoined, namespace: ns}, nil
	case strings.HasPrefix(raw, markerLeave):
		return &frame{kind: packetUnknown}, nil
	case strings.HasPrefix(raw, tokenOpen):
		// The remainder is handshake metadata (ping interval, sid);
		// the client has no use for it.
		return &frame{kind: packetOpen, payload: json.RawMessage(raw[1:])}, nil
	default:
		return &frame{kind: packetUnknown}, nil
	}
}

// decodeEventFrame parses "42<namespace>,[name, payload]".
func decodeEventFrame(raw string) (*frame, error) {
	ns, body := splitNamespaceBody(raw[len(markerEvent):])
	if body == "" {
		return nil, fmt.Errorf("event frame without body: %q", raw)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(body), &arr); err != nil {
		return nil, fmt.Errorf("parse event array: %w", err)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("empty event array: %q", raw)
	}
	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		return nil, fmt.Errorf("parse event name: %w", err)
	}
	f := &frame{kind: packetEvent, namespace: ns, name: name}
	if len(arr) > 1 {
		f.payload = arr[1]
	}
	return f, nil
}

// splitNamespaceBody splits the remainder after an event-layer marker into
// the namespace (up to the first comma) and the JSON body after it.
// Both parts are optional on the wire: "40", "40/chat", "40/chat,{...}"
// and "42/chat,[...]" are all valid shapes.
func splitNamespaceBody(rest string) (namespace, body string) {
	// A bare JSON body with no namespace; JSON may contain commas, so
	// this check comes first.
	if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "[") {
		return "", rest
	}
	if i := strings.IndexByte(rest, ','); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, ""
}
