// Package streaming defines the wire protocol used to stream a session to a
// remote viewer.
package streaming

import (
	"encoding/json"

	"github.com/arscene/statesync/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeAddTrackable = "add_trackable"
	TypePose         = "pose"
	TypeStatus       = "status"
	TypeButton       = "button"
	TypeAnchor       = "anchor"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session header.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload closes a session.
type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
	Frames    uint64 `json:"frames"`
}
