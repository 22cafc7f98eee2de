// Package websocket streams a session to a remote viewer.
package websocket

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/arscene/statesync/pkg/core"
	"github.com/arscene/statesync/pkg/streaming"
	"github.com/rs/zerolog"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket to a remote viewer.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn      *connection
	cfg       Config
	sessionID atomic.Value // string
	lastFrame atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, log zerolog.Logger) *Backend {
	return &Backend{
		conn: newConnection(log.With().Str("component", "websocket").Logger()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession sends the session header and waits for server ack.
func (b *Backend) StartSession(session *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: session})
	if err != nil {
		return err
	}
	b.sessionID.Store(session.ID.String())
	b.lastFrame.Store(0)

	b.conn.startPreamble(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	id, _ := b.sessionID.Load().(string)
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{
		SessionID: id,
		Frames:    b.lastFrame.Load(),
	})
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	}

	b.conn.clearPreamble()
	return err
}

// AddTrackable sends the trackable and keeps it for replay after a reconnect.
func (b *Backend) AddTrackable(t core.Trackable) error {
	data, err := marshalEnvelope(streaming.TypeAddTrackable, t)
	if err != nil {
		return err
	}
	b.conn.extendPreamble(data)
	b.conn.send(data)
	return nil
}

func (b *Backend) RecordPose(p *core.PoseUpdate) error {
	b.seen(p.Frame)
	return b.sendEnvelope(streaming.TypePose, p)
}

func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	b.seen(c.Frame)
	return b.sendEnvelope(streaming.TypeStatus, c)
}

func (b *Backend) RecordButtonEvent(e *core.ButtonEvent) error {
	b.seen(e.Frame)
	return b.sendEnvelope(streaming.TypeButton, e)
}

func (b *Backend) RecordAnchorChange(a *core.AnchorChange) error {
	b.seen(a.Frame)
	return b.sendEnvelope(streaming.TypeAnchor, a)
}

func (b *Backend) seen(frame uint64) {
	for {
		cur := b.lastFrame.Load()
		if frame <= cur || b.lastFrame.CompareAndSwap(cur, frame) {
			return
		}
	}
}

// Connected reports whether the stream currently has a live connection.
func (b *Backend) Connected() bool {
	return b.conn.connected()
}

// Dropped returns how many messages were lost to a full queue or a failed socket.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}
