package websocket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arscene/statesync/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendQueueSize  = 10_000
	ackQueueSize   = 16
	maxRedials     = 10
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	ackTimeout     = 10 * time.Second
)

var dialer = &ws.Dialer{
	HandshakeTimeout: 10 * time.Second,
}

// connection owns the socket to the viewer. One writer goroutine and one
// reader goroutine run per live socket; a failed socket is redialed in the
// background and the session preamble is sent again before queued frames.
type connection struct {
	mu   sync.Mutex
	sock *ws.Conn
	// stop is closed when sock is detached and ends its writer.
	stop chan struct{}
	// preamble is start_session followed by every add_trackable of the
	// current session.
	preamble [][]byte
	closed   bool

	outbox chan []byte
	acks   chan streaming.AckMessage
	done   chan struct{}

	target  string
	dropped atomic.Uint64

	log zerolog.Logger
}

func newConnection(log zerolog.Logger) *connection {
	return &connection{
		outbox: make(chan []byte, sendQueueSize),
		acks:   make(chan streaming.AckMessage, ackQueueSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// dial opens the first socket. A failure here is returned to the caller
// rather than retried.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	c.target = u.String()

	sock, err := c.open()
	if err != nil {
		return err
	}
	c.attach(sock)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	sock, _, err := dialer.Dial(c.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	return sock, nil
}

func (c *connection) attach(sock *ws.Conn) {
	stop := make(chan struct{})
	c.mu.Lock()
	c.sock = sock
	c.stop = stop
	c.mu.Unlock()
	go c.writeLoop(sock, stop)
	go c.readLoop(sock)
}

// detach drops sock if it is still the live one. It reports false when
// another goroutine already detached it or the connection is closed.
func (c *connection) detach(sock *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.sock != sock {
		return false
	}
	c.sock = nil
	close(c.stop)
	_ = sock.Close()
	return true
}

func (c *connection) fail(sock *ws.Conn, err error, msg string) {
	if c.detach(sock) {
		c.log.Warn().Err(err).Msg(msg)
		go c.redial()
	}
}

func (c *connection) writeLoop(sock *ws.Conn, stop <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case <-ping.C:
			if err := sock.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.fail(sock, err, "WebSocket ping failed")
				return
			}
		case data := <-c.outbox:
			if err := c.write(sock, data); err != nil {
				// the message is lost with the socket, like any other in flight
				c.dropped.Add(1)
				c.fail(sock, err, "WebSocket write failed")
				return
			}
		}
	}
}

func (c *connection) write(sock *ws.Conn, data []byte) error {
	if err := sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return sock.WriteMessage(ws.TextMessage, data)
}

// readLoop routes acks to sendAndWait. Anything else from the viewer is ignored.
func (c *connection) readLoop(sock *ws.Conn) {
	_ = sock.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, message, err := sock.ReadMessage()
		if err != nil {
			c.fail(sock, err, "WebSocket read failed")
			return
		}
		_ = sock.SetReadDeadline(time.Now().Add(pongWait))

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.log.Debug().Str("raw", string(message)).Msg("Ignoring viewer message")
			continue
		}
		select {
		case c.acks <- ack:
		default:
			c.log.Debug().Str("for", ack.For).Msg("Ack queue full, dropping")
		}
	}
}

// redial retries with exponential backoff, sends the preamble on the new
// socket and resumes the loops.
func (c *connection) redial() {
	backoff := initialBackoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		sock, err := c.open()
		if err == nil {
			err = c.sendPreamble(sock)
			if err != nil {
				_ = sock.Close()
			}
		}
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("WebSocket redial failed")
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = sock.Close()
			return
		}
		c.mu.Unlock()
		c.attach(sock)
		c.log.Info().Int("attempt", attempt).Msg("WebSocket reconnected")
		return
	}
	c.log.Error().Int("attempts", maxRedials).Msg("Giving up on WebSocket viewer")
}

func (c *connection) sendPreamble(sock *ws.Conn) error {
	c.mu.Lock()
	msgs := append([][]byte(nil), c.preamble...)
	c.mu.Unlock()
	for _, data := range msgs {
		if err := c.write(sock, data); err != nil {
			return fmt.Errorf("replaying session preamble: %w", err)
		}
	}
	return nil
}

// startPreamble resets the preamble to a new start_session message.
func (c *connection) startPreamble(start []byte) {
	c.mu.Lock()
	c.preamble = [][]byte{start}
	c.mu.Unlock()
}

// extendPreamble appends to the preamble of the running session.
func (c *connection) extendPreamble(data []byte) {
	c.mu.Lock()
	if len(c.preamble) > 0 {
		c.preamble = append(c.preamble, data)
	}
	c.mu.Unlock()
}

func (c *connection) clearPreamble() {
	c.mu.Lock()
	c.preamble = nil
	c.mu.Unlock()
}

// send queues data without blocking. A full queue drops the message.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.log.Warn().Uint64("dropped", n).Msg("WebSocket send queue full, dropping messages")
		}
	}
}

// sendAndWait queues data and waits for the viewer to ack msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-c.acks:
			if ack.For == msgType {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", msgType)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
		}
	}
}

// close sends a close frame and stops every goroutine. Safe to call twice.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	if sock == nil {
		return nil
	}
	_ = sock.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return sock.Close()
}

func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil && !c.closed
}
