// Package session holds the recording session currently in progress.
package session

import (
	"sync"
	"time"

	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
)

// Context holds the current session and the last frame seen in it.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	frame   uint64
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{}
}

// Get returns the current session, nil if none.
func (c *Context) Get() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Set replaces the current session and resets the frame counter.
func (c *Context) Set(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.frame = 0
}

// End stamps the end time of the current session and returns it.
func (c *Context) End(t time.Time) *core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.EndTime.IsZero() {
		c.session.EndTime = t
	}
	return c.session
}

// Name returns the current session name, "" if none.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.Name
}

// SetFrame records the last reconciled frame.
func (c *Context) SetFrame(frame uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}

// Frame returns the last reconciled frame.
func (c *Context) Frame() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame
}

// Metadata builds the upload metadata for the current session.
func (c *Context) Metadata() core.UploadMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return core.UploadMetadata{}
	}
	meta := core.UploadMetadata{
		SessionName: c.session.Name,
		Tag:         c.session.Tag,
		Frames:      c.frame,
	}
	if !c.session.EndTime.IsZero() {
		meta.Duration = c.session.EndTime.Sub(c.session.StartTime).Seconds()
	}
	return meta
}

// LogContext adds the session and frame to a log event.
func (c *Context) LogContext(e *zerolog.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return
	}
	e.Str("session", c.session.Name).Uint64("frame", c.frame)
}
