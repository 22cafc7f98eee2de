// Package tracker provides sources of per-frame tracker results.
package tracker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/arscene/statesync/pkg/core"
)

// Tracker yields one frame of results per call. io.EOF signals that the
// source is exhausted.
type Tracker interface {
	PollFrame(ctx context.Context) (core.Frame, error)
}

// Scripted replays an in-memory list of frames. Frames with a zero index
// are numbered sequentially.
type Scripted struct {
	mu     sync.Mutex
	frames []core.Frame
	next   int
}

// NewScripted creates a scripted tracker over frames.
func NewScripted(frames ...core.Frame) *Scripted {
	return &Scripted{frames: frames}
}

// PollFrame returns the next frame or io.EOF.
func (s *Scripted) PollFrame(ctx context.Context) (core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return core.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return core.Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	if f.Index == 0 {
		f.Index = uint64(s.next)
	}
	return f, nil
}

// Replay reads frames from a JSON Lines stream, one frame per line.
type Replay struct {
	mu      sync.Mutex
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
	last    uint64
}

// NewReplay reads frames from r.
func NewReplay(r io.Reader) *Replay {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	rp := &Replay{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		rp.closer = c
	}
	return rp
}

// OpenReplay opens a JSON Lines frame file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplay(f), nil
}

// PollFrame decodes the next non-empty line.
func (r *Replay) PollFrame(ctx context.Context) (core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return core.Frame{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f core.Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return core.Frame{}, fmt.Errorf("replay line %d: %w", r.line, err)
		}
		if f.Index == 0 {
			f.Index = r.last + 1
		}
		r.last = f.Index
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return core.Frame{}, fmt.Errorf("replay line %d: %w", r.line+1, err)
	}
	return core.Frame{}, io.EOF
}

// Close releases the underlying file, if any.
func (r *Replay) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Writer appends frames as JSON Lines so a session can be replayed later.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one frame.
func (w *Writer) Write(f core.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	return nil
}

// Tee wraps a tracker and records every polled frame.
type Tee struct {
	Tracker
	W *Writer
}

// PollFrame polls the wrapped tracker and records successful frames.
func (t Tee) PollFrame(ctx context.Context) (core.Frame, error) {
	f, err := t.Tracker.PollFrame(ctx)
	if err != nil {
		return f, err
	}
	if werr := t.W.Write(f); werr != nil {
		return f, werr
	}
	return f, nil
}
