// Package frameloop drives the reconciliation context from a tracker.
package frameloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arscene/statesync/internal/scene"
	"github.com/arscene/statesync/internal/tracker"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
)

// Reconciler is the per-frame entry point of the scene.
type Reconciler interface {
	Reconcile(frame core.Frame) (scene.FrameResult, error)
	LastFrame() uint64
}

// Loop polls a tracker and reconciles each frame in order.
type Loop struct {
	tracker tracker.Tracker
	scene   Reconciler
	log     zerolog.Logger

	// MaxConsecutiveErrors stops Run after this many failed polls in a row. Zero disables.
	MaxConsecutiveErrors int
}

// New creates a loop.
func New(t tracker.Tracker, s Reconciler, log zerolog.Logger) *Loop {
	return &Loop{tracker: t, scene: s, log: log}
}

// Step polls one frame and reconciles it. A failed poll is reconciled as a
// failed frame so that trackables fall to NotFound; the poll error is
// returned wrapped together with scene.ErrTracker. io.EOF is returned
// unchanged when the tracker is exhausted.
func (l *Loop) Step(ctx context.Context) (scene.FrameResult, error) {
	frame, err := l.tracker.PollFrame(ctx)
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return scene.FrameResult{}, err
	}
	if err != nil {
		failed := core.Frame{Index: l.scene.LastFrame() + 1, TrackerStatus: -1}
		res, rerr := l.scene.Reconcile(failed)
		return res, fmt.Errorf("poll frame: %w", errors.Join(err, rerr))
	}
	return l.scene.Reconcile(frame)
}

// Run steps every interval until the tracker is exhausted or ctx is done.
// Cancellation is observed between frames only. interval <= 0 runs frames
// back to back.
func (l *Loop) Run(ctx context.Context, interval time.Duration) (frames uint64, err error) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		default:
		}

		// Each pass runs to completion with a context that is never cancelled.
		_, err := l.Step(context.WithoutCancel(ctx))
		switch {
		case errors.Is(err, io.EOF):
			l.log.Info().Uint64("frames", frames).Msg("Tracker exhausted")
			return frames, nil
		case err != nil:
			frames++
			consecutive++
			l.log.Warn().Err(err).Int("consecutive", consecutive).Msg("Frame failed")
			if l.MaxConsecutiveErrors > 0 && consecutive >= l.MaxConsecutiveErrors {
				return frames, fmt.Errorf("giving up after %d failed frames: %w", consecutive, err)
			}
		default:
			frames++
			consecutive = 0
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return frames, ctx.Err()
			case <-tick:
			}
		}
	}
}
