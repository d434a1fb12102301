package progress

import (
	"context"
	"time"
)

// pollInterval mirrors the original implementation's 2-second poller tick.
const pollInterval = 2 * time.Second

// Poll runs a background refresh loop for runID until its status is
// terminal or ctx is cancelled. It is meant to be launched with `go`
// alongside the pipeline that drives the run.
func (r *Registry) Poll(ctx context.Context, runID int64) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, ok := r.Get(runID)
		if !ok || !snap.Status.running() {
			return
		}
		if err := r.Refresh(ctx, runID); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
