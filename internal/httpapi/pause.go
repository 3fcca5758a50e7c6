package httpapi

import (
	"context"
	"time"
)

// Pause blocks for d or until ctx is done, whichever comes first. It paces
// consecutive calls against rate limited APIs.
func Pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
