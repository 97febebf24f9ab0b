package launcher

import (
	"context"
	"fmt"
	"time"
)

const readyPollInterval = 50 * time.Millisecond

// waitReady polls probe until it reports ready, the process exits or timeout elapses
func waitReady(ctx context.Context, p *Process, timeout time.Duration, probe func(ctx context.Context) bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		if probe(ctx) {
			return nil
		}
		select {
		case <-p.Exited():
			return p.earlyExitError()
		case <-ctx.Done():
			return fmt.Errorf("%v not ready after %v: %w", p.Name(), timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
