package client

import (
	"context"
	"sync"
	"time"
)

// healthChecker moves the client back to its primary endpoint once the
// primary answers again. It runs until stop is called.
type healthChecker struct {
	client *Client
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *Client) startHealthChecker() {
	ctx, cancel := context.WithCancel(context.Background())
	h := &healthChecker{client: c, cancel: cancel, done: make(chan struct{})}
	c.healthChecker = h
	go h.run(ctx, c.failoverConfig.HealthCheckInterval)
}

func (h *healthChecker) run(ctx context.Context, every time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkAndRestore(ctx)
		}
	}
}

// stop cancels any probe in flight and waits for the loop to exit.
func (h *healthChecker) stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

func (h *healthChecker) checkAndRestore(ctx context.Context) {
	c := h.client
	c.mu.RLock()
	onPrimary := c.currentURL == c.primaryURL
	c.mu.RUnlock()
	if onPrimary {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.failoverConfig.Timeout)
	defer cancel()
	if !c.isEndpointHealthy(probeCtx, c.primaryURL) {
		return
	}
	c.mu.Lock()
	c.currentURL = c.primaryURL
	c.mu.Unlock()
	log.Info().Str("url", c.primaryURL).Msg("Restored primary endpoint")
}
