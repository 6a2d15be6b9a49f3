package harvest

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkarlsen/biorxiv-harvester/internal/metrics"
)

// Pacer inserts randomized delay between fetches to avoid detectable request
// regularity, with an x/time/rate floor per host underneath the jitter.
type Pacer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	hosts    map[string]*rate.Limiter
	floorQPS float64
}

// NewPacer creates a Pacer. floorQPS <= 0 disables the per-host floor.
func NewPacer(floorQPS float64) *Pacer {
	return &Pacer{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		hosts:    make(map[string]*rate.Limiter),
		floorQPS: floorQPS,
	}
}

// Wait blocks for base + uniform(0, variation) and returns the actual delay.
// The wait is cut short when ctx is canceled.
func (p *Pacer) Wait(ctx context.Context, base, variation time.Duration) (time.Duration, error) {
	delay := base
	if variation > 0 {
		p.mu.Lock()
		delay += time.Duration(p.rng.Int63n(int64(variation) + 1))
		p.mu.Unlock()
	}
	if delay <= 0 {
		return 0, nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("pace wait canceled: %w", ctx.Err())
	case <-timer.C:
	}
	metrics.ObservePaceDelay(delay)
	return delay, nil
}

// WaitHost applies the per-host rate floor for rawURL, regardless of how the
// caller spaces its own delays.
func (p *Pacer) WaitHost(ctx context.Context, rawURL string) error {
	if p.floorQPS <= 0 {
		return nil
	}
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	p.mu.Lock()
	limiter, ok := p.hosts[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(p.floorQPS), 1)
		p.hosts[host] = limiter
	}
	p.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("host rate wait: %w", err)
	}
	return nil
}
