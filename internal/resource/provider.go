package resource

import (
	"context"
	"sync"
	"time"

	"finsync/internal/models"

	"github.com/rs/zerolog"
)

// Provider exposes the current device resource snapshot. Reads must be
// non-blocking; staleness of up to one polling interval is acceptable.
type Provider interface {
	Current() models.ResourceState
}

// StaticProvider always reports a fixed state. Useful for tests and for hosts
// without battery or connectivity signals.
type StaticProvider struct {
	mu    sync.RWMutex
	state models.ResourceState
}

// NewStaticProvider builds a provider pinned to the given state.
func NewStaticProvider(state models.ResourceState) *StaticProvider {
	return &StaticProvider{state: state}
}

func (p *StaticProvider) Current() models.ResourceState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Set replaces the reported state.
func (p *StaticProvider) Set(state models.ResourceState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// SourceFunc reads the underlying platform state. It may block; the polling
// provider calls it off the scheduler's path.
type SourceFunc func(ctx context.Context) (models.ResourceState, error)

// PollingProvider samples a SourceFunc on a fixed interval and caches the
// latest snapshot. A failed read keeps the previous snapshot.
type PollingProvider struct {
	source   SourceFunc
	interval time.Duration
	logger   *zerolog.Logger

	mu    sync.RWMutex
	state models.ResourceState
}

// NewPollingProvider builds a provider that refreshes every interval once
// Start is called. The initial snapshot assumes wifi and a full battery so
// that scheduling is not blocked before the first poll completes.
func NewPollingProvider(source SourceFunc, interval time.Duration, logger *zerolog.Logger) *PollingProvider {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PollingProvider{
		source:   source,
		interval: interval,
		logger:   logger,
		state: models.ResourceState{
			BatteryPercent: 100,
			Network:        models.NetworkWifi,
		},
	}
}

func (p *PollingProvider) Current() models.ResourceState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Start polls until ctx is done. It refreshes once immediately.
func (p *PollingProvider) Start(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *PollingProvider) refresh(ctx context.Context) {
	state, err := p.source(ctx)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn().Err(err).Msg("resource state read failed, keeping previous snapshot")
		}
		return
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}
