package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"finsync/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(models.ResourceState{BatteryPercent: 80, Network: models.NetworkWifi})
	assert.Equal(t, 80, p.Current().BatteryPercent)

	p.Set(models.ResourceState{BatteryPercent: 15, Network: models.NetworkNone})
	assert.Equal(t, 15, p.Current().BatteryPercent)
	assert.False(t, p.Current().Online())
}

func TestPollingProviderInitialSnapshot(t *testing.T) {
	p := NewPollingProvider(nil, time.Minute, nil)
	state := p.Current()
	assert.Equal(t, 100, state.BatteryPercent)
	assert.Equal(t, models.NetworkWifi, state.Network)
}

func TestPollingProviderRefreshes(t *testing.T) {
	var reads atomic.Int32
	source := func(ctx context.Context) (models.ResourceState, error) {
		reads.Add(1)
		return models.ResourceState{BatteryPercent: 42, Charging: true, Network: models.NetworkCellular}, nil
	}

	p := NewPollingProvider(source, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	assert.Eventually(t, func() bool {
		return p.Current().BatteryPercent == 42
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, p.Current().Charging)
}

func TestPollingProviderKeepsSnapshotOnError(t *testing.T) {
	var fail atomic.Bool
	source := func(ctx context.Context) (models.ResourceState, error) {
		if fail.Load() {
			return models.ResourceState{}, errors.New("sensor unavailable")
		}
		return models.ResourceState{BatteryPercent: 55, Network: models.NetworkWifi}, nil
	}

	p := NewPollingProvider(source, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	assert.Eventually(t, func() bool {
		return p.Current().BatteryPercent == 55
	}, 2*time.Second, 5*time.Millisecond)

	fail.Store(true)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 55, p.Current().BatteryPercent, "failed reads must not clear the snapshot")
}
