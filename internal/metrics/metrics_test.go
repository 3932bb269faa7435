package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveSyncRun("balances", "success", 120*time.Millisecond)
		IncRetry("transactions")
		IncConflict("balance_mismatch", "use_remote")
		SetActiveTasks(6)
		SetInFlight(2)
	})
}
