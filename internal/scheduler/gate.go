package scheduler

import (
	"time"

	"finsync/internal/models"
)

// shouldExecute decides whether a task may run right now given the resource
// snapshot and global settings. A false answer is a gate, never a failure.
func shouldExecute(task models.SyncTask, state models.ResourceState, settings models.SyncSettings) (bool, string) {
	if settings.PauseOnLowBattery && !state.Charging && state.BatteryPercent <= settings.LowBatteryThreshold {
		return false, "low_battery"
	}
	if !state.Online() {
		return false, "offline"
	}
	if (task.RequiresWifi || settings.SyncOnWifiOnly) && state.Network != models.NetworkWifi {
		return false, "wifi_required"
	}
	if (task.RequiresCharging || settings.SyncOnChargingOnly) && !state.Charging {
		return false, "charging_required"
	}
	return true, ""
}

// effectiveInterval applies the adaptive-interval algorithm:
// base * reducedFrequencyFactor * categoryMultiplier.
func effectiveInterval(task models.SyncTask, settings models.SyncSettings) time.Duration {
	base := task.Interval
	if base <= 0 {
		base = models.DefaultInterval(task.Category)
	}

	factor := 1.0
	if settings.ReducedFrequencyMode {
		factor = models.ReducedFrequencyFactor
	}

	return time.Duration(float64(base) * factor * models.CategoryMultiplier(task.Category))
}
