package models

// NetworkClass is the coarse connectivity state the scheduler gates on.
type NetworkClass string

const (
	NetworkNone     NetworkClass = "none"
	NetworkCellular NetworkClass = "cellular"
	NetworkWifi     NetworkClass = "wifi"
)

// ResourceState is a point-in-time snapshot of device resources. Snapshots may
// be up to one polling interval stale; scheduling decisions never block on a
// fresh read.
type ResourceState struct {
	BatteryPercent int          `json:"battery_percent"`
	Charging       bool         `json:"charging"`
	Network        NetworkClass `json:"network"`
}

// Online reports whether any network path is available.
func (r ResourceState) Online() bool {
	return r.Network != NetworkNone && r.Network != ""
}

// SyncSettings are the user-facing knobs applied to every task.
type SyncSettings struct {
	SyncOnWifiOnly       bool `json:"sync_on_wifi_only" yaml:"sync_on_wifi_only"`
	SyncOnChargingOnly   bool `json:"sync_on_charging_only" yaml:"sync_on_charging_only"`
	PauseOnLowBattery    bool `json:"pause_on_low_battery" yaml:"pause_on_low_battery"`
	LowBatteryThreshold  int  `json:"low_battery_threshold" yaml:"low_battery_threshold"`
	ReducedFrequencyMode bool `json:"reduced_frequency_mode" yaml:"reduced_frequency_mode"`
	MaxConcurrentSyncs   int  `json:"max_concurrent_syncs" yaml:"max_concurrent_syncs"`
}

// DefaultSyncSettings returns the settings applied when the config omits them.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		PauseOnLowBattery:   true,
		LowBatteryThreshold: DefaultLowBatteryThreshold,
		MaxConcurrentSyncs:  DefaultMaxConcurrentSyncs,
	}
}
