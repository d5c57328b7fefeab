package model

import "time"

// Connectivity is the backend-reported run state of a set-top box.
type Connectivity string

const (
	ConnRunning        Connectivity = "ONLINE_RUNNING"
	ConnStandby        Connectivity = "ONLINE_STANDBY"
	ConnOffline        Connectivity = "OFFLINE"
	ConnOfflineStandby Connectivity = "OFFLINE_NETWORK_STANDBY"
	ConnUnknown        Connectivity = "unavailable"
)

// Offline reports whether the connectivity value is one of the offline
// variants.
func (c Connectivity) Offline() bool {
	return c == ConnOffline || c == ConnOfflineStandby
}

// Snapshot is a point-in-time read of one device's backend-reported state.
// Produced by the backend session, consumed by the projectors, never stored.
type Snapshot struct {
	State    Connectivity
	Channel  string
	Program  string
	ImageURL string

	// Start and End bound the running program; zero when unknown.
	Start time.Time
	End   time.Time

	// Position is the explicit playback position in seconds when the backend
	// supplies one; HasPosition distinguishes 0 from absent.
	Position    int
	HasPosition bool

	Paused bool
}

// UnavailableSnapshot is returned for device ids the backend does not know.
func UnavailableSnapshot() Snapshot {
	return Snapshot{State: ConnUnknown}
}
