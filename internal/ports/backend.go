package ports

import (
	"context"

	"horizon-bridge/internal/domain/model"
)

// BackendDevice is one entry of the backend's current device list.
type BackendDevice struct {
	ID    string
	Name  string
	Model string
	State model.Connectivity
}

// Channel is one entry of the backend channel catalog.
type Channel struct {
	ID   string
	Name string
}

// StateChange is a push notification from the backend state channel.
type StateChange struct {
	DeviceID string
	Snapshot model.Snapshot
}

// BackendSession is one authenticated connection to the vendor cloud plus its
// push-state channel. A session is never reconnected in place: callers create
// a fresh instance through a SessionFactory.
type BackendSession interface {
	// Connect authenticates, opens the push-state channel and blocks until at
	// least one configured device has reported state or the readiness window
	// elapses. Returns model.ErrChannelNotReady when no device reported at all.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Idempotent.
	Disconnect()

	Connected() bool

	Devices(ctx context.Context) ([]BackendDevice, error)

	// Channels returns the account channel catalog, used to populate the
	// playback entity source list.
	Channels(ctx context.Context) ([]Channel, error)

	// State returns a snapshot for the device, an unavailable snapshot when
	// the device is unknown. Never errors.
	State(deviceID string) model.Snapshot

	SendKey(ctx context.Context, deviceID, key string) error

	// EnterChannel issues the digit key sequence for a channel number followed
	// by a confirmation key. The backend has no set-channel primitive.
	EnterChannel(ctx context.Context, deviceID, number string) error

	// SetChannelByName tunes to a named channel via the backend catalog.
	SetChannelByName(ctx context.Context, deviceID, name string) error

	// SetPosition seeks within the running recording or replay.
	SetPosition(ctx context.Context, deviceID string, seconds int) error

	// StateChanges is the single-consumer push feed drained by the lifecycle
	// controller. Closed on Disconnect.
	StateChanges() <-chan StateChange

	// CurrentSecret returns the secret the auth layer currently holds, which
	// may differ from the configured one after a token rotation.
	CurrentSecret() string
}

// SessionFactory creates a fresh BackendSession for an account.
type SessionFactory func(account *model.AccountConfig) BackendSession
