package ports

import "horizon-bridge/internal/domain/model"

// DriverState is the integration-level state reported to the host.
type DriverState string

const (
	DriverConnected    DriverState = "CONNECTED"
	DriverDisconnected DriverState = "DISCONNECTED"
	DriverError        DriverState = "ERROR"
)

// HostNotifier pushes attribute updates and driver state to the connected
// remote host. Implemented by the host transport adapter.
type HostNotifier interface {
	PushAttributes(entityID string, attrs model.Attributes)
	SetDriverState(state DriverState)
}
