package model

import "errors"

var (
	// ErrAuthentication indicates bad credentials or an expired token with no
	// refresh path. Fatal to setup, surfaced as connection-refused.
	ErrAuthentication = errors.New("authentication failed")

	// ErrChannelNotReady indicates the backend is reachable but the push-state
	// channel reported no device state within the readiness window. Retryable.
	ErrChannelNotReady = errors.New("push channel not ready")

	// ErrDeviceUnresolvable indicates a configured device id is absent from the
	// backend's current device list.
	ErrDeviceUnresolvable = errors.New("device not in backend device list")

	// ErrTransport indicates an individual backend call failed.
	ErrTransport = errors.New("backend transport failure")

	// ErrPersistence indicates a configuration write failed. The caller keeps
	// running with the in-memory state.
	ErrPersistence = errors.New("configuration persistence failure")

	// ErrNotFound indicates discovery produced zero usable devices.
	ErrNotFound = errors.New("no usable devices found")
)
