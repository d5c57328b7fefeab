package projector

import (
	"context"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// EntityProjector is one host-visible entity backed by a device: it projects
// backend snapshots into the entity's attribute vocabulary and translates
// host commands into backend calls.
type EntityProjector interface {
	Entity() model.Entity
	PushUpdate()
	HandleCommand(ctx context.Context, cmd string, params map[string]any) ports.StatusCode
	Close()
}

// Horizon boxes have no separate on/off primitives, only a Power toggle key.
// Turning on or off therefore checks the current run state first.

func powerOn(ctx context.Context, s ports.BackendSession, deviceID string) error {
	if s.State(deviceID).State == model.ConnRunning {
		return nil
	}
	return s.SendKey(ctx, deviceID, "Power")
}

func powerOff(ctx context.Context, s ports.BackendSession, deviceID string) error {
	if s.State(deviceID).State != model.ConnRunning {
		return nil
	}
	return s.SendKey(ctx, deviceID, "Power")
}
