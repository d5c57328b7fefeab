package projector

import (
	"context"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// Sensor is one of the read-only state sensors of a device bundle:
// connectivity, current channel or current program.
type Sensor struct {
	entityID string
	deviceID string
	name     string
	kind     model.EntityKind
	session  ports.BackendSession
	notify   ports.HostNotifier
}

func NewStateSensor(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier) *Sensor {
	return &Sensor{
		entityID: model.StateSensorID(device.DeviceID),
		deviceID: device.DeviceID,
		name:     device.Name + " State",
		kind:     model.KindStateSensor,
		session:  session,
		notify:   notify,
	}
}

func NewChannelSensor(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier) *Sensor {
	return &Sensor{
		entityID: model.ChannelSensorID(device.DeviceID),
		deviceID: device.DeviceID,
		name:     device.Name + " Channel",
		kind:     model.KindChannelSensor,
		session:  session,
		notify:   notify,
	}
}

func NewProgramSensor(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier) *Sensor {
	return &Sensor{
		entityID: model.ProgramSensorID(device.DeviceID),
		deviceID: device.DeviceID,
		name:     device.Name + " Program",
		kind:     model.KindProgramSensor,
		session:  session,
		notify:   notify,
	}
}

func (s *Sensor) Entity() model.Entity {
	return model.Entity{
		ID:       s.entityID,
		Kind:     s.kind,
		Name:     s.name,
		DeviceID: s.deviceID,
	}
}

func (s *Sensor) PushUpdate() {
	snap := s.session.State(s.deviceID)
	s.notify.PushAttributes(s.entityID, s.project(snap))
}

func (s *Sensor) project(snap model.Snapshot) model.SensorAttributes {
	state := SensorStateFor(snap.State)

	var value string
	switch s.kind {
	case model.KindStateSensor:
		value = string(snap.State)
		if state == model.SensorUnavailable {
			value = "Unknown"
		}
	case model.KindChannelSensor:
		value = snap.Channel
		if value == "" {
			value = "No Channel"
		}
	case model.KindProgramSensor:
		value = snap.Program
		if value == "" {
			value = "No Program"
		}
	}

	return model.SensorAttributes{State: state, Value: value}
}

// Sensors are read-only.
func (s *Sensor) HandleCommand(ctx context.Context, cmd string, params map[string]any) ports.StatusCode {
	return ports.StatusNotImplemented
}

func (s *Sensor) Close() {}
