package model

import "strings"

// EntityKind discriminates the fixed bundle exposed per device: one playback
// entity, one remote entity and three read-only sensors.
type EntityKind string

const (
	KindPlayer        EntityKind = "media_player"
	KindRemote        EntityKind = "remote"
	KindStateSensor   EntityKind = "sensor_state"
	KindChannelSensor EntityKind = "sensor_channel"
	KindProgramSensor EntityKind = "sensor_program"
)

const (
	remoteSuffix  = "_remote"
	stateSuffix   = "_state"
	channelSuffix = "_channel"
	programSuffix = "_program"
)

// Entity ids are deterministic functions of the device id, which makes reverse
// lookup possible without a persisted mapping table.

func PlayerEntityID(deviceID string) string  { return deviceID }
func RemoteEntityID(deviceID string) string  { return deviceID + remoteSuffix }
func StateSensorID(deviceID string) string   { return deviceID + stateSuffix }
func ChannelSensorID(deviceID string) string { return deviceID + channelSuffix }
func ProgramSensorID(deviceID string) string { return deviceID + programSuffix }

// ParseEntityID recovers the owning device id and the entity kind from an
// entity id. A bare id is the playback entity.
func ParseEntityID(entityID string) (deviceID string, kind EntityKind) {
	switch {
	case strings.HasSuffix(entityID, remoteSuffix):
		return strings.TrimSuffix(entityID, remoteSuffix), KindRemote
	case strings.HasSuffix(entityID, stateSuffix):
		return strings.TrimSuffix(entityID, stateSuffix), KindStateSensor
	case strings.HasSuffix(entityID, channelSuffix):
		return strings.TrimSuffix(entityID, channelSuffix), KindChannelSensor
	case strings.HasSuffix(entityID, programSuffix):
		return strings.TrimSuffix(entityID, programSuffix), KindProgramSensor
	default:
		return entityID, KindPlayer
	}
}

// Entity is the registration record pushed to the host.
type Entity struct {
	ID             string     `json:"entity_id"`
	Kind           EntityKind `json:"entity_type"`
	Name           string     `json:"name"`
	DeviceID       string     `json:"device_id"`
	Features       []string   `json:"features,omitempty"`
	SimpleCommands []string   `json:"simple_commands,omitempty"`
}

// PlayerState is the playback entity state vocabulary.
type PlayerState string

const (
	PlayerPlaying     PlayerState = "PLAYING"
	PlayerPaused      PlayerState = "PAUSED"
	PlayerStandby     PlayerState = "STANDBY"
	PlayerOn          PlayerState = "ON"
	PlayerOff         PlayerState = "OFF"
	PlayerUnavailable PlayerState = "UNAVAILABLE"
)

// PowerState is the remote entity state vocabulary.
type PowerState string

const (
	PowerOn          PowerState = "ON"
	PowerOff         PowerState = "OFF"
	PowerUnavailable PowerState = "UNAVAILABLE"
)

// SensorState is the sensor entity state vocabulary.
type SensorState string

const (
	SensorOn          SensorState = "ON"
	SensorUnavailable SensorState = "UNAVAILABLE"
)

// Attributes is the closed set of per-kind attribute payloads pushed to the
// host. The variant types replace the loosely-typed attribute dictionaries of
// earlier designs.
type Attributes interface {
	attributes()
}

type PlayerAttributes struct {
	State      PlayerState `json:"state"`
	Title      string      `json:"media_title"`
	Artist     string      `json:"media_artist"`
	ImageURL   string      `json:"media_image_url"`
	Position   int         `json:"media_position"`
	Duration   int         `json:"media_duration"`
	Muted      bool        `json:"muted"`
	Source     string      `json:"source"`
	SourceList []string    `json:"source_list,omitempty"`
}

type RemoteAttributes struct {
	State PowerState `json:"state"`
}

type SensorAttributes struct {
	State SensorState `json:"state"`
	Value string      `json:"value"`
}

func (PlayerAttributes) attributes() {}
func (RemoteAttributes) attributes() {}
func (SensorAttributes) attributes() {}
