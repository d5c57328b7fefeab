package projector

import (
	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// Bundle is the fixed entity set of one device: one playback entity, one
// remote entity and three sensors. Bundles are created and destroyed as a
// unit so the host never observes a half-built device.
type Bundle struct {
	Player  *Player
	Remote  *Remote
	Sensors []*Sensor

	byID map[string]EntityProjector
}

func NewBundle(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier, policy Policy) *Bundle {
	b := &Bundle{
		Player: NewPlayer(device, session, notify, policy),
		Remote: NewRemote(device, session, notify, policy),
		Sensors: []*Sensor{
			NewStateSensor(device, session, notify),
			NewChannelSensor(device, session, notify),
			NewProgramSensor(device, session, notify),
		},
	}

	b.byID = make(map[string]EntityProjector)
	for _, p := range b.all() {
		b.byID[p.Entity().ID] = p
	}
	return b
}

func (b *Bundle) all() []EntityProjector {
	projectors := []EntityProjector{b.Player, b.Remote}
	for _, s := range b.Sensors {
		projectors = append(projectors, s)
	}
	return projectors
}

func (b *Bundle) Entities() []model.Entity {
	var entities []model.Entity
	for _, p := range b.all() {
		entities = append(entities, p.Entity())
	}
	return entities
}

// Lookup returns the projector owning an entity id, nil when the id does not
// belong to this bundle.
func (b *Bundle) Lookup(entityID string) EntityProjector {
	return b.byID[entityID]
}

// PushAll pushes a fresh state update for every entity of the bundle.
func (b *Bundle) PushAll() {
	for _, p := range b.all() {
		p.PushUpdate()
	}
}

func (b *Bundle) Close() {
	for _, p := range b.all() {
		p.Close()
	}
}
