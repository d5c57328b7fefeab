package projector

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// Remote projects one device onto the remote-control entity.
type Remote struct {
	entityID string
	deviceID string
	name     string
	session  ports.BackendSession
	notify   ports.HostNotifier
	policy   Policy
	refresh  RefreshTask
}

func NewRemote(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier, policy Policy) *Remote {
	return &Remote{
		entityID: model.RemoteEntityID(device.DeviceID),
		deviceID: device.DeviceID,
		name:     device.Name + " Remote",
		session:  session,
		notify:   notify,
		policy:   policy,
	}
}

func (r *Remote) Entity() model.Entity {
	return model.Entity{
		ID:             r.entityID,
		Kind:           model.KindRemote,
		Name:           r.name,
		DeviceID:       r.deviceID,
		Features:       []string{"on_off", "toggle", "send_cmd"},
		SimpleCommands: SimpleCommands,
	}
}

func (r *Remote) PushUpdate() {
	snap := r.session.State(r.deviceID)
	r.notify.PushAttributes(r.entityID, model.RemoteAttributes{State: RemoteStateFor(snap.State)})
}

func (r *Remote) HandleCommand(ctx context.Context, cmd string, params map[string]any) ports.StatusCode {
	log.Debug().Str("entity", r.entityID).Str("cmd", cmd).Msg("remote command")

	var err error
	var delay time.Duration
	switch cmd {
	case CmdOn:
		err = powerOn(ctx, r.session, r.deviceID)
		delay = r.policy.PowerDelay
	case CmdOff:
		err = powerOff(ctx, r.session, r.deviceID)
		delay = r.policy.PowerDelay
	case CmdToggle:
		err = r.session.SendKey(ctx, r.deviceID, "Power")
		delay = r.policy.PowerDelay
	case CmdSendCmd:
		simple, ok := stringParam(params, "command")
		if !ok {
			log.Warn().Str("entity", r.entityID).Msg("send_cmd without command parameter")
			return ports.StatusBadRequest
		}
		var code ports.StatusCode
		code, delay, err = r.sendSimple(ctx, simple)
		if err == nil && code != ports.StatusOK {
			return code
		}
	default:
		log.Warn().Str("entity", r.entityID).Str("cmd", cmd).Msg("unsupported remote command")
		return ports.StatusNotImplemented
	}

	if err != nil {
		log.Error().Err(err).
			Str("entity", r.entityID).
			Str("cmd", cmd).
			Str("device", r.deviceID).
			Msg("remote command failed")
		return ports.StatusServerError
	}

	if delay > 0 {
		r.refresh.After(delay, r.PushUpdate)
	} else {
		r.PushUpdate()
	}
	return ports.StatusOK
}

func (r *Remote) sendSimple(ctx context.Context, cmd string) (ports.StatusCode, time.Duration, error) {
	switch cmd {
	case "POWER_ON":
		return ports.StatusOK, r.policy.PowerDelay, powerOn(ctx, r.session, r.deviceID)
	case "POWER_OFF":
		return ports.StatusOK, r.policy.PowerDelay, powerOff(ctx, r.session, r.deviceID)
	case "POWER_TOGGLE":
		return ports.StatusOK, r.policy.PowerDelay, r.session.SendKey(ctx, r.deviceID, "Power")
	case "PLAYPAUSE":
		return ports.StatusOK, 0, r.session.SendKey(ctx, r.deviceID, "MediaPlayPause")
	}

	key, ok := simpleCommandKeys[cmd]
	if !ok {
		log.Warn().Str("entity", r.entityID).Str("cmd", cmd).Msg("unknown simple command")
		return ports.StatusNotImplemented, 0, nil
	}

	var delay time.Duration
	if cmd == "CHANNEL_UP" || cmd == "CHANNEL_DOWN" {
		delay = r.policy.ChannelDelay
	}
	return ports.StatusOK, delay, r.session.SendKey(ctx, r.deviceID, key)
}

func (r *Remote) Close() {
	r.refresh.Stop()
}
