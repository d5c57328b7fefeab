package projector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

var playerFeatures = []string{
	"on_off", "toggle", "volume_up_down", "mute_toggle",
	"play_pause", "stop", "next", "previous", "fast_forward", "rewind",
	"record", "seek", "channel_switcher", "select_source", "dpad",
	"home", "menu", "context_menu", "guide", "info",
	"media_title", "media_image_url", "media_position", "media_duration",
}

// Player projects one device onto the playback entity.
type Player struct {
	entityID string
	deviceID string
	name     string
	session  ports.BackendSession
	notify   ports.HostNotifier
	policy   Policy
	refresh  RefreshTask

	mu         sync.Mutex
	muted      bool
	source     string
	sourceList []string
}

func NewPlayer(device *model.DeviceConfig, session ports.BackendSession, notify ports.HostNotifier, policy Policy) *Player {
	return &Player{
		entityID: model.PlayerEntityID(device.DeviceID),
		deviceID: device.DeviceID,
		name:     device.Name,
		session:  session,
		notify:   notify,
		policy:   policy,
	}
}

func (p *Player) Entity() model.Entity {
	return model.Entity{
		ID:       p.entityID,
		Kind:     model.KindPlayer,
		Name:     p.name,
		DeviceID: p.deviceID,
		Features: playerFeatures,
	}
}

// SetSourceList replaces the selectable source list, typically the channel
// catalog resolved after connect.
func (p *Player) SetSourceList(list []string) {
	p.mu.Lock()
	p.sourceList = list
	p.mu.Unlock()
}

func (p *Player) PushUpdate() {
	attrs := p.project(p.session.State(p.deviceID), time.Now())
	p.notify.PushAttributes(p.entityID, attrs)
}

func (p *Player) project(snap model.Snapshot, now time.Time) model.PlayerAttributes {
	title, artist := TitleArtist(snap)
	position, duration := PositionDuration(snap, now)

	p.mu.Lock()
	muted, source, list := p.muted, p.source, p.sourceList
	p.mu.Unlock()

	return model.PlayerAttributes{
		State:      PlayerStateFor(snap.State, snap.Paused),
		Title:      title,
		Artist:     artist,
		ImageURL:   CacheBust(snap.ImageURL, now),
		Position:   position,
		Duration:   duration,
		Muted:      muted,
		Source:     source,
		SourceList: list,
	}
}

func (p *Player) HandleCommand(ctx context.Context, cmd string, params map[string]any) ports.StatusCode {
	log.Debug().Str("entity", p.entityID).Str("cmd", cmd).Msg("media player command")

	var err error
	switch cmd {
	case CmdOn:
		if err = powerOn(ctx, p.session, p.deviceID); err == nil {
			p.refreshAfterPower(model.ConnRunning)
		}
	case CmdOff:
		// Power off is standby: Horizon boxes never truly turn off.
		if err = powerOff(ctx, p.session, p.deviceID); err == nil {
			p.refreshAfterPower(model.ConnStandby)
		}
	case CmdToggle:
		if err = p.session.SendKey(ctx, p.deviceID, "Power"); err == nil {
			p.refresh.After(p.policy.PowerDelay, p.PushUpdate)
		}
	case CmdPlayPause:
		err = p.session.SendKey(ctx, p.deviceID, "MediaPlayPause")
		defer p.PushUpdate()
	case CmdStop:
		err = p.session.SendKey(ctx, p.deviceID, "MediaStop")
		defer p.PushUpdate()
	case CmdNext, CmdChannelUp:
		err = p.session.SendKey(ctx, p.deviceID, "ChannelUp")
		p.refresh.After(p.policy.ChannelDelay, p.PushUpdate)
	case CmdPrevious, CmdChannelDown:
		err = p.session.SendKey(ctx, p.deviceID, "ChannelDown")
		p.refresh.After(p.policy.ChannelDelay, p.PushUpdate)
	case CmdFastForward:
		err = p.session.SendKey(ctx, p.deviceID, "MediaFastForward")
		defer p.PushUpdate()
	case CmdRewind:
		err = p.session.SendKey(ctx, p.deviceID, "MediaRewind")
		defer p.PushUpdate()
	case CmdRecord:
		err = p.session.SendKey(ctx, p.deviceID, "MediaRecord")
		defer p.PushUpdate()
	case CmdSeek:
		seconds, ok := intParam(params, "media_position")
		if !ok {
			return ports.StatusBadRequest
		}
		err = p.session.SetPosition(ctx, p.deviceID, seconds)
		defer p.PushUpdate()
	case CmdMuteToggle:
		err = p.session.SendKey(ctx, p.deviceID, "VolumeMute")
		p.mu.Lock()
		p.muted = !p.muted
		p.mu.Unlock()
		defer p.PushUpdate()
	case CmdSelectChannel:
		number, ok := stringParam(params, "number")
		if !ok {
			return ports.StatusBadRequest
		}
		err = p.session.EnterChannel(ctx, p.deviceID, number)
		p.refresh.After(p.policy.ChannelDelay, p.PushUpdate)
	case CmdSelectSource:
		source, ok := stringParam(params, "source")
		if !ok {
			log.Warn().Str("entity", p.entityID).Msg("select_source without source parameter")
			return ports.StatusBadRequest
		}
		err = p.selectSource(ctx, source)
		defer p.PushUpdate()
	default:
		if key, ok := playerKeys[cmd]; ok {
			err = p.session.SendKey(ctx, p.deviceID, key)
			defer p.PushUpdate()
			break
		}
		log.Warn().Str("entity", p.entityID).Str("cmd", cmd).Msg("unsupported media player command")
		return ports.StatusNotImplemented
	}

	if err != nil {
		log.Error().Err(err).
			Str("entity", p.entityID).
			Str("cmd", cmd).
			Str("device", p.deviceID).
			Msg("media player command failed")
		return ports.StatusServerError
	}
	return ports.StatusOK
}

func (p *Player) selectSource(ctx context.Context, source string) error {
	switch {
	case strings.HasPrefix(source, "HDMI") || strings.HasPrefix(source, "AV"):
		// External inputs are only reachable through the settings screen.
		if err := p.session.SendKey(ctx, p.deviceID, "Settings"); err != nil {
			return err
		}
	case streamingApps[source]:
		log.Warn().Str("source", source).
			Msg("no app deep-link support, opening top menu for manual navigation")
		if err := p.session.SendKey(ctx, p.deviceID, "Menu"); err != nil {
			return err
		}
	default:
		if err := p.session.SetChannelByName(ctx, p.deviceID, source); err != nil {
			return err
		}
		p.refresh.After(p.policy.ChannelDelay, p.PushUpdate)
	}

	p.mu.Lock()
	p.source = source
	p.mu.Unlock()
	return nil
}

// refreshAfterPower schedules the post-command refresh according to the
// verification policy: blind delay or poll-until-confirmed.
func (p *Player) refreshAfterPower(expect model.Connectivity) {
	if p.policy.Mode == VerifyPoll {
		p.refresh.Poll(p.policy.PollInterval, p.policy.PollTimeout,
			func() bool { return p.session.State(p.deviceID).State == expect },
			p.PushUpdate)
		return
	}
	p.refresh.After(p.policy.PowerDelay, p.PushUpdate)
}

func (p *Player) Close() {
	p.refresh.Stop()
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return fmt.Sprintf("%.0f", t), true
	default:
		return "", false
	}
}

func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}
