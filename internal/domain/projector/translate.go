package projector

import (
	"fmt"
	"strings"
	"time"

	"horizon-bridge/internal/domain/model"
)

// PlayerStateFor maps backend connectivity to the playback entity state.
// The mapping is total: every connectivity value has a defined output.
func PlayerStateFor(c model.Connectivity, paused bool) model.PlayerState {
	switch {
	case c == model.ConnRunning && paused:
		return model.PlayerPaused
	case c == model.ConnRunning:
		return model.PlayerPlaying
	case c == model.ConnStandby:
		return model.PlayerStandby
	case c.Offline():
		return model.PlayerOff
	default:
		return model.PlayerUnavailable
	}
}

// RemoteStateFor maps backend connectivity to the remote entity state.
func RemoteStateFor(c model.Connectivity) model.PowerState {
	switch {
	case c == model.ConnRunning:
		return model.PowerOn
	case c == model.ConnStandby || c.Offline():
		return model.PowerOff
	default:
		return model.PowerUnavailable
	}
}

// SensorStateFor maps backend connectivity to the sensor entity state. Any
// reported connectivity keeps the sensor on; only unknown makes it
// unavailable.
func SensorStateFor(c model.Connectivity) model.SensorState {
	switch c {
	case model.ConnRunning, model.ConnStandby, model.ConnOffline, model.ConnOfflineStandby:
		return model.SensorOn
	default:
		return model.SensorUnavailable
	}
}

// TitleArtist composes the playback entity title line. Program title wins,
// with the channel as the artist/subtitle; a bare channel becomes the title.
func TitleArtist(snap model.Snapshot) (title, artist string) {
	switch {
	case snap.Program != "":
		return snap.Program, snap.Channel
	case snap.Channel != "":
		return snap.Channel, ""
	default:
		return "", ""
	}
}

// CacheBust rewrites an artwork URL with a monotonically increasing query
// parameter. The host display layer caches by URL and the backend reuses the
// same URL across programs.
func CacheBust(url string, now time.Time) string {
	if url == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%d", url, sep, now.UnixMilli())
}

// PositionDuration derives playback position and duration in seconds. An
// explicit backend position wins; otherwise the position is derived from the
// program start time and clamped to [0, duration].
func PositionDuration(snap model.Snapshot, now time.Time) (position, duration int) {
	if !snap.Start.IsZero() && !snap.End.IsZero() {
		duration = int(snap.End.Sub(snap.Start).Seconds())
		if duration < 0 {
			duration = 0
		}
	}

	switch {
	case snap.HasPosition:
		position = snap.Position
	case !snap.Start.IsZero() && !snap.End.IsZero():
		position = int(now.Sub(snap.Start).Seconds())
	default:
		return 0, 0
	}

	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration {
		position = duration
	}
	return position, duration
}
