package horizon

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"horizon-bridge/internal/domain/model"
)

// statusMessage is one device status publication on the broker. The playing
// block is absent while the box is in standby.
type statusMessage struct {
	Source     string       `json:"source"`
	DeviceType string       `json:"deviceType"`
	State      string       `json:"state"`
	Playing    *playingInfo `json:"status"`
}

type playingInfo struct {
	Channel  string   `json:"channelTitle"`
	Title    string   `json:"title"`
	Image    string   `json:"image"`
	Speed    *float64 `json:"speed"`
	Position *int     `json:"position"`
	Start    flexTime `json:"startTime"`
	End      flexTime `json:"endTime"`
}

// flexTime tolerates the timestamp shapes seen on the wire: epoch seconds,
// epoch milliseconds and RFC 3339 text.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Millisecond epochs are 13 digits until the year 33658.
		if epoch > 1e12 {
			t.Time = time.UnixMilli(epoch)
		} else {
			t.Time = time.Unix(epoch, 0)
		}
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}

// parseConnectivity maps the wire state to the known vocabulary; anything
// else becomes unavailable rather than leaking through.
func parseConnectivity(state string) model.Connectivity {
	switch model.Connectivity(state) {
	case model.ConnRunning, model.ConnStandby, model.ConnOffline, model.ConnOfflineStandby:
		return model.Connectivity(state)
	default:
		return model.ConnUnknown
	}
}

// snapshot converts a status message into the session-independent snapshot
// consumed by the projectors.
func (m *statusMessage) snapshot() model.Snapshot {
	snap := model.Snapshot{State: parseConnectivity(m.State)}
	if m.Playing == nil {
		return snap
	}

	snap.Channel = m.Playing.Channel
	snap.Program = m.Playing.Title
	snap.ImageURL = m.Playing.Image
	snap.Start = m.Playing.Start.Time
	snap.End = m.Playing.End.Time
	if m.Playing.Position != nil {
		snap.Position = *m.Playing.Position
		snap.HasPosition = true
	}
	if m.Playing.Speed != nil {
		snap.Paused = *m.Playing.Speed == 0
	}
	return snap
}

func parseStatus(payload []byte) (*statusMessage, error) {
	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
