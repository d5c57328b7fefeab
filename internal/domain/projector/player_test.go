package projector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

func testPlayer() (*Player, *stubSession) {
	session := &stubSession{snap: model.Snapshot{State: model.ConnRunning}}
	device := &model.DeviceConfig{DeviceID: "box-1", Name: "Living Room"}
	return NewPlayer(device, session, newStubNotifier(), testPolicy()), session
}

func TestPowerCommandsAreStateConditional(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	// Already running: on is a no-op, off sends the toggle.
	assert.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdOn, nil))
	assert.Empty(t, session.sentKeys())

	assert.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdOff, nil))
	assert.Equal(t, []string{"Power"}, session.sentKeys())

	// In standby the relation flips.
	session.setState(model.Snapshot{State: model.ConnStandby})
	assert.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdOff, nil))
	assert.Equal(t, []string{"Power"}, session.sentKeys())

	assert.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdOn, nil))
	assert.Equal(t, []string{"Power", "Power"}, session.sentKeys())
}

func TestTransportCommands(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	for cmd, key := range map[string]string{
		CmdPlayPause:   "MediaPlayPause",
		CmdStop:        "MediaStop",
		CmdNext:        "ChannelUp",
		CmdPrevious:    "ChannelDown",
		CmdChannelUp:   "ChannelUp",
		CmdChannelDown: "ChannelDown",
		CmdFastForward: "MediaFastForward",
		CmdRewind:      "MediaRewind",
		CmdRecord:      "MediaRecord",
		CmdCursorUp:    "ArrowUp",
		CmdGuide:       "Guide",
		CmdBack:        "Escape",
	} {
		session.mu.Lock()
		session.keys = nil
		session.mu.Unlock()

		require.Equal(t, ports.StatusOK, p.HandleCommand(ctx, cmd, nil), cmd)
		assert.Equal(t, []string{key}, session.sentKeys(), cmd)
	}
}

func TestSeek(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	// JSON numbers decode as float64.
	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSeek, map[string]any{"media_position": float64(120)}))

	session.mu.Lock()
	assert.Equal(t, []int{120}, session.positions)
	session.mu.Unlock()

	assert.Equal(t, ports.StatusBadRequest, p.HandleCommand(ctx, CmdSeek, nil))
}

func TestSelectChannel(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSelectChannel, map[string]any{"number": "103"}))
	// Numeric payloads are tolerated too.
	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSelectChannel, map[string]any{"number": float64(5)}))

	session.mu.Lock()
	assert.Equal(t, []string{"103", "5"}, session.entered)
	session.mu.Unlock()

	assert.Equal(t, ports.StatusBadRequest, p.HandleCommand(ctx, CmdSelectChannel, nil))
}

func TestSelectSourceRouting(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	// External input: settings screen.
	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSelectSource, map[string]any{"source": "HDMI 1"}))
	assert.Equal(t, []string{"Settings"}, session.sentKeys())

	// Streaming app: top menu, capability gap is surfaced not swallowed.
	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSelectSource, map[string]any{"source": "Netflix"}))
	assert.Equal(t, []string{"Settings", "Menu"}, session.sentKeys())

	// Anything else is a channel name.
	require.Equal(t, ports.StatusOK,
		p.HandleCommand(ctx, CmdSelectSource, map[string]any{"source": "BBC One"}))
	session.mu.Lock()
	assert.Equal(t, []string{"BBC One"}, session.byName)
	session.mu.Unlock()

	assert.Equal(t, ports.StatusBadRequest, p.HandleCommand(ctx, CmdSelectSource, nil))
}

func TestUnsupportedCommand(t *testing.T) {
	p, _ := testPlayer()
	defer p.Close()

	assert.Equal(t, ports.StatusNotImplemented,
		p.HandleCommand(context.Background(), "eject", nil))
}

func TestTransportFailureBecomesServerError(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()

	session.mu.Lock()
	session.err = model.ErrTransport
	session.mu.Unlock()

	assert.Equal(t, ports.StatusServerError,
		p.HandleCommand(context.Background(), CmdPlayPause, nil))
}

func TestPowerFailureSkipsDelayedRefresh(t *testing.T) {
	session := &stubSession{snap: model.Snapshot{State: model.ConnStandby}}
	notify := newStubNotifier()
	device := &model.DeviceConfig{DeviceID: "box-1", Name: "Living Room"}
	p := NewPlayer(device, session, notify, testPolicy())
	defer p.Close()
	ctx := context.Background()

	session.mu.Lock()
	session.err = model.ErrTransport
	session.mu.Unlock()

	assert.Equal(t, ports.StatusServerError, p.HandleCommand(ctx, CmdOn, nil))
	assert.Equal(t, ports.StatusServerError, p.HandleCommand(ctx, CmdToggle, nil))

	// Leave time for a wrongly queued refresh to fire.
	time.Sleep(10 * testPolicy().PowerDelay)
	notify.mu.Lock()
	defer notify.mu.Unlock()
	assert.Empty(t, notify.last, "failed power command must not schedule a refresh push")
}

func TestMuteIsLocalState(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()
	ctx := context.Background()

	require.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdMuteToggle, nil))
	assert.Equal(t, []string{"VolumeMute"}, session.sentKeys())

	attrs := p.project(session.State("box-1"), time.Now())
	assert.True(t, attrs.Muted)

	require.Equal(t, ports.StatusOK, p.HandleCommand(ctx, CmdMuteToggle, nil))
	attrs = p.project(session.State("box-1"), time.Now())
	assert.False(t, attrs.Muted)
}

func TestSourceListAppearsInAttributes(t *testing.T) {
	p, session := testPlayer()
	defer p.Close()

	p.SetSourceList([]string{"NPO 1", "BBC One"})
	attrs := p.project(session.State("box-1"), time.Now())
	assert.Equal(t, []string{"NPO 1", "BBC One"}, attrs.SourceList)
}
