package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

type fakeSession struct {
	mu         sync.Mutex
	connectErr error
	connected  bool
	devices    []ports.BackendDevice
	channels   []ports.Channel
	states     map[string]model.Snapshot
	secret     string
	keys       []string
	changes    chan ports.StateChange
	closed     bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		states:  make(map[string]model.Snapshot),
		changes: make(chan ports.StateChange, 16),
	}
}

func (f *fakeSession) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	if !f.closed {
		f.closed = true
		close(f.changes)
	}
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) Devices(ctx context.Context) ([]ports.BackendDevice, error) {
	return f.devices, nil
}

func (f *fakeSession) Channels(ctx context.Context) ([]ports.Channel, error) {
	return f.channels, nil
}

func (f *fakeSession) State(deviceID string) model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.states[deviceID]; ok {
		return snap
	}
	return model.UnavailableSnapshot()
}

func (f *fakeSession) SendKey(ctx context.Context, deviceID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeSession) EnterChannel(ctx context.Context, deviceID, number string) error {
	return nil
}

func (f *fakeSession) SetChannelByName(ctx context.Context, deviceID, name string) error {
	return nil
}

func (f *fakeSession) SetPosition(ctx context.Context, deviceID string, seconds int) error {
	return nil
}

func (f *fakeSession) StateChanges() <-chan ports.StateChange { return f.changes }

func (f *fakeSession) CurrentSecret() string { return f.secret }

type fakeNotifier struct {
	mu     sync.Mutex
	pushes map[string]int
	last   map[string]model.Attributes
	states []ports.DriverState
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		pushes: make(map[string]int),
		last:   make(map[string]model.Attributes),
	}
}

func (f *fakeNotifier) PushAttributes(entityID string, attrs model.Attributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[entityID]++
	f.last[entityID] = attrs
}

func (f *fakeNotifier) SetDriverState(state ports.DriverState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeNotifier) pushCount(entityID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes[entityID]
}

func (f *fakeNotifier) lastState() ports.DriverState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return ""
	}
	return f.states[len(f.states)-1]
}

type memoryRepo struct {
	mu    sync.Mutex
	cfg   *model.Config
	saves int
}

func (r *memoryRepo) Load(ctx context.Context) (*model.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return &model.Config{}, nil
	}
	return r.cfg, nil
}

func (r *memoryRepo) Save(ctx context.Context, cfg *model.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.saves++
	return nil
}

func (r *memoryRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func testAccount() *model.AccountConfig {
	return &model.AccountConfig{
		Identifier: model.AccountID("ziggo", "user@example.com"),
		Name:       "user@example.com",
		Provider:   "ziggo",
		Username:   "user@example.com",
		Secret:     "hunter2hunter2",
		Devices: []*model.DeviceConfig{
			{DeviceID: "box-1", Name: "Living Room"},
		},
	}
}

func testController(t *testing.T, account *model.AccountConfig) (*Controller, *fakeSession, *fakeNotifier, *memoryRepo) {
	t.Helper()

	repo := &memoryRepo{cfg: &model.Config{Accounts: []*model.AccountConfig{account}}}
	store := NewCredentialStore(repo)
	require.NoError(t, store.Reload(context.Background()))

	session := newFakeSession()
	session.devices = []ports.BackendDevice{{ID: "box-1", Name: "Living Room", State: model.ConnRunning}}
	session.states["box-1"] = model.Snapshot{State: model.ConnRunning, Channel: "NPO 1"}

	notify := newFakeNotifier()
	ctrl := NewController(store, func(a *model.AccountConfig) ports.BackendSession { return session }, notify)
	ctrl.RefreshInterval = time.Hour
	return ctrl, session, notify, repo
}

func TestInitializeCreatesBundle(t *testing.T) {
	ctrl, session, _, _ := testController(t, testAccount())
	ctrl.Start(context.Background())
	defer ctrl.Close()

	require.NoError(t, ctrl.Initialize(context.Background()))
	assert.True(t, ctrl.Ready())
	assert.True(t, session.Connected())

	entities := ctrl.AvailableEntities()
	require.Len(t, entities, 5)

	ids := make(map[string]bool)
	for _, e := range entities {
		ids[e.ID] = true
	}
	assert.True(t, ids["box-1"])
	assert.True(t, ids["box-1_remote"])
	assert.True(t, ids["box-1_state"])
	assert.True(t, ids["box-1_channel"])
	assert.True(t, ids["box-1_program"])
}

func TestInitializeIsIdempotent(t *testing.T) {
	account := testAccount()
	repo := &memoryRepo{cfg: &model.Config{Accounts: []*model.AccountConfig{account}}}
	store := NewCredentialStore(repo)
	require.NoError(t, store.Reload(context.Background()))

	var factoryCalls int
	var mu sync.Mutex
	factory := func(a *model.AccountConfig) ports.BackendSession {
		mu.Lock()
		factoryCalls++
		mu.Unlock()
		s := newFakeSession()
		s.devices = []ports.BackendDevice{{ID: "box-1", Name: "Living Room"}}
		return s
	}

	ctrl := NewController(store, factory, newFakeNotifier())
	ctrl.Start(context.Background())
	defer ctrl.Close()

	require.NoError(t, ctrl.Initialize(context.Background()))
	require.NoError(t, ctrl.Initialize(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, factoryCalls, "ready controller must not rebuild entities")
}

func TestSubscribeBeforeInitializeRecovers(t *testing.T) {
	ctrl, _, notify, _ := testController(t, testAccount())
	ctrl.ctx, ctrl.cancel = context.WithCancel(context.Background())
	defer ctrl.Close()

	// The host races ahead of initialization. Subscribe must trigger one
	// synchronous recovery pass instead of answering from an empty registry.
	ctrl.Subscribe(context.Background(), []string{"box-1", "box-1_remote"})

	assert.True(t, ctrl.Ready())
	assert.Equal(t, 1, notify.pushCount("box-1"))
	assert.Equal(t, 1, notify.pushCount("box-1_remote"))
	assert.Equal(t, 0, notify.pushCount("box-1_state"), "unsubscribed entities get no push")

	// Subscribing again pushes a fresh update but never duplicates entities.
	ctrl.Subscribe(context.Background(), []string{"box-1"})
	assert.Equal(t, 2, notify.pushCount("box-1"))
	assert.Len(t, ctrl.AvailableEntities(), 5)
}

func TestSubscribeUnknownEntity(t *testing.T) {
	ctrl, _, notify, _ := testController(t, testAccount())
	ctrl.Start(context.Background())
	defer ctrl.Close()
	require.NoError(t, ctrl.Initialize(context.Background()))

	ctrl.Subscribe(context.Background(), []string{"nope"})
	assert.Equal(t, 0, notify.pushCount("nope"))
}

func TestUnresolvableDeviceIsSkipped(t *testing.T) {
	account := testAccount()
	account.AddDevice("box-gone", "Attic")

	ctrl, _, _, _ := testController(t, account)
	ctrl.Start(context.Background())
	defer ctrl.Close()

	require.NoError(t, ctrl.Initialize(context.Background()))
	assert.True(t, ctrl.Ready())

	// Only the resolvable device produces entities.
	assert.Len(t, ctrl.AvailableEntities(), 5)
}

func TestHandleCommandRouting(t *testing.T) {
	ctrl, session, _, _ := testController(t, testAccount())
	ctrl.Start(context.Background())
	defer ctrl.Close()
	require.NoError(t, ctrl.Initialize(context.Background()))

	code := ctrl.HandleCommand(context.Background(), "box-1_remote", "send_cmd",
		map[string]any{"command": "CURSOR_UP"})
	assert.Equal(t, ports.StatusOK, code)

	session.mu.Lock()
	keys := append([]string(nil), session.keys...)
	session.mu.Unlock()
	assert.Contains(t, keys, "ArrowUp")

	assert.Equal(t, ports.StatusNotFound,
		ctrl.HandleCommand(context.Background(), "ghost", "on", nil))
	assert.Equal(t, ports.StatusNotImplemented,
		ctrl.HandleCommand(context.Background(), "box-1_state", "on", nil))
}

func TestHandleCommandBeforeReady(t *testing.T) {
	repo := &memoryRepo{}
	store := NewCredentialStore(repo)
	ctrl := NewController(store, func(a *model.AccountConfig) ports.BackendSession {
		return newFakeSession()
	}, newFakeNotifier())

	code := ctrl.HandleCommand(context.Background(), "box-1", "on", nil)
	assert.Equal(t, ports.StatusServiceUnavailable, code)
}

func TestStateChangePushesBundle(t *testing.T) {
	ctrl, session, notify, _ := testController(t, testAccount())
	ctrl.Start(context.Background())
	require.NoError(t, ctrl.Initialize(context.Background()))

	session.changes <- ports.StateChange{
		DeviceID: "box-1",
		Snapshot: model.Snapshot{State: model.ConnStandby},
	}

	assert.Eventually(t, func() bool {
		return notify.pushCount("box-1") > 0 && notify.pushCount("box-1_state") > 0
	}, time.Second, 10*time.Millisecond)

	ctrl.Close()
}

func TestRetryAfterFailedInitialize(t *testing.T) {
	account := testAccount()
	repo := &memoryRepo{cfg: &model.Config{Accounts: []*model.AccountConfig{account}}}
	store := NewCredentialStore(repo)
	require.NoError(t, store.Reload(context.Background()))

	var mu sync.Mutex
	failing := true
	factory := func(a *model.AccountConfig) ports.BackendSession {
		s := newFakeSession()
		mu.Lock()
		if failing {
			s.connectErr = model.ErrTransport
		}
		mu.Unlock()
		s.devices = []ports.BackendDevice{{ID: "box-1", Name: "Living Room"}}
		return s
	}

	notify := newFakeNotifier()
	ctrl := NewController(store, factory, notify)
	ctrl.Backoff = []time.Duration{10 * time.Millisecond}
	ctrl.RefreshInterval = time.Hour
	ctrl.Start(context.Background())
	defer ctrl.Close()

	require.Error(t, ctrl.Initialize(context.Background()))
	assert.False(t, ctrl.Ready())

	mu.Lock()
	failing = false
	mu.Unlock()

	assert.Eventually(t, ctrl.Ready, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return notify.lastState() == ports.DriverConnected
	}, time.Second, 10*time.Millisecond)
}

func TestOnRemoteConnectStates(t *testing.T) {
	t.Run("unconfigured reports disconnected", func(t *testing.T) {
		repo := &memoryRepo{}
		store := NewCredentialStore(repo)
		notify := newFakeNotifier()
		ctrl := NewController(store, func(a *model.AccountConfig) ports.BackendSession {
			return newFakeSession()
		}, notify)
		ctrl.Start(context.Background())
		defer ctrl.Close()

		ctrl.OnRemoteConnect(context.Background())
		assert.Equal(t, ports.DriverDisconnected, notify.lastState())
	})

	t.Run("configured initializes and reports connected", func(t *testing.T) {
		ctrl, _, notify, _ := testController(t, testAccount())
		ctrl.Start(context.Background())
		defer ctrl.Close()

		ctrl.OnRemoteConnect(context.Background())
		assert.True(t, ctrl.Ready())
		assert.Equal(t, ports.DriverConnected, notify.lastState())
	})
}

func TestCloseDisconnectsSession(t *testing.T) {
	ctrl, session, _, _ := testController(t, testAccount())
	ctrl.Start(context.Background())
	require.NoError(t, ctrl.Initialize(context.Background()))

	ctrl.Close()
	assert.False(t, session.Connected())
	assert.False(t, ctrl.Ready())

	// Disconnect is idempotent, a second close must not panic.
	ctrl.Close()
}
