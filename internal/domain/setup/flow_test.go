package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/domain/service"
	"horizon-bridge/internal/ports"
)

type trialSession struct {
	connectErr error
	devices    []ports.BackendDevice
	secret     string
	changes    chan ports.StateChange
}

func (s *trialSession) Connect(ctx context.Context) error { return s.connectErr }
func (s *trialSession) Disconnect()                       {}
func (s *trialSession) Connected() bool                   { return s.connectErr == nil }

func (s *trialSession) Devices(ctx context.Context) ([]ports.BackendDevice, error) {
	return s.devices, nil
}

func (s *trialSession) Channels(ctx context.Context) ([]ports.Channel, error) { return nil, nil }
func (s *trialSession) State(deviceID string) model.Snapshot                  { return model.UnavailableSnapshot() }
func (s *trialSession) SendKey(ctx context.Context, deviceID, key string) error {
	return nil
}
func (s *trialSession) EnterChannel(ctx context.Context, deviceID, number string) error {
	return nil
}
func (s *trialSession) SetChannelByName(ctx context.Context, deviceID, name string) error {
	return nil
}
func (s *trialSession) SetPosition(ctx context.Context, deviceID string, seconds int) error {
	return nil
}
func (s *trialSession) StateChanges() <-chan ports.StateChange { return s.changes }
func (s *trialSession) CurrentSecret() string                  { return s.secret }

type memoryRepo struct {
	cfg   *model.Config
	saves int
}

func (r *memoryRepo) Load(ctx context.Context) (*model.Config, error) {
	if r.cfg == nil {
		return &model.Config{}, nil
	}
	return r.cfg, nil
}

func (r *memoryRepo) Save(ctx context.Context, cfg *model.Config) error {
	r.cfg = cfg
	r.saves++
	return nil
}

func testFlow(session *trialSession) (*Flow, *memoryRepo) {
	repo := &memoryRepo{}
	store := service.NewCredentialStore(repo)
	flow := NewFlow(store, func(a *model.AccountConfig) ports.BackendSession { return session })
	return flow, repo
}

func credentials() map[string]any {
	return map[string]any{
		"provider": "Ziggo",
		"username": "user@example.com",
		"password": "hunter2hunter2",
	}
}

func TestSubmitDiscoversAndPersists(t *testing.T) {
	session := &trialSession{devices: []ports.BackendDevice{
		{ID: "box-1", Name: "Living Room", State: model.ConnRunning},
		{ID: "box-2", Name: "Bedroom", State: model.ConnStandby},
	}}
	flow, repo := testFlow(session)

	account, err := flow.Submit(context.Background(), credentials())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, flow.State())

	assert.Equal(t, "ziggo_user_example_com", account.Identifier)
	assert.Len(t, account.Devices, 2)
	assert.Equal(t, 1, repo.saves, "configuration persisted before completion")
	assert.NotNil(t, repo.cfg.Account("ziggo_user_example_com"))
}

func TestFilterPolicies(t *testing.T) {
	devices := []ports.BackendDevice{
		{ID: "1", Name: "One", State: model.ConnRunning},
		{ID: "2", Name: "Two", State: model.ConnOffline},
		{ID: "3", Name: "Three", State: model.ConnUnknown},
	}

	t.Run("exclude offline", func(t *testing.T) {
		flow, _ := testFlow(&trialSession{devices: devices})
		account, err := flow.Submit(context.Background(), credentials())
		require.NoError(t, err)
		require.Len(t, account.Devices, 1)
		assert.Equal(t, "1", account.Devices[0].DeviceID)
	})

	t.Run("any state", func(t *testing.T) {
		flow, _ := testFlow(&trialSession{devices: devices})
		flow.Policy = FilterAnyState
		account, err := flow.Submit(context.Background(), credentials())
		require.NoError(t, err)
		assert.Len(t, account.Devices, 2)
	})

	t.Run("accept all", func(t *testing.T) {
		flow, _ := testFlow(&trialSession{devices: devices})
		flow.Policy = FilterAcceptAll
		account, err := flow.Submit(context.Background(), credentials())
		require.NoError(t, err)
		assert.Len(t, account.Devices, 3)
	})
}

func TestSubmitFailsWithNotFoundWhenAllFiltered(t *testing.T) {
	session := &trialSession{devices: []ports.BackendDevice{
		{ID: "1", Name: "One", State: model.ConnOffline},
	}}
	flow, repo := testFlow(session)

	_, err := flow.Submit(context.Background(), credentials())
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, StateFailed, flow.State())
	assert.Equal(t, 0, repo.saves)
}

func TestSubmitFailsWithAuthenticationOnConnectError(t *testing.T) {
	session := &trialSession{connectErr: model.ErrAuthentication}
	flow, _ := testFlow(session)

	_, err := flow.Submit(context.Background(), credentials())
	require.ErrorIs(t, err, model.ErrAuthentication)
	assert.NotErrorIs(t, err, model.ErrNotFound, "auth and not-found must stay distinguishable")
	assert.Equal(t, StateFailed, flow.State())
}

func TestSubmitKeepsNonAuthFailuresGeneric(t *testing.T) {
	session := &trialSession{connectErr: model.ErrChannelNotReady}
	flow, repo := testFlow(session)

	_, err := flow.Submit(context.Background(), credentials())
	require.ErrorIs(t, err, model.ErrChannelNotReady)
	assert.NotErrorIs(t, err, model.ErrAuthentication,
		"silent push channel must not read as bad credentials")
	assert.NotErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, StateFailed, flow.State())
	assert.Equal(t, 0, repo.saves)
}

func TestSubmitCapturesRotatedSecret(t *testing.T) {
	session := &trialSession{
		devices: []ports.BackendDevice{{ID: "box-1", Name: "Living Room", State: model.ConnRunning}},
		secret:  "rotated-refresh-token",
	}
	flow, repo := testFlow(session)

	account, err := flow.Submit(context.Background(), credentials())
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh-token", account.Secret)
	assert.Equal(t, "rotated-refresh-token",
		repo.cfg.Account(account.Identifier).Secret, "rotated secret persisted")
}

func TestValidateInput(t *testing.T) {
	assert.NoError(t, ValidateInput(credentials()))

	bad := []map[string]any{
		{"provider": "Ziggo", "username": "u"},
		{"provider": "NoSuchOperator", "username": "u", "password": "p"},
		{"provider": "Ziggo", "username": "", "password": "p"},
		{"provider": float64(7), "username": "u", "password": "p"},
	}
	for _, values := range bad {
		assert.Error(t, ValidateInput(values))
	}
}

func TestReset(t *testing.T) {
	flow, _ := testFlow(&trialSession{connectErr: model.ErrAuthentication})
	_, _ = flow.Submit(context.Background(), credentials())
	require.Equal(t, StateFailed, flow.State())

	flow.Reset()
	assert.Equal(t, StateCollect, flow.State())
}
