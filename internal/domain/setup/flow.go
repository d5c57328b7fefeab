package setup

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/domain/service"
	"horizon-bridge/internal/ports"
)

// State is the setup flow state machine. The flow is short-lived: one setup
// request drives it from collect to complete or failed, then it is reset.
type State string

const (
	StateCollect  State = "collect_credentials"
	StateValidate State = "validate_and_discover"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// Provider is one selectable operator of the credential form.
type Provider struct {
	ID    string
	Label string
}

// Providers lists the operators the backend understands, in form order.
var Providers = []Provider{
	{ID: "Ziggo", Label: "Ziggo (Netherlands)"},
	{ID: "VirginMedia", Label: "Virgin Media (UK/Ireland)"},
	{ID: "Telenet", Label: "Telenet (Belgium)"},
	{ID: "UPC", Label: "UPC (Switzerland)"},
	{ID: "Sunrise", Label: "Sunrise (Switzerland)"},
	{ID: "Magenta", Label: "Magenta (Austria)"},
}

// FilterPolicy decides which discovered devices make it into the resulting
// account configuration.
type FilterPolicy int

const (
	// FilterExcludeOffline keeps devices reporting a known state that is not an
	// offline variant. The default.
	FilterExcludeOffline FilterPolicy = iota
	// FilterAnyState keeps devices that reported any state at all.
	FilterAnyState
	// FilterAcceptAll keeps every device the backend lists.
	FilterAcceptAll
)

func (p FilterPolicy) accepts(state model.Connectivity) bool {
	switch p {
	case FilterAcceptAll:
		return true
	case FilterAnyState:
		return state != model.ConnUnknown
	default:
		return state != model.ConnUnknown && !state.Offline()
	}
}

// Flow collects credentials, validates them against the backend with a trial
// session and persists the discovered devices.
type Flow struct {
	store   *service.CredentialStore
	factory ports.SessionFactory

	Policy FilterPolicy

	mu    sync.Mutex
	state State
}

func NewFlow(store *service.CredentialStore, factory ports.SessionFactory) *Flow {
	return &Flow{store: store, factory: factory, state: StateCollect}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Reset returns the flow to the collect state so setup can be run again.
func (f *Flow) Reset() {
	f.setState(StateCollect)
}

// Submit validates the credential form, runs discovery against a trial
// session and persists the account. Returns model.ErrAuthentication when the
// backend rejects the credentials and model.ErrNotFound when no device passes
// the availability filter; other backend failures keep their own category.
// The host renders these distinctly.
func (f *Flow) Submit(ctx context.Context, values map[string]any) (*model.AccountConfig, error) {
	if err := ValidateInput(values); err != nil {
		f.setState(StateFailed)
		return nil, fmt.Errorf("invalid setup input: %w", err)
	}

	provider := values["provider"].(string)
	username := values["username"].(string)
	password := values["password"].(string)

	f.setState(StateValidate)
	log.Info().Str("provider", provider).Msg("validating credentials against backend")

	account := &model.AccountConfig{
		Identifier: model.AccountID(provider, username),
		Name:       fmt.Sprintf("Horizon (%s)", provider),
		Provider:   provider,
		Username:   username,
		Secret:     password,
	}

	if err := f.discover(ctx, account); err != nil {
		f.setState(StateFailed)
		return nil, err
	}

	// Persist before reporting completion so a restart right after setup
	// still sees the account.
	if err := f.store.Put(ctx, account); err != nil {
		f.setState(StateFailed)
		return nil, err
	}

	f.setState(StateComplete)
	log.Info().Str("account", account.Identifier).Int("devices", len(account.Devices)).
		Msg("setup complete")
	return account, nil
}

// discover opens a trial session, filters the reported devices and captures
// any secret the backend rotated during the handshake.
func (f *Flow) discover(ctx context.Context, account *model.AccountConfig) error {
	session := f.factory(account)
	defer session.Disconnect()

	// Failure categories pass through untouched: rejected credentials stay
	// ErrAuthentication, an empty household stays ErrNotFound, and a silent
	// push channel or transport fault stays generic.
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("trial connection: %w", err)
	}

	devices, err := session.Devices(ctx)
	if err != nil {
		return fmt.Errorf("device discovery: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: account has no set-top boxes", model.ErrNotFound)
	}

	for _, dev := range devices {
		if !f.Policy.accepts(dev.State) {
			log.Warn().Str("device", dev.ID).Str("name", dev.Name).
				Str("state", string(dev.State)).
				Msg("device excluded by availability filter")
			continue
		}
		log.Info().Str("device", dev.ID).Str("name", dev.Name).
			Str("state", string(dev.State)).Msg("device available")
		account.AddDevice(dev.ID, dev.Name)
	}

	if len(account.Devices) == 0 {
		return fmt.Errorf("%w: no available devices, all appear offline", model.ErrNotFound)
	}

	if rotated := session.CurrentSecret(); rotated != "" && rotated != account.Secret {
		log.Info().Str("account", account.Identifier).
			Str("secret", model.TruncateSecret(rotated)).
			Msg("secret rotated during trial connection")
		account.Secret = rotated
	}

	return nil
}
