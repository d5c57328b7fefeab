package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// Options tunes one session. Zero values select production defaults; tests
// shrink the delays and point APIBase and Broker at local fakes.
type Options struct {
	APIBase string
	Broker  string

	// ReadyTimeout bounds how long Connect waits for the push channel to
	// report at least one device. ReadyInterval is the poll spacing.
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration

	// DigitDelay spaces the digit keys of a channel entry, SettleDelay is the
	// pause before the confirming key.
	DigitDelay  time.Duration
	SettleDelay time.Duration

	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.ReadyTimeout == 0 {
		o.ReadyTimeout = 15 * time.Second
	}
	if o.ReadyInterval == 0 {
		o.ReadyInterval = 500 * time.Millisecond
	}
	if o.DigitDelay == 0 {
		o.DigitDelay = 300 * time.Millisecond
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return o
}

// broker abstracts the paho client behind the three calls the session makes.
type broker interface {
	connect() error
	disconnect()
	subscribe(topic string, handler func(topic string, payload []byte)) error
	publish(topic string, payload []byte) error
}

type deviceEntry struct {
	id    string
	name  string
	model string
	snap  model.Snapshot
}

// Session is one authenticated backend connection: token exchange over HTTP,
// device state over the vendor message broker. Sessions are single-use; a
// reconnect means a fresh Session from the Factory.
type Session struct {
	account  *model.AccountConfig
	opts     Options
	settings countrySettings
	auth     *authenticator
	clientID string

	// newBroker is the paho constructor, replaced in tests.
	newBroker func(url, clientID, username, password string) broker

	mu        sync.Mutex
	connected bool
	closed    bool
	broker    broker
	devices   map[string]*deviceEntry
	catalog   []catalogEntry
	changes   chan ports.StateChange
}

type catalogEntry struct {
	id     string
	name   string
	number int
}

func NewSession(account *model.AccountConfig, opts Options) *Session {
	opts = opts.withDefaults()
	settings := settingsFor(account.Provider)
	if opts.APIBase != "" {
		settings.apiBase = opts.APIBase
	}
	if opts.Broker != "" {
		settings.mqttBroker = opts.Broker
	}

	return &Session{
		account:   account,
		opts:      opts,
		settings:  settings,
		auth:      newAuthenticator(opts.HTTPClient, settings, account.Username, account.Secret),
		clientID:  uuid.NewString(),
		newBroker: newPahoBroker,
		devices:   make(map[string]*deviceEntry),
		changes:   make(chan ports.StateChange, 32),
	}
}

// Factory returns a session factory with fixed options.
func Factory(opts Options) ports.SessionFactory {
	return func(account *model.AccountConfig) ports.BackendSession {
		return NewSession(account, opts)
	}
}

// Connect implements ports.BackendSession.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.auth.login(ctx); err != nil {
		return err
	}
	if err := s.fetchDevices(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	known := len(s.devices)
	s.mu.Unlock()
	if known == 0 {
		return fmt.Errorf("%w: household lists no set-top boxes", model.ErrNotFound)
	}

	token, err := s.auth.token(ctx)
	if err != nil {
		return err
	}
	household := s.auth.household()

	b := s.newBroker(s.settings.mqttBroker, s.clientID, household, token)
	if err := b.connect(); err != nil {
		return fmt.Errorf("%w: broker connect: %v", model.ErrChannelNotReady, err)
	}
	if err := b.subscribe(household+"/+/status", s.onStatus); err != nil {
		b.disconnect()
		return fmt.Errorf("%w: broker subscribe: %v", model.ErrChannelNotReady, err)
	}

	s.mu.Lock()
	s.broker = b
	s.connected = true
	s.mu.Unlock()

	if err := s.waitReady(ctx); err != nil {
		s.Disconnect()
		return err
	}
	log.Info().Str("account", s.account.Identifier).Msg("backend session connected")
	return nil
}

// waitReady polls until at least one device of interest has reported state,
// or the readiness window elapses. A partial result is usable; zero is not.
func (s *Session) waitReady(ctx context.Context) error {
	deadline := time.After(s.opts.ReadyTimeout)
	ticker := time.NewTicker(s.opts.ReadyInterval)
	defer ticker.Stop()

	for {
		ready, want := s.readyCount()
		if want > 0 && ready == want {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if ready == 0 {
				return fmt.Errorf("%w: no device reported state within %s",
					model.ErrChannelNotReady, s.opts.ReadyTimeout)
			}
			log.Warn().Int("ready", ready).Int("expected", want).
				Msg("proceeding with partially reported devices")
			return nil
		case <-ticker.C:
		}
	}
}

// readyCount reports how many devices of interest have known state. With no
// configured devices (trial session during setup) every backend device
// counts.
func (s *Session) readyCount() (ready, want int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.account.Devices) == 0 {
		for _, e := range s.devices {
			if e.snap.State != model.ConnUnknown {
				ready++
			}
		}
		return ready, len(s.devices)
	}

	for _, d := range s.account.Devices {
		want++
		if e, ok := s.devices[d.DeviceID]; ok && e.snap.State != model.ConnUnknown {
			ready++
		}
	}
	return ready, want
}

// onStatus handles one status publication from the broker.
func (s *Session) onStatus(topic string, payload []byte) {
	msg, err := parseStatus(payload)
	if err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("undecodable status message")
		return
	}
	if msg.DeviceType != "" && msg.DeviceType != "STB" {
		return
	}

	deviceID := msg.Source
	if deviceID == "" {
		// Fall back to the topic segment: <household>/<device>/status.
		parts := strings.Split(topic, "/")
		if len(parts) < 2 {
			return
		}
		deviceID = parts[1]
	}

	snap := msg.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.devices[deviceID]
	if !ok {
		entry = &deviceEntry{id: deviceID, name: deviceID}
		s.devices[deviceID] = entry
	}
	entry.snap = snap

	// The send must stay under the lock: Disconnect closes the channel under
	// the same lock, so checking closed and sending cannot interleave with the
	// close. The send cannot block, it has a default.
	if s.closed {
		return
	}
	select {
	case s.changes <- ports.StateChange{DeviceID: deviceID, Snapshot: snap}:
	default:
		log.Debug().Str("device", deviceID).Msg("state change dropped, consumer behind")
	}
}

// Disconnect implements ports.BackendSession. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	b := s.broker
	s.broker = nil
	close(s.changes)
	s.mu.Unlock()

	if b != nil {
		b.disconnect()
	}
	log.Debug().Str("account", s.account.Identifier).Msg("backend session disconnected")
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// fetchDevices loads the household device list over HTTP. Broker state is
// merged in as it arrives.
func (s *Session) fetchDevices(ctx context.Context) error {
	var resp struct {
		AssignedDevices []struct {
			DeviceID string `json:"deviceId"`
			Type     string `json:"type"`
			Model    string `json:"modelName"`
			Settings struct {
				FriendlyName string `json:"deviceFriendlyName"`
			} `json:"settings"`
		} `json:"assignedDevices"`
	}

	path := "/personalization-service/v1/customer/" + s.auth.household() + "?with=devices"
	if err := s.getJSON(ctx, path, &resp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range resp.AssignedDevices {
		name := d.Settings.FriendlyName
		if name == "" {
			name = d.DeviceID
		}
		if entry, ok := s.devices[d.DeviceID]; ok {
			entry.name = name
			entry.model = d.Model
			continue
		}
		s.devices[d.DeviceID] = &deviceEntry{
			id:    d.DeviceID,
			name:  name,
			model: d.Model,
			snap:  model.UnavailableSnapshot(),
		}
	}
	log.Debug().Int("devices", len(resp.AssignedDevices)).Msg("household device list loaded")
	return nil
}

func (s *Session) Devices(ctx context.Context) ([]ports.BackendDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]ports.BackendDevice, 0, len(s.devices))
	for _, e := range s.devices {
		devices = append(devices, ports.BackendDevice{
			ID:    e.id,
			Name:  e.name,
			Model: e.model,
			State: e.snap.State,
		})
	}
	return devices, nil
}

// Channels implements ports.BackendSession, caching the catalog after the
// first fetch.
func (s *Session) Channels(ctx context.Context) ([]ports.Channel, error) {
	s.mu.Lock()
	cached := s.catalog
	s.mu.Unlock()

	if cached == nil {
		var resp struct {
			Channels []struct {
				ID     string `json:"id"`
				Name   string `json:"name"`
				Number int    `json:"logicalChannelNumber"`
			} `json:"channels"`
		}
		if err := s.getJSON(ctx, "/linear-service/v2/channels", &resp); err != nil {
			return nil, err
		}

		cached = make([]catalogEntry, 0, len(resp.Channels))
		for _, ch := range resp.Channels {
			cached = append(cached, catalogEntry{id: ch.ID, name: ch.Name, number: ch.Number})
		}
		s.mu.Lock()
		s.catalog = cached
		s.mu.Unlock()
	}

	channels := make([]ports.Channel, len(cached))
	for i, e := range cached {
		channels[i] = ports.Channel{ID: e.id, Name: e.name}
	}
	return channels, nil
}

func (s *Session) State(deviceID string) model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.devices[deviceID]; ok {
		return e.snap
	}
	return model.UnavailableSnapshot()
}

// SendKey implements ports.BackendSession.
func (s *Session) SendKey(ctx context.Context, deviceID, key string) error {
	return s.publishJSON(deviceID, map[string]any{
		"id":     uuid.NewString(),
		"type":   "CPE.KeyEvent",
		"source": s.clientID,
		"status": map[string]any{
			"w3cKey":    key,
			"eventType": "keyDownUp",
		},
	})
}

// EnterChannel implements ports.BackendSession. The backend has no tune
// primitive; digits are typed the way a viewer would, then confirmed.
func (s *Session) EnterChannel(ctx context.Context, deviceID, number string) error {
	number = strings.TrimSpace(number)
	if number == "" || strings.Trim(number, "0123456789") != "" {
		return fmt.Errorf("%w: invalid channel number %q", model.ErrTransport, number)
	}

	for _, digit := range number {
		if err := s.SendKey(ctx, deviceID, string(digit)); err != nil {
			return err
		}
		if err := sleepCtx(ctx, s.opts.DigitDelay); err != nil {
			return err
		}
	}
	if err := sleepCtx(ctx, s.opts.SettleDelay); err != nil {
		return err
	}
	return s.SendKey(ctx, deviceID, "Enter")
}

// SetChannelByName implements ports.BackendSession via the channel catalog.
func (s *Session) SetChannelByName(ctx context.Context, deviceID, name string) error {
	if _, err := s.Channels(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	var found *catalogEntry
	for i := range s.catalog {
		if strings.EqualFold(s.catalog[i].name, name) {
			found = &s.catalog[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: channel %q not in catalog", model.ErrNotFound, name)
	}

	return s.publishJSON(deviceID, map[string]any{
		"id":     uuid.NewString(),
		"type":   "CPE.pushToTV",
		"source": map[string]any{"clientId": s.clientID, "friendlyDeviceName": "Horizon Bridge"},
		"status": map[string]any{
			"sourceType":       "linear",
			"source":           map[string]any{"channelId": found.id},
			"relativePosition": 0,
			"speed":            1,
		},
	})
}

// SetPosition implements ports.BackendSession, seeking within the running
// replay or recording.
func (s *Session) SetPosition(ctx context.Context, deviceID string, seconds int) error {
	return s.publishJSON(deviceID, map[string]any{
		"id":     uuid.NewString(),
		"type":   "CPE.pushToTV",
		"source": map[string]any{"clientId": s.clientID, "friendlyDeviceName": "Horizon Bridge"},
		"status": map[string]any{
			"sourceType":       "replay",
			"relativePosition": seconds,
			"speed":            1,
		},
	})
}

func (s *Session) StateChanges() <-chan ports.StateChange {
	return s.changes
}

func (s *Session) CurrentSecret() string {
	return s.auth.currentSecret()
}

func (s *Session) publishJSON(deviceID string, msg map[string]any) error {
	s.mu.Lock()
	b := s.broker
	household := s.auth.household()
	s.mu.Unlock()

	if b == nil {
		return fmt.Errorf("%w: session not connected", model.ErrTransport)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.publish(household+"/"+deviceID, payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	return nil
}

func (s *Session) getJSON(ctx context.Context, path string, out any) error {
	token, err := s.auth.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.settings.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", model.ErrTransport, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	return json.Unmarshal(data, out)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
