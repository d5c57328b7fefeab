package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/domain/projector"
	"horizon-bridge/internal/ports"
)

// DefaultBackoff is the reconnect schedule, holding at the ceiling.
var DefaultBackoff = []time.Duration{
	5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second,
	60 * time.Second, 120 * time.Second, 300 * time.Second,
}

// Controller owns the mapping from configured devices to live entity bundles
// and the backend sessions feeding them. All entity creation and destruction
// happens under a single initialization guard so the host never observes a
// half-updated entity set, even when it subscribes before any network I/O
// has completed.
type Controller struct {
	store   *CredentialStore
	factory ports.SessionFactory
	notify  ports.HostNotifier

	// Tunables, set before Start.
	Policy          projector.Policy
	RefreshInterval time.Duration
	Backoff         []time.Duration

	// mu is the initialization guard. Concurrent initialization attempts
	// collapse into one: latecomers block on the mutex and observe ready.
	mu       sync.Mutex
	ready    bool
	retrying bool
	accounts map[string]*accountRuntime

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type accountRuntime struct {
	account *model.AccountConfig
	session ports.BackendSession
	bundles map[string]*projector.Bundle
	cancel  context.CancelFunc
}

func NewController(store *CredentialStore, factory ports.SessionFactory, notify ports.HostNotifier) *Controller {
	return &Controller{
		store:           store,
		factory:         factory,
		notify:          notify,
		Policy:          projector.DefaultPolicy(),
		RefreshInterval: 15 * time.Second,
		Backoff:         DefaultBackoff,
		accounts:        make(map[string]*accountRuntime),
	}
}

// Start begins background operation. When a valid configuration already
// exists, entities are pre-initialized before the host gets a chance to
// subscribe (reboot survival).
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if c.store.IsConfigured() {
		log.Info().Msg("existing configuration found, pre-initializing entities")
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.Initialize(c.ctx); err != nil {
				log.Error().Err(err).Msg("pre-initialization failed")
			}
		}()
	}
}

// Initialize brings every configured account up. Safe to call concurrently;
// when entities are already ready it is a no-op fast path.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Controller) initializeLocked(ctx context.Context) error {
	if c.ready {
		log.Debug().Msg("entities already initialized")
		return nil
	}

	cfg := c.store.Config()
	if !cfg.IsConfigured() {
		log.Info().Msg("not configured, skipping entity initialization")
		return nil
	}

	// Batch recreation: tear down any previous runtimes first.
	c.teardownLocked()

	var bundles int
	var firstErr error
	for _, account := range cfg.Accounts {
		if !account.IsConfigured() {
			continue
		}
		rt, n, err := c.startAccount(ctx, account)
		if err != nil {
			log.Error().Err(err).Str("account", account.Identifier).
				Msg("failed to initialize account")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.accounts[account.Identifier] = rt
		bundles += n
	}

	if bundles == 0 {
		c.teardownLocked()
		c.scheduleRetryLocked()
		if firstErr != nil {
			return firstErr
		}
		return fmt.Errorf("%w: no entity bundles could be created", model.ErrDeviceUnresolvable)
	}

	c.ready = true
	log.Info().Int("bundles", bundles).Msg("entities created and ready")
	return nil
}

// startAccount connects a fresh session for one account and builds its
// entity bundles. The session instance is never reused across reconnects.
func (c *Controller) startAccount(ctx context.Context, account *model.AccountConfig) (*accountRuntime, int, error) {
	session := c.factory(account)
	if err := session.Connect(ctx); err != nil {
		session.Disconnect()
		return nil, 0, err
	}

	// The auth layer may have rotated the secret during connect.
	c.store.RotateSecret(ctx, account.Identifier, session.CurrentSecret())

	devices, err := session.Devices(ctx)
	if err != nil {
		session.Disconnect()
		return nil, 0, err
	}
	known := make(map[string]bool, len(devices))
	for _, d := range devices {
		known[d.ID] = true
	}

	rt := &accountRuntime{
		account: account,
		session: session,
		bundles: make(map[string]*projector.Bundle),
	}
	for _, dev := range account.Devices {
		if !known[dev.DeviceID] {
			// Absent is better than a permanently broken-looking entity.
			log.Warn().Str("device", dev.DeviceID).Str("name", dev.Name).
				Msg("configured device not in backend list, skipping entity bundle")
			continue
		}
		rt.bundles[dev.DeviceID] = projector.NewBundle(dev, session, c.notify, c.Policy)
	}

	if len(rt.bundles) == 0 {
		session.Disconnect()
		return nil, 0, fmt.Errorf("%w: account %s", model.ErrDeviceUnresolvable, account.Identifier)
	}

	if channels, err := session.Channels(ctx); err == nil && len(channels) > 0 {
		names := make([]string, 0, len(channels))
		for _, ch := range channels {
			names = append(names, ch.Name)
		}
		for _, b := range rt.bundles {
			b.Player.SetSourceList(names)
		}
	} else if err != nil {
		log.Debug().Err(err).Str("account", account.Identifier).Msg("channel catalog unavailable")
	}

	actx, cancel := context.WithCancel(c.ctx)
	rt.cancel = cancel
	c.wg.Add(2)
	go c.drainStateChanges(actx, rt)
	go c.refreshLoop(actx, rt)

	return rt, len(rt.bundles), nil
}

// drainStateChanges routes push notifications from the backend state channel
// to the owning bundle. Single consumer, ordered processing.
func (c *Controller) drainStateChanges(ctx context.Context, rt *accountRuntime) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-rt.session.StateChanges():
			if !ok {
				return
			}
			if b := rt.bundles[sc.DeviceID]; b != nil {
				log.Debug().Str("device", sc.DeviceID).
					Str("state", string(sc.Snapshot.State)).Msg("device state changed")
				b.PushAll()
			}
		}
	}
}

// refreshLoop periodically pushes attributes so the host converges even when
// a push notification was missed.
func (c *Controller) refreshLoop(ctx context.Context, rt *accountRuntime) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range rt.bundles {
				b.PushAll()
			}
		}
	}
}

func (c *Controller) scheduleRetryLocked() {
	if c.retrying || c.ctx == nil {
		return
	}
	c.retrying = true
	c.wg.Add(1)
	go c.retryLoop()
}

// retryLoop re-attempts initialization on the backoff schedule until entities
// are ready or the controller shuts down.
func (c *Controller) retryLoop() {
	defer c.wg.Done()
	for attempt := 0; ; attempt++ {
		idx := attempt
		if idx >= len(c.Backoff) {
			idx = len(c.Backoff) - 1
		}
		delay := c.Backoff[idx]
		log.Info().Dur("delay", delay).Int("attempt", attempt+1).
			Msg("scheduling initialization retry")

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}

		c.mu.Lock()
		err := c.initializeLocked(c.ctx)
		ready := c.ready
		if ready {
			c.retrying = false
		}
		c.mu.Unlock()

		if ready {
			c.notify.SetDriverState(ports.DriverConnected)
			return
		}
		log.Warn().Err(err).Msg("initialization retry failed")
	}
}

// AvailableEntities implements ports.Driver.
func (c *Controller) AvailableEntities() []model.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entities []model.Entity
	for _, rt := range c.accounts {
		for _, b := range rt.bundles {
			entities = append(entities, b.Entities()...)
		}
	}
	return entities
}

// Subscribe implements ports.Driver. The host may subscribe at any time,
// including before initialization has run; in that case one synchronous
// emergency initialization pass is attempted before answering.
func (c *Controller) Subscribe(ctx context.Context, entityIDs []string) {
	log.Info().Strs("entities", entityIDs).Msg("entity subscription requested")

	c.mu.Lock()
	if !c.ready {
		log.Warn().Msg("subscription before entities ready, attempting recovery")
		if c.store.IsConfigured() {
			if err := c.initializeLocked(ctx); err != nil {
				log.Error().Err(err).Msg("subscription recovery failed")
			}
		} else {
			log.Error().Msg("cannot recover subscription: no configuration available")
		}
	}

	var found []projector.EntityProjector
	for _, id := range entityIDs {
		p := c.lookupLocked(id)
		if p == nil {
			log.Warn().Str("entity", id).Msg("subscription for unknown entity")
			continue
		}
		found = append(found, p)
	}
	c.mu.Unlock()

	// Push one fresh update per subscribed entity so the host never keeps
	// stale attributes after a subscribe.
	for _, p := range found {
		p.PushUpdate()
	}
}

// HandleCommand implements ports.Driver. Failures never propagate past the
// handler; the dispatch loop must not die on a bad command.
func (c *Controller) HandleCommand(ctx context.Context, entityID, cmd string, params map[string]any) (code ports.StatusCode) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Str("entity", entityID).Str("cmd", cmd).
				Msg("command handler panicked")
			code = ports.StatusServerError
		}
	}()

	c.mu.Lock()
	p := c.lookupLocked(entityID)
	ready := c.ready
	c.mu.Unlock()

	if p == nil {
		if !ready {
			return ports.StatusServiceUnavailable
		}
		return ports.StatusNotFound
	}
	return p.HandleCommand(ctx, cmd, params)
}

// OnRemoteConnect implements ports.Driver.
func (c *Controller) OnRemoteConnect(ctx context.Context) {
	log.Info().Msg("remote connected, checking configuration state")

	if err := c.store.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("failed to reload configuration")
	}

	configured := c.store.IsConfigured()
	if configured {
		c.mu.Lock()
		if c.ready && !c.sessionsConnectedLocked() {
			// Session died while the host was away: full reinitialization.
			log.Warn().Msg("backend session lost, reinitializing entities")
			c.ready = false
		}
		if err := c.initializeLocked(ctx); err != nil {
			log.Error().Err(err).Msg("failed to initialize entities on connect")
		}
		ready := c.ready
		c.mu.Unlock()

		if ready {
			c.notify.SetDriverState(ports.DriverConnected)
		} else {
			c.notify.SetDriverState(ports.DriverError)
		}
		return
	}

	c.notify.SetDriverState(ports.DriverDisconnected)
}

// OnRemoteDisconnect implements ports.Driver. Sessions stay connected so the
// push-state channel keeps entity state fresh for the next host connect.
func (c *Controller) OnRemoteDisconnect(ctx context.Context) {
	log.Info().Msg("remote disconnected")
}

// Ready reports whether entities are initialized and visible.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Close cancels all background tasks, waits for them, then disconnects the
// sessions. Ordering matters: no task may wake after its session is gone.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.ready = false
}

func (c *Controller) teardownLocked() {
	for id, rt := range c.accounts {
		if rt.cancel != nil {
			rt.cancel()
		}
		for _, b := range rt.bundles {
			b.Close()
		}
		rt.session.Disconnect()
		delete(c.accounts, id)
	}
}

func (c *Controller) sessionsConnectedLocked() bool {
	for _, rt := range c.accounts {
		if !rt.session.Connected() {
			return false
		}
	}
	return len(c.accounts) > 0
}

func (c *Controller) lookupLocked(entityID string) projector.EntityProjector {
	deviceID, _ := model.ParseEntityID(entityID)
	for _, rt := range c.accounts {
		if b := rt.bundles[deviceID]; b != nil {
			return b.Lookup(entityID)
		}
	}
	return nil
}
