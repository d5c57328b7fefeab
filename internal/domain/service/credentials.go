package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
	"horizon-bridge/internal/ports"
)

// CredentialStore owns the in-memory account configuration and its durable
// copy. Every mutation the host must survive a restart goes through here.
type CredentialStore struct {
	repo ports.ConfigRepository

	mu  sync.RWMutex
	cfg *model.Config
}

func NewCredentialStore(repo ports.ConfigRepository) *CredentialStore {
	return &CredentialStore{repo: repo, cfg: &model.Config{}}
}

// Reload re-reads the configuration from disk. Used at startup and whenever
// the host reconnects, so a restart picks up setup done before it.
func (s *CredentialStore) Reload(ctx context.Context) error {
	cfg, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	log.Debug().Int("accounts", len(cfg.Accounts)).Msg("configuration loaded")
	return nil
}

// Config returns the current in-memory configuration.
func (s *CredentialStore) Config() *model.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *CredentialStore) IsConfigured() bool {
	return s.Config().IsConfigured()
}

// Put upserts an account and persists. Called by the setup flow.
func (s *CredentialStore) Put(ctx context.Context, account *model.AccountConfig) error {
	s.mu.Lock()
	s.cfg.Upsert(account)
	cfg := s.cfg
	s.mu.Unlock()
	return s.repo.Save(ctx, cfg)
}

// RotateSecret updates an account's secret when the backend issued a new one.
// Compare-and-write: identical secrets cause no disk write. A failed write is
// logged but not fatal; the session keeps using the in-memory secret.
func (s *CredentialStore) RotateSecret(ctx context.Context, accountID, newSecret string) {
	if newSecret == "" {
		return
	}

	s.mu.Lock()
	account := s.cfg.Account(accountID)
	if account == nil || account.Secret == newSecret {
		s.mu.Unlock()
		return
	}
	account.Secret = newSecret
	cfg := s.cfg
	s.mu.Unlock()

	log.Info().
		Str("account", accountID).
		Str("secret", model.TruncateSecret(newSecret)).
		Msg("backend rotated secret, persisting")

	if err := s.repo.Save(ctx, cfg); err != nil {
		log.Error().Err(err).Str("account", accountID).
			Msg("failed to persist rotated secret, continuing in memory")
	}
}
