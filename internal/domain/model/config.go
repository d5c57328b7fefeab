package model

import "strings"

// DeviceConfig is one set-top box resolved during setup. The ID is assigned by
// the backend and stable across sessions.
type DeviceConfig struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// AccountConfig is one set of provider credentials plus its resolved devices.
// Secret is a password or a refresh token depending on the provider.
type AccountConfig struct {
	Identifier string          `json:"identifier"`
	Name       string          `json:"name"`
	Provider   string          `json:"provider"`
	Username   string          `json:"username"`
	Secret     string          `json:"secret"`
	Devices    []*DeviceConfig `json:"devices"`
}

type Config struct {
	Accounts []*AccountConfig `json:"accounts"`
}

// AccountID derives the stable account identifier from provider and username.
func AccountID(provider, username string) string {
	id := strings.ToLower(provider + "_" + username)
	id = strings.ReplaceAll(id, "@", "_")
	return strings.ReplaceAll(id, ".", "_")
}

func (a *AccountConfig) IsConfigured() bool {
	return a != nil && a.Provider != "" && a.Username != ""
}

// AddDevice inserts or updates a device entry, keyed by device id.
func (a *AccountConfig) AddDevice(deviceID, name string) {
	for _, d := range a.Devices {
		if d.DeviceID == deviceID {
			d.Name = name
			return
		}
	}
	a.Devices = append(a.Devices, &DeviceConfig{DeviceID: deviceID, Name: name})
}

func (a *AccountConfig) Device(deviceID string) *DeviceConfig {
	for _, d := range a.Devices {
		if d.DeviceID == deviceID {
			return d
		}
	}
	return nil
}

func (c *Config) Account(identifier string) *AccountConfig {
	for _, a := range c.Accounts {
		if a.Identifier == identifier {
			return a
		}
	}
	return nil
}

// Upsert replaces the account with the same identifier or appends a new one.
func (c *Config) Upsert(account *AccountConfig) {
	for i, a := range c.Accounts {
		if a.Identifier == account.Identifier {
			c.Accounts[i] = account
			return
		}
	}
	c.Accounts = append(c.Accounts, account)
}

// IsConfigured reports whether at least one account has usable credentials.
func (c *Config) IsConfigured() bool {
	for _, a := range c.Accounts {
		if a.IsConfigured() {
			return true
		}
	}
	return false
}

// TruncateSecret shortens a secret for diagnostics. Secrets are never logged
// in full.
func TruncateSecret(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:6] + "..."
}
