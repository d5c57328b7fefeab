package horizon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"horizon-bridge/internal/domain/model"
)

// countrySettings binds one operator country to its API endpoint and message
// broker. Countries using OAuth refresh tokens have no password login path.
type countrySettings struct {
	apiBase         string
	mqttBroker      string
	useRefreshToken bool
}

var countries = map[string]countrySettings{
	"nl": {
		apiBase:    "https://prod.spark.ziggogo.tv/eng/web",
		mqttBroker: "wss://obomsg.prod.nl.horizon.tv:443/mqtt",
	},
	"gb": {
		apiBase:         "https://prod.spark.virginmedia.com/eng/web",
		mqttBroker:      "wss://obomsg.prod.gb.horizon.tv:443/mqtt",
		useRefreshToken: true,
	},
	"be": {
		apiBase:         "https://prod.spark.telenettv.be/nld/web",
		mqttBroker:      "wss://obomsg.prod.be.horizon.tv:443/mqtt",
		useRefreshToken: true,
	},
	"ch": {
		apiBase:         "https://prod.spark.sunrisetv.ch/eng/web",
		mqttBroker:      "wss://obomsg.prod.ch.horizon.tv:443/mqtt",
		useRefreshToken: true,
	},
	"at": {
		apiBase:    "https://prod.spark.magentatv.at/deu/web",
		mqttBroker: "wss://obomsg.prod.at.horizon.tv:443/mqtt",
	},
}

var providerCountry = map[string]string{
	"Ziggo":       "nl",
	"VirginMedia": "gb",
	"Telenet":     "be",
	"UPC":         "ch",
	"Sunrise":     "ch",
	"Magenta":     "at",
}

// settingsFor resolves an operator to its country settings, defaulting to the
// Dutch deployment for unknown providers.
func settingsFor(provider string) countrySettings {
	country, ok := providerCountry[provider]
	if !ok {
		log.Warn().Str("provider", provider).Msg("unknown provider, assuming nl")
		country = "nl"
	}
	return countries[country]
}

// authenticator performs the token exchange and keeps the session tokens
// fresh. For refresh-token countries the secret is the refresh token itself
// and may be rotated by the backend on every exchange.
type authenticator struct {
	http     *http.Client
	settings countrySettings
	username string

	mu           sync.Mutex
	secret       string
	accessToken  string
	refreshToken string
	householdID  string
	expiry       time.Time
}

func newAuthenticator(client *http.Client, settings countrySettings, username, secret string) *authenticator {
	return &authenticator{
		http:     client,
		settings: settings,
		username: username,
		secret:   secret,
	}
}

type authResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	HouseholdID  string `json:"householdId"`
	Username     string `json:"username"`
}

// login performs the initial token exchange.
func (a *authenticator) login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.settings.useRefreshToken {
		log.Info().Str("username", a.username).Msg("authenticating with refresh token")
		return a.exchangeLocked(ctx, "/authorization/refresh", map[string]string{
			"refreshToken": a.refreshTokenLocked(),
		})
	}

	log.Info().Str("username", a.username).Msg("authenticating with password")
	return a.exchangeLocked(ctx, "/authorization", map[string]string{
		"username": a.username,
		"password": a.secret,
	})
}

func (a *authenticator) refreshTokenLocked() string {
	if a.refreshToken != "" {
		return a.refreshToken
	}
	return a.secret
}

func (a *authenticator) exchangeLocked(ctx context.Context, path string, body map[string]string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.settings.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: backend rejected credentials (%d)", model.ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token exchange returned %d", model.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransport, err)
	}

	var auth authResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("%w: malformed token response: %v", model.ErrAuthentication, err)
	}
	if auth.AccessToken == "" {
		return fmt.Errorf("%w: token response without access token", model.ErrAuthentication)
	}

	a.accessToken = auth.AccessToken
	a.householdID = auth.HouseholdID
	a.expiry = tokenExpiry(auth.AccessToken)

	if a.settings.useRefreshToken && auth.RefreshToken != "" && auth.RefreshToken != a.refreshToken {
		if a.refreshToken != "" {
			log.Info().Str("secret", model.TruncateSecret(auth.RefreshToken)).
				Msg("backend rotated refresh token")
		}
		a.refreshToken = auth.RefreshToken
	}
	return nil
}

// token returns a valid access token, re-running the exchange when the current
// one is within a minute of expiry.
func (a *authenticator) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.accessToken != "" && time.Until(a.expiry) > time.Minute {
		token := a.accessToken
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	if err := a.login(ctx); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken, nil
}

func (a *authenticator) household() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.householdID
}

// currentSecret returns the secret to persist: the possibly-rotated refresh
// token, or the password for password countries.
func (a *authenticator) currentSecret() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings.useRefreshToken && a.refreshToken != "" {
		return a.refreshToken
	}
	return a.secret
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// is the backend's own and only inspected to schedule the next refresh.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// Opaque token: assume a short lifetime and refresh eagerly.
		return time.Now().Add(5 * time.Minute)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Now().Add(5 * time.Minute)
	}
	return exp.Time
}
