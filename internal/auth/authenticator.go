// Package auth owns the OAuth2 device-flow handshake and token refresh.
// It is the leaf dependency for every network call the app makes.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/driveshow/driveshow/internal/credstore"
	"github.com/driveshow/driveshow/internal/domain"
)

// refreshMargin is how long before expiry the access token is renewed, so
// a sync cycle never starts with a token about to lapse.
const refreshMargin = time.Minute

// flowState tracks the device-flow state machine.
type flowState int

const (
	stateRequesting flowState = iota
	statePolling
	stateAuthorized
	stateExpired
	stateDenied
)

// Authenticator acquires and renews access tokens. Safe for use from a
// single goroutine at a time; the sync engine is its only caller.
type Authenticator struct {
	httpClient    *http.Client
	logger        *slog.Logger
	store         credstore.Store
	events        chan<- domain.AuthEvent
	deviceCodeURL string
	tokenURL      string
	clientID      string
	scope         string

	mu   sync.Mutex
	cred *credstore.Credential
}

// Options configures an Authenticator.
type Options struct {
	AuthBaseURL string // e.g. https://login.microsoftonline.com/consumers/oauth2/v2.0
	ClientID    string
	Scope       string
	Store       credstore.Store
	Events      chan<- domain.AuthEvent // buffered; receives code-ready and completed notifications
	Logger      *slog.Logger
	HTTPClient  *http.Client
}

// New creates an Authenticator. A credential persisted by an earlier run
// is picked up from the store so restart does not prompt the user again.
func New(opts Options) *Authenticator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	a := &Authenticator{
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		store:         opts.Store,
		events:        opts.Events,
		deviceCodeURL: strings.TrimRight(opts.AuthBaseURL, "/") + "/devicecode",
		tokenURL:      strings.TrimRight(opts.AuthBaseURL, "/") + "/token",
		clientID:      opts.ClientID,
		scope:         opts.Scope,
	}
	if cred, err := opts.Store.Load(); err == nil {
		a.cred = cred
		a.logger.Info("loaded stored credential", "expires_at", cred.ExpiresAt)
	}
	return a
}

// Token returns a valid access token, refreshing or re-authenticating as
// needed. It blocks through the interactive device flow on first run.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cred != nil && a.cred.AccessToken != "" && !a.cred.ExpiresWithin(refreshMargin) {
		return a.cred.AccessToken, nil
	}

	if a.cred != nil && a.cred.RefreshToken != "" {
		if err := a.refresh(ctx); err == nil {
			return a.cred.AccessToken, nil
		} else if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// Bad refresh token; fall through to a fresh handshake.
	}

	if err := a.authenticate(ctx); err != nil {
		return "", err
	}
	return a.cred.AccessToken, nil
}

// Logout destroys the stored credential. The next Token call runs the
// full device flow again.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cred = nil
	return a.store.Delete()
}

// refresh exchanges the refresh token for a new access token.
func (a *Authenticator) refresh(ctx context.Context) error {
	resp, err := a.postToken(ctx, url.Values{
		"client_id":     {a.clientID},
		"grant_type":    {"refresh_token"},
		"scope":         {a.scope},
		"refresh_token": {a.cred.RefreshToken},
	})
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	if resp.Error != "" {
		a.logger.Warn("refresh token rejected", "error", resp.Error)
		a.cred = nil
		return fmt.Errorf("%w: %s", domain.ErrRefreshFailed, resp.Error)
	}
	a.adopt(resp)
	a.logger.Info("access token refreshed", "expires_at", a.cred.ExpiresAt)
	return nil
}

// authenticate runs the device-flow handshake: request a device code,
// hand the verification URL and user code to the UI, then poll the token
// endpoint until the user approves, the code expires, or ctx is canceled.
func (a *Authenticator) authenticate(ctx context.Context) error {
	state := stateRequesting

	var (
		dc       deviceCodeResponse
		deadline time.Time
		interval time.Duration
	)

	for {
		switch state {
		case stateRequesting:
			if err := a.requestDeviceCode(ctx, &dc); err != nil {
				return err
			}
			deadline = time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)
			interval = time.Duration(dc.Interval) * time.Second
			if interval <= 0 {
				interval = 5 * time.Second
			}
			a.emit(domain.AuthEvent{
				Kind:            domain.AuthEventCodeReady,
				VerificationURL: dc.VerificationURI,
				UserCode:        dc.UserCode,
			})
			a.logger.Info("device code issued", "verification_uri", dc.VerificationURI, "expires_in", dc.ExpiresIn)
			state = statePolling

		case statePolling:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
			if time.Now().After(deadline) {
				state = stateExpired
				continue
			}

			resp, err := a.postToken(ctx, url.Values{
				"client_id":   {a.clientID},
				"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
				"device_code": {dc.DeviceCode},
			})
			if err != nil {
				// Transient trouble reaching the endpoint; keep polling.
				a.logger.Warn("token poll failed", "error", err)
				continue
			}
			switch resp.Error {
			case "":
				a.adopt(resp)
				state = stateAuthorized
			case errAuthorizationPending:
				// User has not approved yet.
			case errSlowDown:
				interval += 5 * time.Second
			case errExpiredToken:
				state = stateExpired
			case errAccessDenied:
				a.logger.Warn("user declined authorization")
				state = stateDenied
			default:
				a.logger.Error("authorization rejected", "error", resp.Error, "description", resp.ErrorDescription)
				state = stateDenied
			}

		case stateAuthorized:
			a.emit(domain.AuthEvent{Kind: domain.AuthEventCompleted})
			a.logger.Info("authorization complete", "expires_at", a.cred.ExpiresAt)
			return nil

		case stateExpired:
			return domain.ErrAuthExpired

		case stateDenied:
			return domain.ErrAuthDenied
		}
	}
}

// adopt installs a successful token response and persists it.
func (a *Authenticator) adopt(resp *tokenResponse) {
	a.cred = &credstore.Credential{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if err := a.store.Save(a.cred); err != nil {
		a.logger.Error("failed to persist credential", "error", err)
	}
}

func (a *Authenticator) requestDeviceCode(ctx context.Context, dc *deviceCodeResponse) error {
	form := url.Values{
		"client_id": {a.clientID},
		"scope":     {a.scope},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.deviceCodeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("device code request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device code request failed: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dc); err != nil {
		return fmt.Errorf("parse device code response: %w", err)
	}
	return nil
}

// postToken posts form to the token endpoint. OAuth error responses come
// back with status 400 and an error body; both shapes decode into
// tokenResponse.
func (a *Authenticator) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	return &tr, nil
}

// emit sends an auth event without ever wedging the handshake: the UI
// channel is buffered and drained by the presentation loop.
func (a *Authenticator) emit(ev domain.AuthEvent) {
	if a.events == nil {
		return
	}
	select {
	case a.events <- ev:
	default:
		a.logger.Warn("auth event dropped", "kind", ev.Kind)
	}
}
