// Package oauth manages OAuth2 tokens for providers the integrations call
// on behalf of the business (Google Business Profile).
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/storebridge/storebridge/internal/shared"
)

// ErrReauthorizationRequired means a human must run the consent flow again.
var ErrReauthorizationRequired = errors.New("oauth: reauthorization required")

// State describes the stored token.
type State string

const (
	StateNoToken State = "no_token"
	StateValid   State = "valid"
	StateExpired State = "expired"
)

const (
	expirySkew     = time.Minute
	refreshLockTTL = 30 * time.Second
	lockWaitStep   = 250 * time.Millisecond
	lockWaitSteps  = 20
)

// Manager hands out valid access tokens, refreshing them once when expired.
type Manager struct {
	provider string
	config   *oauth2.Config
	store    Store
	locker   Locker
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithLocker adds a cross-process refresh lock.
func WithLocker(l Locker) ManagerOption {
	return func(m *Manager) { m.locker = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager for provider.
func NewManager(provider string, cfg *oauth2.Config, store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		provider: provider,
		config:   cfg,
		store:    store,
		logger:   logger.With(slog.String("provider", provider)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports whether a usable token is stored.
func (m *Manager) State(ctx context.Context) (State, error) {
	tok, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return m.stateOf(tok), nil
}

func (m *Manager) stateOf(tok *oauth2.Token) State {
	switch {
	case tok == nil:
		return StateNoToken
	case tok.AccessToken == "" || (!tok.Expiry.IsZero() && !m.now().Add(expirySkew).Before(tok.Expiry)):
		return StateExpired
	default:
		return StateValid
	}
}

// Token returns a valid access token, refreshing it when expired.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: load token: %w", err)
	}
	switch m.stateOf(tok) {
	case StateNoToken:
		return nil, ErrReauthorizationRequired
	case StateValid:
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrReauthorizationRequired
	}

	v, err, _ := m.group.Do(m.provider, func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func (m *Manager) refresh(ctx context.Context) (*oauth2.Token, error) {
	if m.locker != nil {
		key := shared.TokenRefreshLockKey(m.provider)
		for i := 0; ; i++ {
			release, ok, err := m.locker.TryLock(ctx, key, refreshLockTTL)
			if err != nil {
				return nil, fmt.Errorf("oauth: refresh lock: %w", err)
			}
			if ok {
				defer release()
				break
			}
			// Another process holds the lock; its fresh token lands in the store.
			if tok, err := m.store.Load(ctx); err == nil && m.stateOf(tok) == StateValid {
				return tok, nil
			}
			if i >= lockWaitSteps {
				return nil, fmt.Errorf("oauth: refresh lock for %s not released", m.provider)
			}
			if err := shared.SleepWithContext(ctx, lockWaitStep); err != nil {
				return nil, err
			}
		}
	}

	current, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: load token: %w", err)
	}
	switch m.stateOf(current) {
	case StateValid:
		return current, nil
	case StateNoToken:
		return nil, ErrReauthorizationRequired
	}
	if current.RefreshToken == "" {
		return nil, ErrReauthorizationRequired
	}

	stale := &oauth2.Token{RefreshToken: current.RefreshToken, Expiry: m.now().Add(-time.Hour)}
	fresh, err := m.config.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			m.logger.Warn("refresh token rejected", slog.String("error_code", retrieveErr.ErrorCode))
			return nil, fmt.Errorf("%w: %v", ErrReauthorizationRequired, err)
		}
		return nil, fmt.Errorf("oauth: refresh: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if err := m.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("oauth: persist token: %w", err)
	}
	m.logger.Info("token refreshed", slog.Time("expiry", fresh.Expiry))
	return fresh, nil
}

// AuthCodeURL returns the consent URL requesting offline access.
func (m *Manager) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it.
func (m *Manager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := m.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth: exchange: %w", err)
	}
	if err := m.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("oauth: persist token: %w", err)
	}
	m.logger.Info("token authorized", slog.Bool("refreshable", tok.RefreshToken != ""))
	return tok, nil
}

// TokenSource adapts the manager to oauth2.TokenSource bound to ctx.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, m: m}
}

// HTTPClient returns a client that authorizes requests with the managed
// token. base supplies the transport and timeout when non-nil.
func (m *Manager) HTTPClient(ctx context.Context, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	client := oauth2.NewClient(ctx, m.TokenSource(ctx))
	if base != nil {
		client.Timeout = base.Timeout
	}
	return client
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.m.Token(s.ctx)
}
