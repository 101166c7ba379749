package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"poa/internal/errs"
	"poa/internal/logger"
	"poa/internal/venue"
)

// Authenticator is the remote side of the token lifecycle.
type Authenticator interface {
	// Probe makes a cheap authenticated call. An error matching errs.ErrStaleToken
	// means the remote no longer accepts the token.
	Probe(ctx context.Context, token string) error
	// Issue obtains a new token. It fails with an AuthenticationError when the
	// remote response lacks a token.
	Issue(ctx context.Context) (AuthToken, error)
}

type Option func(*Manager)

func WithRenewMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.margin = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager serializes token decisions for one account.
type Manager struct {
	account string
	store   TokenStore
	auth    Authenticator
	margin  time.Duration
	now     func() time.Time
	log     *logger.VenueLogger

	mu        sync.Mutex
	cached    AuthToken
	loaded    bool
	validated string
	rejected  string
}

func NewManager(id venue.ID, account string, store TokenStore, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		account: account,
		store:   store,
		auth:    auth,
		margin:  DefaultRenewMargin,
		now:     time.Now,
		log:     logger.Venue(string(id)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Account() string { return m.account }

// State reports the lifecycle state of the currently cached token without any remote call.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok := m.cached
	if tok.Value != "" && tok.Value == m.rejected {
		return Expired
	}
	return Classify(tok, m.now(), m.margin)
}

// Token returns a token that is usable right now, renewing it if needed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		m.load(ctx)
	}
	tok := m.cached
	state := Classify(tok, m.now(), m.margin)
	if state == Valid && tok.Value == m.rejected {
		state = Expired
	}
	if state == Valid && tok.Value != m.validated {
		err := m.auth.Probe(ctx, tok.Value)
		switch {
		case err == nil:
			m.validated = tok.Value
		case errors.Is(err, errs.ErrStaleToken):
			m.log.Infof("cached token rejected by probe, renewing")
			state = Expired
		default:
			// Expiry alone decides; the probe runs again next time.
			m.log.Warnf("token probe failed: %v", err)
		}
	}
	if !state.NeedsRenewal() {
		return tok.Value, nil
	}
	m.log.Infof("renewing access token (state=%s)", state)
	return m.renew(ctx)
}

// Invalidate marks token as rejected so the next Token call renews it.
func (m *Manager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" || token != m.cached.Value {
		return
	}
	m.rejected = token
	m.validated = ""
}

// Do runs fn with a usable token. A stale-token rejection is retried once
// after a forced renewal.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}
	err = fn(ctx, token)
	if err == nil || !errors.Is(err, errs.ErrStaleToken) {
		return err
	}
	m.log.Warnf("call rejected with stale token, retrying once")
	m.Invalidate(token)
	token, err = m.Token(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, token)
}

func (m *Manager) load(ctx context.Context) {
	m.loaded = true
	if m.store == nil {
		return
	}
	tok, ok, err := m.store.Get(ctx, m.account)
	if err != nil {
		m.log.Warnf("load token from store: %v", err)
		return
	}
	if ok {
		m.cached = tok
	}
}

func (m *Manager) renew(ctx context.Context) (string, error) {
	tok, err := m.auth.Issue(ctx)
	if err != nil {
		return "", err
	}
	if tok.Empty() {
		return "", errs.Authentication("", "token endpoint returned no token", nil)
	}
	if m.store != nil {
		if err := m.store.Put(ctx, m.account, tok); err != nil {
			m.log.Warnf("persist token: %v", err)
		}
	}
	m.cached = tok
	m.validated = tok.Value
	m.rejected = ""
	return tok.Value, nil
}
