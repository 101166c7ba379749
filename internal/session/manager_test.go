package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poa/internal/errs"
	"poa/internal/venue"
)

type fakeAuth struct {
	mu       sync.Mutex
	now      func() time.Time
	issued   int
	probes   int
	probeErr error
	issueErr error
	lifetime time.Duration
}

func (f *fakeAuth) Probe(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.probeErr
}

func (f *fakeAuth) Issue(_ context.Context) (AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issueErr != nil {
		return AuthToken{}, f.issueErr
	}
	f.issued++
	life := f.lifetime
	if life == 0 {
		life = 24 * time.Hour
	}
	return AuthToken{Value: fmt.Sprintf("tok-%d", f.issued), ExpiresAt: f.now().Add(life)}, nil
}

func newTestManager(t *testing.T, store TokenStore) (*Manager, *fakeAuth, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	auth := &fakeAuth{now: clock}
	m := NewManager(venue.Broker(1), "KIS1", store, auth, WithClock(clock))
	return m, auth, &now
}

func TestClassify(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		tok  AuthToken
		want State
	}{
		{AuthToken{}, NoToken},
		{AuthToken{Value: NoTokenSentinel, ExpiresAt: now.Add(time.Hour * 10)}, NoToken},
		{AuthToken{Value: "a"}, Expired},
		{AuthToken{Value: "a", ExpiresAt: now}, Expired},
		{AuthToken{Value: "a", ExpiresAt: now.Add(30 * time.Minute)}, NearExpiry},
		{AuthToken{Value: "a", ExpiresAt: now.Add(2 * time.Hour)}, Valid},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.tok, now, DefaultRenewMargin), tc.tok.Value)
	}
}

func TestTokenIssuesWhenMissing(t *testing.T) {
	store := NewMemoryStore()
	m, auth, _ := newTestManager(t, store)

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, auth.issued)
	assert.Equal(t, 0, auth.probes)

	stored, ok, err := store.Get(context.Background(), "KIS1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", stored.Value)

	// freshly issued tokens are not probed
	tok, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, auth.issued)
	assert.Equal(t, 0, auth.probes)
}

func TestTokenRenewsNearExpiry(t *testing.T) {
	store := NewMemoryStore()
	m, auth, now := newTestManager(t, store)
	require.NoError(t, store.Put(context.Background(), "KIS1", AuthToken{
		Value: "old", ExpiresAt: now.Add(30 * time.Minute),
	}))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, auth.issued)
	assert.Equal(t, 0, auth.probes)
	assert.Equal(t, Valid, m.State())
}

func TestTokenProbesStoredTokenOnce(t *testing.T) {
	store := NewMemoryStore()
	m, auth, now := newTestManager(t, store)
	require.NoError(t, store.Put(context.Background(), "KIS1", AuthToken{
		Value: "stored", ExpiresAt: now.Add(12 * time.Hour),
	}))

	for i := 0; i < 3; i++ {
		tok, err := m.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "stored", tok)
	}
	assert.Equal(t, 1, auth.probes)
	assert.Equal(t, 0, auth.issued)

	// the expiry check still runs after validation
	*now = now.Add(11*time.Hour + 30*time.Minute)
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestTokenProbeRejection(t *testing.T) {
	store := NewMemoryStore()
	m, auth, now := newTestManager(t, store)
	auth.probeErr = &errs.RemoteCallError{Venue: venue.Broker(1), Op: "probe", Code: "EGW00123", Stale: true}
	require.NoError(t, store.Put(context.Background(), "KIS1", AuthToken{
		Value: "revoked", ExpiresAt: now.Add(12 * time.Hour),
	}))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestTokenProbeTransportErrorFallsBackToExpiry(t *testing.T) {
	store := NewMemoryStore()
	m, auth, now := newTestManager(t, store)
	auth.probeErr = errors.New("dial tcp: timeout")
	require.NoError(t, store.Put(context.Background(), "KIS1", AuthToken{
		Value: "stored", ExpiresAt: now.Add(12 * time.Hour),
	}))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
	assert.Equal(t, 0, auth.issued)
}

func TestTokenIssueFailure(t *testing.T) {
	m, auth, _ := newTestManager(t, NewMemoryStore())
	auth.issueErr = errs.Authentication(venue.Broker(1), "no access_token in response", nil)

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, errs.ErrAuthentication)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Put(context.Context, string, AuthToken) error { return errors.New("disk full") }

func TestTokenStoreWriteFailureStillUsesToken(t *testing.T) {
	m, _, _ := newTestManager(t, failingStore{NewMemoryStore()})
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestDoRetriesOnceOnStaleToken(t *testing.T) {
	m, auth, _ := newTestManager(t, NewMemoryStore())
	var seen []string
	err := m.Do(context.Background(), func(_ context.Context, token string) error {
		seen = append(seen, token)
		if len(seen) == 1 {
			return &errs.RemoteCallError{Venue: venue.Broker(1), Op: "balance", Code: "EGW00123", Stale: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1", "tok-2"}, seen)
	assert.Equal(t, 2, auth.issued)
}

func TestDoGivesUpAfterOneRetry(t *testing.T) {
	m, _, _ := newTestManager(t, NewMemoryStore())
	calls := 0
	err := m.Do(context.Background(), func(context.Context, string) error {
		calls++
		return &errs.RemoteCallError{Venue: venue.Broker(1), Op: "balance", Stale: true}
	})
	assert.ErrorIs(t, err, errs.ErrStaleToken)
	assert.Equal(t, 2, calls)
}

func TestTokenConcurrentCallersIssueOnce(t *testing.T) {
	m, auth, _ := newTestManager(t, NewMemoryStore())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Token(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, auth.issued)
}
