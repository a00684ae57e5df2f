package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prohmpiriya/test-platform/internal/credential"
	"github.com/prohmpiriya/test-platform/internal/domain"
	"github.com/prohmpiriya/test-platform/internal/dto"
	"github.com/prohmpiriya/test-platform/internal/events"
	"github.com/prohmpiriya/test-platform/internal/token"
	"github.com/prohmpiriya/test-platform/pkg/logger"
)

const testTokenTTL = time.Hour

// countingHasher records how many bcrypt comparisons each login path performs
type countingHasher struct {
	*credential.Store
	verifies atomic.Int32
	dummies  atomic.Int32
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.verifies.Add(1)
	return h.Store.Verify(password, hash)
}

func (h *countingHasher) DummyVerify(password string) {
	h.dummies.Add(1)
	h.Store.DummyVerify(password)
}

type authFixture struct {
	svc    AuthService
	users  *mockUserRepository
	cache  *mockSessionCache
	pub    *recordingPublisher
	hasher *countingHasher
	codec  *token.Codec
}

func newAuthFixture(t *testing.T, opts ...token.Option) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  newMockUserRepository(),
		cache:  newMockSessionCache(),
		pub:    &recordingPublisher{},
		hasher: &countingHasher{Store: credential.NewStore(bcrypt.MinCost)},
		codec:  token.NewCodec([]byte("test-secret-key"), opts...),
	}
	f.svc = NewAuthService(f.users, f.cache, f.codec, f.hasher, f.pub,
		&AuthServiceConfig{TokenTTL: testTokenTTL}, logger.Nop())
	return f
}

func (f *authFixture) register(t *testing.T, username, password, displayName, role string) *domain.Principal {
	t.Helper()
	p, err := f.svc.Register(context.Background(), &dto.RegisterRequest{
		Username:    username,
		Password:    password,
		DisplayName: displayName,
		Role:        role,
	})
	require.NoError(t, err)
	return p
}

func (f *authFixture) login(t *testing.T, username, password string) *dto.LoginResponse {
	t.Helper()
	resp, err := f.svc.Login(context.Background(), &dto.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return resp
}

func TestAuthService_EndToEnd(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered := f.register(t, "alice", "pw1", "Alice A", "tester")
	assert.Equal(t, "alice", registered.Username)
	assert.Equal(t, domain.RoleTester, registered.Role)

	resp := f.login(t, "alice", "pw1")
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, testTokenTTL.Milliseconds(), resp.ExpiresIn)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, domain.RoleTester, resp.User.Role)

	current, err := f.svc.CurrentPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, resp.User, current)

	res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	require.Equal(t, StatusAuthenticated, res.Status)
	assert.Equal(t, "alice", res.Principal.Username)

	require.NoError(t, f.svc.Logout(ctx, "alice"))

	res = f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonSessionExpired, res.Reason)

	assert.Equal(t, []events.EventType{
		events.EventRegistered,
		events.EventLoginSucceeded,
		events.EventLogout,
	}, f.pub.types())
}

func TestAuthService_LogoutKeepsTokenSignatureValid(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice", "pw1", "Alice A", "tester")
	resp := f.login(t, "alice", "pw1")
	require.True(t, f.cache.has("alice"))

	require.NoError(t, f.svc.Logout(ctx, "alice"))
	assert.False(t, f.cache.has("alice"))

	_, err := f.codec.Validate(resp.Token)
	require.NoError(t, err, "token itself stays valid")

	res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	assert.Equal(t, StatusRejected, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrSessionNotFound)
}

func TestAuthService_LogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)

	assert.NoError(t, f.svc.Logout(context.Background(), "nobody"))
	assert.NoError(t, f.svc.Logout(context.Background(), "nobody"))
}

func TestAuthService_SessionTTLMatchesToken(t *testing.T) {
	f := newAuthFixture(t)

	f.register(t, "alice", "pw1", "Alice A", "tester")
	f.login(t, "alice", "pw1")

	assert.Equal(t, testTokenTTL, f.cache.ttls["alice"])
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("stores hash only", func(t *testing.T) {
		f.register(t, "bob", "pw1", "Bob", "manager")

		stored, err := f.users.GetByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.NotEqual(t, "pw1", stored.PasswordHash)
		assert.True(t, f.hasher.Store.Verify("pw1", stored.PasswordHash))
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.svc.Register(ctx, &dto.RegisterRequest{Username: "bob", Password: "pw2", DisplayName: "Bob 2", Role: "tester"})
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
		assert.Equal(t, 1, f.users.count("bob"))
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := f.svc.Register(ctx, &dto.RegisterRequest{Username: "carol", Password: "pw", DisplayName: "Carol", Role: "superuser"})
		assert.ErrorIs(t, err, domain.ErrInvalidRole)
	})
}

func TestAuthService_ConcurrentDuplicateRegistration(t *testing.T) {
	f := newAuthFixture(t)

	const workers = 20
	var wg sync.WaitGroup
	var succeeded, duplicates atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), &dto.RegisterRequest{
				Username: "bob", Password: "pw", DisplayName: "Bob", Role: "tester",
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrDuplicateUsername):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())
	assert.Equal(t, 1, f.users.count("bob"))
}

func TestAuthService_LoginEnumerationResistance(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw1", "Alice A", "tester")

	_, errNoUser := f.svc.Login(ctx, &dto.LoginRequest{Username: "nouser", Password: "x"})
	_, errBadPw := f.svc.Login(ctx, &dto.LoginRequest{Username: "alice", Password: "wrongpw"})

	assert.ErrorIs(t, errNoUser, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, errBadPw, domain.ErrInvalidCredentials)
	assert.Equal(t, errNoUser.Error(), errBadPw.Error())

	// Each path performs exactly one bcrypt comparison
	assert.Equal(t, int32(1), f.hasher.dummies.Load())
	assert.Equal(t, int32(1), f.hasher.verifies.Load())

	assert.False(t, f.cache.has("alice"))
	assert.Equal(t, []events.EventType{
		events.EventRegistered,
		events.EventLoginFailed,
		events.EventLoginFailed,
	}, f.pub.types())
}

func TestAuthService_ConcurrentLoginLastWriterWins(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "alice", "pw1", "Alice A", "tester")

	var wg sync.WaitGroup
	tokens := make([]string, 5)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.svc.Login(context.Background(), &dto.LoginRequest{Username: "alice", Password: "pw1"})
			if err == nil {
				tokens[i] = resp.Token
			}
		}(i)
	}
	wg.Wait()

	// One entry per username; every issued token resolves against it
	for _, tok := range tokens {
		res := f.svc.ResolveRequest(context.Background(), "Bearer "+tok)
		assert.Equal(t, StatusAuthenticated, res.Status)
	}
}

func TestAuthService_ResolveRequest(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	f := newAuthFixture(t, token.WithClock(now))
	ctx := context.Background()

	f.register(t, "alice", "pw1", "Alice A", "tester")
	resp := f.login(t, "alice", "pw1")

	t.Run("no header is anonymous", func(t *testing.T) {
		res := f.svc.ResolveRequest(ctx, "")
		assert.Equal(t, StatusAnonymous, res.Status)
		assert.Nil(t, res.Principal)
	})

	t.Run("other scheme is anonymous", func(t *testing.T) {
		assert.Equal(t, StatusAnonymous, f.svc.ResolveRequest(ctx, "Basic YWxpY2U6cHcx").Status)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		assert.Equal(t, StatusAuthenticated, f.svc.ResolveRequest(ctx, "bearer "+resp.Token).Status)
	})

	t.Run("empty bearer is rejected", func(t *testing.T) {
		res := f.svc.ResolveRequest(ctx, "Bearer ")
		assert.Equal(t, StatusRejected, res.Status)
		assert.Equal(t, ReasonInvalidToken, res.Reason)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		res := f.svc.ResolveRequest(ctx, "Bearer not.a.jwt")
		assert.Equal(t, StatusRejected, res.Status)
		assert.Equal(t, ReasonInvalidToken, res.Reason)
		assert.ErrorIs(t, res.Err, token.ErrTokenMalformed)
	})

	t.Run("foreign signature is rejected", func(t *testing.T) {
		forged, err := token.NewCodec([]byte("attacker"), token.WithClock(now)).
			Issue(domain.Principal{Username: "alice", Role: domain.RoleAdmin}, time.Hour)
		require.NoError(t, err)

		res := f.svc.ResolveRequest(ctx, "Bearer "+forged)
		assert.Equal(t, StatusRejected, res.Status)
		assert.Equal(t, ReasonInvalidToken, res.Reason)
		assert.ErrorIs(t, res.Err, token.ErrTokenInvalidSignature)
	})

	t.Run("session entry for another user is rejected", func(t *testing.T) {
		f.cache.mu.Lock()
		f.cache.entries["alice"] = domain.Principal{Username: "mallory", Role: domain.RoleAdmin}
		f.cache.mu.Unlock()
		defer func() {
			f.cache.mu.Lock()
			f.cache.entries["alice"] = *resp.User
			f.cache.mu.Unlock()
		}()

		res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
		assert.Equal(t, StatusRejected, res.Status)
		assert.Equal(t, ReasonSessionExpired, res.Reason)
	})

	t.Run("expired token is rejected with its own reason", func(t *testing.T) {
		mu.Lock()
		clock = clock.Add(testTokenTTL)
		mu.Unlock()

		res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
		assert.Equal(t, StatusRejected, res.Status)
		assert.Equal(t, ReasonTokenExpired, res.Reason)
		assert.ErrorIs(t, res.Err, token.ErrTokenExpired)
	})
}

func TestAuthService_CacheUnavailable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw1", "Alice A", "tester")

	f.cache.setDown(true)

	resp, err := f.svc.Login(ctx, &dto.LoginRequest{Username: "alice", Password: "pw1"})
	require.NoError(t, err, "cache write failure must not abort login")

	res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	require.Equal(t, StatusAuthenticated, res.Status)
	assert.Equal(t, "alice", res.Principal.Username)

	current, err := f.svc.CurrentPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", current.Username)

	assert.NoError(t, f.svc.Logout(ctx, "alice"))
}

func TestAuthService_CacheUnavailableUserGone(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw1", "Alice A", "tester")
	resp := f.login(t, "alice", "pw1")

	require.NoError(t, f.users.Delete(ctx, "alice"))
	f.cache.setDown(true)

	res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonSessionExpired, res.Reason)
}

func TestAuthService_CacheAndStoreUnavailable(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw1", "Alice A", "tester")
	resp := f.login(t, "alice", "pw1")

	f.cache.setDown(true)
	f.users.getErr = domain.ErrStoreUnavailable

	res := f.svc.ResolveRequest(ctx, "Bearer "+resp.Token)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, ReasonServiceUnavailable, res.Reason)

	_, err := f.svc.CurrentPrincipal(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Username: "alice", Password: "pw1"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestAuthService_CurrentPrincipalReadThrough(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "pw1", "Alice A", "tester")

	require.False(t, f.cache.has("alice"))
	p, err := f.svc.CurrentPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice A", p.DisplayName)
	assert.True(t, f.cache.has("alice"), "miss repopulates the cache")

	calls := f.users.getCalls
	_, err = f.svc.CurrentPrincipal(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, calls, f.users.getCalls, "hit does not touch the store")

	_, err = f.svc.CurrentPrincipal(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		present bool
	}{
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", true},
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"BEARER   abc", "abc", true},
		{"  Bearer abc  ", "abc", true},
		{"Bearerabc", "", false},
	}

	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.present, ok, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}
}
