package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logoutCall struct {
	token     string
	sessionID string
}

type sessionHarness struct {
	clock   *clock.Fake
	store   *MockAttemptStore
	session *services.AuthSession
	logouts []logoutCall
	navs    []string
	logoutE error
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()

	h := &sessionHarness{
		clock: clock.NewFake(time.Unix(1_700_000_000, 0)),
		store: NewMockAttemptStore(),
	}
	h.session = services.NewAuthSession(services.AuthSessionConfig{
		ID:             "abc",
		IdleTimeout:    30 * time.Minute,
		WarningBefore:  5 * time.Minute,
		TimeoutEnabled: true,
		RemoteLogout: func(ctx context.Context, token, sessionID string) error {
			h.logouts = append(h.logouts, logoutCall{token: token, sessionID: sessionID})
			return h.logoutE
		},
	}, h.store, h.clock, testLogger())
	h.session.SetNavigator(func(to, message string) {
		h.navs = append(h.navs, to)
	})
	t.Cleanup(h.session.Close)
	return h
}

func testBundle() *models.TokenBundle {
	return &models.TokenBundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
		SessionID:    "backend-7",
		User:         &models.User{ID: "u1", Name: "Ana", Email: "ana@example.com"},
		Roles:        []string{"usuario", "admin"},
	}
}

func TestAuthSession_StartsAnonymous(t *testing.T) {
	h := newSessionHarness(t)

	snap := h.session.Snapshot()
	assert.Equal(t, "abc", h.session.ID())
	assert.Equal(t, models.SessionAnonymous, snap.Status)
	assert.Nil(t, snap.User)
	assert.Equal(t, 0, h.clock.Pending(), "no timers without a token")
}

func TestAuthSession_LoginStoresTokensAndMarkers(t *testing.T) {
	h := newSessionHarness(t)

	h.session.Login(testBundle())

	assert.True(t, h.session.IsAuthenticated())
	assert.Equal(t, "access-1", h.session.AccessToken())
	assert.Equal(t, "refresh-1", h.session.RefreshToken())
	assert.Equal(t, []string{"usuario", "admin"}, h.session.Roles())

	snap := h.session.Snapshot()
	assert.Equal(t, models.SessionAuthenticated, snap.Status)
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.ID)

	role, ok := h.session.Marker(auth.MarkerUserRole)
	require.True(t, ok)
	assert.Equal(t, "admin", role)

	sid, ok := h.session.Marker(auth.MarkerSessionID)
	require.True(t, ok)
	assert.Equal(t, "backend-7", sid)

	user, ok := h.session.Marker(auth.MarkerUser)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"u1","nombre":"Ana","email":"ana@example.com"}`, user)
}

func TestAuthSession_WarningThenExtend(t *testing.T) {
	h := newSessionHarness(t)
	h.session.Login(testBundle())

	h.clock.Advance(25 * time.Minute)
	snap := h.session.Snapshot()
	assert.Equal(t, models.SessionWarning, snap.Status)
	assert.Equal(t, 5, snap.WarningMinutesLeft)
	assert.False(t, snap.TokenExpiringSoon)

	require.NoError(t, h.session.ExtendSession())
	assert.Equal(t, models.SessionAuthenticated, h.session.Status())

	// the extended cycle runs a full timeout again
	h.clock.Advance(29 * time.Minute)
	assert.True(t, h.session.IsAuthenticated())
}

func TestAuthSession_IdleTimeoutLogsOutAndRedirects(t *testing.T) {
	h := newSessionHarness(t)
	h.session.Login(testBundle())

	h.clock.Advance(30 * time.Minute)

	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, models.SessionAnonymous, h.session.Status())
	assert.Nil(t, h.session.User())
	assert.Empty(t, h.session.RefreshToken())
	_, ok := h.session.Marker(auth.MarkerToken)
	assert.False(t, ok)

	require.Len(t, h.logouts, 1)
	assert.Equal(t, logoutCall{token: "access-1", sessionID: "backend-7"}, h.logouts[0])
	assert.Equal(t, []string{"/login"}, h.navs)
	assert.Equal(t, 0, h.clock.Pending())
}

func TestAuthSession_ManualLogoutSurvivesRemoteFailure(t *testing.T) {
	h := newSessionHarness(t)
	h.logoutE = errors.New("backend unreachable")
	h.session.Login(testBundle())

	h.session.PerformLogout(context.Background(), models.LogoutManual)

	assert.False(t, h.session.IsAuthenticated())
	assert.Empty(t, h.session.Roles())
	assert.Len(t, h.logouts, 1)
	assert.Empty(t, h.navs, "manual logout does not redirect")
	assert.Equal(t, 0, h.clock.Pending())
}

func TestAuthSession_LogoutWhenAnonymousSkipsRemoteCall(t *testing.T) {
	h := newSessionHarness(t)

	h.session.PerformLogout(context.Background(), models.LogoutManual)
	assert.Empty(t, h.logouts)
}

func TestAuthSession_ExtendRequiresToken(t *testing.T) {
	h := newSessionHarness(t)
	assert.ErrorIs(t, h.session.ExtendSession(), models.ErrNotAuthenticated)
}

func TestAuthSession_ActivityClearsWarning(t *testing.T) {
	h := newSessionHarness(t)
	h.session.Login(testBundle())

	h.clock.Advance(26 * time.Minute)
	require.Equal(t, models.SessionWarning, h.session.Status())

	assert.True(t, h.session.RecordActivity(services.ActivityClick))
	assert.Equal(t, models.SessionAuthenticated, h.session.Status())
}

func TestAuthSession_LimitersAreScopedAndSurviveLogout(t *testing.T) {
	h := newSessionHarness(t)
	ctx := context.Background()

	limiter, err := h.session.Limiter(ctx, services.ProfileLogin)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		limiter.CheckLimit(ctx)
	}
	require.True(t, limiter.IsLocked())
	assert.NotNil(t, h.store.Get("abc:rl_login"))

	h.session.Login(testBundle())
	h.session.PerformLogout(ctx, models.LogoutManual)

	again, err := h.session.Limiter(ctx, services.ProfileLogin)
	require.NoError(t, err)
	assert.Same(t, limiter, again)
	assert.True(t, again.IsLocked())

	_, err = h.session.Limiter(ctx, services.Profile("bogus"))
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthSession_ApplyRefreshKeepsUser(t *testing.T) {
	h := newSessionHarness(t)
	h.session.Login(testBundle())

	h.session.ApplyRefresh(&models.TokenBundle{AccessToken: "access-2", ExpiresIn: 600})

	assert.Equal(t, "access-2", h.session.AccessToken())
	assert.Equal(t, "refresh-1", h.session.RefreshToken())
	require.NotNil(t, h.session.User())
	assert.Equal(t, "u1", h.session.User().ID)

	h.clock.Advance(11 * time.Minute)
	assert.Equal(t, models.SessionAnonymous, h.session.Snapshot().Status, "refreshed token expired")
}

func TestAuthSession_TakeRedirectIsOneShot(t *testing.T) {
	h := newSessionHarness(t)
	h.session.SetRedirect("/login", "bye")

	r := h.session.TakeRedirect()
	require.NotNil(t, r)
	assert.Equal(t, "/login", r.To)
	assert.Nil(t, h.session.TakeRedirect())
}
