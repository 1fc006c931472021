package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/orderdesk/go-auth"
)

type controllerFixture struct {
	store      *memoryStore
	clock      *testClock
	auther     *auth.Auther
	controller *auth.AuthController
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	store := newMemoryStore()
	clock := newTestClock(t0)
	auther := auth.NewAuthenticator(store, testOptions()).
		WithClock(clock).
		WithLogger(&captureLogger{}).
		WithHasher(auth.NewPasswordHasher(bcrypt.MinCost))

	middleware, err := auth.NewHTTPAuthenticator(auther, testOptions())
	require.NoError(t, err)

	controller := auth.NewAuthController(
		auth.WithAuthenticator(auther),
		auth.WithRouteAuthenticator(middleware),
		auth.WithControllerLogger(&captureLogger{}),
	)

	return &controllerFixture{store: store, clock: clock, auther: auther, controller: controller}
}

func (fx *controllerFixture) seedAccount(t *testing.T, email, password string) *auth.Account {
	t.Helper()
	hash, err := auth.NewPasswordHasher(bcrypt.MinCost).HashPassword(password)
	require.NoError(t, err)
	return fx.store.seed(42, email, hash)
}

// authed runs handler behind the protected route middleware
func (fx *controllerFixture) authed(ctx *httpCtx, handler func(*httpCtx) error) error {
	ctx.next = func(router.Context) error { return handler(ctx) }
	return fx.controller.Middleware.ProtectedRoute(fx.controller.ErrorHandler)(ctx.next)(ctx)
}

func TestControllerRegister(t *testing.T) {
	fx := newControllerFixture(t)

	ctx := newHTTPCtx().withBody(map[string]string{
		"email":    "  Ada@Example.COM ",
		"password": "Passw0rd!",
	})
	require.NoError(t, fx.controller.Register(ctx))

	assert.Equal(t, http.StatusCreated, ctx.status)
	res, ok := ctx.payload.(auth.AccountResponse)
	require.True(t, ok, "expected AccountResponse, got %T", ctx.payload)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, "Ada@example.com", res.Email)
	assert.Equal(t, "2024-03-01T12:00:00Z", res.CreatedAt)
	assert.Empty(t, res.LastLogin)
}

func TestControllerRegisterRejections(t *testing.T) {
	fx := newControllerFixture(t)
	fx.seedAccount(t, "taken@example.com", "Passw0rd!")

	tests := []struct {
		name     string
		body     any
		wantKind auth.Kind
	}{
		{"not json", "{email", auth.KindValidation},
		{"empty body", "", auth.KindValidation},
		{"weak password", map[string]string{"email": "new@example.com", "password": "password"}, auth.KindValidation},
		{"duplicate", map[string]string{"email": "taken@example.com", "password": "Passw0rd!"}, auth.KindDuplicateAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newHTTPCtx().withBody(tt.body)
			require.NoError(t, fx.controller.Register(ctx))

			assert.Equal(t, http.StatusBadRequest, ctx.status)
			assert.Equal(t, string(tt.wantKind), ctx.errorBody(t).Error.TextCode)
		})
	}
}

func TestControllerLogin(t *testing.T) {
	fx := newControllerFixture(t)
	fx.seedAccount(t, "ada@example.com", "Passw0rd!")

	t.Run("success", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{"email": "ada@example.com", "password": "Passw0rd!"})
		require.NoError(t, fx.controller.Login(ctx))

		assert.Equal(t, http.StatusOK, ctx.status)
		pair, ok := ctx.payload.(*auth.TokenPair)
		require.True(t, ok, "expected *TokenPair, got %T", ctx.payload)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, auth.TokenTypeBearer, pair.TokenType)
	})

	t.Run("wrong password", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{"email": "ada@example.com", "password": "Wrong0rd!"})
		require.NoError(t, fx.controller.Login(ctx))

		assert.Equal(t, http.StatusUnauthorized, ctx.status)
		body := ctx.errorBody(t)
		assert.Equal(t, string(auth.KindCredentialMismatch), body.Error.TextCode)
		assert.Equal(t, "incorrect email or password", body.Error.Message)
	})
}

func TestControllerRefresh(t *testing.T) {
	fx := newControllerFixture(t)
	fx.seedAccount(t, "ada@example.com", "Passw0rd!")

	pair, err := fx.auther.Login(context.Background(), "ada@example.com", "Passw0rd!")
	require.NoError(t, err)

	t.Run("refresh token", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{"refresh_token": pair.RefreshToken})
		require.NoError(t, fx.controller.Refresh(ctx))

		assert.Equal(t, http.StatusOK, ctx.status)
		got, ok := ctx.payload.(*auth.TokenPair)
		require.True(t, ok)
		assert.Equal(t, pair.RefreshToken, got.RefreshToken)
	})

	t.Run("access token", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{"refresh_token": pair.AccessToken})
		require.NoError(t, fx.controller.Refresh(ctx))

		assert.Equal(t, http.StatusForbidden, ctx.status)
		assert.Equal(t, string(auth.KindForbidden), ctx.errorBody(t).Error.TextCode)
	})

	t.Run("missing token", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{})
		require.NoError(t, fx.controller.Refresh(ctx))

		assert.Equal(t, http.StatusBadRequest, ctx.status)
	})
}

func TestControllerMe(t *testing.T) {
	fx := newControllerFixture(t)
	fx.seedAccount(t, "ada@example.com", "Passw0rd!")

	pair, err := fx.auther.Login(context.Background(), "ada@example.com", "Passw0rd!")
	require.NoError(t, err)

	ctx := newHTTPCtx().withBearer(pair.AccessToken)
	require.NoError(t, fx.authed(ctx, func(c *httpCtx) error { return fx.controller.Me(c) }))

	assert.Equal(t, http.StatusOK, ctx.status)
	res, ok := ctx.payload.(auth.AccountResponse)
	require.True(t, ok, "expected AccountResponse, got %T", ctx.payload)
	assert.Equal(t, int64(42), res.ID)
	assert.Equal(t, "ada@example.com", res.Email)
	assert.Equal(t, "2024-03-01T12:00:00Z", res.LastLogin)
}

func TestControllerMeWithoutPrincipal(t *testing.T) {
	fx := newControllerFixture(t)

	ctx := newHTTPCtx()
	require.NoError(t, fx.controller.Me(ctx))

	assert.Equal(t, http.StatusUnauthorized, ctx.status)
	assert.Equal(t, string(auth.KindMalformed), ctx.errorBody(t).Error.TextCode)
}

func TestControllerChangePassword(t *testing.T) {
	fx := newControllerFixture(t)
	fx.seedAccount(t, "ada@example.com", "Passw0rd!")

	pair, err := fx.auther.Login(context.Background(), "ada@example.com", "Passw0rd!")
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		ctx := newHTTPCtx().
			withBearer(pair.AccessToken).
			withBody(map[string]string{"password": "nope", "new_password": "N3wPassword!"})
		require.NoError(t, fx.authed(ctx, func(c *httpCtx) error { return fx.controller.ChangePassword(c) }))

		assert.Equal(t, http.StatusUnauthorized, ctx.status)
		assert.Nil(t, ctx.sent)
	})

	t.Run("success", func(t *testing.T) {
		ctx := newHTTPCtx().
			withBearer(pair.AccessToken).
			withBody(map[string]string{"password": "Passw0rd!", "new_password": "N3wPassword!"})
		require.NoError(t, fx.authed(ctx, func(c *httpCtx) error { return fx.controller.ChangePassword(c) }))

		assert.Equal(t, http.StatusNoContent, ctx.status)
		require.NotNil(t, ctx.sent)
		assert.Empty(t, *ctx.sent)

		_, err := fx.auther.Login(context.Background(), "ada@example.com", "N3wPassword!")
		assert.NoError(t, err)
	})

	t.Run("no token", func(t *testing.T) {
		ctx := newHTTPCtx().withBody(map[string]string{"password": "x", "new_password": "y"})
		require.NoError(t, fx.authed(ctx, func(c *httpCtx) error { return fx.controller.ChangePassword(c) }))

		assert.False(t, ctx.NextCalled)
		assert.Equal(t, http.StatusUnauthorized, ctx.status)
	})
}

func TestNewAuthControllerRequiresDependencies(t *testing.T) {
	fx := newControllerFixture(t)

	assert.Panics(t, func() {
		auth.NewAuthController(auth.WithRouteAuthenticator(fx.controller.Middleware))
	})
	assert.Panics(t, func() {
		auth.NewAuthController(auth.WithAuthenticator(fx.auther))
	})
}

func TestNewAuthControllerOptions(t *testing.T) {
	fx := newControllerFixture(t)

	c := auth.NewAuthController(
		auth.WithAuthenticator(fx.auther),
		auth.WithRouteAuthenticator(fx.controller.Middleware),
		auth.WithRoutePrefix("/api/v1/auth"),
		auth.WithContextKey("principal"),
	)

	assert.Equal(t, "/api/v1/auth/login", c.Routes.Login)
	assert.Equal(t, "/api/v1/auth/me", c.Routes.Me)
	assert.Equal(t, "principal", c.ContextKey)
	assert.NotNil(t, c.ErrorHandler)
}
