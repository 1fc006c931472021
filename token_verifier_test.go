package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/orderdesk/go-auth"
)

type verifierFixture struct {
	clock    *testClock
	store    *memoryStore
	issuer   *auth.TokenIssuer
	verifier *auth.TokenVerifier
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()

	clock := newTestClock(t0)
	store := newMemoryStore()
	store.seed(42, "ada@example.com", "unused")

	return &verifierFixture{
		clock:    clock,
		store:    store,
		issuer:   auth.NewTokenIssuer(testOptions()).WithClock(clock),
		verifier: auth.NewTokenVerifier(testOptions(), store).WithClock(clock),
	}
}

// signed encodes claims with the test key, bypassing the issuer
func signed(t *testing.T, claims *auth.ClaimSet, key string) string {
	t.Helper()
	token, err := auth.NewTokenCodec().Encode(claims, []byte(key))
	require.NoError(t, err)
	return token
}

func validClaims() *auth.ClaimSet {
	claims := &auth.ClaimSet{}
	claims.Subject = "42"
	claims.Issuer = "orderdesk"
	claims.Audience = jwt.ClaimStrings{"orderdesk-api"}
	claims.IssuedAt = jwt.NewNumericDate(t0)
	claims.NotBefore = jwt.NewNumericDate(t0)
	claims.ExpiresAt = jwt.NewNumericDate(t0.Add(15 * time.Minute))
	claims.ID = "jti-1"
	return claims
}

func TestTokenVerifierLifetime(t *testing.T) {
	fx := newVerifierFixture(t)

	token, err := fx.issuer.IssueAccess("42", 0, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want auth.Kind
	}{
		{"at issuance", t0, ""},
		{"just before expiry", t0.Add(14*time.Minute + 59*time.Second), ""},
		{"at expiry", t0.Add(15 * time.Minute), ""},
		{"inside leeway", t0.Add(16 * time.Minute), ""},
		{"past leeway", t0.Add(16*time.Minute + time.Second), auth.KindExpired},
		{"within nbf leeway", t0.Add(-60 * time.Second), ""},
		{"before nbf leeway", t0.Add(-61 * time.Second), auth.KindNotYetValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx.clock.Set(tt.at)

			principal, err := fx.verifier.Verify(context.Background(), token)
			if tt.want == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(42), principal.AccountID)
				assert.Equal(t, "ada@example.com", principal.Account.Email)
				assert.Equal(t, "42", principal.Claims.Subject)
				return
			}
			require.Error(t, err)
			assert.Nil(t, principal)
			assert.Equal(t, tt.want, auth.KindOf(err))
		})
	}
}

func TestTokenVerifierZeroLeeway(t *testing.T) {
	clock := newTestClock(t0)
	opts := testOptions().WithLeeway(0).WithDefaults()
	verifier := auth.NewTokenVerifier(opts, newMemoryStore()).WithClock(clock)

	claims := validClaims()
	token := signed(t, claims, opts.SigningKey)

	clock.Set(t0.Add(15*time.Minute + time.Second))
	_, err := verifier.VerifyClaims(token)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))
}

func TestTokenVerifierDefaultLeewayWithoutDefaults(t *testing.T) {
	clock := newTestClock(t0)
	store := newMemoryStore()
	store.seed(42, "ada@example.com", "unused")

	opts := auth.Options{SigningKey: "k", Issuer: "orderdesk", Audience: "orderdesk-api"}
	auther := auth.NewAuthenticator(store, opts).WithClock(clock).WithLogger(&captureLogger{})

	token, err := auther.Issuer().IssueAccess("42", 0, nil)
	require.NoError(t, err)

	clock.Set(t0.Add(15*time.Minute + 30*time.Second))
	principal, err := auther.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), principal.AccountID)

	clock.Set(t0.Add(16*time.Minute + time.Second))
	_, err = auther.Authenticate(context.Background(), token)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))
}

func TestTokenVerifierClaimFailures(t *testing.T) {
	fx := newVerifierFixture(t)
	key := testOptions().SigningKey

	tests := []struct {
		name   string
		mutate func(c *auth.ClaimSet)
		key    string
		want   auth.Kind
	}{
		{"missing sub", func(c *auth.ClaimSet) { c.Subject = "" }, key, auth.KindMissingClaims},
		{"missing exp", func(c *auth.ClaimSet) { c.ExpiresAt = nil }, key, auth.KindMissingClaims},
		{"missing iat", func(c *auth.ClaimSet) { c.IssuedAt = nil }, key, auth.KindMissingClaims},
		{"missing nbf", func(c *auth.ClaimSet) { c.NotBefore = nil }, key, auth.KindMissingClaims},
		{"missing iss", func(c *auth.ClaimSet) { c.Issuer = "" }, key, auth.KindMissingClaims},
		{"missing aud", func(c *auth.ClaimSet) { c.Audience = nil }, key, auth.KindMissingClaims},
		{"wrong issuer", func(c *auth.ClaimSet) { c.Issuer = "someone-else" }, key, auth.KindIssuerAudienceMismatch},
		{"wrong audience", func(c *auth.ClaimSet) { c.Audience = jwt.ClaimStrings{"billing"} }, key, auth.KindIssuerAudienceMismatch},
		{"audience among many", func(c *auth.ClaimSet) { c.Audience = jwt.ClaimStrings{"billing", "orderdesk-api"} }, key, ""},
		{"non numeric subject", func(c *auth.ClaimSet) { c.Subject = "ada" }, key, auth.KindInvalidSubject},
		{"zero subject", func(c *auth.ClaimSet) { c.Subject = "0" }, key, auth.KindInvalidSubject},
		{"negative subject", func(c *auth.ClaimSet) { c.Subject = "-3" }, key, auth.KindInvalidSubject},
		{"unknown subject", func(c *auth.ClaimSet) { c.Subject = "9999" }, key, auth.KindUnknownUser},
		{"wrong key", func(c *auth.ClaimSet) {}, "other-key", auth.KindInvalidSignature},
		{"expired checked before issuer", func(c *auth.ClaimSet) {
			c.Issuer = "someone-else"
			c.ExpiresAt = jwt.NewNumericDate(t0.Add(-time.Hour))
		}, key, auth.KindExpired},
		{"refresh scope accepted", func(c *auth.ClaimSet) { c.Scope = auth.RefreshScope }, key, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)

			principal, err := fx.verifier.Verify(context.Background(), signed(t, claims, tt.key))
			if tt.want == "" {
				require.NoError(t, err)
				assert.NotNil(t, principal)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, auth.KindOf(err))
		})
	}
}

func TestTokenVerifierResolverFailure(t *testing.T) {
	fx := newVerifierFixture(t)
	fx.store.findErr = errors.New("connection reset")

	token, err := fx.issuer.IssueAccess("42", 0, nil)
	require.NoError(t, err)

	_, err = fx.verifier.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))
}

func TestTokenVerifierWithoutResolver(t *testing.T) {
	clock := newTestClock(t0)
	verifier := auth.NewTokenVerifier(testOptions(), nil).WithClock(clock)
	issuer := auth.NewTokenIssuer(testOptions()).WithClock(clock)

	token, err := issuer.IssueAccess("42", 0, nil)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))

	claims, err := verifier.VerifyClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
}

func TestTokenVerifierWithResolver(t *testing.T) {
	fx := newVerifierFixture(t)

	calls := 0
	fx.verifier.WithResolver(auth.AccountResolverFunc(func(_ context.Context, id int64) (*auth.Account, error) {
		calls++
		return &auth.Account{ID: id, Email: "cached@example.com"}, nil
	}))
	fx.verifier.WithResolver(nil)

	token, err := fx.issuer.IssueAccess("42", 0, nil)
	require.NoError(t, err)

	principal, err := fx.verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "cached@example.com", principal.Account.Email)
	assert.Equal(t, 1, calls)
	assert.Zero(t, fx.store.lookups)
}

func TestTokenVerifierRecordsMetrics(t *testing.T) {
	fx := newVerifierFixture(t)
	rec := &metricsRecorder{}
	fx.verifier.WithMetrics(rec)

	token, err := fx.issuer.IssueAccess("42", 0, nil)
	require.NoError(t, err)

	_, _ = fx.verifier.Verify(context.Background(), token)
	_, _ = fx.verifier.Verify(context.Background(), "garbage")

	assert.Equal(t, []auth.Kind{"", auth.KindMalformed}, rec.verified)
}
