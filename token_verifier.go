package auth

import (
	"context"
	"errors"
	"slices"
	"time"
)

// TokenVerifier validates bearer tokens and resolves their subject
type TokenVerifier struct {
	codec    *TokenCodec
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	resolver AccountResolver
	clock    Clock
	logger   Logger
	metrics  Metrics
}

// NewTokenVerifier creates a verifier. resolver confirms the token subject
// still exists.
func NewTokenVerifier(cfg Config, resolver AccountResolver) *TokenVerifier {
	leeway := cfg.GetLeeway()
	if leeway < 0 {
		leeway = 0
	}

	return &TokenVerifier{
		codec:    NewTokenCodec(),
		secret:   []byte(cfg.GetSigningKey()),
		issuer:   cfg.GetIssuer(),
		audience: cfg.GetAudience(),
		leeway:   leeway,
		resolver: resolver,
		clock:    systemClock{},
		logger:   defLogger{},
		metrics:  noopMetrics{},
	}
}

func (v *TokenVerifier) WithClock(clock Clock) *TokenVerifier {
	v.clock = normalizeClock(clock)
	return v
}

func (v *TokenVerifier) WithLogger(logger Logger) *TokenVerifier {
	v.logger = normalizeLogger(logger)
	return v
}

func (v *TokenVerifier) WithMetrics(metrics Metrics) *TokenVerifier {
	v.metrics = normalizeMetrics(metrics)
	return v
}

// WithResolver swaps the account resolver, e.g. for a CachedAccountResolver
func (v *TokenVerifier) WithResolver(resolver AccountResolver) *TokenVerifier {
	if resolver != nil {
		v.resolver = resolver
	}
	return v
}

// Verify runs the full verification of an access token: signature, required
// claims, temporal window, issuer and audience, subject format and account
// lookup. Scope is not enforced.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	principal, err := v.verify(ctx, token)
	v.metrics.TokenVerified(KindOf(err))
	return principal, err
}

func (v *TokenVerifier) verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.VerifyClaims(token)
	if err != nil {
		return nil, err
	}

	id, ok := claims.AccountID()
	if !ok {
		v.logger.Debug("token subject is not an account id", "sub", claims.Subject)
		return nil, ErrTokenInvalidSubject
	}

	if v.resolver == nil {
		return nil, internalError(errors.New("token verifier has no account resolver"))
	}

	account, err := v.resolver.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUnknownUser
		}
		v.logger.Error("token verifier account lookup failed", "account_id", id, "error", err)
		return nil, internalError(err)
	}

	if account == nil {
		return nil, ErrUnknownUser
	}

	return &Principal{
		AccountID: id,
		Account:   account,
		Claims:    claims,
	}, nil
}

// VerifyClaims checks signature, required claims, temporal window and
// issuer/audience without touching the account store.
func (v *TokenVerifier) VerifyClaims(token string) (*ClaimSet, error) {
	claims, err := v.codec.Decode(token, v.secret)
	if err != nil {
		return nil, err
	}

	if missing := claims.missingClaims(); len(missing) > 0 {
		v.logger.Debug("token is missing claims", "claims", missing)
		return nil, ErrTokenMissingClaims
	}

	now := v.clock.Now().Unix()
	leeway := int64(v.leeway / time.Second)

	if now > claims.ExpiresAt.Unix()+leeway {
		return nil, ErrTokenExpired
	}

	if now < claims.NotBefore.Unix()-leeway {
		return nil, ErrTokenNotYetValid
	}

	if claims.Issuer != v.issuer || !slices.Contains(claims.Audience, v.audience) {
		return nil, ErrTokenIssuerAudience
	}

	return claims, nil
}
