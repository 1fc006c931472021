package auth

import (
	"context"
	"strings"
)

// RefreshFlow exchanges a refresh token for a new access token. The refresh
// token itself is returned unchanged and stays usable until it expires.
type RefreshFlow struct {
	verifier *TokenVerifier
	issuer   *TokenIssuer
	logger   Logger
	metrics  Metrics
}

// NewRefreshFlow creates a refresh flow
func NewRefreshFlow(verifier *TokenVerifier, issuer *TokenIssuer) *RefreshFlow {
	return &RefreshFlow{
		verifier: verifier,
		issuer:   issuer,
		logger:   defLogger{},
		metrics:  noopMetrics{},
	}
}

func (f *RefreshFlow) WithLogger(logger Logger) *RefreshFlow {
	f.logger = normalizeLogger(logger)
	return f
}

func (f *RefreshFlow) WithMetrics(metrics Metrics) *RefreshFlow {
	f.metrics = normalizeMetrics(metrics)
	return f
}

// Refresh validates refreshToken and issues a fresh access token for its subject
func (f *RefreshFlow) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, _, err := f.Exchange(ctx, refreshToken)
	return pair, err
}

// Exchange is Refresh that also returns the verified refresh token claims
func (f *RefreshFlow) Exchange(ctx context.Context, refreshToken string) (*TokenPair, *ClaimSet, error) {
	pair, claims, err := f.exchange(ctx, refreshToken)
	f.metrics.TokenRefreshed(KindOf(err))
	return pair, claims, err
}

func (f *RefreshFlow) exchange(_ context.Context, refreshToken string) (*TokenPair, *ClaimSet, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, nil, validationError("refresh token required", map[string]string{
			"refresh_token": "cannot be blank",
		})
	}

	claims, err := f.verifier.VerifyClaims(refreshToken)
	if err != nil {
		f.logger.Debug("refresh token rejected", "error", err)
		return nil, nil, err
	}

	if !claims.IsRefresh() {
		f.logger.Debug("refresh attempted with non refresh token", "sub", claims.Subject)
		return nil, nil, ErrRefreshScopeRequired
	}

	access, err := f.issuer.IssueAccess(claims.Subject, 0, nil)
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
	}, claims, nil
}
