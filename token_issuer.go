package auth

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// TokenIssuer builds and signs access and refresh tokens
type TokenIssuer struct {
	codec      *TokenCodec
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
	logger     Logger
	metrics    Metrics
}

// NewTokenIssuer creates a new TokenIssuer from configuration
func NewTokenIssuer(cfg Config) *TokenIssuer {
	accessTTL := cfg.GetAccessTokenTTL()
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}

	refreshTTL := cfg.GetRefreshTokenTTL()
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	return &TokenIssuer{
		codec:      NewTokenCodec(),
		secret:     []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      systemClock{},
		logger:     defLogger{},
		metrics:    noopMetrics{},
	}
}

func (i *TokenIssuer) WithClock(clock Clock) *TokenIssuer {
	i.clock = normalizeClock(clock)
	return i
}

func (i *TokenIssuer) WithLogger(logger Logger) *TokenIssuer {
	i.logger = normalizeLogger(logger)
	return i
}

func (i *TokenIssuer) WithMetrics(metrics Metrics) *TokenIssuer {
	i.metrics = normalizeMetrics(metrics)
	return i
}

// AccessTTL returns the default lifetime of access tokens
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccess signs an access token for subject. A zero ttl uses the
// configured access token lifetime.
func (i *TokenIssuer) IssueAccess(subject string, ttl time.Duration, extra map[string]any) (string, error) {
	if ttl == 0 {
		ttl = i.accessTTL
	}
	return i.Issue(subject, "", ttl, extra)
}

// IssueRefresh signs a refresh scoped token for subject
func (i *TokenIssuer) IssueRefresh(subject string) (string, error) {
	return i.Issue(subject, RefreshScope, i.refreshTTL, nil)
}

// Issue builds and signs a claim set
func (i *TokenIssuer) Issue(subject, scope string, ttl time.Duration, extra map[string]any) (string, error) {
	claims, err := i.BuildClaims(subject, scope, ttl, extra)
	if err != nil {
		return "", err
	}

	token, err := i.codec.Encode(claims, i.secret)
	if err != nil {
		i.logger.Error("token issuer failed to sign claims", "error", err)
		return "", err
	}

	kind := TokenKindAccess
	if claims.IsRefresh() {
		kind = TokenKindRefresh
	}
	i.metrics.TokenIssued(kind)

	return token, nil
}

// BuildClaims returns the claim set Issue would sign
func (i *TokenIssuer) BuildClaims(subject, scope string, ttl time.Duration, extra map[string]any) (*ClaimSet, error) {
	if subject == "" {
		return nil, validationError("token subject is required", nil)
	}

	if ttl < time.Second {
		return nil, validationError("token TTL must be at least one second", nil)
	}

	now := i.clock.Now()

	claims := &ClaimSet{Scope: scope}
	claims.Subject = subject
	claims.Issuer = i.issuer
	claims.Audience = []string{i.audience}
	claims.IssuedAt = numericDate(now)
	claims.NotBefore = numericDate(now)
	claims.ExpiresAt = numericDate(now.Add(ttl))
	claims.ID = uuid.NewString()

	if len(extra) > 0 {
		claims.Extra = make(map[string]any, len(extra))
		maps.Copy(claims.Extra, extra)
		for name := range claims.Extra {
			if IsReservedClaim(name) {
				i.logger.Debug("dropping reserved extra claim", "claim", name)
				delete(claims.Extra, name)
			}
		}
	}

	return claims, nil
}
