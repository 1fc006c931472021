package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock provides the current time to issuance and verification
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now satisfies the Clock interface.
func (f ClockFunc) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return systemClock{}
	}
	return c
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (*Principal, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Register(ctx context.Context, email, password string) (*Account, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) error
}

// AccountResolver confirms that the account referenced by a token subject
// still exists. Implementations return ErrAccountNotFound when it does not.
type AccountResolver interface {
	FindAccountByID(ctx context.Context, id int64) (*Account, error)
}

// AccountResolverFunc adapts a function into an AccountResolver.
type AccountResolverFunc func(ctx context.Context, id int64) (*Account, error)

// FindAccountByID satisfies the AccountResolver interface.
func (f AccountResolverFunc) FindAccountByID(ctx context.Context, id int64) (*Account, error) {
	return f(ctx, id)
}

// AccountStore is the persistence boundary used by login and registration
type AccountStore interface {
	AccountResolver
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) (*Account, error)
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// PasswordAuthenticator hashes and verifies passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
	NeedsRehash(hash string) bool
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetLeeway() time.Duration
	GetPasswordCost() int
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
}

// TokenPair is returned by login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// TokenTypeBearer is the only token type we issue
const TokenTypeBearer = "bearer"

// Principal is the verified identity behind an access token
type Principal struct {
	AccountID int64
	Account   *Account
	Claims    *ClaimSet
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
