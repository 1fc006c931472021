package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultLeeway          = 60 * time.Second
	DefaultPasswordCost    = 12
	DefaultContextKey      = "user"
	DefaultTokenLookup     = "header:Authorization"
	DefaultAuthScheme      = "Bearer"
)

// Options is the struct implementation of Config
type Options struct {
	SigningKey      string        `koanf:"signing_key" json:"signing_key"`
	SigningMethod   string        `koanf:"signing_method" json:"signing_method"`
	Issuer          string        `koanf:"issuer" json:"issuer"`
	Audience        string        `koanf:"audience" json:"audience"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl" json:"refresh_token_ttl"`
	PasswordCost    int           `koanf:"password_cost" json:"password_cost"`
	ContextKey      string        `koanf:"context_key" json:"context_key"`
	TokenLookup     string        `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme      string        `koanf:"auth_scheme" json:"auth_scheme"`

	// Leeway is the clock skew tolerated on exp and nbf. Nil means
	// DefaultLeeway, an explicit zero disables it.
	Leeway *time.Duration `koanf:"leeway" json:"leeway,omitempty"`
}

var _ Config = Options{}

// DefaultOptions returns options with every default applied. Signing key,
// issuer and audience still need to be provided.
func DefaultOptions() Options {
	return Options{}.WithDefaults()
}

// WithDefaults fills zero values with package defaults
func (o Options) WithDefaults() Options {
	if o.SigningMethod == "" {
		o.SigningMethod = jwt.SigningMethodHS256.Alg()
	}
	if o.AccessTokenTTL == 0 {
		o.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if o.RefreshTokenTTL == 0 {
		o.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if o.PasswordCost == 0 {
		o.PasswordCost = DefaultPasswordCost
	}
	if o.ContextKey == "" {
		o.ContextKey = DefaultContextKey
	}
	if o.TokenLookup == "" {
		o.TokenLookup = DefaultTokenLookup
	}
	if o.AuthScheme == "" {
		o.AuthScheme = DefaultAuthScheme
	}
	return o
}

// Validate will run validation rules
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required),
		validation.Field(&o.SigningMethod, validation.Required, validation.In(jwt.SigningMethodHS256.Alg())),
		validation.Field(&o.Issuer, validation.Required),
		validation.Field(&o.Audience, validation.Required),
		validation.Field(&o.AccessTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.RefreshTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.Leeway, validation.Min(time.Duration(0))),
		validation.Field(&o.PasswordCost, validation.Min(4), validation.Max(31)),
	)
}

func (o Options) GetSigningKey() string { return o.SigningKey }
func (o Options) GetSigningMethod() string { return o.SigningMethod }
func (o Options) GetIssuer() string { return o.Issuer }
func (o Options) GetAudience() string { return o.Audience }
func (o Options) GetAccessTokenTTL() time.Duration { return o.AccessTokenTTL }
func (o Options) GetRefreshTokenTTL() time.Duration { return o.RefreshTokenTTL }

func (o Options) GetLeeway() time.Duration {
	if o.Leeway == nil {
		return DefaultLeeway
	}
	return *o.Leeway
}

// WithLeeway returns a copy with an explicit leeway, zero included
func (o Options) WithLeeway(leeway time.Duration) Options {
	o.Leeway = &leeway
	return o
}

func (o Options) GetPasswordCost() int { return o.PasswordCost }
func (o Options) GetContextKey() string { return o.ContextKey }
func (o Options) GetTokenLookup() string { return o.TokenLookup }
func (o Options) GetAuthScheme() string { return o.AuthScheme }
