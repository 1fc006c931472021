package auth

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshScope is the scope claim value that marks refresh tokens
const RefreshScope = "refresh"

const claimScope = "scope"

var reservedClaims = map[string]struct{}{
	"sub":      {},
	"iss":      {},
	"aud":      {},
	"iat":      {},
	"nbf":      {},
	"exp":      {},
	"jti":      {},
	claimScope: {},
}

// IsReservedClaim reports whether name is managed by the issuer and can not
// be set through extra claims
func IsReservedClaim(name string) bool {
	_, ok := reservedClaims[name]
	return ok
}

// ClaimSet is the payload signed into a token
type ClaimSet struct {
	jwt.RegisteredClaims
	// Scope is empty for access tokens and RefreshScope for refresh tokens
	Scope string
	// Extra holds non reserved claims. After decoding, numbers are
	// json.Number so large integers keep their precision. Use Int64 or
	// Float64 on the value, or ClaimInt64.
	Extra map[string]any
}

// IsRefresh reports whether the claim set carries the refresh scope
func (c *ClaimSet) IsRefresh() bool {
	return c != nil && c.Scope == RefreshScope
}

// AccountID parses the subject as a positive account id
func (c *ClaimSet) AccountID() (int64, bool) {
	if c == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Get returns an extra claim
func (c *ClaimSet) Get(name string) (any, bool) {
	if c == nil || c.Extra == nil {
		return nil, false
	}
	v, ok := c.Extra[name]
	return v, ok
}

// ClaimInt64 returns an integral extra claim, whether it was set in code or
// decoded from a token
func (c *ClaimSet) ClaimInt64(name string) (int64, bool) {
	v, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// missingClaims lists the required claims that are absent.
func (c *ClaimSet) missingClaims() []string {
	missing := make([]string, 0)
	if c.Subject == "" {
		missing = append(missing, "sub")
	}
	if c.ExpiresAt == nil {
		missing = append(missing, "exp")
	}
	if c.IssuedAt == nil {
		missing = append(missing, "iat")
	}
	if c.NotBefore == nil {
		missing = append(missing, "nbf")
	}
	if c.Issuer == "" {
		missing = append(missing, "iss")
	}
	if len(c.Audience) == 0 {
		missing = append(missing, "aud")
	}
	return missing
}

// mapClaims flattens the claim set. Reserved claims are written after the
// extras so they always win.
func (c *ClaimSet) mapClaims() jwt.MapClaims {
	m := make(jwt.MapClaims, len(c.Extra)+8)
	for k, v := range c.Extra {
		m[k] = v
	}

	setString := func(name, value string) {
		if value == "" {
			delete(m, name)
			return
		}
		m[name] = value
	}
	setDate := func(name string, value *jwt.NumericDate) {
		if value == nil {
			delete(m, name)
			return
		}
		m[name] = value.Unix()
	}

	setString("sub", c.Subject)
	setString("iss", c.Issuer)
	setString("jti", c.ID)
	setString(claimScope, c.Scope)
	setDate("iat", c.IssuedAt)
	setDate("nbf", c.NotBefore)
	setDate("exp", c.ExpiresAt)

	switch len(c.Audience) {
	case 0:
		delete(m, "aud")
	case 1:
		m["aud"] = c.Audience[0]
	default:
		m["aud"] = []string(c.Audience)
	}

	return m
}

// numericDate builds a whole second NumericDate
func numericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(time.Unix(t.Unix(), 0))
}
