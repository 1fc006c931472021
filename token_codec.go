package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenCodec encodes claim sets into compact HS256 tokens and decodes them
// back. The signature is checked before the payload is parsed, so any change
// to the payload segment surfaces as ErrTokenInvalidSignature.
type TokenCodec struct {
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
}

// NewTokenCodec returns a codec for HS256 tokens
func NewTokenCodec() *TokenCodec {
	return &TokenCodec{
		method: jwt.SigningMethodHS256,
		parser: jwt.NewParser(jwt.WithStrictDecoding()),
	}
}

// Encode signs claims with secret
func (c *TokenCodec) Encode(claims *ClaimSet, secret []byte) (string, error) {
	if claims == nil {
		return "", internalError(goerrors.New("claims must not be nil", goerrors.CategoryInternal))
	}

	if len(secret) == 0 {
		return "", internalError(goerrors.New("signing key must not be empty", goerrors.CategoryInternal))
	}

	token := jwt.NewWithClaims(c.method, claims.mapClaims())

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", internalError(goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT"))
	}

	return signed, nil
}

// Decode verifies the token signature with secret and returns its claims
func (c *TokenCodec) Decode(token string, secret []byte) (*ClaimSet, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	headerBytes, err := c.parser.DecodeSegment(parts[0])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil || header == nil {
		return nil, ErrTokenMalformed
	}

	if alg, _ := header["alg"].(string); alg != c.method.Alg() {
		return nil, ErrTokenUnsupportedAlgorithm
	}

	signature, err := c.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrTokenInvalidSignature
	}

	if len(secret) == 0 {
		return nil, internalError(goerrors.New("signing key must not be empty", goerrors.CategoryInternal))
	}

	if err := c.method.Verify(parts[0]+"."+parts[1], signature, secret); err != nil {
		return nil, ErrTokenInvalidSignature
	}

	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, ErrTokenMalformed
	}

	return decodeClaims(payload)
}

// decodeClaims splits the payload into registered claims and extras. Claim
// names are matched exactly, so "SUB" or "Scope" stay in Extra.
func decodeClaims(payload []byte) (*ClaimSet, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, ErrTokenMalformed
	}

	claims := &ClaimSet{}
	reserved := make(map[string]any, len(reservedClaims))
	for k, v := range raw {
		if IsReservedClaim(k) {
			reserved[k] = v
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[k] = v
	}

	reservedJSON, err := json.Marshal(reserved)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	var registered struct {
		jwt.RegisteredClaims
		Scope string `json:"scope"`
	}
	if err := json.Unmarshal(reservedJSON, &registered); err != nil {
		return nil, ErrTokenMalformed
	}

	claims.RegisteredClaims = registered.RegisteredClaims
	claims.Scope = registered.Scope

	return claims, nil
}
