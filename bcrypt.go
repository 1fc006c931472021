package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptSHA256Prefix   = "$bcrypt-sha256$"
	bcryptSaltLen        = 22
	bcryptDigestLen      = 31
	bcryptMaxPasswordLen = 72
	bcryptAlphabet       = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

type hashScheme int

const (
	schemeUnknown hashScheme = iota
	// bcrypt over base64(sha256(password))
	schemeBcryptSHA256V1
	// bcrypt over base64(hmac_sha256(salt, password))
	schemeBcryptSHA256V2
	// plain bcrypt, deprecated
	schemeBcrypt
)

type parsedHash struct {
	scheme hashScheme
	ident  string
	cost   int
	salt   string
	digest string
}

// modular renders the hash in the $2b$12$... form x/crypto understands.
func (p parsedHash) modular() string {
	return fmt.Sprintf("$%s$%02d$%s%s", p.ident, p.cost, p.salt, p.digest)
}

// PasswordHasher hashes passwords with bcrypt-sha256 and verifies hashes
// produced by bcrypt-sha256 (both revisions) or plain bcrypt.
type PasswordHasher struct {
	cost int
}

var _ PasswordAuthenticator = (*PasswordHasher)(nil)

// NewPasswordHasher returns a hasher with the given bcrypt cost. Zero uses
// the build default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the bcrypt cost used for new hashes
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// HashPassword will generate a password hash
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	raw, err := bcrypt.GenerateFromPassword(sha256Key(password), h.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	p, ok := parseBcrypt(string(raw))
	if !ok {
		return "", goerrors.New("unexpected bcrypt output", goerrors.CategoryInternal)
	}

	return fmt.Sprintf("%s%s,%d$%s$%s", bcryptSHA256Prefix, p.ident, p.cost, p.salt, p.digest), nil
}

// VerifyPassword reports whether password matches hash. Malformed hashes
// never match.
func (h *PasswordHasher) VerifyPassword(password, hash string) bool {
	p, ok := parsePasswordHash(hash)
	if !ok {
		return false
	}

	var key []byte
	switch p.scheme {
	case schemeBcryptSHA256V1:
		key = sha256Key(password)
	case schemeBcryptSHA256V2:
		key = hmacSHA256Key(p.salt, password)
	case schemeBcrypt:
		key = []byte(password)
		if len(key) > bcryptMaxPasswordLen {
			key = key[:bcryptMaxPasswordLen]
		}
	default:
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(p.modular()), key) == nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(password, hash string) error {
	if !h.VerifyPassword(password, hash) {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

// NeedsRehash reports whether hash should be replaced with a fresh hash of
// the current scheme and cost.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	p, ok := parsePasswordHash(hash)
	if !ok || p.scheme == schemeBcrypt {
		return true
	}
	return p.cost < h.cost
}

var defaultHasher = NewPasswordHasher(0)

// HashPassword will generate a password hash using the default hasher
func HashPassword(password string) (string, error) {
	return defaultHasher.HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	return defaultHasher.ComparePasswordAndHash(password, hash)
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

func sha256Key(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func hmacSHA256Key(salt, password string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func parsePasswordHash(hash string) (parsedHash, bool) {
	if strings.HasPrefix(hash, bcryptSHA256Prefix) {
		return parseBcryptSHA256(strings.TrimPrefix(hash, bcryptSHA256Prefix))
	}
	return parseBcrypt(hash)
}

// parseBcryptSHA256 handles "2b,12$salt$digest" and "v=2,t=2b,r=12$salt$digest".
func parseBcryptSHA256(s string) (parsedHash, bool) {
	parts := strings.Split(s, "$")
	if len(parts) != 3 {
		return parsedHash{}, false
	}

	p := parsedHash{salt: parts[1], digest: parts[2]}
	if !validBcryptChars(p.salt, bcryptSaltLen) || !validBcryptChars(p.digest, bcryptDigestLen) {
		return parsedHash{}, false
	}

	params := strings.Split(parts[0], ",")
	switch len(params) {
	case 2:
		p.scheme = schemeBcryptSHA256V1
		p.ident = params[0]
		cost, err := strconv.Atoi(params[1])
		if err != nil {
			return parsedHash{}, false
		}
		p.cost = cost
	case 3:
		p.scheme = schemeBcryptSHA256V2
		if params[0] != "v=2" {
			return parsedHash{}, false
		}
		ident, ok := strings.CutPrefix(params[1], "t=")
		if !ok {
			return parsedHash{}, false
		}
		rounds, ok := strings.CutPrefix(params[2], "r=")
		if !ok {
			return parsedHash{}, false
		}
		cost, err := strconv.Atoi(rounds)
		if err != nil {
			return parsedHash{}, false
		}
		p.ident = ident
		p.cost = cost
	default:
		return parsedHash{}, false
	}

	if !validBcryptIdent(p.ident) || p.cost < bcrypt.MinCost || p.cost > bcrypt.MaxCost {
		return parsedHash{}, false
	}

	return p, true
}

// parseBcrypt handles "$2b$12$<salt><digest>".
func parseBcrypt(s string) (parsedHash, bool) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 || parts[0] != "" {
		return parsedHash{}, false
	}

	if !validBcryptIdent(parts[1]) || len(parts[2]) != 2 {
		return parsedHash{}, false
	}

	cost, err := strconv.Atoi(parts[2])
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return parsedHash{}, false
	}

	rest := parts[3]
	if !validBcryptChars(rest, bcryptSaltLen+bcryptDigestLen) {
		return parsedHash{}, false
	}

	return parsedHash{
		scheme: schemeBcrypt,
		ident:  parts[1],
		cost:   cost,
		salt:   rest[:bcryptSaltLen],
		digest: rest[bcryptSaltLen:],
	}, true
}

func validBcryptIdent(ident string) bool {
	switch ident {
	case "2a", "2b", "2y":
		return true
	}
	return false
}

func validBcryptChars(s string, size int) bool {
	if len(s) != size {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(bcryptAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
