package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind classifies an authentication failure. Kinds are carried as the
// TextCode of the returned *goerrors.Error.
type Kind string

const (
	KindMalformed              Kind = "auth_token_malformed"
	KindInvalidSignature       Kind = "auth_token_invalid_signature"
	KindUnsupportedAlgorithm   Kind = "auth_token_unsupported_algorithm"
	KindExpired                Kind = "auth_token_expired"
	KindNotYetValid            Kind = "auth_token_not_yet_valid"
	KindMissingClaims          Kind = "auth_token_missing_claims"
	KindIssuerAudienceMismatch Kind = "auth_token_issuer_audience_mismatch"
	KindInvalidSubject         Kind = "auth_token_invalid_subject"
	KindUnknownUser            Kind = "auth_unknown_user"
	KindForbidden              Kind = "auth_forbidden"
	KindCredentialMismatch     Kind = "auth_credential_mismatch"
	KindDuplicateAccount       Kind = "auth_duplicate_account"
	KindValidation             Kind = "auth_validation"
	KindInternal               Kind = "auth_internal"
)

// StatusClass is the transport independent status of a failure.
type StatusClass string

const (
	ClassUnauthorized StatusClass = "unauthorized"
	ClassForbidden    StatusClass = "forbidden"
	ClassNotFound     StatusClass = "not-found"
	ClassBadRequest   StatusClass = "bad-request"
	ClassServerError  StatusClass = "server-error"
)

// Code returns the HTTP status code for the class
func (c StatusClass) Code() int {
	switch c {
	case ClassUnauthorized:
		return http.StatusUnauthorized
	case ClassForbidden:
		return http.StatusForbidden
	case ClassNotFound:
		return http.StatusNotFound
	case ClassBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Class returns the status class of the kind. Unknown kinds are server errors.
func (k Kind) Class() StatusClass {
	switch k {
	case KindMalformed, KindInvalidSignature, KindUnsupportedAlgorithm,
		KindExpired, KindNotYetValid, KindMissingClaims,
		KindIssuerAudienceMismatch, KindInvalidSubject, KindCredentialMismatch:
		return ClassUnauthorized
	case KindForbidden:
		return ClassForbidden
	case KindUnknownUser:
		return ClassNotFound
	case KindDuplicateAccount, KindValidation:
		return ClassBadRequest
	default:
		return ClassServerError
	}
}

func (k Kind) known() bool {
	switch k {
	case KindMalformed, KindInvalidSignature, KindUnsupportedAlgorithm,
		KindExpired, KindNotYetValid, KindMissingClaims,
		KindIssuerAudienceMismatch, KindInvalidSubject, KindUnknownUser,
		KindForbidden, KindCredentialMismatch, KindDuplicateAccount,
		KindValidation, KindInternal:
		return true
	}
	return false
}

// ErrTokenMalformed is returned when a token can not be split or decoded
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(string(KindMalformed)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidSignature is returned when the HMAC signature does not match
var ErrTokenInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindInvalidSignature)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenUnsupportedAlgorithm is returned when the header declares an algorithm other than HS256
var ErrTokenUnsupportedAlgorithm = goerrors.New("token signing algorithm is not supported", goerrors.CategoryAuth).
	WithTextCode(string(KindUnsupportedAlgorithm)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when exp is in the past beyond the leeway
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(string(KindExpired)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenNotYetValid is returned when nbf is in the future beyond the leeway
var ErrTokenNotYetValid = goerrors.New("token is not valid yet", goerrors.CategoryAuth).
	WithTextCode(string(KindNotYetValid)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMissingClaims is returned when a required claim is absent
var ErrTokenMissingClaims = goerrors.New("token is missing required claims", goerrors.CategoryAuth).
	WithTextCode(string(KindMissingClaims)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenIssuerAudience is returned when iss or aud do not match configuration
var ErrTokenIssuerAudience = goerrors.New("token issuer or audience mismatch", goerrors.CategoryAuth).
	WithTextCode(string(KindIssuerAudienceMismatch)).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidSubject is returned when sub is not a positive account id
var ErrTokenInvalidSubject = goerrors.New("token subject is invalid", goerrors.CategoryAuth).
	WithTextCode(string(KindInvalidSubject)).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownUser is returned when the token subject has no account
var ErrUnknownUser = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(string(KindUnknownUser)).
	WithCode(goerrors.CodeNotFound)

// ErrRefreshScopeRequired is returned when a token without the refresh
// scope is exchanged for an access token
var ErrRefreshScopeRequired = goerrors.New("invalid refresh token", goerrors.CategoryAuthz).
	WithTextCode(string(KindForbidden)).
	WithCode(goerrors.CodeForbidden)

// ErrMismatchedHashAndPassword is returned on login with wrong credentials
var ErrMismatchedHashAndPassword = goerrors.New("incorrect email or password", goerrors.CategoryAuth).
	WithTextCode(string(KindCredentialMismatch)).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateAccount is returned when registering an email already in use
var ErrDuplicateAccount = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(string(KindDuplicateAccount)).
	WithCode(goerrors.CodeBadRequest)

// ErrValidation is the base error for rejected input
var ErrValidation = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(string(KindValidation)).
	WithCode(goerrors.CodeBadRequest)

// ErrInternal is the generic error callers see for dependency failures
var ErrInternal = goerrors.New("internal server error", goerrors.CategoryInternal).
	WithTextCode(string(KindInternal)).
	WithCode(goerrors.CodeInternal)

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(string(KindValidation)).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound is returned by account stores when no row matches
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode("account_not_found").
	WithCode(goerrors.CodeNotFound)

// ErrAccountExists is returned by account stores on a unique email violation
var ErrAccountExists = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode("account_exists").
	WithCode(goerrors.CodeConflict)

// KindOf returns the failure kind carried by err. Errors that were not
// produced by this package are reported as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if k := Kind(richErr.TextCode); k.known() {
			return k
		}
	}

	return KindInternal
}

// ClassOf returns the status class for err
func ClassOf(err error) StatusClass {
	if err == nil {
		return ""
	}
	return KindOf(err).Class()
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return err != nil && KindOf(err) == KindExpired
}

// IsMalformedError will check for tokens that could not be decoded
func IsMalformedError(err error) bool {
	return err != nil && KindOf(err) == KindMalformed
}

// internalError hides cause behind the generic internal error.
func internalError(cause error) *goerrors.Error {
	clone := ErrInternal.Clone()
	if clone == nil {
		clone = goerrors.New(ErrInternal.Message, goerrors.CategoryInternal).
			WithTextCode(string(KindInternal)).
			WithCode(goerrors.CodeInternal)
	}
	clone.Source = cause
	return clone
}

// validationError carries per field messages in the error metadata.
func validationError(message string, fields map[string]string) *goerrors.Error {
	clone := ErrValidation.Clone()
	if clone == nil {
		clone = goerrors.New(ErrValidation.Message, goerrors.CategoryValidation).
			WithTextCode(string(KindValidation)).
			WithCode(goerrors.CodeBadRequest)
	}
	if message != "" {
		clone.Message = message
	}
	if len(fields) > 0 {
		clone.WithMetadata(map[string]any{
			"fields": fields,
		})
	}
	return clone
}
