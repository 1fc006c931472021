package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 128
	EmailMaxLength    = 255
)

var (
	upperRx  = regexp.MustCompile(`[A-Z]`)
	lowerRx  = regexp.MustCompile(`[a-z]`)
	symbolRx = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// PasswordRules is the password policy applied to new passwords
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(PasswordMinLength, PasswordMaxLength),
		validation.Match(upperRx).Error("must contain an uppercase letter"),
		validation.Match(lowerRx).Error("must contain a lowercase letter"),
		validation.Match(symbolRx).Error("must contain a symbol"),
	}
}

// EmailRules validates an email address format. MX records are not checked.
func EmailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(3, EmailMaxLength),
		is.Email,
	}
}

// NormalizeEmail trims the address and lowercases its domain
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// NormalizePassword strips surrounding whitespace before a password is
// validated, hashed or compared
func NormalizePassword(password string) string {
	return strings.TrimSpace(password)
}

// RegistrationRequest payload
type RegistrationRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegistrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, EmailRules()...),
		validation.Field(&r.Password, PasswordRules()...),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules. The password policy is not applied
// so accounts created under an older policy can still sign in.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, EmailRules()...),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	Password    string `form:"password" json:"password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.NewPassword, PasswordRules()...),
	)
}

// asValidationError turns ozzo validation errors into a KindValidation error
func asValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for name, ferr := range verrs {
			if ferr != nil {
				fields[name] = ferr.Error()
			}
		}
		return validationError("invalid input", fields)
	}

	return validationError(err.Error(), nil)
}
