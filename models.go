package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// AccountRole is the account's role
type AccountRole = string

const (
	// RoleStaff is the default role for registered accounts
	RoleStaff AccountRole = "staff"
	// RoleAdmin can manage other accounts
	RoleAdmin AccountRole = "admin"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	Email         string      `bun:"email,notnull,unique,type:varchar(255)" json:"email"`
	PasswordHash  string      `bun:"password_hash,notnull" json:"-"`
	Role          AccountRole `bun:"role,notnull,default:'staff'" json:"role"`
	CreatedAt     time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	LastLogin     *time.Time  `bun:"last_login,nullzero" json:"last_login,omitempty"`
}

// IsAdmin reports whether the account has the admin role
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

func prepareAccountDefaults(a *Account, now time.Time) {
	if a == nil {
		return
	}
	if a.Role == "" {
		a.Role = RoleStaff
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
}
