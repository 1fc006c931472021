package auth

import "context"

// ClaimsDecorator adds private claims to access tokens minted at login.
// Reserved claim names written to extra are dropped by the issuer.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, account *Account, extra map[string]any) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, account *Account, extra map[string]any) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, account *Account, extra map[string]any) error {
	if f == nil {
		return nil
	}
	return f(ctx, account, extra)
}

// RoleClaimsDecorator writes the account role under the "role" claim
type RoleClaimsDecorator struct{}

func (RoleClaimsDecorator) Decorate(_ context.Context, account *Account, extra map[string]any) error {
	if account != nil && account.Role != "" {
		extra["role"] = account.Role
	}
	return nil
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *Account, map[string]any) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
