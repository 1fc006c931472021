package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Auther implements Authenticator on top of an AccountStore
type Auther struct {
	store           AccountStore
	hasher          PasswordAuthenticator
	issuer          *TokenIssuer
	verifier        *TokenVerifier
	refresher       *RefreshFlow
	logger          Logger
	clock           Clock
	metrics         Metrics
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
	forgetter       accountForgetter
	dummyHash       func() string
}

// accountForgetter is implemented by resolvers that cache accounts and must
// drop an entry once the stored row changes.
type accountForgetter interface {
	Forget(ctx context.Context, id int64) error
}

var _ Authenticator = (*Auther)(nil)

// dummyHashFor returns the hash compared against when the login email is
// unknown. It comes from the configured hasher so both paths pay the same
// cost.
func dummyHashFor(hasher PasswordAuthenticator) func() string {
	return sync.OnceValue(func() string {
		hash, err := hasher.HashPassword(uuid.NewString())
		if err != nil {
			return RandomPasswordHash()
		}
		return hash
	})
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store AccountStore, opts Config) *Auther {
	issuer := NewTokenIssuer(opts)
	verifier := NewTokenVerifier(opts, store)

	hasher := NewPasswordHasher(opts.GetPasswordCost())

	return &Auther{
		store:           store,
		hasher:          hasher,
		dummyHash:       dummyHashFor(hasher),
		issuer:          issuer,
		verifier:        verifier,
		refresher:       NewRefreshFlow(verifier, issuer),
		logger:          defLogger{},
		clock:           systemClock{},
		metrics:         noopMetrics{},
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	s.issuer.WithLogger(s.logger)
	s.verifier.WithLogger(s.logger)
	s.refresher.WithLogger(s.logger)
	return s
}

func (s *Auther) WithClock(clock Clock) *Auther {
	s.clock = normalizeClock(clock)
	s.issuer.WithClock(s.clock)
	s.verifier.WithClock(s.clock)
	return s
}

func (s *Auther) WithMetrics(metrics Metrics) *Auther {
	s.metrics = normalizeMetrics(metrics)
	s.issuer.WithMetrics(s.metrics)
	s.verifier.WithMetrics(s.metrics)
	s.refresher.WithMetrics(s.metrics)
	return s
}

// WithHasher replaces the password hasher
func (s *Auther) WithHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
		s.dummyHash = dummyHashFor(hasher)
	}
	return s
}

// WithResolver sets the resolver used by Authenticate, e.g. a
// CachedAccountResolver in front of the store.
func (s *Auther) WithResolver(resolver AccountResolver) *Auther {
	s.verifier.WithResolver(resolver)
	s.forgetter, _ = resolver.(accountForgetter)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching access
// tokens minted at login.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// Issuer returns the token issuer
func (s *Auther) Issuer() *TokenIssuer {
	return s.issuer
}

// Verifier returns the token verifier
func (s *Auther) Verifier() *TokenVerifier {
	return s.verifier
}

// Authenticate verifies a bearer token and resolves its account
func (s *Auther) Authenticate(ctx context.Context, bearerToken string) (*Principal, error) {
	return s.verifier.Verify(ctx, bearerToken)
}

// Refresh exchanges a refresh token for a new access token
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, claims, err := s.refresher.Exchange(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	id, _ := claims.AccountID()
	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, id, "", nil)

	return pair, nil
}

func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)
	password = NormalizePassword(password)

	pair, account, err := s.login(ctx, email, password)
	s.metrics.LoginAttempted(KindOf(err))

	if err != nil {
		var id int64
		if account != nil {
			id = account.ID
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, id, email, map[string]any{
			"error": string(KindOf(err)),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, account.ID, account.Email, nil)

	return pair, nil
}

func (s *Auther) login(ctx context.Context, email, password string) (*TokenPair, *Account, error) {
	if err := (LoginRequest{Email: email, Password: password}).Validate(); err != nil {
		return nil, nil, asValidationError(err)
	}

	account, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = s.hasher.ComparePasswordAndHash(password, s.dummyHash())
			return nil, nil, ErrMismatchedHashAndPassword
		}
		s.logger.Error("Login find account error", "error", err)
		return nil, nil, internalError(err)
	}

	if err := s.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, account, ErrMismatchedHashAndPassword
	}

	s.upgradeHash(ctx, account, password)

	extra := map[string]any{}
	if err := s.claimsDecorator.Decorate(ctx, account, extra); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return nil, account, internalError(err)
	}

	subject := strconv.FormatInt(account.ID, 10)

	access, err := s.issuer.IssueAccess(subject, 0, extra)
	if err != nil {
		return nil, account, err
	}

	refresh, err := s.issuer.IssueRefresh(subject)
	if err != nil {
		return nil, account, err
	}

	if err := s.store.TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("Login track last login error", "error", err)
		return nil, account, internalError(err)
	}
	s.forget(ctx, account.ID)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
	}, account, nil
}

// upgradeHash rehashes legacy or weak credentials after a successful verify
func (s *Auther) upgradeHash(ctx context.Context, account *Account, password string) {
	if !s.hasher.NeedsRehash(account.PasswordHash) {
		return
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "account_id", account.ID, "error", err)
		return
	}

	if err := s.store.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.logger.Warn("password rehash store failed", "account_id", account.ID, "error", err)
		return
	}

	account.PasswordHash = hash
}

func (s *Auther) Register(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	password = NormalizePassword(password)

	account, err := s.register(ctx, email, password)
	s.metrics.AccountRegistered(KindOf(err))
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegister, account.ID, account.Email, map[string]any{
		"role": account.Role,
	})

	return account, nil
}

func (s *Auther) register(ctx context.Context, email, password string) (*Account, error) {
	if err := (RegistrationRequest{Email: email, Password: password}).Validate(); err != nil {
		return nil, asValidationError(err)
	}

	_, err := s.store.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateAccount
	case !errors.Is(err, ErrAccountNotFound):
		s.logger.Error("Register find account error", "error", err)
		return nil, internalError(err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		s.logger.Error("Register hash password error", "error", err)
		return nil, internalError(err)
	}

	account, err := s.store.CreateAccount(ctx, &Account{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleStaff,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, ErrDuplicateAccount
		}
		s.logger.Error("Register create account error", "error", err)
		return nil, internalError(err)
	}

	return account, nil
}

// ChangePassword replaces the credential of accountID after checking the
// current password. The new password must satisfy the password policy.
func (s *Auther) ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) error {
	currentPassword = NormalizePassword(currentPassword)
	newPassword = NormalizePassword(newPassword)

	account, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrUnknownUser
		}
		s.logger.Error("ChangePassword find account error", "error", err)
		return internalError(err)
	}

	if err := s.hasher.ComparePasswordAndHash(currentPassword, account.PasswordHash); err != nil {
		return ErrMismatchedHashAndPassword
	}

	req := ChangePasswordRequest{Password: currentPassword, NewPassword: newPassword}
	if err := req.Validate(); err != nil {
		return asValidationError(err)
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("ChangePassword hash password error", "error", err)
		return internalError(err)
	}

	if err := s.store.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		s.logger.Error("ChangePassword update hash error", "error", err)
		return internalError(err)
	}
	s.forget(ctx, account.ID)

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, account.ID, account.Email, nil)

	return nil
}

// forget drops the cached copy of an account after its row changed. A failure
// only leaves the entry to expire with its TTL.
func (s *Auther) forget(ctx context.Context, id int64) {
	if s.forgetter == nil {
		return
	}
	if err := s.forgetter.Forget(ctx, id); err != nil {
		s.logger.Warn("resolver cache forget failed", "account_id", id, "error", err)
	}
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, accountID int64, email string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Email:      email,
		Metadata:   metadata,
		OccurredAt: s.clock.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}
