package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	auth "github.com/orderdesk/go-auth"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testOptions() auth.Options {
	return auth.Options{
		SigningKey:   "test-signing-key",
		Issuer:       "orderdesk",
		Audience:     "orderdesk-api",
		PasswordCost: 4,
	}.WithDefaults()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryStore is an in memory AccountStore
type memoryStore struct {
	mu        sync.Mutex
	accounts  map[int64]*auth.Account
	nextID    int64
	findErr   error
	createErr error
	trackErr  error
	updateErr error
	updates   []int64
	lookups   int
}

var _ auth.AccountStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: map[int64]*auth.Account{},
		nextID:   1,
	}
}

// seed stores an account with the given id and credential hash
func (s *memoryStore) seed(id int64, email, hash string) *auth.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &auth.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleStaff,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	s.accounts[id] = a
	if id >= s.nextID {
		s.nextID = id + 1
	}
	clone := *a
	return &clone
}

func (s *memoryStore) get(id int64) *auth.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	clone := *a
	return &clone
}

func (s *memoryStore) FindAccountByID(_ context.Context, id int64) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *memoryStore) FindAccountByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			clone := *a
			return &clone, nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (s *memoryStore) CreateAccount(_ context.Context, account *auth.Account) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return nil, auth.ErrAccountExists
		}
	}
	account.ID = s.nextID
	s.nextID++
	account.CreatedAt = t0
	account.UpdatedAt = t0
	clone := *account
	s.accounts[account.ID] = &clone
	return account, nil
}

func (s *memoryStore) TrackSuccessfulLogin(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackErr != nil {
		return s.trackErr
	}
	a, ok := s.accounts[account.ID]
	if !ok {
		return auth.ErrAccountNotFound
	}
	now := t0
	a.LastLogin = &now
	account.LastLogin = &now
	return nil
}

func (s *memoryStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.accounts[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	a.PasswordHash = hash
	s.updates = append(s.updates, id)
	return nil
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func (l *captureLogger) levels(level string) []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]logCall, 0)
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c)
		}
	}
	return out
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
	err    error
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// metricsRecorder counts outcomes per method
type metricsRecorder struct {
	mu       sync.Mutex
	issued   []string
	verified []auth.Kind
	logins   []auth.Kind
	register []auth.Kind
	refresh  []auth.Kind
}

func (m *metricsRecorder) TokenIssued(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued = append(m.issued, kind)
}

func (m *metricsRecorder) TokenVerified(kind auth.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified = append(m.verified, kind)
}

func (m *metricsRecorder) LoginAttempted(kind auth.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, kind)
}

func (m *metricsRecorder) AccountRegistered(kind auth.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register = append(m.register, kind)
}

func (m *metricsRecorder) TokenRefreshed(kind auth.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, kind)
}
