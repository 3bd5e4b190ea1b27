package userstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process Store and ConnectionStore.
type Memory struct {
	mu          sync.RWMutex
	policy      LockoutPolicy
	now         func() time.Time
	users       map[string]*User
	byEmail     map[string]string
	connections map[string]*Connection
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithMemoryLockout overrides the lockout policy.
func WithMemoryLockout(p LockoutPolicy) MemoryOption {
	return func(m *Memory) { m.policy = p.withDefaults() }
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		policy:      DefaultLockoutPolicy(),
		now:         time.Now,
		users:       make(map[string]*User),
		byEmail:     make(map[string]string),
		connections: make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func cloneUser(u *User) *User {
	c := *u
	c.Licenses = slices.Clone(u.Licenses)
	if u.LockoutUntil != nil {
		t := *u.LockoutUntil
		c.LockoutUntil = &t
	}
	return &c
}

func cloneConnection(c *Connection) Connection {
	out := *c
	out.Config = maps.Clone(c.Config)
	return out
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) Create(_ context.Context, u User) (*User, error) {
	prepared, err := prepareUser(u, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[prepared.Email]; taken {
		return nil, ErrDuplicateEmail
	}
	prepared.ID = primitive.NewObjectID().Hex()
	m.users[prepared.ID] = &prepared
	m.byEmail[prepared.Email] = prepared.ID
	return cloneUser(&prepared), nil
}

func (m *Memory) update(id string, fn func(u *User, now time.Time)) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	now := m.now().UTC()
	fn(u, now)
	u.UpdatedAt = now
	return cloneUser(u), nil
}

func (m *Memory) TouchLogin(_ context.Context, id string) (*User, error) {
	return m.update(id, func(u *User, now time.Time) {
		u.LastLogin = now
		u.FailedLoginAttempts = 0
		u.LockoutUntil = nil
	})
}

func (m *Memory) UpdateProfile(_ context.Context, id string, patch ProfileUpdate) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	return m.update(id, func(u *User, _ time.Time) { patch.apply(u) })
}

func (m *Memory) RecordLoginFailure(_ context.Context, id string) (*User, error) {
	return m.update(id, func(u *User, now time.Time) {
		u.FailedLoginAttempts, u.LockoutUntil = m.policy.nextFailureState(u.FailedLoginAttempts, u.LockoutUntil, now)
	})
}

func (m *Memory) ResetLoginFailures(_ context.Context, id string) error {
	_, err := m.update(id, func(u *User, _ time.Time) {
		u.FailedLoginAttempts = 0
		u.LockoutUntil = nil
	})
	return err
}

func (m *Memory) ListConnections(_ context.Context, owner string) ([]Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Connection, 0)
	for _, c := range m.connections {
		if c.UserID == owner {
			out = append(out, cloneConnection(c))
		}
	}
	slices.SortFunc(out, func(a, b Connection) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *Memory) CreateConnection(_ context.Context, c Connection) (*Connection, error) {
	prepared, err := prepareConnection(c, m.now())
	if err != nil {
		return nil, err
	}
	prepared.ID = primitive.NewObjectID().Hex()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[prepared.ID] = &prepared
	out := cloneConnection(&prepared)
	return &out, nil
}

func (m *Memory) UpdateConnection(_ context.Context, owner, id string, patch ConnectionPatch) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[id]
	if !ok || c.UserID != owner {
		return nil, ErrConnectionNotFound
	}
	if name := strings.TrimSpace(patch.Name); name != "" {
		c.Name = name
	}
	if patch.Type != "" {
		c.Type = patch.Type
	}
	if patch.Config != nil {
		c.Config = maps.Clone(patch.Config)
	}
	c.UpdatedAt = m.now().UTC()
	out := cloneConnection(c)
	return &out, nil
}

func (m *Memory) DeleteConnection(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.connections[id]
	if !ok || c.UserID != owner {
		return ErrConnectionNotFound
	}
	delete(m.connections, id)
	return nil
}

func prepareUser(u User, now time.Time) (User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return User{}, ErrInvalidEmail
	}
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return User{}, ErrNameRequired
	}
	if len([]rune(u.Bio)) > MaxBioLength {
		return User{}, ErrBioTooLong
	}
	if u.AuthProvider == "" {
		u.AuthProvider = ProviderGoogle
	}
	if len(u.Licenses) == 0 {
		u.Licenses = DefaultLicenses()
	}
	now = now.UTC().Truncate(time.Millisecond)
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.LastLogin.IsZero() {
		u.LastLogin = now
	}
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	return u, nil
}

func prepareConnection(c Connection, now time.Time) (Connection, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return Connection{}, ErrNameRequired
	}
	if c.Type == "" {
		c.Type = DefaultConnectionType
	}
	if c.Config == nil {
		c.Config = map[string]any{}
	}
	now = now.UTC().Truncate(time.Millisecond)
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

var (
	_ Store           = (*Memory)(nil)
	_ ConnectionStore = (*Memory)(nil)
)
