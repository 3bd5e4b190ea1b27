package userstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func strPtr(s string) *string { return &s }

// testStoreContract runs the behaviour every Store implementation must share.
func testStoreContract(t *testing.T, s Store, clock *testClock) {
	t.Helper()
	ctx := context.Background()

	created, err := s.Create(ctx, User{Name: " Ada ", Email: "  Ada@Example.COM "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if created.Email != "ada@example.com" || created.Name != "Ada" {
		t.Fatalf("expected normalized fields, got %q %q", created.Email, created.Name)
	}
	if created.AuthProvider != ProviderGoogle {
		t.Fatalf("expected default provider, got %q", created.AuthProvider)
	}
	if len(created.Licenses) != 1 || created.Licenses[0].LicensesType != "trial" || created.Licenses[0].TotalGenerations != "5" {
		t.Fatalf("expected trial license, got %+v", created.Licenses)
	}

	if _, err := s.Create(ctx, User{Name: "Other", Email: "ADA@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if _, err := s.Create(ctx, User{Name: "Nobody", Email: "  "}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	byEmail, err := s.FindByEmail(ctx, "ADA@example.com")
	if err != nil || byEmail.ID != created.ID {
		t.Fatalf("FindByEmail: %v %+v", err, byEmail)
	}
	if _, err := s.FindByID(ctx, "000000000000000000000000"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.FindByID(ctx, "not-an-id"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for malformed id, got %v", err)
	}

	t.Run("profile", func(t *testing.T) {
		if _, err := s.UpdateProfile(ctx, created.ID, ProfileUpdate{}); !errors.Is(err, ErrNoUpdates) {
			t.Fatalf("expected ErrNoUpdates, got %v", err)
		}
		long := make([]rune, MaxBioLength+1)
		for i := range long {
			long[i] = 'x'
		}
		if _, err := s.UpdateProfile(ctx, created.ID, ProfileUpdate{Bio: strPtr(string(long))}); !errors.Is(err, ErrBioTooLong) {
			t.Fatalf("expected ErrBioTooLong, got %v", err)
		}
		u, err := s.UpdateProfile(ctx, created.ID, ProfileUpdate{Company: strPtr("Analytical Engines"), Bio: strPtr("hi")})
		if err != nil {
			t.Fatalf("UpdateProfile: %v", err)
		}
		if u.Company != "Analytical Engines" || u.Bio != "hi" || u.Name != "Ada" {
			t.Fatalf("unexpected profile %+v", u)
		}
	})

	t.Run("lockout", func(t *testing.T) {
		var u *User
		for i := 0; i < 4; i++ {
			u, err = s.RecordLoginFailure(ctx, created.ID)
			if err != nil {
				t.Fatalf("RecordLoginFailure: %v", err)
			}
		}
		if u.Locked(clock.Now()) {
			t.Fatalf("expected unlocked after 4 failures")
		}
		u, err = s.RecordLoginFailure(ctx, created.ID)
		if err != nil {
			t.Fatalf("RecordLoginFailure: %v", err)
		}
		if !u.Locked(clock.Now()) || u.FailedLoginAttempts != 5 {
			t.Fatalf("expected lock after 5 failures, got %+v", u)
		}

		clock.Advance(16 * time.Minute)
		u, err = s.RecordLoginFailure(ctx, created.ID)
		if err != nil {
			t.Fatalf("RecordLoginFailure: %v", err)
		}
		if u.FailedLoginAttempts != 1 || u.LockoutUntil != nil {
			t.Fatalf("expected expired lock to restart the count, got %+v", u)
		}

		if err := s.ResetLoginFailures(ctx, created.ID); err != nil {
			t.Fatalf("ResetLoginFailures: %v", err)
		}
		u, _ = s.FindByID(ctx, created.ID)
		if u.FailedLoginAttempts != 0 {
			t.Fatalf("expected reset count, got %d", u.FailedLoginAttempts)
		}
	})

	t.Run("touch login", func(t *testing.T) {
		_, _ = s.RecordLoginFailure(ctx, created.ID)
		clock.Advance(time.Minute)
		u, err := s.TouchLogin(ctx, created.ID)
		if err != nil {
			t.Fatalf("TouchLogin: %v", err)
		}
		if !u.LastLogin.Equal(clock.Now().Truncate(time.Millisecond)) {
			t.Fatalf("expected lastLogin %v, got %v", clock.Now(), u.LastLogin)
		}
		if u.FailedLoginAttempts != 0 {
			t.Fatalf("expected failures cleared on login")
		}
	})
}

func testConnectionContract(t *testing.T, cs ConnectionStore, clock *testClock) {
	t.Helper()
	ctx := context.Background()

	if _, err := cs.CreateConnection(ctx, Connection{UserID: "u1"}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}

	first, err := cs.CreateConnection(ctx, Connection{UserID: "u1", Name: "warehouse"})
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if first.Type != DefaultConnectionType || first.Config == nil {
		t.Fatalf("expected defaults, got %+v", first)
	}
	clock.Advance(time.Second)
	second, err := cs.CreateConnection(ctx, Connection{UserID: "u1", Name: "replica", Type: "mysql", Config: map[string]any{"port": "3306"}})
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if _, err := cs.CreateConnection(ctx, Connection{UserID: "u2", Name: "theirs"}); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}

	list, err := cs.ListConnections(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("expected owner-filtered oldest-first list, got %+v", list)
	}

	if _, err := cs.UpdateConnection(ctx, "u2", first.ID, ConnectionPatch{Name: "stolen"}); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound for foreign owner, got %v", err)
	}
	updated, err := cs.UpdateConnection(ctx, "u1", first.ID, ConnectionPatch{Name: "lake"})
	if err != nil {
		t.Fatalf("UpdateConnection: %v", err)
	}
	if updated.Name != "lake" || updated.Type != DefaultConnectionType {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if err := cs.DeleteConnection(ctx, "u2", second.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound for foreign delete, got %v", err)
	}
	if err := cs.DeleteConnection(ctx, "u1", second.ID); err != nil {
		t.Fatalf("DeleteConnection: %v", err)
	}
	if err := cs.DeleteConnection(ctx, "u1", second.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound on second delete, got %v", err)
	}
	if err := cs.DeleteConnection(ctx, "u1", "garbage"); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound for malformed id, got %v", err)
	}
}
