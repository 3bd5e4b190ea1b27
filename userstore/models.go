package userstore

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrUserNotFound is returned when no account matches the lookup.
	ErrUserNotFound = errors.New("userstore: user not found")
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("userstore: email already registered")
	// ErrConnectionNotFound is returned when the connection is missing or not owned by the caller.
	ErrConnectionNotFound = errors.New("userstore: connection not found")
	// ErrNoUpdates is returned when a profile patch carries no allowed field.
	ErrNoUpdates = errors.New("userstore: no valid fields to update")
	// ErrBioTooLong is returned when a bio exceeds MaxBioLength runes.
	ErrBioTooLong = errors.New("userstore: bio too long")
	// ErrNameRequired is returned when a user or connection has no name.
	ErrNameRequired = errors.New("userstore: name required")
	// ErrInvalidEmail is returned when the email is empty after normalization.
	ErrInvalidEmail = errors.New("userstore: invalid email")
)

// MaxBioLength bounds User.Bio.
const MaxBioLength = 500

// Auth providers recorded on User.AuthProvider.
const (
	ProviderGoogle = "google"
	ProviderEmail  = "email"
	ProviderGithub = "github"
)

// License is a generation allowance attached to an account.
type License struct {
	LicensesType     string `json:"licensesType" bson:"licensesType"`
	TotalGenerations string `json:"totalGenerations" bson:"totalGenerations"`
}

// DefaultLicenses is granted to every new account.
func DefaultLicenses() []License {
	return []License{{LicensesType: "trial", TotalGenerations: "5"}}
}

// User is an account record.
type User struct {
	ID                  string     `json:"id" bson:"-"`
	Name                string     `json:"name" bson:"name"`
	Email               string     `json:"email" bson:"email"`
	ProfilePicture      string     `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
	Bio                 string     `json:"bio,omitempty" bson:"bio,omitempty"`
	Company             string     `json:"company,omitempty" bson:"company,omitempty"`
	Location            string     `json:"location,omitempty" bson:"location,omitempty"`
	AuthProvider        string     `json:"authProvider" bson:"authProvider"`
	IsEmailVerified     bool       `json:"isEmailVerified" bson:"isEmailVerified"`
	Licenses            []License  `json:"licenses" bson:"licenses"`
	FailedLoginAttempts int        `json:"-" bson:"failedLoginAttempts"`
	LockoutUntil        *time.Time `json:"-" bson:"lockoutUntil,omitempty"`
	LastLogin           time.Time  `json:"lastLogin" bson:"lastLogin"`
	CreatedAt           time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Locked reports whether the account is locked at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockoutUntil != nil && u.LockoutUntil.After(now)
}

// ProfileUpdate is a partial profile patch. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name           *string `json:"name,omitempty"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	Company        *string `json:"company,omitempty"`
	Location       *string `json:"location,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.ProfilePicture == nil && p.Bio == nil &&
		p.Company == nil && p.Location == nil
}

// Validate checks the patch before it reaches a store.
func (p ProfileUpdate) Validate() error {
	if p.Empty() {
		return ErrNoUpdates
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrNameRequired
	}
	if p.Bio != nil && len([]rune(*p.Bio)) > MaxBioLength {
		return ErrBioTooLong
	}
	return nil
}

func (p ProfileUpdate) apply(u *User) {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.ProfilePicture != nil {
		u.ProfilePicture = *p.ProfilePicture
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Company != nil {
		u.Company = *p.Company
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
}

// Connection is a user-owned data source descriptor.
type Connection struct {
	ID        string         `json:"id" bson:"-"`
	UserID    string         `json:"userId" bson:"userId"`
	Name      string         `json:"name" bson:"name"`
	Type      string         `json:"type" bson:"type"`
	Config    map[string]any `json:"config" bson:"config"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// DefaultConnectionType is used when Create receives an empty Type.
const DefaultConnectionType = "default"

// ConnectionPatch updates a connection. Empty fields are left unchanged.
type ConnectionPatch struct {
	Name   string         `json:"name,omitempty"`
	Type   string         `json:"type,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// LockoutPolicy controls RecordLoginFailure.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks an account for 15 minutes after 5 failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	d := DefaultLockoutPolicy()
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.Duration <= 0 {
		p.Duration = d.Duration
	}
	return p
}

// nextFailureState applies one failure to (count, lockedUntil) at now.
func (p LockoutPolicy) nextFailureState(count int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	if lockedUntil != nil && !lockedUntil.After(now) {
		return 1, nil
	}
	count++
	if count >= p.Threshold && lockedUntil == nil {
		until := now.Add(p.Duration)
		return count, &until
	}
	return count, lockedUntil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
