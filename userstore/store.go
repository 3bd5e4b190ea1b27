package userstore

import "context"

// Store is the account persistence contract.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	// Create inserts u, filling ID, timestamps and defaults.
	Create(ctx context.Context, u User) (*User, error)
	// TouchLogin stamps LastLogin and clears failure state.
	TouchLogin(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, patch ProfileUpdate) (*User, error)
	// RecordLoginFailure counts a failed login and returns the updated account.
	RecordLoginFailure(ctx context.Context, id string) (*User, error)
	ResetLoginFailures(ctx context.Context, id string) error
}

// ConnectionStore is the owner-scoped connections contract.
type ConnectionStore interface {
	ListConnections(ctx context.Context, owner string) ([]Connection, error)
	CreateConnection(ctx context.Context, c Connection) (*Connection, error)
	UpdateConnection(ctx context.Context, owner, id string, patch ConnectionPatch) (*Connection, error)
	DeleteConnection(ctx context.Context, owner, id string) error
}
