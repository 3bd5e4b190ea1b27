package userstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection       = "users"
	connectionsCollection = "connections"
	defaultDBName         = "gosession"

	// failureRetries bounds the optimistic retry loop in RecordLoginFailure.
	failureRetries = 5
)

// MongoConfig configures NewMongo.
type MongoConfig struct {
	URI string
	// Database overrides the database named in URI.
	Database string
	Lockout  LockoutPolicy
	Now      func() time.Time
}

// Mongo is a Store and ConnectionStore backed by MongoDB.
type Mongo struct {
	client      *mongodriver.Client
	db          *mongodriver.Database
	users       *mongodriver.Collection
	connections *mongodriver.Collection
	policy      LockoutPolicy
	now         func() time.Time
}

type userDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	User `bson:",inline"`
}

func (d userDoc) user() *User {
	u := d.User
	u.ID = d.ID.Hex()
	return &u
}

type connectionDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Connection `bson:",inline"`
}

func (d connectionDoc) connection() Connection {
	c := d.Connection
	c.ID = d.ID.Hex()
	return c
}

// NewMongo connects, pings the primary and ensures indexes.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = databaseFromURI(cfg.URI)
	}
	db := cli.Database(dbName)

	m := &Mongo{
		client:      cli,
		db:          db,
		users:       db.Collection(usersCollection),
		connections: db.Collection(connectionsCollection),
		policy:      cfg.Lockout.withDefaults(),
		now:         cfg.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}
	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes creates:
//   - users: unique email
//   - connections: userId + createdAt(asc) for owner listings
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_email").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: users: %w", err)
	}

	_, err = m.connections.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("user_created_asc"),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: connections: %w", err)
	}
	return nil
}

func (m *Mongo) stamp() time.Time {
	// MongoDB DateTime stores milliseconds.
	return m.now().UTC().Truncate(time.Millisecond)
}

func (m *Mongo) findUser(ctx context.Context, filter bson.D) (*User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("userstore/mongo: find user: %w", err)
	}
	return doc.user(), nil
}

func (m *Mongo) FindByEmail(ctx context.Context, email string) (*User, error) {
	return m.findUser(ctx, bson.D{{Key: "email", Value: NormalizeEmail(email)}})
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return m.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (m *Mongo) Create(ctx context.Context, u User) (*User, error) {
	const op = "userstore/mongo/Create"

	prepared, err := prepareUser(u, m.now())
	if err != nil {
		return nil, err
	}
	res, err := m.users.InsertOne(ctx, userDoc{User: prepared})
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}
	prepared.ID = oid.Hex()
	return &prepared, nil
}

func (m *Mongo) updateUser(ctx context.Context, op, id string, update bson.D) (*User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	var doc userDoc
	err = m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc.user(), nil
}

func (m *Mongo) TouchLogin(ctx context.Context, id string) (*User, error) {
	now := m.stamp()
	return m.updateUser(ctx, "userstore/mongo/TouchLogin", id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "lastLogin", Value: now},
			{Key: "failedLoginAttempts", Value: 0},
			{Key: "updatedAt", Value: now},
		}},
		{Key: "$unset", Value: bson.D{{Key: "lockoutUntil", Value: ""}}},
	})
}

func (m *Mongo) UpdateProfile(ctx context.Context, id string, patch ProfileUpdate) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	set := bson.D{{Key: "updatedAt", Value: m.stamp()}}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "name", Value: strings.TrimSpace(*patch.Name)})
	}
	if patch.ProfilePicture != nil {
		set = append(set, bson.E{Key: "profilePicture", Value: *patch.ProfilePicture})
	}
	if patch.Bio != nil {
		set = append(set, bson.E{Key: "bio", Value: *patch.Bio})
	}
	if patch.Company != nil {
		set = append(set, bson.E{Key: "company", Value: *patch.Company})
	}
	if patch.Location != nil {
		set = append(set, bson.E{Key: "location", Value: *patch.Location})
	}
	return m.updateUser(ctx, "userstore/mongo/UpdateProfile", id, bson.D{{Key: "$set", Value: set}})
}

// RecordLoginFailure reads the failure state and writes the next one guarded
// by the value it read, retrying when a concurrent failure won the race.
func (m *Mongo) RecordLoginFailure(ctx context.Context, id string) (*User, error) {
	const op = "userstore/mongo/RecordLoginFailure"

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	for range failureRetries {
		cur, err := m.findUser(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return nil, err
		}

		now := m.stamp()
		count, until := m.policy.nextFailureState(cur.FailedLoginAttempts, cur.LockoutUntil, now)

		filter := bson.D{
			{Key: "_id", Value: oid},
			{Key: "failedLoginAttempts", Value: cur.FailedLoginAttempts},
		}
		set := bson.D{
			{Key: "failedLoginAttempts", Value: count},
			{Key: "updatedAt", Value: now},
		}
		if until != nil {
			set = append(set, bson.E{Key: "lockoutUntil", Value: *until})
		}
		update := bson.D{{Key: "$set", Value: set}}
		if until == nil {
			update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "lockoutUntil", Value: ""}}})
		}

		res, err := m.users.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if res.MatchedCount == 1 {
			cur.FailedLoginAttempts = count
			cur.LockoutUntil = until
			cur.UpdatedAt = now
			return cur, nil
		}
	}
	return nil, fmt.Errorf("%s: too much contention", op)
}

func (m *Mongo) ResetLoginFailures(ctx context.Context, id string) error {
	_, err := m.updateUser(ctx, "userstore/mongo/ResetLoginFailures", id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "failedLoginAttempts", Value: 0},
			{Key: "updatedAt", Value: m.stamp()},
		}},
		{Key: "$unset", Value: bson.D{{Key: "lockoutUntil", Value: ""}}},
	})
	return err
}

func (m *Mongo) ListConnections(ctx context.Context, owner string) ([]Connection, error) {
	const op = "userstore/mongo/ListConnections"

	cur, err := m.connections.Find(ctx,
		bson.D{{Key: "userId", Value: owner}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]Connection, 0)
	for cur.Next(ctx) {
		var doc connectionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.connection())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}
	return out, nil
}

func (m *Mongo) CreateConnection(ctx context.Context, c Connection) (*Connection, error) {
	const op = "userstore/mongo/CreateConnection"

	prepared, err := prepareConnection(c, m.now())
	if err != nil {
		return nil, err
	}
	res, err := m.connections.InsertOne(ctx, connectionDoc{Connection: prepared})
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}
	prepared.ID = oid.Hex()
	return &prepared, nil
}

func (m *Mongo) UpdateConnection(ctx context.Context, owner, id string, patch ConnectionPatch) (*Connection, error) {
	const op = "userstore/mongo/UpdateConnection"

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrConnectionNotFound
	}

	set := bson.D{{Key: "updatedAt", Value: m.stamp()}}
	if name := strings.TrimSpace(patch.Name); name != "" {
		set = append(set, bson.E{Key: "name", Value: name})
	}
	if patch.Type != "" {
		set = append(set, bson.E{Key: "type", Value: patch.Type})
	}
	if patch.Config != nil {
		set = append(set, bson.E{Key: "config", Value: patch.Config})
	}

	var doc connectionDoc
	err = m.connections.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: owner}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := doc.connection()
	return &out, nil
}

func (m *Mongo) DeleteConnection(ctx context.Context, owner, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrConnectionNotFound
	}
	res, err := m.connections.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: owner}})
	if err != nil {
		return fmt.Errorf("userstore/mongo/DeleteConnection: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// databaseFromURI returns the database named in the URI path, or the default.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

var (
	_ Store           = (*Mongo)(nil)
	_ ConnectionStore = (*Mongo)(nil)
)
