package userstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mongoTestTimeout = 10 * time.Second

// TestMain starts one MongoDB container for the package when
// GO_TEST_INTEGRATION is set and exports its address as MONGO_URI.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}
	_ = os.Setenv("MONGO_URI", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// mustNewMongo connects to a fresh database and drops it on cleanup.
func mustNewMongo(t *testing.T, clock *testClock) *Mongo {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set; run with GO_TEST_INTEGRATION=1")
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoTestTimeout)
	defer cancel()

	m, err := NewMongo(ctx, MongoConfig{
		URI:      uri,
		Database: "gosession_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("cannot connect to MongoDB (MONGO_URI=%s): %v", uri, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mongoTestTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})
	return m
}

func TestMongoStoreContract(t *testing.T) {
	clock := newTestClock()
	testStoreContract(t, mustNewMongo(t, clock), clock)
}

func TestMongoConnectionContract(t *testing.T) {
	clock := newTestClock()
	testConnectionContract(t, mustNewMongo(t, clock), clock)
}

func TestMongoPing(t *testing.T) {
	m := mustNewMongo(t, newTestClock())
	ctx, cancel := context.WithTimeout(context.Background(), mongoTestTimeout)
	defer cancel()
	if err := m.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017":          defaultDBName,
		"mongodb://localhost:27017/":         defaultDBName,
		"mongodb://localhost:27017/accounts": "accounts",
	}
	for uri, want := range cases {
		if got := databaseFromURI(uri); got != want {
			t.Fatalf("databaseFromURI(%q) = %q, want %q", uri, got, want)
		}
	}
}
