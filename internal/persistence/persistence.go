package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Backend names a history backend.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
	BackendMongo    Backend = "mongo"
)

// ErrUnknownBackend is returned by Open for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown history backend")

// Persistence bundles the history stores so callers can depend on a single
// abstraction.
type Persistence struct {
	Runs   RunStore
	Events EventStore

	closers []io.Closer
}

// Memory returns a Persistence backed by a single InMemoryStore.
func Memory() *Persistence {
	s := NewInMemoryStore()
	return &Persistence{Runs: s, Events: s}
}

// Open connects to the named backend. An empty backend means memory.
//
// dsn is a file path or ":memory:" for sqlite, a connection string for
// postgres, a redis:// URL for redis and a mongodb:// URI for mongo. Only
// memory and sqlite keep step events; the other backends discard them.
func Open(ctx context.Context, backend Backend, dsn string) (*Persistence, error) {
	switch backend {
	case "", BackendMemory:
		return Memory(), nil

	case BackendSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// A single connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
		runs, err := NewSQLiteRunStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		events, err := NewSQLiteEventStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Persistence{Runs: runs, Events: events, closers: []io.Closer{db}}, nil

	case BackendPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		runs, err := NewPostgresRunStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Persistence{Runs: runs, Events: NoopEventStore{}, closers: []io.Closer{db}}, nil

	case BackendRedis:
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Persistence{
			Runs:    NewRedisRunStore(client, ""),
			Events:  NoopEventStore{},
			closers: []io.Closer{client},
		}, nil

	case BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &Persistence{
			Runs:    NewMongoRunStore(client, "", ""),
			Events:  NoopEventStore{},
			closers: []io.Closer{mongoCloser{client}},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

// Close releases any connections held by the stores.
func (p *Persistence) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

type mongoCloser struct {
	client *mongo.Client
}

func (c mongoCloser) Close() error {
	return c.client.Disconnect(context.Background())
}
