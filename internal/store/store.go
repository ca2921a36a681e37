// Package store encapsulates MongoDB client management and collection helpers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"truck_notify_bot/internal/config"
)

// Collection names used across the bot.
const (
	CollectionUsers    = "users"
	CollectionReports  = "reports"
	CollectionSessions = "wizard_sessions"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client     mongoClient
	db         *mongo.Database
	sessionTTL time.Duration
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client:     client,
		db:         client.Database(cfg.MongoDB),
		sessionTTL: cfg.WizardSessionTTL,
	}, nil
}

// Ping verifies the deployment is reachable using the primary read preference.
func (m *Manager) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}

	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	return nil
}

// Database returns the configured database handle.
func (m *Manager) Database() *mongo.Database {
	return m.db
}

// Client returns the underlying mongo.Client when available. Tests using fakes
// may receive nil here.
func (m *Manager) Client() *mongo.Client {
	client, ok := m.client.(*mongo.Client)
	if !ok {
		return nil
	}
	return client
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Users returns the users collection handle.
func (m *Manager) Users() *mongo.Collection {
	return m.Collection(CollectionUsers)
}

// Reports returns the report log collection handle.
func (m *Manager) Reports() *mongo.Collection {
	return m.Collection(CollectionReports)
}

// Sessions returns the wizard sessions collection handle.
func (m *Manager) Sessions() *mongo.Collection {
	return m.Collection(CollectionSessions)
}

// EnsureBaseIndexes creates the indexes the bot relies on. Sessions get a TTL
// index on updated_at when a session lifetime is configured. Collections are
// created implicitly if they do not already exist.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	userIndexes := []mongo.IndexModel{
		uniqueIndex("user_id", "user_id_unique"),
	}
	if _, err := createIndexes(ctx, m.Users(), userIndexes); err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}

	reportIndexes := []mongo.IndexModel{
		uniqueIndex("report_id", "report_id_unique"),
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_at"),
		},
	}
	if _, err := createIndexes(ctx, m.Reports(), reportIndexes); err != nil {
		return fmt.Errorf("create reports indexes: %w", err)
	}

	sessionIndexes := []mongo.IndexModel{
		uniqueIndex("user_id", "user_id_unique"),
	}
	if m.sessionTTL > 0 {
		sessionIndexes = append(sessionIndexes, mongo.IndexModel{
			Keys: bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().
				SetName("updated_at_ttl").
				SetExpireAfterSeconds(int32(m.sessionTTL / time.Second)),
		})
	}
	if _, err := createIndexes(ctx, m.Sessions(), sessionIndexes); err != nil {
		return fmt.Errorf("create sessions indexes: %w", err)
	}

	return nil
}

func uniqueIndex(key, name string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: key, Value: 1}},
		Options: options.Index().
			SetName(name).
			SetUnique(true),
	}
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}
