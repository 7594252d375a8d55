// Package mongodb manages the shared MongoDB client the ingestion stage reads
// from. The client is created on first use and reused afterwards.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"insurance-pipeline/internal/apperr"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

var errMissingURI = errors.New("mongodb connection url is not set")

type Manager struct {
	uri      string
	database string

	mu     sync.Mutex
	client *mongo.Client
}

// NewManager returns a manager for database reachable at uri. No connection
// is made until the first call that needs one.
func NewManager(uri, database string) (*Manager, error) {
	if uri == "" {
		return nil, apperr.Config("mongodb.NewManager", errMissingURI)
	}
	if database == "" {
		return nil, apperr.Config("mongodb.NewManager", errors.New("database name is empty"))
	}
	return &Manager{uri: uri, database: database}, nil
}

// Database connects and pings the server once, then returns the configured
// database handle.
func (m *Manager) Database(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(m.uri).SetConnectTimeout(connectTimeout))
		if err != nil {
			return nil, apperr.DataLoad("mongodb.Connect", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, apperr.DataLoad("mongodb.Ping", err)
		}
		m.client = client
		log.Info().Str("database", m.database).Msg("Connected to MongoDB")
	}

	return m.client.Database(m.database), nil
}

// Documents returns every document of collection.
func (m *Manager) Documents(ctx context.Context, collection string) ([]bson.M, error) {
	db, err := m.Database(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, apperr.DataLoad("mongodb.Find", fmt.Errorf("collection %s: %w", collection, err))
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.DataLoad("mongodb.Cursor", fmt.Errorf("collection %s: %w", collection, err))
	}
	log.Debug().Str("collection", collection).Int("documents", len(docs)).Msg("Fetched documents")
	return docs, nil
}

// Close disconnects the client if one was created.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	if err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
