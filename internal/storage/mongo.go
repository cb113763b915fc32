package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// MongoStorage mirrors the record list into a MongoDB collection. Each
// flush empties the collection and inserts the full list again.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStorage connects to cfg.URI and pings the server.
func NewMongoStorage(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return newMongoStorage(client, client.Database(cfg.Database).Collection(cfg.Collection), logger), nil
}

func newMongoStorage(client *mongo.Client, collection *mongo.Collection, logger *slog.Logger) *MongoStorage {
	return &MongoStorage{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "mongo_storage"),
	}
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Flush(ctx context.Context, records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	docs := make([]any, len(records))
	for i, rec := range records {
		docs[i] = rec
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb clear: %w", err)}
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("mongodb insert: %w", err)}
	}

	s.count = len(records)
	s.logger.Debug("records mirrored to mongodb", "count", s.count)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "documents", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
