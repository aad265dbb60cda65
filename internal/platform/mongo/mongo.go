// Package mongo connects to the document store shared by all bounded contexts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds document store connection configuration.
type Config struct {
	URI             string
	Database        string
	MaxPoolSize     uint64
	ConnectTimeout  time.Duration
	ServerSelection time.Duration
}

// DefaultConfig returns sensible defaults for the document store.
func DefaultConfig() Config {
	return Config{
		Database:        "apihub",
		MaxPoolSize:     50,
		ConnectTimeout:  10 * time.Second,
		ServerSelection: 5 * time.Second,
	}
}

// Client wraps a connected *mongo.Client and its database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects and pings the server.
// Returns nil if the URI is empty.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, nil
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database name not configured")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelection)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Health checks if the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("mongo not configured")
	}
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

// Index describes one index a store needs.
type Index struct {
	Collection string
	Model      mongo.IndexModel
}

// EnsureIndexes creates the given indexes. Creating an existing index with
// the same definition is a no-op on the server.
func (c *Client) EnsureIndexes(ctx context.Context, indexes ...Index) error {
	for _, idx := range indexes {
		if _, err := c.db.Collection(idx.Collection).Indexes().CreateOne(ctx, idx.Model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.Collection, err)
		}
	}
	return nil
}
