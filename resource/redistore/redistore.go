// Package redistore persists resource records in Redis. Each record is a
// JSON blob keyed by prefix plus primary key, and a list under the same
// prefix keeps insertion order so collections render stably. Loaded
// records carry JSON types (numbers as float64); the field layer re-types
// values as they render.
package redistore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hydrant-api/hydrant/field"
	"github.com/hydrant-api/hydrant/resource"
)

// Store implements resource.Store over a Redis database.
type Store struct {
	client  *redis.Client
	prefix  string
	pkField string
	logger  *zap.Logger
}

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis password (empty if no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize is the connection pool size.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// KeyPrefix is the prefix for all record keys.
	KeyPrefix string

	// PrimaryKey names the record attribute holding the primary key.
	// Defaults to "id".
	PrimaryKey string

	// Logger receives debug-level store events. Defaults to a no-op.
	Logger *zap.Logger
}

// DefaultConfig returns default Redis configuration for the given address.
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxIdleConns: 20,
		KeyPrefix:    "hydrant:record:",
		PrimaryKey:   "id",
	}
}

// New creates a store with its own Redis client.
func New(cfg *Config) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		// Connection pooling
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxIdleConns: cfg.MaxIdleConns,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	return newStore(client, cfg.KeyPrefix, cfg.PrimaryKey, cfg.Logger)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *redis.Client, keyPrefix, primaryKey string) *Store {
	return newStore(client, keyPrefix, primaryKey, nil)
}

func newStore(client *redis.Client, prefix, pk string, logger *zap.Logger) *Store {
	if prefix == "" {
		prefix = "hydrant:record:"
	}
	if pk == "" {
		pk = "id"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		prefix:  prefix,
		pkField: pk,
		logger:  logger,
	}
}

// Select returns the records matching every selector, in insertion order.
func (s *Store) Select(ctx context.Context, selectors map[string]any) ([]map[string]any, error) {
	if err := resource.ValidateSelectors(selectors); err != nil {
		return nil, err
	}

	records, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	var matched []map[string]any
	for _, record := range records {
		if resource.MatchesSelectors(record, selectors) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// All returns every record in insertion order.
func (s *Store) All(ctx context.Context) ([]map[string]any, error) {
	return s.loadAll(ctx)
}

// Save upserts a record by its primary key, assigning a fresh UUID when
// the record carries none. The returned record is the stored form, read
// back through JSON so it matches what later loads will see.
func (s *Store) Save(ctx context.Context, record map[string]any) (map[string]any, error) {
	if record == nil {
		return nil, fmt.Errorf("redistore: cannot save a nil record")
	}

	pk := record[s.pkField]
	if !field.Truthy(pk) {
		pk = uuid.NewString()
	}
	pkText := fmt.Sprintf("%v", pk)

	toStore := make(map[string]any, len(record)+1)
	for k, v := range record {
		toStore[k] = v
	}
	toStore[s.pkField] = pk

	data, err := json.Marshal(toStore)
	if err != nil {
		return nil, fmt.Errorf("redistore: encoding record %s: %w", pkText, err)
	}

	key := s.key(pkText)
	existed, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis exists error: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis set error: %w", err)
	}
	if existed == 0 {
		if err := s.client.RPush(ctx, s.orderKey(), pkText).Err(); err != nil {
			return nil, fmt.Errorf("redis rpush error: %w", err)
		}
	}

	s.logger.Debug("saved record",
		zap.String("key", key),
		zap.Bool("created", existed == 0),
	)

	var stored map[string]any
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("redistore: decoding record %s: %w", pkText, err)
	}
	return stored, nil
}

// Delete removes the record whose primary key equals pk.
func (s *Store) Delete(ctx context.Context, pk any) error {
	pkText := fmt.Sprintf("%v", pk)
	key := s.key(pkText)

	removed, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s %v", field.ErrNotFound, s.pkField, pk)
	}
	if err := s.client.LRem(ctx, s.orderKey(), 0, pkText).Err(); err != nil {
		return fmt.Errorf("redis lrem error: %w", err)
	}

	s.logger.Debug("deleted record", zap.String("key", key))
	return nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// loadAll walks the order list and loads each record. Keys that vanished
// between the list read and the get are skipped.
func (s *Store) loadAll(ctx context.Context) ([]map[string]any, error) {
	pks, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange error: %w", err)
	}

	var records []map[string]any
	for _, pkText := range pks {
		data, err := s.client.Get(ctx, s.key(pkText)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get error: %w", err)
		}

		var record map[string]any
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("redistore: decoding record %s: %w", pkText, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// key generates the full Redis key for a record.
func (s *Store) key(pkText string) string {
	return s.prefix + pkText
}

// orderKey generates the Redis key of the insertion-order list.
func (s *Store) orderKey() string {
	return s.prefix + "_order"
}
