package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"ballunia/models"

	"github.com/redis/go-redis/v9"
)

// CartKey is the versioned storage key for persisted carts. A schema change
// needs a new key.
const CartKey = "ballunia_cart_v1"

// KeyValueStore is the durable storage behind a cart.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, exists bool, err error)
	Set(ctx context.Context, key, value string) error
}

// SessionCartKey scopes the cart key to one client session.
func SessionCartKey(sessionId string) string {
	return CartKey + ":" + sessionId
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore pings the connection first. ttl 0 keeps carts forever.
func NewRedisStore(ctx context.Context, redisConn *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if redisConn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	if err := redisConn.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{rdb: redisConn, ttl: ttl}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %s: %w", key, errors.Join(models.ErrServerError, err))
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, errors.Join(models.ErrServerError, err))
	}
	return nil
}

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// SQLStore keeps cart payloads in a single key/value table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(ctx context.Context, conn *sql.DB, dialect Dialect) (*SQLStore, error) {
	if conn == nil {
		return nil, errors.New("conn must be non-nil")
	}
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &SQLStore{db: conn, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cart_storage (
		cart_key   TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create cart_storage: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT payload FROM cart_storage WHERE cart_key = $1"), key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select %s: %w", key, errors.Join(models.ErrServerError, err))
	}
	return payload, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := s.rebind(`INSERT INTO cart_storage (cart_key, payload, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (cart_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", key, errors.Join(models.ErrServerError, err))
	}
	return nil
}

// rebind turns $n placeholders into ? for sqlite.
func (s *SQLStore) rebind(query string) string {
	if s.dialect == DialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			out = append(out, '?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
