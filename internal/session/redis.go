package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("filevault-session")

// RedisStore keeps sessions in Redis so they survive a process restart.
// A non-zero ttl is enforced by Redis key expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore initializes a Redis-backed session store
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create registers a new session for username with tracing
func (rs *RedisStore) Create(ctx context.Context, username string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "redis.create_session",
		trace.WithAttributes(
			attribute.String("username", username),
		),
	)
	defer span.End()

	token, err := GenerateToken()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	session := &Session{
		Token:     token,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := rs.client.Set(ctx, sessionKey(token), data, rs.ttl).Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	span.SetAttributes(attribute.Int64("ttl_seconds", int64(rs.ttl.Seconds())))
	return session, nil
}

// Lookup returns the session for token, or nil on a miss, with tracing
func (rs *RedisStore) Lookup(ctx context.Context, token string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "redis.lookup_session")
	defer span.End()

	data, err := rs.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("session_found", false))
		return nil, nil // Unknown token, not an error
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	span.SetAttributes(attribute.Bool("session_found", true))
	return &session, nil
}

// Destroy removes the session for token with tracing
func (rs *RedisStore) Destroy(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "redis.destroy_session")
	defer span.End()

	if err := rs.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	return nil
}
