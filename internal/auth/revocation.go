package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRevocationTTL covers tokens that carry no expiry.
const defaultRevocationTTL = time.Hour

// RevocationStore remembers logged-out tokens until they would have expired
// anyway.
type RevocationStore struct {
	client *redis.Client
	prefix string
}

func NewRevocationStore(redisURL string) (*RevocationStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRevocationStoreWithClient(client), nil
}

func NewRevocationStoreWithClient(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, prefix: "revoked:"}
}

func (s *RevocationStore) key(tokenID string) string {
	return s.prefix + tokenID
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if expiresAt.IsZero() {
		ttl = defaultRevocationTTL
	}
	if ttl <= 0 {
		// Already expired; the token is rejected regardless.
		return nil
	}
	if err := s.client.Set(ctx, s.key(tokenID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, s.key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

func (s *RevocationStore) Close() error {
	return s.client.Close()
}

func (s *RevocationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
