package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokedKeyPrefix はRedis上の失効済みトークンIDのキー接頭辞。
const revokedKeyPrefix = "blogman:revoked:"

// RevocationStore は失効済みトークンID（jti）の保存先インターフェース。
type RevocationStore interface {
	// Revoke はトークンIDをttlの間だけ失効済みとして記録する。
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	// IsRevoked はトークンIDが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NoopRevocationStore は失効管理を行わないRevocationStore。
// Redisが設定されていない環境で使用する。
type NoopRevocationStore struct{}

// Revoke は何もしない。
func (NoopRevocationStore) Revoke(context.Context, string, time.Duration) error { return nil }

// IsRevoked は常にfalseを返す。
func (NoopRevocationStore) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevocationStore はRedisを使用したRevocationStore。
// キーのTTLをトークンの残り有効期間に合わせるため、期限切れエントリの掃除は不要。
type RedisRevocationStore struct {
	client redis.UniversalClient
}

// NewRedisRevocationStore はRedisRevocationStoreを生成する。
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// NewRedisClient はREDIS_URL形式の接続文字列からRedisクライアントを生成する。
// 接続確認にはPingを使用すること。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Revoke はトークンIDをttlの間だけ失効済みとして記録する。
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかどうかを返す。
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up revoked token: %w", err)
	}
	return true, nil
}

var (
	_ RevocationStore = NoopRevocationStore{}
	_ RevocationStore = (*RedisRevocationStore)(nil)
)
