package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
)

var (
	// ErrInvalidToken は署名不正・期限切れ・形式不正などでトークンを受け付けられないことを表す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked はログアウト済みのトークンであることを表す。
	ErrTokenRevoked = errors.New("token revoked")
)

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string

	// Now は現在時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// claims はJWTに埋め込むクレーム。
type claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager は署名付き・有効期限付きの本人確認トークンを発行・検証する。
type TokenManager struct {
	config  TokenConfig
	revoked RevocationStore
}

// NewTokenManager はTokenManagerを生成する。
// revokedがnilの場合は失効管理を行わない。
func NewTokenManager(config TokenConfig, revoked RevocationStore) *TokenManager {
	if config.Now == nil {
		config.Now = time.Now
	}
	if revoked == nil {
		revoked = NoopRevocationStore{}
	}
	return &TokenManager{config: config, revoked: revoked}
}

// Issue はユーザーIDとメールアドレスを埋め込んだトークンを発行する。
func (m *TokenManager) Issue(user *model.User) (string, time.Time, error) {
	now := m.config.Now()
	expiresAt := now.Add(m.config.TTL)

	c := claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンの署名・有効期限・発行者・失効状態を検証し、埋め込まれた本人情報を返す。
// トークン自体の問題はErrInvalidTokenまたはErrTokenRevokedをラップして返す。
// 失効ストアへの問い合わせ失敗はそれ以外のエラーとして返す。
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (*model.TokenClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, c,
		func(t *jwt.Token) (interface{}, error) {
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.UserID == "" || c.UserID != c.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}

	revoked, err := m.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &model.TokenClaims{
		UserID:    c.UserID,
		Email:     c.Email,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Revoke はトークンを残りの有効期間だけ失効させる。
// 既に期限切れのトークンは何もしない。
func (m *TokenManager) Revoke(ctx context.Context, tc *model.TokenClaims) error {
	remaining := tc.ExpiresAt.Sub(m.config.Now())
	if remaining <= 0 || tc.TokenID == "" {
		return nil
	}
	if err := m.revoked.Revoke(ctx, tc.TokenID, remaining); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
