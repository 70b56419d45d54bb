// Package model はドメインモデルを定義する。
package model

import "time"

// User はブログの利用ユーザーを表す。
// PasswordHashはbcryptハッシュであり、APIレスポンスには決して含めない。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenClaims は検証済みトークンから取り出した本人情報を表す。
type TokenClaims struct {
	UserID    string
	Email     string
	TokenID   string // jti。ログアウト時の失効管理に使用する
	ExpiresAt time.Time
}
