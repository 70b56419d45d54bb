// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/blogman/internal/model"
)

// ErrDuplicateUser はメールアドレスまたはユーザー名の一意制約違反を表す。
// Fieldには違反したカラム名（"email" または "username"）が入る。
type ErrDuplicateUser struct {
	Field string
}

// Error はerrorインターフェースを実装する。
func (e *ErrDuplicateUser) Error() string {
	return "duplicate user: " + e.Field
}

// IsDuplicateUser はerrがErrDuplicateUserかどうかを判定する。
func IsDuplicateUser(err error) (*ErrDuplicateUser, bool) {
	var dup *ErrDuplicateUser
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByEmailOrUsername はメールアドレスまたはユーザー名のいずれかが一致するユーザーを
	// 1回の検索で取得する。見つからない場合はnilを返す。
	FindByEmailOrUsername(ctx context.Context, email, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// 一意制約違反の場合は*ErrDuplicateUserを返す。
	Create(ctx context.Context, user *model.User) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を著者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PostWithAuthor, error)

	// ListPublished は公開済み投稿を作成日時の降順で返す。
	// limitが0以下の場合は全件を返す。
	ListPublished(ctx context.Context, limit int) ([]*model.PostWithAuthor, error)

	// ListByAuthor は指定ユーザーの全投稿（下書き含む）を作成日時の降順で返す。
	ListByAuthor(ctx context.Context, authorID string) ([]*model.PostWithAuthor, error)

	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿のタイトル・本文・公開状態・更新日時を上書きする。
	// author_idは更新対象に含めない。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。
	Delete(ctx context.Context, id string) error
}

// HealthChecker はデータベースの疎通確認インターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
