package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// postWithAuthorSelect は投稿と著者ユーザー名をJOINして取得するSELECT句。
const postWithAuthorSelect = `
	SELECT p.id, p.title, p.content, p.published, p.author_id, p.created_at, p.updated_at, u.username
	FROM posts p
	INNER JOIN users u ON u.id = p.author_id`

// FindByID は指定IDの投稿を著者情報付きで取得する。
// UUID形式でないIDはクエリを発行せずnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.PostWithAuthor, error) {
	if !isUUID(id) {
		return nil, nil
	}

	p := &model.PostWithAuthor{}
	err := r.db.QueryRowContext(ctx,
		postWithAuthorSelect+` WHERE p.id = $1`,
		id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt, &p.AuthorUsername)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return p, nil
}

// ListPublished は公開済み投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListPublished(ctx context.Context, limit int) ([]*model.PostWithAuthor, error) {
	query := postWithAuthorSelect + ` WHERE p.published = TRUE ORDER BY p.created_at DESC, p.id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListByAuthor は指定ユーザーの全投稿を作成日時の降順で返す。
func (r *PostgresPostRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.PostWithAuthor, error) {
	if !isUUID(authorID) {
		return []*model.PostWithAuthor{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		postWithAuthorSelect+` WHERE p.author_id = $1 ORDER BY p.created_at DESC, p.id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Create は投稿を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, content, published, author_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.Title, post.Content, post.Published, post.AuthorID, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は投稿のタイトル・本文・公開状態・更新日時を上書きする。
// 同時更新の競合検出は行わない（後勝ち）。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts
		 SET title = $2, content = $3, published = $4, updated_at = $5
		 WHERE id = $1`,
		post.ID, post.Title, post.Content, post.Published, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewPostNotFoundError(post.ID)
	}
	return nil
}

// Delete は指定IDの投稿を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewPostNotFoundError(id)
	}
	return nil
}

// scanPosts は複数行をmodel.PostWithAuthorのスライスに変換する。
// 0件の場合も空スライスを返す（JSONでnullにしないため）。
func scanPosts(rows *sql.Rows) ([]*model.PostWithAuthor, error) {
	posts := []*model.PostWithAuthor{}
	for rows.Next() {
		p := &model.PostWithAuthor{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Published, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt, &p.AuthorUsername); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// isUUID はidがUUIDとして解釈できるかを判定する。
// uuid型カラムに不正な文字列を渡すとPostgreSQLがエラーを返すため、事前に弾く。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
