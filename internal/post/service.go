// Package post は投稿のCRUDと所有者チェックのドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/events"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxContentLength は本文の最大文字数。
	MaxContentLength = 100000
)

// 投稿の変更操作名（メトリクスのラベル値）
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Recorder は投稿操作の記録先。metrics.Collectorが満たす。
type Recorder interface {
	RecordPostOperation(operation string)
	RecordEventPublishFailure(subject string)
}

// CreateInput は投稿作成の入力。Publishedがnilの場合は下書きとして作成する。
type CreateInput struct {
	Title     string
	Content   string
	Published *bool
}

// UpdateInput は投稿更新の入力。Publishedがnilの場合は現在の公開状態を維持する。
type UpdateInput struct {
	Title     string
	Content   string
	Published *bool
}

// Service は投稿管理のサービス層。
type Service struct {
	repo      repository.PostRepository
	publisher events.Publisher
	recorder  Recorder
	prefix    string
	now       func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithPublisher は投稿イベントの発行先を設定する。subjectPrefixはメトリクスのラベルに使用する。
func WithPublisher(p events.Publisher, subjectPrefix string) Option {
	return func(s *Service) {
		s.publisher = p
		s.prefix = subjectPrefix
	}
}

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock は現在時刻の取得関数を設定する。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PostRepository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: events.NoopPublisher{},
		prefix:    "blog",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanModify はuserIDのユーザーが投稿を更新・削除できるかを判定する。
// 更新と削除はこの判定のみを使用する。
func CanModify(p *model.Post, userID string) bool {
	return p != nil && userID != "" && p.AuthorID == userID
}

// Create は認証済みユーザーを著者として投稿を作成する。
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*model.PostWithAuthor, error) {
	title, content, err := s.prepare(in.Title, in.Content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Post{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Published: in.Published != nil && *in.Published,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	created, err := s.repo.FindByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("作成した投稿の取得に失敗しました: %w", err)
	}
	if created == nil {
		return nil, model.NewPostNotFoundError(p.ID)
	}

	s.afterChange(ctx, OperationCreate, model.PostEventCreated, &created.Post)
	return created, nil
}

// Get は投稿を著者情報付きで返す。下書きも取得できる。
func (s *Service) Get(ctx context.Context, id string) (*model.PostWithAuthor, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return p, nil
}

// ListPublished は公開済み投稿を新しい順に全件返す。
func (s *Service) ListPublished(ctx context.Context) ([]*model.PostWithAuthor, error) {
	return s.RecentPublished(ctx, 0)
}

// RecentPublished は公開済み投稿を新しい順に最大limit件返す。limitが0以下なら全件。
func (s *Service) RecentPublished(ctx context.Context, limit int) ([]*model.PostWithAuthor, error) {
	posts, err := s.repo.ListPublished(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("公開投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// ListMine はユーザー自身の投稿を下書きを含めて新しい順に返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.PostWithAuthor, error) {
	posts, err := s.repo.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Update は投稿のタイトル・本文・公開状態を上書きする。
// 投稿が存在しない場合は404、著者以外の場合は403相当のエラーを返す。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.PostWithAuthor, error) {
	current, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	title, content, err := s.prepare(in.Title, in.Content)
	if err != nil {
		return nil, err
	}

	updated := current.Post
	updated.Title = title
	updated.Content = content
	if in.Published != nil {
		updated.Published = *in.Published
	}
	updated.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	s.afterChange(ctx, OperationUpdate, model.PostEventUpdated, &updated)
	return &model.PostWithAuthor{Post: updated, AuthorUsername: current.AuthorUsername}, nil
}

// Delete は投稿を削除する。
// 投稿が存在しない場合は404、著者以外の場合は403相当のエラーを返す。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	current, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	s.afterChange(ctx, OperationDelete, model.PostEventDeleted, &current.Post)
	return nil
}

// loadOwned は投稿を取得し、userIDが著者であることを確認する。
// 存在確認を所有者確認より先に行う。
func (s *Service) loadOwned(ctx context.Context, userID, id string) (*model.PostWithAuthor, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(&p.Post, userID) {
		slog.Warn("post modification denied",
			slog.String("post_id", id),
			slog.String("user_id", userID),
		)
		return nil, model.NewForbiddenError()
	}
	return p, nil
}

// prepare はタイトルと本文を検証する。本文はプレーンテキストとしてそのまま保存する。
func (s *Service) prepare(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return "", "", model.NewValidationError("タイトルと本文は必須です。")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内で入力してください。", MaxTitleLength))
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", "", model.NewValidationError(fmt.Sprintf("本文は%d文字以内で入力してください。", MaxContentLength))
	}
	return title, content, nil
}

// afterChange はメトリクスを記録し、投稿イベントを発行する。
// イベント発行の失敗は操作自体を失敗させない。
func (s *Service) afterChange(ctx context.Context, operation string, eventType model.PostEventType, p *model.Post) {
	if s.recorder != nil {
		s.recorder.RecordPostOperation(operation)
	}

	err := s.publisher.Publish(ctx, model.PostEvent{
		Type:       eventType,
		PostID:     p.ID,
		AuthorID:   p.AuthorID,
		Published:  p.Published,
		OccurredAt: s.now(),
	})
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	subject := events.Subject(s.prefix, eventType)
	slog.Error("failed to publish post event",
		slog.String("subject", subject),
		slog.String("post_id", p.ID),
		slog.String("error", err.Error()),
	)
	if s.recorder != nil {
		s.recorder.RecordEventPublishFailure(subject)
	}
}
