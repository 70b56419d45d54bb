package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, authorID string, in post.CreateInput) (*model.PostWithAuthor, error)
	Get(ctx context.Context, id string) (*model.PostWithAuthor, error)
	ListPublished(ctx context.Context) ([]*model.PostWithAuthor, error)
	RecentPublished(ctx context.Context, limit int) ([]*model.PostWithAuthor, error)
	ListMine(ctx context.Context, userID string) ([]*model.PostWithAuthor, error)
	Update(ctx context.Context, userID, id string, in post.UpdateInput) (*model.PostWithAuthor, error)
	Delete(ctx context.Context, userID, id string) error
}

// PostHandler は投稿関連のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	channel feed.Channel
}

// NewPostHandler はPostHandlerを生成する。channelはRSSフィードのメタデータ。
func NewPostHandler(service PostServiceInterface, channel feed.Channel) *PostHandler {
	return &PostHandler{service: service, channel: channel}
}

// postRequest は投稿作成・更新のリクエストボディ。
type postRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published"`
}

// List は公開済み投稿の一覧を新しい順に返す。
// GET /posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPublished(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// Feed は公開済み投稿の最新分をRSS 2.0で返す。
// GET /posts/feed.xml
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.RecentPublished(r.Context(), feed.DefaultItemLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := feed.WriteRSS(&buf, h.channel, posts); err != nil {
		slog.Error("failed to render rss", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
		return
	}

	w.Header().Set("Content-Type", feed.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Create は認証済みユーザーを著者として投稿を作成する。
// POST /posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), userID, post.CreateInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPostResponse(p))
}

// Mine は認証済みユーザーの全投稿（下書きを含む）を新しい順に返す。
// GET /posts/my
func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	posts, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// Get は投稿を1件返す。
// GET /posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Update は投稿を更新する。著者以外は403。
// PUT /posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), post.UpdateInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(p))
}

// Delete は投稿を削除する。著者以外は403。
// DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "投稿を削除しました。"})
}
