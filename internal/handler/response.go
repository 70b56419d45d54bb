package handler

import (
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// userResponse はユーザーの公開情報。パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// authorResponse は投稿に埋め込む著者情報。
type authorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Published bool           `json:"published"`
	AuthorID  string         `json:"authorId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Author    authorResponse `json:"author"`
}

func toPostResponse(p *model.PostWithAuthor) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Published: p.Published,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Author: authorResponse{
			ID:       p.AuthorID,
			Username: p.AuthorUsername,
		},
	}
}

// toPostResponses は投稿一覧をレスポンスに変換する。0件でも空配列を返す。
func toPostResponses(posts []*model.PostWithAuthor) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}
