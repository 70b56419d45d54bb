package model

import "time"

// Post はブログ投稿を表す。
// AuthorIDは作成時に確定し、以後変更されない。
type Post struct {
	ID        string
	Title     string
	Content   string
	Published bool
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostWithAuthor は投稿と著者の公開情報を結合した読み取り用モデル。
type PostWithAuthor struct {
	Post
	AuthorUsername string
}

// PostEventType は投稿イベントの種別。
type PostEventType string

const (
	PostEventCreated PostEventType = "created"
	PostEventUpdated PostEventType = "updated"
	PostEventDeleted PostEventType = "deleted"
)

// PostEvent は投稿の変更を外部に通知するイベント。
type PostEvent struct {
	Type       PostEventType `json:"type"`
	PostID     string        `json:"postId"`
	AuthorID   string        `json:"authorId"`
	Published  bool          `json:"published"`
	OccurredAt time.Time     `json:"occurredAt"`
}
