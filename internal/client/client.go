// Package client はblogman APIの型付きHTTPクライアントを提供する。
//
// 認証状態はSessionとして呼び出し側が保持し、認証が必要な呼び出しごとに明示的に渡す。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultTimeout はHTTPクライアントのデフォルトタイムアウト。
const defaultTimeout = 10 * time.Second

// ErrNoSession は認証が必要な呼び出しに有効なSessionが渡されなかったことを表す。
var ErrNoSession = errors.New("client: session is required")

// User はユーザーの公開情報。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author は投稿に埋め込まれる著者情報。
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Post はブログ投稿。
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    Author    `json:"author"`
}

// PostInput は投稿作成・更新の入力。Publishedがnilの場合はサーバー側の既定値に従う。
type PostInput struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Published *bool  `json:"published,omitempty"`
}

// Session はログインで得た認証状態。
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// Valid はトークンを持ち、nowの時点で期限切れでないかを返す。
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// APIError はサーバーが返したエラーレスポンス。
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client はblogman APIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option はClientの任意設定。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを設定する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock はSessionの有効期限判定に使う現在時刻の取得関数を設定する。
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New はClientを生成する。baseURLには /api のようなパスプレフィックスを含めてよい。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register はユーザーを登録する。
func (c *Client) Register(ctx context.Context, email, username, password string) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	body := map[string]string{"email": email, "username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login はログインしてSessionを返す。
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
		User      User      `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return nil, err
	}
	return &Session{Token: resp.Token, ExpiresAt: resp.ExpiresAt, User: resp.User}, nil
}

// Me はSessionのユーザー情報をサーバーから取得する。
func (c *Client) Me(ctx context.Context, s *Session) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.doAuth(ctx, s, http.MethodGet, "/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout はSessionのトークンを失効させる。
func (c *Client) Logout(ctx context.Context, s *Session) error {
	return c.doAuth(ctx, s, http.MethodPost, "/auth/logout", nil, nil)
}

// ListPosts は公開済み投稿を新しい順に返す。
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/posts", "", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// MyPosts はSessionのユーザーの全投稿を返す。
func (c *Client) MyPosts(ctx context.Context, s *Session) ([]Post, error) {
	var posts []Post
	if err := c.doAuth(ctx, s, http.MethodGet, "/posts/my", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost は投稿を1件取得する。
func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost は投稿を作成する。
func (c *Client) CreatePost(ctx context.Context, s *Session, in PostInput) (*Post, error) {
	var p Post
	if err := c.doAuth(ctx, s, http.MethodPost, "/posts", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost は投稿を更新する。
func (c *Client) UpdatePost(ctx context.Context, s *Session, id string, in PostInput) (*Post, error) {
	var p Post
	if err := c.doAuth(ctx, s, http.MethodPut, "/posts/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost は投稿を削除する。
func (c *Client) DeletePost(ctx context.Context, s *Session, id string) error {
	return c.doAuth(ctx, s, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

// doAuth はSessionのトークンを付与してリクエストを送信する。
// Sessionが無い、または期限切れの場合は送信せずにErrNoSessionを返す。
func (c *Client) doAuth(ctx context.Context, s *Session, method, path string, in, out any) error {
	if !s.Valid(c.now()) {
		return ErrNoSession
	}
	return c.do(ctx, method, path, s.Token, in, out)
}

// do はリクエストを送信し、成功時はレスポンスをoutにデコードする。
// 4xx・5xxの場合は*APIErrorを返す。
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
