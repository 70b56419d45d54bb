// Package auth はユーザー登録、ログイン、トークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 6
	// MaxUsernameLength はユーザー名の最大文字数。
	MaxUsernameLength = 50
	// maxPasswordBytes はbcryptが扱える最大バイト数。これを超える入力はbcryptがエラーを返す。
	maxPasswordBytes = 72
)

// 認証イベント名（メトリクスのラベル値）
const (
	EventRegister     = "register"
	EventLoginSuccess = "login_success"
	EventLoginFailure = "login_failure"
	EventLogout       = "logout"
)

// EventRecorder は認証イベントの記録先。metrics.Collectorが満たす。
type EventRecorder interface {
	RecordAuthEvent(event string)
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   *TokenManager
	recorder EventRecorder

	// dummyHash は存在しないユーザーへのログイン時にも照合処理を行い、
	// 応答時間からアカウントの存在が推測されないようにするためのハッシュ。
	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenManager,
	recorder EventRecorder,
) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		recorder: recorder,
	}
}

// Register はユーザーを登録する。
// 入力検証 → メールアドレス/ユーザー名の重複確認（1回の検索） → ハッシュ化 → 保存の順に処理する。
// 平文パスワードは保存しない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if err := validateRegisterInput(email, username, in.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		if existing.Email == email {
			return nil, model.NewEmailTakenError()
		}
		return nil, model.NewUsernameTakenError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 重複確認と作成の間に同じ値で登録された場合
		if dup, ok := repository.IsDuplicateUser(err); ok {
			if dup.Field == "username" {
				return nil, model.NewUsernameTakenError()
			}
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(EventRegister)
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// ユーザーが存在しない場合とパスワードが一致しない場合は同一のエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 応答時間を揃えるためにダミーハッシュとの照合を行う
		_, _ = s.hasher.Compare(s.getDummyHash(), password)
		s.record(EventLoginFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.record(EventLoginFailure)
		slog.Warn("login failed", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	s.record(EventLoginSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyToken はベアラートークンを検証し、本人情報を返す。
func (s *Service) VerifyToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	return s.tokens.Verify(ctx, token)
}

// Logout はトークンを失効させる。
func (s *Service) Logout(ctx context.Context, tc *model.TokenClaims) error {
	if err := s.tokens.Revoke(ctx, tc); err != nil {
		return err
	}
	s.record(EventLogout)
	slog.Info("user logged out", slog.String("user_id", tc.UserID))
	return nil
}

// CurrentUser はトークンの本人に対応するユーザーを返す。
// ユーザーが存在しない場合は認証エラーとする。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	return user, nil
}

func (s *Service) record(event string) {
	if s.recorder != nil {
		s.recorder.RecordAuthEvent(event)
	}
}

func (s *Service) getDummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.New().String())
		if err != nil {
			slog.Error("failed to build dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// validateRegisterInput は登録入力を検証する。
func validateRegisterInput(email, username, password string) error {
	if email == "" || username == "" || password == "" {
		return model.NewValidationError("メールアドレス、ユーザー名、パスワードはすべて必須です。")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で入力してください。", MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("パスワードは%dバイト以内で入力してください。", maxPasswordBytes))
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return model.NewValidationError(fmt.Sprintf("ユーザー名は%d文字以内で入力してください。", MaxUsernameLength))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	return nil
}

// normalizeEmail は前後の空白を除去し小文字化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
