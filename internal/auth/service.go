package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/despesas/internal/metrics"
	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// SignupInput は管理者によるユーザー登録の入力。
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp         IdentityProvider
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewService はServiceを生成する。recがnilの場合はメトリクスを記録しない。
func NewService(
	idp IdentityProvider,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
	rec metrics.Recorder,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		idp:         idp,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		metrics:     rec,
		now:         time.Now,
	}
}

// Login はIdPで認証し、ローカルユーザーと突き合わせてセッションを発行する。
// ローカルユーザー不在、パスワード不一致、auth_uid不一致はいずれも同じエラーを返す。
// auth_uidが未設定のユーザーは初回ログイン時にIdPのIDでバックフィルする。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	email = normalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.metrics.RecordLogin(metrics.ResultRejected)
		slog.Info("login rejected", slog.String("reason", "unknown email"))
		return nil, nil, model.NewInvalidCredentialsError()
	}

	identity, err := s.idp.Authenticate(ctx, email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.metrics.RecordLogin(metrics.ResultRejected)
		slog.Info("login rejected",
			slog.Int64("user_id", user.ID),
			slog.String("reason", "invalid credentials"),
		)
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, nil, fmt.Errorf("failed to authenticate with identity provider: %w", err)
	}

	if user.AuthUID != nil && *user.AuthUID != identity.UID {
		s.metrics.RecordLogin(metrics.ResultRejected)
		slog.Warn("login rejected",
			slog.Int64("user_id", user.ID),
			slog.String("reason", "auth uid mismatch"),
		)
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if user.AuthUID == nil {
		if err := s.userRepo.UpdateAuthUID(ctx, user.ID, identity.UID); err != nil {
			s.metrics.RecordLogin(metrics.ResultFailure)
			return nil, nil, fmt.Errorf("failed to backfill auth uid: %w", err)
		}
		uid := identity.UID
		user.AuthUID = &uid
		slog.Info("auth uid backfilled", slog.Int64("user_id", user.ID))
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordLogin(metrics.ResultSuccess)
	slog.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, user, nil
}

// Signup はIdPにIDを作成し、対応するローカルユーザーを作成する。
// IdP側に既にIDが存在する場合は検索して再リンクする。
// 2段階の処理はトランザクションではない。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.IsValid() {
		return nil, model.NewValidationError("Função inválida",
			model.FieldError{Field: "role", Message: "deve ser admin ou user"})
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	identity, err := s.idp.CreateIdentity(ctx, email, in.Password)
	switch {
	case errors.Is(err, ErrIdentityExists):
		identity, err = s.idp.FindIdentityByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing identity: %w", err)
		}
		if identity == nil {
			return nil, model.NewValidationError("Erro de consistência: usuário existe no provedor de identidade mas não foi encontrado")
		}
		slog.Info("relinking existing identity", slog.String("email", email))
	case errors.Is(err, ErrIdentityRejected):
		return nil, model.NewValidationError("Provedor de identidade recusou o cadastro: " + strings.TrimPrefix(err.Error(), ErrIdentityRejected.Error()+": "))
	case err != nil:
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	uid := identity.UID
	user := &model.User{
		Email:   email,
		Name:    strings.TrimSpace(in.Name),
		Role:    role,
		AuthUID: &uid,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションのユーザーIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
