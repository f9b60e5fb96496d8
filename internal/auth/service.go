package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/docshare/docshare/internal/config"
	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/repository"
)

// 错误定义
var (
	ErrMissingField       = models.NewError(models.KindBadRequest, "username, password and publicKey are required")
	ErrUsernameTaken      = models.NewError(models.KindConflict, "username already exists")
	ErrUserNotFound       = models.NewError(models.KindNotFound, "user not found")
	ErrInvalidCredentials = models.NewError(models.KindUnauthorized, "invalid username or password")
	ErrInvalidToken       = models.NewError(models.KindUnauthorized, "invalid or expired token")
	ErrTokenRevoked       = models.NewError(models.KindUnauthorized, "token has been revoked")
)

// JWTClaims JWT令牌声明
//
// Subject carries the user id.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service 认证服务
type Service struct {
	store      *repository.Store
	secret     []byte
	expiry     time.Duration
	bcryptCost int
	revoker    Revoker
	now        func() time.Time
}

// NewService 创建认证服务
func NewService(store *repository.Store, cfg config.AuthConfig, revoker Revoker) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	expiry := cfg.TokenExpiry
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		store:      store,
		secret:     []byte(cfg.JWTSecret),
		expiry:     expiry,
		bcryptCost: cost,
		revoker:    revoker,
		now:        time.Now,
	}
}

// Register creates a user. The public key is stored as asserted.
func (s *Service) Register(ctx context.Context, req models.UserCreateRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" || strings.TrimSpace(req.PublicKey) == "" {
		return nil, ErrMissingField
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		PublicKey:    req.PublicKey,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Repos().Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

// Login 验证用户凭据并签发令牌
func (s *Service) Login(ctx context.Context, req models.UserLoginRequest) (*models.UserLoginResponse, error) {
	user, err := s.store.Repos().Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &models.UserLoginResponse{Token: token, User: user.Public()}, nil
}

// GenerateToken 生成JWT令牌
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := JWTClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken resolves a bearer token to a user id. Revoked tokens are rejected.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (int64, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	revoked, err := s.revoker.IsRevoked(ctx, tokenString)
	if err != nil {
		return 0, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return 0, ErrTokenRevoked
	}
	return userID, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return s.revoker.Revoke(ctx, tokenString, claims.ExpiresAt.Time)
}

// ListUsers returns every user's public identity.
func (s *Service) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.store.Repos().Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// GetUser 根据ID获取用户
func (s *Service) GetUser(ctx context.Context, id int64) (*models.PublicUser, error) {
	user, err := s.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}
