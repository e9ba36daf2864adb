package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type RegisterRequest struct {
	Username   string `json:"username" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// UserResponse returns a User without exposing sensitive data
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// LoginResponse carries the token pair plus the authenticated profile
type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserResponse `json:"user"`
}

// TokenPairResponse is returned by the refresh exchange. The refresh
// token rotates on every exchange.
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// --- Interface ---

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPairResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUser(ctx context.Context, id string) (*UserResponse, error)
}

type authService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenRepository
	txManager  repository.TransactionManager
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, txManager repository.TransactionManager, secret []byte) AuthService {
	return &authService{
		users:      users,
		tokens:     tokens,
		txManager:  txManager,
		secret:     secret,
		accessTTL:  30 * time.Minute,
		refreshTTL: 7 * 24 * time.Hour,
	}
}

func mapUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:         user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       user.Role,
		Department: user.Department,
		Phone:      user.Phone,
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, req.Role)
	}

	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", ErrValidation)
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email already exists", ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hashedPassword),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	resp := mapUserResponse(user)
	return &resp, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	access, err := s.newAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := s.newRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Access:  access,
		Refresh: refresh,
		User:    mapUserResponse(user),
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token
// is revoked so every raw refresh token is usable exactly once.
func (s *authService) Refresh(ctx context.Context, req RefreshRequest) (*TokenPairResponse, error) {
	stored, err := s.tokens.GetByHash(ctx, hashToken(req.Refresh))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown refresh token", ErrUnauthorized)
	}
	if !stored.Usable(time.Now()) {
		return nil, fmt.Errorf("%w: refresh token expired or revoked", ErrUnauthorized)
	}

	user := stored.User

	var pair TokenPairResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.tokens.Revoke(txCtx, stored.ID.String()); err != nil {
			return err
		}

		access, err := s.newAccessToken(&user)
		if err != nil {
			return err
		}
		refresh, err := s.newRefreshToken(txCtx, &user)
		if err != nil {
			return err
		}

		pair = TokenPairResponse{Access: access, Refresh: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pair, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		// Logout is idempotent: an unknown token is already gone
		return nil
	}
	return s.tokens.Revoke(ctx, stored.ID.String())
}

func (s *authService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	resp := mapUserResponse(user)
	return &resp, nil
}

// newAccessToken signs an HS256 JWT with sub/role/exp/iat claims
func (s *authService) newAccessToken(user *model.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  now.Add(s.accessTTL).Unix(),
		"iat":  now.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// newRefreshToken issues a random token, persists its hash and returns the raw value
func (s *authService) newRefreshToken(ctx context.Context, user *model.User) (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	raw := hex.EncodeToString(buf)

	stored := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, stored); err != nil {
		return "", err
	}

	return raw, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
