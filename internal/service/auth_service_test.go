package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) AuthService {
	return NewAuthService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		repository.NewTransactionManager(db),
		[]byte("test-secret"),
	)
}

func registerPayload() RegisterRequest {
	return RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
		FirstName: "Alice",
		LastName:  "Nguyen",
		Role:      model.RoleStaff,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := testDB(t)
	svc := newAuthService(db)

	user, err := svc.Register(context.Background(), registerPayload())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != model.RoleStaff {
		t.Errorf("role = %q", user.Role)
	}

	result, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Access == "" || result.Refresh == "" {
		t.Error("login should return a full token pair")
	}
	if result.User.Username != "alice" {
		t.Errorf("user = %q", result.User.Username)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad password: err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown email: err = %v, want ErrUnauthorized", err)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	db := testDB(t)
	svc := newAuthService(db)

	bad := registerPayload()
	bad.Role = "superuser"
	if _, err := svc.Register(context.Background(), bad); !errors.Is(err, ErrValidation) {
		t.Errorf("invalid role: err = %v, want ErrValidation", err)
	}

	if _, err := svc.Register(context.Background(), registerPayload()); err != nil {
		t.Fatalf("register: %v", err)
	}

	dup := registerPayload()
	dup.Email = "alice2@example.com"
	if _, err := svc.Register(context.Background(), dup); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate username: err = %v, want ErrValidation", err)
	}

	dup = registerPayload()
	dup.Username = "alice2"
	if _, err := svc.Register(context.Background(), dup); !errors.Is(err, ErrValidation) {
		t.Errorf("duplicate email: err = %v, want ErrValidation", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	db := testDB(t)
	svc := newAuthService(db)

	if _, err := svc.Register(context.Background(), registerPayload()); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pair, err := svc.Refresh(context.Background(), RefreshRequest{Refresh: login.Refresh})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Error("refresh should return a full token pair")
	}
	if pair.Refresh == login.Refresh {
		t.Error("refresh token should rotate on every exchange")
	}

	// The presented token is single use
	if _, err := svc.Refresh(context.Background(), RefreshRequest{Refresh: login.Refresh}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("reused refresh token: err = %v, want ErrUnauthorized", err)
	}

	// The rotated token still works
	if _, err := svc.Refresh(context.Background(), RefreshRequest{Refresh: pair.Refresh}); err != nil {
		t.Errorf("rotated token refresh: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), RefreshRequest{Refresh: "not-a-token"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown token: err = %v, want ErrUnauthorized", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	db := testDB(t)
	svc := newAuthService(db)

	if _, err := svc.Register(context.Background(), registerPayload()); err != nil {
		t.Fatalf("register: %v", err)
	}
	login, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), login.Refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), RefreshRequest{Refresh: login.Refresh}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("refresh after logout: err = %v, want ErrUnauthorized", err)
	}

	// Idempotent, unknown tokens included
	if err := svc.Logout(context.Background(), login.Refresh); err != nil {
		t.Errorf("repeated logout: %v", err)
	}
	if err := svc.Logout(context.Background(), "unknown"); err != nil {
		t.Errorf("logout of unknown token: %v", err)
	}
}
