package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"backend/internal/model"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func authRouter(svc service.AuthService) *gin.Engine {
	router := gin.New()
	NewAuthHandler(svc).RegisterRoutes(router.Group(""))
	return router
}

func TestLogin(t *testing.T) {
	router := authRouter(&mockAuthService{
		LoginFunc: func(_ context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
			if req.Password != "s3cret-pass" {
				return nil, fmt.Errorf("%w: invalid email or password", service.ErrUnauthorized)
			}
			return &service.LoginResponse{
				Access:  "access-token",
				Refresh: "refresh-token",
				User:    service.UserResponse{ID: uuid.NewString(), Username: "alice", Role: model.RoleStaff},
			}, nil
		},
	})

	body := bytes.NewReader([]byte(`{"email":"alice@example.com","password":"s3cret-pass"}`))
	req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := serve(router, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}

	body = bytes.NewReader([]byte(`{"email":"alice@example.com","password":"wrong"}`))
	req, _ = http.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	router := authRouter(&mockAuthService{})

	body := bytes.NewReader([]byte(`{"email":"not-an-email"}`))
	req, _ := http.NewRequest(http.MethodPost, "/api/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := serve(router, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	router := authRouter(&mockAuthService{
		RegisterFunc: func(_ context.Context, req service.RegisterRequest) (*service.UserResponse, error) {
			return &service.UserResponse{ID: uuid.NewString(), Username: req.Username, Role: req.Role}, nil
		},
	})

	body := bytes.NewReader([]byte(`{"username":"alice","email":"alice@example.com","password":"s3cret-pass","role":"staff"}`))
	req, _ := http.NewRequest(http.MethodPost, "/api/auth/register", body)
	req.Header.Set("Content-Type", "application/json")
	rec := serve(router, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\n%s", rec.Code, rec.Body.String())
	}
}

func TestRefreshEndpoint(t *testing.T) {
	router := authRouter(&mockAuthService{
		RefreshFunc: func(_ context.Context, req service.RefreshRequest) (*service.TokenPairResponse, error) {
			if req.Refresh != "good-token" {
				return nil, fmt.Errorf("%w: unknown refresh token", service.ErrUnauthorized)
			}
			return &service.TokenPairResponse{Access: "new-access", Refresh: "new-refresh"}, nil
		},
	})

	body := bytes.NewReader([]byte(`{"refresh":"good-token"}`))
	req, _ := http.NewRequest(http.MethodPost, "/api/auth/refresh", body)
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	body = bytes.NewReader([]byte(`{"refresh":"stale-token"}`))
	req, _ = http.NewRequest(http.MethodPost, "/api/auth/refresh", body)
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("stale token: status = %d, want 401", rec.Code)
	}
}

func TestMeRequiresToken(t *testing.T) {
	userID := uuid.New()
	router := authRouter(&mockAuthService{
		GetUserFunc: func(_ context.Context, id string) (*service.UserResponse, error) {
			return &service.UserResponse{ID: id, Username: "alice", Role: model.RoleStaff}, nil
		},
	})

	req, _ := http.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if rec := serve(router, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req, _ = http.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", bearerToken(t, userID, model.RoleStaff))
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
}
