package client

import (
	"context"
	"net/http"
)

// User is the authenticated profile cached alongside the token pair.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Roles of the procurement workflow. The set is closed.
const (
	RoleStaff          = "staff"
	RoleApproverLevel1 = "approver_level_1"
	RoleApproverLevel2 = "approver_level_2"
	RoleFinance        = "finance"
)

// Login exchanges credentials for a session. On success the token pair
// and profile are stored and every subsequent call is authenticated.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	if email == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	cl, err := jsonCall(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
		User    User   `json:"user"`
	}
	// Login is pre-auth: a 401 here is bad credentials, not an expired
	// session, so bypass the refresh-and-retry path.
	status, data, err := c.send(ctx, cl)
	if err != nil {
		return nil, &APIError{Kind: KindTransportError, Message: err.Error()}
	}
	if err := decodeResponse(status, data, &result); err != nil {
		return nil, err
	}

	user := result.User
	c.store.Set(Credential{
		AccessToken:  result.Access,
		RefreshToken: result.Refresh,
		User:         &user,
	})
	return &user, nil
}

// Logout revokes the refresh token on the authority and clears the
// credential store. The store is cleared even if the remote revocation
// fails.
func (c *Client) Logout(ctx context.Context) error {
	_, refreshToken := c.store.Tokens()
	defer c.store.Clear()
	if refreshToken == "" {
		return nil
	}

	cl, err := jsonCall(http.MethodPost, "/api/auth/logout", map[string]string{"refresh": refreshToken})
	if err != nil {
		return err
	}
	status, data, err := c.send(ctx, cl)
	if err != nil {
		return &APIError{Kind: KindTransportError, Message: err.Error()}
	}
	return decodeResponse(status, data, nil)
}

// Me fetches the current profile from the authority and refreshes the
// cached copy.
func (c *Client) Me(ctx context.Context) (*User, error) {
	cl := call{method: http.MethodGet, path: "/api/auth/me"}

	var user User
	if err := c.do(ctx, cl, &user); err != nil {
		return nil, err
	}

	if access, refresh := c.store.Tokens(); access != "" {
		c.store.Set(Credential{AccessToken: access, RefreshToken: refresh, User: &user})
	}
	return &user, nil
}
