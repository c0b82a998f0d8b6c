package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

type ValidateResponse struct {
	Valid     bool      `json:"valid"`
	UserID    string    `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Reason    string    `json:"reason,omitempty"`
}

func (c *Client) Register(ctx context.Context, displayName, email, password string) (*TokenResponse, error) {
	in := map[string]string{"display_name": displayName, "email": email, "password": password}
	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/register", in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", in, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", map[string]string{"token": token}, nil, http.StatusNoContent)
}

func (c *Client) ValidateToken(ctx context.Context, token string) (*ValidateResponse, error) {
	var out ValidateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/validate", map[string]string{"token": token}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetUserRole(ctx context.Context, userID, role string) (*User, error) {
	var out User
	path := "/api/v1/users/" + url.PathEscape(userID) + "/role"
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]string{"role": role}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
