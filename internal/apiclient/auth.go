package apiclient

import (
	"context"
	"net/url"
)

// Credentials are posted to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the authenticated account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is the result of a successful login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, cred Credentials) (Session, error) {
	var out Session
	err := c.do(ctx, "POST", "/auth/login", nil, cred, &out)
	return out, err
}

// RegisterPushToken registers a device push token for the caller.
func (c *Client) RegisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, "POST", "/notifications/tokens", nil, map[string]string{"token": token}, nil)
}

// UnregisterPushToken removes a device push token.
func (c *Client) UnregisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, "DELETE", "/notifications/tokens/"+url.PathEscape(token), nil, nil, nil)
}
