// Package authclient lets other services obtain tokens from auth_center.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const tokenPath = "/api/v1/auth/token"

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type Token struct {
	UserID                string     `json:"userId"`
	ClientID              string     `json:"clientId"`
	AccessToken           string     `json:"accessToken"`
	AccessTokenExpiresAt  time.Time  `json:"accessTokenExpiresAt"`
	RefreshToken          string     `json:"refreshToken"`
	RefreshTokenExpiresAt *time.Time `json:"refreshTokenExpiresAt"`
	Scope                 string     `json:"scope"`
}

// RefusedError is a warning or failure answer from the service.
type RefusedError struct {
	Status int
	Reason string
	Msg    string
}

func (e *RefusedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("auth refused (%d %s): %s", e.Status, e.Reason, e.Msg)
	}
	return fmt.Sprintf("auth refused (%d): %s", e.Status, e.Msg)
}

func (c *Client) Password(ctx context.Context, username, password, scope string) (*Token, error) {
	return c.token(ctx, map[string]string{
		"grant_type": "password",
		"username":   username,
		"password":   password,
		"scope":      scope,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	return c.token(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

func (c *Client) token(ctx context.Context, body map[string]string) (*Token, error) {
	body["client_id"] = c.clientID
	body["client_secret"] = c.clientSecret
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Code != 0 {
		refused := &RefusedError{Status: resp.StatusCode, Msg: env.Msg}
		var reason struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(env.Data, &reason) == nil {
			refused.Reason = reason.Code
		}
		return nil, refused
	}

	var tok Token
	if err := json.Unmarshal(env.Data, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}
