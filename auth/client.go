// Package auth is the thin boundary to the OAuth collaborator. The
// pipeline never performs the authorization-code exchange itself; it only
// refreshes, revokes, and inspects capabilities minted elsewhere.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"consult-worker/apperrors"
	"consult-worker/dto"
)

type UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Client struct {
	oauth       oauth2.Config
	revokeURL   string
	userInfoURL string
	http        *http.Client
}

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RevokeURL    string
	UserInfoURL  string
}

func NewClient(cfg Config) *Client {
	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		revokeURL:   cfg.RevokeURL,
		userInfoURL: cfg.UserInfoURL,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// Exchange trades an authorization code for a capability.
func (c *Client) Exchange(ctx context.Context, code string) (dto.Capability, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return dto.Capability{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	return capabilityFrom(token), nil
}

// Refresh exchanges a refresh token for a fresh capability.
func (c *Client) Refresh(ctx context.Context, cap dto.Capability) (dto.Capability, error) {
	if cap.RefreshToken == "" {
		return dto.Capability{}, fmt.Errorf("%w: capability has no refresh token", apperrors.ErrUnauthorized)
	}
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cap.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return dto.Capability{}, fmt.Errorf("%w: refresh: %w", apperrors.ErrUnauthorized, err)
	}
	refreshed := capabilityFrom(token)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cap.RefreshToken
	}
	return refreshed, nil
}

func (c *Client) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("revoke failed: http %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return UserInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return UserInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return UserInfo{}, fmt.Errorf("%w: userinfo returned %d", apperrors.ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return UserInfo{}, fmt.Errorf("userinfo failed: http %d: %s", resp.StatusCode, string(body))
	}
	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return UserInfo{}, err
	}
	return info, nil
}

func capabilityFrom(token *oauth2.Token) dto.Capability {
	return dto.Capability{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}
