package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrAuthExchangeNotConfigured = errors.New("auth exchange not configured")
	ErrAuthCodeInvalid           = errors.New("auth code invalid")
	ErrAuthExchangeFailed        = errors.New("auth exchange failed")
)

// AuthExchanger canjea el código de login del proveedor por un token de usuario.
type AuthExchanger struct {
	url    string
	appID  string
	client *http.Client
}

func NewAuthExchanger(exchangeURL, appID string, httpClient *http.Client) *AuthExchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &AuthExchanger{
		url:    strings.TrimSpace(exchangeURL),
		appID:  strings.TrimSpace(appID),
		client: httpClient,
	}
}

type authExchangeRequest struct {
	Code  string `json:"code"`
	AppID string `json:"app_id"`
}

type authExchangeResponse struct {
	AuthToken string `json:"auth_token"`
	Error     string `json:"error,omitempty"`
}

func (a *AuthExchanger) Exchange(ctx context.Context, code string) (string, error) {
	if a == nil || a.url == "" || a.appID == "" {
		return "", ErrAuthExchangeNotConfigured
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrAuthCodeInvalid
	}

	body, err := json.Marshal(authExchangeRequest{Code: code, AppID: a.appID})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthExchangeFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrAuthExchangeFailed, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status=%d", ErrAuthExchangeFailed, resp.StatusCode)
	}

	var out authExchangeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", ErrAuthExchangeFailed, err)
	}
	if out.AuthToken == "" {
		return "", fmt.Errorf("%w: empty auth_token", ErrAuthExchangeFailed)
	}
	return out.AuthToken, nil
}
