package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultGoTrueTimeout = 10 * time.Second
	adminUsersPerPage    = 100
	adminUsersMaxPages   = 50
	maxGoTrueBodyBytes   = 1 << 20
)

// GoTrueConfig はGoTrue（Supabase Auth）プロバイダーの設定。
type GoTrueConfig struct {
	URL        string // 例: https://xxx.supabase.co/auth/v1
	ServiceKey string // service_role キー。apikeyヘッダーと管理APIのBearerに使う
	JWTSecret  string // 設定時はアクセストークンの署名を検証する

	// テスト用にオーバーライド可能なクライアント
	HTTPClient *http.Client
}

// GoTrueProvider はGoTrueのREST APIでIDを管理する。
type GoTrueProvider struct {
	config GoTrueConfig
	client *http.Client
}

// NewGoTrueProvider はGoTrueProviderを生成する。
func NewGoTrueProvider(config GoTrueConfig) *GoTrueProvider {
	config.URL = strings.TrimRight(config.URL, "/")
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultGoTrueTimeout}
	}
	return &GoTrueProvider{config: config, client: client}
}

// gotrueUser はGoTrueのユーザーオブジェクト。
type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// gotrueTokenResponse はパスワードグラントのレスポンス。
type gotrueTokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        gotrueUser `json:"user"`
}

// gotrueUserList は管理APIのユーザー一覧レスポンス。
type gotrueUserList struct {
	Users []gotrueUser `json:"users"`
}

// gotrueError はGoTrueのエラーレスポンス。バージョンによりフィールド名が異なる。
type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Authenticate はパスワードグラントでトークンを取得し、IdP側のユーザーIDを返す。
func (p *GoTrueProvider) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	payload := map[string]string{"email": email, "password": password}
	status, body, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", payload, false)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusUnprocessableEntity:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("token request failed with status %d: %s", status, parseGoTrueError(body))
	}

	var tokenResp gotrueTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	uid, err := p.subjectFromToken(tokenResp.AccessToken, tokenResp.User.ID)
	if err != nil {
		return nil, err
	}

	identityEmail := tokenResp.User.Email
	if identityEmail == "" {
		identityEmail = email
	}
	return &Identity{UID: uid, Email: identityEmail}, nil
}

// CreateIdentity は管理APIでメール確認済みのユーザーを作成する。
func (p *GoTrueProvider) CreateIdentity(ctx context.Context, email, password string) (*Identity, error) {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}
	status, body, err := p.do(ctx, http.MethodPost, "/admin/users", payload, true)
	if err != nil {
		return nil, fmt.Errorf("create user request failed: %w", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		if isAlreadyRegistered(status, body) {
			return nil, ErrIdentityExists
		}
		if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
			return nil, fmt.Errorf("%w: %s", ErrIdentityRejected, parseGoTrueError(body))
		}
		return nil, fmt.Errorf("create user failed with status %d: %s", status, parseGoTrueError(body))
	}

	var u gotrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("failed to parse create user response: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("empty id in create user response")
	}
	return &Identity{UID: u.ID, Email: u.Email}, nil
}

// FindIdentityByEmail は管理APIのユーザー一覧をページングしながら検索する。
func (p *GoTrueProvider) FindIdentityByEmail(ctx context.Context, email string) (*Identity, error) {
	for page := 1; page <= adminUsersMaxPages; page++ {
		q := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(adminUsersPerPage)},
		}
		status, body, err := p.do(ctx, http.MethodGet, "/admin/users?"+q.Encode(), nil, true)
		if err != nil {
			return nil, fmt.Errorf("list users request failed: %w", err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("list users failed with status %d: %s", status, parseGoTrueError(body))
		}

		var list gotrueUserList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to parse list users response: %w", err)
		}
		for _, u := range list.Users {
			if strings.EqualFold(u.Email, email) {
				return &Identity{UID: u.ID, Email: u.Email}, nil
			}
		}
		if len(list.Users) < adminUsersPerPage {
			return nil, nil
		}
	}
	return nil, nil
}

// subjectFromToken はアクセストークンのsubクレームを取り出す。
// JWTSecretが設定されている場合は署名と有効期限を検証し、userIDとの一致も確認する。
func (p *GoTrueProvider) subjectFromToken(accessToken, userID string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	if p.config.JWTSecret == "" {
		if userID != "" {
			return userID, nil
		}
		if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
			return "", fmt.Errorf("failed to parse access token: %w", err)
		}
		if claims.Subject == "" {
			return "", fmt.Errorf("empty sub in access token")
		}
		return claims.Subject, nil
	}

	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(p.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("empty sub in access token")
	}
	if userID != "" && claims.Subject != userID {
		return "", fmt.Errorf("access token subject does not match user id")
	}
	return claims.Subject, nil
}

// do はGoTrueへJSONリクエストを送信し、ステータスとボディを返す。
func (p *GoTrueProvider) do(ctx context.Context, method, path string, payload any, admin bool) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.URL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", p.config.ServiceKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+p.config.ServiceKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGoTrueBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func parseGoTrueError(body []byte) string {
	var e gotrueError
	if err := json.Unmarshal(body, &e); err != nil || e.text() == "" {
		return strings.TrimSpace(string(body))
	}
	return e.text()
}

// isAlreadyRegistered はユーザー作成失敗が既存メールアドレスによるものかを判定する。
func isAlreadyRegistered(status int, body []byte) bool {
	if status != http.StatusUnprocessableEntity && status != http.StatusBadRequest && status != http.StatusConflict {
		return false
	}
	var e gotrueError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	if e.ErrorCode == "email_exists" {
		return true
	}
	return strings.Contains(strings.ToLower(e.text()), "already been registered")
}

// compile-time interface check
var _ IdentityProvider = (*GoTrueProvider)(nil)
