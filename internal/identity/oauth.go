// Package identity реализует вход через внешнего OAuth2-провайдера.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL адрес userinfo Google, используемый по умолчанию.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrNoEmail возвращается, если провайдер не сообщил подтверждённый email пользователя.
var ErrNoEmail = errors.New("identity provider returned no verified email")

// Config содержит параметры OAuth2-клиента.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// OAuthProvider выполняет authorization code flow и определяет email пользователя.
type OAuthProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

// NewOAuthProvider создаёт провайдера. Пустые адреса заменяются адресами Google.
func NewOAuthProvider(cfg Config) *OAuthProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}

	return &OAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email"},
		},
		userInfoURL: userInfoURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// AuthCodeURL возвращает адрес страницы входа провайдера.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange обменивает код авторизации на токен и возвращает email пользователя.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}

	client := p.oauth.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("create userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" || (info.EmailVerified != nil && !*info.EmailVerified) {
		return "", ErrNoEmail
	}

	return email, nil
}
