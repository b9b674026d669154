// Package config содержит логику чтения конфигурации сервиса расчёта процентов.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	CalcServiceAddress string        `env:"CALC_SERVICE_ADDRESS"`
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionTimeout     time.Duration `env:"SESSION_QUERY_TIMEOUT" envDefault:"2s"`
	OAuth              OAuthConfig   `envPrefix:"OAUTH_"`
}

// OAuthConfig содержит параметры входа через OAuth2-провайдера. Пустые адреса
// провайдера означают Google.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	AuthURL      string `env:"AUTH_URL"`
	TokenURL     string `env:"TOKEN_URL"`
	UserInfoURL  string `env:"USERINFO_URL"`
}

// Enabled сообщает, настроен ли вход через провайдера.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.RedirectURL != ""
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envCalcAddress := cfg.CalcServiceAddress
	envSessionSecret := cfg.SessionSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (postgres://, sqlite:// or empty for in-memory)")
	flag.StringVar(&cfg.CalcServiceAddress, "c", "", "calculation service address (empty for the built-in engine)")
	flag.StringVar(&cfg.SessionSecret, "s", "", "secret for signing session tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envCalcAddress != "" {
		cfg.CalcServiceAddress = envCalcAddress
	}
	if envSessionSecret != "" {
		cfg.SessionSecret = envSessionSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

// EngineConfig содержит параметры автономного сервиса расчёта.
type EngineConfig struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

// ParseEngine считывает конфигурацию сервиса расчёта. Переменная RUN_ADDRESS имеет приоритет над флагом -a.
func ParseEngine() (*EngineConfig, error) {
	cfg := &EngineConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8081", "address and port for HTTP server")
	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}

	return cfg, nil
}
