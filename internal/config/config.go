// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FaceAPIConfig holds the credentials of the remote face recognition service.
type FaceAPIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SessionConfig controls how login sessions are signed and delivered.
type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	Audience     string        `yaml:"audience"`
	TTL          time.Duration `yaml:"ttl"`
	CookieName   string        `yaml:"cookie_name"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	DatabaseDSN     string        `yaml:"database_dsn"`
	RedisAddr       string        `yaml:"redis_addr"`
	LogLevel        string        `yaml:"log_level"`
	TokenSecret     string        `yaml:"token_secret"`
	LoginRedirect   string        `yaml:"login_redirect"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	FaceAPI         FaceAPIConfig `yaml:"face_api"`
	Session         SessionConfig `yaml:"session"`
}

const (
	DefaultHTTPAddr       = ":8080"
	DefaultFaceAPIBaseURL = "https://api-us.faceplusplus.com"
	DefaultFaceAPITimeout = 10 * time.Second
	DefaultSessionTTL     = 12 * time.Hour
	DefaultCookieName     = "facelogin_session"
)

// Load reads path (when non-empty), applies environment overrides and
// defaults. It does not validate; call Validate before serving.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrideString(&c.HTTPAddr, "HTTP_ADDR")
	overrideString(&c.GRPCAddr, "GRPC_ADDR")
	overrideString(&c.DatabaseDSN, "DATABASE_DSN")
	overrideString(&c.RedisAddr, "REDIS_ADDR")
	overrideString(&c.LogLevel, "LOG_LEVEL")
	overrideString(&c.TokenSecret, "TOKEN_SECRET")
	overrideString(&c.LoginRedirect, "LOGIN_REDIRECT")
	overrideString(&c.FaceAPI.BaseURL, "FACE_API_URL")
	overrideString(&c.FaceAPI.APIKey, "FACE_API_KEY")
	overrideString(&c.FaceAPI.APISecret, "FACE_API_SECRET")
	overrideString(&c.Session.Secret, "JWT_SECRET")
	overrideString(&c.Session.Audience, "JWT_AUDIENCE")
	overrideString(&c.Session.CookieName, "SESSION_COOKIE_NAME")

	if err := overrideDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	if err := overrideDuration(&c.FaceAPI.Timeout, "FACE_API_TIMEOUT"); err != nil {
		return err
	}
	if err := overrideDuration(&c.Session.TTL, "SESSION_TTL"); err != nil {
		return err
	}
	if value := strings.TrimSpace(os.Getenv("SESSION_SECURE_COOKIE")); value != "" {
		secure, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("SESSION_SECURE_COOKIE: %w", err)
		}
		c.Session.SecureCookie = secure
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = "host=postgres user=postgres password=postgres dbname=facelogin port=5432 sslmode=disable"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "redis:6379"
	}
	if c.LoginRedirect == "" {
		c.LoginRedirect = "/"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	if c.FaceAPI.BaseURL == "" {
		c.FaceAPI.BaseURL = DefaultFaceAPIBaseURL
	}
	c.FaceAPI.BaseURL = strings.TrimRight(c.FaceAPI.BaseURL, "/")
	if c.FaceAPI.Timeout <= 0 {
		c.FaceAPI.Timeout = DefaultFaceAPITimeout
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
}

// Validate reports every missing secret at once.
func (c *Config) Validate() error {
	var errs []error
	if c.FaceAPI.APIKey == "" {
		errs = append(errs, errors.New("face_api.api_key is required"))
	}
	if c.FaceAPI.APISecret == "" {
		errs = append(errs, errors.New("face_api.api_secret is required"))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("token_secret is required"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("session.secret is required"))
	}
	return errors.Join(errs...)
}

func overrideString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func overrideDuration(dst *time.Duration, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
