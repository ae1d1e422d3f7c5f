package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MemoryDSN selects the in-process repository instead of postgres.
const MemoryDSN = "memory"

// Params holds raw settings as read from the environment and flags.
type Params struct {
	ServerAddr     string        `env:"GOCHAT_ADDR"            envDefault:"localhost:8000"`
	DatabaseDSN    string        `env:"GOCHAT_DSN"             envDefault:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningKey     string        `env:"GOCHAT_SIGNING_KEY"`
	AllowedOrigins []string      `env:"GOCHAT_ALLOWED_ORIGINS" envSeparator:","`
	UploadsDir     string        `env:"GOCHAT_UPLOADS_DIR"     envDefault:"uploads/message"`
	TokenIssuer    string        `env:"GOCHAT_TOKEN_ISSUER"    envDefault:"go-messenger"`
	TokenTTL       time.Duration `env:"GOCHAT_TOKEN_TTL"       envDefault:"24h"`
	MaxConnections int           `env:"GOCHAT_MAX_CONNECTIONS" envDefault:"1024"`
	Migrate        bool          `env:"GOCHAT_MIGRATE"         envDefault:"true"`
}

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	UploadsDir     string
	TokenIssuer    string
	TokenTTL       time.Duration
	MaxConnections int
	Migrate        bool
}

// LoadParams reads Params from the environment, applying defaults.
func LoadParams() (Params, error) {
	var p Params
	if err := env.Parse(&p); err != nil {
		return Params{}, fmt.Errorf("parse env: %w", err)
	}
	return p, nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.UploadsDir == "" {
		return nil, fmt.Errorf("uploads directory cannot be empty")
	}
	if p.TokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be greater than 0")
	}
	if p.MaxConnections <= 0 {
		return nil, fmt.Errorf("max connections must be greater than 0")
	}

	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     p.ServerAddr,
		DatabaseDSN:    p.DatabaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: p.AllowedOrigins,
		UploadsDir:     p.UploadsDir,
		TokenIssuer:    p.TokenIssuer,
		TokenTTL:       p.TokenTTL,
		MaxConnections: p.MaxConnections,
		Migrate:        p.Migrate,
	}, nil
}

// UseMemoryStore reports whether the in-process repository was requested.
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseDSN == MemoryDSN
}
