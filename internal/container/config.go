// Package container provides dependency injection and lifecycle management
// for the approval bridge following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Archive backends.
const (
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Engine   EngineConfig
	Lark     LarkConfig
	Dispatch DispatchConfig
	Redis    RedisConfig
	Export   ExportConfig
	Archive  ArchiveConfig
	Token    TokenConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// EngineConfig points at the external process engine.
type EngineConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string

	// BotUserID is the identity messages are sent from
	BotUserID string

	// BotUserIDs never receive approval messages
	BotUserIDs []string
}

// DispatchConfig tunes notification dispatch.
type DispatchConfig struct {
	Workers int

	// TemplatesPath overrides the built-in message templates
	TemplatesPath string
}

// RedisConfig holds Redis settings. An empty Address disables Redis.
type RedisConfig struct {
	Address        string
	Password       string
	Database       int
	PoolSize       int
	BacklogChannel string
	ProfileTTL     time.Duration
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// ExportConfig tunes report generation.
type ExportConfig struct {
	WorkDir         string
	TokenTTL        time.Duration
	Workers         int
	Retention       time.Duration
	CleanupInterval time.Duration
}

// ArchiveConfig selects where generated archives are kept.
type ArchiveConfig struct {
	Kind     string
	LocalDir string

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string
}

// TokenConfig holds the download key secret.
type TokenConfig struct {
	Secret string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/approval.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Engine: EngineConfig{
			Timeout: 10 * time.Second,
		},
		Lark: LarkConfig{
			BotUserID: "approval-alert",
		},
		Dispatch: DispatchConfig{
			Workers: 4,
		},
		Redis: RedisConfig{
			PoolSize:       10,
			BacklogChannel: "approval:backlog",
			ProfileTTL:     10 * time.Minute,
		},
		Export: ExportConfig{
			WorkDir:         "data/export",
			TokenTTL:        10 * time.Minute,
			Workers:         4,
			Retention:       time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Archive: ArchiveConfig{
			Kind:     ArchiveLocal,
			LocalDir: "data/archives",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("engine.base_url is required")
	}
	if c.Lark.AppID == "" {
		return fmt.Errorf("lark.app_id is required")
	}
	if c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required")
	}
	if c.Token.Secret == "" {
		return fmt.Errorf("token.secret is required")
	}

	switch c.Archive.Kind {
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required")
		}
	case ArchiveS3:
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("archive.s3.bucket is required")
		}
	default:
		return fmt.Errorf("archive.kind must be %q or %q, got %q", ArchiveLocal, ArchiveS3, c.Archive.Kind)
	}

	return nil
}
