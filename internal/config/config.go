package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Export   ExportConfig   `mapstructure:"export"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Token    TokenConfig    `mapstructure:"token"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EngineConfig holds the process engine endpoint
type EngineConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID      string   `mapstructure:"app_id"`
	AppSecret  string   `mapstructure:"app_secret"`
	BaseURL    string   `mapstructure:"base_url"`
	BotUserID  string   `mapstructure:"bot_user_id"`
	BotUserIDs []string `mapstructure:"bot_user_ids"`
}

// DispatchConfig holds notification dispatch settings
type DispatchConfig struct {
	Workers       int    `mapstructure:"workers"`
	TemplatesPath string `mapstructure:"templates_path"`
}

// RedisConfig holds Redis settings; leave address empty to run without Redis
type RedisConfig struct {
	Address        string        `mapstructure:"address"`
	Password       string        `mapstructure:"password"`
	Database       int           `mapstructure:"database"`
	PoolSize       int           `mapstructure:"pool_size"`
	BacklogChannel string        `mapstructure:"backlog_channel"`
	ProfileTTL     time.Duration `mapstructure:"profile_ttl"`
}

// ExportConfig holds report export settings
type ExportConfig struct {
	WorkDir         string        `mapstructure:"work_dir"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	Workers         int           `mapstructure:"workers"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ArchiveConfig selects the archive backend
type ArchiveConfig struct {
	Kind     string   `mapstructure:"kind"`
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

// S3Config holds S3 archive settings
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// TokenConfig holds the download key signing secret
type TokenConfig struct {
	Secret string `mapstructure:"secret"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads an optional .env file, then the YAML file at configPath, then
// environment overrides.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/approval.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("engine.timeout", 10*time.Second)

	v.SetDefault("lark.bot_user_id", "approval-alert")

	v.SetDefault("dispatch.workers", 4)

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.backlog_channel", "approval:backlog")
	v.SetDefault("redis.profile_ttl", 10*time.Minute)

	v.SetDefault("export.work_dir", "data/export")
	v.SetDefault("export.token_ttl", 10*time.Minute)
	v.SetDefault("export.workers", 4)
	v.SetDefault("export.retention", time.Hour)
	v.SetDefault("export.cleanup_interval", 10*time.Minute)

	v.SetDefault("archive.kind", "local")
	v.SetDefault("archive.local_dir", "data/archives")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds secrets to their conventional environment names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":       "LARK_APP_ID",
		"lark.app_secret":   "LARK_APP_SECRET",
		"engine.base_url":   "ENGINE_BASE_URL",
		"redis.address":     "REDIS_ADDRESS",
		"redis.password":    "REDIS_PASSWORD",
		"token.secret":      "DOWNLOAD_TOKEN_SECRET",
		"archive.s3.bucket": "ARCHIVE_S3_BUCKET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
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
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}
