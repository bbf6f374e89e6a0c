package config

import (
	"github.com/garyjia/approval-bridge/internal/container"
)

// ToContainerConfig maps the file-based configuration onto the container's
// dependency configuration.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Engine: container.EngineConfig{
			BaseURL: c.Engine.BaseURL,
			Timeout: c.Engine.Timeout,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			BotUserID:  c.Lark.BotUserID,
			BotUserIDs: c.Lark.BotUserIDs,
		},
		Dispatch: container.DispatchConfig{
			Workers:       c.Dispatch.Workers,
			TemplatesPath: c.Dispatch.TemplatesPath,
		},
		Redis: container.RedisConfig{
			Address:        c.Redis.Address,
			Password:       c.Redis.Password,
			Database:       c.Redis.Database,
			PoolSize:       c.Redis.PoolSize,
			BacklogChannel: c.Redis.BacklogChannel,
			ProfileTTL:     c.Redis.ProfileTTL,
		},
		Export: container.ExportConfig{
			WorkDir:         c.Export.WorkDir,
			TokenTTL:        c.Export.TokenTTL,
			Workers:         c.Export.Workers,
			Retention:       c.Export.Retention,
			CleanupInterval: c.Export.CleanupInterval,
		},
		Archive: container.ArchiveConfig{
			Kind:       c.Archive.Kind,
			LocalDir:   c.Archive.LocalDir,
			S3Bucket:   c.Archive.S3.Bucket,
			S3Prefix:   c.Archive.S3.Prefix,
			S3Region:   c.Archive.S3.Region,
			S3Endpoint: c.Archive.S3.Endpoint,
		},
		Token: container.TokenConfig{
			Secret: c.Token.Secret,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}
