package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
engine:
  base_url: http://engine.internal:8080
lark:
  app_id: cli_sample
  bot_user_ids: [approval-alert, hr-bot]
redis:
  address: localhost:6379
export:
  token_ttl: 5m
archive:
  kind: s3
  s3:
    bucket: approval-exports
    prefix: reports
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("LARK_APP_SECRET", "from-env")
	t.Setenv("DOWNLOAD_TOKEN_SECRET", "token-secret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://engine.internal:8080", cfg.Engine.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "from-env", cfg.Lark.AppSecret)
	assert.Equal(t, "approval-alert", cfg.Lark.BotUserID)
	assert.Equal(t, []string{"approval-alert", "hr-bot"}, cfg.Lark.BotUserIDs)
	assert.Equal(t, "approval:backlog", cfg.Redis.BacklogChannel)
	assert.Equal(t, 5*time.Minute, cfg.Export.TokenTTL)
	assert.Equal(t, "token-secret", cfg.Token.Secret)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "s3", cc.Archive.Kind)
	assert.Equal(t, "approval-exports", cc.Archive.S3Bucket)
	assert.Equal(t, "reports", cc.Archive.S3Prefix)
	assert.True(t, cc.Redis.Enabled())
	assert.NoError(t, cc.Validate())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("LARK_APP_SECRET", "from-env")
	t.Setenv("DOWNLOAD_TOKEN_SECRET", "")

	_, err := Load(writeConfig(t, sampleConfig))
	assert.ErrorContains(t, err, "token.secret is required")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
