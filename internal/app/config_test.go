package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/neuroquiz/core/database"
	"github.com/m3rciful/neuroquiz/internal/app"
)

const sampleConfig = `
telegram:
  token: "123:abc"
  admin_id: 42
  run_mode: webhook
http:
  public_url: "https://bot.example"
  port: 9000
database:
  driver: sqlite
  path: ":memory:"
generation:
  api_key: "key"
  callback_secret: "s3"
funnel:
  channel_url: "https://t.me/neuroved"
  channel_id: "@neuroved"
  texter_url: "https://texter.example/"
  holst_url: "https://holst.example/"
quiz:
  image_bonus: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := app.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	core := cfg.CoreConfig()
	assert.Equal(t, "123:abc", core.Telegram.Token)
	assert.Equal(t, int64(42), core.Telegram.AdminID)
	assert.Equal(t, "webhook", core.Telegram.RunMode)
	assert.Equal(t, "/telegram/webhook", core.HTTP.WebhookPath)
	assert.Equal(t, 9000, core.HTTP.Port)

	assert.Equal(t, coredatabase.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Generation.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Funnel.MembershipTimeoutSeconds)
	assert.Equal(t, "neuroquiz:", cfg.Redis.Prefix)
	assert.Equal(t, "content/quiz.yaml", cfg.Content.Path)
	assert.Equal(t, "media", cfg.Content.MediaDir)
	assert.True(t, cfg.Quiz.ImageBonus)
	assert.False(t, cfg.Quiz.AdvanceOnIncorrect)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GENAPI_API_KEY", "env-key")
	t.Setenv("QUIZ_ADVANCE_ON_INCORRECT", "true")

	cfg, err := app.Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "env-key", cfg.Generation.APIKey)
	assert.True(t, cfg.Quiz.AdvanceOnIncorrect)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	valid := func() *app.Config {
		cfg := &app.Config{}
		cfg.Telegram.Token = "123:abc"
		cfg.HTTP.PublicURL = "https://bot.example"
		cfg.Database = coredatabase.Config{Driver: "sqlite3", Path: ":memory:"}
		cfg.Generation.APIKey = "key"
		return cfg
	}
	require.NoError(t, valid().Normalize())

	cases := map[string]func(*app.Config){
		"no token":          func(c *app.Config) { c.Telegram.Token = "" },
		"no public url":     func(c *app.Config) { c.HTTP.PublicURL = "" },
		"no api key":        func(c *app.Config) { c.Generation.APIKey = " " },
		"relative base url": func(c *app.Config) { c.Generation.BaseURL = "/api" },
		"negative size":     func(c *app.Config) { c.Generation.Width = -1 },
		"bad texter url":    func(c *app.Config) { c.Funnel.TexterURL = "texter" },
		"channel id":        func(c *app.Config) { c.Funnel.ChannelURL = "https://t.me/x" },
		"redis db":          func(c *app.Config) { c.Redis.DB = -1 },
		"db driver":         func(c *app.Config) { c.Database.Driver = "mysql" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Normalize())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := app.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := app.Load("../../config/config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, coredatabase.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "webhook", cfg.Telegram.RunMode)
	assert.Equal(t, []string{"callback"}, cfg.RateLimit.ExcludeUpdates)
	assert.Empty(t, cfg.Redis.Addr)
}
