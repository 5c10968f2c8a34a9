// Package app wires the quiz bot: configuration, storage, services and the
// Telegram and HTTP surfaces.
package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	coredatabase "github.com/m3rciful/neuroquiz/core/database"
)

// RedisConfig selects the update de-duplication backend. An empty Addr keeps
// it in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Prefix   string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// GenerationConfig describes the image provider.
type GenerationConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"GENAPI_BASE_URL"`
	APIKey         string `yaml:"api_key" envconfig:"GENAPI_API_KEY"`
	Network        string `yaml:"network" envconfig:"GENAPI_NETWORK"`
	Width          int    `yaml:"width" envconfig:"GENAPI_WIDTH"`
	Height         int    `yaml:"height" envconfig:"GENAPI_HEIGHT"`
	TranslateInput bool   `yaml:"translate_input" envconfig:"GENAPI_TRANSLATE_INPUT"`
	// CallbackSecret is required in the token parameter of provider callbacks.
	CallbackSecret string `yaml:"callback_secret" envconfig:"GENAPI_CALLBACK_SECRET"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"GENAPI_TIMEOUT_SECONDS"`
}

// Timeout returns the provider request timeout.
func (g GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// FunnelConfig holds the promotional links and the channel to subscribe to.
type FunnelConfig struct {
	// ChannelURL is opened by the subscribe button.
	ChannelURL string `yaml:"channel_url" envconfig:"FUNNEL_CHANNEL_URL"`
	// ChannelID is "@name" or the numeric id used for membership checks.
	ChannelID string `yaml:"channel_id" envconfig:"FUNNEL_CHANNEL_ID"`
	// ChannelBotToken belongs to a bot that administers the channel.
	// Empty means the main bot checks membership itself.
	ChannelBotToken string `yaml:"channel_bot_token" envconfig:"FUNNEL_CHANNEL_BOT_TOKEN"`
	TexterURL       string `yaml:"texter_url" envconfig:"FUNNEL_TEXTER_URL"`
	HolstURL        string `yaml:"holst_url" envconfig:"FUNNEL_HOLST_URL"`
	HomeURL         string `yaml:"home_url" envconfig:"FUNNEL_HOME_URL"`
	// MembershipTimeoutSeconds bounds a single getChatMember call.
	MembershipTimeoutSeconds int `yaml:"membership_timeout_seconds" envconfig:"FUNNEL_MEMBERSHIP_TIMEOUT_SECONDS"`
}

// QuizConfig toggles quiz rules.
type QuizConfig struct {
	AdvanceOnIncorrect bool `yaml:"advance_on_incorrect" envconfig:"QUIZ_ADVANCE_ON_INCORRECT"`
	ImageBonus         bool `yaml:"image_bonus" envconfig:"QUIZ_IMAGE_BONUS"`
}

// ContentConfig locates the quiz catalog and its pictures.
type ContentConfig struct {
	Path     string `yaml:"path" envconfig:"CONTENT_PATH"`
	MediaDir string `yaml:"media_dir" envconfig:"CONTENT_MEDIA_DIR"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Redis      RedisConfig         `yaml:"redis"`
	Generation GenerationConfig    `yaml:"generation"`
	Funnel     FunnelConfig        `yaml:"funnel"`
	Quiz       QuizConfig          `yaml:"quiz"`
	Content    ContentConfig       `yaml:"content"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and validates every section.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Config.HTTP.PublicURL) == "" {
		return fmt.Errorf("http.public_url is required for provider callbacks and redirect links")
	}

	g := &c.Generation
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if g.BaseURL != "" {
		if err := absoluteURL("generation.base_url", g.BaseURL); err != nil {
			return err
		}
	}
	if g.Width < 0 || g.Height < 0 {
		return fmt.Errorf("generation.width and generation.height must be >= 0")
	}
	if g.TimeoutSeconds <= 0 {
		g.TimeoutSeconds = 30
	}

	f := &c.Funnel
	for _, u := range []struct{ name, value string }{
		{"funnel.channel_url", f.ChannelURL},
		{"funnel.texter_url", f.TexterURL},
		{"funnel.holst_url", f.HolstURL},
		{"funnel.home_url", f.HomeURL},
	} {
		if u.value == "" {
			continue
		}
		if err := absoluteURL(u.name, u.value); err != nil {
			return err
		}
	}
	if f.ChannelURL != "" && strings.TrimSpace(f.ChannelID) == "" {
		return fmt.Errorf("funnel.channel_id is required when funnel.channel_url is set")
	}
	if f.MembershipTimeoutSeconds <= 0 {
		f.MembershipTimeoutSeconds = 5
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "neuroquiz:"
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}

	if strings.TrimSpace(c.Content.Path) == "" {
		c.Content.Path = "content/quiz.yaml"
	}
	if strings.TrimSpace(c.Content.MediaDir) == "" {
		c.Content.MediaDir = "media"
	}
	return nil
}

func absoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute URL", name, raw)
	}
	return nil
}
