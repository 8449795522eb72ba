package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	RuntimeDir string        `mapstructure:"runtime_dir"`
	StorageDir string        `mapstructure:"storage_dir"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	InstanceID string        `mapstructure:"instance_id"`

	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	Preview   PreviewConfig   `mapstructure:"preview"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Signaling SignalingConfig `mapstructure:"signaling"`
}

type PreviewConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	AdminIDs    []string      `mapstructure:"admin_ids"`
}

// MetadataConfig selects the document store: "memory", "redis" or "none".
type MetadataConfig struct {
	Backend string `mapstructure:"backend"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type RelayConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	MaxRoomSize  int           `mapstructure:"max_room_size"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	RequireAuth  bool          `mapstructure:"require_auth"`
	SlowPolicy   string        `mapstructure:"slow_policy"`
	Bus          bool          `mapstructure:"bus"`
}

type SignalingConfig struct {
	ICEServers  []string `mapstructure:"ice_servers"`
	ValidateSDP bool     `mapstructure:"validate_sdp"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("runtime_dir", "./public")
	v.SetDefault("storage_dir", "./data/storage")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "gdweb-dev-secret")
	v.SetDefault("instance_id", "")
	v.SetDefault("max_upload_bytes", 200<<20)

	v.SetDefault("preview.ttl", "1h")
	v.SetDefault("preview.sweep_interval", "60s")

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.admin_ids", []string{})

	v.SetDefault("metadata.backend", "memory")
	v.SetDefault("redis.url", "")

	v.SetDefault("relay.send_buffer", 64)
	v.SetDefault("relay.max_room_size", 0)
	v.SetDefault("relay.rate_limit", 0)
	v.SetDefault("relay.rate_interval", "1s")
	v.SetDefault("relay.require_auth", false)
	v.SetDefault("relay.slow_policy", "kick")
	v.SetDefault("relay.bus", false)

	v.SetDefault("signaling.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("signaling.validate_sdp", false)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("metadata", cfg.Metadata.Backend).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Metadata.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown metadata backend %q", c.Metadata.Backend)
	}
	if c.Metadata.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("metadata backend redis requires redis.url")
	}
	if c.Relay.Bus && c.Redis.URL == "" {
		return fmt.Errorf("relay bus requires redis.url")
	}
	switch c.Relay.SlowPolicy {
	case "kick", "drop":
	default:
		return fmt.Errorf("unknown relay slow policy %q", c.Relay.SlowPolicy)
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be positive")
	}
	if c.Preview.TTL <= 0 {
		return fmt.Errorf("preview.ttl must be positive")
	}
	if c.Preview.SweepInterval <= 0 || c.Preview.SweepInterval > c.Preview.TTL {
		c.Preview.SweepInterval = c.Preview.TTL
	}
	return nil
}

// IsAdmin reports whether uid is listed in auth.admin_ids.
func (c *Config) IsAdmin(uid string) bool {
	for _, id := range c.Auth.AdminIDs {
		if id == uid {
			return true
		}
	}
	return false
}
