// Package config loads process configuration from the environment and an
// optional config file. Environment variables use the COOKHOUSE_ prefix with
// dots replaced by underscores, e.g. COOKHOUSE_STORE_TABLE_PREFIX.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jacentio/cookhouse/internal/shard"
)

// ErrMissingSecret is returned when no token signing secret is configured.
var ErrMissingSecret = errors.New("cookhouse/config: auth.jwt_secret is required")

// AWS holds the shared AWS client settings.
type AWS struct {
	Region string `mapstructure:"region"`
	// Profile selects a shared config profile.
	Profile string `mapstructure:"profile"`
	// Endpoint points DynamoDB at a local emulator.
	Endpoint string `mapstructure:"endpoint"`
}

// Store holds the document store settings.
type Store struct {
	TablePrefix string `mapstructure:"table_prefix"`
	NumShards   int    `mapstructure:"num_shards"`
}

// Blob holds the media bucket settings.
type Blob struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxImageBytes   int    `mapstructure:"max_image_bytes"`
}

// Auth holds identity and session settings.
type Auth struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
	AdminSuffix string        `mapstructure:"admin_suffix"`
}

// Config is the full process configuration.
type Config struct {
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	AWS   AWS   `mapstructure:"aws"`
	Store Store `mapstructure:"store"`
	Blob  Blob  `mapstructure:"blob"`
	Auth  Auth  `mapstructure:"auth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "cookhouse")
	v.SetDefault("log_level", "info")
	v.SetDefault("otlp_endpoint", "")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.profile", "")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("store.table_prefix", "cookhouse_")
	v.SetDefault("store.num_shards", 1)

	v.SetDefault("blob.bucket", "cookhouse-media")
	v.SetDefault("blob.region", "")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.access_key_id", "")
	v.SetDefault("blob.secret_access_key", "")
	v.SetDefault("blob.max_image_bytes", 5<<20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.admin_suffix", "@admin.com")
}

// Load reads the configuration. file may be empty; when set it is read
// before the environment, which takes precedence.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("COOKHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate clamps and fills derived values. Component-specific settings
// such as the signing secret are checked where the component is built.
func (c *Config) Validate() error {
	if c.Store.NumShards < 1 {
		c.Store.NumShards = 1
	}
	if c.Store.NumShards > shard.MaxShards {
		c.Store.NumShards = shard.MaxShards
	}
	if c.Blob.Region == "" {
		c.Blob.Region = c.AWS.Region
	}
	return nil
}

// Validate checks the settings needed to issue session tokens.
func (a Auth) Validate() error {
	if a.JWTSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
