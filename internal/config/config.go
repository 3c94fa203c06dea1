// Package config loads the coordinator's configuration via Viper: a config
// file, environment variables (prefixed RQUEUE_), and documented defaults.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the enumerated configuration from §6: storage location and
// persistence behavior, the default queue identity, and whether to force
// remote storage even when a local directory is configured.
type Config struct {
	LocalStorageDir       string        `mapstructure:"local_storage_dir"`
	PersistStorage        bool          `mapstructure:"persist_storage"`
	WriteMetadata         bool          `mapstructure:"write_metadata"`
	DefaultRequestQueueID string        `mapstructure:"default_request_queue_id"`
	ForceCloud            bool          `mapstructure:"force_cloud"`

	RemoteBaseURL string `mapstructure:"remote_base_url"`
	RemoteToken   string `mapstructure:"remote_token"`

	HTTPTimeout         time.Duration `mapstructure:"http_timeout"`
	InternalTimeoutSecs int           `mapstructure:"internal_timeout_secs"`
	Development         bool          `mapstructure:"development"`
}

// Load builds a Viper instance with the coordinator's defaults, reads an
// optional config file at path (ignored if empty or not found), and layers
// RQUEUE_-prefixed environment variables over both.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("local_storage_dir", "./storage")
	v.SetDefault("persist_storage", true)
	v.SetDefault("write_metadata", false)
	v.SetDefault("default_request_queue_id", "default")
	v.SetDefault("force_cloud", false)
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("internal_timeout_secs", 300)
	v.SetDefault("development", false)

	v.SetEnvPrefix("RQUEUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
