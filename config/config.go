// Package config loads semlift settings from defaults, an optional config
// file and SEMLIFT_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/lift"
	"github.com/geoknoesis/semlift-go/provider/bblocks"
	"github.com/geoknoesis/semlift-go/resolve"
)

// EnvPrefix prefixes every environment variable, e.g. SEMLIFT_CACHE_DIR.
const EnvPrefix = "SEMLIFT"

// Config is the full settings tree.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	JQ      JQConfig      `mapstructure:"jq"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Log     LogConfig     `mapstructure:"log"`
	BBlocks BBlocksConfig `mapstructure:"bblocks"`
}

type CacheConfig struct {
	Dir            string        `mapstructure:"dir"`
	TTL            time.Duration `mapstructure:"ttl"`
	StaleIfError   bool          `mapstructure:"stale_if_error"`
	RespectHeaders bool          `mapstructure:"respect_headers"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Rate is the maximum API requests per second; 0 disables throttling.
	Rate float64 `mapstructure:"rate"`
}

type JQConfig struct {
	Binary string `mapstructure:"binary"`
}

// EngineConfig holds the command templates of the SHACL and SPARQL engine.
type EngineConfig struct {
	Shacl     string `mapstructure:"shacl"`
	Construct string `mapstructure:"construct"`
	Update    string `mapstructure:"update"`
}

type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

type BBlocksConfig struct {
	Registry string `mapstructure:"registry"`
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	cache := resolve.DefaultCacheConfig()
	v.SetDefault("cache.dir", cache.Dir)
	v.SetDefault("cache.ttl", cache.TTL)
	v.SetDefault("cache.stale_if_error", cache.StaleIfError)
	v.SetDefault("cache.respect_headers", cache.RespectCacheHeaders)

	v.SetDefault("http.timeout", cache.Timeout)
	v.SetDefault("http.rate", 0)

	v.SetDefault("jq.binary", lift.DefaultJQBinary)

	v.SetDefault("engine.shacl", backend.DefaultShaclCommand)
	v.SetDefault("engine.construct", backend.DefaultConstructCommand)
	v.SetDefault("engine.update", backend.DefaultUpdateCommand)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)

	v.SetDefault("bblocks.registry", bblocks.DefaultRegistryURL)
}

// New returns a viper instance with defaults and environment binding. When
// file is empty, semlift.{yaml,toml,json} is searched in the working
// directory and in $HOME/.semlift; a missing file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("semlift")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".semlift"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Mark(errors.Wrap(err, "read config file"), errors.ErrConfiguration)
		}
	}
	return v, nil
}

// Load reads the settings from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode config"), errors.ErrConfiguration)
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = resolve.DefaultCacheDir()
	}
	return &cfg, nil
}

// ResolverCache converts the cache and HTTP settings for resolve.
func (c *Config) ResolverCache() resolve.CacheConfig {
	return resolve.CacheConfig{
		Dir:                 c.Cache.Dir,
		TTL:                 c.Cache.TTL,
		StaleIfError:        c.Cache.StaleIfError,
		RespectCacheHeaders: c.Cache.RespectHeaders,
		Timeout:             c.HTTP.Timeout,
	}
}
