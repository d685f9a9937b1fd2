// Package config loads groundtrack settings from flags, GROUNDTRACK_*
// environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/groundtrack/internal/auth"
	"github.com/star/groundtrack/internal/kvstore"
	"github.com/star/groundtrack/internal/stream"
	"github.com/star/groundtrack/internal/tle"
)

// EnvPrefix is prepended to every environment variable, with dots in keys
// replaced by underscores (store.backend -> GROUNDTRACK_STORE_BACKEND).
const EnvPrefix = "GROUNDTRACK"

// Config is the validated runtime configuration.
type Config struct {
	LogLevel   slog.Level
	HTTPAddr   string
	TrustProxy bool

	StoreBackend string // file, redis or memory
	StorePath    string
	Redis        kvstore.RedisConfig

	SourceKind string // fixed or file
	SourcePath string
	NoradID    string
	Creds      tle.Credentials

	CacheDir      string // empty disables the element cache
	CacheMaxFiles int

	SnapshotInterval time.Duration // 0 disables the refresh loop
	SeriesInterval   time.Duration

	Stream stream.Config
	Auth   auth.Config
}

var defaults = map[string]any{
	"log.level":                 "info",
	"http.addr":                 ":8080",
	"http.trust_proxy":          false,
	"store.backend":             "file",
	"store.path":                "groundtrack-state.json",
	"redis.addr":                "localhost:6379",
	"redis.password":            "",
	"redis.db":                  0,
	"redis.key":                 "groundtrack",
	"source.kind":               "fixed",
	"source.path":               "",
	"source.norad_id":           "25544",
	"spacetrack.username":       "",
	"spacetrack.password":       "",
	"cache.dir":                 "data/tle-cache",
	"cache.max_files":           5,
	"refresh.snapshot_interval": "5s",
	"refresh.series_interval":   "1m",
	"stream.max_per_ip":         10,
	"stream.keepalive":          "30s",
	"auth.enabled":              false,
	"auth.token":                "",
}

// New returns a viper instance with defaults and environment binding set up.
// If file is non-empty it is read as well.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}
	return v, nil
}

// Load reads and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddr:     v.GetString("http.addr"),
		TrustProxy:   v.GetBool("http.trust_proxy"),
		StoreBackend: strings.ToLower(v.GetString("store.backend")),
		StorePath:    v.GetString("store.path"),
		Redis: kvstore.RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Key:      v.GetString("redis.key"),
		},
		SourceKind: strings.ToLower(v.GetString("source.kind")),
		SourcePath: v.GetString("source.path"),
		NoradID:    strings.TrimSpace(v.GetString("source.norad_id")),
		Creds: tle.Credentials{
			Username: v.GetString("spacetrack.username"),
			Password: v.GetString("spacetrack.password"),
		},
		CacheDir:         v.GetString("cache.dir"),
		CacheMaxFiles:    v.GetInt("cache.max_files"),
		SnapshotInterval: v.GetDuration("refresh.snapshot_interval"),
		SeriesInterval:   v.GetDuration("refresh.series_interval"),
		Stream: stream.Config{
			MaxConcurrentPerIP: v.GetInt("stream.max_per_ip"),
			KeepaliveInterval:  v.GetDuration("stream.keepalive"),
		},
		Auth: auth.Config{
			Enabled: v.GetBool("auth.enabled"),
			Token:   v.GetString("auth.token"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return cfg, fmt.Errorf("log.level: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error

	switch c.StoreBackend {
	case "file":
		if c.StorePath == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be file, redis or memory", c.StoreBackend))
	}

	switch c.SourceKind {
	case "fixed":
	case "file":
		if c.SourcePath == "" {
			errs = append(errs, errors.New("source.path is required for the file source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q must be fixed or file", c.SourceKind))
	}

	if c.NoradID != "" {
		if _, err := strconv.Atoi(c.NoradID); err != nil {
			errs = append(errs, fmt.Errorf("source.norad_id %q must be an integer", c.NoradID))
		}
	}
	if c.CacheMaxFiles <= 0 {
		errs = append(errs, errors.New("cache.max_files must be positive"))
	}
	if c.SnapshotInterval < 0 || c.SeriesInterval < 0 {
		errs = append(errs, errors.New("refresh intervals must not be negative"))
	}
	if c.Stream.MaxConcurrentPerIP <= 0 {
		errs = append(errs, errors.New("stream.max_per_ip must be positive"))
	}
	if c.Stream.KeepaliveInterval <= 0 {
		errs = append(errs, errors.New("stream.keepalive must be positive"))
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("auth.token is required when auth is enabled"))
	}

	return errors.Join(errs...)
}
