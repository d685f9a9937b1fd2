package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/star/groundtrack/internal/config"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"store":       "store.backend",
	"store-path":  "store.path",
	"redis-addr":  "redis.addr",
	"source":      "source.kind",
	"source-path": "source.path",
	"norad-id":    "source.norad_id",
	"cache-dir":   "cache.dir",
	"addr":        "http.addr",
}

var rootCmd = &cobra.Command{
	Use:   "groundtrack",
	Short: "satellite ground track and look angles",
	Long: `groundtrack propagates a satellite's orbital elements to now and to every
minute in the surrounding ±90 minutes, computes azimuth/elevation/range from
the ground station, and writes the results to a key-value store.

Settings come from flags, GROUNDTRACK_* environment variables and an optional
config file, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		if cfg, err = config.Load(v); err != nil {
			return err
		}

		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
		return nil
	},
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("store", "file", "store backend: file, redis or memory")
	pf.String("store-path", "groundtrack-state.json", "JSON document for the file backend")
	pf.String("redis-addr", "localhost:6379", "redis address for the redis backend")
	pf.String("source", "fixed", "element source: fixed or file")
	pf.String("source-path", "", "GP JSON or 3-line TLE file for the file source")
	pf.String("cache-dir", "data/tle-cache", "directory for fetched element records, empty to disable")
}
