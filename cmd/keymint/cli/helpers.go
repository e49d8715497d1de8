package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/keymint/keymint/internal/config"
	"github.com/keymint/keymint/internal/store"
)

// loadConfig builds the effective configuration: file (if present), then
// KEYMINT_* environment overrides for the database settings.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("keymint.yaml"); err == nil {
			path = "keymint.yaml"
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Env wins over file: KEYMINT_DATABASE_DRIVER / KEYMINT_DATABASE_DSN.
	if v := viper.GetString("database_driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("database_dsn"); v != "" {
		cfg.Database.DSN = v
	}
	return cfg, nil
}

// openStore connects to the configured database and runs migrations.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Database.Driver, cfg.Database.DSN)
}

// newLogger builds the process logger from the logging config. Dev mode
// forces debug level.
func newLogger(cfg *config.Config, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Logging.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
