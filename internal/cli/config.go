package cli

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/VladMinzatu/symquery/internal/symbolizer"
)

const (
	envLogLevel  = "SYMQUERY_LOG_LEVEL"
	envCacheSize = "SYMQUERY_CACHE_SIZE"
	envDebugDirs = "SYMQUERY_DEBUG_DIRS"
)

// Settings is the configuration taken from the environment.
type Settings struct {
	LogLevel slog.Level
	Library  symbolizer.Config
}

// LoadSettings reads the environment through getenv. Invalid values are
// logged and replaced by their defaults.
func LoadSettings(getenv func(string) string) Settings {
	s := Settings{
		LogLevel: slog.LevelWarn,
		Library: symbolizer.Config{
			CacheSize: symbolizer.DefaultCacheSize,
			DebugDirs: symbolizer.DefaultDebugDirs,
		},
	}

	if v := getenv(envLogLevel); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			slog.Warn("Ignoring invalid log level", "env", envLogLevel, "value", v)
		} else {
			s.LogLevel = level
		}
	}
	if v := getenv(envCacheSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Warn("Ignoring invalid cache size", "env", envCacheSize, "value", v)
		} else {
			s.Library.CacheSize = n
		}
	}
	if v := getenv(envDebugDirs); v != "" {
		var dirs []string
		for _, d := range filepath.SplitList(v) {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		if len(dirs) > 0 {
			s.Library.DebugDirs = dirs
		}
	}
	return s
}
