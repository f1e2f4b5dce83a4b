package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are read by LoadEnv when no files are named.
var DefaultEnvFiles = []string{".env", ".env.dev"}

// LoadEnv overlays the process environment with local env files. Missing
// files are skipped; later files win.
func LoadEnv(logger *logrus.Logger, files ...string) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).WithField("file", file).Warn("Skipping unreadable env file")
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger != nil {
		logger.WithField("files", loaded).Debug("Env files loaded")
	}
}

// lookup returns def when key is unset, blank or fails to parse.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

// GetEnv returns the variable or def when it is unset.
func GetEnv(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func GetEnvInt(key string, def int) int {
	return lookup(key, def, strconv.Atoi)
}

func GetEnvBool(key string, def bool) bool {
	return lookup(key, def, strconv.ParseBool)
}

// GetEnvDuration parses a Go duration ("1.5s", "10m"). A bare integer is read as seconds.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	return lookup(key, def, func(raw string) (time.Duration, error) {
		if secs, err := strconv.Atoi(raw); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return time.ParseDuration(raw)
	})
}

// GetEnvList splits a comma separated variable, dropping empty items.
func GetEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetLogLevel reads LOG_LEVEL, falling back to info for unknown names.
func GetLogLevel() logrus.Level {
	return lookup("LOG_LEVEL", logrus.InfoLevel, logrus.ParseLevel)
}

// RequireEnv fetches a variable and exits the process if it is empty.
func RequireEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		logrus.Fatalf("environment variable %s is required but not set", key)
	}
	return value
}

// RequireEnvInt fetches an integer variable and exits the process if it is empty or malformed.
func RequireEnvInt(key string) int {
	parsed, err := strconv.Atoi(RequireEnv(key))
	if err != nil {
		logrus.Fatalf("environment variable %s must be an integer: %v", key, err)
	}
	return parsed
}
