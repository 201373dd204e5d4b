package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port string

	// ViewerCommand is the external viewer command line. Overridden
	// with TOUCHVIEW_VIEWER_CMD; defaults to "rerun" resolved on PATH.
	ViewerCommand []string

	// ViewerArgs are default extra arguments appended to every
	// viewer invocation before per-request arguments.
	ViewerArgs []string

	// CacheDir holds converted recordings and blueprint files.
	CacheDir string

	// AppID identifies this application to the viewer; embedded in
	// generated blueprints.
	AppID string

	// DisableBlueprint suppresses presentation-layout generation.
	DisableBlueprint bool

	// LayoutFile optionally overrides the built-in viewer layout
	// (YAML or JSON); watched for changes while the server runs.
	LayoutFile string

	// ImageStride downsamples camera frames during conversion.
	ImageStride int

	// CacheRetentionDays bounds the age of cache files swept by the
	// cleanup job.
	CacheRetentionDays int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cacheDir := getEnv("TOUCHVIEW_CACHE_DIR", "./cache")
	if abs, err := filepath.Abs(cacheDir); err == nil {
		cacheDir = abs
	}

	return &Config{
		Port:               getEnv("PORT", "8420"),
		ViewerCommand:      parseViewerCommand(),
		ViewerArgs:         strings.Fields(getEnv("TOUCHVIEW_VIEWER_ARGS", "")),
		CacheDir:           cacheDir,
		AppID:              getEnv("TOUCHVIEW_APP_ID", "touchview"),
		DisableBlueprint:   getBoolEnv("TOUCHVIEW_DISABLE_BLUEPRINT", false),
		LayoutFile:         getEnv("TOUCHVIEW_LAYOUT_FILE", ""),
		ImageStride:        getIntEnv("TOUCHVIEW_IMAGE_STRIDE", 1),
		CacheRetentionDays: getIntEnv("TOUCHVIEW_CACHE_RETENTION_DAYS", 30),
	}
}

// parseViewerCommand resolves the viewer command line: the explicit
// override wins, otherwise "rerun" resolved on PATH, otherwise the
// bare name (spawn surfaces the not-found error).
func parseViewerCommand() []string {
	if raw := os.Getenv("TOUCHVIEW_VIEWER_CMD"); raw != "" {
		if command := strings.Fields(raw); len(command) > 0 {
			return command
		}
	}
	if resolved, err := exec.LookPath("rerun"); err == nil {
		return []string{resolved}
	}
	return []string{"rerun"}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
