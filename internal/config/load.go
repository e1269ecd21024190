package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Secrets may also arrive via the environment (and a local .env file), which
// takes precedence over the file.
func Load(explicitPath string) (Loaded, error) {
	_ = godotenv.Load()

	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	cfg := Default()
	loaded := Loaded{Path: resolvedPath, Exists: true}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		meta, err := toml.Decode(string(content), &cfg)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		for _, key := range meta.Undecoded() {
			loaded.Warnings = append(loaded.Warnings, Warning{
				Message: fmt.Sprintf("unknown config key %q", key),
			})
		}
	}

	applyEnv(&cfg)

	if cfg.Store.DBPath == "" {
		path, err := DefaultDBPath()
		if err != nil {
			return Loaded{}, err
		}
		cfg.Store.DBPath = path
	}

	cfg.Speaker.Argv, err = parseArgv(cfg.Speaker.Command)
	if err != nil {
		return Loaded{}, fmt.Errorf("speaker.command: %w", err)
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Loaded{}, err
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)
	loaded.Config = cfg
	return loaded, nil
}

// applyEnv lets the environment override file-borne values, mainly so keys
// can stay out of the config file.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Backend.URL, "VITALINK_BACKEND_URL")
	set(&cfg.Recognizer.URL, "VITALINK_RECOGNIZER_URL")
	set(&cfg.Recognizer.APIKey, "VITALINK_RECOGNIZER_API_KEY")
	set(&cfg.Store.BlobURL, "VITALINK_BLOB_URL")
	set(&cfg.Store.BlobAPIKey, "VITALINK_BLOB_API_KEY")
	set(&cfg.User.ID, "VITALINK_USER_ID")
}
