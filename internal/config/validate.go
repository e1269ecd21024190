package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	if strings.TrimSpace(cfg.Backend.URL) == "" {
		return nil, fmt.Errorf("backend.url must not be empty")
	}
	if _, err := url.Parse(cfg.Backend.URL); err != nil {
		return nil, fmt.Errorf("backend.url: %w", err)
	}
	if strings.TrimSpace(cfg.User.ID) == "" {
		return nil, fmt.Errorf("user.id must not be empty")
	}
	if strings.TrimSpace(cfg.Store.DBPath) == "" {
		return nil, fmt.Errorf("store.db_path must not be empty")
	}

	if tz := strings.TrimSpace(cfg.User.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("user.timezone %q is not a valid IANA zone", tz)
		}
	}

	if strings.TrimSpace(cfg.Recognizer.URL) == "" {
		warnings = append(warnings, Warning{
			Message: "recognizer.url is not set; voice mode will stay disabled",
		})
	}
	if strings.TrimSpace(cfg.Store.BlobURL) == "" {
		warnings = append(warnings, Warning{
			Message: "store.blob_url is not set; scan files will not be uploaded",
		})
	} else if strings.TrimSpace(cfg.Store.BlobBucket) == "" {
		return nil, fmt.Errorf("store.blob_bucket must not be empty when store.blob_url is set")
	}
	if cfg.Speaker.Command != "" && len(cfg.Speaker.Argv) == 0 {
		return nil, fmt.Errorf("speaker.command is configured but empty")
	}
	if len(cfg.Speaker.Argv) == 0 {
		warnings = append(warnings, Warning{
			Message: "speaker.command is not set; replies will not be spoken",
		})
	}

	return warnings, nil
}
