// Package config resolves, parses, validates, and defaults vitalink
// configuration.
package config

// Config is the fully materialized runtime configuration used by vitalink.
type Config struct {
	Backend    BackendConfig    `toml:"backend"`
	Recognizer RecognizerConfig `toml:"recognizer"`
	Audio      AudioConfig      `toml:"audio"`
	Speaker    SpeakerConfig    `toml:"speaker"`
	User       UserConfig       `toml:"user"`
	Store      StoreConfig      `toml:"store"`
}

// BackendConfig points at the chat and scan analysis service.
type BackendConfig struct {
	URL string `toml:"url"`
}

// RecognizerConfig controls the streaming speech-to-text connection.
type RecognizerConfig struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// AudioConfig controls capture source selection.
type AudioConfig struct {
	Input string `toml:"input"`
}

// SpeakerConfig holds the TTS playback command.
type SpeakerConfig struct {
	Command string `toml:"command"`

	// Argv is the parsed form of Command, filled during Load.
	Argv []string `toml:"-"`
}

// UserConfig identifies whose records are kept and how times are rendered.
type UserConfig struct {
	ID       string `toml:"id"`
	Timezone string `toml:"timezone"`
}

// StoreConfig controls local record storage and remote blob uploads.
type StoreConfig struct {
	DBPath     string `toml:"db_path"`
	BlobURL    string `toml:"blob_url"`
	BlobBucket string `toml:"blob_bucket"`
	BlobAPIKey string `toml:"blob_api_key"`
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}
