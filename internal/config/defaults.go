package config

// Default returns the canonical runtime configuration used when no file is
// present.
func Default() Config {
	return Config{
		Backend: BackendConfig{URL: "http://127.0.0.1:8000"},
		Recognizer: RecognizerConfig{
			Model:    "nova-2",
			Language: "en-US",
		},
		Audio:   AudioConfig{Input: "default"},
		Speaker: SpeakerConfig{},
		User: UserConfig{
			ID:       "local",
			Timezone: "UTC",
		},
		Store: StoreConfig{
			BlobBucket: "scans",
		},
	}
}
