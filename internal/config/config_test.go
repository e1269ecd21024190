package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	loaded, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.False(t, loaded.Exists)
	require.Equal(t, "http://127.0.0.1:8000", loaded.Config.Backend.URL)
	require.Equal(t, "local", loaded.Config.User.ID)
	require.NotEmpty(t, loaded.Config.Store.DBPath)
	require.NotEmpty(t, loaded.Warnings)
}

func TestLoadParsesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "https://api.vitalink.dev"

[recognizer]
url = "wss://asr.vitalink.dev/listen"
language = "en-GB"

[speaker]
command = "piper --output-raw 'hello world'"

[user]
id = "u-123"
timezone = "America/New_York"

[store]
db_path = "/tmp/vitalink-test/records.db"
blob_url = "https://blobs.vitalink.dev"
blob_bucket = "scans"
`)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)

	cfg := loaded.Config
	require.Equal(t, "https://api.vitalink.dev", cfg.Backend.URL)
	require.Equal(t, "wss://asr.vitalink.dev/listen", cfg.Recognizer.URL)
	require.Equal(t, "en-GB", cfg.Recognizer.Language)
	require.Equal(t, "nova-2", cfg.Recognizer.Model)
	require.Equal(t, "u-123", cfg.User.ID)
	require.Equal(t, []string{"piper", "--output-raw", "hello world"}, cfg.Speaker.Argv)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "https://file.example.com"

[store]
db_path = "/tmp/records.db"
`)
	t.Setenv("VITALINK_BACKEND_URL", "https://env.example.com")
	t.Setenv("VITALINK_RECOGNIZER_API_KEY", "sekrit")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com", loaded.Config.Backend.URL)
	require.Equal(t, "sekrit", loaded.Config.Recognizer.APIKey)
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[backend]
url = "https://api.example.com"
shout = true

[store]
db_path = "/tmp/records.db"
`)

	loaded, err := Load(path)
	require.NoError(t, err)

	found := false
	for _, w := range loaded.Warnings {
		if w.Message == `unknown config key "backend.shout"` {
			found = true
		}
	}
	require.True(t, found, "expected unknown-key warning, got %v", loaded.Warnings)
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := writeConfig(t, `backend = `)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsEmptyUser(t *testing.T) {
	cfg := Default()
	cfg.Store.DBPath = "/tmp/records.db"
	cfg.User.ID = "  "
	_, err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "user.id")
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := Default()
	cfg.Store.DBPath = "/tmp/records.db"
	cfg.User.Timezone = "Mars/Olympus"
	_, err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRequiresBucketWithBlobURL(t *testing.T) {
	cfg := Default()
	cfg.Store.DBPath = "/tmp/records.db"
	cfg.Store.BlobURL = "https://blobs.example.com"
	cfg.Store.BlobBucket = ""
	_, err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blob_bucket")
}

func TestValidateWarnsWithoutRecognizer(t *testing.T) {
	cfg := Default()
	cfg.Store.DBPath = "/tmp/records.db"
	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
}

func TestResolvePathPrecedence(t *testing.T) {
	path, err := ResolvePath("/etc/vitalink.toml")
	require.NoError(t, err)
	require.Equal(t, "/etc/vitalink.toml", path)

	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, "/xdg/vitalink/config.toml", path)
}

func TestParseArgv(t *testing.T) {
	argv, err := parseArgv(`espeak-ng -v "en-US" --stdout`)
	require.NoError(t, err)
	require.Equal(t, []string{"espeak-ng", "-v", "en-US", "--stdout"}, argv)

	argv, err = parseArgv("")
	require.NoError(t, err)
	require.Nil(t, argv)

	_, err = parseArgv(`broken "quote`)
	require.Error(t, err)
}
