package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/config"
	"github.com/spf13/pflag"
)

// isolate points HOME at an empty directory and clears SINGULARITY_* so the
// developer's own config never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"API_URL", "API_KEY", "SECRET", "TIMEOUT", "FORMAT", "QUERY", "METRICS_FILE", "VERBOSE"} {
		t.Setenv(config.EnvPrefix+"_"+k, "")
		os.Unsetenv(config.EnvPrefix + "_" + k)
	}
	return home
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func load(t *testing.T, args ...string) (config.Configuration, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return config.Load(fs)
}

func TestLoad_defaults(t *testing.T) {
	isolate(t)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != config.DefaultAPIURL {
		t.Errorf("APIURL: got %q", cfg.APIURL)
	}
	if cfg.APIKey != "" || cfg.Secret != "" {
		t.Errorf("expected absent credentials, got %q/%q", cfg.APIKey, cfg.Secret)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout: got %s", cfg.Timeout)
	}
	if cfg.Format != config.FormatText {
		t.Errorf("Format: got %q", cfg.Format)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: expected none, got %q", cfg.ConfigFile)
	}
}

func TestLoad_defaultConfigFile(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, filepath.Join(home, ".singularity", "config.json"),
		`{"api_key": "file-key", "secret": "file-secret", "timeout": 5}`)

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "file-key" || cfg.Secret != "file-secret" {
		t.Errorf("credentials: got %q/%q", cfg.APIKey, cfg.Secret)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("numeric timeout should be seconds, got %s", cfg.Timeout)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile: got %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoad_precedence(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, filepath.Join(home, "custom.json"),
		`{"api_url": "https://file.example.com", "api_key": "file-key", "secret": "file-secret"}`)

	t.Setenv("SINGULARITY_API_KEY", "env-key")

	cfg, err := load(t, "--config", path, "--secret", "flag-secret")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Secret != "flag-secret" {
		t.Errorf("flag should beat env and file, got %q", cfg.Secret)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("env should beat file, got %q", cfg.APIKey)
	}
	if cfg.APIURL != "https://file.example.com" {
		t.Errorf("file should beat default, got %q", cfg.APIURL)
	}
}

func TestLoad_flagBeatsFileForEachField(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, filepath.Join(home, "c.json"), `{"api_key": "file-key", "secret": "file-secret"}`)

	cfg, err := load(t, "--config", path, "--api-key", "flag-key")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "flag-key" || cfg.Secret != "file-secret" {
		t.Errorf("fields must resolve independently, got %q/%q", cfg.APIKey, cfg.Secret)
	}
}

func TestLoad_explicitMissingFile(t *testing.T) {
	home := isolate(t)

	if _, err := load(t, "--config", filepath.Join(home, "nope.json")); err == nil {
		t.Error("expected error for a missing --config file")
	}
}

func TestLoad_invalidJSON(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".singularity", "config.json"), `{"api_key": `)

	if _, err := load(t); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestLoad_timeoutFlag(t *testing.T) {
	isolate(t)

	cfg, err := load(t, "--timeout", "0")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout: got %s, want 0", cfg.Timeout)
	}
}

func TestLoad_invalidTimeout(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, filepath.Join(home, "c.json"), `{"timeout": "soon"}`)

	if _, err := load(t, "--config", path); err == nil {
		t.Error("expected error for unparsable timeout")
	}
}

func TestLoad_invalidFormat(t *testing.T) {
	isolate(t)

	if _, err := load(t, "--format", "yaml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestConfiguration_Credentials(t *testing.T) {
	cfg := config.Configuration{APIKey: "k", Secret: "s"}
	creds := cfg.Credentials()
	if creds.APIKey != "k" || creds.Secret != "s" {
		t.Errorf("got %+v", creds)
	}
}
