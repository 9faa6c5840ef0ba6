// Package config resolves the CLI's configuration from flags, environment
// variables and an optional JSON config file.
//
// Each value is taken from the first source that sets it:
//
//	--flag  >  SINGULARITY_<KEY>  >  config file  >  default
//
// The config file is JSON:
//
//	{"api_url": "https://api.singularity-technologies.io", "api_key": "…", "secret": "…", "timeout": "30s"}
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SingularityDigitalTechnologies/singularity-cli/internal/output"
	"github.com/SingularityDigitalTechnologies/singularity-cli/pkg/client"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultAPIURL  = "https://api.singularity-technologies.io"
	DefaultTimeout = client.DefaultTimeout
	EnvPrefix      = "SINGULARITY"
)

// Output formats accepted by --format.
const (
	FormatText = output.FormatText
	FormatJSON = output.FormatJSON
)

// Flag names shared by the root command.
const (
	FlagConfig      = "config"
	FlagAPIURL      = "api-url"
	FlagAPIKey      = "api-key"
	FlagSecret      = "secret"
	FlagTimeout     = "timeout"
	FlagFormat      = "format"
	FlagQuery       = "query"
	FlagMetricsFile = "metrics-file"
	FlagVerbose     = "verbose"
)

// keys maps config keys to the flags that override them.
var keys = map[string]string{
	"api_url":      FlagAPIURL,
	"api_key":      FlagAPIKey,
	"secret":       FlagSecret,
	"timeout":      FlagTimeout,
	"format":       FlagFormat,
	"query":        FlagQuery,
	"metrics_file": FlagMetricsFile,
	"verbose":      FlagVerbose,
}

// Configuration is resolved once at startup and passed to every command.
type Configuration struct {
	APIURL      string
	APIKey      string
	Secret      string
	ConfigFile  string // empty when no file was read
	Timeout     time.Duration
	Format      string
	Query       string
	MetricsFile string
	Verbose     bool
}

// Credentials returns the API key and secret as client credentials.
func (c Configuration) Credentials() client.Credentials {
	return client.Credentials{APIKey: c.APIKey, Secret: c.Secret}
}

// DefaultConfigFile returns ~/.singularity/config.json, or "" when the home
// directory cannot be determined.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".singularity", "config.json")
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "config file (default ~/.singularity/config.json)")
	fs.String(FlagAPIURL, DefaultAPIURL, "URL to send requests to")
	fs.String(FlagAPIKey, "", "API key (overrides the config file)")
	fs.String(FlagSecret, "", "API secret used to sign requests (overrides the config file)")
	fs.Duration(FlagTimeout, DefaultTimeout, "HTTP timeout per request, 0 disables it")
	fs.String(FlagFormat, FormatText, "Output format: text or json")
	fs.String(FlagQuery, "", "JMESPath expression applied to JSON responses")
	fs.String(FlagMetricsFile, "", "Write request metrics to this Prometheus textfile")
	fs.BoolP(FlagVerbose, "v", false, "Enable debug logging")
}

// Load resolves the configuration for the flags registered on fs.
//
// A missing default config file is ignored. A missing or unreadable file
// named with --config, or a file that is not valid JSON, is an error.
func Load(flags *pflag.FlagSet) (Configuration, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("format", FormatText)

	for key, flag := range keys {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Configuration{}, fmt.Errorf("bind flag --%s: %w", flag, err)
			}
		}
	}

	path, explicit := "", false
	if f := flags.Lookup(FlagConfig); f != nil && f.Value.String() != "" {
		path, explicit = f.Value.String(), true
	} else {
		path = DefaultConfigFile()
	}

	cfg := Configuration{}
	if path != "" {
		v.SetConfigFile(path)
		switch err := v.ReadInConfig(); {
		case err == nil:
			cfg.ConfigFile = v.ConfigFileUsed()
		case !explicit && errors.Is(err, fs.ErrNotExist):
			// No default config file; flags and env only.
		default:
			return Configuration{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	timeout, err := parseTimeout(v.Get("timeout"))
	if err != nil {
		return Configuration{}, err
	}

	cfg.APIURL = strings.TrimSpace(v.GetString("api_url"))
	cfg.APIKey = v.GetString("api_key")
	cfg.Secret = v.GetString("secret")
	cfg.Timeout = timeout
	cfg.Format = v.GetString("format")
	cfg.Query = v.GetString("query")
	cfg.MetricsFile = v.GetString("metrics_file")
	cfg.Verbose = v.GetBool("verbose")

	switch cfg.Format {
	case FormatText, FormatJSON:
	default:
		return Configuration{}, fmt.Errorf("unsupported format %q: expected %q or %q", cfg.Format, FormatText, FormatJSON)
	}
	return cfg, nil
}

// parseTimeout accepts a duration, a duration string ("30s") or a bare
// number of seconds as found in JSON config files.
func parseTimeout(raw any) (time.Duration, error) {
	var d time.Duration
	switch t := raw.(type) {
	case nil:
		return DefaultTimeout, nil
	case time.Duration:
		d = t
	case float64:
		d = time.Duration(t * float64(time.Second))
	case int:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("invalid timeout %v", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", d)
	}
	return d, nil
}
