// Package config provides configuration loading and validation for the CLI.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/curriculum-fetcher/internal/fetch"
	"github.com/jonathan/curriculum-fetcher/internal/schemas"
)

//go:embed config.schema.json
var configSchema string

// Default values used when neither the config file, the environment nor a flag sets a field.
const (
	DefaultBaseURL          = "https://www.etit.kit.edu/"
	DefaultStartPath        = "vertiefungsrichtungen_master.php"
	DefaultOutputRoot       = "SPO2018"
	DefaultDirPrefix        = "vertiefungsrichtung_"
	DefaultUserAgent        = fetch.DefaultUserAgent
	DefaultAcceptLanguage   = fetch.DefaultAcceptLanguage
	DefaultDownloadDelayMS  = 1000
	DefaultResolveTimeoutMS = 10000
	DefaultRequestTimeoutMS = 30000
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values are filled from Defaults.
type Config struct {
	// Site
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"` // Site root that the start path is resolved against
	StartPath string `json:"start_path,omitempty"`                        // Index page listing all directions

	// Output
	OutputRoot string `json:"output_root,omitempty"` // Root folder for the per-direction folders
	DirPrefix  string `json:"dir_prefix,omitempty"`  // Prefix of every direction folder name

	// HTTP
	UserAgent            string  `json:"user_agent,omitempty"`
	AcceptLanguage       string  `json:"accept_language,omitempty"`
	DownloadDelayMS      int     `json:"download_delay_ms,omitempty" validate:"omitempty,gt=0"` // Pause after each successful download
	ResolveTimeoutMS     int     `json:"resolve_timeout_ms,omitempty" validate:"gte=0"`         // Timeout of one redirect resolution
	RequestTimeoutMS     int     `json:"request_timeout_ms,omitempty" validate:"gte=0"`         // Timeout of page and file requests
	ResolveRatePerSecond float64 `json:"resolve_rate_per_second,omitempty" validate:"gte=0"`    // 0 leaves resolution unpaced

	// Behavior
	Only        []string `json:"only,omitempty" validate:"dive,numeric"` // Restrict the run to these direction identifiers
	UseBrowser  bool     `json:"use_browser,omitempty"`                  // Render link-less pages in a headless browser
	ValidatePDF bool     `json:"validate_pdf,omitempty"`                 // Structurally validate PDFs before writing them
	DryRun      bool     `json:"dry_run,omitempty"`                      // Resolve documents without writing files
	Verbose     bool     `json:"verbose,omitempty"`                      // Debug logging
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		StartPath:        DefaultStartPath,
		OutputRoot:       DefaultOutputRoot,
		DirPrefix:        DefaultDirPrefix,
		UserAgent:        DefaultUserAgent,
		AcceptLanguage:   DefaultAcceptLanguage,
		DownloadDelayMS:  DefaultDownloadDelayMS,
		ResolveTimeoutMS: DefaultResolveTimeoutMS,
		RequestTimeoutMS: DefaultRequestTimeoutMS,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read, parsed or does not match the schema.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := schemas.ValidateJSONString(configSchema, string(data)); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so messages match the config file keys.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' failed the '%s' check", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if strings.ContainsAny(c.DirPrefix, `/\`) {
		return fmt.Errorf("config error: 'dir_prefix' must not contain path separators")
	}

	if _, err := c.StartURL(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.StartPath == "" {
		result.StartPath = defaults.StartPath
	}
	if result.OutputRoot == "" {
		result.OutputRoot = defaults.OutputRoot
	}
	if result.DirPrefix == "" {
		result.DirPrefix = defaults.DirPrefix
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.AcceptLanguage == "" {
		result.AcceptLanguage = defaults.AcceptLanguage
	}

	// Int fields: use default if zero
	if result.DownloadDelayMS == 0 {
		result.DownloadDelayMS = defaults.DownloadDelayMS
	}
	if result.ResolveTimeoutMS == 0 {
		result.ResolveTimeoutMS = defaults.ResolveTimeoutMS
	}
	if result.RequestTimeoutMS == 0 {
		result.RequestTimeoutMS = defaults.RequestTimeoutMS
	}
	if result.ResolveRatePerSecond == 0 {
		result.ResolveRatePerSecond = defaults.ResolveRatePerSecond
	}

	if len(result.Only) == 0 {
		result.Only = defaults.Only
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// StartURL resolves the start path against the base URL.
func (c *Config) StartURL() (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	ref, err := url.Parse(c.StartPath)
	if err != nil {
		return "", fmt.Errorf("invalid start_path %q: %w", c.StartPath, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DownloadDelay returns the pause after each successful download.
func (c *Config) DownloadDelay() time.Duration {
	return time.Duration(c.DownloadDelayMS) * time.Millisecond
}

// ResolveTimeout returns the timeout of a single redirect resolution.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMS) * time.Millisecond
}

// RequestTimeout returns the timeout of page and file requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// Headers returns the fixed header set sent with every request, User-Agent excluded.
func (c *Config) Headers() map[string]string {
	return map[string]string{
		"Accept-Language": c.AcceptLanguage,
	}
}
