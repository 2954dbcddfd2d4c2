package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables that override values from the config file.
const (
	EnvBaseURL         = "CURRICULUM_BASE_URL"
	EnvOutputRoot      = "CURRICULUM_OUTPUT_ROOT"
	EnvUserAgent       = "CURRICULUM_USER_AGENT"
	EnvDownloadDelayMS = "CURRICULUM_DOWNLOAD_DELAY_MS"
	EnvOnly            = "CURRICULUM_ONLY"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays non-empty environment values onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := nonEmpty(lookup, EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := nonEmpty(lookup, EnvOutputRoot); ok {
		c.OutputRoot = v
	}
	if v, ok := nonEmpty(lookup, EnvUserAgent); ok {
		c.UserAgent = v
	}
	if v, ok := nonEmpty(lookup, EnvDownloadDelayMS); ok {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvDownloadDelayMS, v)
		}
		c.DownloadDelayMS = ms
	}
	if v, ok := nonEmpty(lookup, EnvOnly); ok {
		c.Only = SplitList(v)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonEmpty(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
