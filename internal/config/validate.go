package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhengda-lu/antiv/internal/quarantine"
)

// Warning is a problem found in a config file. Warnings never stop a
// command; the affected setting falls back to its default.
type Warning struct {
	Field      string
	Message    string
	Suggestion string
}

// LoadAndValidate parses data on top of the defaults and reports every
// problem it finds. A YAML syntax error is returned as a single warning
// with a nil config.
func LoadAndValidate(data []byte) (*Config, []Warning) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, []Warning{{Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}
	return cfg, cfg.Validate()
}

// Validate checks values that parse but make no sense.
func (c *Config) Validate() []Warning {
	var ws []Warning
	add := func(field, msg, suggestion string) {
		ws = append(ws, Warning{Field: field, Message: msg, Suggestion: suggestion})
	}

	if strings.TrimSpace(c.Engine.Binary) == "" {
		add("engine.binary", "scanner binary is empty", "set it to clamscan or a full path")
	}
	if c.Engine.FoundMarker == "" || c.Engine.OKMarker == "" {
		add("engine", "found_marker and ok_marker must be set", "use FOUND and OK for clamscan")
	}
	if c.Engine.Delimiter == "" {
		add("engine.delimiter", "delimiter is empty", `use ": "`)
	}

	if _, err := quarantine.ParseNaming(c.Quarantine.Naming); err != nil {
		add("quarantine.naming", err.Error(), "use reject or hashed")
	}

	if tick, err := time.ParseDuration(strings.TrimSpace(c.Schedule.Tick)); err != nil {
		add("schedule.tick", fmt.Sprintf("invalid duration %q", c.Schedule.Tick), "use a value like 30s")
	} else if tick <= 0 || tick > time.Minute {
		add("schedule.tick", fmt.Sprintf("tick %s must be between 1s and 60s", tick), "use 30s")
	}

	for _, f := range []struct{ field, value string }{
		{"report.endpoint", c.Report.Endpoint},
		{"report.update_url", c.Report.UpdateURL},
	} {
		if f.value == "" {
			continue
		}
		u, err := url.Parse(f.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(f.field, fmt.Sprintf("invalid URL %q", f.value), "use an http(s) URL")
		}
	}
	if c.Report.Timeout != "" {
		if _, err := time.ParseDuration(c.Report.Timeout); err != nil {
			add("report.timeout", fmt.Sprintf("invalid duration %q", c.Report.Timeout), "use a value like 30s")
		}
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		add("log.level", fmt.Sprintf("unknown level %q", c.Log.Level), "use debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format", fmt.Sprintf("unknown format %q", c.Log.Format), "use text or json")
	}

	for i, p := range c.Exclude {
		if strings.TrimSpace(p) == "" {
			add(fmt.Sprintf("exclude[%d]", i), "empty pattern", "remove it")
		}
	}
	return ws
}
