package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/scanner"
	"github.com/zhengda-lu/antiv/internal/schedule"
	"github.com/zhengda-lu/antiv/internal/utils"
)

// Config holds all antiv configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Quarantine QuarantineConfig `yaml:"quarantine"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Report     ReportConfig     `yaml:"report"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
	Exclude    []string         `yaml:"exclude"`
}

// EngineConfig describes the external scanner and its output format.
type EngineConfig struct {
	Binary        string   `yaml:"binary"`
	RecursiveFlag string   `yaml:"recursive_flag"`
	ExtraArgs     []string `yaml:"extra_args"`
	FoundMarker   string   `yaml:"found_marker"`
	OKMarker      string   `yaml:"ok_marker"`
	SummaryBanner string   `yaml:"summary_banner"`
	Delimiter     string   `yaml:"delimiter"`
}

type QuarantineConfig struct {
	Dir    string `yaml:"dir"`
	Naming string `yaml:"naming"`
}

// ScheduleConfig controls the schedule file and the daemon's tick.
type ScheduleConfig struct {
	File    string `yaml:"file"`
	Tick    string `yaml:"tick"`
	CatchUp bool   `yaml:"catch_up"`
}

// ReportConfig points at the reporting and update-check endpoints.
type ReportConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UpdateURL string `yaml:"update_url"`
	Timeout   string `yaml:"timeout"`
	IDFile    string `yaml:"id_file"`
}

type HistoryConfig struct {
	File string `yaml:"file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a Config with all default values populated.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Binary:        scanner.DefaultBinary,
			RecursiveFlag: scanner.DefaultRecursiveFlag,
			ExtraArgs:     []string{},
			FoundMarker:   scanner.DefaultFoundMarker,
			OKMarker:      scanner.DefaultOKMarker,
			SummaryBanner: scanner.DefaultSummaryBanner,
			Delimiter:     ": ",
		},
		Quarantine: QuarantineConfig{
			Dir:    "~/antiv_quarantine",
			Naming: string(quarantine.NamingReject),
		},
		Schedule: ScheduleConfig{
			File: "~/antiv_schedule.json",
			Tick: "30s",
		},
		Report: ReportConfig{
			Timeout: "30s",
			IDFile:  "~/.local/share/antiv/installation_id",
		},
		History: HistoryConfig{
			File: "~/.local/share/antiv/history.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "~/.local/share/antiv/antiv.log",
		},
		Exclude: []string{},
	}
}

// DefaultPath returns ~/.config/antiv/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "antiv", "config.yaml"), nil
}

// Load loads config from the given path. If path is empty, it uses the
// default location (~/.config/antiv/config.yaml). If the file does not
// exist, it creates it with default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// QuarantineDir returns the quarantine directory with "~" expanded.
func (c *Config) QuarantineDir() string {
	if c.Quarantine.Dir == "" {
		return quarantine.DefaultDir()
	}
	return utils.ExpandHome(c.Quarantine.Dir)
}

// ScheduleFile returns the schedule file path with "~" expanded.
func (c *Config) ScheduleFile() string {
	if c.Schedule.File == "" {
		return schedule.DefaultPath()
	}
	return utils.ExpandHome(c.Schedule.File)
}

// IDFile returns the installation id path with "~" expanded.
func (c *Config) IDFile() string {
	if c.Report.IDFile == "" {
		return filepath.Join(utils.DataDir(), "installation_id")
	}
	return utils.ExpandHome(c.Report.IDFile)
}

// HistoryFile returns the scan history path with "~" expanded.
func (c *Config) HistoryFile() string {
	if c.History.File == "" {
		return filepath.Join(utils.DataDir(), "history.json")
	}
	return utils.ExpandHome(c.History.File)
}

// LogFile returns the daemon log path with "~" expanded.
func (c *Config) LogFile() string {
	if c.Log.File == "" {
		return filepath.Join(utils.DataDir(), "antiv.log")
	}
	return utils.ExpandHome(c.Log.File)
}

// TickInterval returns the scheduler tick, falling back to 30s.
func (c *Config) TickInterval() time.Duration {
	return ParseDuration(c.Schedule.Tick, 30*time.Second)
}

// ReportTimeout returns the HTTP timeout for report calls.
func (c *Config) ReportTimeout() time.Duration {
	return ParseDuration(c.Report.Timeout, 30*time.Second)
}

// ScannerConfig maps the engine section onto a scan session config.
func (c *Config) ScannerConfig() scanner.Config {
	return scanner.Config{
		Binary:        c.Engine.Binary,
		RecursiveFlag: c.Engine.RecursiveFlag,
		ExtraArgs:     c.Engine.ExtraArgs,
		Markers: scanner.Markers{
			Found:         c.Engine.FoundMarker,
			OK:            c.Engine.OKMarker,
			SummaryBanner: c.Engine.SummaryBanner,
		},
		Exclude: c.IsExcluded,
	}
}

// IsExcluded checks if the given path matches any of the configured
// exclude glob patterns. Matching is done against the full path and
// against the base name. Patterns ending in "/**" are treated as
// directory prefix matches.
func (c *Config) IsExcluded(path string) bool {
	for _, pattern := range c.Exclude {
		pattern = utils.ExpandHome(pattern)
		// Handle "dir/**" as a prefix match.
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(path, prefix+"/") || path == prefix {
				return true
			}
			continue
		}

		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		// Base name match for patterns like "*.iso".
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

// ParseDuration parses duration strings like "7d" or "45s" into
// time.Duration. Returns def for empty or unparseable strings.
func ParseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(numStr)
		if err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
