// Package config loads millsync settings from YAML or TOML, applies
// MILLSYNC_* environment overrides and validates the result against an
// embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/millsync/internal/extract"
	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/reconcile"
)

// DateLayout is the layout of filter_date.
const DateLayout = "2006-01-02"

// Config is the complete millsync configuration.
type Config struct {
	API        API     `yaml:"api" toml:"api" json:"api"`
	Location   string  `yaml:"location" toml:"location" json:"location"`
	FilterDate string  `yaml:"filter_date" toml:"filter_date" json:"filter_date,omitempty"`
	Sources    Sources `yaml:"sources" toml:"sources" json:"sources"`
	Log        Log     `yaml:"log" toml:"log" json:"log"`
	Journal    Journal `yaml:"journal" toml:"journal" json:"journal"`

	loc    *time.Location
	filter time.Time
}

// API holds the remote order endpoints.
type API struct {
	ListURL   string `yaml:"list_url" toml:"list_url" json:"list_url"`
	CreateURL string `yaml:"create_url" toml:"create_url" json:"create_url"`
	UpdateURL string `yaml:"update_url" toml:"update_url" json:"update_url"`
	Timeout   string `yaml:"timeout" toml:"timeout" json:"timeout"`
	UserAgent string `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
}

// Sources holds one block per equipment source.
type Sources struct {
	DWX   Source `yaml:"dwx" toml:"dwx" json:"dwx"`
	ODLog Source `yaml:"odlog" toml:"odlog" json:"odlog"`
	XML   Source `yaml:"xml" toml:"xml" json:"xml"`
}

// Source configures scanning and pacing for one source.
type Source struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Dir      string `yaml:"dir" toml:"dir" json:"dir"`
	Cooldown string `yaml:"cooldown" toml:"cooldown" json:"cooldown"`
	Limit    int    `yaml:"limit" toml:"limit" json:"limit"`

	// Repeat overrides the in-progress repeat handling ("skip" or "hold").
	Repeat string `yaml:"repeat" toml:"repeat" json:"repeat,omitempty"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`

	// Dir enables daily log files plus an errors/ mirror when set.
	Dir string `yaml:"dir" toml:"dir" json:"dir,omitempty"`
}

// Journal configures the SQLite run journal.
type Journal struct {
	Path string `yaml:"path" toml:"path" json:"path,omitempty"`
}

// Default returns the built-in configuration. API endpoints have no default.
func Default() *Config {
	return &Config{
		API: API{
			Timeout:   "15s",
			UserAgent: "millsync/1.0",
		},
		Location: "Asia/Seoul",
		Sources: Sources{
			DWX:   defaultSource(job.SourceDWX),
			ODLog: defaultSource(job.SourceODLog),
			XML:   defaultSource(job.SourceXML),
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

func defaultSource(src job.Source) Source {
	return Source{Cooldown: reconcile.DefaultPolicy(src).Cooldown.String()}
}

// Load builds a configuration from defaults, the file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode merges data into c. The format is chosen by file extension and
// unknown keys are rejected.
func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return fmt.Errorf("failed to parse TOML: %s", strict.String())
			}
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

// ApplyEnv overrides settings from MILLSYNC_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MILLSYNC_API_LIST_URL", &c.API.ListURL)
	str("MILLSYNC_API_CREATE_URL", &c.API.CreateURL)
	str("MILLSYNC_API_UPDATE_URL", &c.API.UpdateURL)
	str("MILLSYNC_API_TIMEOUT", &c.API.Timeout)
	str("MILLSYNC_API_USER_AGENT", &c.API.UserAgent)
	str("MILLSYNC_LOCATION", &c.Location)
	str("MILLSYNC_FILTER_DATE", &c.FilterDate)
	str("MILLSYNC_LOG_LEVEL", &c.Log.Level)
	str("MILLSYNC_LOG_FORMAT", &c.Log.Format)
	str("MILLSYNC_LOG_DIR", &c.Log.Dir)
	str("MILLSYNC_JOURNAL_PATH", &c.Journal.Path)

	for _, src := range job.Sources {
		s := c.source(src)
		prefix := "MILLSYNC_" + strings.ToUpper(string(src)) + "_"
		str(prefix+"DIR", &s.Dir)
		str(prefix+"COOLDOWN", &s.Cooldown)
		if v, ok := lookup(prefix + "ENABLED"); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				s.Enabled = true
			case "0", "false", "no", "off":
				s.Enabled = false
			}
		}
	}
}

// Validate checks c against the schema and resolves derived values.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return ValidationErrors{{Path: "location", Message: err.Error()}}
	}
	c.loc = loc
	c.filter = time.Time{}
	if c.FilterDate != "" {
		d, err := time.ParseInLocation(DateLayout, c.FilterDate, loc)
		if err != nil {
			return ValidationErrors{{Path: "filter_date", Message: err.Error()}}
		}
		c.filter = d
	}
	return nil
}

// TimeZone returns the equipment time zone.
func (c *Config) TimeZone() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Filter returns the filter day, or the zero time when unset.
func (c *Config) Filter() time.Time {
	return c.filter
}

// Timeout returns the API timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c *Config) source(src job.Source) *Source {
	switch src {
	case job.SourceDWX:
		return &c.Sources.DWX
	case job.SourceODLog:
		return &c.Sources.ODLog
	default:
		return &c.Sources.XML
	}
}

// Source returns the settings for src.
func (c *Config) Source(src job.Source) Source {
	return *c.source(src)
}

// Enabled returns the enabled sources in processing order.
func (c *Config) Enabled() []job.Source {
	var out []job.Source
	for _, src := range job.Sources {
		if c.source(src).Enabled {
			out = append(out, src)
		}
	}
	return out
}

// Policy returns the reconciliation policy for src with configured
// overrides applied.
func (c *Config) Policy(src job.Source) reconcile.Policy {
	p := reconcile.DefaultPolicy(src)
	s := c.source(src)
	if d, err := time.ParseDuration(s.Cooldown); err == nil {
		p.Cooldown = d
	}
	if r, err := reconcile.ParseRepeat(s.Repeat); err == nil {
		p.Repeat = r
	}
	return p
}

// Policies returns the policies of every enabled source.
func (c *Config) Policies() map[job.Source]reconcile.Policy {
	out := make(map[job.Source]reconcile.Policy)
	for _, src := range c.Enabled() {
		out[src] = c.Policy(src)
	}
	return out
}

// ExtractOptions returns extractor options for src.
func (c *Config) ExtractOptions(src job.Source, logger *slog.Logger) extract.Options {
	s := c.source(src)
	return extract.Options{
		Dir:        s.Dir,
		Location:   c.TimeZone(),
		FilterDate: c.filter,
		Limit:      s.Limit,
		Logger:     logger,
	}
}
