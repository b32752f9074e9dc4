package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"codeintel/internal/paths"
)

// CurrentVersion is the config schema version written by Save
const CurrentVersion = 1

// Config represents the complete codeintel configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Tags      TagsConfig      `json:"tags" mapstructure:"tags"`
	Relations RelationsConfig `json:"relations" mapstructure:"relations"`
	Diagram   DiagramConfig   `json:"diagram" mapstructure:"diagram"`
	Tracer    TracerConfig    `json:"tracer" mapstructure:"tracer"`
	Traces    TracesConfig    `json:"traces" mapstructure:"traces"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// TagsConfig selects where tag records come from
type TagsConfig struct {
	// Source is one of ctags, scip, treesitter, file
	Source        string `json:"source" mapstructure:"source"`
	File          string `json:"file" mapstructure:"file"`
	CtagsCommand  string `json:"ctagsCommand" mapstructure:"ctagsCommand"`
	ScipIndexPath string `json:"scipIndexPath" mapstructure:"scipIndexPath"`
	CacheSize     int    `json:"cacheSize" mapstructure:"cacheSize"`
}

// RelationsConfig controls static relationship extraction
type RelationsConfig struct {
	ConfigDir   string   `json:"configDir" mapstructure:"configDir"`
	Languages   []string `json:"languages" mapstructure:"languages"`
	Parallelism int      `json:"parallelism" mapstructure:"parallelism"`
	Exclude     []string `json:"exclude" mapstructure:"exclude"`
}

// DiagramConfig contains rendering defaults
type DiagramConfig struct {
	Style          string `json:"style" mapstructure:"style"`
	Mode           string `json:"mode" mapstructure:"mode"`
	Direction      string `json:"direction" mapstructure:"direction"`
	GroupBy        string `json:"groupBy" mapstructure:"groupBy"`
	ImageFormat    string `json:"imageFormat" mapstructure:"imageFormat"`
	MermaidCommand string `json:"mermaidCommand" mapstructure:"mermaidCommand"`
	DotCommand     string `json:"dotCommand" mapstructure:"dotCommand"`
}

// TracerConfig holds the project predicate globs, matched against
// repo-relative slash paths
type TracerConfig struct {
	Include []string `json:"include" mapstructure:"include"`
	Exclude []string `json:"exclude" mapstructure:"exclude"`
}

// TracesConfig controls trace persistence
type TracesConfig struct {
	Dir          string `json:"dir" mapstructure:"dir"`
	Compress     bool   `json:"compress" mapstructure:"compress"`
	HistoryLimit int    `json:"historyLimit" mapstructure:"historyLimit"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format"`
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Tags: TagsConfig{
			Source:        "ctags",
			File:          filepath.Join(paths.DataDirName, paths.TagsFileName),
			CtagsCommand:  "ctags",
			ScipIndexPath: "index.scip",
			CacheSize:     256,
		},
		Relations: RelationsConfig{
			ConfigDir:   filepath.Join(paths.DataDirName, "languages"),
			Parallelism: 8,
			Exclude:     []string{"vendor/**", "node_modules/**", "**/*_test.go"},
		},
		Diagram: DiagramConfig{
			Style:          "mermaid",
			Mode:           "containment",
			Direction:      "TB",
			GroupBy:        "none",
			ImageFormat:    "svg",
			MermaidCommand: "mmdc",
			DotCommand:     "dot",
		},
		Tracer: TracerConfig{
			Include: []string{"**"},
			Exclude: []string{"vendor/**", "third_party/**"},
		},
		Traces: TracesConfig{
			Dir:          filepath.Join(paths.DataDirName, paths.TracesDirName),
			Compress:     false,
			HistoryLimit: 0,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "warn",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads .codeintel/config.json under repoRoot. A missing file
// yields the defaults. CODEINTEL_ environment variables override both, e.g.
// CODEINTEL_TRACES_DIR or CODEINTEL_DIAGRAM_STYLE.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(repoRoot))

	v.SetEnvPrefix("CODEINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so that Unmarshal sees environment overrides
// even when the key is absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("tags.source", d.Tags.Source)
	v.SetDefault("tags.file", d.Tags.File)
	v.SetDefault("tags.ctagsCommand", d.Tags.CtagsCommand)
	v.SetDefault("tags.scipIndexPath", d.Tags.ScipIndexPath)
	v.SetDefault("tags.cacheSize", d.Tags.CacheSize)

	v.SetDefault("relations.configDir", d.Relations.ConfigDir)
	v.SetDefault("relations.languages", d.Relations.Languages)
	v.SetDefault("relations.parallelism", d.Relations.Parallelism)
	v.SetDefault("relations.exclude", d.Relations.Exclude)

	v.SetDefault("diagram.style", d.Diagram.Style)
	v.SetDefault("diagram.mode", d.Diagram.Mode)
	v.SetDefault("diagram.direction", d.Diagram.Direction)
	v.SetDefault("diagram.groupBy", d.Diagram.GroupBy)
	v.SetDefault("diagram.imageFormat", d.Diagram.ImageFormat)
	v.SetDefault("diagram.mermaidCommand", d.Diagram.MermaidCommand)
	v.SetDefault("diagram.dotCommand", d.Diagram.DotCommand)

	v.SetDefault("tracer.include", d.Tracer.Include)
	v.SetDefault("tracer.exclude", d.Tracer.Exclude)

	v.SetDefault("traces.dir", d.Traces.Dir)
	v.SetDefault("traces.compress", d.Traces.Compress)
	v.SetDefault("traces.historyLimit", d.Traces.HistoryLimit)

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// Save writes the configuration to .codeintel/config.json
func (c *Config) Save(repoRoot string) error {
	if err := os.MkdirAll(paths.DataDir(repoRoot), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(paths.ConfigPath(repoRoot), append(data, '\n'), 0644)
}

// ResolvePath makes a configured path absolute against repoRoot.
func ResolvePath(repoRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	enums := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"tags.source", c.Tags.Source, []string{"ctags", "scip", "treesitter", "file"}},
		{"diagram.style", c.Diagram.Style, []string{"mermaid", "dot"}},
		{"diagram.mode", c.Diagram.Mode, []string{"flat", "containment"}},
		{"diagram.direction", c.Diagram.Direction, []string{"TB", "BT", "LR", "RL"}},
		{"diagram.groupBy", c.Diagram.GroupBy, []string{"none", "file"}},
		{"diagram.imageFormat", c.Diagram.ImageFormat, []string{"svg", "png", "pdf"}},
		{"logging.format", c.Logging.Format, []string{"human", "json"}},
		{"logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"}},
	}
	for _, e := range enums {
		if !contains(e.allowed, e.value) {
			return &ConfigError{
				Field:   e.field,
				Message: fmt.Sprintf("%q is not one of %s", e.value, strings.Join(e.allowed, ", ")),
			}
		}
	}

	if c.Tags.CacheSize <= 0 {
		return &ConfigError{Field: "tags.cacheSize", Message: "must be positive"}
	}
	if c.Relations.Parallelism < 0 {
		return &ConfigError{Field: "relations.parallelism", Message: "must not be negative"}
	}
	if c.Traces.HistoryLimit < 0 {
		return &ConfigError{Field: "traces.historyLimit", Message: "must not be negative"}
	}
	if c.Traces.Dir == "" {
		return &ConfigError{Field: "traces.dir", Message: "must not be empty"}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
