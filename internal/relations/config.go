package relations

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"codeintel/internal/slogutil"
)

//go:embed languages/*.yaml
var builtinFS embed.FS

// Rule matches one relationship kind. Pattern may use the named groups
// source, target and field.
type Rule struct {
	Pattern string `yaml:"pattern" toml:"pattern"`
	// Split separates several targets captured by one match (e.g. ",").
	Split string `yaml:"split,omitempty" toml:"split,omitempty"`
	// TargetInclude keeps only targets matching it.
	TargetInclude string `yaml:"target_include,omitempty" toml:"target_include,omitempty"`
	// TargetExclude drops targets matching it.
	TargetExclude string `yaml:"target_exclude,omitempty" toml:"target_exclude,omitempty"`
	// FieldExclude drops matches whose field group matches it.
	FieldExclude string `yaml:"field_exclude,omitempty" toml:"field_exclude,omitempty"`
}

// Rendering carries per-language diagram hints.
type Rendering struct {
	GroupBy string `yaml:"group_by,omitempty" toml:"group_by,omitempty"`
	// ContainmentMode is "flat" or "subgraph".
	ContainmentMode string            `yaml:"containment_mode,omitempty" toml:"containment_mode,omitempty"`
	MemberPrefixes  map[string]string `yaml:"member_prefixes,omitempty" toml:"member_prefixes,omitempty"`
	MemberColors    map[string]string `yaml:"member_colors,omitempty" toml:"member_colors,omitempty"`
}

// LanguageConfig is the pattern set of one language.
type LanguageConfig struct {
	Name          string
	Extensions    []string
	Declaration   string
	Relationships map[Kind]Rule
	Rendering     Rendering
}

type languageFile struct {
	Name          string          `yaml:"name" toml:"name"`
	Extensions    []string        `yaml:"extensions" toml:"extensions"`
	Declaration   string          `yaml:"declaration" toml:"declaration"`
	Relationships map[string]Rule `yaml:"relationships" toml:"relationships"`
	Rendering     Rendering       `yaml:"rendering" toml:"rendering"`
}

func (lf languageFile) toConfig() (*LanguageConfig, error) {
	if lf.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	cfg := &LanguageConfig{
		Name:          strings.ToLower(lf.Name),
		Declaration:   lf.Declaration,
		Relationships: make(map[Kind]Rule, len(lf.Relationships)),
		Rendering:     lf.Rendering,
	}
	for _, ext := range lf.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions = append(cfg.Extensions, ext)
	}
	for name, rule := range lf.Relationships {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		cfg.Relationships[kind] = rule
	}
	return cfg, nil
}

// ParseConfig decodes one language config. format is "yaml" or "toml".
func ParseConfig(data []byte, format string) (*LanguageConfig, error) {
	var lf languageFile
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &lf); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &lf); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return lf.toConfig()
}

// Registry maps languages and file extensions to compiled extractors.
type Registry struct {
	logger  *slog.Logger
	configs map[string]*LanguageConfig
	byName  map[string]*Extractor
	byExt   map[string]*Extractor
}

// Builtin returns a registry holding the embedded language configs.
func Builtin(logger *slog.Logger) *Registry {
	r := newRegistry(logger)
	entries, err := fs.ReadDir(builtinFS, "languages")
	if err != nil {
		r.logger.Error("Failed to read builtin language configs", "error", err.Error())
		return r
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("languages", e.Name()))
		if err != nil {
			continue
		}
		cfg, err := ParseConfig(data, "yaml")
		if err != nil {
			r.logger.Error("Invalid builtin language config", "file", e.Name(), "error", err.Error())
			continue
		}
		r.Add(cfg)
	}
	return r
}

// LoadConfigs returns the builtin registry overlaid with the *.yaml, *.yml
// and *.toml files of dir. A config with the name of a builtin replaces it.
// Unreadable or unparseable files are skipped with a warning. A missing dir
// yields the builtins.
func LoadConfigs(dir string, logger *slog.Logger) (*Registry, error) {
	r := Builtin(logger)
	if dir == "" {
		return r, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("reading language config dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if format != "yaml" && format != "yml" && format != "toml" {
			continue
		}
		file := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(file)
		if err != nil {
			r.logger.Warn("Skipping unreadable language config", "file", file, "error", err.Error())
			continue
		}
		cfg, err := ParseConfig(data, format)
		if err != nil {
			r.logger.Warn("Skipping invalid language config", "file", file, "error", err.Error())
			continue
		}
		r.Add(cfg)
	}
	return r, nil
}

func newRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Registry{
		logger:  logger,
		configs: make(map[string]*LanguageConfig),
		byName:  make(map[string]*Extractor),
		byExt:   make(map[string]*Extractor),
	}
}

// Add compiles cfg and registers it, replacing any config of the same name.
func (r *Registry) Add(cfg *LanguageConfig) {
	if old, ok := r.configs[cfg.Name]; ok {
		for _, ext := range old.Extensions {
			if r.byExt[ext] == r.byName[cfg.Name] {
				delete(r.byExt, ext)
			}
		}
	}
	ex := Compile(cfg, r.logger)
	r.configs[cfg.Name] = cfg
	r.byName[cfg.Name] = ex
	for _, ext := range cfg.Extensions {
		r.byExt[ext] = ex
	}
}

// Restrict returns a registry holding only the named languages. An empty
// list returns r.
func (r *Registry) Restrict(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	out := newRegistry(r.logger)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		ex, ok := r.byName[n]
		if !ok {
			r.logger.Warn("Unknown relationship language", "language", n)
			continue
		}
		out.configs[n] = r.configs[n]
		out.byName[n] = ex
		for _, ext := range r.configs[n].Extensions {
			out.byExt[ext] = ex
		}
	}
	return out
}

// ForPath returns the extractor for a file by extension.
func (r *Registry) ForPath(p string) (*Extractor, bool) {
	ex, ok := r.byExt[strings.ToLower(filepath.Ext(p))]
	return ex, ok
}

// Language returns the extractor for a language name.
func (r *Registry) Language(name string) (*Extractor, bool) {
	ex, ok := r.byName[strings.ToLower(name)]
	return ex, ok
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	names := make([]string, 0, len(r.configs))
	for n := range r.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the set of registered extensions.
func (r *Registry) Extensions() map[string]bool {
	out := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		out[ext] = true
	}
	return out
}

type compiledRule struct {
	kind          Kind
	re            *regexp.Regexp
	split         string
	targetInclude *regexp.Regexp
	targetExclude *regexp.Regexp
	fieldExclude  *regexp.Regexp
	source        int
	target        int
	field         int
}

func compileRule(kind Kind, rule Rule) (*compiledRule, error) {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	cr := &compiledRule{
		kind:   kind,
		re:     re,
		split:  rule.Split,
		source: re.SubexpIndex("source"),
		target: re.SubexpIndex("target"),
		field:  re.SubexpIndex("field"),
	}
	if cr.target < 0 {
		return nil, fmt.Errorf("pattern has no target group")
	}
	if cr.targetInclude, err = optionalRegexp(rule.TargetInclude); err != nil {
		return nil, fmt.Errorf("target_include: %w", err)
	}
	if cr.targetExclude, err = optionalRegexp(rule.TargetExclude); err != nil {
		return nil, fmt.Errorf("target_exclude: %w", err)
	}
	if cr.fieldExclude, err = optionalRegexp(rule.FieldExclude); err != nil {
		return nil, fmt.Errorf("field_exclude: %w", err)
	}
	return cr, nil
}

func optionalRegexp(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}
