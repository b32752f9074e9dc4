package relations

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"codeintel/internal/paths"
	"codeintel/internal/slogutil"
)

// Extractor applies one compiled LanguageConfig to source text. It holds
// no per-file state and is safe for concurrent use.
type Extractor struct {
	config      *LanguageConfig
	declaration *regexp.Regexp
	declName    int
	rules       []*compiledRule
}

// Compile builds an Extractor. An invalid declaration pattern leaves every
// relationship unresolved; an invalid rule is dropped. Both are logged.
func Compile(cfg *LanguageConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	ex := &Extractor{config: cfg, declName: -1}

	if cfg.Declaration != "" {
		re, err := regexp.Compile(cfg.Declaration)
		switch {
		case err != nil:
			logger.Warn("Invalid declaration pattern", "language", cfg.Name, "error", err.Error())
		case re.SubexpIndex("name") < 0:
			logger.Warn("Declaration pattern has no name group", "language", cfg.Name)
		default:
			ex.declaration = re
			ex.declName = re.SubexpIndex("name")
		}
	}

	for _, kind := range Kinds {
		rule, ok := cfg.Relationships[kind]
		if !ok || rule.Pattern == "" {
			continue
		}
		cr, err := compileRule(kind, rule)
		if err != nil {
			logger.Warn("Dropping invalid relationship rule", "language", cfg.Name, "kind", string(kind), "error", err.Error())
			continue
		}
		ex.rules = append(ex.rules, cr)
	}
	return ex
}

// Config returns the language config the extractor was built from.
func (ex *Extractor) Config() *LanguageConfig { return ex.config }

// Declaration is one type declaration found in a file.
type Declaration struct {
	Name string
	Line int
}

// Declarations returns the declarations of source ordered by line. When
// several declarations start on one line only the last is kept.
func (ex *Extractor) Declarations(source []byte) []Declaration {
	if ex.declaration == nil {
		return nil
	}
	lines := newLineIndex(source)
	byLine := make(map[int]string)
	for _, m := range ex.declaration.FindAllSubmatchIndex(source, -1) {
		start, end := m[2*ex.declName], m[2*ex.declName+1]
		if start < 0 || start == end {
			continue
		}
		byLine[lines.lineOf(start)] = string(source[start:end])
	}
	decls := make([]Declaration, 0, len(byLine))
	for line, name := range byLine {
		decls = append(decls, Declaration{Name: name, Line: line})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Line < decls[j].Line })
	return decls
}

// Extract returns the relationships of one file ordered by line, then by
// kind. path is only recorded on the results and used as the fallback
// source name. Malformed source never fails; it yields fewer matches.
func (ex *Extractor) Extract(path string, source []byte) []Relationship {
	if len(ex.rules) == 0 || len(source) == 0 {
		return nil
	}
	lines := newLineIndex(source)
	decls := ex.Declarations(source)
	stem := paths.FileStem(path)

	var out []Relationship
	for _, rule := range ex.rules {
		for _, m := range rule.re.FindAllSubmatchIndex(source, -1) {
			line := lines.lineOf(matchStart(m, rule))
			ctx := contextAt(decls, line)

			field := group(source, m, rule.field)
			if field != "" && rule.fieldExclude != nil && rule.fieldExclude.MatchString(field) {
				continue
			}

			src := cleanName(group(source, m, rule.source))
			if src == "" {
				if ctx != nil {
					src = *ctx
				} else {
					src = stem
				}
			}

			for _, target := range rule.targets(group(source, m, rule.target)) {
				rel := Relationship{
					Kind:      rule.kind,
					Source:    src,
					Target:    target,
					ExtraInfo: field,
					File:      path,
					Line:      line,
				}
				if ctx != nil {
					rel.ContextClass = strPtr(*ctx)
				}
				out = append(out, rel)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Kind.order() < out[j].Kind.order()
	})
	return out
}

func (r *compiledRule) targets(raw string) []string {
	parts := []string{raw}
	if r.split != "" {
		parts = splitTopLevel(raw, r.split)
	}
	var out []string
	for _, p := range parts {
		t := cleanName(p)
		if t == "" {
			continue
		}
		if r.targetInclude != nil && !r.targetInclude.MatchString(t) {
			continue
		}
		if r.targetExclude != nil && r.targetExclude.MatchString(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// contextAt returns the declaration with the greatest line <= line.
func contextAt(decls []Declaration, line int) *string {
	i := sort.Search(len(decls), func(i int) bool { return decls[i].Line > line })
	if i == 0 {
		return nil
	}
	return strPtr(decls[i-1].Name)
}

// matchStart is the earliest start of a participating named group, so a
// pattern that opens with whitespace still reports the line of its content.
func matchStart(m []int, r *compiledRule) int {
	start := -1
	for _, g := range []int{r.source, r.target, r.field} {
		if g < 0 || m[2*g] < 0 {
			continue
		}
		if start < 0 || m[2*g] < start {
			start = m[2*g]
		}
	}
	if start < 0 {
		return m[0]
	}
	return start
}

func group(source []byte, m []int, g int) string {
	if g < 0 || m[2*g] < 0 {
		return ""
	}
	return string(source[m[2*g]:m[2*g+1]])
}

// splitTopLevel splits s on sep outside of <> [] and () brackets.
func splitTopLevel(s, sep string) []string {
	var (
		out   []string
		depth int
		last  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[', '(':
			depth++
		case '>', ']', ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				out = append(out, s[last:i])
				last = i + len(sep)
				i += len(sep) - 1
			}
		}
	}
	return append(out, s[last:])
}

// cleanName strips generic arguments and keeps the first word, so
// "Repo<T> where T : new()" becomes "Repo".
func cleanName(s string) string {
	var (
		b     strings.Builder
		depth int
	)
	for _, r := range s {
		switch r {
		case '<', '[':
			depth++
			continue
		case '>', ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "*&?!:;,{}()")
}

type lineIndex []int

func newLineIndex(source []byte) lineIndex {
	starts := lineIndex{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 1-based line of a byte offset.
func (li lineIndex) lineOf(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}
