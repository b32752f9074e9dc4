package deadcode

import (
	"log/slog"
	"sort"

	"codeintel/internal/slogutil"
	"codeintel/internal/tags"
)

// KnownSymbols returns the function and method tags of idx. Tags sharing
// an ID, such as overloads, collapse into the first one.
func KnownSymbols(idx *tags.Index) []Symbol {
	seen := make(map[string]bool)
	var out []Symbol
	for _, t := range idx.Tags() {
		if t.Family() != tags.FamilyFunction {
			continue
		}
		id := t.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Symbol{
			ID:      id,
			Name:    t.QualifiedName(),
			Kind:    t.Kind,
			File:    t.Path,
			Line:    t.LineStart,
			LineEnd: t.LineEnd,
		})
	}
	return out
}

// Find returns known minus executed, sorted by file then line. With zero
// Options the result is the plain set difference.
func Find(known []Symbol, executed map[string]bool, opts Options) (*Result, error) {
	rules, err := NewExclusionRules(opts)
	if err != nil {
		return nil, err
	}

	dead := make([]Item, 0)
	summary := Summary{
		TotalSymbols: len(known),
		ByKind:       make(map[string]int),
		ByFile:       make(map[string]int),
	}
	for _, sym := range known {
		if executed[sym.ID] {
			summary.Executed++
			continue
		}
		reason := rules.ShouldExclude(sym)
		if reason != "" {
			summary.ExcludedCount++
			if !opts.KeepExcluded {
				continue
			}
		}
		dead = append(dead, Item{Symbol: sym, Excluded: reason})
	}

	sort.SliceStable(dead, func(i, j int) bool {
		if dead[i].File != dead[j].File {
			return dead[i].File < dead[j].File
		}
		if dead[i].Line != dead[j].Line {
			return dead[i].Line < dead[j].Line
		}
		return dead[i].ID < dead[j].ID
	})

	for _, item := range dead {
		if item.Excluded != "" {
			continue
		}
		summary.DeadCount++
		summary.ByKind[item.Kind]++
		summary.ByFile[item.File]++
		summary.EstimatedLines += estimateLines(item.Symbol)
	}

	if opts.Limit > 0 && len(dead) > opts.Limit {
		dead = dead[:opts.Limit]
	}
	return &Result{Dead: dead, Summary: summary}, nil
}

func estimateLines(sym Symbol) int {
	if sym.LineEnd >= sym.Line && sym.LineEnd > 0 {
		return sym.LineEnd - sym.Line + 1
	}
	// Rough estimate when the indexer gave no end line.
	switch sym.Kind {
	case "function", "method", "func":
		return 20
	default:
		return 5
	}
}

// Analyzer runs Find against a fixed symbol index.
type Analyzer struct {
	known  []Symbol
	logger *slog.Logger
}

// NewAnalyzer creates a new dead code analyzer.
func NewAnalyzer(idx *tags.Index, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Analyzer{known: KnownSymbols(idx), logger: logger}
}

// Known returns the symbols the analyzer compares against.
func (a *Analyzer) Known() []Symbol { return a.known }

// Analyze performs dead code detection for one set of executed IDs.
func (a *Analyzer) Analyze(executed map[string]bool, opts Options) (*Result, error) {
	res, err := Find(a.known, executed, opts)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Dead code analysis completed",
		"totalSymbols", res.Summary.TotalSymbols,
		"executed", res.Summary.Executed,
		"deadCount", res.Summary.DeadCount,
		"excluded", res.Summary.ExcludedCount)
	if res.Summary.TotalSymbols > 0 && res.Summary.Executed == 0 && len(executed) > 0 {
		a.logger.Warn("No executed function matched a known symbol; trace IDs may use a different naming scheme",
			"executedIds", len(executed))
	}
	return res, nil
}
