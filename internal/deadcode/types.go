// Package deadcode reports functions that a symbol index knows about but a
// trace never executed.
package deadcode

// Symbol is one function or method that could have been executed.
type Symbol struct {
	// ID is "module::qualifiedName", the same form trace IDs use.
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	// File is relative to the repo root.
	File    string `json:"file"`
	Line    int    `json:"line"`
	LineEnd int    `json:"lineEnd,omitempty"`
}

// Item is a symbol that was never executed.
type Item struct {
	Symbol
	// Excluded carries the exclusion reason when Options.KeepExcluded is set.
	Excluded string `json:"excluded,omitempty"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// TotalSymbols is every known symbol considered.
	TotalSymbols int `json:"totalSymbols"`
	// Executed is known symbols that were executed.
	Executed int `json:"executed"`
	// DeadCount is reported dead symbols, excluded ones not included.
	DeadCount int `json:"deadCount"`
	// ExcludedCount is dead symbols dropped by exclusion rules.
	ExcludedCount int `json:"excludedCount"`

	ByKind map[string]int `json:"byKind"`
	ByFile map[string]int `json:"byFile"`

	// EstimatedLines is the summed span of dead symbols that have an end
	// line, plus a rough per-kind guess for those that do not.
	EstimatedLines int `json:"estimatedLines"`
}

// Options configures Find.
type Options struct {
	// ExcludePatterns are globs matched against the file path and the
	// symbol name.
	ExcludePatterns []string
	// SkipEntryPoints drops entry points, test functions and common
	// interface methods that are called by the runtime or a framework.
	SkipEntryPoints bool
	// SkipTestFiles drops symbols defined in test files.
	SkipTestFiles bool
	// KeepExcluded reports excluded symbols with a reason instead of
	// dropping them.
	KeepExcluded bool
	// Limit caps the reported items; 0 means no limit.
	Limit int
}

// Result is the output of Find.
type Result struct {
	Dead    []Item  `json:"dead"`
	Summary Summary `json:"summary"`
}
