package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codeintel/internal/deadcode"
	"codeintel/internal/discover"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/hotspots"
	"codeintel/internal/tracer"
	"codeintel/internal/tracestore"
)

var (
	traceLabel       string
	traceListLabel   string
	traceResolve     bool
	traceListLimit   int
	traceTrendLimit  int
	traceHotLimit    int
	traceDeadLimit   int
	traceTop         int
	traceHeat        string
	traceMetric      string
	traceExclude     []string
	traceSkipEntry   bool
	traceSkipTests   bool
	traceKeepExclude bool
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Record, store and analyze execution traces",
	Long: `Record weighted call graphs and analyze them.

A trace is recorded by replaying a JSON-lines event stream of call and
return events. Stored traces are kept per label in traces.dir with a
<label>_latest alias, so any command taking a trace accepts either a label
or a trace ID.`,
}

var traceReplayCmd = &cobra.Command{
	Use:   "replay <events.jsonl|->",
	Short: "Record a trace from a call/return event stream",
	Long: `Replay a JSON-lines event stream through the tracer and store the trace.

Each line is {"event":"call","function":"f","file":"pkg/a.py","module":"pkg"}
or {"event":"return"}. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runTraceReplay,
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored traces, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTraceList,
}

var traceLabelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List trace labels with their latest trace",
	Args:  cobra.NoArgs,
	RunE:  runTraceLabels,
}

var traceShowCmd = &cobra.Command{
	Use:   "show <label|id>",
	Short: "Show a trace summary and its most called paths",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceShow,
}

var traceCompareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Compare two traces",
	Long:  "Report call paths new in B, paths removed from A and paths whose call count changed.",
	Args:  cobra.ExactArgs(2),
	RunE:  runTraceCompare,
}

var traceTrendCmd = &cobra.Command{
	Use:   "trend <label>",
	Short: "Show how a label's trace metrics change over time",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceTrend,
}

var traceHotCmd = &cobra.Command{
	Use:   "hot <label|id>",
	Short: "Classify call paths as hot, warm or cold",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceHot,
}

var traceDeadcodeCmd = &cobra.Command{
	Use:   "deadcode <label|id>",
	Short: "List known functions a trace never executed",
	Long: `Report functions from the symbol table that the trace never executed.

Without flags the result is the plain set difference. --skip-entry-points
and --skip-tests drop symbols that are called by the runtime or a test
framework, and --exclude drops files or names matching a glob.`,
	Args: cobra.ExactArgs(1),
	RunE: runTraceDeadcode,
}

var traceRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the trace catalog from the trace files",
	Args:  cobra.NoArgs,
	RunE:  runTraceRebuild,
}

func init() {
	traceReplayCmd.Flags().StringVar(&traceLabel, "label", "", "Label to store the trace under (required)")
	traceReplayCmd.Flags().BoolVar(&traceResolve, "resolve", true, "Canonicalize function names against the symbol table")
	_ = traceReplayCmd.MarkFlagRequired("label")

	traceListCmd.Flags().StringVar(&traceListLabel, "label", "", "Only traces with this label")
	traceListCmd.Flags().IntVar(&traceListLimit, "limit", 20, "Maximum traces to list (0 = all)")

	traceShowCmd.Flags().IntVar(&traceTop, "top", 10, "Number of most called paths to show")

	traceTrendCmd.Flags().IntVar(&traceTrendLimit, "limit", 0, "Use only the newest N traces (0 = all)")
	traceTrendCmd.Flags().StringVar(&traceMetric, "metric", "total_calls", "Metric: total_calls, unique_paths or functions_executed")

	traceHotCmd.Flags().StringVar(&traceHeat, "heat", "", "Only paths of this heat: hot, warm or cold")
	traceHotCmd.Flags().IntVar(&traceHotLimit, "limit", 0, "Maximum paths to show (0 = all)")

	traceDeadcodeCmd.Flags().StringSliceVar(&traceExclude, "exclude", nil, "Glob matched against file paths and symbol names")
	traceDeadcodeCmd.Flags().BoolVar(&traceSkipEntry, "skip-entry-points", false, "Skip entry points, tests and framework methods")
	traceDeadcodeCmd.Flags().BoolVar(&traceSkipTests, "skip-tests", false, "Skip symbols in test files")
	traceDeadcodeCmd.Flags().BoolVar(&traceKeepExclude, "keep-excluded", false, "Report excluded symbols with the reason")
	traceDeadcodeCmd.Flags().IntVar(&traceDeadLimit, "limit", 0, "Maximum symbols to list (0 = all)")

	traceCmd.AddCommand(traceReplayCmd, traceListCmd, traceLabelsCmd, traceShowCmd,
		traceCompareCmd, traceTrendCmd, traceHotCmd, traceDeadcodeCmd, traceRebuildCmd)
	rootCmd.AddCommand(traceCmd)
}

// TraceReplayResponseCLI reports a recorded trace.
type TraceReplayResponseCLI struct {
	ID        string             `json:"id"`
	Label     string             `json:"label"`
	SessionID string             `json:"session_id"`
	Resolved  bool               `json:"resolved"`
	Replay    tracer.ReplayStats `json:"replay"`
	Summary   tracer.Summary     `json:"summary"`
}

// TraceListResponseCLI lists catalog entries.
type TraceListResponseCLI struct {
	Traces []tracestore.Entry `json:"traces"`
}

// TraceLabelsResponseCLI lists labels.
type TraceLabelsResponseCLI struct {
	Labels []tracestore.LabelInfo `json:"labels"`
}

// TraceShowResponseCLI is one trace in brief.
type TraceShowResponseCLI struct {
	ID        string              `json:"id"`
	Label     string              `json:"label"`
	SessionID string              `json:"session_id,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Digest    string              `json:"digest"`
	Summary   tracer.Summary      `json:"summary"`
	Heat      map[tracer.Heat]int `json:"heat"`
	TopPaths  []tracer.PathStat   `json:"top_paths"`
}

// TraceCompareResponseCLI wraps a comparison.
type TraceCompareResponseCLI struct {
	*tracestore.Comparison
	Unchanged bool `json:"unchanged"`
}

// TrendPointCLI is one sample of a metric.
type TrendPointCLI struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TraceTrendResponseCLI is a metric over time.
type TraceTrendResponseCLI struct {
	Label         string          `json:"label"`
	Metric        string          `json:"metric"`
	Points        []TrendPointCLI `json:"points"`
	Trend         *hotspots.Trend `json:"trend"`
	PercentChange float64         `json:"percent_change"`
}

// TraceHotResponseCLI classifies call paths.
type TraceHotResponseCLI struct {
	ID    string              `json:"id"`
	Label string              `json:"label"`
	Heat  map[tracer.Heat]int `json:"heat"`
	Paths []tracer.PathStat   `json:"paths"`
}

// TraceDeadcodeResponseCLI lists never executed functions.
type TraceDeadcodeResponseCLI struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	*deadcode.Result
}

// TraceRebuildResponseCLI reports a catalog rebuild.
type TraceRebuildResponseCLI struct {
	Dir     string `json:"dir"`
	Indexed int    `json:"indexed"`
}

func (e *env) openStore(cmd *cobra.Command) (*tracestore.Store, error) {
	store, err := tracestore.Open(cmd.Context(), e.path(e.cfg.Traces.Dir), tracestore.Options{
		Compress:     e.cfg.Traces.Compress,
		HistoryLimit: e.cfg.Traces.HistoryLimit,
		Logger:       e.logger,
	})
	if err != nil {
		return nil, cierrors.New(cierrors.InternalError, "failed to open trace store", err)
	}
	return store, nil
}

// withStore runs fn with an env and an open store, closing both after.
func withStore(cmd *cobra.Command, fn func(e *env, store *tracestore.Store) error) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	store, err := e.openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			e.logger.Warn("Failed to close trace store", "error", cerr.Error())
		}
	}()
	return fn(e, store)
}

func runTraceReplay(cmd *cobra.Command, args []string) error {
	if err := tracestore.ValidateLabel(traceLabel); err != nil {
		return err
	}
	ctx := cmd.Context()
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		project, err := discover.NewFilter(e.cfg.Tracer.Include, e.cfg.Tracer.Exclude)
		if err != nil {
			return cierrors.New(cierrors.ConfigInvalid, "invalid tracer include/exclude pattern", err)
		}
		opts := tracer.Options{Project: project, Root: e.root, Logger: e.logger}
		if traceResolve {
			if idx, _, err := e.loadIndex(ctx); err == nil {
				opts.Resolver = tracer.NewMatcher(idx, "")
			} else {
				e.logger.Info("Symbol table unavailable, keeping raw function names", "error", err.Error())
			}
		}

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return cierrors.New(cierrors.IndexMissing, fmt.Sprintf("cannot open event stream %s", args[0]), err)
			}
			defer f.Close()
			in = f
		}

		t := tracer.New(opts)
		if err := t.Start(); err != nil {
			return err
		}
		stats, err := t.Replay(ctx, in)
		if err != nil {
			_, _ = t.Stop(traceLabel)
			return cierrors.New(cierrors.InternalError, "replay failed", err)
		}
		tr, err := t.Stop(traceLabel)
		if err != nil {
			return err
		}
		id, err := store.Save(ctx, tr, traceLabel)
		if err != nil {
			return err
		}
		return e.print(&TraceReplayResponseCLI{
			ID:        id,
			Label:     traceLabel,
			SessionID: tr.SessionID,
			Resolved:  opts.Resolver != nil,
			Replay:    stats,
			Summary:   tr.Summary(),
		})
	})
}

func runTraceList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		var (
			entries []tracestore.Entry
			err     error
		)
		if traceListLabel != "" {
			entries, err = store.History(cmd.Context(), traceListLabel, traceListLimit)
		} else {
			entries, err = store.List(cmd.Context(), traceListLimit)
		}
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []tracestore.Entry{}
		}
		return e.print(&TraceListResponseCLI{Traces: entries})
	})
}

func runTraceLabels(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		labels, err := store.Labels(cmd.Context())
		if err != nil {
			return err
		}
		if labels == nil {
			labels = []tracestore.LabelInfo{}
		}
		return e.print(&TraceLabelsResponseCLI{Labels: labels})
	})
}

func runTraceShow(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		tr, err := store.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		paths := tracer.HotPaths(tr)
		resp := &TraceShowResponseCLI{
			ID:        tr.ID,
			Label:     tr.Label,
			SessionID: tr.SessionID,
			Timestamp: tr.Timestamp,
			Digest:    tracestore.Digest(tr),
			Summary:   tr.Summary(),
			Heat:      tracer.HeatCounts(paths),
			TopPaths:  paths,
		}
		if traceTop >= 0 && len(resp.TopPaths) > traceTop {
			resp.TopPaths = resp.TopPaths[:traceTop]
		}
		return e.print(resp)
	})
}

func runTraceCompare(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		c, err := store.Compare(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return e.print(&TraceCompareResponseCLI{Comparison: c, Unchanged: c.Unchanged()})
	})
}

func runTraceTrend(cmd *cobra.Command, args []string) error {
	metric, err := summaryMetric(traceMetric)
	if err != nil {
		return err
	}
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		series, err := store.TimeSeries(cmd.Context(), args[0], traceTrendLimit)
		if err != nil {
			return err
		}
		resp := &TraceTrendResponseCLI{Label: args[0], Metric: traceMetric}
		points := make([]hotspots.Point, 0, len(series))
		for _, sp := range series {
			v := metric(sp.Summary)
			resp.Points = append(resp.Points, TrendPointCLI{ID: sp.ID, Timestamp: sp.Timestamp, Value: v})
			points = append(points, hotspots.Point{Time: sp.Timestamp, Value: v})
		}
		resp.Trend = hotspots.CalculateTrend(points)
		resp.PercentChange = hotspots.PercentChange(points)
		return e.print(resp)
	})
}

func summaryMetric(name string) (func(tracer.Summary) float64, error) {
	switch name {
	case "total_calls":
		return func(s tracer.Summary) float64 { return float64(s.TotalCalls) }, nil
	case "unique_paths":
		return func(s tracer.Summary) float64 { return float64(s.UniquePaths) }, nil
	case "functions_executed":
		return func(s tracer.Summary) float64 { return float64(s.FunctionsExecuted) }, nil
	default:
		return nil, cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("unknown metric %q", name), nil)
	}
}

func runTraceHot(cmd *cobra.Command, args []string) error {
	switch tracer.Heat(traceHeat) {
	case "", tracer.Hot, tracer.Warm, tracer.Cold:
	default:
		return cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("unknown heat %q (use hot, warm or cold)", traceHeat), nil)
	}
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		tr, err := store.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		all := tracer.HotPaths(tr)
		resp := &TraceHotResponseCLI{
			ID:    tr.ID,
			Label: tr.Label,
			Heat:  tracer.HeatCounts(all),
			Paths: []tracer.PathStat{},
		}
		for _, p := range all {
			if traceHeat != "" && p.Heat != tracer.Heat(traceHeat) {
				continue
			}
			resp.Paths = append(resp.Paths, p)
		}
		if traceHotLimit > 0 && len(resp.Paths) > traceHotLimit {
			resp.Paths = resp.Paths[:traceHotLimit]
		}
		return e.print(resp)
	})
}

func runTraceDeadcode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		tr, err := store.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		idx, _, err := e.loadIndex(ctx)
		if err != nil {
			return err
		}
		result, err := deadcode.NewAnalyzer(idx, e.logger).Analyze(tr.Executed, deadcode.Options{
			ExcludePatterns: traceExclude,
			SkipEntryPoints: traceSkipEntry,
			SkipTestFiles:   traceSkipTests,
			KeepExcluded:    traceKeepExclude,
			Limit:           traceDeadLimit,
		})
		if err != nil {
			return cierrors.New(cierrors.ConfigInvalid, "invalid dead code options", err)
		}
		return e.print(&TraceDeadcodeResponseCLI{ID: tr.ID, Label: tr.Label, Result: result})
	})
}

func runTraceRebuild(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(e *env, store *tracestore.Store) error {
		n, err := store.Rebuild(cmd.Context())
		if err != nil {
			return cierrors.New(cierrors.InternalError, "catalog rebuild failed", err)
		}
		return e.print(&TraceRebuildResponseCLI{Dir: store.Dir(), Indexed: n})
	})
}
