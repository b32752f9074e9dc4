package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"codeintel/internal/config"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/paths"
	"codeintel/internal/slogutil"
	"codeintel/internal/version"
)

var (
	formatFlag  string
	verboseFlag int
	quietFlag   bool
	rootFlag    string
	logFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "codeintel",
	Short: "codeintel - code structure and execution intelligence",
	Long: `codeintel maps the structure of a codebase and records how it runs.

It reads symbol indexes (ctags, SCIP or tree-sitter), extracts inheritance,
interface and composition relationships with per-language patterns, renders
them as Mermaid or Graphviz diagrams, and stores weighted call graphs from
traced runs for hot path, dead code and trend analysis.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("codeintel version {{.Version}}\n")
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&formatFlag, "format", "", "Output format: json or human (default: human on a terminal, json otherwise)")
	pf.CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Only log errors")
	pf.StringVar(&rootFlag, "root", "", "Project root (default: nearest directory containing .codeintel or .git)")
	pf.StringVar(&logFileFlag, "log-file", "", "Also write logs to this file")
}

// env is what every command needs: where the project is, how it is
// configured, where to log and how to print.
type env struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	format OutputFormat
	out    io.Writer
}

func newEnv(cmd *cobra.Command) (*env, error) {
	root := rootFlag
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, cierrors.New(cierrors.InternalError, "failed to get current directory", err)
		}
		root, err = paths.FindProjectRoot(cwd)
		if err != nil {
			root = cwd
		}
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, cierrors.New(cierrors.ConfigInvalid, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cierrors.New(cierrors.ConfigInvalid, err.Error(), nil)
	}

	format, err := resolveFormat(formatFlag, os.Stdout)
	if err != nil {
		return nil, err
	}

	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr(), root)
	if err != nil {
		return nil, err
	}
	return &env{
		root:   root,
		cfg:    cfg,
		logger: logger,
		closer: closer,
		format: format,
		out:    cmd.OutOrStdout(),
	}, nil
}

// newLogger builds the logger from flags first and config second.
func newLogger(cfg *config.Config, stderr io.Writer, root string) (*slog.Logger, io.Closer, error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verboseFlag > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verboseFlag, quietFlag)
	}

	file := logFileFlag
	if file == "" {
		file = config.ResolvePath(root, cfg.Logging.File)
	}
	if cfg.Logging.Format == "json" && file == "" {
		return slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level})), nopCloser{}, nil
	}
	logger, closer, err := slogutil.Setup(stderr, slogutil.Options{
		Level:      level,
		File:       file,
		FileLevel:  slog.LevelDebug,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		logger.Warn("Failed to open log file, logging to stderr only", "file", file, "error", err.Error())
	}
	return logger, closer, nil
}

func resolveFormat(flag string, stdout *os.File) (OutputFormat, error) {
	switch OutputFormat(flag) {
	case FormatJSON, FormatHuman:
		return OutputFormat(flag), nil
	case "":
		if stdout != nil && (isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd())) {
			return FormatHuman, nil
		}
		return FormatJSON, nil
	default:
		return "", cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("unsupported format %q (use json or human)", flag), nil)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (e *env) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// print formats resp and writes it to stdout.
func (e *env) print(resp interface{}) error {
	output, err := FormatResponse(resp, e.format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, output)
	return err
}

// path resolves a configured path against the project root.
func (e *env) path(p string) string {
	return config.ResolvePath(e.root, p)
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
