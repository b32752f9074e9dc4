package diagram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	cierrors "codeintel/internal/errors"
	"codeintel/internal/slogutil"
)

// ConvertOptions configures Convert.
type ConvertOptions struct {
	Style  Style
	Source string // diagram text
	Output string // image path; its extension is the format unless Format is set
	Format string // svg, png or pdf
	// MermaidCommand and DotCommand default to mmdc and dot.
	MermaidCommand string
	DotCommand     string
	Logger         *slog.Logger
}

// Convert renders diagram text to an image with mmdc or dot. A missing
// renderer returns a TOOL_UNAVAILABLE error; callers keep the text output.
func Convert(ctx context.Context, opts ConvertOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	format := opts.Format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(opts.Output), ".")
	}
	if format == "" {
		format = "svg"
	}

	var (
		command string
		args    []string
		stdin   []byte
	)
	switch opts.Style {
	case StyleDOT:
		command = opts.DotCommand
		if command == "" {
			command = "dot"
		}
		args = []string{"-T" + format, "-o", opts.Output}
		stdin = []byte(opts.Source)
	case StyleMermaid, "":
		command = opts.MermaidCommand
		if command == "" {
			command = "mmdc"
		}
		in, err := os.CreateTemp("", "codeintel-*.mmd")
		if err != nil {
			return fmt.Errorf("creating mermaid input: %w", err)
		}
		defer os.Remove(in.Name())
		if _, err := in.WriteString(opts.Source); err != nil {
			in.Close()
			return fmt.Errorf("writing mermaid input: %w", err)
		}
		if err := in.Close(); err != nil {
			return err
		}
		args = []string{"-i", in.Name(), "-o", opts.Output, "-e", format}
	default:
		return fmt.Errorf("unknown diagram style %q", opts.Style)
	}

	bin, err := exec.LookPath(command)
	if err != nil {
		return cierrors.New(cierrors.ToolUnavailable, fmt.Sprintf("%s not found on PATH", command), err)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %s: %w", command, strings.TrimSpace(stderr.String()), err)
	}
	logger.Debug("Diagram image written", "output", opts.Output, "renderer", command)
	return nil
}
