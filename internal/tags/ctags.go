package tags

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	cierrors "codeintel/internal/errors"
)

// CtagsArgs are the arguments passed to Universal Ctags to get a JSON stream
// with end lines, long kinds, languages and scopes.
var CtagsArgs = []string{
	"--output-format=json",
	"--fields=+neKlsZ",
	"--extras=-F",
	"-R",
	"-f", "-",
}

// RunCtags runs command over root and parses its JSON output.
func RunCtags(ctx context.Context, command, root string, logger *slog.Logger) ([]Tag, ParseStats, error) {
	if command == "" {
		command = "ctags"
	}
	bin, err := exec.LookPath(command)
	if err != nil {
		return nil, ParseStats{}, cierrors.New(cierrors.ToolUnavailable,
			fmt.Sprintf("%s not found on PATH", command), err)
	}

	args := append(append([]string{}, CtagsArgs...), ".")
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ParseStats{}, err
	}
	if err := cmd.Start(); err != nil {
		return nil, ParseStats{}, fmt.Errorf("starting %s: %w", command, err)
	}

	tags, stats, parseErr := ParseStream(stdout, logger)
	waitErr := cmd.Wait()
	if parseErr != nil {
		return nil, stats, parseErr
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, stats, fmt.Errorf("%s failed: %s: %w", command, strings.TrimSpace(stderr.String()), waitErr)
		}
		return nil, stats, waitErr
	}
	if logger != nil {
		logger.Debug("ctags finished", "root", root, "tags", stats.Tags, "malformed", stats.Malformed)
	}
	return tags, stats, nil
}
