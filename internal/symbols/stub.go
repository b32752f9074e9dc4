//go:build !cgo

package symbols

import (
	"context"
	"log/slog"

	cierrors "codeintel/internal/errors"
	"codeintel/internal/tags"
)

// Extractor is unavailable without cgo.
type Extractor struct{}

// NewExtractor returns nil when cgo is not available.
func NewExtractor(logger *slog.Logger) *Extractor {
	return nil
}

// IsAvailable returns whether tree-sitter extraction is compiled in.
func IsAvailable() bool {
	return false
}

func errNoCGO() error {
	return cierrors.New(cierrors.ToolUnavailable, "tree-sitter extraction requires a cgo build", nil)
}

// ExtractFile always fails without cgo.
func (e *Extractor) ExtractFile(ctx context.Context, root, rel string) ([]tags.Tag, error) {
	return nil, errNoCGO()
}

// ExtractDirectory always fails without cgo.
func (e *Extractor) ExtractDirectory(ctx context.Context, root string, files []string) ([]tags.Tag, error) {
	return nil, errNoCGO()
}

// ExtractSource always fails without cgo.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte, lang Language) ([]tags.Tag, error) {
	return nil, errNoCGO()
}
