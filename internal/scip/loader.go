// Package scip converts SCIP indexes into tag records.
package scip

import (
	"fmt"
	"os"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"codeintel/internal/errors"
)

// LoadIndex reads and decodes a SCIP index file.
func LoadIndex(path string) (*scippb.Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.IndexMissing, fmt.Sprintf("SCIP index not found at %s", path), err)
	}
	if err != nil {
		return nil, errors.New(errors.InternalError, fmt.Sprintf("failed to read SCIP index from %s", path), err)
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		e := errors.New(errors.InternalError, fmt.Sprintf("failed to parse SCIP index from %s", path), err)
		e.SuggestedFixes = []errors.FixAction{{
			Type:        errors.RunCommand,
			Command:     "scip print --index=" + path,
			Safe:        true,
			Description: "Verify SCIP index is valid",
		}}
		return nil, e
	}
	return &index, nil
}
