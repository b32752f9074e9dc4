package tracestore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

const manifestName = "labels.toml"

// LabelInfo describes one label in the manifest.
type LabelInfo struct {
	Label     string    `toml:"-" json:"label"`
	Latest    string    `toml:"latest" json:"latest"`
	Count     int       `toml:"count" json:"count"`
	UpdatedAt time.Time `toml:"updated_at" json:"updatedAt"`
	Digest    string    `toml:"digest,omitempty" json:"digest,omitempty"`
}

// manifest is the human-readable label index kept next to the trace files.
type manifest struct {
	Version int                   `toml:"version"`
	Labels  map[string]*LabelInfo `toml:"labels"`
}

func newManifest() *manifest {
	return &manifest{Version: FormatVersion, Labels: make(map[string]*LabelInfo)}
}

func loadManifest(dir string) (*manifest, error) {
	m := newManifest()
	_, err := toml.DecodeFile(filepath.Join(dir, manifestName), m)
	if errors.Is(err, fs.ErrNotExist) {
		return newManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", manifestName, err)
	}
	if m.Labels == nil {
		m.Labels = make(map[string]*LabelInfo)
	}
	for label, info := range m.Labels {
		info.Label = label
	}
	return m, nil
}

func (m *manifest) save(dir string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("failed to encode %s: %w", manifestName, err)
	}
	return writeFileAtomic(filepath.Join(dir, manifestName), buf.Bytes())
}

func (m *manifest) sorted() []LabelInfo {
	out := make([]LabelInfo, 0, len(m.Labels))
	for label, info := range m.Labels {
		entry := *info
		entry.Label = label
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place. The temp file is closed on every path and
// removed on failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	closed = true
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
