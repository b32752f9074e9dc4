// Package tracestore persists traces under a label and timestamp, keeps a
// per-label latest alias, and answers history, diff and time-series
// queries.
//
// Layout of the traces directory:
//
//	<label>_<timestamp>.json[.zst]  one file per saved trace
//	<label>_latest.json[.zst]       copy of the newest trace for the label
//	catalog.db                      SQLite index of the history files
//	labels.toml                     label manifest
//
// The trace files are the source of truth; Rebuild re-creates the catalog
// and manifest from them.
package tracestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	cierrors "codeintel/internal/errors"
	"codeintel/internal/slogutil"
	"codeintel/internal/storage"
	"codeintel/internal/tracer"
)

const (
	timestampLayout = "20060102T150405.000000000Z"
	latestSuffix    = "_latest"
	extJSON         = ".json"
	extZstd         = ".json.zst"
)

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateLabel checks that label can be used in a file name.
func ValidateLabel(label string) error {
	if !labelPattern.MatchString(label) || strings.Trim(label, ".") == "" {
		return cierrors.New(cierrors.InvalidLabel,
			fmt.Sprintf("invalid trace label %q: use letters, digits, '.', '_' or '-'", label), nil)
	}
	return nil
}

// Options configures a Store.
type Options struct {
	// Compress writes new traces as zstd frames.
	Compress bool
	// HistoryLimit keeps at most this many traces per label; 0 keeps all.
	HistoryLimit int
	Logger       *slog.Logger
	// Now stamps traces saved without a timestamp.
	Now func() time.Time
}

// Store is a directory of trace files plus its catalog.
type Store struct {
	dir    string
	opts   Options
	logger *slog.Logger
	db     *storage.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder

	mu       sync.Mutex
	manifest *manifest
}

// Open opens the store in dir, creating it if needed. An empty catalog
// is rebuilt from the files already in dir.
func Open(ctx context.Context, dir string, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create traces directory: %w", err)
	}

	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(filepath.Join(dir, catalogName), opts.Logger, catalogMigrations)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	s := &Store{dir: dir, opts: opts, logger: opts.Logger, db: db, enc: enc, dec: dec, manifest: m}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traces").Scan(&count); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if count == 0 {
		if _, err := s.Rebuild(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the catalog and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	err := s.enc.Close()
	if dbErr := s.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// Dir returns the traces directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) ext() string {
	if s.opts.Compress {
		return extZstd
	}
	return extJSON
}

func (s *Store) aliasPath(label, ext string) string {
	return filepath.Join(s.dir, label+latestSuffix+ext)
}

// Save writes tr as a new history file for label, replaces the label's
// latest alias and records it in the catalog. tr itself is not modified.
// It returns the stored identifier "<label>_<timestamp>".
func (s *Store) Save(ctx context.Context, tr *tracer.Trace, label string) (string, error) {
	if err := ValidateLabel(label); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := acquireLock(ctx, s.dir)
	if err != nil {
		return "", err
	}
	defer lock.release()
	// another process may have saved since Open
	if m, err := loadManifest(s.dir); err == nil {
		s.manifest = m
	}

	stored := *tr
	stored.Label = label
	if stored.Timestamp.IsZero() {
		stored.Timestamp = s.opts.Now()
	}
	stored.Timestamp = stored.Timestamp.UTC()
	stored.ID = s.uniqueID(label, stored.Timestamp)

	data, err := Encode(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode trace: %w", err)
	}
	if s.opts.Compress {
		data = s.enc.EncodeAll(data, nil)
	}

	file := stored.ID + s.ext()
	if err := writeFileAtomic(filepath.Join(s.dir, file), data); err != nil {
		return "", err
	}

	entry := Entry{
		ID:        stored.ID,
		Label:     label,
		Timestamp: stored.Timestamp,
		File:      file,
		SessionID: stored.SessionID,
		Summary:   stored.Summary(),
		Digest:    Digest(&stored),
	}
	if err := insertEntry(ctx, s.db, entry); err != nil {
		s.discard(ctx, entry, false)
		return "", err
	}
	if err := writeFileAtomic(s.aliasPath(label, s.ext()), data); err != nil {
		s.discard(ctx, entry, true)
		return "", err
	}
	// drop an alias left in the other encoding
	other := extJSON
	if !s.opts.Compress {
		other = extZstd
	}
	if err := os.Remove(s.aliasPath(label, other)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove stale alias", "label", label, "error", err.Error())
	}

	info := s.manifest.Labels[label]
	if info == nil {
		info = &LabelInfo{Label: label}
		s.manifest.Labels[label] = info
	}
	info.Latest = entry.ID
	info.Count++
	info.UpdatedAt = entry.Timestamp
	info.Digest = entry.Digest

	if err := s.prune(ctx, label); err != nil {
		s.logger.Warn("Failed to prune trace history", "label", label, "error", err.Error())
	}
	if err := s.manifest.save(s.dir); err != nil {
		return "", err
	}

	s.logger.Info("Trace saved",
		"id", entry.ID,
		"edges", entry.Summary.UniquePaths,
		"calls", entry.Summary.TotalCalls,
		"compressed", s.opts.Compress)
	return entry.ID, nil
}

// uniqueID returns label_timestamp, suffixed when that name is taken.
// discard removes the history file of a save that could not complete and,
// when recorded, its catalog row. The previous alias is left in place.
func (s *Store) discard(ctx context.Context, e Entry, recorded bool) {
	if err := os.Remove(filepath.Join(s.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to remove unsaved trace", "id", e.ID, "error", err.Error())
	}
	if !recorded {
		return
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM traces WHERE id = ?", e.ID); err != nil {
		s.logger.Warn("Failed to remove unsaved trace from catalog", "id", e.ID, "error", err.Error())
	}
}

func (s *Store) uniqueID(label string, ts time.Time) string {
	base := label + "_" + ts.Format(timestampLayout)
	id := base
	for n := 1; s.exists(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

func (s *Store) exists(id string) bool {
	for _, ext := range []string{extJSON, extZstd} {
		if _, err := os.Stat(filepath.Join(s.dir, id+ext)); err == nil {
			return true
		}
	}
	return false
}

func (s *Store) prune(ctx context.Context, label string) error {
	if s.opts.HistoryLimit <= 0 {
		return nil
	}
	old, err := queryEntries(ctx, s.db, `SELECT `+entryColumns+` FROM traces
		WHERE label = ? ORDER BY ts DESC, id DESC LIMIT -1 OFFSET ?`, label, s.opts.HistoryLimit)
	if err != nil {
		return err
	}
	for _, e := range old {
		if err := os.Remove(filepath.Join(s.dir, e.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM traces WHERE id = ?", e.ID); err != nil {
			return err
		}
		s.logger.Debug("Pruned trace", "id", e.ID)
	}
	if info := s.manifest.Labels[label]; info != nil && len(old) > 0 {
		info.Count -= len(old)
	}
	return nil
}

func (s *Store) readFile(path string) (*tracer.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tr, err := Decode(data, s.dec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return tr, nil
}

// Load returns the latest trace saved under label.
func (s *Store) Load(ctx context.Context, label string) (*tracer.Trace, error) {
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	for _, ext := range []string{s.ext(), extJSON, extZstd} {
		tr, err := s.readFile(s.aliasPath(label, ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return tr, err
	}
	return nil, cierrors.NotFound(label)
}

// LoadID returns the trace stored under id.
func (s *Store) LoadID(ctx context.Context, id string) (*tracer.Trace, error) {
	var file string
	err := s.db.QueryRowContext(ctx, "SELECT file FROM traces WHERE id = ?", id).Scan(&file)
	switch {
	case err == nil:
		tr, err := s.readFile(filepath.Join(s.dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cierrors.NotFound(id)
		}
		return tr, err
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}

	if labelPattern.MatchString(id) {
		for _, ext := range []string{extJSON, extZstd} {
			tr, err := s.readFile(filepath.Join(s.dir, id+ext))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return tr, err
		}
	}
	return nil, cierrors.NotFound(id)
}

// Resolve loads ref as a label first and as a stored identifier second.
func (s *Store) Resolve(ctx context.Context, ref string) (*tracer.Trace, error) {
	tr, err := s.Load(ctx, ref)
	if err == nil || !(cierrors.IsCode(err, cierrors.TraceNotFound) || cierrors.IsCode(err, cierrors.InvalidLabel)) {
		return tr, err
	}
	tr, idErr := s.LoadID(ctx, ref)
	if idErr != nil {
		return nil, err
	}
	return tr, nil
}

// List returns stored traces newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return queryEntries(ctx, s.db, `SELECT `+entryColumns+` FROM traces
		ORDER BY ts DESC, id DESC LIMIT ?`, limit)
}

// History returns the traces of one label, newest first.
func (s *Store) History(ctx context.Context, label string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return queryEntries(ctx, s.db, `SELECT `+entryColumns+` FROM traces
		WHERE label = ? ORDER BY ts DESC, id DESC LIMIT ?`, label, limit)
}

// Compare diffs the traces a and b, each given as a label or identifier.
func (s *Store) Compare(ctx context.Context, a, b string) (*Comparison, error) {
	ta, err := s.Resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	tb, err := s.Resolve(ctx, b)
	if err != nil {
		return nil, err
	}
	return CompareTraces(ta, tb), nil
}

// SeriesPoint is one trace summary in a time series.
type SeriesPoint struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   tracer.Summary `json:"summary"`
}

// TimeSeries returns the summaries of the newest limit traces of label in
// chronological order. limit <= 0 means all.
func (s *Store) TimeSeries(ctx context.Context, label string, limit int) ([]SeriesPoint, error) {
	entries, err := s.History(ctx, label, limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, cierrors.NotFound(label)
	}
	points := make([]SeriesPoint, len(entries))
	for i, e := range entries {
		points[len(entries)-1-i] = SeriesPoint{ID: e.ID, Timestamp: e.Timestamp, Summary: e.Summary}
	}
	return points, nil
}

// Labels returns the manifest entries sorted by label.
func (s *Store) Labels(ctx context.Context) ([]LabelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.sorted(), nil
}

// Rebuild re-creates the catalog and manifest from the history files and
// restores missing aliases. It returns the number of traces indexed.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := acquireLock(ctx, s.dir)
	if err != nil {
		return 0, err
	}
	defer lock.release()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read traces directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		id, ok := historyID(de.Name())
		if !ok {
			continue
		}
		tr, err := s.readFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable trace file", "file", de.Name(), "error", err.Error())
			continue
		}
		if ValidateLabel(tr.Label) != nil {
			s.logger.Warn("Skipping trace file without a valid label", "file", de.Name())
			continue
		}
		entries = append(entries, Entry{
			ID:        id,
			Label:     tr.Label,
			Timestamp: tr.Timestamp.UTC(),
			File:      de.Name(),
			SessionID: tr.SessionID,
			Summary:   tr.Summary(),
			Digest:    Digest(tr),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		return entries[i].ID < entries[j].ID
	})

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM traces"); err != nil {
			return err
		}
		for _, e := range entries {
			if err := insertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild catalog: %w", err)
	}

	m := newManifest()
	latestFile := make(map[string]string)
	for _, e := range entries {
		info := m.Labels[e.Label]
		if info == nil {
			info = &LabelInfo{Label: e.Label}
			m.Labels[e.Label] = info
		}
		info.Count++
		info.Latest = e.ID
		info.UpdatedAt = e.Timestamp
		info.Digest = e.Digest
		latestFile[e.Label] = e.File
	}
	for label, file := range latestFile {
		if err := s.restoreAlias(label, file); err != nil {
			s.logger.Warn("Failed to restore alias", "label", label, "error", err.Error())
		}
	}
	s.manifest = m
	if err := m.save(s.dir); err != nil {
		return 0, err
	}

	s.logger.Debug("Trace catalog rebuilt", "traces", len(entries), "labels", len(m.Labels))
	return len(entries), nil
}

func (s *Store) restoreAlias(label, file string) error {
	for _, ext := range []string{extJSON, extZstd} {
		if _, err := os.Stat(s.aliasPath(label, ext)); err == nil {
			return nil
		}
	}
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		return err
	}
	ext := extJSON
	if strings.HasSuffix(file, extZstd) {
		ext = extZstd
	}
	return writeFileAtomic(s.aliasPath(label, ext), data)
}

// historyID returns the stored identifier for a history file name, and
// false for aliases and unrelated files.
func historyID(name string) (string, bool) {
	var id string
	switch {
	case strings.HasSuffix(name, extZstd):
		id = strings.TrimSuffix(name, extZstd)
	case strings.HasSuffix(name, extJSON):
		id = strings.TrimSuffix(name, extJSON)
	default:
		return "", false
	}
	if strings.HasSuffix(id, latestSuffix) || !strings.Contains(id, "_") {
		return "", false
	}
	return id, true
}
