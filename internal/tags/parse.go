package tags

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"codeintel/internal/paths"
	"codeintel/internal/slogutil"
)

// MaxLineBytes is the longest tag line ParseStream accepts.
const MaxLineBytes = 4 << 20

// ParseStats counts what ParseStream did with each input line.
type ParseStats struct {
	Lines     int `json:"lines"`
	Tags      int `json:"tags"`
	Ignored   int `json:"ignored"`
	Malformed int `json:"malformed"`
}

type record struct {
	Type string `json:"_type"`
	Tag
}

// ParseStream reads one JSON object per line. Records whose _type is not
// "tag" are ignored; malformed records are logged and skipped. The only
// error returned comes from reading r.
func ParseStream(r io.Reader, logger *slog.Logger) ([]Tag, ParseStats, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	var (
		out   []Tag
		stats ParseStats
	)
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			stats.Lines++
			if tag, ok := parseLine(line, stats.Lines, &stats, logger); ok {
				out = append(out, tag)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return out, stats, fmt.Errorf("reading tag stream: %w", readErr)
		}
	}
	stats.Tags = len(out)
	return out, stats, nil
}

func parseLine(line []byte, lineNo int, stats *ParseStats, logger *slog.Logger) (Tag, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		stats.Ignored++
		return Tag{}, false
	}
	if len(line) > MaxLineBytes {
		stats.Malformed++
		logger.Warn("Skipping oversized tag line", "line", lineNo, "bytes", len(line))
		return Tag{}, false
	}

	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		stats.Malformed++
		logger.Warn("Skipping malformed tag line", "line", lineNo, "error", err.Error())
		return Tag{}, false
	}
	if rec.Type != "tag" {
		stats.Ignored++
		return Tag{}, false
	}
	if rec.Name == "" || rec.Path == "" {
		stats.Malformed++
		logger.Warn("Skipping tag without name or path", "line", lineNo)
		return Tag{}, false
	}

	tag := rec.Tag
	tag.Path = paths.NormalizePath(tag.Path)
	return tag, true
}

// LoadFile parses a stored tag stream.
func LoadFile(path string, logger *slog.Logger) ([]Tag, ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ParseStats{}, err
	}
	defer f.Close()
	return ParseStream(f, logger)
}

// WriteStream writes tags in the same line format ParseStream reads.
func WriteStream(w io.Writer, tags []Tag) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, t := range tags {
		if err := enc.Encode(record{Type: "tag", Tag: t}); err != nil {
			return err
		}
	}
	return bw.Flush()
}
