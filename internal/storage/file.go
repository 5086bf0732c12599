package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

// ResultFileName builds the archive file name for one run:
// deep_research_<query slug>_<timestamp>.<ext>.
func ResultFileName(query string, ts time.Time, ext string) string {
	return fmt.Sprintf("deep_research_%s_%s.%s", querySlug(query), ts.Format("20060102_150405"), ext)
}

// querySlug reduces a query to a filesystem-safe fragment: alphanumerics
// kept, everything else collapsed to single underscores, capped at 50
// characters of source text.
func querySlug(query string) string {
	if len(query) > 50 {
		query = query[:50]
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// --- JSON Storage ---

// JSONStorage writes each research result as its own pretty-printed JSON
// file in the output directory.
type JSONStorage struct {
	dir    string
	mu     sync.Mutex
	count  int
	last   string
	logger *slog.Logger
}

// NewJSONStorage creates a JSON file storage rooted at outputDir.
func NewJSONStorage(outputDir string, logger *slog.Logger) (*JSONStorage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONStorage{
		dir:    outputDir,
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Save(ctx context.Context, result *types.ResearchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, ResultFileName(result.Query, result.FinishedAt, "json"))
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create result file: %w", err)}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSON: %w", err)}
	}

	s.count++
	s.last = path
	s.logger.Info("result written", "path", path, "pages", result.TotalPagesCrawled)
	return nil
}

// LastPath returns the path of the most recently written result file.
func (s *JSONStorage) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *JSONStorage) Close() error {
	s.logger.Debug("json storage closed", "results", s.count)
	return nil
}

// --- JSONL Storage ---

// JSONLStorage appends results to a single newline-delimited JSON file,
// one object per run. The file survives across runs, so a long-lived
// process accumulates a stream.
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage opens (or creates) the JSONL stream at outputPath.
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Save(ctx context.Context, result *types.ResearchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(result); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
	}
	s.count++
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("jsonl stream closed", "path", s.path, "results", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
