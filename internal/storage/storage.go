// Package storage persists finished research results. Backends can be
// combined, so a run can land on disk and in MongoDB at the same time.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// Storage is the interface for all result backends.
type Storage interface {
	// Save persists one research result.
	Save(ctx context.Context, result *types.ResearchResult) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New builds the backend (or fan-out of backends) selected in the
// configuration. The "none" backend yields a no-op store.
func New(cfg *config.Config, logger *slog.Logger) (Storage, error) {
	var backends []Storage
	for _, name := range cfg.Storage.Backends() {
		switch name {
		case "json":
			s, err := NewJSONStorage(cfg.Storage.OutputDir, logger)
			if err != nil {
				return nil, err
			}
			backends = append(backends, s)
		case "jsonl":
			s, err := NewJSONLStorage(filepath.Join(cfg.Storage.OutputDir, "results.jsonl"), logger)
			if err != nil {
				return nil, err
			}
			backends = append(backends, s)
		case "mongodb":
			s, err := NewMongoStorage(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
			if err != nil {
				return nil, err
			}
			backends = append(backends, s)
		case "none":
		default:
			return nil, fmt.Errorf("unsupported storage backend: %q", name)
		}
	}

	switch len(backends) {
	case 0:
		return NopStorage{}, nil
	case 1:
		return backends[0], nil
	default:
		return NewMultiStorage(backends, logger), nil
	}
}

// NopStorage discards results. Selected with the "none" backend.
type NopStorage struct{}

func (NopStorage) Save(ctx context.Context, result *types.ResearchResult) error { return nil }
func (NopStorage) Close() error                                                 { return nil }
func (NopStorage) Name() string                                                 { return "none" }
