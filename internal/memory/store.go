// Package memory persists completed workflow runs.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"conduit/internal/agent"
)

// Run is one persisted workflow run. RunID is the run id of the first record.
type Run struct {
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Records   []agent.RunRecord `json:"records"`
}

// Store is a durable, append-only history of workflow runs. Implementations
// are safe for concurrent use.
type Store interface {
	SaveRun(ctx context.Context, history []agent.RunRecord) error
	All(ctx context.Context) ([]Run, error)
	Latest(ctx context.Context) (*Run, bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// Backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config selects and locates the store.
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultConfig keeps history in a JSON file under data/.
func DefaultConfig() Config {
	return Config{Enabled: true, Backend: BackendFile, Path: "data/memory_store.json"}
}

// Open builds the configured store.
func Open(ctx context.Context, config Config) (Store, error) {
	switch strings.ToLower(config.Backend) {
	case "", BackendFile:
		return NewFileStore(config.Path)
	case BackendSQLite:
		return OpenSQLite(ctx, config.Path)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", config.Backend)
	}
}

func newRun(history []agent.RunRecord, now time.Time) Run {
	return Run{
		RunID:     history[0].RunID,
		Timestamp: now.UTC(),
		Records:   append([]agent.RunRecord(nil), history...),
	}
}
