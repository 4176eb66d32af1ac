// Package store persists the extraction run ledger and the raw results
// snapshot manifest.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = eris.New("store: not found")

// RunStatus is the lifecycle state of an extraction run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one execution of the extraction pipeline for a survey year.
type Run struct {
	ID        string     `json:"id"`
	Year      int        `json:"year"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	Rows      int      `json:"rows"`
	Columns   int      `json:"columns"`
	Tables    []string `json:"tables"`
	Issues    int      `json:"issues"`
	CacheHit  bool     `json:"cache_hit"`
	OutputDir string   `json:"output_dir"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Year   int       `json:"year,omitempty"`
	Status RunStatus `json:"status,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// Snapshot is the manifest row of a cached raw results snapshot. The
// source fingerprint decides whether the snapshot is still current.
type Snapshot struct {
	Year        int       `json:"year"`
	SourcePath  string    `json:"source_path"`
	SourceSheet string    `json:"source_sheet"`
	SourceSize  int64     `json:"source_size"`
	SourceMod   time.Time `json:"source_mod"`
	SHA256      string    `json:"sha256"`
	Path        string    `json:"path"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store defines the persistence interface used by the pipeline.
type Store interface {
	// Runs
	StartRun(ctx context.Context, year int) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result *RunResult) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Snapshot manifest
	GetSnapshot(ctx context.Context, year int) (*Snapshot, error)
	PutSnapshot(ctx context.Context, snap *Snapshot) error
	DeleteSnapshot(ctx context.Context, year int) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
