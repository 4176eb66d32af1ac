// Package cache keeps a parquet snapshot of the raw survey results so
// repeated runs skip the slow spreadsheet parse.
//
// A snapshot is current when the manifest row recorded for its survey year
// carries the SHA-256 and size of the source file being loaded and names
// the same results sheet. Anything else (no row, a different fingerprint,
// an unreadable snapshot) is a miss and the snapshot is rebuilt.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/obsprep/internal/columnar"
	"github.com/sells-group/obsprep/internal/frame"
	"github.com/sells-group/obsprep/internal/store"
)

// ErrCacheBusy is returned when another process holds the snapshot lock.
var ErrCacheBusy = eris.New("cache: snapshot is locked by another process")

// Manifest is the part of the store the cache needs.
type Manifest interface {
	GetSnapshot(ctx context.Context, year int) (*store.Snapshot, error)
	PutSnapshot(ctx context.Context, snap *store.Snapshot) error
	DeleteSnapshot(ctx context.Context, year int) error
}

// Cache manages raw results snapshots in Dir.
type Cache struct {
	Dir      string
	Manifest Manifest
}

// New creates a cache rooted at dir.
func New(dir string, m Manifest) *Cache {
	return &Cache{Dir: dir, Manifest: m}
}

// LoadFunc reads the raw results table from its source.
type LoadFunc func(ctx context.Context) (*frame.Table, error)

// Result reports how Load obtained the table.
type Result struct {
	Table *frame.Table
	Hit   bool
}

// SnapshotPath returns the snapshot file of a survey year.
func (c *Cache) SnapshotPath(year int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("obs%d_results%s", year, columnar.Ext))
}

// Fingerprint identifies the content of a source file and the sheet read
// from it. Sheet is empty for CSV sources and for the first worksheet.
type Fingerprint struct {
	Path    string
	Sheet   string
	Size    int64
	ModTime time.Time
	SHA256  string
}

// FingerprintFile hashes path. sheet is recorded as given.
func FingerprintFile(path, sheet string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, eris.Wrapf(err, "cache: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, eris.Wrapf(err, "cache: stat %s", path)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, eris.Wrapf(err, "cache: hash %s", path)
	}
	return Fingerprint{
		Path:    path,
		Sheet:   sheet,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		SHA256:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Matches reports whether a manifest row was built from this content and sheet.
func (fp Fingerprint) Matches(snap *store.Snapshot) bool {
	return snap != nil &&
		snap.SHA256 == fp.SHA256 &&
		snap.SourceSize == fp.Size &&
		snap.SourceSheet == fp.Sheet
}

// Load returns the snapshot of year when it is current for sheet of source,
// and otherwise calls load and stores a fresh snapshot. refresh forces a
// rebuild.
func (c *Cache) Load(ctx context.Context, year int, source, sheet string, refresh bool, load LoadFunc) (*Result, error) {
	log := zap.L().With(zap.String("component", "cache"), zap.Int("year", year))

	fp, err := FingerprintFile(source, sheet)
	if err != nil {
		return nil, err
	}

	path := c.SnapshotPath(year)
	if !refresh {
		if tbl, ok := c.current(ctx, log, year, path, fp); ok {
			log.Info("using results snapshot", zap.String("path", path), zap.Int("rows", tbl.Len()))
			return &Result{Table: tbl, Hit: true}, nil
		}
	}

	lock, err := acquire(path)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	tbl, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.put(ctx, year, path, fp, tbl); err != nil {
		return nil, err
	}
	log.Info("wrote results snapshot", zap.String("path", path), zap.Int("rows", tbl.Len()))
	return &Result{Table: tbl}, nil
}

// current returns the snapshot when its manifest row matches fp. Every
// failure is logged and treated as a miss.
func (c *Cache) current(ctx context.Context, log *zap.Logger, year int, path string, fp Fingerprint) (*frame.Table, bool) {
	snap, err := c.Manifest.GetSnapshot(ctx, year)
	if err != nil {
		log.Warn("snapshot manifest unreadable, rebuilding", zap.Error(err))
		return nil, false
	}
	if snap == nil {
		return nil, false
	}
	if !fp.Matches(snap) {
		log.Info("results source changed, rebuilding snapshot",
			zap.String("source", fp.Path),
			zap.String("cached_sheet", snap.SourceSheet),
			zap.String("source_sheet", fp.Sheet),
			zap.String("cached_sha256", snap.SHA256),
			zap.String("source_sha256", fp.SHA256),
		)
		return nil, false
	}
	tbl, err := columnar.Read(ctx, path)
	if err != nil {
		log.Warn("snapshot unreadable, rebuilding", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if tbl.Len() != snap.Rows {
		log.Warn("snapshot row count does not match manifest, rebuilding",
			zap.Int("snapshot_rows", tbl.Len()),
			zap.Int("manifest_rows", snap.Rows),
		)
		return nil, false
	}
	return tbl, true
}

func (c *Cache) put(ctx context.Context, year int, path string, fp Fingerprint, tbl *frame.Table) error {
	if err := columnar.Write(path, tbl); err != nil {
		return eris.Wrap(err, "cache: write snapshot")
	}
	err := c.Manifest.PutSnapshot(ctx, &store.Snapshot{
		Year:        year,
		SourcePath:  fp.Path,
		SourceSheet: fp.Sheet,
		SourceSize:  fp.Size,
		SourceMod:   fp.ModTime,
		SHA256:      fp.SHA256,
		Path:        path,
		Rows:        tbl.Len(),
	})
	return eris.Wrap(err, "cache: record snapshot")
}

// Clear removes the snapshot of year and its manifest row.
func (c *Cache) Clear(ctx context.Context, year int) error {
	path := c.SnapshotPath(year)
	lock, err := acquire(path)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "cache: remove %s", path)
	}
	return eris.Wrap(c.Manifest.DeleteSnapshot(ctx, year), "cache: clear manifest")
}

// fileLock is an exclusive lock file next to a snapshot.
type fileLock struct {
	path string
	f    *os.File
}

func acquire(snapshot string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(snapshot), 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir for %s", snapshot)
	}
	path := snapshot + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, eris.Wrapf(ErrCacheBusy, "cache: %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cache: lock %s", path)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid()) //nolint:errcheck
	return &fileLock{path: path, f: f}, nil
}

func (l *fileLock) release() {
	l.f.Close() //nolint:errcheck,gosec
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("cache: remove lock", zap.String("path", l.path), zap.Error(err))
	}
}
