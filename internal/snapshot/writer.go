package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

// WriterConfig configures the snapshot writer.
type WriterConfig struct {
	Dir      string // default: "crashdumps"
	MaxFiles int    // retained dumps; 0 keeps everything
}

// Writer writes one binary snapshot per fault into Dir.
type Writer struct {
	dir      string
	maxFiles int
	provider core.SymbolProvider
	logger   *logging.Logger

	mu sync.Mutex // Protects file operations
}

// NewWriter creates a snapshot writer that serializes through provider.
func NewWriter(cfg WriterConfig, provider core.SymbolProvider, logger *logging.Logger) *Writer {
	if cfg.Dir == "" {
		cfg.Dir = "crashdumps"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{
		dir:      cfg.Dir,
		maxFiles: cfg.MaxFiles,
		provider: provider,
		logger:   logger.WithComponent("snapshot"),
	}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write creates <app>_<YYYYMMDD-HHMMSS>.dmp exclusively and asks the
// provider to serialize the snapshot into it. A partially written file is
// removed on failure.
func (w *Writer) Write(req core.SnapshotRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Detail == "" {
		req.Detail = core.DetailNormal
	}
	name := core.ArtifactBaseName(req.App, req.CreatedAt) + core.SnapshotExt
	path := filepath.Join(w.dir, name)

	f, err := fsutil.CreateExclusive(w.dir, name, 0o600)
	if err != nil {
		w.logger.Warn("creating snapshot file failed", "path", path, "error", LastErrorText(err))
		return "", core.ErrDegraded(core.CodeSnapshotFailed, "creating snapshot file").WithCause(err)
	}

	writeErr := w.provider.WriteSnapshot(f, req)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		w.logger.Warn("writing snapshot failed", "path", path, "error", LastErrorText(err))
		_ = os.Remove(path)
		return "", core.ErrDegraded(core.CodeSnapshotFailed, "writing snapshot").WithCause(err)
	}

	if err := w.cleanupOldDumps(); err != nil {
		w.logger.Debug("snapshot retention skipped", "error", err)
	}
	return path, nil
}

// cleanupOldDumps removes dumps exceeding maxFiles, oldest first.
func (w *Writer) cleanupOldDumps() error {
	if w.maxFiles <= 0 {
		return nil
	}
	dumps, err := List(w.dir)
	if err != nil {
		return err
	}
	for len(dumps) > w.maxFiles {
		if err := os.Remove(dumps[0]); err != nil {
			w.logger.Warn("failed to remove old dump", "path", dumps[0], "error", err)
		}
		dumps = dumps[1:]
	}
	return nil
}

// List returns the .dmp files in dir ordered oldest first by modification
// time, then name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dump dir: %w", err)
	}

	type dumpFile struct {
		path    string
		modTime time.Time
	}
	var dumps []dumpFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), core.SnapshotExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dumps = append(dumps, dumpFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	sort.Slice(dumps, func(i, j int) bool {
		if dumps[i].modTime.Equal(dumps[j].modTime) {
			return dumps[i].path < dumps[j].path
		}
		return dumps[i].modTime.Before(dumps[j].modTime)
	})

	paths := make([]string, len(dumps))
	for i, d := range dumps {
		paths[i] = d.path
	}
	return paths, nil
}

// LoadLatest opens the most recent dump in dir.
func LoadLatest(dir string) (*Dump, error) {
	dumps, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(dumps) == 0 {
		return nil, fmt.Errorf("no dumps found in %s", dir)
	}
	return Open(dumps[len(dumps)-1])
}

// LastErrorText renders an error the way the OS describes it, including the
// errno name when one is wrapped.
func LastErrorText(err error) string {
	if err == nil {
		return ""
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%v (errno %d: %s)", err, uintptr(errno), errno.Error())
	}
	return err.Error()
}
