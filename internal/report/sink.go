package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// Mode selects where a finished report goes.
type Mode string

const (
	// ModeAlongside writes <app>_<YYYYMMDD-HHMMSS>.txt next to the snapshot.
	ModeAlongside Mode = "alongside"
	// ModeAppend appends to the module log <app>_<YYYY-MM-DD>.log.
	ModeAppend Mode = "append"
)

// ParseMode validates a configured mode. Empty selects ModeAlongside.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAlongside:
		return ModeAlongside, nil
	case ModeAppend:
		return ModeAppend, nil
	}
	return "", core.ErrCallerError(core.CodeInvalidConfig, fmt.Sprintf("unknown report mode %q", s))
}

// Sink writes each report as a single unit.
type Sink struct {
	Dir  string
	App  string
	Mode Mode
}

// Path returns the file a report created at at is written to.
func (s Sink) Path(at time.Time) string {
	if s.Mode == ModeAppend {
		return filepath.Join(s.Dir, core.LogName(s.App, at))
	}
	return filepath.Join(s.Dir, core.ArtifactBaseName(s.App, at)+core.ReportExt)
}

// Write stores text and returns the path written. Alongside reports replace
// the file atomically; appended reports are written with one call so that
// concurrent writers never interleave.
func (s Sink) Write(text string, at time.Time) (string, error) {
	path := s.Path(at)
	var err error
	if s.Mode == ModeAppend {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		err = fsutil.AppendOnce(path, []byte(text+"\n"), 0o600)
	} else {
		err = fsutil.WriteFileAtomic(path, []byte(text), 0o600)
	}
	if err != nil {
		return "", core.ErrDegraded(core.CodeReportFailed, "writing report").WithCause(err)
	}
	return path, nil
}
