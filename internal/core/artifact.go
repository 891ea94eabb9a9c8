package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ArtifactType categorizes the files produced for one fault.
type ArtifactType string

const (
	ArtifactTypeSnapshot ArtifactType = "snapshot"
	ArtifactTypeReport   ArtifactType = "report"
	ArtifactTypeLog      ArtifactType = "log"
	ArtifactTypeFatal    ArtifactType = "fatal"
)

// File name layouts.
const (
	TimestampLayout = "20060102-150405"
	DateLayout      = "2006-01-02"

	SnapshotExt = ".dmp"
	ReportExt   = ".txt"
	LogExt      = ".log"
)

var artifactNamePattern = regexp.MustCompile(`^(.+)_(\d{8}-\d{6})(\.dmp|\.txt)$`)

// Artifact pairs the binary snapshot and text report produced for one fault.
type Artifact struct {
	ID           string
	App          string
	Kind         Kind
	SnapshotPath string
	ReportPath   string
	CreatedAt    time.Time
	Errors       []error // degraded steps, in pipeline order
}

// NewArtifact creates a new artifact.
func NewArtifact(id, app string, kind Kind, at time.Time) *Artifact {
	return &Artifact{
		ID:        id,
		App:       app,
		Kind:      kind,
		CreatedAt: at,
	}
}

// BaseName returns "<app>_<YYYYMMDD-HHMMSS>".
func (a *Artifact) BaseName() string {
	return ArtifactBaseName(a.App, a.CreatedAt)
}

// SnapshotName returns the snapshot file name.
func (a *Artifact) SnapshotName() string {
	return a.BaseName() + SnapshotExt
}

// ReportName returns the file name of a report written alongside the snapshot.
func (a *Artifact) ReportName() string {
	return a.BaseName() + ReportExt
}

// AddError records a degraded step.
func (a *Artifact) AddError(err error) {
	if err != nil {
		a.Errors = append(a.Errors, err)
	}
}

// Complete reports whether both halves of the artifact were written.
func (a *Artifact) Complete() bool {
	return a.SnapshotPath != "" && a.ReportPath != ""
}

// Validate checks artifact invariants.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return ErrCallerError(CodeInvalidArtifact, "artifact ID cannot be empty")
	}
	if a.App == "" {
		return ErrCallerError(CodeInvalidArtifact, "artifact app name cannot be empty")
	}
	if a.CreatedAt.IsZero() {
		return ErrCallerError(CodeInvalidArtifact, "artifact timestamp cannot be zero")
	}
	return nil
}

// ArtifactBaseName builds "<app>_<YYYYMMDD-HHMMSS>" with second resolution.
func ArtifactBaseName(app string, at time.Time) string {
	return SanitizeAppName(app) + "_" + at.Format(TimestampLayout)
}

// LogName returns the module scoped, date stamped report log name.
func LogName(app string, at time.Time) string {
	return SanitizeAppName(app) + "_" + at.Format(DateLayout) + LogExt
}

// ParseArtifactName splits an artifact file name into app name and time.
func ParseArtifactName(name string) (app string, at time.Time, err error) {
	m := artifactNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", time.Time{}, ErrCallerError(CodeInvalidArtifact, fmt.Sprintf("not an artifact name: %s", name))
	}
	at, err = time.ParseInLocation(TimestampLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, ErrCallerError(CodeInvalidArtifact, "bad timestamp").WithCause(err)
	}
	return m[1], at, nil
}

// SanitizeAppName strips directories and extensions and replaces characters
// that are unsafe in file names.
func SanitizeAppName(app string) string {
	app = filepath.Base(app)
	if ext := filepath.Ext(app); ext != "" && ext != app {
		app = strings.TrimSuffix(app, ext)
	}
	app = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, app)
	if app == "" || app == "." || app == "-" {
		return "app"
	}
	return app
}
