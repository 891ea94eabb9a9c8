package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// FatalOutputPath returns the file unrecoverable runtime failures of app
// are appended to.
func FatalOutputPath(dir, app string) string {
	return filepath.Join(dir, core.SanitizeAppName(app)+"_fatal"+core.LogExt)
}

// enableFatalOutput points the runtime's fatal error output at the fatal
// log. The runtime keeps its own duplicate of the descriptor.
func (r *Registry) enableFatalOutput() error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("creating fatal output dir: %w", err)
	}
	path := FatalOutputPath(r.dir, r.app)
	// #nosec G304 -- path is built from configuration and the app name
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening fatal output: %w", err)
	}
	defer f.Close()

	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		return fmt.Errorf("setting fatal output: %w", err)
	}
	return nil
}

func disableFatalOutput() error {
	return debug.SetCrashOutput(nil, debug.CrashOptions{})
}
