//go:build !linux

package symbols

import (
	"runtime"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// Regions lists the memory mappings of the current process.
func Regions() ([]Region, error) {
	return nil, core.ErrUnsupportedOn("memory region query", runtime.GOOS)
}
