//go:build !unix

package diagnostics

import (
	"runtime"
	"syscall"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

func raise(sig syscall.Signal) error {
	return core.ErrUnsupportedOn("raising "+sig.String(), runtime.GOOS)
}
