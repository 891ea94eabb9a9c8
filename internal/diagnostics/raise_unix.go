//go:build unix

package diagnostics

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func raise(sig syscall.Signal) error {
	if err := unix.Kill(os.Getpid(), sig); err != nil {
		return fmt.Errorf("raising %s: %w", sig, err)
	}
	return nil
}
