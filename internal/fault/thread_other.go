//go:build !linux && !windows

package fault

import "os"

// ThreadID falls back to the process id where no thread id API is exposed.
func ThreadID() int {
	return os.Getpid()
}
