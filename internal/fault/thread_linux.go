package fault

import "golang.org/x/sys/unix"

// ThreadID returns the OS thread id of the calling goroutine's thread.
func ThreadID() int {
	return unix.Gettid()
}
