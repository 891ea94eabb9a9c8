package fault

import "golang.org/x/sys/windows"

// ThreadID returns the OS thread id of the calling goroutine's thread.
func ThreadID() int {
	return int(windows.GetCurrentThreadId())
}
