package diagnostics

import "runtime"

// onFreshStack runs fn on a new goroutine locked to its own OS thread and
// blocks until it returns. The faulting goroutine's stack is not used for
// any of the work.
func onFreshStack(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		fn()
	}()
	<-done
}
