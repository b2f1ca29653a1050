package dashboard

import "sync"

// ScrollLock is a scoped suspension of page scrolling.
// Release runs the release function at most once, a nil lock releases nothing.
type ScrollLock struct {
	once    sync.Once
	release func()
}

// AcquireScrollLock runs acquire and returns the lock that undoes it.
func AcquireScrollLock(acquire, release func()) *ScrollLock {
	acquire()
	return &ScrollLock{release: release}
}

// Release restores scrolling. Calling it again has no effect.
func (lock *ScrollLock) Release() {
	if lock == nil {
		return
	}
	lock.once.Do(lock.release)
}
