// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager hands out one mutex per session. Navigator operations on the same
// session run one at a time; different sessions never block each other.
type LockManager struct {
	locks      map[string]*LockInfo
	globalLock sync.Mutex
}

// LockInfo wraps a session lock with its bookkeeping.
type LockInfo struct {
	Mutex    *sync.Mutex
	LastUsed time.Time
	refs     int // holders and waiters; a referenced lock is never dropped
}

// NewLockManager creates an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*LockInfo)}
}

func (lm *LockManager) acquire(id string) *LockInfo {
	lm.globalLock.Lock()
	info, ok := lm.locks[id]
	if !ok {
		info = &LockInfo{Mutex: &sync.Mutex{}}
		lm.locks[id] = info
	}
	info.refs++
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	info.refs--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithSessionLock runs fn while holding the session's lock.
func (lm *LockManager) ExecuteWithSessionLock(id string, fn func() error) error {
	info := lm.acquire(id)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// Forget drops the lock of an ended session unless someone still uses it.
func (lm *LockManager) Forget(id string) {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	if info, ok := lm.locks[id]; ok && info.refs == 0 {
		delete(lm.locks, id)
	}
}

// CleanupUnused drops locks idle for longer than maxIdle and returns how many went.
func (lm *LockManager) CleanupUnused(maxIdle time.Duration) int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	removed := 0
	now := time.Now()
	for id, info := range lm.locks {
		if info.refs == 0 && now.Sub(info.LastUsed) > maxIdle {
			delete(lm.locks, id)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked locks.
func (lm *LockManager) Len() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}
