package usecase

import "sync"

// voterLocks serializes submissions per voter identity while leaving
// different voters fully parallel. Entries are reference-counted so the
// map does not grow with the electorate.
type voterLocks struct {
	mu    sync.Mutex
	locks map[string]*voterLock
}

type voterLock struct {
	mu   sync.Mutex
	refs int
}

func newVoterLocks() *voterLocks {
	return &voterLocks{locks: make(map[string]*voterLock)}
}

// acquire blocks until the caller holds the lock for voterID. The
// returned release must be called exactly once.
func (l *voterLocks) acquire(voterID string) (release func()) {
	l.mu.Lock()
	entry, ok := l.locks[voterID]
	if !ok {
		entry = &voterLock{}
		l.locks[voterID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, voterID)
		}
		l.mu.Unlock()
	}
}
