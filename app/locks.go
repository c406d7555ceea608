package app

import "sync"

// issueLocks serialises rounds per issue id. Entries are dropped once no
// round holds or waits for them.
type issueLocks struct {
	mu    sync.Mutex
	locks map[string]*issueLock
}

type issueLock struct {
	mu   sync.Mutex
	refs int
}

func newIssueLocks() *issueLocks {
	return &issueLocks{locks: make(map[string]*issueLock)}
}

// lock blocks until the issue is free and returns the matching unlock.
func (l *issueLocks) lock(issueID string) func() {
	l.mu.Lock()
	il, ok := l.locks[issueID]
	if !ok {
		il = &issueLock{}
		l.locks[issueID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	return func() {
		il.mu.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.locks, issueID)
		}
		l.mu.Unlock()
	}
}
