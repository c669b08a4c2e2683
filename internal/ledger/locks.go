package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// accountLocks serializes reconstruction per account id while letting
// reconstructions for different accounts run fully in parallel. Entries
// are refcounted and removed once the last holder releases, so the table
// does not grow with the number of accounts ever seen.
type accountLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

func (l *accountLocks) lock(id uuid.UUID) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *accountLocks) unlock(id uuid.UUID) {
	l.mu.Lock()
	e := l.entries[id]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
