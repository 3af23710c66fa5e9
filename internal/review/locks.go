package review

import "sync"

// cardLocks hands out one mutex per card ID. Entries are dropped when the
// last holder releases them.
type cardLocks struct {
	mu sync.Mutex
	m  map[int64]*cardLock
}

type cardLock struct {
	mu   sync.Mutex
	refs int
}

func (l *cardLocks) lock(id int64) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*cardLock)
	}
	e, ok := l.m[id]
	if !ok {
		e = &cardLock{}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

func (l *cardLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
