package services

import "sync"

// sessionGate serializes operations on the same session id while leaving
// different ids free to run in parallel.
type sessionGate struct {
	mu    sync.Mutex
	locks map[uint32]*gateLock
}

type gateLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionGate() *sessionGate {
	return &sessionGate{locks: make(map[uint32]*gateLock)}
}

// lock blocks until id is free and returns the func that releases it.
func (g *sessionGate) lock(id uint32) (unlock func()) {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &gateLock{}
		g.locks[id] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}

// size returns the number of ids currently held or waited on.
func (g *sessionGate) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
