package service

import (
	"context"
	"sync"
)

// ExportedConnLocks is an exported alias so _test packages can test the locks.
type ExportedConnLocks = connLocks

// ─────────────────────────────────────────────────────────────
// connLocks: serializes operations on the same connection id
// ─────────────────────────────────────────────────────────────

// connLocks hands out one mutex per connection id. Entries exist only
// while someone holds or waits for them.
type connLocks struct {
	mu       sync.Mutex
	locks    map[int64]*idLock
	inflight int           // references across all ids
	idle     chan struct{} // closed when inflight drops to zero
}

type idLock struct {
	sem  chan struct{}
	refs int // holders + waiters
}

// ref returns the lock for id with its reference taken. Caller holds g.mu.
func (g *connLocks) ref(id int64) *idLock {
	if g.locks == nil {
		g.locks = make(map[int64]*idLock)
	}
	l, ok := g.locks[id]
	if !ok {
		l = &idLock{sem: make(chan struct{}, 1)}
		g.locks[id] = l
	}
	l.refs++
	if g.inflight == 0 {
		g.idle = make(chan struct{})
	}
	g.inflight++
	return l
}

// release drops one reference. Caller holds g.mu.
func (g *connLocks) release(id int64, l *idLock) {
	l.refs--
	if l.refs == 0 {
		delete(g.locks, id)
	}
	g.inflight--
	if g.inflight == 0 {
		close(g.idle)
	}
}

// Lock blocks until id is free and then holds it.
func (g *connLocks) Lock(id int64) {
	g.mu.Lock()
	l := g.ref(id)
	g.mu.Unlock()
	l.sem <- struct{}{}
}

// TryLock takes id if nobody holds it. Returns false if it is busy.
func (g *connLocks) TryLock(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.ref(id)
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		g.release(id, l)
		return false // in use
	}
}

// Unlock frees id. Must be called after Lock or a successful TryLock.
func (g *connLocks) Unlock(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.locks[id]
	<-l.sem
	g.release(id, l)
}

// Held reports how many ids are currently held or awaited.
func (g *connLocks) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}

// WaitAll blocks until every held id is released or ctx is cancelled.
// Locks taken while it waits are waited for too.
func (g *connLocks) WaitAll(ctx context.Context) {
	for {
		g.mu.Lock()
		if g.inflight == 0 {
			g.mu.Unlock()
			return
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return
		}
	}
}
