package service

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ── Idle sweeper ───────────────────────────────────────────

func (s *DatabaseService) startSweeper() {
	if s.opts.SweepInterval < 0 {
		return
	}
	c := cron.New()
	spec := "@every " + s.opts.SweepInterval.String()
	if _, err := c.AddFunc(spec, func() {
		if n := s.Sweep(); n > 0 {
			log.Printf("[SWEEP] evicted %d idle session(s)", n)
		}
	}); err != nil {
		log.Printf("[SWEEP] invalid interval %q: %v", spec, err)
		return
	}
	c.Start()
	s.sweeper = c
	log.Printf("[SWEEP] every %s, idle timeout %s", s.opts.SweepInterval, s.opts.IdleTimeout)
}

func (s *DatabaseService) stopSweeper() {
	if s.sweeper == nil {
		return
	}
	<-s.sweeper.Stop().Done()
	s.sweeper = nil
}

// Sweep evicts every session idle for longer than the idle timeout and
// returns how many were evicted. Sessions with an operation in flight are
// left for the next sweep.
func (s *DatabaseService) Sweep() int {
	now := s.opts.Now()

	s.mu.Lock()
	var idle []int64
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsedAt) > s.opts.IdleTimeout {
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	evicted := 0
	for _, id := range idle {
		if !s.locks.TryLock(id) {
			continue // busy
		}
		if s.stillIdle(id, now) && s.evict(id, "idle") {
			evicted++
		}
		s.locks.Unlock(id)
	}
	return evicted
}

// stillIdle rechecks idleness once the id lock is held.
func (s *DatabaseService) stillIdle(id int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return ok && now.Sub(sess.LastUsedAt) > s.opts.IdleTimeout
}
