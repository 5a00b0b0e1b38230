package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"sqldesk/internal/dbclient"
	"sqldesk/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Database Service: registry of live database sessions
// ─────────────────────────────────────────────────────────────

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

var errClosed = errors.New("database service is closed")

// Options configures a DatabaseService. Zero values pick the defaults.
type Options struct {
	// IdleTimeout evicts sessions unused for longer than this.
	IdleTimeout time.Duration
	// SweepInterval is how often idle sessions are looked for.
	// Negative disables the scheduled sweep; Sweep can still be called.
	SweepInterval time.Duration
	// ConnectTimeout applies to profiles that set no timeout of their own.
	ConnectTimeout time.Duration
	// SQLiteDir is the base directory for relative sqlite paths.
	SQLiteDir string
	// WatchFiles evicts sqlite sessions whose file is removed or renamed.
	WatchFiles bool

	// Emitter receives session lifecycle events.
	Emitter EventEmitter

	Open dbclient.OpenFunc
	Now  func() time.Time
}

func (o *Options) applyDefaults() {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Open == nil {
		o.Open = dbclient.Open
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Emitter == nil {
		o.Emitter = nopEmitter{}
	}
}

// DatabaseService keeps at most one live session per connection id.
// Operations on the same id are serialized; distinct ids run concurrently.
type DatabaseService struct {
	opts  Options
	locks connLocks

	mu       sync.Mutex
	sessions map[int64]*Session
	closed   bool

	sweeper   *cron.Cron
	watcher   *fileWatcher
	closeOnce sync.Once
}

// NewDatabaseService creates the registry and starts its idle sweeper.
func NewDatabaseService(opts Options) *DatabaseService {
	opts.applyDefaults()
	s := &DatabaseService{
		opts:     opts,
		sessions: make(map[int64]*Session),
	}
	s.startSweeper()
	if opts.WatchFiles {
		s.startWatcher()
	}
	return s
}

// ── Connection lifecycle ───────────────────────────────────

// TestConnection opens a throwaway handle, runs the liveness query and
// closes it again. The session table is never touched.
func (s *DatabaseService) TestConnection(ctx context.Context, p domain.ConnectionProfile) domain.OpResult {
	if err := p.Validate(); err != nil {
		return domain.Failed(err)
	}
	s.applyProfileDefaults(&p)

	c, err := s.openLive(ctx, &p)
	if err != nil {
		log.Printf("[DB] test %s failed: %v", p.Label(), err)
		return domain.Failed(err)
	}
	s.closeConnector(c, p.Label())
	return domain.OpResult{Success: true, Message: "connection successful"}
}

// Connect replaces any session for p.ID with a fresh one. The old session
// is closed first, so a failing profile leaves no session behind.
func (s *DatabaseService) Connect(ctx context.Context, p domain.ConnectionProfile) domain.OpResult {
	s.locks.Lock(p.ID)
	defer s.locks.Unlock(p.ID)

	if s.isClosed() {
		return domain.Failed(errClosed)
	}
	s.evict(p.ID, "reconnect")

	if err := p.Validate(); err != nil {
		return domain.Failed(err)
	}
	s.applyProfileDefaults(&p)

	c, err := s.openLive(ctx, &p)
	if err != nil {
		log.Printf("[DB] connect %s failed: %v", p.Label(), err)
		return domain.Failed(err)
	}

	now := s.opts.Now()
	sess := &Session{
		ID:         uuid.New(),
		Profile:    p,
		Connector:  c,
		OpenedAt:   now,
		LastUsedAt: now,
		filePath:   sessionFilePath(c),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.closeConnector(c, p.Label())
		return domain.Failed(errClosed)
	}
	s.sessions[p.ID] = sess
	s.mu.Unlock()
	s.watch(sess)

	log.Printf("[DB] connected %s (session %s)", p.Label(), sess.ID)
	s.opts.Emitter.Emit(ctx, EventSessionOpened, sess.event(""))
	return domain.OpResult{Success: true, Message: "connection successful"}
}

// Disconnect closes and forgets the session for id. Unknown ids succeed.
func (s *DatabaseService) Disconnect(_ context.Context, id int64) domain.OpResult {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	s.evict(id, "disconnect")
	return domain.OpResult{Success: true}
}

// ChangeDatabase points a networked session at another database on the
// same server. The new handle is opened before the old one is closed, so
// a failure keeps the current session.
func (s *DatabaseService) ChangeDatabase(ctx context.Context, id int64, name string) domain.OpResult {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	sess, err := s.lookup(id)
	if err != nil {
		return domain.Failed(err)
	}
	if !sess.Profile.Engine.MultiDatabase() {
		return domain.Failed(fmt.Errorf("%w: %s cannot switch databases", domain.ErrUnsupported, sess.Profile.Engine))
	}

	next := sess.Profile.WithDatabase(name)
	if err := next.Validate(); err != nil {
		return domain.Failed(err)
	}
	c, err := s.openLive(ctx, &next)
	if err != nil {
		log.Printf("[DB] change database %s failed: %v", next.Label(), err)
		return domain.Failed(err)
	}

	s.mu.Lock()
	old := sess.Connector
	sess.Connector = c
	sess.Profile = next
	sess.LastUsedAt = s.opts.Now()
	ev := sess.event("change database")
	s.mu.Unlock()
	s.closeConnector(old, next.Label())

	log.Printf("[DB] session %s switched to database %q", sess.ID, name)
	s.opts.Emitter.Emit(ctx, EventSessionOpened, ev)
	return domain.OpResult{Success: true}
}

// ── Session access ─────────────────────────────────────────

// Resolve returns the session for id and marks it used.
func (s *DatabaseService) Resolve(id int64) (SessionInfo, error) {
	if s.isClosed() {
		return SessionInfo{}, errClosed
	}
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	sess, err := s.lookup(id)
	if err != nil {
		return SessionInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.info(), nil
}

// Sessions lists live sessions ordered by connection id.
func (s *DatabaseService) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

// withSession runs fn on the session for id while holding the id lock.
func (s *DatabaseService) withSession(id int64, fn func(c dbclient.Connector) error) error {
	if s.isClosed() {
		return errClosed
	}
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	return fn(sess.Connector)
}

// ── Delegated operations ───────────────────────────────────

func (s *DatabaseService) GetObjects(ctx context.Context, id int64, kind dbclient.ObjectKind) ([]dbclient.SchemaObject, error) {
	var objs []dbclient.SchemaObject
	err := s.withSession(id, func(c dbclient.Connector) (err error) {
		objs, err = c.ListObjects(ctx, kind)
		return err
	})
	return objs, err
}

func (s *DatabaseService) GetTableColumns(ctx context.Context, id int64, table, schema string) ([]dbclient.ColumnInfo, error) {
	if table == "" {
		return nil, fmt.Errorf("%w: table is required", domain.ErrValidation)
	}
	var cols []dbclient.ColumnInfo
	err := s.withSession(id, func(c dbclient.Connector) (err error) {
		cols, err = c.ListColumns(ctx, table, schema)
		return err
	})
	return cols, err
}

// ExecuteQuery runs one statement. Every failure, including an unknown id,
// comes back as the error shape.
func (s *DatabaseService) ExecuteQuery(ctx context.Context, id int64, query string, params []any) *dbclient.QueryResult {
	var res *dbclient.QueryResult
	err := s.withSession(id, func(c dbclient.Connector) error {
		res = c.Execute(ctx, query, params)
		return nil
	})
	if err != nil {
		return dbclient.ErrorResult(err)
	}
	if err := res.Err(); err != nil {
		log.Printf("[DB] query on #%d: %v", id, err)
	}
	return res
}

func (s *DatabaseService) GetProcedureDefinition(ctx context.Context, id int64, name, schema string) (string, error) {
	var def string
	err := s.withSession(id, func(c dbclient.Connector) (err error) {
		def, err = c.ProcedureDefinition(ctx, name, schema)
		return err
	})
	return def, err
}

func (s *DatabaseService) GetDatabases(ctx context.Context, id int64) ([]string, error) {
	var names []string
	err := s.withSession(id, func(c dbclient.Connector) (err error) {
		names, err = c.ListDatabases(ctx)
		return err
	})
	return names, err
}

// ── Internals ──────────────────────────────────────────────

func (s *DatabaseService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// lookup finds the session for id and refreshes its last-used time.
// Caller holds the id lock.
func (s *DatabaseService) lookup(id int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: no active connection with id %d", domain.ErrNotFound, id)
	}
	sess.LastUsedAt = s.opts.Now()
	return sess, nil
}

func (s *DatabaseService) applyProfileDefaults(p *domain.ConnectionProfile) {
	if p.Timeout <= 0 && s.opts.ConnectTimeout > 0 {
		p.Timeout = int(s.opts.ConnectTimeout / time.Second)
	}
}

// openLive opens a connector and runs the liveness query on it, closing it
// again if the query fails. The profile timeout bounds both steps together.
func (s *DatabaseService) openLive(ctx context.Context, p *domain.ConnectionProfile) (dbclient.Connector, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ConnectTimeout())
	defer cancel()

	c, err := s.opts.Open(ctx, p, dbclient.Options{SQLiteDir: s.opts.SQLiteDir})
	if err != nil {
		return nil, err
	}
	if _, err := c.ServerVersion(ctx); err != nil {
		s.closeConnector(c, p.Label())
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	return c, nil
}

// evict removes the session for id and closes it. The entry is gone even
// if Close fails. Caller holds the id lock.
func (s *DatabaseService) evict(id int64, reason string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.unwatch(sess)
	s.closeConnector(sess.Connector, sess.Profile.Label())
	log.Printf("[DB] session %s for #%d closed (%s)", sess.ID, id, reason)
	s.opts.Emitter.Emit(context.Background(), EventSessionClosed, sess.event(reason))
	return true
}

func (s *DatabaseService) closeConnector(c dbclient.Connector, label string) {
	if err := c.Close(); err != nil {
		log.Printf("[DB] close %s: %v", label, err)
	}
}

// Close stops background work and closes every session, waiting for
// in-flight operations on each id.
func (s *DatabaseService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		ids := make([]int64, 0, len(s.sessions))
		for id := range s.sessions {
			ids = append(ids, id)
		}
		s.mu.Unlock()

		s.stopSweeper()
		s.stopWatcher()

		for _, id := range ids {
			s.locks.Lock(id)
			s.evict(id, "shutdown")
			s.locks.Unlock(id)
		}

		ctx, cancel := context.WithTimeout(context.Background(), domain.DefaultConnectTimeout)
		defer cancel()
		s.locks.WaitAll(ctx)
	})
}
