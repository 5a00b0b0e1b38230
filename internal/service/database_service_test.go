package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sqldesk/internal/dbclient"
	"sqldesk/internal/domain"
	"sqldesk/internal/service"
)

// ─────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────

type fakeConnector struct {
	profile   domain.ConnectionProfile
	pingErr   error
	pingDelay time.Duration
	closeErr  error
	closed    atomic.Bool

	// when set, Execute signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (c *fakeConnector) Engine() domain.EngineKind { return c.profile.Engine }

func (c *fakeConnector) ServerVersion(ctx context.Context) (string, error) {
	if err := sleepCtx(ctx, c.pingDelay); err != nil {
		return "", err
	}
	if c.pingErr != nil {
		return "", c.pingErr
	}
	return "fake 1.0", nil
}

func (c *fakeConnector) ListObjects(context.Context, dbclient.ObjectKind) ([]dbclient.SchemaObject, error) {
	return []dbclient.SchemaObject{{Name: "users", Type: dbclient.ObjectTable}}, nil
}

func (c *fakeConnector) ListColumns(_ context.Context, table, _ string) ([]dbclient.ColumnInfo, error) {
	return []dbclient.ColumnInfo{{Name: table + "_id", Type: "int", IsPrimary: true}}, nil
}

func (c *fakeConnector) Execute(context.Context, string, []any) *dbclient.QueryResult {
	if c.entered != nil {
		c.entered <- struct{}{}
		<-c.release
	}
	return &dbclient.QueryResult{Kind: dbclient.ResultAffected, AffectedRows: 1}
}

func (c *fakeConnector) ProcedureDefinition(context.Context, string, string) (string, error) {
	return "", nil
}

func (c *fakeConnector) ListDatabases(context.Context) ([]string, error) {
	return []string{c.profile.Database}, nil
}

func (c *fakeConnector) Close() error {
	c.closed.Store(true)
	return c.closeErr
}

// fakeOpener hands out fakeConnectors and remembers every one of them.
type fakeOpener struct {
	mu       sync.Mutex
	opened   []*fakeConnector
	failDB   string // opening this database fails
	pingErr  error
	closeErr error
	blocking bool

	// simulated network latency, cut short by the context
	openDelay time.Duration
	pingDelay time.Duration
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *fakeOpener) open(ctx context.Context, p *domain.ConnectionProfile, _ dbclient.Options) (dbclient.Connector, error) {
	if o.failDB != "" && p.Database == o.failDB {
		return nil, errors.New("connection refused")
	}
	if err := sleepCtx(ctx, o.openDelay); err != nil {
		return nil, err
	}
	c := &fakeConnector{profile: *p, pingErr: o.pingErr, pingDelay: o.pingDelay, closeErr: o.closeErr}
	if o.blocking {
		c.entered = make(chan struct{})
		c.release = make(chan struct{})
	}
	o.mu.Lock()
	o.opened = append(o.opened, c)
	o.mu.Unlock()
	return c, nil
}

func (o *fakeOpener) all() []*fakeConnector {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeConnector(nil), o.opened...)
}

func (o *fakeOpener) openCount() int { return len(o.all()) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, opener *fakeOpener, clock *fakeClock) *service.DatabaseService {
	t.Helper()
	opts := service.Options{SweepInterval: -1, Open: opener.open}
	if clock != nil {
		opts.Now = clock.Now
	}
	s := service.NewDatabaseService(opts)
	t.Cleanup(s.Close)
	return s
}

func mysqlProfile(id int64) domain.ConnectionProfile {
	return domain.ConnectionProfile{
		ID:       id,
		Name:     "shop",
		Engine:   domain.EngineMySQL,
		Host:     "localhost",
		Port:     3306,
		Username: "root",
		Password: "pw",
		Database: "app",
	}
}

// ─────────────────────────────────────────────────────────────
// Connection lifecycle
// ─────────────────────────────────────────────────────────────

func TestConnect_ValidationFailsBeforeIO(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)

	profiles := []domain.ConnectionProfile{
		{ID: 1, Engine: domain.EngineMySQL, Port: 3306, Database: "app"},
		{ID: 2, Engine: domain.EnginePostgres, Host: "h", Database: "app"},
		{ID: 3, Engine: domain.EnginePostgres, Host: "h", Port: 5432},
		{ID: 4, Engine: domain.EngineSQLite},
		{ID: 5, Engine: "oracle"},
	}
	for _, p := range profiles {
		res := s.Connect(context.Background(), p)
		if res.Success {
			t.Errorf("profile %d: expected failure", p.ID)
		}
		if !strings.Contains(res.Message, domain.ErrValidation.Error()) {
			t.Errorf("profile %d: expected validation message, got %q", p.ID, res.Message)
		}
		if _, err := s.Resolve(p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("profile %d: expected no session, got %v", p.ID, err)
		}
	}
	if n := opener.openCount(); n != 0 {
		t.Errorf("expected no opens, got %d", n)
	}
}

func TestConnect_TwiceClosesFirstHandle(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)
	ctx := context.Background()

	if res := s.Connect(ctx, mysqlProfile(7)); !res.Success {
		t.Fatalf("first connect: %s", res.Message)
	}
	first, _ := s.Resolve(7)
	if res := s.Connect(ctx, mysqlProfile(7)); !res.Success {
		t.Fatalf("second connect: %s", res.Message)
	}
	second, _ := s.Resolve(7)

	conns := opener.all()
	if len(conns) != 2 {
		t.Fatalf("expected 2 opens, got %d", len(conns))
	}
	if !conns[0].closed.Load() {
		t.Error("expected first handle closed")
	}
	if conns[1].closed.Load() {
		t.Error("expected second handle open")
	}
	if len(s.Sessions()) != 1 {
		t.Errorf("expected one session, got %d", len(s.Sessions()))
	}
	if first.SessionID == second.SessionID {
		t.Error("expected a new session id after reconnect")
	}
}

// A reconnect with a bad profile still drops the old session.
func TestConnect_InvalidReconnectDropsOldSession(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	bad := mysqlProfile(1)
	bad.Host = ""
	if res := s.Connect(ctx, bad); res.Success {
		t.Fatal("expected failure")
	}
	if !opener.all()[0].closed.Load() {
		t.Error("expected old handle closed")
	}
	if _, err := s.Resolve(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestConnect_LivenessFailureClosesHandle(t *testing.T) {
	opener := &fakeOpener{pingErr: errors.New("server gone away")}
	s := newTestService(t, opener, nil)

	res := s.Connect(context.Background(), mysqlProfile(1))
	if res.Success || !strings.Contains(res.Message, "server gone away") {
		t.Fatalf("expected liveness failure, got %+v", res)
	}
	conns := opener.all()
	if len(conns) != 1 || !conns[0].closed.Load() {
		t.Error("expected the opened handle to be closed")
	}
	if len(s.Sessions()) != 0 {
		t.Error("expected no session")
	}
}

// Opening and the liveness query share one deadline, so a slow server
// cannot take twice the profile timeout.
func TestConnect_TimeoutBoundsOpenAndLiveness(t *testing.T) {
	opener := &fakeOpener{openDelay: 700 * time.Millisecond, pingDelay: 700 * time.Millisecond}
	s := newTestService(t, opener, nil)
	p := mysqlProfile(1)
	p.Timeout = 1

	for name, op := range map[string]func() domain.OpResult{
		"connect": func() domain.OpResult { return s.Connect(context.Background(), p) },
		"test":    func() domain.OpResult { return s.TestConnection(context.Background(), p) },
	} {
		start := time.Now()
		res := op()
		elapsed := time.Since(start)
		if res.Success {
			t.Errorf("%s: expected timeout failure", name)
		}
		if elapsed > 1300*time.Millisecond {
			t.Errorf("%s: took %s, bound is 1s", name, elapsed)
		}
	}
	for i, c := range opener.all() {
		if !c.closed.Load() {
			t.Errorf("handle %d left open after timeout", i)
		}
	}
	if len(s.Sessions()) != 0 {
		t.Error("expected no session after timeout")
	}
}

func TestTestConnection_LeavesTableUntouched(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)

	res := s.TestConnection(context.Background(), mysqlProfile(3))
	if !res.Success {
		t.Fatalf("test connection: %s", res.Message)
	}
	if len(s.Sessions()) != 0 {
		t.Error("expected no session after test connection")
	}
	if !opener.all()[0].closed.Load() {
		t.Error("expected throwaway handle closed")
	}

	bad := mysqlProfile(3)
	bad.Database = ""
	if res := s.TestConnection(context.Background(), bad); res.Success {
		t.Error("expected validation failure")
	}
}

func TestDisconnect_ThenNotFound(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	if res := s.Disconnect(ctx, 1); !res.Success {
		t.Fatalf("disconnect: %s", res.Message)
	}
	if !opener.all()[0].closed.Load() {
		t.Error("expected handle closed")
	}
	if _, err := s.Resolve(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve: expected not found, got %v", err)
	}
	if _, err := s.GetObjects(ctx, 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get objects: expected not found, got %v", err)
	}
	res := s.ExecuteQuery(ctx, 1, "SELECT 1", nil)
	if res.Kind != dbclient.ResultError || !strings.Contains(res.Error, "not found") {
		t.Errorf("execute: expected error shape, got %+v", res)
	}

	// unknown ids disconnect fine
	if res := s.Disconnect(ctx, 99); !res.Success {
		t.Errorf("expected success for unknown id, got %+v", res)
	}
}

func TestDelegatedOperations(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)
	ctx := context.Background()
	s.Connect(ctx, mysqlProfile(1))

	objs, err := s.GetObjects(ctx, 1, dbclient.ObjectTable)
	if err != nil || len(objs) != 1 || objs[0].Name != "users" {
		t.Errorf("get objects: %v (err %v)", objs, err)
	}
	cols, err := s.GetTableColumns(ctx, 1, "users", "")
	if err != nil || len(cols) != 1 || cols[0].Name != "users_id" {
		t.Errorf("get columns: %v (err %v)", cols, err)
	}
	if _, err := s.GetTableColumns(ctx, 1, "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for empty table, got %v", err)
	}
	dbs, err := s.GetDatabases(ctx, 1)
	if err != nil || !reflect.DeepEqual(dbs, []string{"app"}) {
		t.Errorf("get databases: %v (err %v)", dbs, err)
	}
	if res := s.ExecuteQuery(ctx, 1, "UPDATE t SET a = 1", nil); res.AffectedRows != 1 {
		t.Errorf("execute: %+v", res)
	}
}

// ─────────────────────────────────────────────────────────────
// Change database
// ─────────────────────────────────────────────────────────────

func TestChangeDatabase_SwapsHandle(t *testing.T) {
	opener := &fakeOpener{}
	em := &service.MockEmitter{}
	s := service.NewDatabaseService(service.Options{SweepInterval: -1, Open: opener.open, Emitter: em})
	t.Cleanup(s.Close)
	ctx := context.Background()
	s.Connect(ctx, mysqlProfile(1))

	if res := s.ChangeDatabase(ctx, 1, "reporting"); !res.Success {
		t.Fatalf("change database: %s", res.Message)
	}
	conns := opener.all()
	if len(conns) != 2 || !conns[0].closed.Load() || conns[1].closed.Load() {
		t.Fatal("expected old handle closed and new handle open")
	}
	if conns[1].profile.Database != "reporting" || conns[1].profile.Host != "localhost" {
		t.Errorf("expected only the database to change, got %+v", conns[1].profile)
	}
	info, err := s.Resolve(1)
	if err != nil || info.Database != "reporting" {
		t.Errorf("expected session on reporting, got %+v (err %v)", info, err)
	}
	events := em.Recorded()
	if len(events) != 2 || events[1].Event != service.EventSessionOpened {
		t.Fatalf("expected a second opened event, got %+v", events)
	}
	ev := events[1].Data.(service.SessionEvent)
	if ev.ConnectionID != 1 || ev.Database != "reporting" || ev.SessionID != info.SessionID {
		t.Errorf("unexpected payload %+v", ev)
	}
}

func TestChangeDatabase_FailureKeepsSession(t *testing.T) {
	opener := &fakeOpener{failDB: "missing"}
	s := newTestService(t, opener, nil)
	ctx := context.Background()
	s.Connect(ctx, mysqlProfile(1))

	res := s.ChangeDatabase(ctx, 1, "missing")
	if res.Success {
		t.Fatal("expected failure")
	}
	if opener.all()[0].closed.Load() {
		t.Error("expected the old handle to stay open")
	}
	info, err := s.Resolve(1)
	if err != nil || info.Database != "app" {
		t.Errorf("expected session still on app, got %+v (err %v)", info, err)
	}
	if dbs, _ := s.GetDatabases(ctx, 1); !reflect.DeepEqual(dbs, []string{"app"}) {
		t.Errorf("expected old connector still serving, got %v", dbs)
	}
}

func TestChangeDatabase_UnknownID(t *testing.T) {
	s := newTestService(t, &fakeOpener{}, nil)
	res := s.ChangeDatabase(context.Background(), 5, "x")
	if res.Success || !strings.Contains(res.Message, "not found") {
		t.Errorf("expected not found, got %+v", res)
	}
}

func TestChangeDatabase_SQLiteUnsupported(t *testing.T) {
	s := service.NewDatabaseService(service.Options{SweepInterval: -1, SQLiteDir: t.TempDir()})
	defer s.Close()
	ctx := context.Background()

	p := domain.ConnectionProfile{ID: 1, Engine: domain.EngineSQLite, FilePath: "app.db"}
	if res := s.Connect(ctx, p); !res.Success {
		t.Fatalf("connect: %s", res.Message)
	}
	for _, name := range []string{"other", "", "app.db"} {
		res := s.ChangeDatabase(ctx, 1, name)
		if res.Success {
			t.Errorf("change to %q: expected failure", name)
		}
		if !strings.Contains(res.Message, domain.ErrUnsupported.Error()) {
			t.Errorf("change to %q: expected unsupported, got %q", name, res.Message)
		}
	}
	if _, err := s.Resolve(1); err != nil {
		t.Errorf("expected session intact, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Idle sweep
// ─────────────────────────────────────────────────────────────

func TestSweep_EvictsIdleSessions(t *testing.T) {
	opener := &fakeOpener{}
	clock := newFakeClock()
	s := newTestService(t, opener, clock)
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	s.Connect(ctx, mysqlProfile(2))

	clock.Advance(20 * time.Minute)
	s.GetDatabases(ctx, 2) // keeps #2 fresh
	clock.Advance(11 * time.Minute)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := s.Resolve(1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected #1 evicted, got %v", err)
	}
	if _, err := s.GetObjects(ctx, 1, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after eviction, got %v", err)
	}
	if _, err := s.Resolve(2); err != nil {
		t.Errorf("expected #2 alive, got %v", err)
	}
	if !opener.all()[0].closed.Load() {
		t.Error("expected evicted handle closed")
	}
}

func TestSweep_FailingCloseStillRemovesEntry(t *testing.T) {
	opener := &fakeOpener{closeErr: errors.New("broken pipe")}
	clock := newFakeClock()
	s := newTestService(t, opener, clock)

	s.Connect(context.Background(), mysqlProfile(1))
	clock.Advance(31 * time.Minute)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(s.Sessions()) != 0 {
		t.Error("expected entry removed despite close error")
	}
}

func TestSweep_SkipsBusySessions(t *testing.T) {
	opener := &fakeOpener{blocking: true}
	clock := newFakeClock()
	s := newTestService(t, opener, clock)
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	conn := opener.all()[0]

	done := make(chan struct{})
	go func() {
		s.ExecuteQuery(ctx, 1, "SELECT SLEEP(10)", nil)
		close(done)
	}()
	<-conn.entered

	clock.Advance(31 * time.Minute)
	if n := s.Sweep(); n != 0 {
		t.Fatalf("expected busy session skipped, got %d evictions", n)
	}

	close(conn.release)
	<-done
	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected eviction once idle, got %d", n)
	}
}

func TestSweep_ScheduledByCron(t *testing.T) {
	opener := &fakeOpener{}
	s := service.NewDatabaseService(service.Options{
		IdleTimeout:   time.Millisecond,
		SweepInterval: time.Second,
		Open:          opener.open,
	})
	defer s.Close()

	s.Connect(context.Background(), mysqlProfile(1))

	deadline := time.Now().Add(5 * time.Second)
	for len(s.Sessions()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled sweep never evicted the session")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// ─────────────────────────────────────────────────────────────
// Concurrency
// ─────────────────────────────────────────────────────────────

func TestConcurrentConnectDisconnect_NoLeakedHandles(t *testing.T) {
	opener := &fakeOpener{}
	s := newTestService(t, opener, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.Connect(ctx, mysqlProfile(1))
			} else {
				s.Disconnect(ctx, 1)
			}
		}(i)
	}
	wg.Wait()

	open := 0
	for _, c := range opener.all() {
		if !c.closed.Load() {
			open++
		}
	}
	if open != len(s.Sessions()) {
		t.Errorf("expected %d open handles, got %d", len(s.Sessions()), open)
	}
	if len(s.Sessions()) > 1 {
		t.Errorf("expected at most one session, got %d", len(s.Sessions()))
	}
}

func TestDistinctIDsRunConcurrently(t *testing.T) {
	opener := &fakeOpener{blocking: true}
	s := newTestService(t, opener, nil)
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	s.Connect(ctx, mysqlProfile(2))
	conn1 := opener.all()[0]

	go s.ExecuteQuery(ctx, 1, "SELECT 1", nil)
	<-conn1.entered

	// #1 is busy; #2 must not wait for it
	done := make(chan struct{})
	go func() {
		s.GetDatabases(ctx, 2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation on #2 blocked behind #1")
	}
	close(conn1.release)
}

// ─────────────────────────────────────────────────────────────
// Events & shutdown
// ─────────────────────────────────────────────────────────────

func TestSessionEvents(t *testing.T) {
	em := &service.MockEmitter{}
	s := service.NewDatabaseService(service.Options{SweepInterval: -1, Open: (&fakeOpener{}).open, Emitter: em})
	defer s.Close()
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(4))
	s.Disconnect(ctx, 4)

	events := em.Recorded()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != service.EventSessionOpened || events[1].Event != service.EventSessionClosed {
		t.Errorf("unexpected events %+v", events)
	}
	opened := events[0].Data.(service.SessionEvent)
	if opened.ConnectionID != 4 || opened.Engine != domain.EngineMySQL || opened.Database != "app" || opened.SessionID == "" {
		t.Errorf("unexpected opened payload %+v", opened)
	}
	closed := events[1].Data.(service.SessionEvent)
	if closed.ConnectionID != 4 || closed.Reason != "disconnect" || closed.Engine != domain.EngineMySQL || closed.Database != "app" {
		t.Errorf("unexpected payload %+v", closed)
	}
}

func TestClose_ClosesEverySession(t *testing.T) {
	opener := &fakeOpener{}
	s := service.NewDatabaseService(service.Options{SweepInterval: -1, Open: opener.open})
	ctx := context.Background()

	s.Connect(ctx, mysqlProfile(1))
	s.Connect(ctx, mysqlProfile(2))
	s.Close()

	for i, c := range opener.all() {
		if !c.closed.Load() {
			t.Errorf("handle %d left open", i)
		}
	}
	if res := s.Connect(ctx, mysqlProfile(3)); res.Success {
		t.Error("expected connect after close to fail")
	}
	if res := s.ExecuteQuery(ctx, 1, "SELECT 1", nil); !strings.Contains(res.Error, "closed") {
		t.Errorf("expected closed error shape, got %+v", res)
	}
	if _, err := s.Resolve(1); err == nil {
		t.Error("expected resolve after close to fail")
	}
	s.Close() // idempotent
}

// ─────────────────────────────────────────────────────────────
// SQLite end to end
// ─────────────────────────────────────────────────────────────

func TestSQLiteEndToEnd(t *testing.T) {
	s := service.NewDatabaseService(service.Options{SweepInterval: -1, SQLiteDir: t.TempDir()})
	defer s.Close()
	ctx := context.Background()

	p := domain.ConnectionProfile{ID: 9, Engine: domain.EngineSQLite, FilePath: "notes.db"}
	if res := s.Connect(ctx, p); !res.Success {
		t.Fatalf("connect: %s", res.Message)
	}

	if res := s.ExecuteQuery(ctx, 9, "CREATE TABLE t(a INT)", nil); res.Kind != dbclient.ResultAffected || res.AffectedRows != 0 {
		t.Fatalf("create: %+v", res)
	}
	if res := s.ExecuteQuery(ctx, 9, "INSERT INTO t VALUES (5)", nil); res.AffectedRows != 1 {
		t.Fatalf("insert: %+v", res)
	}
	res := s.ExecuteQuery(ctx, 9, "SELECT a FROM t", nil)
	if !reflect.DeepEqual(res.Columns, []string{"a"}) || !reflect.DeepEqual(res.Rows, []map[string]any{{"a": int64(5)}}) {
		t.Fatalf("select: %+v", res)
	}

	dbs, err := s.GetDatabases(ctx, 9)
	if err != nil || !reflect.DeepEqual(dbs, []string{"notes.db"}) {
		t.Errorf("get databases: %v (err %v)", dbs, err)
	}
}

func TestSQLiteFileRemovedEvictsSession(t *testing.T) {
	dir := t.TempDir()
	em := &service.MockEmitter{}
	s := service.NewDatabaseService(service.Options{
		SweepInterval: -1,
		SQLiteDir:     dir,
		WatchFiles:    true,
		Emitter:       em,
	})
	defer s.Close()
	ctx := context.Background()

	p := domain.ConnectionProfile{ID: 1, Engine: domain.EngineSQLite, FilePath: "gone.db"}
	if res := s.Connect(ctx, p); !res.Success {
		t.Fatalf("connect: %s", res.Message)
	}
	if err := os.Remove(filepath.Join(dir, "gone.db")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for len(s.Sessions()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("session survived removal of its file")
		}
		time.Sleep(20 * time.Millisecond)
	}

	var reason string
	for _, e := range em.Recorded() {
		if e.Event == service.EventSessionClosed {
			reason = e.Data.(service.SessionEvent).Reason
		}
	}
	if reason != "file removed" {
		t.Errorf("expected eviction reason 'file removed', got %q", reason)
	}
}
