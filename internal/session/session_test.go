package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/database"
	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/journal"
	"github.com/playmatatu/billiards/internal/migrations"
)

const dt = 1.0 / 60.0

type recordingPublisher struct {
	mu     sync.Mutex
	frames []Frame
}

func (p *recordingPublisher) PublishFrame(f Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func manualOptions() Options {
	return Options{Tuning: config.DefaultTuning(), MaxTables: 4}
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// playToRest advances a table until its shot settles.
func playToRest(t *testing.T, ctx context.Context, tbl *Table) {
	t.Helper()
	for i := 0; i < 20000; i++ {
		res, err := tbl.Advance(ctx, dt)
		if err != nil {
			t.Fatal(err)
		}
		if res.State == game.StateIdle {
			return
		}
	}
	t.Fatal("table never came to rest")
}

func TestCreateAndGet(t *testing.T) {
	m := NewManager(nil, nil, manualOptions())
	defer m.Shutdown()

	tbl, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(tbl.ID)
	if err != nil || got != tbl {
		t.Fatalf("Get(%s) = %v, %v", tbl.ID, got, err)
	}
	if _, err := m.Get("nope"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("unknown table err = %v", err)
	}

	snap := tbl.Snapshot()
	if snap.State != game.StateIdle || len(snap.Balls) != game.NumBalls {
		t.Errorf("fresh snapshot = %+v", snap)
	}
}

func TestTableLimit(t *testing.T) {
	opts := manualOptions()
	opts.MaxTables = 1
	m := NewManager(nil, nil, opts)
	defer m.Shutdown()

	if _, err := m.Create(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(); !errors.Is(err, ErrTooManyTables) {
		t.Errorf("err = %v, want ErrTooManyTables", err)
	}
}

func TestShotLifecycle(t *testing.T) {
	ctx := ctxTimeout(t)
	pub := &recordingPublisher{}
	m := NewManager(nil, nil, manualOptions())
	m.SetPublisher(pub)
	defer m.Shutdown()

	tbl, _ := m.Create()
	shot := game.Shot{Direction: game.NewVec2(1, 0), Magnitude: 1.2}
	if err := tbl.Shoot(ctx, shot); err != nil {
		t.Fatal(err)
	}
	if tbl.DriverState() != game.StateSimulating {
		t.Errorf("state = %s, want SIMULATING", tbl.DriverState())
	}
	if err := tbl.Shoot(ctx, shot); !errors.Is(err, game.ErrShotRejected) {
		t.Errorf("second shot err = %v, want ErrShotRejected", err)
	}

	playToRest(t, ctx, tbl)
	if tbl.DriverState() != game.StateIdle {
		t.Errorf("state = %s, want IDLE", tbl.DriverState())
	}
	if tbl.Snapshot().ShotNumber != 1 {
		t.Errorf("shot number = %d", tbl.Snapshot().ShotNumber)
	}
	if pub.count() < 2 {
		t.Errorf("published %d frames", pub.count())
	}
}

func TestAdvanceRejectsBadDt(t *testing.T) {
	ctx := ctxTimeout(t)
	m := NewManager(nil, nil, manualOptions())
	defer m.Shutdown()

	tbl, _ := m.Create()
	if _, err := tbl.Advance(ctx, -1); !errors.Is(err, game.ErrInvalidTick) {
		t.Errorf("err = %v, want ErrInvalidTick", err)
	}
}

func TestRerackMidShot(t *testing.T) {
	ctx := ctxTimeout(t)
	m := NewManager(nil, nil, manualOptions())
	defer m.Shutdown()

	tbl, _ := m.Create()
	if err := tbl.Shoot(ctx, game.Shot{Direction: game.NewVec2(1, 0), Magnitude: 1.5}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := tbl.Advance(ctx, dt); err != nil {
			t.Fatal(err)
		}
	}
	if err := tbl.Rerack(ctx); err != nil {
		t.Fatal(err)
	}
	snap := tbl.Snapshot()
	if snap.State != game.StateIdle {
		t.Errorf("state = %s, want IDLE", snap.State)
	}
	for _, b := range snap.Balls {
		if !b.Active || !b.Velocity.IsZero() {
			t.Errorf("ball %d not racked: %+v", b.Number, b)
		}
	}
}

func TestClosedTableRejectsCommands(t *testing.T) {
	ctx := ctxTimeout(t)
	m := NewManager(nil, nil, manualOptions())
	defer m.Shutdown()

	tbl, _ := m.Create()
	if err := m.Close(tbl.ID); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Rerack(ctx); !errors.Is(err, ErrTableClosed) {
		t.Errorf("err = %v, want ErrTableClosed", err)
	}
	if err := m.Close(tbl.ID); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("second close err = %v", err)
	}
}

func TestShotHistoryInSQLite(t *testing.T) {
	ctx := ctxTimeout(t)
	url := "sqlite::memory:"
	db, err := database.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := migrations.RunMigrations(url, db); err != nil {
		t.Fatal(err)
	}

	m := NewManager(db, nil, manualOptions())
	defer m.Shutdown()

	tbl, _ := m.Create()
	if err := tbl.Shoot(ctx, game.Shot{Direction: game.NewVec2(1, 0), Magnitude: 1.4, Screw: 0.2}); err != nil {
		t.Fatal(err)
	}
	playToRest(t, ctx, tbl)

	shots, err := m.History(ctx, tbl.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shots) != 1 {
		t.Fatalf("history has %d shots, want 1", len(shots))
	}
	s := shots[0]
	if s.ShotNumber != 1 || s.Magnitude != 1.4 || s.Screw != 0.2 || s.Ticks == 0 {
		t.Errorf("recorded shot = %+v", s)
	}
	if s.FirstContact != 9 {
		t.Errorf("first contact = %d, want the apex ball", s.FirstContact)
	}

	var sessions int
	if err := db.Get(&sessions, `SELECT COUNT(*) FROM table_sessions WHERE id = ?`, tbl.ID); err != nil || sessions != 1 {
		t.Errorf("table_sessions rows = %d, err = %v", sessions, err)
	}
}

func TestJournaledTableReplays(t *testing.T) {
	ctx := ctxTimeout(t)
	opts := manualOptions()
	opts.JournalDir = t.TempDir()
	m := NewManager(nil, nil, opts)
	defer m.Shutdown()

	tbl, _ := m.Create()
	if err := tbl.Shoot(ctx, game.Shot{Direction: game.NewVec2(1, 0.01), Magnitude: 1.1, English: 0.3}); err != nil {
		t.Fatal(err)
	}
	playToRest(t, ctx, tbl)
	want := journal.Digest(tbl.Snapshot().Balls)
	if err := m.Close(tbl.ID); err != nil {
		t.Fatal(err)
	}

	entries, err := journal.ReadFile(journal.Path(opts.JournalDir, tbl.ID))
	if err != nil {
		t.Fatal(err)
	}
	table, _ := game.NewStandardTable(opts.Tuning.CushionRestitution)
	d, err := journal.Replay(entries, table, opts.Tuning.Params)
	if err != nil {
		t.Fatal(err)
	}
	if got := journal.Digest(d.Balls()); got != want {
		t.Errorf("replay digest %s, want %s", got, want)
	}
}

func TestTickerDrivesTable(t *testing.T) {
	ctx := ctxTimeout(t)
	opts := manualOptions()
	opts.TickRateHz = 500
	m := NewManager(nil, nil, opts)
	defer m.Shutdown()

	tbl, _ := m.Create()
	start := tbl.Snapshot().Balls[game.CueBall].Position
	if err := tbl.Shoot(ctx, game.Shot{Direction: game.NewVec2(0, 1), Magnitude: 0.3}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tbl.Snapshot().Balls[game.CueBall].Position != start {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("ticker did not move the cue ball")
}

func TestIdleTablesAreClosed(t *testing.T) {
	opts := manualOptions()
	opts.IdleTimeout = time.Minute
	m := NewManager(nil, nil, opts)
	defer m.Shutdown()

	tbl, _ := m.Create()
	m.closeIdleTables(time.Now())
	if len(m.IDs()) != 1 {
		t.Fatal("fresh table closed")
	}
	m.closeIdleTables(tbl.LastActivity().Add(2 * time.Minute))
	if len(m.IDs()) != 0 {
		t.Error("idle table not closed")
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	ctx := ctxTimeout(t)
	opts := manualOptions()
	opts.JournalDir = t.TempDir()
	m := NewManager(nil, nil, opts)
	defer m.Shutdown()

	table, _ := game.NewStandardTable(opts.Tuning.CushionRestitution)
	d, err := game.NewRackedDriver(table, opts.Tuning.Params)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Store().Pocket(3); err != nil {
		t.Fatal(err)
	}
	balls := d.Balls()
	balls[game.CueBall].Position = game.NewVec2(-0.3, 0.2)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tbl, err := m.open("restored", &Snapshot{
		TableID:    "restored",
		State:      game.StateIdle,
		Tick:       742,
		ShotNumber: 5,
		Balls:      balls,
		CreatedAt:  created,
	})
	if err != nil {
		t.Fatal(err)
	}

	snap := tbl.Snapshot()
	if snap.ShotNumber != 5 || snap.Tick != 742 || !snap.CreatedAt.Equal(created) {
		t.Errorf("restored bookkeeping = shot %d tick %d created %v", snap.ShotNumber, snap.Tick, snap.CreatedAt)
	}
	for i, b := range snap.Balls {
		if b.Active != balls[i].Active || b.Position != balls[i].Position {
			t.Errorf("ball %d = active %v at %+v, want active %v at %+v", i, b.Active, b.Position, balls[i].Active, balls[i].Position)
		}
	}
	if tbl.journal != nil {
		t.Error("restored table should not be journaled")
	}
	if _, err := os.Stat(journal.Path(opts.JournalDir, "restored")); !os.IsNotExist(err) {
		t.Errorf("journal file stat err = %v, want not exist", err)
	}

	// Play resumes where the snapshot left off.
	if err := tbl.Shoot(ctx, game.Shot{Direction: game.NewVec2(1, 0), Magnitude: 0.3}); err != nil {
		t.Fatal(err)
	}
	res, err := tbl.Advance(ctx, dt)
	if err != nil {
		t.Fatal(err)
	}
	if res.Tick != 743 {
		t.Errorf("first tick after restore = %d, want 743", res.Tick)
	}
	if got := tbl.Snapshot().ShotNumber; got != 6 {
		t.Errorf("shot number = %d, want 6", got)
	}
}

func TestSessionRowFollowsTableLifetime(t *testing.T) {
	url := "sqlite::memory:"
	db, err := database.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := migrations.RunMigrations(url, db); err != nil {
		t.Fatal(err)
	}

	opts := manualOptions()
	opts.IdleTimeout = time.Minute
	m := NewManager(db, nil, opts)
	defer m.Shutdown()

	open := func(id string) int {
		t.Helper()
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM table_sessions WHERE id = ? AND closed_at IS NULL`, id); err != nil {
			t.Fatal(err)
		}
		return n
	}

	idle, _ := m.Create()
	m.closeIdleTables(idle.LastActivity().Add(2 * time.Minute))
	if len(m.IDs()) != 0 {
		t.Fatal("idle table not evicted")
	}
	if open(idle.ID) != 1 {
		t.Error("evicting an idle table should not close its session")
	}

	tbl, _ := m.Create()
	snap := tbl.Snapshot()
	if err := m.Close(tbl.ID); err != nil {
		t.Fatal(err)
	}
	if open(tbl.ID) != 0 {
		t.Fatal("closed table still has an open session row")
	}
	if _, err := m.Get(tbl.ID); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Get after Close err = %v, want ErrTableNotFound", err)
	}

	if _, err := m.open(tbl.ID, &snap); err != nil {
		t.Fatal(err)
	}
	if open(tbl.ID) != 1 {
		t.Error("restored table should reopen its session row")
	}

	if _, err := m.open("from-elsewhere", &snap); err != nil {
		t.Fatal(err)
	}
	if open("from-elsewhere") != 1 {
		t.Error("restoring an unknown table should record its session")
	}
}
