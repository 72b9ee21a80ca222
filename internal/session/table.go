package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/journal"
)

// Frame is one published view of a table.
type Frame struct {
	Type     string                `json:"type"` // "frame"
	TableID  string                `json:"table_id"`
	Tick     uint64                `json:"tick"`
	State    game.DriverState      `json:"state"`
	Balls    []game.Ball           `json:"balls"`
	Events   []game.CollisionEvent `json:"events,omitempty"`
	Pocketed []int                 `json:"pocketed,omitempty"`
}

type commandKind int

const (
	cmdShoot commandKind = iota
	cmdRerack
	cmdPlaceCue
	cmdAdvance
)

type command struct {
	kind  commandKind
	shot  game.Shot
	pos   game.Vec2
	dt    float64
	reply chan commandResult
}

type commandResult struct {
	tick game.TickResult
	err  error
}

// shotOutcome accumulates what a shot did between the strike and rest.
type shotOutcome struct {
	number       int
	shot         game.Shot
	startedAt    time.Time
	ticks        int
	ballHits     int
	cushionHits  int
	pocketed     []int
	firstContact int
}

// Table is a live session. Its driver is only touched by the run goroutine;
// everything else goes through the command channel or the store's copies.
type Table struct {
	ID        string
	CreatedAt time.Time

	mgr     *Manager
	driver  *game.FrameDriver
	journal *journal.Writer
	cmds    chan command
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once

	mu           sync.RWMutex
	state        game.DriverState
	tick         uint64
	shotNumber   int
	lastActivity time.Time
	current      *shotOutcome
}

func newTable(m *Manager, id string, restore *Snapshot) (*Table, error) {
	table, err := game.NewStandardTable(m.opts.Tuning.CushionRestitution)
	if err != nil {
		return nil, err
	}
	driver, err := game.NewRackedDriver(table, m.opts.Tuning.Params)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &Table{
		ID:           id,
		CreatedAt:    now,
		mgr:          m,
		driver:       driver,
		cmds:         make(chan command),
		done:         make(chan struct{}),
		exited:       make(chan struct{}),
		state:        game.StateIdle,
		lastActivity: now,
	}

	// Journals replay from a fresh rack, so a restored table is not journaled.
	if restore != nil {
		if err := driver.Resume(restore.Balls, restore.Tick); err != nil {
			return nil, fmt.Errorf("restore table %s: %w", id, err)
		}
		t.tick = restore.Tick
		t.shotNumber = restore.ShotNumber
		t.CreatedAt = restore.CreatedAt
		return t, nil
	}

	t.journal = m.newTableJournal(id)
	return t, nil
}

func (t *Table) run(ctx context.Context) {
	defer close(t.exited)
	defer t.closeJournal()

	var tick <-chan time.Time
	dt := 0.0
	if hz := t.mgr.opts.TickRateHz; hz > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
		defer ticker.Stop()
		tick = ticker.C
		dt = 1 / hz
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case cmd := <-t.cmds:
			cmd.reply <- t.apply(cmd)
		case <-tick:
			if t.driver.State() == game.StateSimulating {
				if _, err := t.step(dt); err != nil {
					log.Printf("[SESSION] Table %s tick failed: %v", t.ID, err)
				}
			}
		}
	}
}

// stop ends the run goroutine and waits for it to release the journal.
func (t *Table) stop() {
	t.once.Do(func() { close(t.done) })
	<-t.exited
}

func (t *Table) closeJournal() {
	if t.journal == nil {
		return
	}
	if err := t.journal.Close(); err != nil {
		log.Printf("[JOURNAL] Failed to close journal for table %s: %v", t.ID, err)
	}
}

// send hands a command to the run goroutine and waits for the result.
func (t *Table) send(ctx context.Context, cmd command) (game.TickResult, error) {
	cmd.reply = make(chan commandResult, 1)
	select {
	case t.cmds <- cmd:
	case <-t.done:
		return game.TickResult{}, ErrTableClosed
	case <-ctx.Done():
		return game.TickResult{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.tick, res.err
	case <-ctx.Done():
		return game.TickResult{}, ctx.Err()
	}
}

// Shoot strikes the cue ball.
func (t *Table) Shoot(ctx context.Context, shot game.Shot) error {
	_, err := t.send(ctx, command{kind: cmdShoot, shot: shot})
	return err
}

// Rerack resets the table.
func (t *Table) Rerack(ctx context.Context) error {
	_, err := t.send(ctx, command{kind: cmdRerack})
	return err
}

// PlaceCueBall puts the cue ball in hand at pos.
func (t *Table) PlaceCueBall(ctx context.Context, pos game.Vec2) error {
	_, err := t.send(ctx, command{kind: cmdPlaceCue, pos: pos})
	return err
}

// Advance steps the table by dt on its own goroutine. Tables on a ticker
// advance by themselves; this is for manual stepping.
func (t *Table) Advance(ctx context.Context, dt float64) (game.TickResult, error) {
	return t.send(ctx, command{kind: cmdAdvance, dt: dt})
}

func (t *Table) apply(cmd command) commandResult {
	t.touch()
	switch cmd.kind {
	case cmdShoot:
		if err := t.driver.Shoot(cmd.shot); err != nil {
			return commandResult{err: err}
		}
		t.mu.Lock()
		t.shotNumber++
		t.current = &shotOutcome{number: t.shotNumber, shot: cmd.shot, startedAt: time.Now(), firstContact: -1}
		t.state = game.StateSimulating
		t.mu.Unlock()

		shot := cmd.shot
		t.appendJournal(journal.Entry{Kind: journal.KindShot, Tick: t.driver.TickCount(), Shot: &shot})
		t.publish(game.TickResult{Tick: t.driver.TickCount(), State: game.StateSimulating})
		log.Printf("[SESSION] Table %s shot %d", t.ID, t.shotNumber)

	case cmdRerack:
		t.driver.Rerack()
		t.mu.Lock()
		t.current = nil
		t.state = game.StateIdle
		t.mu.Unlock()

		t.appendJournal(journal.Entry{Kind: journal.KindRerack, Tick: t.driver.TickCount()})
		t.publish(game.TickResult{Tick: t.driver.TickCount(), State: game.StateIdle})
		t.mgr.saveSnapshot(t)

	case cmdPlaceCue:
		if err := t.driver.PlaceCueBall(cmd.pos); err != nil {
			return commandResult{err: err}
		}
		pos := cmd.pos
		t.appendJournal(journal.Entry{Kind: journal.KindPlace, Tick: t.driver.TickCount(), Position: &pos})
		t.publish(game.TickResult{Tick: t.driver.TickCount(), State: game.StateIdle})

	case cmdAdvance:
		res, err := t.step(cmd.dt)
		return commandResult{tick: res, err: err}
	}
	return commandResult{}
}

// step runs one tick and handles what it produced.
func (t *Table) step(dt float64) (game.TickResult, error) {
	wasSimulating := t.driver.State() == game.StateSimulating
	res, err := t.driver.Tick(dt)
	if err != nil || !wasSimulating || dt == 0 {
		return res, err
	}

	t.appendJournal(journal.Entry{Kind: journal.KindTick, Tick: res.Tick, DT: dt, Digest: journal.Digest(t.driver.Balls())})
	t.publish(res)

	t.mu.Lock()
	if out := t.current; out != nil {
		out.ticks++
		out.pocketed = append(out.pocketed, res.Pocketed...)
		for _, ev := range res.Events {
			switch ev.Type {
			case game.EventBall:
				out.ballHits++
				if out.firstContact < 0 && ev.BallID == game.CueBall {
					out.firstContact = ev.TargetID
				}
			case game.EventCushion:
				out.cushionHits++
			}
		}
	}
	var finished *shotOutcome
	if res.Settled {
		finished = t.current
		t.current = nil
	}
	t.state = t.driver.State()
	t.mu.Unlock()

	if res.Settled {
		t.settled(finished)
	}
	return res, nil
}

func (t *Table) settled(out *shotOutcome) {
	if t.journal != nil {
		if err := t.journal.Flush(); err != nil {
			log.Printf("[JOURNAL] Flush failed for table %s: %v", t.ID, err)
		}
	}
	t.mgr.saveSnapshot(t)
	if out != nil {
		t.mgr.recordShot(t.ID, out, t.driver.Balls())
		t.mgr.publishEvent(TableEvent{
			Type:       "table_settled",
			TableID:    t.ID,
			ShotNumber: out.number,
			Pocketed:   out.pocketed,
			Ticks:      out.ticks,
		})
	}
}

func (t *Table) publish(res game.TickResult) {
	t.mu.Lock()
	t.tick = res.Tick
	t.mu.Unlock()

	t.mgr.publish(Frame{
		Type:     "frame",
		TableID:  t.ID,
		Tick:     res.Tick,
		State:    res.State,
		Balls:    t.driver.Balls(),
		Events:   res.Events,
		Pocketed: res.Pocketed,
	})
}

func (t *Table) appendJournal(e journal.Entry) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Append(e); err != nil {
		log.Printf("[JOURNAL] Append failed for table %s: %v", t.ID, err)
	}
}

func (t *Table) touch() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

func (t *Table) LastActivity() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastActivity
}

// DriverState is the state as of the last command or tick.
func (t *Table) DriverState() game.DriverState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot returns the current balls and bookkeeping. Safe from any goroutine.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	state, tick, shots := t.state, t.tick, t.shotNumber
	t.mu.RUnlock()
	return Snapshot{
		TableID:    t.ID,
		State:      state,
		Tick:       tick,
		ShotNumber: shots,
		Balls:      t.driver.Store().GetAll(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  time.Now(),
	}
}

// Frame returns the current state as a frame message.
func (t *Table) Frame() Frame {
	s := t.Snapshot()
	return Frame{Type: "frame", TableID: t.ID, Tick: s.Tick, State: s.State, Balls: s.Balls}
}
