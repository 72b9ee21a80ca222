// Package session hosts live pool tables: one goroutine per table owns its
// frame driver, steps it on a ticker, and fans frames out to subscribers.
package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/journal"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTooManyTables = errors.New("table limit reached")
	ErrTableClosed   = errors.New("table closed")
)

// FramePublisher receives every frame a table produces.
type FramePublisher interface {
	PublishFrame(f Frame)
}

// Options configures a Manager.
type Options struct {
	Tuning      config.Tuning
	TickRateHz  float64 // <= 0 disables the ticker; tables then only advance through Advance
	JournalDir  string  // empty disables journaling
	SnapshotTTL time.Duration
	MaxTables   int
	IdleTimeout time.Duration // 0 keeps idle tables forever
}

// OptionsFromConfig builds Options from the environment config and tuning.
func OptionsFromConfig(cfg *config.Config, tuning config.Tuning) Options {
	return Options{
		Tuning:      tuning,
		TickRateHz:  cfg.TickRateHz,
		JournalDir:  cfg.JournalDir,
		SnapshotTTL: time.Duration(cfg.SnapshotTTLMinutes) * time.Minute,
		MaxTables:   cfg.MaxTables,
		IdleTimeout: time.Duration(cfg.IdleTableMinutes) * time.Minute,
	}
}

// Manager owns every live table.
type Manager struct {
	tables    map[string]*Table
	rdb       *redis.Client // snapshots and table_events; optional
	db        *sqlx.DB      // shot history; optional
	opts      Options
	publisher FramePublisher
	mu        sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. db and rdb may be nil.
func NewManager(db *sqlx.DB, rdb *redis.Client, opts Options) *Manager {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		tables: make(map[string]*Table),
		rdb:    rdb,
		db:     db,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetPublisher sets where frames go. Call before creating tables.
func (m *Manager) SetPublisher(p FramePublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = p
}

func (m *Manager) publish(f Frame) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if p != nil {
		p.PublishFrame(f)
	}
}

// Create racks a new table and starts its loop.
func (m *Manager) Create() (*Table, error) {
	return m.open(uuid.NewString(), nil)
}

func (m *Manager) open(id string, restore *Snapshot) (*Table, error) {
	t, created, err := m.register(id, restore)
	if err != nil || !created {
		return t, err
	}

	if restore != nil {
		log.Printf("[SESSION] Table %s restored from snapshot (shot %d, tick %d)", id, restore.ShotNumber, restore.Tick)
		m.recordTableReopened(t)
	} else {
		log.Printf("[SESSION] Table %s created", id)
		m.recordTableCreated(t)
	}
	return t, nil
}

// register adds the table to the live set and starts its loop. created is
// false when another caller got there first.
func (m *Manager) register(id string, restore *Snapshot) (t *Table, created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tables[id]; ok {
		return t, false, nil
	}
	if m.opts.MaxTables > 0 && len(m.tables) >= m.opts.MaxTables {
		return nil, false, ErrTooManyTables
	}

	t, err = newTable(m, id, restore)
	if err != nil {
		return nil, false, err
	}
	m.tables[id] = t
	go t.run(m.ctx)
	return t, true, nil
}

// Get returns a live table, restoring it from its Redis snapshot if it is not
// in memory.
func (m *Manager) Get(id string) (*Table, error) {
	m.mu.RLock()
	t, ok := m.tables[id]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	snap, err := m.loadSnapshot(m.ctx, id)
	if err != nil {
		return nil, err
	}
	return m.open(id, snap)
}

// IDs lists the live tables.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close ends a table for good: it is stopped, its snapshot is deleted and
// its session row is marked closed.
func (m *Manager) Close(id string) error {
	if err := m.evict(id); err != nil {
		return err
	}
	m.deleteSnapshot(id)
	m.recordTableClosed(id)
	log.Printf("[SESSION] Table %s closed", id)
	return nil
}

// evict stops a table and drops it from memory. Its snapshot stays in Redis,
// so a later Get brings it back.
func (m *Manager) evict(id string) error {
	m.mu.Lock()
	t, ok := m.tables[id]
	if ok {
		delete(m.tables, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrTableNotFound
	}
	t.stop()
	return nil
}

// Shutdown stops every table, leaving their snapshots for the next instance.
func (m *Manager) Shutdown() {
	ids := m.IDs()
	for _, id := range ids {
		_ = m.evict(id)
	}
	if len(ids) > 0 {
		log.Printf("[SESSION] Stopped %d tables", len(ids))
	}
	m.cancel()
}

// StartIdleReaper evicts tables that have seen no command for IdleTimeout.
func (m *Manager) StartIdleReaper(interval time.Duration) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.closeIdleTables(time.Now())
		}
	}
}

func (m *Manager) closeIdleTables(now time.Time) {
	m.mu.RLock()
	var idle []string
	for id, t := range m.tables {
		if now.Sub(t.LastActivity()) > m.opts.IdleTimeout && t.DriverState() == game.StateIdle {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		log.Printf("[SESSION] Table %s idle for %s, evicting", id, m.opts.IdleTimeout)
		_ = m.evict(id)
	}
}

func (m *Manager) newTableJournal(id string) *journal.Writer {
	if m.opts.JournalDir == "" {
		return nil
	}
	w, err := journal.Create(m.opts.JournalDir, id)
	if err != nil {
		log.Printf("[JOURNAL] Failed to open journal for table %s: %v", id, err)
		return nil
	}
	return w
}
