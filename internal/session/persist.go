package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playmatatu/billiards/internal/game"
)

// EventsChannel is the Redis channel settled-table events are published on.
const EventsChannel = "table_events"

// Snapshot is the settled state of a table as cached in Redis.
type Snapshot struct {
	TableID    string           `json:"table_id"`
	State      game.DriverState `json:"state"`
	Tick       uint64           `json:"tick"`
	ShotNumber int              `json:"shot_number"`
	Balls      []game.Ball      `json:"balls"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// TableEvent is published on EventsChannel.
type TableEvent struct {
	Type       string `json:"type"`
	TableID    string `json:"table_id"`
	ShotNumber int    `json:"shot_number,omitempty"`
	Pocketed   []int  `json:"pocketed,omitempty"`
	Ticks      int    `json:"ticks,omitempty"`
}

// ShotRecord is one row of shot history.
type ShotRecord struct {
	ID           int64     `db:"id" json:"id"`
	TableID      string    `db:"table_id" json:"table_id"`
	ShotNumber   int       `db:"shot_number" json:"shot_number"`
	DirectionX   float64   `db:"direction_x" json:"direction_x"`
	DirectionY   float64   `db:"direction_y" json:"direction_y"`
	Magnitude    float64   `db:"magnitude" json:"magnitude"`
	Screw        float64   `db:"screw" json:"screw"`
	English      float64   `db:"english" json:"english"`
	Pocketed     string    `db:"pocketed" json:"pocketed"`
	FirstContact int       `db:"first_contact" json:"first_contact"`
	BallHits     int       `db:"ball_hits" json:"ball_hits"`
	CushionHits  int       `db:"cushion_hits" json:"cushion_hits"`
	Ticks        int       `db:"ticks" json:"ticks"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	FinalState   string    `db:"final_state" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func snapshotKey(id string) string {
	return "table:" + id + ":state"
}

func (m *Manager) saveSnapshot(t *Table) {
	if m.rdb == nil {
		return
	}
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		log.Printf("[REDIS] Failed to marshal snapshot for table %s: %v", t.ID, err)
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()
	if err := m.rdb.SetEx(ctx, snapshotKey(t.ID), data, m.opts.SnapshotTTL).Err(); err != nil {
		log.Printf("[REDIS] Failed to save snapshot for table %s: %v", t.ID, err)
	}
}

func (m *Manager) loadSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	if m.rdb == nil {
		return nil, ErrTableNotFound
	}
	data, err := m.rdb.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if len(snap.Balls) != game.NumBalls {
		log.Printf("[REDIS] Snapshot for table %s has %d balls, ignoring", id, len(snap.Balls))
		return nil, ErrTableNotFound
	}
	return &snap, nil
}

func (m *Manager) deleteSnapshot(id string) {
	if m.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()
	if err := m.rdb.Del(ctx, snapshotKey(id)).Err(); err != nil {
		log.Printf("[REDIS] Failed to delete snapshot for table %s: %v", id, err)
	}
}

func (m *Manager) publishEvent(ev TableEvent) {
	if m.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
	defer cancel()
	if err := m.rdb.Publish(ctx, EventsChannel, data).Err(); err != nil {
		log.Printf("[REDIS] Failed to publish %s for table %s: %v", ev.Type, ev.TableID, err)
	}
}

// SubscribeEvents delivers table events published by any instance until ctx
// is done.
func (m *Manager) SubscribeEvents(ctx context.Context, fn func(TableEvent)) {
	if m.rdb == nil {
		log.Println("[REDIS] Redis client not set; table event subscriber not started")
		return
	}
	pubsub := m.rdb.Subscribe(ctx, EventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[REDIS] %s subscriber started", EventsChannel)
		for msg := range ch {
			var ev TableEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[REDIS] invalid table event payload: %v", err)
				continue
			}
			fn(ev)
		}
	}()
}

func (m *Manager) recordTableCreated(t *Table) {
	if m.db == nil {
		return
	}
	_, err := m.db.Exec(m.db.Rebind(`INSERT INTO table_sessions (id, created_at) VALUES (?, ?)`), t.ID, t.CreatedAt.UTC())
	if err != nil {
		log.Printf("[DB] Failed to record table %s: %v", t.ID, err)
	}
}

// recordTableReopened clears closed_at for a restored table, or records it
// if this database has never seen it.
func (m *Manager) recordTableReopened(t *Table) {
	if m.db == nil {
		return
	}
	res, err := m.db.Exec(m.db.Rebind(`UPDATE table_sessions SET closed_at = NULL WHERE id = ?`), t.ID)
	if err != nil {
		log.Printf("[DB] Failed to reopen table %s: %v", t.ID, err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		m.recordTableCreated(t)
	}
}

func (m *Manager) recordTableClosed(id string) {
	if m.db == nil {
		return
	}
	_, err := m.db.Exec(m.db.Rebind(`UPDATE table_sessions SET closed_at = ? WHERE id = ?`), time.Now().UTC(), id)
	if err != nil {
		log.Printf("[DB] Failed to close table %s: %v", id, err)
	}
}

func (m *Manager) recordShot(tableID string, out *shotOutcome, balls []game.Ball) {
	if m.db == nil {
		return
	}

	pocketed, _ := json.Marshal(out.pocketed)
	if out.pocketed == nil {
		pocketed = []byte("[]")
	}
	final, err := json.Marshal(balls)
	if err != nil {
		log.Printf("[DB] Failed to marshal final state for table %s: %v", tableID, err)
		return
	}

	_, err = m.db.Exec(m.db.Rebind(
		`INSERT INTO shots (table_id, shot_number, direction_x, direction_y, magnitude, screw, english,
			pocketed, first_contact, ball_hits, cushion_hits, ticks, duration_ms, final_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tableID, out.number, out.shot.Direction.X, out.shot.Direction.Y, out.shot.Magnitude, out.shot.Screw, out.shot.English,
		string(pocketed), out.firstContact, out.ballHits, out.cushionHits, out.ticks,
		time.Since(out.startedAt).Milliseconds(), string(final), time.Now().UTC(),
	)
	if err != nil {
		log.Printf("[DB] Failed to record shot %d for table %s: %v", out.number, tableID, err)
	}
}

// History returns the recorded shots of a table, oldest first.
func (m *Manager) History(ctx context.Context, tableID string) ([]ShotRecord, error) {
	if m.db == nil {
		return []ShotRecord{}, nil
	}
	shots := []ShotRecord{}
	err := m.db.SelectContext(ctx, &shots, m.db.Rebind(
		`SELECT id, table_id, shot_number, direction_x, direction_y, magnitude, screw, english,
			pocketed, first_contact, ball_hits, cushion_hits, ticks, duration_ms, final_state, created_at
		FROM shots WHERE table_id = ? ORDER BY shot_number`), tableID)
	return shots, err
}
