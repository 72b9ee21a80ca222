package journal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/playmatatu/billiards/internal/game"
)

const dt = 1.0 / 60.0

func newTable(t *testing.T) *game.Table {
	t.Helper()
	table, err := game.NewStandardTable(game.CushionRestitution)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

// record plays one shot to rest, journaling every input.
func record(t *testing.T, w *Writer, table *game.Table) *game.FrameDriver {
	t.Helper()
	d, err := game.NewRackedDriver(table, game.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	shot := game.Shot{Direction: game.NewVec2(1, 0.015), Magnitude: 1.3, Screw: -0.3, English: 0.1}
	if err := d.Shoot(shot); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Entry{Kind: KindShot, Tick: d.TickCount(), Shot: &shot}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20000 && d.State() == game.StateSimulating; i++ {
		if _, err := d.Tick(dt); err != nil {
			t.Fatal(err)
		}
		if err := w.Append(Entry{Kind: KindTick, Tick: d.TickCount(), DT: dt, Digest: Digest(d.Balls())}); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestRoundTripAndReplay(t *testing.T) {
	table := newTable(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := record(t, w, table)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 || entries[0].Kind != KindShot || entries[0].Seq != 1 {
		t.Fatalf("unexpected journal: %d entries", len(entries))
	}

	got, err := Replay(entries, table, game.DefaultParams())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if Digest(got.Balls()) != Digest(want.Balls()) {
		t.Error("replayed table differs from the recorded one")
	}
	if got.TickCount() != want.TickCount() {
		t.Errorf("ticks = %d, want %d", got.TickCount(), want.TickCount())
	}
}

func TestReplayDetectsTamperedDigest(t *testing.T) {
	table := newTable(t)
	shot := game.Shot{Direction: game.NewVec2(1, 0), Magnitude: 1}
	entries := []Entry{
		{Seq: 1, Kind: KindShot, Shot: &shot},
		{Seq: 2, Kind: KindTick, DT: dt, Digest: "deadbeef"},
	}
	if _, err := Replay(entries, table, game.DefaultParams()); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("err = %v, want ErrDigestMismatch", err)
	}
}

func TestReplayRejectsBadEntries(t *testing.T) {
	table := newTable(t)
	tests := []struct {
		name  string
		entry Entry
	}{
		{"shot without params", Entry{Seq: 1, Kind: KindShot}},
		{"place without position", Entry{Seq: 1, Kind: KindPlace}},
		{"unknown kind", Entry{Seq: 1, Kind: "teleport"}},
		{"negative dt", Entry{Seq: 1, Kind: KindTick, DT: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Replay([]Entry{tt.entry}, table, game.DefaultParams()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReplayRerackAndPlacement(t *testing.T) {
	table := newTable(t)
	pos := game.NewVec2(-0.8, 0.3)
	entries := []Entry{
		{Seq: 1, Kind: KindRerack},
		{Seq: 2, Kind: KindPlace, Position: &pos},
	}
	d, err := Replay(entries, table, game.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	cue, _ := d.Store().Get(game.CueBall)
	if cue.Position != pos {
		t.Errorf("cue at %+v, want %+v", cue.Position, pos)
	}
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(dir, "table-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Entry{Kind: KindRerack}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(Entry{Kind: KindRerack}); err == nil {
		t.Error("append after close should fail")
	}

	entries, err := ReadFile(Path(dir, "table-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != KindRerack {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDigestChangesWithState(t *testing.T) {
	table := newTable(t)
	d, _ := game.NewRackedDriver(table, game.DefaultParams())
	before := Digest(d.Balls())
	if before != Digest(d.Balls()) {
		t.Fatal("digest is not stable")
	}
	if err := d.Store().Pocket(3); err != nil {
		t.Fatal(err)
	}
	if Digest(d.Balls()) == before {
		t.Error("pocketing a ball did not change the digest")
	}
}
