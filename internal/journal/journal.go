// Package journal records the inputs that drove a table session as
// zstd-compressed JSON lines, and replays them onto a fresh table.
package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/playmatatu/billiards/internal/game"
)

type Kind string

const (
	KindRerack Kind = "rerack"
	KindShot   Kind = "shot"
	KindPlace  Kind = "place_cue"
	KindTick   Kind = "tick"
)

// Entry is one recorded input. Tick entries carry the digest of the frame
// they produced so a replay can prove it reached the same state.
type Entry struct {
	Seq      uint64     `json:"seq"`
	Kind     Kind       `json:"kind"`
	Tick     uint64     `json:"tick"`
	DT       float64    `json:"dt,omitempty"`
	Shot     *game.Shot `json:"shot,omitempty"`
	Position *game.Vec2 `json:"position,omitempty"`
	Digest   string     `json:"digest,omitempty"`
}

var ErrDigestMismatch = errors.New("journal: digest mismatch")

// Digest hashes the kinematic state of every ball.
func Digest(balls []game.Ball) string {
	h := xxhash.New()
	var buf [8]byte
	put := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}
	for _, b := range balls {
		put(b.Position.X)
		put(b.Position.Y)
		put(b.Velocity.X)
		put(b.Velocity.Y)
		for _, w := range b.AngularVelocity {
			put(w)
		}
		put(b.Orientation.W)
		for _, v := range b.Orientation.V {
			put(v)
		}
		if b.Active {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Writer appends entries to a compressed stream.
type Writer struct {
	mu  sync.Mutex
	seq uint64
	enc *zstd.Encoder
	w   *bufio.Writer
	f   *os.File // nil when the caller owns the underlying writer
}

// NewWriter compresses entries onto w. Close flushes the stream but does not
// close w.
func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Writer{enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

// Create opens dir/<name>.jsonl.zst for writing, creating dir if needed.
func Create(dir, name string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(Path(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	jw, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	jw.f = f
	return jw, nil
}

// Path is where Create puts the journal for name.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".jsonl.zst")
}

// Append numbers e and writes it.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return errors.New("journal: writer closed")
	}

	w.seq++
	e.Seq = w.seq
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered entries through the encoder.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	err := w.w.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	w.enc = nil
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	return err
}

// Read decodes every entry from a compressed stream.
func Read(r io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var entries []Entry
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("journal entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// ReadFile decodes the journal at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Replay applies entries to a freshly racked table and returns its driver.
// Tick entries with a digest are checked against the replayed frame.
func Replay(entries []Entry, table *game.Table, params game.Params) (*game.FrameDriver, error) {
	d, err := game.NewRackedDriver(table, params)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		switch e.Kind {
		case KindRerack:
			d.Rerack()
		case KindShot:
			if e.Shot == nil {
				return d, fmt.Errorf("journal entry %d: shot without parameters", e.Seq)
			}
			if err := d.Shoot(*e.Shot); err != nil {
				return d, fmt.Errorf("journal entry %d: %w", e.Seq, err)
			}
		case KindPlace:
			if e.Position == nil {
				return d, fmt.Errorf("journal entry %d: placement without position", e.Seq)
			}
			if err := d.PlaceCueBall(*e.Position); err != nil {
				return d, fmt.Errorf("journal entry %d: %w", e.Seq, err)
			}
		case KindTick:
			if _, err := d.Tick(e.DT); err != nil {
				return d, fmt.Errorf("journal entry %d: %w", e.Seq, err)
			}
			if e.Digest != "" {
				if got := Digest(d.Balls()); got != e.Digest {
					return d, fmt.Errorf("%w at tick %d: got=%s want=%s", ErrDigestMismatch, d.TickCount(), got, e.Digest)
				}
			}
		default:
			return d, fmt.Errorf("journal entry %d: unknown kind %q", e.Seq, e.Kind)
		}
	}
	return d, nil
}
