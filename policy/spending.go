package policy

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/molt-labs/molt-core/wire"
	bbolt "go.etcd.io/bbolt"
)

// WindowKind names one of the two budget windows spec.md section 4.8
// tracks spend against.
type WindowKind uint8

const (
	WindowHourly WindowKind = iota + 1
	WindowDaily
)

// Duration returns the wall-clock length of the window.
func (k WindowKind) Duration() time.Duration {
	switch k {
	case WindowDaily:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// windowStart truncates t to the start of the window kind's current
// bucket.
func windowStart(kind WindowKind, t time.Time) time.Time {
	return t.Truncate(kind.Duration())
}

// SpendingEntry is one append-only spending.log record: a committed
// amount against a specific window, per spec.md section 6's
// "{window_kind, window_start, amount, txn_ref}" layout.
type SpendingEntry struct {
	Kind        WindowKind
	WindowStart time.Time
	Amount      uint64
	TxnRef      [32]byte
}

func (e SpendingEntry) encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(uint8(e.Kind))
	w.WriteInt64(e.WindowStart.Unix())
	w.WriteUint64(e.Amount)
	w.WriteFixed(e.TxnRef[:])
	return w.Bytes()
}

func decodeSpendingEntry(b []byte) (SpendingEntry, error) {
	r := wire.NewReader(b)
	kind := WindowKind(r.ReadUint8())
	start := r.ReadInt64()
	amount := r.ReadUint64()
	ref := r.ReadFixed(32)
	if r.Err() != nil {
		return SpendingEntry{}, r.Err()
	}
	var txnRef [32]byte
	copy(txnRef[:], ref)
	return SpendingEntry{
		Kind:        kind,
		WindowStart: time.Unix(start, 0).UTC(),
		Amount:      amount,
		TxnRef:      txnRef,
	}, nil
}

const (
	spendingDbFilePermission = 0600
	spendingBucketName       = "spending_log"
)

// SpendingStore is the bbolt-backed append-only spending.log,
// mirroring escrow.Store's shape over the same embedded key/value
// store.
type SpendingStore struct {
	db *bbolt.DB
}

// OpenSpendingStore opens or creates the spending.log at path.
func OpenSpendingStore(path string) (*SpendingStore, error) {
	db, err := bbolt.Open(path, spendingDbFilePermission, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(spendingBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SpendingStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *SpendingStore) Close() error {
	return s.db.Close()
}

// Append writes e as the next record in the log.
func (s *SpendingStore) Append(e SpendingEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(spendingBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bucket.Put(key[:], e.encode())
	})
}

// Replay reads every record in insertion order and calls fn for each.
func (s *SpendingStore) Replay(fn func(SpendingEntry) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(spendingBucketName))
		return bucket.ForEach(func(_, v []byte) error {
			e, err := decodeSpendingEntry(v)
			if err != nil {
				return err
			}
			return fn(e)
		})
	})
}

type windowState struct {
	start time.Time
	spent uint64
}

// SpendingTracker is the in-memory view of a buyer's spend per window,
// durable across restarts via an attached SpendingStore. Property P9
// (spec.md section 7): after a restart mid-window, SpentInWindow is at
// least the sum of all committed amounts whose timestamps fall inside
// that window.
type SpendingTracker struct {
	mu      sync.Mutex
	store   *SpendingStore
	windows map[WindowKind]windowState
}

// NewSpendingTracker returns an empty tracker with no durable log.
func NewSpendingTracker() *SpendingTracker {
	return &SpendingTracker{windows: make(map[WindowKind]windowState)}
}

// NewSpendingTrackerFromStore rebuilds a tracker's window state by
// replaying store, keeping only the entries belonging to the latest
// window_start seen for each kind (older entries belong to windows
// that have already closed). Committed spend within a window that is
// still active as of now is retained per spec.md section 4.8; a
// window whose deadline has already passed starts fresh at zero.
func NewSpendingTrackerFromStore(store *SpendingStore, now time.Time) (*SpendingTracker, error) {
	t := &SpendingTracker{store: store, windows: make(map[WindowKind]windowState)}

	type accum struct {
		start time.Time
		spent uint64
	}
	latest := make(map[WindowKind]accum)

	err := store.Replay(func(e SpendingEntry) error {
		cur, ok := latest[e.Kind]
		switch {
		case !ok || e.WindowStart.After(cur.start):
			latest[e.Kind] = accum{start: e.WindowStart, spent: e.Amount}
		case e.WindowStart.Equal(cur.start):
			cur.spent += e.Amount
			latest[e.Kind] = cur
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for kind, a := range latest {
		if a.start.Add(kind.Duration()).After(now) {
			t.windows[kind] = windowState{start: a.start, spent: a.spent}
		}
	}
	return t, nil
}

// Commit records a spend of amount against kind's current window,
// persisting to the durable log (if attached) before updating the
// in-memory counter, so a failed persist never silently under-reports
// committed spend after a crash.
func (t *SpendingTracker) Commit(kind WindowKind, amount uint64, now time.Time, txnRef [32]byte) error {
	start := windowStart(kind, now)

	if t.store != nil {
		entry := SpendingEntry{Kind: kind, WindowStart: start, Amount: amount, TxnRef: txnRef}
		if err := t.store.Append(entry); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ws, ok := t.windows[kind]
	if !ok || !ws.start.Equal(start) {
		ws = windowState{start: start}
	}
	ws.spent += amount
	t.windows[kind] = ws
	return nil
}

// SpentInWindow returns the amount already committed in kind's window
// containing now. A window with no commits, or one that has since
// rolled over, reports zero without mutating tracker state.
func (t *SpendingTracker) SpentInWindow(kind WindowKind, now time.Time) uint64 {
	start := windowStart(kind, now)

	t.mu.Lock()
	defer t.mu.Unlock()

	ws, ok := t.windows[kind]
	if !ok || !ws.start.Equal(start) {
		return 0
	}
	return ws.spent
}
