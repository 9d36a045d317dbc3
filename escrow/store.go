package escrow

import (
	"encoding/binary"
	"time"

	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
	bbolt "go.etcd.io/bbolt"
)

const (
	dbFilePermission = 0600
	logBucketName    = "escrow_log"
)

// EventKind names one recorded transition in escrow.log.
type EventKind uint8

const (
	EventOpened EventKind = iota + 1
	EventFunded
	EventReleased
	EventRefunded
	EventDisputed
	EventResolved
)

// Event is one append-only escrow.log record: a full snapshot of an
// account's state immediately after a transition. Persisting the
// whole snapshot rather than a delta keeps replay trivial — the last
// event for a given ID is always that account's current state.
type Event struct {
	Kind    EventKind
	Account EscrowAccount
	At      time.Time
}

func (e Event) encode() []byte {
	w := wire.NewWriter()
	w.WriteUint8(uint8(e.Kind))
	w.WriteFixed(e.Account.ID[:])
	w.WriteBytes(e.Account.Buyer.Bytes())
	w.WriteBytes(e.Account.Provider.Bytes())
	w.WriteBytes(e.Account.Arbiter.Bytes())
	w.WriteUint64(e.Account.Amount)
	w.WriteUint32(e.Account.FeeBasisPoints)
	w.WriteFixed(e.Account.Challenge[:])
	w.WriteUint8(uint8(e.Account.State))
	w.WriteInt64(e.Account.CreatedAt.Unix())
	w.WriteInt64(e.Account.LockedUntil.Unix())
	disputed := uint8(0)
	if e.Account.Disputed {
		disputed = 1
	}
	w.WriteUint8(disputed)
	w.WriteInt64(e.At.Unix())
	return w.Bytes()
}

func decodeEvent(b []byte) (Event, error) {
	r := wire.NewReader(b)
	kind := EventKind(r.ReadUint8())
	var id ID
	copy(id[:], r.ReadFixed(16))
	buyerBytes := r.ReadBytes(64)
	providerBytes := r.ReadBytes(64)
	arbiterBytes := r.ReadBytes(64)
	amount := r.ReadUint64()
	feeBasisPoints := r.ReadUint32()
	var challenge attestation.Challenge
	copy(challenge[:], r.ReadFixed(len(challenge)))
	state := State(r.ReadUint8())
	createdAt := r.ReadInt64()
	lockedUntil := r.ReadInt64()
	disputed := r.ReadUint8()
	at := r.ReadInt64()
	if r.Err() != nil {
		return Event{}, r.Err()
	}

	buyer, err := identity.PeerIdentityFromBytes(buyerBytes)
	if err != nil {
		return Event{}, err
	}
	provider, err := identity.PeerIdentityFromBytes(providerBytes)
	if err != nil {
		return Event{}, err
	}
	arbiter, err := identity.PeerIdentityFromBytes(arbiterBytes)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Kind: kind,
		Account: EscrowAccount{
			ID:             id,
			Buyer:          buyer,
			Provider:       provider,
			Arbiter:        arbiter,
			Amount:         amount,
			FeeBasisPoints: feeBasisPoints,
			Challenge:      challenge,
			State:          state,
			CreatedAt:      time.Unix(createdAt, 0).UTC(),
			LockedUntil:    time.Unix(lockedUntil, 0).UTC(),
			Disputed:       disputed == 1,
		},
		At: time.Unix(at, 0).UTC(),
	}, nil
}

// Store is the bbolt-backed append-only escrow.log, grounded in
// channeldb/db.go's DB wrapper over the same embedded key/value store
// (the teacher uses boltdb/bolt directly; MOLT uses its actively
// maintained fork go.etcd.io/bbolt).
type Store struct {
	db *bbolt.DB
}

// OpenStore opens or creates the escrow.log at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(logBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes ev as the next record in the log.
func (s *Store) Append(ev Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return bucket.Put(key[:], ev.encode())
	})
}

// Replay reads every record in insertion order and calls fn for each,
// so a caller can reconstruct in-memory state (e.g. Machine.accounts)
// after a restart. Records are delivered oldest-first; since each
// event carries a full snapshot, the last event seen for a given
// account ID is that account's current state.
func (s *Store) Replay(fn func(Event) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucketName))
		return bucket.ForEach(func(_, v []byte) error {
			ev, err := decodeEvent(v)
			if err != nil {
				return err
			}
			return fn(ev)
		})
	})
}

