// Package orderbook implements the capacity announcement ledger and
// job matching of spec.md section 4.4: providers publish signed
// CapacityAnnouncements, buyers submit JobOrders, and match_order
// scores surviving offers deterministically.
//
// Grounded on channeldb/graph.go's bounded, pruned, dedup-by-key
// channel cache for the book's eviction shape, and on
// routing/pathfind_test.go's weighted-score-then-sort style for
// matching.
package orderbook

import (
	"time"

	molcrypto "github.com/molt-labs/molt-core/crypto"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/molttypes"
	"github.com/molt-labs/molt-core/wire"
	"lukechampine.com/uint128"
)

const announcementDomain = "capacity_announcement_v1"

// MaxOfferLifetime bounds how far in the future expires_at may sit
// past issued_at, per spec.md section 4.4's offer-lifetime edge case.
const MaxOfferLifetime = 24 * time.Hour

// MaxLocationLen bounds the optional free-form location tag.
const MaxLocationLen = 64

// CapacityAnnouncement is a provider's signed offer of compute
// capacity, per spec.md section 3.
type CapacityAnnouncement struct {
	Peer           identity.PeerIdentity
	Gpus           []molttypes.GpuDescriptor
	PricePerHour   uint64
	AvailableHours uint32
	Features       molttypes.FeatureSet
	Location       string // empty string means "unspecified"
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Sequence       uint64
	Signature      molcrypto.Signature
}

// signedPayload returns the canonical bytes the announcement's
// signature covers: every field but the signature, in fixed order.
func (a CapacityAnnouncement) signedPayload() []byte {
	w := wire.NewWriter()
	w.WriteBytes(a.Peer.Bytes())
	molttypes.WriteGpuList(w, a.Gpus)
	w.WriteUint64(a.PricePerHour)
	w.WriteUint32(a.AvailableHours)
	a.Features.WriteTo(w)
	w.WriteString(a.Location)
	w.WriteInt64(a.IssuedAt.Unix())
	w.WriteInt64(a.ExpiresAt.Unix())
	w.WriteUint64(a.Sequence)
	return w.Bytes()
}

// Sign signs the announcement with signer, which must own the
// identity named in a.Peer.
func (a *CapacityAnnouncement) Sign(signer *identity.Wallet) {
	a.Signature = signer.Sign(announcementDomain, a.signedPayload())
}

// Verify checks the announcement's signature and structural
// timestamp invariants, but not expiry against a clock — callers that
// care about current validity call IsExpired separately.
func (a CapacityAnnouncement) Verify() error {
	if !a.IssuedAt.Before(a.ExpiresAt) {
		return ErrInvalidAnnouncement
	}
	if a.ExpiresAt.Sub(a.IssuedAt) > MaxOfferLifetime {
		return ErrInvalidAnnouncement
	}
	if len(a.Gpus) == 0 {
		return ErrInvalidAnnouncement
	}
	if len(a.Location) > MaxLocationLen {
		return ErrInvalidAnnouncement
	}
	return molcrypto.VerifyStrict(a.Peer.VerifyingKey(), announcementDomain, a.signedPayload(), a.Signature)
}

// IsExpired reports whether the announcement is no longer valid as of
// now.
func (a CapacityAnnouncement) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Encode appends the full wire encoding of a, signature included, so
// it can travel as a wire.TypeAnnouncement payload. This is the only
// place the signature itself is serialized; signedPayload covers
// everything else.
func (a CapacityAnnouncement) Encode(w *wire.Writer) {
	w.WriteFixed(a.signedPayload())
	w.WriteFixed(a.Signature.Bytes())
}

// DecodeAnnouncement parses bytes written by Encode. It does not call
// Verify; callers that receive an announcement over the wire (gossip)
// are responsible for verifying it before trusting its contents.
func DecodeAnnouncement(b []byte) (CapacityAnnouncement, error) {
	r := wire.NewReader(b)
	peerBytes := r.ReadBytes(32)
	gpus := molttypes.ReadGpuList(r)
	price := r.ReadUint64()
	hours := r.ReadUint32()
	features := molttypes.ReadFeatureSet(r)
	location := r.ReadString(MaxLocationLen)
	issued := r.ReadInt64()
	expires := r.ReadInt64()
	seq := r.ReadUint64()
	sigBytes := r.ReadFixed(64)
	if r.Err() != nil {
		return CapacityAnnouncement{}, r.Err()
	}

	peer, err := identity.PeerIdentityFromBytes(peerBytes)
	if err != nil {
		return CapacityAnnouncement{}, err
	}
	sig, err := molcrypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return CapacityAnnouncement{}, err
	}

	return CapacityAnnouncement{
		Peer:           peer,
		Gpus:           gpus,
		PricePerHour:   price,
		AvailableHours: hours,
		Features:       features,
		Location:       location,
		IssuedAt:       time.Unix(issued, 0).UTC(),
		ExpiresAt:      time.Unix(expires, 0).UTC(),
		Sequence:       seq,
		Signature:      sig,
	}, nil
}

// Requirements is a buyer's hard and soft constraints on the capacity
// it wants to rent, per spec.md section 3.
type Requirements struct {
	MinGpus           uint32
	MinVramGB         uint32
	Model             string // empty means "any model"
	RequiredFeatures  molttypes.FeatureSet
	MaxPricePerHour   uint64
	EstimatedHours    uint32
	MaxTotalBudget    uint64
	PreferredLocation string // empty means "no locality preference"
}

// Validate checks the requirements are internally consistent: the
// worst-case total cost implied by max_price_per_hour must not exceed
// max_total_budget, per spec.md section 4.4's budget edge case.
// Carried in a 128-bit intermediate for the same overflow reason
// settlement.ComputePayout is.
func (r Requirements) Validate() error {
	if r.MinGpus == 0 || r.EstimatedHours == 0 {
		return ErrInvalidRequirements
	}
	step := uint128.From64(r.MaxPricePerHour).Mul64(uint64(r.MinGpus))
	if step.Hi != 0 {
		return ErrInvalidRequirements
	}
	worst := step.Mul64(uint64(r.EstimatedHours))
	if worst.Hi != 0 || worst.Lo > r.MaxTotalBudget {
		return ErrInvalidRequirements
	}
	return nil
}

// JobStatus is a JobOrder's position in its lifecycle, per spec.md
// section 3.
type JobStatus uint8

const (
	JobPending JobStatus = iota + 1
	JobMatched
	JobEscrowed
	JobRunning
	JobCompleted
	JobFailed
	JobRefunded
	JobDisputed
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobMatched:
		return "matched"
	case JobEscrowed:
		return "escrowed"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobRefunded:
		return "refunded"
	case JobDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// JobOrder is a buyer's submitted request for capacity, per spec.md
// section 3.
type JobOrder struct {
	Buyer        identity.PeerIdentity
	Requirements Requirements
	SubmittedAt  time.Time
	ExpiresAt    time.Time
	Status       JobStatus
}

// Encode appends the canonical wire encoding of o to w. JobOrder
// travels unsigned: it is carried point-to-point directly from buyer
// to a chosen provider rather than gossiped, so it needs no
// broadcast-replay protection the way CapacityAnnouncement does.
func (o JobOrder) Encode(w *wire.Writer) {
	w.WriteBytes(o.Buyer.Bytes())
	w.WriteUint32(o.Requirements.MinGpus)
	w.WriteUint32(o.Requirements.MinVramGB)
	w.WriteString(o.Requirements.Model)
	o.Requirements.RequiredFeatures.WriteTo(w)
	w.WriteUint64(o.Requirements.MaxPricePerHour)
	w.WriteUint32(o.Requirements.EstimatedHours)
	w.WriteUint64(o.Requirements.MaxTotalBudget)
	w.WriteString(o.Requirements.PreferredLocation)
	w.WriteInt64(o.SubmittedAt.Unix())
	w.WriteInt64(o.ExpiresAt.Unix())
	w.WriteUint8(uint8(o.Status))
}

// DecodeJobOrder parses bytes written by Encode.
func DecodeJobOrder(r *wire.Reader) (JobOrder, error) {
	buyerBytes := r.ReadBytes(32)
	minGpus := r.ReadUint32()
	minVram := r.ReadUint32()
	model := r.ReadString(maxModelLenForOrders)
	features := molttypes.ReadFeatureSet(r)
	maxPrice := r.ReadUint64()
	estHours := r.ReadUint32()
	maxBudget := r.ReadUint64()
	location := r.ReadString(MaxLocationLen)
	submitted := r.ReadInt64()
	expires := r.ReadInt64()
	status := r.ReadUint8()
	if r.Err() != nil {
		return JobOrder{}, r.Err()
	}

	buyer, err := identity.PeerIdentityFromBytes(buyerBytes)
	if err != nil {
		return JobOrder{}, err
	}

	return JobOrder{
		Buyer: buyer,
		Requirements: Requirements{
			MinGpus:           minGpus,
			MinVramGB:         minVram,
			Model:             model,
			RequiredFeatures:  features,
			MaxPricePerHour:   maxPrice,
			EstimatedHours:    estHours,
			MaxTotalBudget:    maxBudget,
			PreferredLocation: location,
		},
		SubmittedAt: time.Unix(submitted, 0).UTC(),
		ExpiresAt:   time.Unix(expires, 0).UTC(),
		Status:      JobStatus(status),
	}, nil
}

const maxModelLenForOrders = 256

// Match is one surviving, scored candidate offer for a JobOrder,
// returned by Orderbook.MatchOrder in descending score order.
type Match struct {
	Offer          CapacityAnnouncement
	Score          float64
	AllocatedHours uint32
	TotalPrice     uint64
}
