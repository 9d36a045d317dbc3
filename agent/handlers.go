package agent

import (
	"context"
	"time"

	"github.com/molt-labs/molt-core/attestation"
	"github.com/molt-labs/molt-core/escrow"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/policy"
	"github.com/molt-labs/molt-core/wire"
)

// handleOrderRequest evaluates an inbound job order against this
// node's configured autonomy tier and replies with an OrderResponse.
// An accepted order immediately opens an escrow account and follows
// up with an EscrowRequest naming it, per spec.md section 4.5's
// funding flow.
func (a *Agent) handleOrderRequest(from identity.PeerIdentity, frame wire.Frame) error {
	req, err := DecodeOrderRequest(frame.Payload)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	offer, haveOffer := a.book.CurrentOffer(a.Identity())
	pricePerHour := req.Order.Requirements.MaxPricePerHour
	if haveOffer {
		pricePerHour = offer.PricePerHour
	}

	jobReq := policy.JobRequest{
		PricePerHour:  pricePerHour,
		DurationHours: req.Order.Requirements.EstimatedHours,
	}
	spent := a.spending.SpentInWindow(policy.WindowHourly, now)
	decision, evalErr := policy.Evaluate(a.tier, a.policyCfg, jobReq, a.activeJobCount(from), spent, a.book.Prices(now))

	if decision != policy.DecisionAccept {
		reason := "deferred to manual approval"
		if evalErr != nil {
			reason = evalErr.Error()
		}
		resp := OrderResponse{ID: req.ID, Accepted: false, Reason: reason}
		return a.send(from, wire.TypeOrderResponse, resp.encode())
	}

	amount := req.Order.Requirements.MaxTotalBudget
	lockedUntil := now.Add(a.escrowLock)

	challenge, err := attestation.NewChallenge()
	if err != nil {
		return err
	}
	acct := a.machine.Open(req.Order.Buyer, a.Identity(), a.arbiter, amount, a.settlementFeeBp, challenge, lockedUntil, now)

	resp := OrderResponse{ID: req.ID, Accepted: true, EscrowID: acct.ID}
	if err := a.send(from, wire.TypeOrderResponse, resp.encode()); err != nil {
		return err
	}

	a.incrActiveJobs(from, 1)

	escReq := EscrowRequest{
		EscrowID:       acct.ID,
		OrderID:        req.ID,
		Buyer:          req.Order.Buyer,
		Provider:       a.Identity(),
		Arbiter:        a.arbiter,
		Amount:         amount,
		FeeBasisPoints: a.settlementFeeBp,
		LockedUntil:    lockedUntil,
		Challenge:      challenge,
	}
	return a.send(from, wire.TypeEscrowRequest, escReq.encode())
}

// handleOrderResponse delivers the provider's decision to whichever
// local SubmitJobOrder call is waiting on it.
func (a *Agent) handleOrderResponse(from identity.PeerIdentity, frame wire.Frame) error {
	resp, err := DecodeOrderResponse(frame.Payload)
	if err != nil {
		return err
	}

	a.mu.Lock()
	pending, ok := a.pendingByID[resp.ID]
	if ok {
		delete(a.pendingByID, resp.ID)
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownOrder
	}

	select {
	case pending.result <- resp:
	default:
	}
	return nil
}

// handleEscrowRequest is the buyer side of handleOrderRequest's
// follow-up: it mirrors the provider-opened escrow account locally by
// opening one with the same challenge, which (per IDFromChallenge)
// always derives the same ID the provider already assigned it.
func (a *Agent) handleEscrowRequest(from identity.PeerIdentity, frame wire.Frame) error {
	req, err := DecodeEscrowRequest(frame.Payload)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	acct := a.machine.Open(req.Buyer, req.Provider, req.Arbiter, req.Amount, req.FeeBasisPoints, req.Challenge, req.LockedUntil, now)
	if acct.ID != req.EscrowID {
		return ErrUnknownOrder
	}

	log.Infof("agent: escrow %s proposed by %s, amount=%d", req.EscrowID, from, req.Amount)
	return nil
}

// handleEscrowSignal mirrors a state transition another peer already
// committed against the shared ledger into this node's own local
// Machine. Lock and Settle are idempotent per transaction reference
// (token.Ledger's contract), so replaying the same transition from
// more than one peer against a shared ledger backend is safe; a
// deployment with per-peer ledger views would need a different
// synchronization story, which spec.md section 4.5 leaves out of
// scope.
func (a *Agent) handleEscrowSignal(from identity.PeerIdentity, frame wire.Frame) error {
	sig, err := DecodeEscrowSignal(frame.Payload)
	if err != nil {
		return err
	}

	acct, err := a.machine.Get(sig.EscrowID)
	if err != nil {
		return ErrUnknownOrder
	}

	ctx := context.Background()
	now := a.clock.Now()

	switch sig.Signal {
	case SignalFund:
		err = a.machine.Fund(ctx, sig.EscrowID, acct.Buyer, now)
	case SignalRelease:
		err = a.machine.Release(ctx, sig.EscrowID, acct.Buyer, now)
		if err == nil {
			a.incrActiveJobs(acct.Provider, -1)
		}
	case SignalDispute:
		err = a.machine.Dispute(sig.EscrowID, from, now)
	case SignalResolve:
		err = a.machine.Resolve(ctx, sig.EscrowID, acct.Arbiter, sig.ResolveReleaseToProvider, now)
		if err == nil {
			a.incrActiveJobs(acct.Provider, -1)
		}
	}
	if err != nil {
		log.Warnf("agent: mirroring escrow signal %s for %s failed: %v", sig.Signal, sig.EscrowID, err)
	}
	return nil
}

// handleAttestation verifies an inbound execution attestation against
// the challenge bound to the escrow account it settles, and if
// valid, releases the escrow to the provider — completing the
// happy-path settlement flow of spec.md section 8 without requiring a
// manual Release call.
func (a *Agent) handleAttestation(from identity.PeerIdentity, frame wire.Frame) error {
	att, err := attestation.DecodeExecutionAttestation(frame.Payload)
	if err != nil {
		return err
	}

	acct, err := a.findEscrowForJob(att.Payload.JobID)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	if err := attestation.VerifyExecutionAttestation(att, acct.Challenge, a.Identity(), now); err != nil {
		return err
	}

	return a.ReleaseEscrow(acct.ID)
}

// findEscrowForJob maps an attestation's job ID back to the escrow
// account it settles. CompleteJob always sets a job's attestation
// payload to the escrow's own ID, so this lookup always succeeds for
// attestations issued through this package; it does a linear scan over
// funded accounts, which a production deployment would replace with an
// index keyed by job ID directly.
func (a *Agent) findEscrowForJob(jobID attestation.JobID) (escrow.EscrowAccount, error) {
	for _, acct := range a.machine.FundedAccounts() {
		if escrow.ID(jobID) == acct.ID {
			return acct, nil
		}
	}
	return escrow.EscrowAccount{}, ErrUnknownOrder
}

// ChallengeFor returns the attestation challenge bound to the named
// escrow account, if it exists.
func (a *Agent) ChallengeFor(id escrow.ID) (attestation.Challenge, bool) {
	acct, err := a.machine.Get(id)
	if err != nil {
		return attestation.Challenge{}, false
	}
	return acct.Challenge, true
}

// CompleteJob is the provider's side of finishing a funded job: it
// issues a signed execution attestation over payload, bound to the
// challenge the escrow account was opened with, and sends it to the
// buyer so the buyer's handleAttestation can verify it and release the
// escrow. payload.JobID is always overwritten with id, so the escrow
// account an attestation settles is never left to caller convention.
// This node does not release the escrow itself; only the buyer or the
// arbiter may do that (after a dispute, only the arbiter, via Resolve).
func (a *Agent) CompleteJob(id escrow.ID, payload attestation.ExecutionPayload, ttl time.Duration) error {
	acct, err := a.machine.Get(id)
	if err != nil {
		return err
	}
	payload.JobID = attestation.JobID(id)

	now := a.clock.Now()
	att := attestation.IssueExecutionAttestation(a.wallet, payload, acct.Challenge, acct.Buyer, now, ttl)

	w := wire.NewWriter()
	att.Encode(w)
	return a.send(acct.Buyer, wire.TypeAttestation, w.Bytes())
}

// send wraps payload in a wire.Frame of type t and writes it to peer.
func (a *Agent) send(peer identity.PeerIdentity, t wire.MessageType, payload []byte) error {
	return a.conns.Send(peer, wire.Frame{Type: t, Payload: payload})
}

// FundEscrow locks this node's funds into id via the ledger, moving it
// to Funded, then notifies the provider and arbiter so they can mirror
// the transition locally.
func (a *Agent) FundEscrow(id escrow.ID) error {
	now := a.clock.Now()
	if err := a.machine.Fund(context.Background(), id, a.Identity(), now); err != nil {
		return err
	}
	return a.notifyCounterparties(id, EscrowSignal{EscrowID: id, Signal: SignalFund})
}

// ReleaseEscrow settles id to its provider, moving it to Released.
func (a *Agent) ReleaseEscrow(id escrow.ID) error {
	now := a.clock.Now()
	if err := a.machine.Release(context.Background(), id, a.Identity(), now); err != nil {
		return err
	}
	return a.notifyCounterparties(id, EscrowSignal{EscrowID: id, Signal: SignalRelease})
}

// DisputeEscrow raises a dispute on id, halting Release/Refund until
// the arbiter calls ResolveEscrow.
func (a *Agent) DisputeEscrow(id escrow.ID) error {
	now := a.clock.Now()
	if err := a.machine.Dispute(id, a.Identity(), now); err != nil {
		return err
	}
	return a.notifyCounterparties(id, EscrowSignal{EscrowID: id, Signal: SignalDispute})
}

// ResolveEscrow settles a disputed account as the named arbiter.
func (a *Agent) ResolveEscrow(id escrow.ID, releaseToProvider bool) error {
	now := a.clock.Now()
	if err := a.machine.Resolve(context.Background(), id, a.Identity(), releaseToProvider, now); err != nil {
		return err
	}
	return a.notifyCounterparties(id, EscrowSignal{EscrowID: id, Signal: SignalResolve, ResolveReleaseToProvider: releaseToProvider})
}

// notifyCounterparties sends sig to every party on the escrow account
// other than this node itself, best-effort: a send failure is logged,
// not returned, since the local state transition already committed.
func (a *Agent) notifyCounterparties(id escrow.ID, sig EscrowSignal) error {
	acct, err := a.machine.Get(id)
	if err != nil {
		return err
	}

	self := a.Identity()
	payload := sig.encode()
	for _, peer := range []identity.PeerIdentity{acct.Buyer, acct.Provider, acct.Arbiter} {
		if peer.Equal(self) || peer.IsZero() {
			continue
		}
		if err := a.send(peer, wire.TypeEscrowSignal, payload); err != nil {
			log.Warnf("agent: notifying %s of escrow signal %s failed: %v", peer, sig.Signal, err)
		}
	}
	return nil
}
