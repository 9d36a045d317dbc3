package escrow

import (
	"context"
	"sync"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/internal/clockutil"
	"github.com/molt-labs/molt-core/internal/tickerutil"
)

// TimeoutResolver periodically scans a Machine for funded accounts
// whose locked_until has passed and refunds them, giving buyers the
// liveness guarantee of spec.md section 4.5: escrowed funds are never
// stuck forever just because a provider went silent.
//
// Directly adapted from contractcourt's htlcTimeoutResolver — a
// background watcher that force-resolves a stuck on-chain HTLC once
// its CLTV height expires — rewritten against a wall-clock
// locked_until deadline and a ticker instead of a chain-notifier
// height subscription.
type TimeoutResolver struct {
	machine *Machine
	clock   clockutil.Clock
	ticker  tickerutil.Ticker

	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

// NewTimeoutResolver returns a resolver that will scan machine every
// time ticker fires once Start is called.
func NewTimeoutResolver(machine *Machine, clock clockutil.Clock, ticker tickerutil.Ticker) *TimeoutResolver {
	return &TimeoutResolver{
		machine: machine,
		clock:   clock,
		ticker:  ticker,
		quit:    make(chan struct{}),
	}
}

// Start begins the background scan loop. Safe to call once.
func (r *TimeoutResolver) Start() {
	r.ticker.Start()
	r.wg.Add(1)
	go r.run()
}

// Stop halts the scan loop and waits for it to exit.
func (r *TimeoutResolver) Stop() {
	r.quitOnce.Do(func() { close(r.quit) })
	r.ticker.Stop()
	r.wg.Wait()
}

func (r *TimeoutResolver) run() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ticker.Ticks():
			r.sweep()
		case <-r.quit:
			return
		}
	}
}

// sweep refunds every funded account whose locked_until has passed.
// Errors from an individual refund are logged and do not halt the
// sweep; a stuck ledger call will simply be retried on the next tick.
// The resolver itself is not a party to the escrow, so it calls Refund
// with the zero identity; Refund's own post-timeout any-caller rule is
// what authorizes the call, not the caller's identity.
func (r *TimeoutResolver) sweep() {
	now := r.clock.Now()
	for _, acct := range r.machine.FundedAccounts() {
		if now.Before(acct.LockedUntil) {
			continue
		}
		if err := r.machine.Refund(context.Background(), acct.ID, identity.PeerIdentity{}, now); err != nil {
			log.Warnf("timeout resolver: refund of escrow %s failed: %v", acct.ID, err)
		}
	}
}
