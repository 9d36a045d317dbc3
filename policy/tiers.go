// Package policy implements the autonomy-tier acceptance predicate and
// persisted spending tracker of spec.md section 4.8: provider and
// buyer policies that gate automatic job acceptance without a human in
// the loop.
//
// Grounded on rpcserver.go's request-gating checks (budget/limit
// comparisons run before allowing an RPC-initiated action) for the
// predicate's shape, and routing's pathfinding cost normalization for
// the Aggressive tier's market-percentile floor.
package policy

import (
	"sort"

	"lukechampine.com/uint128"
)

// AutonomyTier is the operator-selected level of automatic decision
// making, per spec.md section 4.8.
type AutonomyTier uint8

const (
	TierConservative AutonomyTier = iota
	TierModerate
	TierAggressive
)

func (t AutonomyTier) String() string {
	switch t {
	case TierConservative:
		return "conservative"
	case TierModerate:
		return "moderate"
	case TierAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a job request against the
// configured autonomy tier.
type Decision uint8

const (
	// DecisionDefer means the tier never decides automatically and the
	// job must go to an out-of-band human approval channel
	// (Conservative's behavior, always).
	DecisionDefer Decision = iota
	DecisionAccept
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionDefer:
		return "defer"
	case DecisionAccept:
		return "accept"
	case DecisionDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Config holds the absolute bounds Moderate and Aggressive both honor.
type Config struct {
	MinPricePerHour   uint64
	MaxDurationHours  uint32
	MaxConcurrentJobs uint32
	HourlyBudget      uint64

	// MarketPercentile is the order statistic (in [0,1]) Aggressive
	// relaxes MinPricePerHour toward — e.g. 0.25 for the 25th
	// percentile of currently visible market prices.
	MarketPercentile float64
}

// JobRequest is the inbound job Evaluate decides on.
type JobRequest struct {
	PricePerHour  uint64
	DurationHours uint32
}

// Evaluate implements spec.md section 4.8's acceptance predicate.
// activeJobs and hourlySpend reflect the evaluating peer's current
// state; marketPrices is the set of prices currently visible in the
// orderbook, used only by the Aggressive tier.
func Evaluate(tier AutonomyTier, cfg Config, req JobRequest, activeJobs uint32, hourlySpend uint64, marketPrices []uint64) (Decision, error) {
	switch tier {
	case TierConservative:
		return DecisionDefer, nil
	case TierModerate:
		return evaluateAgainstFloor(cfg.MinPricePerHour, cfg, req, activeJobs, hourlySpend)
	case TierAggressive:
		floor := marketPercentileFloor(marketPrices, cfg.MarketPercentile, cfg.MinPricePerHour)
		return evaluateAgainstFloor(floor, cfg, req, activeJobs, hourlySpend)
	default:
		return DecisionDeny, &DeniedError{Reason: "unknown autonomy tier"}
	}
}

// evaluateAgainstFloor is the Moderate predicate, parameterized by the
// minimum acceptable price so Aggressive can reuse it against a
// relaxed floor while still honoring every other absolute bound.
func evaluateAgainstFloor(minPrice uint64, cfg Config, req JobRequest, activeJobs uint32, hourlySpend uint64) (Decision, error) {
	if req.PricePerHour < minPrice {
		return DecisionDeny, &DeniedError{Reason: "price below floor"}
	}
	if req.DurationHours > cfg.MaxDurationHours {
		return DecisionDeny, &DeniedError{Reason: "duration exceeds maximum"}
	}
	if activeJobs >= cfg.MaxConcurrentJobs {
		return DecisionDeny, &DeniedError{Reason: "concurrent job limit reached"}
	}

	cost := uint128.From64(req.PricePerHour).Mul64(uint64(req.DurationHours))
	if cost.Hi != 0 {
		return DecisionDeny, ErrBudgetExceeded
	}
	total := uint128.From64(hourlySpend).Add(cost)
	if total.Hi != 0 || total.Lo > cfg.HourlyBudget {
		return DecisionDeny, ErrBudgetExceeded
	}

	return DecisionAccept, nil
}

// marketPercentileFloor computes the percentile order statistic over
// prices, falling back to floor when prices is empty. percentile is
// clamped to [0,1].
func marketPercentileFloor(prices []uint64, percentile float64, fallback uint64) uint64 {
	if len(prices) == 0 {
		return fallback
	}
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 1 {
		percentile = 1
	}

	sorted := make([]uint64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(percentile * float64(len(sorted)-1))
	return sorted[idx]
}
