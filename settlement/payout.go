// Package settlement computes deterministic payment amounts in
// fixed-point integer arithmetic, per spec.md section 4.6. No floating
// point is used anywhere in this package.
package settlement

import "lukechampine.com/uint128"

const secondsPerHour = 3600
const basisPointsDenominator = 10000

// Payout is the result of compute_payout: the amount due the
// provider and the platform fee taken from the gross.
type Payout struct {
	ProviderAmount uint64
	FeeAmount      uint64
}

// ComputePayout computes the provider's payout and the platform fee
// for a job that ran durationSeconds at ratePerHour (in the smallest
// token unit), at feeBasisPoints (0-10000).
//
// gross = duration*rate / 3600 (integer division after multiplication)
// fee   = gross*feeBasisPoints / 10000
// providerAmount = gross - fee, bumped to 1 if work was nonzero but
// fees would otherwise round the provider's payout to zero.
//
// All arithmetic is carried in a 128-bit intermediate
// (lukechampine.com/uint128) so the duration*rate multiplication can
// never silently wrap before the division narrows it back down; an
// intermediate or final value that does not fit in 64 bits returns
// ErrOverflow rather than producing a truncated result.
func ComputePayout(durationSeconds, ratePerHour uint64, feeBasisPoints uint32) (Payout, error) {
	if feeBasisPoints > basisPointsDenominator {
		return Payout{}, ErrOverflow
	}

	grossWide := uint128.From64(durationSeconds).Mul64(ratePerHour).Div64(secondsPerHour)
	if grossWide.Hi != 0 {
		return Payout{}, ErrOverflow
	}
	gross := grossWide.Lo

	feeWide := uint128.From64(gross).Mul64(uint64(feeBasisPoints)).Div64(basisPointsDenominator)
	if feeWide.Hi != 0 {
		return Payout{}, ErrOverflow
	}
	fee := feeWide.Lo

	provider := gross - fee
	if gross > 0 && provider == 0 {
		provider = 1
	}

	return Payout{ProviderAmount: provider, FeeAmount: fee}, nil
}
