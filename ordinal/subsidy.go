// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package ordinal

// These are the subsidy schedule constants. Example: the genesis block's
// coinbase carries InitialSubsidy base units, per DefaultHalvingInterval
// blocks the subsidy is halved.
const (
	InitialSubsidy         uint64 = 50 * 100_000_000
	DefaultHalvingInterval uint64 = 210_000
	maxHalvings            uint64 = 64 // beyond this, InitialSubsidy>>n == 0
)

// Schedule is the subsidy schedule for one network: everything it needs
// is the halving interval, since InitialSubsidy is the same constant
// across every network this indexer supports (only regtest shortens the
// interval itself, per chainparams).
type Schedule struct {
	HalvingInterval uint64
}

// DefaultSchedule is the mainnet/testnet/signet schedule.
var DefaultSchedule = Schedule{HalvingInterval: DefaultHalvingInterval}

// Subsidy returns the block-reward base units newly minted at height h.
func (s Schedule) Subsidy(h uint64) uint64 {
	epoch := h / s.HalvingInterval
	if epoch >= maxHalvings {
		return 0
	}
	return InitialSubsidy >> epoch
}

// FirstSerial returns the serial of the first base unit minted at height
// h, i.e. the sum of subsidy(i) for i in [0, h). It runs in time bounded
// by the number of halving epochs elapsed (at most maxHalvings), never by
// h itself: one full epoch's contribution is the closed-form product of
// its subsidy and its length, summed epoch by epoch, and the final
// partial epoch adds its block count times that epoch's subsidy.
func (s Schedule) FirstSerial(h uint64) uint64 {
	epoch := h / s.HalvingInterval
	loopBound := epoch
	if loopBound > maxHalvings {
		loopBound = maxHalvings
	}
	var total uint64
	for e := uint64(0); e < loopBound; e++ {
		total += s.HalvingInterval * s.Subsidy(e*s.HalvingInterval)
	}
	partial := h - epoch*s.HalvingInterval
	total += partial * s.Subsidy(h)
	return total
}

// Subsidy is DefaultSchedule.Subsidy, the common case used by every
// network except regtest (spec §4.B).
func Subsidy(h uint64) uint64 { return DefaultSchedule.Subsidy(h) }

// FirstSerial is DefaultSchedule.FirstSerial.
func FirstSerial(h uint64) uint64 { return DefaultSchedule.FirstSerial(h) }

// SubsidyHalvingInterval is kept for callers that only ever run against
// the default schedule.
const SubsidyHalvingInterval = DefaultHalvingInterval
