// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package engine

import "errors"

// ErrMissingInput signals that a transaction input referenced an
// outpoint absent from OUTPOINT_TO_RANGES: an invariant violation per
// spec §7, fatal unless the input is the coinbase's synthetic subsidy
// pseudo-input (which the engine never looks up in the store at all).
var ErrMissingInput = errors.New("engine: input outpoint not found in OUTPOINT_TO_RANGES")

// ErrHeightMismatch signals the caller handed the engine a block whose
// height does not immediately follow the store's indexed height; the
// coordinator is responsible for sequencing calls correctly.
var ErrHeightMismatch = errors.New("engine: block height does not follow indexed height")

// ErrPreviousHashMismatch signals the block's declared parent does not
// match HEIGHT_TO_HASH[height-1]: the caller must enter rollback (spec
// §4.E Reorganization) instead of calling Apply.
var ErrPreviousHashMismatch = errors.New("engine: previous_hash does not match canonical chain")
