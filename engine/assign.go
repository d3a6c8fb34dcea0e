// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package engine implements the assignment engine (spec §4.E): the
// per-block algorithm that maps input ranges to output ranges, handling
// coinbase fee aggregation and duplicate-txid displacement. This is the
// algorithmic core the rest of the system exists to drive and query.
package engine

import (
	"fmt"

	"github.com/ordlayer/ordindex/chainblock"
	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/internal/log"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/store"
)

var logger = log.New("component", "engine")

// Result summarizes one Apply call, for the conservation property (spec
// §8 property 1): DestroyedLen is the total length of ranges destroyed
// by under-paid subsidy or duplicate-txid displacement at this height.
type Result struct {
	Height       uint32
	OutputsTouched int
	DestroyedLen uint64
}

// Apply runs the assignment algorithm for block b against the write
// transaction tx, which must already be positioned so that b.Height is
// exactly one past the store's current indexed height and b's previous
// hash matches HEIGHT_TO_HASH[b.Height-1] (the caller — the index
// coordinator — verifies continuation and enters Rollback instead when
// it doesn't; spec §4.E's caller contract).
func Apply(tx *store.Tx, schedule ordinal.Schedule, b *chainblock.Block) (Result, error) {
	if err := checkContinuation(tx, b); err != nil {
		return Result{}, err
	}
	height := uint32(b.Height)

	// Step 1: the coinbase's implicit subsidy input.
	coinbaseQueue := ordinal.NewQueue(ordinal.Range{
		Start: schedule.FirstSerial(uint64(height)),
		End:   schedule.FirstSerial(uint64(height)) + schedule.Subsidy(uint64(height)),
	})

	var res Result
	res.Height = height

	// Rows created earlier in this block did not exist before it, so
	// spending them records no undo entry: Rollback deletes every row the
	// block created and must not bring these back.
	created := make(map[chainmodel.Outpoint]bool)

	// Step 2: non-coinbase transactions, in block order.
	for _, t := range b.Txs[1:] {
		inputQueue := ordinal.NewQueue()
		for _, prev := range t.Inputs {
			ranges, ok, err := tx.OutpointRanges(prev)
			if err != nil {
				return Result{}, fmt.Errorf("engine: height %d tx %s: %w", height, t.ID, err)
			}
			if !ok {
				logger.Error("missing input outpoint", "height", height, "tx", t.ID, "outpoint", prev)
				return Result{}, fmt.Errorf("%w: height %d tx %s input %s", ErrMissingInput, height, t.ID, prev)
			}
			if !created[prev] {
				tx.RecordUndo(height, prev, ranges)
			}
			tx.DeleteOutpointRanges(prev)
			for _, r := range ranges {
				inputQueue.PushBack(r)
			}
		}
		for i, out := range t.Outputs {
			op := chainmodel.Outpoint{TxID: t.ID, Index: uint32(i)}
			destroyed, err := displace(tx, height, op)
			if err != nil {
				return Result{}, err
			}
			res.DestroyedLen += destroyed
			outRanges := inputQueue.PopFrontN(out.Value)
			tx.PutOutpointRanges(op, outRanges)
			created[op] = true
			res.OutputsTouched++
		}
		// Step 2c: leftover input ranges are fees, appended to the
		// coinbase queue in the order they remain (FIFO across
		// transactions, spec §3 invariant 3).
		for _, r := range inputQueue.Drain() {
			coinbaseQueue.PushBack(r)
		}
	}

	// Step 3: coinbase outputs draw from coinbaseQueue (subsidy + fees).
	coinbaseTx := b.Txs[0]
	for i, out := range coinbaseTx.Outputs {
		op := chainmodel.Outpoint{TxID: coinbaseTx.ID, Index: uint32(i)}
		destroyed, err := displace(tx, height, op)
		if err != nil {
			return Result{}, err
		}
		res.DestroyedLen += destroyed
		ranges := coinbaseQueue.PopFrontN(out.Value)
		tx.PutOutpointRanges(op, ranges)
		res.OutputsTouched++
	}
	// Under-paying the subsidy destroys whatever's left (spec §4.E step 3).
	for _, r := range coinbaseQueue.Drain() {
		res.DestroyedLen += r.Len()
	}

	tx.PutBlockHash(height, b.Hash)
	store.SetIndexedHeight(tx, height)
	if outputs, err := tx.Stat(store.StatOutputsIndexed); err == nil {
		tx.SetStat(store.StatOutputsIndexed, outputs+uint64(res.OutputsTouched))
	}
	return res, nil
}

// displace implements duplicate-txid displacement (spec §4.E step 4):
// before writing a new row, check whether one already exists; if so,
// record it to the undo log and report its length as destroyed.
func displace(tx *store.Tx, height uint32, op chainmodel.Outpoint) (uint64, error) {
	existing, ok, err := tx.OutpointRanges(op)
	if err != nil {
		return 0, fmt.Errorf("engine: height %d displacement check %s: %w", height, op, err)
	}
	if !ok {
		return 0, nil
	}
	tx.RecordUndo(height, op, existing)
	var total uint64
	for _, r := range existing {
		total += r.Len()
	}
	return total, nil
}

func checkContinuation(tx *store.Tx, b *chainblock.Block) error {
	height := uint32(b.Height)
	indexed, ok, err := store.IndexedHeight(tx)
	if err != nil {
		return err
	}
	if !ok {
		if height != 0 {
			return fmt.Errorf("%w: store empty, got height %d", ErrHeightMismatch, height)
		}
		return nil
	}
	if height != indexed+1 {
		return fmt.Errorf("%w: indexed=%d got=%d", ErrHeightMismatch, indexed, height)
	}
	prevHash, ok, err := tx.BlockHash(height - 1)
	if err != nil {
		return err
	}
	if !ok || prevHash != b.PreviousHash {
		return ErrPreviousHashMismatch
	}
	return nil
}
