// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package engine

import (
	"fmt"

	"github.com/ordlayer/ordindex/chainblock"
	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/store"
)

// Rollback undoes the effect of a previously applied block b, reversing
// Apply exactly: it recreates every row b deleted or overwrote (from the
// undo log) and deletes every row b created, then removes b's
// HEIGHT_TO_HASH entry (spec §4.E Reorganization). b must be the block
// most recently applied at the store's current indexed height; the
// coordinator is responsible for walking backwards one height at a time.
func Rollback(tx *store.Tx, b *chainblock.Block) error {
	height := uint32(b.Height)
	indexed, ok, err := store.IndexedHeight(tx)
	if err != nil {
		return err
	}
	if !ok || indexed != height {
		return fmt.Errorf("engine: rollback height %d does not match indexed height", height)
	}

	// (c) delete every row this block created.
	var touched int
	for _, t := range b.Txs {
		for i := range t.Outputs {
			op := chainmodel.Outpoint{TxID: t.ID, Index: uint32(i)}
			tx.DeleteOutpointRanges(op)
			touched++
		}
	}

	// (b) recreate every row this block deleted or overwrote, from the
	// undo log recorded alongside the forward Apply.
	entries, err := tx.UndoEntriesForHeight(height)
	if err != nil {
		return fmt.Errorf("engine: rollback height %d: read undo log: %w", height, err)
	}
	for _, e := range entries {
		tx.PutOutpointRanges(e.Outpoint, e.OriginalRanges)
	}
	if err := tx.DeleteUndoLogForHeight(height); err != nil {
		return fmt.Errorf("engine: rollback height %d: clear undo log: %w", height, err)
	}

	// (d) remove the HEIGHT_TO_HASH entry and step the indexed height back.
	tx.DeleteBlockHash(height)
	if height == 0 {
		tx.SetStat(store.StatIndexedHeight, 0)
	} else {
		store.SetIndexedHeight(tx, height-1)
	}
	if outputs, err := tx.Stat(store.StatOutputsIndexed); err == nil && outputs >= uint64(touched) {
		tx.SetStat(store.StatOutputsIndexed, outputs-uint64(touched))
	}
	return nil
}
