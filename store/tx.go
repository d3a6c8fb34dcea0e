// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/rangeio"
)

// Tx is an open write transaction: a batch of mutations across every
// table that becomes durable atomically on Commit, or vanishes entirely
// if Discard is called instead (spec §4.D, §5 cancellation). A Tx
// commonly spans many blocks: the coordinator commits once per batch,
// not once per block, to amortize fsync cost (spec §4.F).
type Tx struct {
	store    *Store
	pending  map[string][]byte // key -> new value; deleted keys are tracked in tomb instead
	order    []string          // insertion order, for deterministic batch replay
	tomb     map[string]bool
	cacheSet map[string][]byte // outpoint cache key -> new ranges encoding, for post-commit cache update
	cacheDel map[string]bool
}

// BeginWrite opens a new write transaction. Only one should be open at a
// time per spec §5's single-writer model; the store does not itself
// enforce this (the coordinator is the sole writer by construction).
func (s *Store) BeginWrite() *Tx {
	return &Tx{
		store:    s,
		pending:  make(map[string][]byte),
		tomb:     make(map[string]bool),
		cacheSet: make(map[string][]byte),
		cacheDel: make(map[string]bool),
	}
}

func (tx *Tx) put(key, value []byte) {
	k := string(key)
	if _, seen := tx.pending[k]; !seen && !tx.tomb[k] {
		tx.order = append(tx.order, k)
	}
	tx.pending[k] = value
	delete(tx.tomb, k)
}

func (tx *Tx) delete(key []byte) {
	k := string(key)
	if _, seen := tx.pending[k]; !seen && !tx.tomb[k] {
		tx.order = append(tx.order, k)
	}
	tx.tomb[k] = true
	delete(tx.pending, k)
}

// get reads the transaction's own pending writes first, falling back to
// the store's last committed state. Because this store has exactly one
// writer at a time, the committed state read here cannot change out from
// under the transaction.
func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if tx.tomb[k] {
		return nil, false, nil
	}
	if v, ok := tx.pending[k]; ok {
		return v, true, nil
	}
	v, err := tx.store.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read: %w", err)
	}
	return v, true, nil
}

// OutpointRanges reads the current ranges for op, reflecting this
// transaction's own not-yet-committed writes. Once those are checked,
// the store's read-through cache is consulted before falling back to a
// disk read: unlike Reader, a Tx is the store's one writer, so the
// cache (which Commit keeps in lockstep with every write) can never be
// stale relative to what this Tx would otherwise read from disk.
func (tx *Tx) OutpointRanges(op chainmodel.Outpoint) ([]ordinal.Range, bool, error) {
	key := outpointKey(op)
	k := string(key)
	if tx.tomb[k] {
		return nil, false, nil
	}
	if v, ok := tx.pending[k]; ok {
		ranges, err := rangeio.DecodeRanges(v)
		return ranges, true, err
	}
	if v, ok := tx.store.cache.HasGet(nil, cacheKey(op)); ok {
		ranges, err := rangeio.DecodeRanges(v)
		return ranges, true, err
	}
	v, err := tx.store.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read: %w", err)
	}
	ranges, err := rangeio.DecodeRanges(v)
	return ranges, true, err
}

// PutOutpointRanges writes the OUTPOINT_TO_RANGES row for op. If a row
// already existed, the caller is responsible for having recorded an undo
// entry first (spec §4.E step 4, duplicate-txid displacement).
func (tx *Tx) PutOutpointRanges(op chainmodel.Outpoint, ranges []ordinal.Range) {
	key := outpointKey(op)
	val := rangeio.EncodeRanges(nil, ranges)
	tx.put(key, val)
	ck := string(cacheKey(op))
	tx.cacheSet[ck] = val
	delete(tx.cacheDel, ck)
}

// DeleteOutpointRanges removes the row for op.
func (tx *Tx) DeleteOutpointRanges(op chainmodel.Outpoint) {
	tx.delete(outpointKey(op))
	ck := string(cacheKey(op))
	tx.cacheDel[ck] = true
	delete(tx.cacheSet, ck)
}

// BlockHash reads HEIGHT_TO_HASH[height] as seen by this transaction.
func (tx *Tx) BlockHash(height uint32) (chainmodel.Hash, bool, error) {
	v, ok, err := tx.get(heightKey(height))
	if err != nil || !ok {
		return chainmodel.Hash{}, ok, err
	}
	var h chainmodel.Hash
	copy(h[:], v)
	return h, true, nil
}

// PutBlockHash writes HEIGHT_TO_HASH[height] = hash.
func (tx *Tx) PutBlockHash(height uint32, hash chainmodel.Hash) {
	tx.put(heightKey(height), append([]byte(nil), hash[:]...))
}

// DeleteBlockHash removes HEIGHT_TO_HASH[height], used during reorg
// rollback.
func (tx *Tx) DeleteBlockHash(height uint32) {
	tx.delete(heightKey(height))
}

// Stat reads a STATISTICS counter as seen by this transaction.
func (tx *Tx) Stat(id StatID) (uint64, error) {
	v, ok, err := tx.get(statKey(id))
	if err != nil || !ok {
		return 0, err
	}
	return decodeStat(v)
}

// SetStat writes a STATISTICS counter.
func (tx *Tx) SetStat(id StatID, value uint64) {
	tx.put(statKey(id), encodeStat(value))
}

// RecordUndo writes one entry to the per-height undo log: the prior
// content of a row the current block is about to delete or overwrite.
// Entries are keyed by (height, outpoint), so a second record for the
// same row at the same height replaces the first. Rollback restores the
// entries in key order (spec §4.E Reorganization).
func (tx *Tx) RecordUndo(height uint32, op chainmodel.Outpoint, originalRanges []ordinal.Range) {
	tx.put(undoKey(height, op), rangeio.EncodeRanges(nil, originalRanges))
}

// UndoEntriesForHeight returns every committed undo entry for height, in
// the deterministic key order goleveldb iterates in. Entries recorded by
// this still-open transaction are not included. Used by rollback to
// recreate rows a block deleted.
func (tx *Tx) UndoEntriesForHeight(height uint32) ([]UndoEntry, error) {
	return tx.store.undoEntriesForHeight(height)
}

func (s *Store) undoEntriesForHeight(height uint32) ([]UndoEntry, error) {
	prefix := undoHeightPrefix(height)
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	var entries []UndoEntry
	for it.Next() {
		key := it.Key()
		op, err := chainmodel.OutpointFromBytes(key[5:])
		if err != nil {
			return nil, fmt.Errorf("store: malformed undo key: %w", err)
		}
		ranges, err := rangeio.DecodeRanges(it.Value())
		if err != nil {
			return nil, fmt.Errorf("store: malformed undo value: %w", err)
		}
		entries = append(entries, UndoEntry{Outpoint: op, OriginalRanges: ranges})
	}
	return entries, it.Error()
}

// DeleteUndoLogForHeight removes every committed undo entry for height,
// once it has either been consumed by a rollback or aged past the undo
// log horizon. Entries recorded by this still-open transaction are left
// in place.
func (tx *Tx) DeleteUndoLogForHeight(height uint32) error {
	entries, err := tx.store.undoEntriesForHeight(height)
	if err != nil {
		return err
	}
	for _, e := range entries {
		tx.delete(undoKey(height, e.Outpoint))
	}
	return nil
}

// Commit applies every pending mutation atomically. On success, the
// store's read-through cache is updated to match; on failure, the store
// is left exactly as it was before Commit was called (spec §4.D
// all-or-nothing commit).
func (tx *Tx) Commit() error {
	batch := new(leveldb.Batch)
	// Deterministic order keeps repeated indexing of the same block
	// sequence byte-identical across runs (spec §8 property 4).
	keys := append([]string(nil), tx.order...)
	sort.Strings(keys)
	for _, k := range keys {
		if tx.tomb[k] {
			batch.Delete([]byte(k))
			continue
		}
		if v, ok := tx.pending[k]; ok {
			batch.Put([]byte(k), v)
		}
	}
	if err := tx.store.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	for ck, v := range tx.cacheSet {
		tx.store.cache.Set([]byte(ck), v)
	}
	for ck := range tx.cacheDel {
		tx.store.cache.Del([]byte(ck))
	}
	tx.Discard()
	return nil
}

// Discard drops every pending mutation without applying them. Safe to
// call on an already-committed or already-discarded Tx.
func (tx *Tx) Discard() {
	tx.pending = make(map[string][]byte)
	tx.tomb = make(map[string]bool)
	tx.order = nil
	tx.cacheSet = make(map[string][]byte)
	tx.cacheDel = make(map[string]bool)
}
