// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package store

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/rangeio"
)

// Reader is a consistent, point-in-time read snapshot: it never observes
// a commit that happens after it was opened (spec §4.D begin_read).
type Reader struct {
	store *Store
	snap  *leveldb.Snapshot
}

// BeginRead opens a new read snapshot. Callers must Release it.
func (s *Store) BeginRead() (*Reader, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, fmt.Errorf("store: open snapshot: %w", err)
	}
	return &Reader{store: s, snap: snap}, nil
}

// Release frees the snapshot. Safe to call once.
func (r *Reader) Release() {
	r.snap.Release()
}

// OutpointRanges returns the ranges held by op, and whether the row
// exists at all (an empty-but-present row is returned as (nil, true,
// nil): spec §9's resolution of the zero-value Open Question). This
// always reads through the snapshot, never the store's process-wide
// cache: the cache is mutated by every Tx.Commit regardless of which
// snapshot is open, so consulting it here would let a Reader observe a
// commit that happened after BeginRead (spec §4.D, §5).
func (r *Reader) OutpointRanges(op chainmodel.Outpoint) ([]ordinal.Range, bool, error) {
	v, err := r.snap.Get(outpointKey(op), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read outpoint ranges: %w", err)
	}
	ranges, err := rangeio.DecodeRanges(v)
	return ranges, true, err
}

// BlockHash returns the canonical hash recorded at height, if any.
func (r *Reader) BlockHash(height uint32) (chainmodel.Hash, bool, error) {
	v, err := r.snap.Get(heightKey(height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return chainmodel.Hash{}, false, nil
	}
	if err != nil {
		return chainmodel.Hash{}, false, fmt.Errorf("store: read block hash: %w", err)
	}
	var hash chainmodel.Hash
	copy(hash[:], v)
	return hash, true, nil
}

// Stat returns the counter value for id, or 0 if never set.
func (r *Reader) Stat(id StatID) (uint64, error) {
	v, err := r.snap.Get(statKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: read stat: %w", err)
	}
	return decodeStat(v)
}

func cacheKey(op chainmodel.Outpoint) []byte {
	b := op.Bytes()
	return b[:]
}
