// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package store

// StatReader is implemented by both Reader and Tx: whatever the engine
// or query interface is given, it can always ask for a counter.
type StatReader interface {
	Stat(id StatID) (uint64, error)
}

// IndexedHeight returns the height the store has fully indexed through,
// and false if no block has been indexed yet (height is stored biased by
// one so that "genesis indexed" and "nothing indexed" are distinguishable
// even though genesis is height 0).
func IndexedHeight(sr StatReader) (height uint32, ok bool, err error) {
	v, err := sr.Stat(StatIndexedHeight)
	if err != nil {
		return 0, false, err
	}
	if v == 0 {
		return 0, false, nil
	}
	return uint32(v - 1), true, nil
}

// SetIndexedHeight records height as the store's new indexed height.
func SetIndexedHeight(tx *Tx, height uint32) {
	tx.SetStat(StatIndexedHeight, uint64(height)+1)
}
