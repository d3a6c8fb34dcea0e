// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package query implements the query interface (spec §4.G): the
// read-only surface the CLI and any future API serve from, backed by a
// consistent store.Reader snapshot per call.
package query

import (
	"context"
	"fmt"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/rpcnode"
	"github.com/ordlayer/ordindex/store"
)

// Status reports how far the store has indexed relative to the upstream
// node's current tip.
type Status struct {
	IndexedHeight uint32
	Indexed       bool // false on a fresh, empty store
	NodeTip       uint64
}

// Interface is the read-only surface spec §4.G requires, backed by
// *store.Store and (for Status) an upstream node handle.
type Interface struct {
	s    *store.Store
	node *rpcnode.Client
}

// New builds a query interface over an already-open store. node may be
// nil; Status then omits NodeTip instead of erroring.
func New(s *store.Store, node *rpcnode.Client) *Interface {
	return &Interface{s: s, node: node}
}

// OutputRanges returns the ranges currently held by op, per spec §4.G
// get_output_ranges. An output that exists but holds no serials (an
// empty coinbase remainder, spec §9) is returned as (nil, true, nil), not
// an error.
func (q *Interface) OutputRanges(op chainmodel.Outpoint) ([]ordinal.Range, bool, error) {
	r, err := q.s.BeginRead()
	if err != nil {
		return nil, false, err
	}
	defer r.Release()
	return r.OutpointRanges(op)
}

// SatpointOf performs the forward-only search spec §4.G requires at
// minimum for find_by_serial: given a candidate outpoint (typically
// obtained out of band, e.g. by scanning a wallet's own UTXOs), reports
// the offset of serial within it, or false if the outpoint doesn't
// currently hold serial.
func (q *Interface) SatpointOf(op chainmodel.Outpoint, serial ordinal.Serial) (chainmodel.Satpoint, bool, error) {
	ranges, ok, err := q.OutputRanges(op)
	if err != nil || !ok {
		return chainmodel.Satpoint{}, false, err
	}
	var offset uint64
	for _, r := range ranges {
		if serial >= r.Start && serial < r.End {
			return chainmodel.Satpoint{Outpoint: op, Offset: offset + (serial - r.Start)}, true, nil
		}
		offset += r.Len()
	}
	return chainmodel.Satpoint{}, false, nil
}

// BlockHash returns the canonical hash recorded at height.
func (q *Interface) BlockHash(height uint32) (chainmodel.Hash, bool, error) {
	r, err := q.s.BeginRead()
	if err != nil {
		return chainmodel.Hash{}, false, err
	}
	defer r.Release()
	return r.BlockHash(height)
}

// CurrentStatus reports the store's indexed height and, if a node handle
// was supplied, the upstream node's current tip.
func (q *Interface) CurrentStatus(ctx context.Context) (Status, error) {
	r, err := q.s.BeginRead()
	if err != nil {
		return Status{}, err
	}
	height, ok, err := store.IndexedHeight(r)
	r.Release()
	if err != nil {
		return Status{}, err
	}
	st := Status{IndexedHeight: height, Indexed: ok}
	if q.node != nil {
		tip, err := q.node.TipHeight(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("query: node tip: %w", err)
		}
		st.NodeTip = tip
	}
	return st, nil
}
