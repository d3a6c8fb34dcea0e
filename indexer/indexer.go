// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package indexer implements the index coordinator (spec §4.F): the main
// loop that drives the store and assignment engine from the upstream
// node, detecting and reversing reorgs, and pruning the undo log once
// entries pass the configured horizon.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/cenkalti/backoff/v4"

	"github.com/ordlayer/ordindex/chainblock"
	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/chainparams"
	"github.com/ordlayer/ordindex/engine"
	"github.com/ordlayer/ordindex/internal/log"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/store"
)

var logger = log.New("component", "indexer")

// ErrReorgTooDeep is returned when reconcile needs to roll back a block
// older than the block cache retains, or one whose undo log has already
// been pruned past the configured horizon (spec §9 "undo log versus
// re-replay").
var ErrReorgTooDeep = errors.New("indexer: reorg deeper than the retained block cache")

// Config tunes one coordinator run.
type Config struct {
	BatchSize      int           // blocks fetched+decoded concurrently per round
	UndoLogHorizon uint64        // heights of undo log retained, spec §4.E
	PollInterval   time.Duration // how long to sleep when caught up to tip
	BlockCacheSize int           // recently applied blocks kept for fast rollback
}

// DefaultConfig matches the teacher's usual "small but not tiny" batch
// sizing for network-bound work.
var DefaultConfig = Config{
	BatchSize:      16,
	UndoLogHorizon: chainparams.DefaultUndoLogHorizon,
	PollInterval:   10 * time.Second,
	BlockCacheSize: 4096,
}

// Node is the upstream chain node surface the coordinator drives itself
// from. Satisfied by *rpcnode.Client; kept minimal so tests can drive
// Coordinator against a fake.
type Node interface {
	TipHeight(ctx context.Context) (uint64, error)
	BlockHashAt(ctx context.Context, height uint64) (chainmodel.Hash, error)
	BlockAt(ctx context.Context, height uint64) (*chainblock.Block, error)
}

// Coordinator owns the single store writer and drives it from node.
type Coordinator struct {
	s        *store.Store
	node     Node
	schedule ordinal.Schedule
	cfg      Config
	cache    *lru.Cache // height -> *chainblock.Block, applied blocks only
	pruned   uint32     // highest height whose undo log has been pruned
}

// New builds a coordinator. schedule must match the network node is
// connected to (spec §4.B; chainparams.Params.HalvingInterval feeds it).
func New(s *store.Store, node Node, schedule ordinal.Schedule, cfg Config) (*Coordinator, error) {
	cache, err := lru.New(cfg.BlockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("indexer: build block cache: %w", err)
	}
	return &Coordinator{s: s, node: node, schedule: schedule, cfg: cfg, cache: cache}, nil
}

// Run drives the coordinator until ctx is cancelled (spec §5 cancellation
// between blocks and batches — never mid-block).
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.reconcile(ctx); err != nil {
			return fmt.Errorf("indexer: reconcile: %w", err)
		}
		advanced, err := c.runBatch(ctx)
		if err != nil {
			return fmt.Errorf("indexer: run batch: %w", err)
		}
		if !advanced {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.PollInterval):
			}
		}
	}
}

// reconcile walks backward from the store's indexed height while the
// node's canonical hash at that height disagrees with ours, rolling each
// divergent block back (spec §4.E Reorganization). A no-op on a fresh
// store or when the chain hasn't reorged.
func (c *Coordinator) reconcile(ctx context.Context) error {
	for {
		r, err := c.s.BeginRead()
		if err != nil {
			return err
		}
		height, ok, err := store.IndexedHeight(r)
		r.Release()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ourHash, nodeHash, err := c.hashesAt(ctx, height)
		if err != nil {
			return err
		}
		if ourHash == nodeHash {
			return nil
		}
		logger.Warn("reorg detected", "height", height, "our_hash", ourHash, "node_hash", nodeHash)
		if err := c.rollbackOne(height); err != nil {
			return err
		}
	}
}

func (c *Coordinator) hashesAt(ctx context.Context, height uint32) (ourHash, nodeHash chainmodel.Hash, err error) {
	r, err := c.s.BeginRead()
	if err != nil {
		return
	}
	defer r.Release()
	oh, _, err := r.BlockHash(height)
	if err != nil {
		return
	}
	nh, err := withRetryT(ctx, func() (chainmodel.Hash, error) { return c.node.BlockHashAt(ctx, uint64(height)) })
	if err != nil {
		return
	}
	return oh, nh, nil
}

func (c *Coordinator) rollbackOne(height uint32) error {
	b, ok := c.cache.Get(height)
	if !ok {
		return fmt.Errorf("%w: height %d fell out of the block cache (depth %d)", ErrReorgTooDeep, height, c.cfg.BlockCacheSize)
	}
	if c.pruned > 0 && height <= c.pruned {
		return fmt.Errorf("%w: undo log for height %d already pruned (through %d)", ErrReorgTooDeep, height, c.pruned)
	}
	tx := c.s.BeginWrite()
	if err := engine.Rollback(tx, b.(*chainblock.Block)); err != nil {
		tx.Discard()
		return fmt.Errorf("indexer: rollback height %d: %w", height, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexer: commit rollback height %d: %w", height, err)
	}
	c.cache.Remove(height)
	return nil
}

// runBatch applies up to cfg.BatchSize blocks past the store's indexed
// height, fetching and decoding them concurrently (spec §4.F) but
// applying them to the store strictly in order. It reports whether it
// applied at least one block.
func (c *Coordinator) runBatch(ctx context.Context) (bool, error) {
	r, err := c.s.BeginRead()
	if err != nil {
		return false, err
	}
	indexed, ok, err := store.IndexedHeight(r)
	r.Release()
	if err != nil {
		return false, err
	}
	var next uint64
	if ok {
		next = uint64(indexed) + 1
	}

	tip, err := withRetryT(ctx, func() (uint64, error) { return c.node.TipHeight(ctx) })
	if err != nil {
		return false, err
	}
	if next > tip {
		return false, nil
	}
	end := next + uint64(c.cfg.BatchSize)
	if end > tip+1 {
		end = tip + 1
	}

	blocks, err := c.fetchBatch(ctx, next, end)
	if err != nil {
		return false, err
	}

	tx := c.s.BeginWrite()
	applied := 0
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			break // cancellation between blocks only, never mid-block
		}
		if _, err := engine.Apply(tx, c.schedule, b); err != nil {
			tx.Discard()
			return false, fmt.Errorf("indexer: apply height %d: %w", b.Height, err)
		}
		c.cache.Add(uint32(b.Height), b)
		applied++
	}
	if applied == 0 {
		tx.Discard()
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("indexer: commit batch: %w", err)
	}
	if err := c.pruneUndoLog(uint32(blocks[applied-1].Height)); err != nil {
		logger.Error("prune undo log", "err", err)
	}
	return true, nil
}

// fetchBatch fetches and decodes [start, end) concurrently, preserving
// height order in the returned slice; chainblock.Decode is pure CPU so
// this mostly overlaps network latency across blocks (spec §4.F).
func (c *Coordinator) fetchBatch(ctx context.Context, start, end uint64) ([]*chainblock.Block, error) {
	n := int(end - start)
	if n <= 0 {
		return nil, nil
	}
	blocks := make([]*chainblock.Block, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i, height := i, start+uint64(i)
		g.Go(func() error {
			b, err := withRetryT(gctx, func() (*chainblock.Block, error) {
				return c.node.BlockAt(gctx, height)
			})
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// pruneUndoLog drops undo entries older than the configured horizon,
// bounding reorg recovery depth in exchange for bounded disk use (spec
// §4.E: undo retention is a deployment choice, not an invariant). It
// prunes every height newly past the horizon since the last call, not
// just the batch's tail, so a batch size larger than one height never
// leaves a gap of un-pruned heights behind.
func (c *Coordinator) pruneUndoLog(throughHeight uint32) error {
	if throughHeight < uint32(c.cfg.UndoLogHorizon) {
		return nil
	}
	cutoff := throughHeight - uint32(c.cfg.UndoLogHorizon)
	if cutoff <= c.pruned {
		return nil
	}
	tx := c.s.BeginWrite()
	for h := c.pruned + 1; h <= cutoff; h++ {
		if err := tx.DeleteUndoLogForHeight(h); err != nil {
			tx.Discard()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.pruned = cutoff
	return nil
}

// withRetryT wraps a single upstream-node call with bounded exponential
// backoff (spec §4.F): every error the call returns is retried, up to
// five times, and the last one is returned to the caller. Transient and
// permanent errors are not told apart.
func withRetryT[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var result T
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		v, err := op()
		if err != nil {
			return err
		}
		result = v
		return nil
	}, bo)
	return result, err
}
