package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ordlayer/ordindex/chainblock"
	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/store"
)

func newTestCoordinator(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c, err := New(s, nil, ordinal.DefaultSchedule, cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

// fakeNode is an in-memory stand-in for *rpcnode.Client, keyed by
// height. Safe for concurrent use by fetchBatch's errgroup goroutines.
type fakeNode struct {
	mu     sync.Mutex
	tip    uint64
	blocks map[uint64]*chainblock.Block

	// failNextAt, if non-zero, makes the very next BlockAt/BlockHashAt
	// call at that height fail once, then succeed on retry (exercises
	// withRetryT without requiring real backoff timing beyond one hop).
	failNextAt map[uint64]int
}

func newFakeNode() *fakeNode {
	return &fakeNode{blocks: make(map[uint64]*chainblock.Block), failNextAt: make(map[uint64]int)}
}

func (f *fakeNode) addBlock(b *chainblock.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[b.Height] = b
	if b.Height > f.tip {
		f.tip = b.Height
	}
}

func (f *fakeNode) TipHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tip, nil
}

func (f *fakeNode) BlockHashAt(ctx context.Context, height uint64) (chainmodel.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failNextAt[height]; n > 0 {
		f.failNextAt[height] = n - 1
		return chainmodel.Hash{}, fmt.Errorf("fake node: transient RPC hiccup at height %d", height)
	}
	b, ok := f.blocks[height]
	if !ok {
		return chainmodel.Hash{}, fmt.Errorf("fake node: no block at height %d", height)
	}
	return b.Hash, nil
}

func (f *fakeNode) BlockAt(ctx context.Context, height uint64) (*chainblock.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failNextAt[height]; n > 0 {
		f.failNextAt[height] = n - 1
		return nil, fmt.Errorf("fake node: transient RPC hiccup at height %d", height)
	}
	b, ok := f.blocks[height]
	if !ok {
		return nil, fmt.Errorf("fake node: no block at height %d", height)
	}
	return b, nil
}

// coinbaseBlock builds a single-transaction block whose coinbase output
// claims the whole subsidy for height, chained onto prevHash. Good
// enough to drive engine.Apply without any non-coinbase transactions.
func coinbaseBlock(height uint64, prevHash, hash chainmodel.Hash) *chainblock.Block {
	subsidy := ordinal.DefaultSchedule.Subsidy(height)
	return &chainblock.Block{
		Height:       height,
		Hash:         hash,
		PreviousHash: prevHash,
		Txs: []chainblock.Tx{{
			ID:      hashAt(height, 0),
			Outputs: []chainblock.TxOut{{Value: subsidy}},
		}},
	}
}

// hashAt derives a deterministic, distinct Hash per (height, salt) pair
// for use as a block or txid hash in tests.
func hashAt(height uint64, salt byte) (h chainmodel.Hash) {
	h[0] = salt
	h[1] = byte(height)
	h[2] = byte(height >> 8)
	h[3] = byte(height >> 16)
	h[4] = byte(height >> 24)
	return h
}

func TestPruneUndoLogNoopBelowHorizon(t *testing.T) {
	c := newTestCoordinator(t, Config{UndoLogHorizon: 1000, BlockCacheSize: 16})
	if err := c.pruneUndoLog(500); err != nil {
		t.Fatalf("prune below horizon: %v", err)
	}
	if c.pruned != 0 {
		t.Fatalf("pruned = %d, want 0 (nothing past the horizon yet)", c.pruned)
	}
}

func TestPruneUndoLogAdvancesWatermark(t *testing.T) {
	c := newTestCoordinator(t, Config{UndoLogHorizon: 100, BlockCacheSize: 16})
	if err := c.pruneUndoLog(150); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if c.pruned != 50 {
		t.Fatalf("pruned = %d, want 50", c.pruned)
	}
	// A second call with a smaller or equal cutoff must not move the
	// watermark backward or redo work.
	if err := c.pruneUndoLog(120); err != nil {
		t.Fatalf("prune again: %v", err)
	}
	if c.pruned != 50 {
		t.Fatalf("pruned = %d after no-op call, want still 50", c.pruned)
	}
}

func TestRollbackOneWithoutCachedBlockFails(t *testing.T) {
	c := newTestCoordinator(t, Config{UndoLogHorizon: 1000, BlockCacheSize: 16})
	err := c.rollbackOne(5)
	if !errors.Is(err, ErrReorgTooDeep) {
		t.Fatalf("rollbackOne with nothing cached: got %v, want %v", err, ErrReorgTooDeep)
	}
}

func newFakeCoordinator(t *testing.T, cfg Config, node *fakeNode) *Coordinator {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c, err := New(s, node, ordinal.DefaultSchedule, cfg)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

func indexedHeight(t *testing.T, c *Coordinator) (uint32, bool) {
	t.Helper()
	r, err := c.s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer r.Release()
	height, ok, err := store.IndexedHeight(r)
	if err != nil {
		t.Fatalf("indexed height: %v", err)
	}
	return height, ok
}

func TestRunBatchAppliesUpToBatchSizeInOrder(t *testing.T) {
	node := newFakeNode()
	var prev chainmodel.Hash
	for h := uint64(0); h < 5; h++ {
		b := coinbaseBlock(h, prev, hashAt(h, 0xAA))
		node.addBlock(b)
		prev = b.Hash
	}
	c := newFakeCoordinator(t, Config{BatchSize: 3, BlockCacheSize: 16}, node)

	advanced, err := c.runBatch(context.Background())
	if err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if !advanced {
		t.Fatalf("runBatch reported no progress with blocks available")
	}
	height, ok := indexedHeight(t, c)
	if !ok || height != 2 {
		t.Fatalf("indexed height = %d, ok=%v, want 2 (batch size 3 applies heights 0-2)", height, ok)
	}
	if _, ok := c.cache.Get(uint32(2)); !ok {
		t.Fatalf("applied block 2 not retained in block cache")
	}

	advanced, err = c.runBatch(context.Background())
	if err != nil {
		t.Fatalf("second runBatch: %v", err)
	}
	if !advanced {
		t.Fatalf("second runBatch reported no progress")
	}
	height, ok = indexedHeight(t, c)
	if !ok || height != 4 {
		t.Fatalf("indexed height after second batch = %d, ok=%v, want 4", height, ok)
	}
}

func TestRunBatchNoopWhenCaughtUpToTip(t *testing.T) {
	node := newFakeNode()
	node.addBlock(coinbaseBlock(0, chainmodel.Hash{}, hashAt(0, 0xAA)))
	c := newFakeCoordinator(t, Config{BatchSize: 4, BlockCacheSize: 16}, node)

	advanced, err := c.runBatch(context.Background())
	if err != nil || !advanced {
		t.Fatalf("first runBatch: advanced=%v err=%v", advanced, err)
	}
	advanced, err = c.runBatch(context.Background())
	if err != nil {
		t.Fatalf("second runBatch: %v", err)
	}
	if advanced {
		t.Fatalf("runBatch advanced past the node's tip")
	}
}

func TestFetchBatchPreservesHeightOrder(t *testing.T) {
	node := newFakeNode()
	var prev chainmodel.Hash
	for h := uint64(10); h < 16; h++ {
		b := coinbaseBlock(h, prev, hashAt(h, 0xBB))
		node.addBlock(b)
		prev = b.Hash
	}
	c := newFakeCoordinator(t, Config{BlockCacheSize: 16}, node)

	blocks, err := c.fetchBatch(context.Background(), 10, 16)
	if err != nil {
		t.Fatalf("fetchBatch: %v", err)
	}
	if len(blocks) != 6 {
		t.Fatalf("fetchBatch returned %d blocks, want 6", len(blocks))
	}
	for i, b := range blocks {
		want := uint64(10 + i)
		if b.Height != want {
			t.Fatalf("blocks[%d].Height = %d, want %d (order must match [start, end))", i, b.Height, want)
		}
	}
}

func TestFetchBatchSurvivesOneTransientFailurePerHeight(t *testing.T) {
	node := newFakeNode()
	node.addBlock(coinbaseBlock(0, chainmodel.Hash{}, hashAt(0, 0xCC)))
	node.failNextAt[0] = 1
	c := newFakeCoordinator(t, Config{BlockCacheSize: 16}, node)

	blocks, err := c.fetchBatch(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("fetchBatch with one transient failure: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Height != 0 {
		t.Fatalf("fetchBatch result = %+v, want one block at height 0", blocks)
	}
}

func TestReconcileRollsBackDivergentTip(t *testing.T) {
	node := newFakeNode()
	var prev chainmodel.Hash
	for h := uint64(0); h < 3; h++ {
		b := coinbaseBlock(h, prev, hashAt(h, 0xAA))
		node.addBlock(b)
		prev = b.Hash
	}
	c := newFakeCoordinator(t, Config{BatchSize: 3, BlockCacheSize: 16}, node)
	if _, err := c.runBatch(context.Background()); err != nil {
		t.Fatalf("seed runBatch: %v", err)
	}
	if height, ok := indexedHeight(t, c); !ok || height != 2 {
		t.Fatalf("seed indexed height = %d, ok=%v, want 2", height, ok)
	}

	// The node now reports a different hash at height 2: a one-block
	// reorg the coordinator must detect and roll back before height 1,
	// where the hashes agree again, stops the walk.
	reorged := coinbaseBlock(2, hashAt(1, 0xAA), hashAt(2, 0xFF))
	node.addBlock(reorged)

	if err := c.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	height, ok := indexedHeight(t, c)
	if !ok || height != 1 {
		t.Fatalf("indexed height after reconcile = %d, ok=%v, want 1 (height 2 rolled back)", height, ok)
	}
	if _, _, err := c.hashesAt(context.Background(), 1); err != nil {
		t.Fatalf("hashesAt after reconcile: %v", err)
	}
}

func TestReconcileRetriesTransientHashFetchFailure(t *testing.T) {
	node := newFakeNode()
	node.addBlock(coinbaseBlock(0, chainmodel.Hash{}, hashAt(0, 0xAA)))
	c := newFakeCoordinator(t, Config{BatchSize: 1, BlockCacheSize: 16}, node)
	if _, err := c.runBatch(context.Background()); err != nil {
		t.Fatalf("seed runBatch: %v", err)
	}

	// One transient RPC hiccup fetching the node's hash at height 0 must
	// be absorbed by withRetryT, not surfaced as a reconcile failure.
	node.failNextAt[0] = 1
	if err := c.reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile with one transient hash-fetch failure: %v", err)
	}
	height, ok := indexedHeight(t, c)
	if !ok || height != 0 {
		t.Fatalf("indexed height after reconcile = %d, ok=%v, want unchanged 0", height, ok)
	}
}
