// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package rpcnode is the upstream node interface (spec §4's external
// dependency, spec §6): it turns btcd/rpcclient's JSON-RPC calls into the
// two primitives the coordinator actually needs, get_block_hash and
// get_block, plus a tip height for progress reporting.
package rpcnode

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/ordlayer/ordindex/chainblock"
	"github.com/ordlayer/ordindex/chainmodel"
)

// Config names the upstream node's RPC endpoint and credentials.
type Config struct {
	Host       string
	User       string
	Pass       string
	CookiePath string // used instead of User/Pass when set
	DisableTLS bool
}

// Client wraps an rpcclient.Client, decoding raw block responses through
// chainblock.Decode so the rest of the system never touches wire types.
type Client struct {
	rpc *rpcclient.Client
}

// Dial connects to the upstream node. The client runs in HTTP POST mode,
// one request per call, instead of rpcclient's default websocket mode (no
// notifications: the coordinator polls for new blocks instead, spec §4.F).
func Dial(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		CookiePath:   cfg.CookiePath,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}
	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcnode: dial %s: %w", cfg.Host, err)
	}
	return &Client{rpc: rpc}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Shutdown() }

// TipHeight returns the upstream node's current best block height.
func (c *Client) TipHeight(ctx context.Context) (uint64, error) {
	height, err := c.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("rpcnode: get_block_count: %w", err)
	}
	return uint64(height), nil
}

// BlockHashAt returns the canonical hash at height, per get_block_hash.
func (c *Client) BlockHashAt(ctx context.Context, height uint64) (chainmodel.Hash, error) {
	h, err := c.rpc.GetBlockHash(int64(height))
	if err != nil {
		return chainmodel.Hash{}, fmt.Errorf("rpcnode: get_block_hash(%d): %w", height, err)
	}
	return chainmodel.Hash(*h), nil
}

// BlockAt fetches and decodes the full block at height.
func (c *Client) BlockAt(ctx context.Context, height uint64) (*chainblock.Block, error) {
	hash, err := c.BlockHashAt(ctx, height)
	if err != nil {
		return nil, err
	}
	return c.BlockByHash(ctx, height, hash)
}

// BlockByHash fetches and decodes the block identified by hash, caller
// supplying the height it expects it at (get_block's response carries no
// height field of its own).
func (c *Client) BlockByHash(ctx context.Context, height uint64, hash chainmodel.Hash) (*chainblock.Block, error) {
	chHash := chainhash.Hash(hash)
	msg, err := c.rpc.GetBlock(&chHash)
	if err != nil {
		return nil, fmt.Errorf("rpcnode: get_block(%s): %w", hash, err)
	}
	var buf blockBuffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("rpcnode: reserialize block %s: %w", hash, err)
	}
	return chainblock.Decode(height, buf.Bytes())
}

// blockBuffer is a minimal io.Writer sink, avoiding a bytes.Buffer import
// purely for Serialize's sake in the common case of one call.
type blockBuffer struct {
	buf []byte
}

func (b *blockBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *blockBuffer) Bytes() []byte { return b.buf }
