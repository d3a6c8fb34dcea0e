// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package chainblock adapts raw block bytes fetched from the upstream
// node into the in-memory view the assignment engine consumes. No
// script interpretation happens here or anywhere downstream; output
// values are taken verbatim from the wire encoding (spec §4.C).
package chainblock

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/ordlayer/ordindex/chainmodel"
)

// TxOut is one transaction output: its value in base units, taken
// verbatim from the wire encoding.
type TxOut struct {
	Value uint64
}

// Tx is one decoded transaction. For the coinbase transaction (index 0
// in Block.Txs), Inputs is empty: the coinbase's only "input" is the
// implicit subsidy the engine synthesizes (spec §4.E step 1).
type Tx struct {
	ID      chainmodel.Hash
	Inputs  []chainmodel.Outpoint
	Outputs []TxOut
}

// Block is the decoded view of one block: its header fields plus an
// ordered transaction list, coinbase first.
type Block struct {
	Height       uint64
	Hash         chainmodel.Hash
	PreviousHash chainmodel.Hash
	Txs          []Tx
}

// Decode parses raw serialized block bytes (the node's getblock <hash> 0
// response, hex-decoded) into a Block. It performs no validation beyond
// what's needed to walk the wire format: proof-of-work, script validity
// and signature checks are the upstream node's responsibility (spec §1
// Non-goals).
func Decode(height uint64, raw []byte) (*Block, error) {
	var msg wire.MsgBlock
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("chainblock: malformed block at height %d: %w", height, err)
	}
	if len(msg.Transactions) == 0 {
		return nil, fmt.Errorf("chainblock: block at height %d has no transactions", height)
	}

	b := &Block{
		Height:       height,
		Hash:         chainmodel.Hash(msg.BlockHash()),
		PreviousHash: chainmodel.Hash(msg.Header.PrevBlock),
		Txs:          make([]Tx, len(msg.Transactions)),
	}
	for i, wtx := range msg.Transactions {
		tx := Tx{ID: chainmodel.Hash(wtx.TxHash())}
		if i != 0 {
			// The coinbase's single input references no real prior
			// output; its ranges come from the synthesized subsidy
			// range instead (spec §4.E step 1).
			tx.Inputs = make([]chainmodel.Outpoint, len(wtx.TxIn))
			for j, in := range wtx.TxIn {
				tx.Inputs[j] = chainmodel.Outpoint{
					TxID:  chainmodel.Hash(in.PreviousOutPoint.Hash),
					Index: in.PreviousOutPoint.Index,
				}
			}
		}
		tx.Outputs = make([]TxOut, len(wtx.TxOut))
		for j, out := range wtx.TxOut {
			if out.Value < 0 {
				return nil, fmt.Errorf("chainblock: negative output value in tx %s", tx.ID)
			}
			tx.Outputs[j] = TxOut{Value: uint64(out.Value)}
		}
		b.Txs[i] = tx
	}
	return b, nil
}
