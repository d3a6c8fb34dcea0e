// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package chainmodel holds the small, dependency-light types shared
// across the store, engine, decoder and query packages: hashes,
// outpoints and satpoints (spec §3).
package chainmodel

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash is a 32-byte block or transaction id, in the node's byte order
// (chainhash.Hash already matches the wire byte order used by outpoints
// and block headers).
type Hash = chainhash.Hash

// Outpoint uniquely identifies one output: a transaction id and the
// index of the output within that transaction.
type Outpoint struct {
	TxID  Hash
	Index uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}

// Bytes returns the 36-byte canonical encoding used as the
// OUTPOINT_TO_RANGES table key: the 32-byte txid followed by the
// big-endian output index.
func (o Outpoint) Bytes() [36]byte {
	var b [36]byte
	copy(b[:32], o.TxID[:])
	b[32] = byte(o.Index >> 24)
	b[33] = byte(o.Index >> 16)
	b[34] = byte(o.Index >> 8)
	b[35] = byte(o.Index)
	return b
}

// OutpointFromBytes parses the 36-byte encoding produced by Bytes.
func OutpointFromBytes(b []byte) (Outpoint, error) {
	if len(b) != 36 {
		return Outpoint{}, fmt.Errorf("chainmodel: outpoint must be 36 bytes, got %d", len(b))
	}
	var o Outpoint
	copy(o.TxID[:], b[:32])
	o.Index = uint32(b[32])<<24 | uint32(b[33])<<16 | uint32(b[34])<<8 | uint32(b[35])
	return o, nil
}

// Satpoint locates one serial within an output: the outpoint holding it,
// plus the offset (count of serials) from the start of that output's
// concatenated ranges.
type Satpoint struct {
	Outpoint Outpoint
	Offset   uint64
}

func (s Satpoint) String() string {
	return fmt.Sprintf("%s:%d", s.Outpoint.String(), s.Offset)
}

// HashFromHex parses a hex-encoded, human-readable (big-endian display)
// block or transaction hash, matching the node RPC's JSON encoding.
func HashFromHex(s string) (Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Hash{}, err
	}
	return *h, nil
}

// MustHashFromHex is HashFromHex but panics on error; used for constants.
func MustHashFromHex(s string) Hash {
	h, err := HashFromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}
