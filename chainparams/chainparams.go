// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package chainparams holds the per-network parameters selected by the
// CHAIN environment variable: the subsidy epoch length (210,000 blocks on
// every network except regtest, which halves every 150) and the expected
// genesis block hash.
package chainparams

import "fmt"

// Network identifies one of the chains this indexer can run against.
type Network string

const (
	Main    Network = "main"
	Test    Network = "test"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

// Params are the network-specific constants the core consumes.
type Params struct {
	Network         Network
	HalvingInterval uint64
	GenesisHash     string // hex, as reported by the upstream node
	UndoLogHorizon  uint64 // heights of undo log retained for reorg rollback
}

// DefaultUndoLogHorizon is the undo-log retention shared by every
// network. The genesis subsidy in base units is ordinal.InitialSubsidy.
const (
	DefaultUndoLogHorizon = 1000
)

var byNetwork = map[Network]*Params{
	Main: {
		Network:         Main,
		HalvingInterval: 210_000,
		GenesisHash:     "0000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26",
		UndoLogHorizon:  DefaultUndoLogHorizon,
	},
	Test: {
		Network:         Test,
		HalvingInterval: 210_000,
		GenesisHash:     "0000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4a3",
		UndoLogHorizon:  DefaultUndoLogHorizon,
	},
	Signet: {
		Network:         Signet,
		HalvingInterval: 210_000,
		GenesisHash:     "000000008819873e925422c1ff0f99f7cc9bbb232af63a077a480a3633bee1ef",
		UndoLogHorizon:  DefaultUndoLogHorizon,
	},
	Regtest: {
		Network:         Regtest,
		HalvingInterval: 150,
		GenesisHash:     "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206",
		UndoLogHorizon:  DefaultUndoLogHorizon,
	},
}

// ForNetwork returns the parameters for name, or an error if name does
// not name one of the four supported networks.
func ForNetwork(name string) (*Params, error) {
	p, ok := byNetwork[Network(name)]
	if !ok {
		return nil, fmt.Errorf("chainparams: unknown network %q", name)
	}
	cp := *p
	return &cp, nil
}
