// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/urfave/cli/v2"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/chainparams"
	"github.com/ordlayer/ordindex/indexer"
	"github.com/ordlayer/ordindex/internal/config"
	"github.com/ordlayer/ordindex/internal/log"
	"github.com/ordlayer/ordindex/ordinal"
	"github.com/ordlayer/ordindex/query"
	"github.com/ordlayer/ordindex/rpcnode"
	"github.com/ordlayer/ordindex/store"
)

var commandIndex = &cli.Command{
	Name:  "index",
	Usage: "run the index coordinator until interrupted",
	Action: func(ctx *cli.Context) error {
		cfg, params, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		node, err := rpcnode.Dial(rpcnode.Config{
			Host:       cfg.Node.Host,
			User:       cfg.Node.User,
			Pass:       cfg.Node.Pass,
			CookiePath: cfg.Node.CookiePath,
			DisableTLS: cfg.Node.DisableTLS,
		})
		if err != nil {
			return err
		}
		defer node.Close()

		schedule := ordinal.Schedule{HalvingInterval: params.HalvingInterval}
		coord, err := indexer.New(s, node, schedule, indexer.Config{
			BatchSize:      cfg.BatchSize,
			UndoLogHorizon: cfg.UndoLogHorizon,
			PollInterval:   cfg.PollInterval(),
			BlockCacheSize: indexer.DefaultConfig.BlockCacheSize,
		})
		if err != nil {
			return err
		}
		log.Info("starting index coordinator", "data_dir", cfg.DataDir, "chain", params.Network)
		return coord.Run(context.Background())
	},
}

var commandFind = &cli.Command{
	Name:      "find",
	Usage:     "find the outpoint and offset currently holding a serial, given a candidate outpoint",
	ArgsUsage: "<serial> <txid>:<index>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return newUsageError("find requires exactly two arguments: <serial> <txid>:<index>")
		}
		serial, err := strconv.ParseUint(ctx.Args().Get(0), 10, 64)
		if err != nil {
			return newUsageError("invalid serial %q: %v", ctx.Args().Get(0), err)
		}
		op, err := parseOutpoint(ctx.Args().Get(1))
		if err != nil {
			return newUsageError("%v", err)
		}

		cfg, _, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		q := query.New(s, nil)
		sp, ok, err := q.SatpointOf(op, serial)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not found")
			return nil
		}
		fmt.Println(sp.String())
		return nil
	},
}

var commandList = &cli.Command{
	Name:      "list",
	Usage:     "list the serial ranges currently held by an outpoint",
	ArgsUsage: "<txid>:<index>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return newUsageError("list requires exactly one argument: <txid>:<index>")
		}
		op, err := parseOutpoint(ctx.Args().Get(0))
		if err != nil {
			return newUsageError("%v", err)
		}

		cfg, _, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		q := query.New(s, nil)
		ranges, ok, err := q.OutputRanges(op)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not found")
			return nil
		}
		var total uint64
		for _, r := range ranges {
			fmt.Println(r.String())
			total += r.Len()
		}
		fmt.Printf("%d base units (%s)\n", total, btcutil.Amount(int64(total)))
		return nil
	},
}

var commandStatus = &cli.Command{
	Name:  "status",
	Usage: "report the store's indexed height and the upstream node's tip",
	Action: func(ctx *cli.Context) error {
		cfg, _, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		s, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		node, err := rpcnode.Dial(rpcnode.Config{
			Host:       cfg.Node.Host,
			User:       cfg.Node.User,
			Pass:       cfg.Node.Pass,
			CookiePath: cfg.Node.CookiePath,
			DisableTLS: cfg.Node.DisableTLS,
		})
		if err != nil {
			return err
		}
		defer node.Close()

		q := query.New(s, node)
		st, err := q.CurrentStatus(context.Background())
		if err != nil {
			return err
		}
		if !st.Indexed {
			fmt.Println("indexed: none")
		} else {
			fmt.Printf("indexed: %d\n", st.IndexedHeight)
		}
		fmt.Printf("node tip: %d\n", st.NodeTip)
		return nil
	},
}

// loadConfig reads the TOML config file and layers any explicitly set
// --datadir/--chain/--node flags over it, highest precedence last.
func loadConfig(ctx *cli.Context) (config.Config, *chainparams.Params, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return cfg, nil, err
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(chainFlag.Name) {
		cfg.Chain = ctx.String(chainFlag.Name)
	}
	if ctx.IsSet(nodeHostFlag.Name) {
		cfg.Node.Host = ctx.String(nodeHostFlag.Name)
	}
	params, err := chainparams.ForNetwork(cfg.Chain)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, params, nil
}

func parseOutpoint(s string) (chainmodel.Outpoint, error) {
	i := lastColon(s)
	if i < 0 {
		return chainmodel.Outpoint{}, fmt.Errorf("malformed outpoint %q, want <txid>:<index>", s)
	}
	hash, err := chainmodel.HashFromHex(s[:i])
	if err != nil {
		return chainmodel.Outpoint{}, fmt.Errorf("malformed txid in %q: %w", s, err)
	}
	index, err := strconv.ParseUint(s[i+1:], 10, 32)
	if err != nil {
		return chainmodel.Outpoint{}, fmt.Errorf("malformed output index in %q: %w", s, err)
	}
	return chainmodel.Outpoint{TxID: hash, Index: uint32(index)}, nil
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}
