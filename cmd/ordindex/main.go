// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ordlayer/ordindex/internal/flags"
	"github.com/ordlayer/ordindex/internal/log"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "ordindex"
	app.Usage = "an ordinal/serial-unit indexer for a proof-of-work UTXO chain"
	app.Flags = []cli.Flag{configFlag, dataDirFlag, chainFlag, nodeHostFlag, verbosityFlag}
	app.Before = func(ctx *cli.Context) error {
		log.SetLevel(log.Level(ctx.Int(verbosityFlag.Name)))
		return nil
	}
	app.Commands = []*cli.Command{
		commandIndex,
		commandFind,
		commandList,
		commandStatus,
	}
}

var configFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "path to the TOML config file",
	Value:    "ordindex.toml",
	Category: flags.MiscCategory,
}

var dataDirFlag = &cli.StringFlag{
	Name:     "datadir",
	Usage:    "store database directory (overrides the config file)",
	Category: flags.StoreCategory,
}

var chainFlag = &cli.StringFlag{
	Name:     "chain",
	Usage:    "network: main, test, signet or regtest (overrides the config file and CHAIN env var)",
	Category: flags.IndexCategory,
}

var nodeHostFlag = &cli.StringFlag{
	Name:     "node",
	Usage:    "upstream node RPC host:port (overrides the config file)",
	Category: flags.NodeCategory,
}

var verbosityFlag = &cli.IntFlag{
	Name:     "verbosity",
	Usage:    "log verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
	Value:    int(log.LevelInfo),
	Category: flags.LoggingCategory,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the process exit code spec §6 assigns:
// 0 success, 1 usage, 2 unrecoverable store or node error.
func exitCodeFor(err error) int {
	if _, ok := err.(usageError); ok {
		return 1
	}
	return 2
}

// usageError marks a CLI argument mistake, distinct from a runtime
// failure deeper in the store or engine.
type usageError struct{ error }

func newUsageError(format string, a ...interface{}) error {
	return usageError{fmt.Errorf(format, a...)}
}
