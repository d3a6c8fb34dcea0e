// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package config loads the TOML configuration file the indexer and CLI
// read their settings from, using naoina/toml the same way the teacher's
// own node config loader (cmd/utils/flags.go, node/config.go) does.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"

	"github.com/ordlayer/ordindex/chainparams"
)

// Node holds the upstream node connection settings.
type Node struct {
	Host       string
	User       string
	Pass       string
	CookiePath string
	DisableTLS bool
}

// Config is the top-level TOML document layout, e.g.:
//
//	DataDir = "/var/lib/ordindex"
//	Chain = "main"
//
//	[Node]
//	Host = "127.0.0.1:8332"
//	CookiePath = "/home/btc/.bitcoin/.cookie"
type Config struct {
	DataDir             string
	Chain               string
	BatchSize           int
	UndoLogHorizon      uint64
	PollIntervalSeconds int
	Node                Node
}

// Default returns a Config seeded with the coordinator's own defaults,
// for fields a user's file doesn't set. Chain defaults to the CHAIN
// environment variable when set (spec §6 "Environment"), and to mainnet
// otherwise; either is overridden by an explicit Chain key in the config
// file or by the --chain flag.
func Default() Config {
	chain := string(chainparams.Main)
	if env := os.Getenv("CHAIN"); env != "" {
		chain = env
	}
	return Config{
		DataDir:             "./ordindex-data",
		Chain:               chain,
		BatchSize:           16,
		UndoLogHorizon:      chainparams.DefaultUndoLogHorizon,
		PollIntervalSeconds: 10,
	}
}

// PollInterval returns PollIntervalSeconds as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Load reads and parses the TOML file at path, layering it over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
