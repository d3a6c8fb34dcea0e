// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

package flags

import "github.com/urfave/cli/v2"

const (
	IndexCategory   = "INDEXING"
	NodeCategory    = "UPSTREAM NODE"
	StoreCategory   = "STORAGE"
	LoggingCategory = "LOGGING AND DEBUGGING"
	MiscCategory    = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
