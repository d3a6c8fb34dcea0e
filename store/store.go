// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package store implements the persistent store (spec §4.D): a
// transactional key-value store with the named tables of §3, backed by
// goleveldb, the same backend the teacher's own tosdb.leveldb package
// wraps. goleveldb has no native column families, so each table is a
// single-byte key prefix within one database; atomic multi-table commits
// fall straight out of a single leveldb.Batch covering every table.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
)

// Table prefixes. One byte is enough: goleveldb orders keys
// lexicographically, so every table also gets its own contiguous key
// range for iteration (used by undo-log lookup and horizon pruning).
const (
	prefixHeightToHash   byte = 'h'
	prefixOutpointRanges byte = 'o'
	prefixStatistics     byte = 's'
	prefixUndoLog        byte = 'u'
	prefixSchemaVersion  byte = 'v'
)

// SchemaVersion is bumped whenever the on-disk key/value encoding
// changes incompatibly. Opening a store written by a different version
// is refused rather than silently migrated (spec §6).
const SchemaVersion uint32 = 1

var schemaVersionKey = []byte{prefixSchemaVersion}

// ErrIncompatibleSchema is returned by Open when the store file was
// written by a different, incompatible schema version.
var ErrIncompatibleSchema = errors.New("store: incompatible schema version")

// StatID names one counter in the STATISTICS table.
type StatID byte

const (
	StatIndexedHeight StatID = iota
	StatOutputsIndexed
)

// Store is the open handle to one database file. One Store is shared by
// exactly one writer (the index coordinator) and any number of readers
// (the query interface), per spec §5.
type Store struct {
	db    *leveldb.DB
	cache *fastcache.Cache // read-through cache for OUTPOINT_TO_RANGES
}

// Open opens (creating if absent) the database file at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return newStore(db)
}

// OpenMemory opens an ephemeral in-memory store, for tests and
// short-lived tools.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open memory store: %w", err)
	}
	return newStore(db)
}

func newStore(db *leveldb.DB) (*Store, error) {
	s := &Store{db: db, cache: fastcache.New(32 * 1024 * 1024)}
	if err := s.checkOrWriteSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkOrWriteSchema() error {
	v, err := s.db.Get(schemaVersionKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], SchemaVersion)
		return s.db.Put(schemaVersionKey, buf[:], nil)
	}
	if err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if len(v) != 4 || binary.BigEndian.Uint32(v) != SchemaVersion {
		return ErrIncompatibleSchema
	}
	return nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func heightKey(height uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefixHeightToHash
	binary.BigEndian.PutUint32(k[1:], height)
	return k
}

func outpointKey(op chainmodel.Outpoint) []byte {
	b := op.Bytes()
	k := make([]byte, 1+len(b))
	k[0] = prefixOutpointRanges
	copy(k[1:], b[:])
	return k
}

func statKey(id StatID) []byte {
	return []byte{prefixStatistics, byte(id)}
}

func undoKey(height uint32, op chainmodel.Outpoint) []byte {
	b := op.Bytes()
	k := make([]byte, 1+4+len(b))
	k[0] = prefixUndoLog
	binary.BigEndian.PutUint32(k[1:5], height)
	copy(k[5:], b[:])
	return k
}

func undoHeightPrefix(height uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefixUndoLog
	binary.BigEndian.PutUint32(k[1:], height)
	return k
}

// UndoEntry is one recorded prior state for a row that an applied block
// deleted: the row's key and the ranges it held immediately before
// deletion (spec §4.E Reorganization).
type UndoEntry struct {
	Outpoint       chainmodel.Outpoint
	OriginalRanges []ordinal.Range
}

func decodeStat(v []byte) (uint64, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("store: malformed statistics value, len %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func encodeStat(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

