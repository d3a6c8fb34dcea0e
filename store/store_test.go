package store

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

func TestOpenMemoryWritesSchemaVersion(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer s.Close()

	v, err := s.db.Get(schemaVersionKey, nil)
	if err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if len(v) != 4 || binary.BigEndian.Uint32(v) != SchemaVersion {
		t.Fatalf("schema version = %v, want %d", v, SchemaVersion)
	}
}

func TestOpenRejectsIncompatibleSchema(t *testing.T) {
	mem := storage.NewMemStorage()
	db, err := leveldb.Open(mem, &opt.Options{})
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], SchemaVersion+1)
	if err := db.Put(schemaVersionKey, buf[:], nil); err != nil {
		t.Fatalf("seed schema version: %v", err)
	}
	db.Close()

	db, err = leveldb.Open(mem, &opt.Options{})
	if err != nil {
		t.Fatalf("reopen raw db: %v", err)
	}
	_, err = newStore(db)
	if !errors.Is(err, ErrIncompatibleSchema) {
		t.Fatalf("newStore on future schema: got %v, want %v", err, ErrIncompatibleSchema)
	}
}

func TestKeyPrefixesArePairwiseDistinct(t *testing.T) {
	prefixes := []byte{prefixHeightToHash, prefixOutpointRanges, prefixStatistics, prefixUndoLog, prefixSchemaVersion}
	seen := make(map[byte]bool)
	for _, p := range prefixes {
		if seen[p] {
			t.Fatalf("duplicate table prefix %q", p)
		}
		seen[p] = true
	}
}
