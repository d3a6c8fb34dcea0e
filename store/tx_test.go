package store

import (
	"testing"

	"github.com/ordlayer/ordindex/chainmodel"
	"github.com/ordlayer/ordindex/ordinal"
)

func testOutpoint(b byte, idx uint32) chainmodel.Outpoint {
	var h chainmodel.Hash
	h[0] = b
	return chainmodel.Outpoint{TxID: h, Index: idx}
}

func TestTxReadYourOwnWrites(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	tx := s.BeginWrite()
	op := testOutpoint(1, 0)
	ranges := []ordinal.Range{{Start: 0, End: 10}}
	tx.PutOutpointRanges(op, ranges)

	got, ok, err := tx.OutpointRanges(op)
	if err != nil || !ok {
		t.Fatalf("read pending write: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0] != ranges[0] {
		t.Fatalf("read pending write: got %v want %v", got, ranges)
	}

	// Not yet visible to a fresh reader until commit.
	r, err := s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	if _, ok, _ := r.OutpointRanges(op); ok {
		t.Fatalf("uncommitted write visible to reader")
	}
	r.Release()

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	r, err = s.BeginRead()
	if err != nil {
		t.Fatalf("begin read after commit: %v", err)
	}
	defer r.Release()
	got, ok, err = r.OutpointRanges(op)
	if err != nil || !ok {
		t.Fatalf("read after commit: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0] != ranges[0] {
		t.Fatalf("read after commit: got %v want %v", got, ranges)
	}
}

func TestTxDiscardDropsWrites(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	tx := s.BeginWrite()
	op := testOutpoint(2, 0)
	tx.PutOutpointRanges(op, []ordinal.Range{{Start: 0, End: 1}})
	tx.Discard()

	r, err := s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer r.Release()
	if _, ok, _ := r.OutpointRanges(op); ok {
		t.Fatalf("discarded write visible after discard")
	}
}

func TestTxDeleteOverlay(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	op := testOutpoint(3, 0)
	tx := s.BeginWrite()
	tx.PutOutpointRanges(op, []ordinal.Range{{Start: 0, End: 1}})
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx = s.BeginWrite()
	tx.DeleteOutpointRanges(op)
	if _, ok, err := tx.OutpointRanges(op); err != nil || ok {
		t.Fatalf("read after in-tx delete: ok=%v err=%v", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit delete: %v", err)
	}

	r, err := s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer r.Release()
	if _, ok, _ := r.OutpointRanges(op); ok {
		t.Fatalf("deleted row still present after commit")
	}
}

func TestIndexedHeightBiasing(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	r, err := s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	if _, ok, err := IndexedHeight(r); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v, want not-ok", ok, err)
	}
	r.Release()

	tx := s.BeginWrite()
	SetIndexedHeight(tx, 0)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	r, err = s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer r.Release()
	height, ok, err := IndexedHeight(r)
	if err != nil || !ok {
		t.Fatalf("after indexing genesis: ok=%v err=%v", ok, err)
	}
	if height != 0 {
		t.Fatalf("height = %d, want 0", height)
	}
}

func TestUndoLogRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	op := testOutpoint(4, 1)
	original := []ordinal.Range{{Start: 100, End: 200}}

	tx := s.BeginWrite()
	tx.RecordUndo(7, op, original)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit undo: %v", err)
	}

	tx = s.BeginWrite()
	entries, err := tx.UndoEntriesForHeight(7)
	if err != nil {
		t.Fatalf("read undo entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Outpoint != op || len(entries[0].OriginalRanges) != 1 || entries[0].OriginalRanges[0] != original[0] {
		t.Fatalf("undo entries = %v", entries)
	}
	if err := tx.DeleteUndoLogForHeight(7); err != nil {
		t.Fatalf("clear undo log: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit clear: %v", err)
	}

	tx = s.BeginWrite()
	entries, err = tx.UndoEntriesForHeight(7)
	if err != nil {
		t.Fatalf("read undo entries after clear: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("undo entries after clear = %v, want none", entries)
	}
}

func TestStatDefaultsToZero(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	r, err := s.BeginRead()
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	defer r.Release()
	v, err := r.Stat(StatOutputsIndexed)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if v != 0 {
		t.Fatalf("stat default = %d, want 0", v)
	}
}

func TestCommitIsDeterministicAcrossKeyInsertionOrder(t *testing.T) {
	s1, err := OpenMemory()
	if err != nil {
		t.Fatalf("open s1: %v", err)
	}
	defer s1.Close()
	s2, err := OpenMemory()
	if err != nil {
		t.Fatalf("open s2: %v", err)
	}
	defer s2.Close()

	opA := testOutpoint(5, 0)
	opB := testOutpoint(6, 0)
	rangesA := []ordinal.Range{{Start: 0, End: 1}}
	rangesB := []ordinal.Range{{Start: 1, End: 2}}

	tx1 := s1.BeginWrite()
	tx1.PutOutpointRanges(opA, rangesA)
	tx1.PutOutpointRanges(opB, rangesB)
	if err := tx1.Commit(); err != nil {
		t.Fatalf("commit s1: %v", err)
	}

	tx2 := s2.BeginWrite()
	tx2.PutOutpointRanges(opB, rangesB)
	tx2.PutOutpointRanges(opA, rangesA)
	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit s2: %v", err)
	}

	r1, _ := s1.BeginRead()
	defer r1.Release()
	r2, _ := s2.BeginRead()
	defer r2.Release()

	for _, op := range []chainmodel.Outpoint{opA, opB} {
		g1, ok1, _ := r1.OutpointRanges(op)
		g2, ok2, _ := r2.OutpointRanges(op)
		if ok1 != ok2 || len(g1) != len(g2) || (len(g1) > 0 && g1[0] != g2[0]) {
			t.Fatalf("insertion order changed result for %v: %v vs %v", op, g1, g2)
		}
	}
}
