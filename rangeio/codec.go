// Copyright 2025 The ordindex Authors
// This file is part of ordindex.

// Package rangeio encodes and decodes serial ranges for storage. Like the
// teacher's hand-rolled rlp package, this is a small home-grown wire
// codec rather than a general-purpose serialization library: the wire
// shape (a run of two variable-length integers per range) is specific to
// this store's needs and not worth pulling in a generic encoder for.
package rangeio

import (
	"encoding/binary"
	"errors"

	"github.com/ordlayer/ordindex/ordinal"
)

// ErrTruncated is returned when a range list's bytes end mid-record.
var ErrTruncated = errors.New("rangeio: truncated range record")

// EncodeRanges appends the wire encoding of an ordered range list to dst
// and returns the extended slice. Each range is stored as
// (start, length) rather than (start, end): a range's length is usually
// far smaller than its absolute end, so its varint is shorter and keeps
// rows compact.
func EncodeRanges(dst []byte, ranges []ordinal.Range) []byte {
	var buf [binary.MaxVarintLen64]byte
	for _, r := range ranges {
		n := binary.PutUvarint(buf[:], r.Start)
		dst = append(dst, buf[:n]...)
		n = binary.PutUvarint(buf[:], r.Len())
		dst = append(dst, buf[:n]...)
	}
	return dst
}

// DecodeRanges parses the wire encoding produced by EncodeRanges. A nil
// or empty slice decodes to a nil range list (the "exists, holds
// nothing" row for a zero-value output).
func DecodeRanges(b []byte) ([]ordinal.Range, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var ranges []ordinal.Range
	for len(b) > 0 {
		start, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, ErrTruncated
		}
		b = b[n:]
		length, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, ErrTruncated
		}
		b = b[n:]
		ranges = append(ranges, ordinal.Range{Start: start, End: start + length})
	}
	return ranges, nil
}
