package rangeio

import (
	"reflect"
	"testing"

	"github.com/ordlayer/ordindex/ordinal"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]ordinal.Range{
		nil,
		{},
		{{0, 5_000_000_000}},
		{{0, 2}, {2, 5}, {5, 5_000_000_000}},
		{{10_000_000_000, 15_000_000_000}, {5, 5_000_000_000}},
	}
	for _, ranges := range cases {
		enc := EncodeRanges(nil, ranges)
		got, err := DecodeRanges(enc)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(ranges) == 0 {
			if len(got) != 0 {
				t.Fatalf("expected empty round-trip, got %v", got)
			}
			continue
		}
		if !reflect.DeepEqual(got, ranges) {
			t.Fatalf("round trip mismatch: got %v want %v", got, ranges)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := DecodeRanges([]byte{0xff}); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
