// Copyright 2025 The ordindex Authors
// This file is part of ordindex.
//
// ordindex is free software: you can redistribute it and/or modify it
// under the terms of the GNU Lesser General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ordinal implements range arithmetic and the subsidy schedule
// over base-unit serials. All public operations take and return ranges;
// none ever expands a range into individual serials.
package ordinal

import "fmt"

// Serial is a base-unit ordinal, a non-negative integer in [0, 2^51).
type Serial = uint64

// Range is a half-open interval [Start, End) of serials.
type Range struct {
	Start Serial
	End   Serial
}

// Len returns the number of serials the range carries.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Split divides r into a left part of length min(n, r.Len()) and whatever
// remains to its right. If n >= r.Len(), right is the zero Range.
func Split(r Range, n uint64) (left, right Range) {
	if n >= r.Len() {
		return r, Range{}
	}
	mid := r.Start + n
	return Range{r.Start, mid}, Range{mid, r.End}
}

// Queue is a FIFO sequence of ranges supporting peeling off an exact
// number of serials from the front, splitting the front range when it
// straddles the boundary. All operations are O(1) amortized in the
// number of ranges touched, never in their total length.
type Queue struct {
	ranges []Range
	head   int
}

// NewQueue builds a queue from an initial ordered list of ranges.
func NewQueue(rs ...Range) *Queue {
	q := &Queue{}
	for _, r := range rs {
		q.PushBack(r)
	}
	return q
}

// PushBack appends a range to the tail of the queue. Zero-length ranges
// are dropped: they never hold a serial and would otherwise pollute FIFO
// ordering for inverse queries.
func (q *Queue) PushBack(r Range) {
	if r.Len() == 0 {
		return
	}
	q.ranges = append(q.ranges, r)
}

// Len returns the total number of serials remaining in the queue.
func (q *Queue) Len() uint64 {
	var total uint64
	for _, r := range q.ranges[q.head:] {
		total += r.Len()
	}
	return total
}

// Empty reports whether the queue holds no serials.
func (q *Queue) Empty() bool {
	return q.head >= len(q.ranges)
}

// Drain returns every range remaining in the queue, in FIFO order, and
// empties the queue. Used to collect leftover fee/destroyed ranges.
func (q *Queue) Drain() []Range {
	out := q.ranges[q.head:]
	q.ranges = nil
	q.head = 0
	return out
}

// PopFrontN peels exactly n serials off the front of the queue, splitting
// the front range if n falls in its middle, and returns the ranges that
// carried them in FIFO order. It returns fewer than n serials' worth of
// ranges (possibly zero) if the queue is exhausted first; callers compare
// the summed length of the result against n to detect underrun.
func (q *Queue) PopFrontN(n uint64) []Range {
	if n == 0 {
		return nil
	}
	var out []Range
	for n > 0 && !q.Empty() {
		front := q.ranges[q.head]
		left, right := Split(front, n)
		out = append(out, left)
		n -= left.Len()
		if right.Len() == 0 {
			q.head++
		} else {
			q.ranges[q.head] = right
		}
	}
	// Compact occasionally so a long-lived queue doesn't retain a huge
	// already-consumed prefix.
	if q.head > 0 && q.head == len(q.ranges) {
		q.ranges = nil
		q.head = 0
	}
	return out
}
