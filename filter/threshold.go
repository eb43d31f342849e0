// elPrep: a high-performance tool for analyzing SAM/BAM files.
// Copyright (c) 2017-2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elprep/blob/master/LICENSE.txt>.

// Package filter implements C13, the threshold half of the post-call
// filter chain the distilled spec places out of scope: the random-forest
// model is an explicit Non-goal and the teacher pack carries no runtime
// to ground it on, but original_source/src/core/csr/filters shows the
// threshold half is a thin, self-contained stage over already-
// materialized records. Grounded on threshold_filter.hpp's
// measure/threshold/filter-key Condition and on the teacher's
// vcf.Variant.Pass(), generalized to non-destructive FILTER tagging
// instead of dropping records.
package filter

import "github.com/exascience/varcall/variant"

// Condition is one threshold check: Key is the VCF FILTER tag applied
// when the check fails, and check
// reports whether c passes (true) or fails (false).
type Condition struct {
	Key   string
	check func(c *variant.Call) bool
}

// ThresholdChain applies a fixed list of Conditions to every call in a
// sorted record stream, tagging (not dropping) records that fail any
// of them.
type ThresholdChain struct {
	Conditions []Condition
}

// NewChain builds the chain from section 6's three threshold flags:
// min-qual, min-depth, max-strand-bias. A bound <= 0 omits that
// condition entirely.
func NewChain(minQual float64, minDepth int, maxStrandBias float64) ThresholdChain {
	var conditions []Condition
	if minQual > 0 {
		conditions = append(conditions, Condition{
			Key:   "LowQual",
			check: func(c *variant.Call) bool { return float64(c.Qual) >= minQual },
		})
	}
	if minDepth > 0 {
		conditions = append(conditions, Condition{
			Key:   "LowDepth",
			check: func(c *variant.Call) bool { return c.Depth >= int32(minDepth) },
		})
	}
	if maxStrandBias > 0 {
		conditions = append(conditions, Condition{
			Key:   "StrandBias",
			check: func(c *variant.Call) bool { return c.StrandBias <= maxStrandBias },
		})
	}
	return ThresholdChain{Conditions: conditions}
}

// Tags returns the FILTER keys for every condition c fails, or nil if
// c passes every condition (the caller then writes "PASS").
func (t ThresholdChain) Tags(c *variant.Call) []string {
	var tags []string
	for _, cond := range t.Conditions {
		if !cond.check(c) {
			tags = append(tags, cond.Key)
		}
	}
	return tags
}

// Apply runs the chain over calls in place, recording failing calls'
// tags; Apply does not remove any call from the slice, matching
// Call.Pass()-style non-destructive filtering.
func (t ThresholdChain) Apply(calls []*variant.Call) map[*variant.Call][]string {
	failures := make(map[*variant.Call][]string)
	for _, c := range calls {
		if tags := t.Tags(c); len(tags) > 0 {
			failures[c] = tags
		}
	}
	return failures
}
