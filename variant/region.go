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

// Package variant holds the core data model shared by the candidate
// generator, haplotype generator, likelihood cache, inference engines,
// phaser and record factory: regions, alleles, variants, haplotypes,
// genotypes and calls.
package variant

import "fmt"

// Region is a zero-based, half-open interval on a contig. Contigs are
// opaque strings compared lexicographically only within the same
// contig; regions never cross contigs.
type Region struct {
	Contig       string
	Begin, End int32
}

// Len returns the region's length in bases.
func (r Region) Len() int32 { return r.End - r.Begin }

// Empty reports whether the region spans zero bases (an insertion site).
func (r Region) Empty() bool { return r.Begin == r.End }

// Contains reports whether r fully contains other (same contig required).
func (r Region) Contains(other Region) bool {
	return r.Contig == other.Contig && r.Begin <= other.Begin && other.End <= r.End
}

// Overlaps reports whether r and other share any base.
func (r Region) Overlaps(other Region) bool {
	if r.Contig != other.Contig {
		return false
	}
	return r.Begin < other.End && other.Begin < r.End
}

// Before reports whether r ends at or before other begins.
func (r Region) Before(other Region) bool {
	return r.Contig == other.Contig && r.End <= other.Begin
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Begin, r.End)
}

// Union returns the smallest region spanning both r and other. Both must
// share the same contig.
func Union(r, other Region) Region {
	if r.Contig != other.Contig {
		panic("variant: Union across contigs")
	}
	begin := r.Begin
	if other.Begin < begin {
		begin = other.Begin
	}
	end := r.End
	if other.End > end {
		end = other.End
	}
	return Region{Contig: r.Contig, Begin: begin, End: end}
}

// RegionLess orders regions by (contig, begin, end) for contigs ordered
// according to contigOrder (a map from contig name to its index in the
// reference dictionary). Contigs absent from contigOrder sort last.
func RegionLess(a, b Region, contigOrder map[string]int) bool {
	oa, ok := contigOrder[a.Contig]
	if !ok {
		oa = len(contigOrder)
	}
	ob, ok := contigOrder[b.Contig]
	if !ok {
		ob = len(contigOrder)
	}
	if oa != ob {
		return oa < ob
	}
	if a.Begin != b.Begin {
		return a.Begin < b.Begin
	}
	return a.End < b.End
}
