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

package likelihood

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

func highQualRead(qname, seq string) *sam.Alignment {
	return &sam.Alignment{
		QNAME: qname,
		MAPQ:  60,
		SEQ:   seq,
		QUAL:  strings.Repeat(string(rune(33+40)), len(seq)), // Q40 throughout
	}
}

func refHaplotype(seq string) *variant.Haplotype {
	return &variant.Haplotype{
		Region: variant.Region{Contig: "chr1", Begin: 0, End: int32(len(seq))},
		Seq:    []byte(seq),
		IsRef:  true,
	}
}

func altHaplotype(seq string) *variant.Haplotype {
	return &variant.Haplotype{
		Region: variant.Region{Contig: "chr1", Begin: 0, End: int32(len(seq))},
		Seq:    []byte(seq),
	}
}

// A read matching a haplotype exactly scores a higher (less negative)
// log10 likelihood under that haplotype than under one differing by a
// mismatch in the middle of the read.
func TestComputePrefersMatchingHaplotype(t *testing.T) {
	ref := refHaplotype("ACGTACGTAC")
	alt := altHaplotype("ACGTTCGTAC") // single mismatch at position 4
	read := highQualRead("r1", "ACGTACGTAC")

	m := Compute([]*sam.Alignment{read}, []*variant.Haplotype{ref, alt}, DefaultConfig())
	require.Len(t, m.Reads, 1)

	refScore := m.Get(ref, 0)
	altScore := m.Get(alt, 0)
	assert.Greater(t, refScore, altScore)
}

// Boundary: Matrix.Get on an out-of-range read index never indexes out
// of bounds; it reports -Inf, the "no evidence" value.
func TestMatrixGetOutOfRangeIsNegativeInfinity(t *testing.T) {
	ref := refHaplotype("ACGT")
	read := highQualRead("r1", "ACGT")
	m := Compute([]*sam.Alignment{read}, []*variant.Haplotype{ref}, DefaultConfig())

	assert.True(t, math.IsInf(m.Get(ref, 5), -1))
	assert.True(t, math.IsInf(m.Get(ref, -1), -1))
}

// rejectPoorlyModeledReads must never drop a read that every haplotype
// explains reasonably well, and the surviving rows must stay aligned
// with the surviving reads (the bitset keep-mask is index-parallel to
// both).
func TestRejectPoorlyModeledReadsKeepsWellModeledReads(t *testing.T) {
	ref := refHaplotype("ACGTACGTAC")
	read := highQualRead("r1", "ACGTACGTAC")
	values := map[*variant.Haplotype][]float64{ref: {-1.0}}

	reads, newValues := rejectPoorlyModeledReads([]*sam.Alignment{read}, []*variant.Haplotype{ref}, values)
	require.Len(t, reads, 1)
	assert.Same(t, read, reads[0])
	assert.Equal(t, []float64{-1.0}, newValues[ref])
}

func TestRejectPoorlyModeledReadsDropsImplausibleReads(t *testing.T) {
	ref := refHaplotype("ACGTACGTAC")
	good := highQualRead("good", "ACGTACGTAC")
	bad := highQualRead("bad", "ACGTACGTAC")
	// bad's likelihood under the only haplotype is far below any
	// plausible per-base error rate for a 10bp read.
	values := map[*variant.Haplotype][]float64{ref: {-1.0, -1000.0}}

	reads, newValues := rejectPoorlyModeledReads([]*sam.Alignment{good, bad}, []*variant.Haplotype{ref}, values)
	require.Len(t, reads, 1)
	assert.Equal(t, "good", reads[0].QNAME)
	assert.Equal(t, []float64{-1.0}, newValues[ref])
}
