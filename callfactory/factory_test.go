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

package callfactory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/variant"
)

func snvCall(begin int32, refBase, altBase byte) *variant.Call {
	r := variant.Region{Contig: "chr1", Begin: begin, End: begin + 1}
	return &variant.Call{
		Region: r,
		Ref:    variant.Allele{Region: r, Seq: []byte{refBase}},
		Alts:   []variant.Allele{{Region: r, Seq: []byte{altBase}}},
	}
}

// Idempotence law: running Build a second time over its own output
// changes nothing further.
func TestBuildIsIdempotent(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	calls := []*variant.Call{snvCall(4, 'A', 'G'), snvCall(8, 'A', 'C')}

	once := Build(calls, ref, nil)
	twice := Build(once, ref, nil)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Region, twice[i].Region)
		assert.Equal(t, string(once[i].Ref.Seq), string(twice[i].Ref.Seq))
		assert.Equal(t, altKey(once[i]), altKey(twice[i]))
	}
}

// Invariant: the output is sorted by (region, ref, alt).
func TestBuildSortsOutput(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	calls := []*variant.Call{snvCall(8, 'A', 'C'), snvCall(4, 'A', 'G')}
	built := Build(calls, ref, nil)
	require.Len(t, built, 2)
	assert.True(t, built[0].Region.Begin < built[1].Region.Begin)
}

// parsimoniseAndLeftPad must borrow a reference base to keep REF
// non-empty, except at the very edge of the contig where there is no
// base to borrow.
func TestParsimoniseAndLeftPadBorrowsPrecedingBase(t *testing.T) {
	ref := []byte("ACGTACGT")
	insertionSite := variant.Region{Contig: "chr1", Begin: 3, End: 3}
	calls := []*variant.Call{{
		Region: insertionSite,
		Ref:    variant.Allele{Region: insertionSite, Seq: nil},
		Alts:   []variant.Allele{{Region: insertionSite, Seq: []byte("GG")}},
	}}
	out := parsimoniseAndLeftPad(calls, ref)
	require.Len(t, out, 1)
	assert.Equal(t, int32(2), out[0].Region.Begin)
	assert.Equal(t, "G", string(out[0].Ref.Seq))
	assert.Equal(t, "GGG", string(out[0].Alts[0].Seq))
}

func TestParsimoniseAndLeftPadLeavesContigEdgeAlone(t *testing.T) {
	ref := []byte("ACGT")
	insertionSite := variant.Region{Contig: "chr1", Begin: 0, End: 0}
	calls := []*variant.Call{{
		Region: insertionSite,
		Ref:    variant.Allele{Region: insertionSite, Seq: nil},
		Alts:   []variant.Allele{{Region: insertionSite, Seq: []byte("G")}},
	}}
	out := parsimoniseAndLeftPad(calls, ref)
	require.Len(t, out, 1)
	assert.Equal(t, int32(0), out[0].Region.Begin)
	assert.Empty(t, out[0].Ref.Seq)
}

// mergeBlocks folds overlapping same-start calls into one multi-allelic
// record with a deduplicated, sorted ALT list.
func TestMergeBlocksCombinesOverlappingCalls(t *testing.T) {
	a := snvCall(4, 'A', 'G')
	b := snvCall(4, 'A', 'C')
	merged := mergeBlocks([]*variant.Call{a, b})
	require.Len(t, merged, 1)
	assert.Len(t, merged[0].Alts, 2)
	assert.Equal(t, "C", string(merged[0].Alts[0].Seq))
	assert.Equal(t, "G", string(merged[0].Alts[1].Seq))
}

// markSpanningDeletions replaces every sample's allele with the `*`
// sentinel once that sample's call region is nested inside a deletion
// that started earlier and has not yet expired.
func TestMarkSpanningDeletionsReplacesNestedCalls(t *testing.T) {
	delRegion := variant.Region{Contig: "chr1", Begin: 4, End: 10}
	deletion := &variant.Call{
		Region: delRegion,
		Ref:    variant.Allele{Region: delRegion, Seq: []byte("ACGTAC")},
		Alts:   []variant.Allele{{Region: delRegion, Seq: nil}},
	}
	nestedRegion := variant.Region{Contig: "chr1", Begin: 6, End: 7}
	nested := &variant.Call{
		Region: nestedRegion,
		Ref:    variant.Allele{Region: nestedRegion, Seq: []byte("G")},
		Alts:   []variant.Allele{{Region: nestedRegion, Seq: []byte("T")}},
		Genotypes: []variant.GenotypeCall{{
			Sample:   "s1",
			Genotype: variant.Genotype[variant.Allele]{Elements: []variant.Allele{{Region: nestedRegion, Seq: []byte("G")}, {Region: nestedRegion, Seq: []byte("T")}}},
		}},
	}
	result := markSpanningDeletions([]*variant.Call{deletion, nested})
	require.Len(t, result, 2)
	for _, a := range result[1].Genotypes[0].Genotype.Elements {
		assert.True(t, a.IsSpanningDeletion())
	}
}
