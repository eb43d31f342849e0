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

package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/variant"
)

// Boundary: no reads and no external candidates yields an empty,
// error-free candidate set.
func TestGenerateEmptyCandidates(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	region := variant.Region{Contig: "chr1", Begin: 0, End: int32(len(ref))}
	vs, err := Generate(region, nil, ref, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestGenerateRejectsEmptyContig(t *testing.T) {
	ref := []byte("ACGT")
	region := variant.Region{Contig: "", Begin: 0, End: 4}
	_, err := Generate(region, nil, ref, DefaultConfig())
	assert.Error(t, err)
}

func TestGenerateRejectsRegionPastReference(t *testing.T) {
	ref := []byte("ACGT")
	region := variant.Region{Contig: "chr1", Begin: 0, End: 10}
	_, err := Generate(region, nil, ref, DefaultConfig())
	assert.Error(t, err)
}

// Invariant: every returned candidate's region is contained within the
// requested region, and candidates are sorted and deduplicated.
func TestGenerateContainmentSortAndDedup(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	region := variant.Region{Contig: "chr1", Begin: 2, End: 10}
	dup := variant.Variant{
		Ref: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 5, End: 6}, Seq: []byte("T")},
		Alt: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 5, End: 6}, Seq: []byte("G")},
	}
	later := variant.Variant{
		Ref: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 8, End: 9}, Seq: []byte("A")},
		Alt: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 8, End: 9}, Seq: []byte("C")},
	}
	outOfRegion := variant.Variant{
		Ref: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 0, End: 1}, Seq: []byte("A")},
		Alt: variant.Allele{Region: variant.Region{Contig: "chr1", Begin: 0, End: 1}, Seq: []byte("G")},
	}
	cfg := DefaultConfig()
	cfg.External = []variant.Variant{later, dup, dup, outOfRegion}

	vs, err := Generate(region, nil, ref, cfg)
	require.NoError(t, err)
	require.Len(t, vs, 2, "duplicate external candidates collapse and out-of-region ones are dropped")
	for _, v := range vs {
		assert.True(t, region.Contains(v.Ref.Region))
	}
	assert.True(t, vs[0].Ref.Region.Begin <= vs[1].Ref.Region.Begin, "result must be sorted")
}

// leftAlign slides a purely repetitive insertion as far left as the
// reference homopolymer allows, per the left-alignment invariant.
func TestLeftAlignSlidesInsertionThroughHomopolymer(t *testing.T) {
	ref := []byte("GGAAAACGT")
	site := variant.Region{Contig: "chr1", Begin: 5, End: 5} // insertion site inside the A-run
	v := variant.Variant{
		Ref: variant.Allele{Region: site, Seq: nil},
		Alt: variant.Allele{Region: site, Seq: []byte("A")},
	}
	aligned := leftAlign(v, ref)
	assert.Equal(t, int32(2), aligned.Ref.Region.Begin, "an inserted A should slide to the start of the A-run")
	assert.Equal(t, aligned.Ref.Region, aligned.Alt.Region)
}

func TestLeftAlignLeavesNonSlidableVariantsUnchanged(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	r := variant.Region{Contig: "chr1", Begin: 5, End: 6}
	v := variant.Variant{
		Ref: variant.Allele{Region: r, Seq: []byte("C")},
		Alt: variant.Allele{Region: r, Seq: []byte("G")},
	}
	aligned := leftAlign(v, ref)
	assert.Equal(t, v, aligned)
}
