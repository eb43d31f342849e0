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

package haplotype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/variant"
)

// Boundary: no candidates in the region yields no haplotypes and an
// active region collapsed to the caller region's own end.
func TestProgressEmptyCandidates(t *testing.T) {
	region := variant.Region{Contig: "chr1", Begin: 0, End: 100}
	ref := make([]byte, 100)
	g := New(region, nil, nil, ref, DefaultConfig())

	haps, active := g.Progress()
	assert.Empty(t, haps)
	assert.Equal(t, variant.Region{Contig: "chr1", Begin: 100, End: 100}, active)
}

// Invariant: |H| never exceeds max_haplotypes, even when enumeration
// would otherwise produce more.
func TestProgressBoundsHaplotypeSetSize(t *testing.T) {
	region := variant.Region{Contig: "chr1", Begin: 0, End: 20}
	ref := []byte("AAAAAAAAAAAAAAAAAAAA")
	var candidates []variant.Variant
	for i := int32(0); i < 6; i++ {
		r := variant.Region{Contig: "chr1", Begin: i, End: i + 1}
		candidates = append(candidates, variant.Variant{
			Ref: variant.Allele{Region: r, Seq: []byte("A")},
			Alt: variant.Allele{Region: r, Seq: []byte("T")},
		})
	}
	cfg := DefaultConfig()
	cfg.MaxHaplotypes = 4
	g := New(region, candidates, nil, ref, cfg)

	haps, _ := g.Progress()
	assert.LessOrEqual(t, len(haps), cfg.MaxHaplotypes)
}

// ExtensionNoLimit must not be treated as a sentinel that disables the
// rightward extension loop altogether; it only disables the per-step
// distance cap (regression test for the dead `Extension != -1` guard).
func TestActiveRegionForExtensionNoLimitStillTerminates(t *testing.T) {
	region := variant.Region{Contig: "chr1", Begin: 0, End: 50}
	ref := make([]byte, 50)
	for i := range ref {
		ref[i] = 'A'
	}
	var candidates []variant.Variant
	for i := int32(0); i < 10; i++ {
		r := variant.Region{Contig: "chr1", Begin: i * 4, End: i*4 + 1}
		candidates = append(candidates, variant.Variant{
			Ref: variant.Allele{Region: r, Seq: []byte("A")},
			Alt: variant.Allele{Region: r, Seq: []byte("T")},
		})
	}
	cfg := DefaultConfig()
	cfg.Extension = ExtensionNoLimit
	cfg.MaxHaplotypes = 8
	g := New(region, candidates, nil, ref, cfg)

	require.NotPanics(t, func() {
		haps, active := g.Progress()
		assert.NotEmpty(t, haps)
		assert.LessOrEqual(t, active.End, region.End)
	})
}

func TestRemoveExcludesHaplotypesFromSubsequentEnumeration(t *testing.T) {
	region := variant.Region{Contig: "chr1", Begin: 0, End: 10}
	ref := []byte("AAAAAAAAAA")
	r := variant.Region{Contig: "chr1", Begin: 2, End: 3}
	candidates := []variant.Variant{{
		Ref: variant.Allele{Region: r, Seq: []byte("A")},
		Alt: variant.Allele{Region: r, Seq: []byte("T")},
	}}
	g := New(region, candidates, nil, ref, DefaultConfig())
	active := g.TellNextActiveRegion()
	haps := g.enumerate(active)
	require.NotEmpty(t, haps)

	g.Remove(haps)
	remaining := g.enumerate(active)
	assert.Empty(t, remaining)
}
