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

package variant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionContainsAndOverlaps(t *testing.T) {
	outer := Region{Contig: "chr1", Begin: 10, End: 20}
	inner := Region{Contig: "chr1", Begin: 12, End: 15}
	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))

	other := Region{Contig: "chr2", Begin: 12, End: 15}
	assert.False(t, outer.Contains(other), "regions on different contigs never contain one another")
	assert.False(t, outer.Overlaps(other), "regions on different contigs never overlap")

	touching := Region{Contig: "chr1", Begin: 20, End: 25}
	assert.False(t, outer.Overlaps(touching), "half-open regions that only touch at the boundary do not overlap")
	assert.True(t, outer.Before(touching))
}

func TestRegionUnion(t *testing.T) {
	a := Region{Contig: "chr1", Begin: 10, End: 20}
	b := Region{Contig: "chr1", Begin: 15, End: 30}
	u := Union(a, b)
	assert.Equal(t, Region{Contig: "chr1", Begin: 10, End: 30}, u)
}

func TestRegionUnionAcrossContigsPanics(t *testing.T) {
	a := Region{Contig: "chr1", Begin: 10, End: 20}
	b := Region{Contig: "chr2", Begin: 10, End: 20}
	assert.Panics(t, func() { Union(a, b) })
}

func TestAlleleEqualAndSpanningDeletion(t *testing.T) {
	r := Region{Contig: "chr1", Begin: 5, End: 6}
	a := Allele{Region: r, Seq: []byte("A")}
	b := Allele{Region: r, Seq: []byte("A")}
	c := Allele{Region: r, Seq: []byte("T")}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	del := Allele{Region: r, Seq: []byte{SpanningDeletion}}
	assert.True(t, del.IsSpanningDeletion())
	assert.False(t, a.IsSpanningDeletion())
}

func TestVariantKindClassification(t *testing.T) {
	r := Region{Contig: "chr1", Begin: 100, End: 101}
	insertionSite := Region{Contig: "chr1", Begin: 100, End: 100}

	snv := Variant{
		Ref: Allele{Region: r, Seq: []byte("A")},
		Alt: Allele{Region: r, Seq: []byte("G")},
	}
	assert.True(t, snv.IsSNV())
	assert.False(t, snv.IsInsertion())
	assert.False(t, snv.IsDeletion())

	insertion := Variant{
		Ref: Allele{Region: insertionSite, Seq: nil},
		Alt: Allele{Region: insertionSite, Seq: []byte("GG")},
	}
	assert.True(t, insertion.IsInsertion())
	assert.False(t, insertion.IsSNV())

	deletion := Variant{
		Ref: Allele{Region: r, Seq: []byte("A")},
		Alt: Allele{Region: r, Seq: nil},
	}
	assert.True(t, deletion.IsDeletion())
	assert.False(t, deletion.IsInsertion())
}

// Round-trip: a Variant's Key is stable under re-derivation from itself,
// and distinguishes variants that differ only in alt sequence.
func TestVariantKeyRoundTrip(t *testing.T) {
	r := Region{Contig: "chr1", Begin: 100, End: 101}
	v1 := Variant{Ref: Allele{Region: r, Seq: []byte("A")}, Alt: Allele{Region: r, Seq: []byte("G")}}
	v2 := Variant{Ref: Allele{Region: r, Seq: []byte("A")}, Alt: Allele{Region: r, Seq: []byte("T")}}

	assert.Equal(t, v1.Key(), v1.Key())
	assert.NotEqual(t, v1.Key(), v2.Key())
}

func TestLessOrdersByContigThenPosition(t *testing.T) {
	contigOrder := map[string]int{"chr1": 0, "chr2": 1}
	early := Variant{
		Ref: Allele{Region: Region{Contig: "chr1", Begin: 5, End: 6}, Seq: []byte("A")},
		Alt: Allele{Region: Region{Contig: "chr1", Begin: 5, End: 6}, Seq: []byte("G")},
	}
	late := Variant{
		Ref: Allele{Region: Region{Contig: "chr1", Begin: 10, End: 11}, Seq: []byte("A")},
		Alt: Allele{Region: Region{Contig: "chr1", Begin: 10, End: 11}, Seq: []byte("G")},
	}
	nextContig := Variant{
		Ref: Allele{Region: Region{Contig: "chr2", Begin: 1, End: 2}, Seq: []byte("A")},
		Alt: Allele{Region: Region{Contig: "chr2", Begin: 1, End: 2}, Seq: []byte("G")},
	}
	assert.True(t, Less(early, late, contigOrder))
	assert.False(t, Less(late, early, contigOrder))
	assert.True(t, Less(late, nextContig, contigOrder))
}

func TestGenotypePloidyAndHomozygosity(t *testing.T) {
	r := Region{Contig: "chr1", Begin: 0, End: 1}
	a := Allele{Region: r, Seq: []byte("A")}
	g := Allele{Region: r, Seq: []byte("G")}

	hom := Genotype[Allele]{Elements: []Allele{a, a}}
	assert.Equal(t, 2, hom.Ploidy())
	assert.True(t, hom.IsHomozygous())
	assert.Equal(t, 2, hom.Count(a))
	assert.False(t, hom.IsEmpty())

	het := Genotype[Allele]{Elements: []Allele{a, g}}
	assert.False(t, het.IsHomozygous())
	assert.Equal(t, 1, het.Count(a))

	var empty Genotype[Allele]
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, 0, empty.Ploidy())
}

func TestCancerGenotypeWeightsSumToOne(t *testing.T) {
	cg := CancerGenotype{Weights: []float64{0.6, 0.4}}
	assert.True(t, cg.WeightsSumToOne(1e-9))

	cg.Weights = []float64{0.6, 0.5}
	assert.False(t, cg.WeightsSumToOne(1e-9))
}

// Round-trip: PhredFromProbability and Probability are inverses.
func TestPhredProbabilityRoundTrip(t *testing.T) {
	for _, p := range []float64{1, 0.1, 0.01, 1e-6} {
		q := PhredFromProbability(p)
		got := q.Probability()
		assert.InDelta(t, p, got, p*1e-9+1e-12)
	}
}

func TestPhredFromZeroProbabilityIsInfinite(t *testing.T) {
	q := PhredFromProbability(0)
	assert.True(t, math.IsInf(float64(q), 1))
}

func TestPhredCapped(t *testing.T) {
	assert.Equal(t, Phred(0), Phred(-5).Capped(100))
	assert.Equal(t, Phred(100), Phred(200).Capped(100))
	assert.Equal(t, Phred(50), Phred(50).Capped(100))
}

// Phase-set closure: a block only answers for regions it actually
// contains, and PhaseSet.BlockFor never reports a block for a region
// that escapes every block's own span.
func TestPhaseSetClosure(t *testing.T) {
	ps := &PhaseSet{}
	block := PhaseBlock{Region: Region{Contig: "chr1", Begin: 100, End: 200}, Score: 30, ID: "ps1"}
	ps.Add(block)

	inside := Region{Contig: "chr1", Begin: 120, End: 130}
	got, ok := ps.BlockFor(inside)
	require.True(t, ok)
	assert.Equal(t, "ps1", got.ID)

	outside := Region{Contig: "chr1", Begin: 300, End: 310}
	_, ok = ps.BlockFor(outside)
	assert.False(t, ok, "a region outside every phase block's span must not resolve to one")

	straddling := Region{Contig: "chr1", Begin: 190, End: 210}
	_, ok = ps.BlockFor(straddling)
	assert.False(t, ok, "a region only partially contained by a block is not part of its phase set")
}

func TestHaplotypeArenaInterningDeduplicatesBySequence(t *testing.T) {
	arena := NewArena()
	r := Region{Contig: "chr1", Begin: 0, End: 3}
	h1 := &Haplotype{Region: r, Seq: []byte("ACG")}
	h2 := &Haplotype{Region: r, Seq: []byte("ACG")}
	h3 := &Haplotype{Region: r, Seq: []byte("ACT")}

	i1 := arena.Intern(h1)
	i2 := arena.Intern(h2)
	i3 := arena.Intern(h3)

	assert.Same(t, i1, i2, "two haplotypes with equal region/sequence intern to the same pointer")
	assert.NotSame(t, i1, i3)
	assert.Equal(t, 2, arena.Len())
	assert.Len(t, arena.All(), 2)
}
