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

package vcfio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/variant"
	"github.com/exascience/varcall/vcf"
)

func simpleCall() *variant.Call {
	r := variant.Region{Contig: "chr1", Begin: 99, End: 100} // 0-based
	ref := variant.Allele{Region: r, Seq: []byte("A")}
	alt := variant.Allele{Region: r, Seq: []byte("G")}
	return &variant.Call{
		Region: r,
		Ref:    ref,
		Alts:   []variant.Allele{alt},
		Qual:   variant.Phred(45.678),
		Genotypes: []variant.GenotypeCall{{
			Sample:    "NA12878",
			Genotype:  variant.Genotype[variant.Allele]{Elements: []variant.Allele{ref, alt}},
			Posterior: 0.999,
		}},
	}
}

// POS is 1-based in the VCF wire projection, even though Region is
// 0-based internally.
func TestToVariantPosIsOneBased(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, false, nil)
	assert.Equal(t, int32(100), v.Pos)
	assert.Equal(t, "chr1", v.Chrom)
	assert.Equal(t, "A", v.Ref)
	assert.Equal(t, []string{"G"}, v.Alt)
}

// A call with no FILTER tags renders as PASS.
func TestToVariantDefaultsToPass(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, false, nil)
	require.Len(t, v.Filter, 1)
	assert.Equal(t, vcf.PASS, v.Filter[0])
}

func TestToVariantCarriesFilterTags(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, false, []string{"LowQual"})
	require.Len(t, v.Filter, 1)
	assert.Equal(t, "LowQual", *v.Filter[0])
}

// A heterozygous ref/alt genotype renders GT indices 0 (ref) and 1
// (first alt), unphased absent a phase block.
func TestToVariantRendersHetGenotype(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, false, nil)
	require.Len(t, v.GenotypeData, 1)
	gt := v.GenotypeData[0]
	assert.False(t, gt.Phased)
	assert.Equal(t, []int32{0, 1}, gt.GT)
}

// A sample absent from the call's genotype list renders as missing
// (./.), not a zero-value genotype.
func TestToVariantMissingSampleRendersAsMissing(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878", "NA12891"}, false, nil)
	require.Len(t, v.GenotypeData, 2)
	assert.Empty(t, v.GenotypeData[1].GT)
}

// sitesOnly suppresses per-sample FORMAT data entirely.
func TestToVariantSitesOnlySuppressesGenotypes(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, true, nil)
	assert.Empty(t, v.GenotypeData)
	assert.Empty(t, v.GenotypeFormat)
}

// A phased genotype carries PS/PQ in its FORMAT and renders with the
// phased separator.
func TestToVariantPhasedGenotypeAddsPSAndPQ(t *testing.T) {
	c := simpleCall()
	c.Genotypes[0].Phase = &variant.PhaseBlock{
		Region: c.Region,
		Score:  variant.Phred(30),
		ID:     "block-1",
	}
	v := ToVariant(c, []string{"NA12878"}, false, nil)
	assert.Contains(t, v.GenotypeFormat, PS)
	assert.Contains(t, v.GenotypeFormat, PQ)
	require.Len(t, v.GenotypeData, 1)
	assert.True(t, v.GenotypeData[0].Phased)
}

// QUAL is rounded to two decimal places for the wire format.
func TestToVariantRoundsQual(t *testing.T) {
	v := ToVariant(simpleCall(), []string{"NA12878"}, false, nil)
	assert.InDelta(t, 45.68, v.Qual, 1e-9)
}
