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

package inference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/prior"
	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

func hqRead(seq string) *sam.Alignment {
	return &sam.Alignment{
		MAPQ: 60,
		SEQ:  seq,
		QUAL: strings.Repeat(string(rune(33+40)), len(seq)),
	}
}

func hapl(seq string, isRef bool) *variant.Haplotype {
	return &variant.Haplotype{
		Region: variant.Region{Contig: "chr1", Begin: 0, End: int32(len(seq))},
		Seq:    []byte(seq),
		IsRef:  isRef,
	}
}

// Invariant: posteriors always sum to (approximately) 1, regardless of
// how many genotypes are enumerated or how skewed the evidence is.
func TestIndividualPosteriorsSumToOne(t *testing.T) {
	ref := hapl("ACGTACGTAC", true)
	alt := hapl("ACGTTCGTAC", false)
	reads := []*sam.Alignment{hqRead("ACGTACGTAC"), hqRead("ACGTACGTAC"), hqRead("ACGTTCGTAC")}
	m := likelihood.Compute(reads, []*variant.Haplotype{ref, alt}, likelihood.DefaultConfig())

	latents, err := Individual(m, []*variant.Haplotype{ref, alt}, 2, prior.DefaultModel())
	require.NoError(t, err)

	sum := 0.0
	for _, p := range latents.Posteriors {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

// Boundary: ploidy 0 yields exactly one (empty) genotype with all the
// posterior mass, not an error.
func TestIndividualPloidyZero(t *testing.T) {
	ref := hapl("ACGT", true)
	reads := []*sam.Alignment{hqRead("ACGT")}
	m := likelihood.Compute(reads, []*variant.Haplotype{ref}, likelihood.DefaultConfig())

	latents, err := Individual(m, []*variant.Haplotype{ref}, 0, prior.DefaultModel())
	require.NoError(t, err)
	require.Len(t, latents.Genotypes, 1)
	assert.Empty(t, latents.Genotypes[0])
	assert.InDelta(t, 1.0, latents.Posteriors[0], 1e-9)
}

// Boundary: no haplotypes at all is a numerical failure, not a panic
// or a silently empty success.
func TestIndividualNoHaplotypesIsError(t *testing.T) {
	m := &likelihood.Matrix{}
	_, err := Individual(m, nil, 2, prior.DefaultModel())
	assert.Error(t, err)
}

// HaplotypePosteriors marginalises the joint genotype posterior; a
// haplotype present in every enumerated genotype must end up with
// marginal posterior 1.
func TestHaplotypePosteriorsMarginalizeCorrectly(t *testing.T) {
	ref := hapl("ACGT", true)
	reads := []*sam.Alignment{hqRead("ACGT")}
	m := likelihood.Compute(reads, []*variant.Haplotype{ref}, likelihood.DefaultConfig())

	latents, err := Individual(m, []*variant.Haplotype{ref}, 2, prior.DefaultModel())
	require.NoError(t, err)

	marginal := latents.HaplotypePosteriors()
	assert.InDelta(t, 1.0, marginal[ref], 1e-6)
}
