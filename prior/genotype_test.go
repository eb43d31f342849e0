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

package prior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariant: the three per-allele-count priors are probabilities that
// sum to 1, the same way the teacher's log10Priors table must.
func TestPerAlleleCountLog10SumsToOne(t *testing.T) {
	for _, het := range []float64{0.001, 1.25e-4, 0.01} {
		p := PerAlleleCountLog10(het)
		sum := math.Pow(10, p[0]) + math.Pow(10, p[1]) + math.Pow(10, p[2])
		assert.InDelta(t, 1.0, sum, 1e-9, "heterozygosity %v", het)
	}
}

func TestGenotypePriorUsesIndelHeterozygosity(t *testing.T) {
	m := DefaultModel()
	snpHet := m.GenotypePrior(1, false)
	indelHet := m.GenotypePrior(1, true)
	// Indel heterozygosity is lower than SNP heterozygosity in the
	// default model, so a single indel copy is less probable a priori.
	assert.Less(t, indelHet, snpHet)
}

func TestGenotypePriorOutOfRangeIsImpossible(t *testing.T) {
	m := DefaultModel()
	assert.True(t, math.IsInf(m.GenotypePrior(-1, false), -1))
	assert.True(t, math.IsInf(m.GenotypePrior(3, false), -1))
}

func TestUniformPriorSumsToOneAndIsFlat(t *testing.T) {
	p := Uniform(4)
	assert.Len(t, p, 4)
	sum := 0.0
	for _, v := range p {
		sum += math.Pow(10, v)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	for i := 1; i < len(p); i++ {
		assert.Equal(t, p[0], p[i])
	}
}

func TestUniformPriorBoundary(t *testing.T) {
	assert.Nil(t, Uniform(0))
	assert.Nil(t, Uniform(-1))
}

func TestPloidyGenotypeCount(t *testing.T) {
	// Diploid, biallelic: {RR, RA, AA} = 3 genotypes.
	assert.Equal(t, 3, PloidyGenotypeCount(2, 2))
	// Diploid, triallelic: C(3+2-1,2) = 6.
	assert.Equal(t, 6, PloidyGenotypeCount(3, 2))
	assert.Equal(t, 1, PloidyGenotypeCount(0, 2))
	assert.Equal(t, 1, PloidyGenotypeCount(2, 0))
}
