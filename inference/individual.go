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
	"math"

	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/prior"
	"github.com/exascience/varcall/variant"
)

// Individual infers the posterior over Genotype<Haplotype> for one
// sample at the given ploidy, by exact enumeration weighted by a
// heterozygosity-derived prior (grounded on
// filters/ref-confidence.go's calculateGenotypeLikelihoodsOfRefVsAny /
// normalizeFromLog10 shape, generalized from a fixed ref/alt pair to an
// arbitrary haplotype set).
func Individual(m *likelihood.Matrix, haplotypes []*variant.Haplotype, ploidy int, model prior.Model) (InferredLatents, error) {
	genotypes := enumerateGenotypes(haplotypes, ploidy)
	if len(genotypes) == 0 {
		return InferredLatents{}, errNoEvidence("inference.Individual")
	}

	logJoint := make([]float64, len(genotypes))
	for i, g := range genotypes {
		logJoint[i] = genotypeLogLikelihood(m, g) + genotypeLogPrior(g, model)
	}
	logEvidence := log10SumLog10(logJoint)
	if math.IsInf(logEvidence, -1) {
		return InferredLatents{}, errNoEvidence("inference.Individual")
	}

	posteriors := make([]float64, len(genotypes))
	for i, lj := range logJoint {
		posteriors[i] = math.Pow(10, lj-logEvidence)
	}

	return InferredLatents{Genotypes: genotypes, Posteriors: posteriors, LogEvidence: logEvidence}, nil
}

// genotypeLogPrior is the log10 prior of one genotype: the count of
// non-reference haplotype copies it carries, weighted by whether any
// non-ref haplotype in it is an indel (section 4.4's het/indel-het
// split, via prior.Model.GenotypePrior).
func genotypeLogPrior(g []*variant.Haplotype, model prior.Model) float64 {
	altCount := 0
	isIndel := false
	for _, h := range g {
		if !h.IsRef {
			altCount++
			for _, a := range h.Alleles {
				if int32(len(a.Seq)) != a.Region.Len() {
					isIndel = true
				}
			}
		}
	}
	if altCount > 2 {
		altCount = 2 // the prior table only distinguishes 0/1/2 copies; higher ploidy clamps to "some/most"
	}
	return model.GenotypePrior(altCount, isIndel)
}
