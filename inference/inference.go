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

// Package inference implements C6, the family of latent-inference
// models (individual, trio, cancer/somatic, population) that turn a
// likelihood matrix and a genotype prior into posteriors over
// haplotype genotypes, plus the marginal log-evidence used for model
// comparison. Grounded on filters/ref-confidence.go's genotype-
// likelihood/GQ math (calculateGenotypeLikelihoodsOfRefVsAny,
// normalizeFromLog10, getGQLog10FromLikelihoods) for the individual
// model, and on original_source's trio_caller.cpp/cancer_caller.hpp/
// population_caller.hpp for the multi-sample models' shapes.
package inference

import (
	"math"

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/variant"
)

// PosteriorThreshold is the floor below which a genotype posterior is
// treated as zero for haplotype-removal purposes (section 4.4's
// numerical policy).
const PosteriorThreshold = 1e-15

// InferredLatents is the common result shape every model in this
// package returns: a model-specific posterior table plus the marginal
// log-evidence used both for model comparison and for reporting a
// model posterior on the final call.
type InferredLatents struct {
	// Genotypes lists each enumerated genotype (by its constituent
	// haplotypes); Posteriors holds each one's posterior probability,
	// indexed in parallel with Genotypes.
	Genotypes  [][]*variant.Haplotype
	Posteriors []float64
	LogEvidence float64
}

// HaplotypePosteriors marginalises the joint genotype posterior down to
// a per-haplotype posterior: the probability that a haplotype appears
// at all in the sample's genotype, used by C8 to decide what C3 should
// remove.
func (l InferredLatents) HaplotypePosteriors() map[*variant.Haplotype]float64 {
	result := make(map[*variant.Haplotype]float64)
	for i, g := range l.Genotypes {
		p := l.Posteriors[i]
		if p < PosteriorThreshold {
			continue
		}
		seen := make(map[*variant.Haplotype]bool, len(g))
		for _, h := range g {
			if !seen[h] {
				seen[h] = true
				result[h] += p
			}
		}
	}
	return result
}

// log10SumLog10 folds a slice of log10 values via log-sum-exp.
func log10SumLog10(values []float64) float64 {
	max := math.Inf(-1)
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, v := range values {
		sum += math.Pow(10, v-max)
	}
	return max + math.Log10(sum)
}

// enumerateGenotypes returns every unordered multiset of size ploidy
// drawn from haplotypes, the exact enumeration the individual and
// population models use at low ploidy (section 4.4).
func enumerateGenotypes(haplotypes []*variant.Haplotype, ploidy int) [][]*variant.Haplotype {
	if ploidy == 0 {
		return [][]*variant.Haplotype{{}}
	}
	if len(haplotypes) == 0 {
		return nil
	}
	var result [][]*variant.Haplotype
	var rec func(start int, cur []*variant.Haplotype)
	rec = func(start int, cur []*variant.Haplotype) {
		if len(cur) == ploidy {
			g := make([]*variant.Haplotype, ploidy)
			copy(g, cur)
			result = append(result, g)
			return
		}
		for i := start; i < len(haplotypes); i++ {
			rec(i, append(cur, haplotypes[i]))
		}
	}
	rec(0, nil)
	return result
}

// readLogLikelihoodUnderGenotype is the log10 likelihood of one read
// given a genotype, averaging equally over the genotype's haplotypes
// (the standard diploid/polyploid GL model: each haplotype is equally
// likely to have produced the read).
func readLogLikelihoodUnderGenotype(m *likelihood.Matrix, g []*variant.Haplotype, readIndex int) float64 {
	if len(g) == 0 {
		return 0
	}
	vals := make([]float64, len(g))
	for i, h := range g {
		vals[i] = m.Get(h, readIndex) - math.Log10(float64(len(g)))
	}
	return log10SumLog10(vals)
}

// genotypeLogLikelihood sums a genotype's log10 likelihood across every
// read in the matrix.
func genotypeLogLikelihood(m *likelihood.Matrix, g []*variant.Haplotype) float64 {
	var sum float64
	for r := range m.Reads {
		sum += readLogLikelihoodUnderGenotype(m, g, r)
	}
	return sum
}

// errNoEvidence is raised when every candidate genotype has -Inf
// log-evidence, the section 4.6 "numerical failure" condition that
// aborts the calling step with clear_progress.
func errNoEvidence(where string) error {
	return callerr.New(callerr.Numerical, where, "all candidate genotypes have zero likelihood", "widen the active region or relax quality filters")
}
