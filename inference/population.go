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

// PopulationLatents holds the joint posterior over per-sample
// genotypes plus the shared haplotype-frequency posterior (the
// coalescent model's latent allele frequencies), grounded on
// original_source's population_caller.hpp shape: one EM-style round
// of frequency re-estimation from per-sample genotype posteriors.
type PopulationLatents struct {
	PerSample     []InferredLatents
	HaplotypeFreq map[*variant.Haplotype]float64
	LogEvidence   float64
}

// Population infers a joint posterior over every sample's genotype
// under a shared haplotype-frequency prior, re-estimated from the
// samples' own posteriors (one EM round): the coalescent assumption
// that, absent other information, every sample draws haplotypes from
// the same population frequency spectrum.
func Population(matrices []*likelihood.Matrix, haplotypes []*variant.Haplotype, ploidy int, priorModel prior.Model) (PopulationLatents, error) {
	if len(matrices) == 0 {
		return PopulationLatents{}, errNoEvidence("inference.Population")
	}

	freq := make(map[*variant.Haplotype]float64, len(haplotypes))
	init := 1.0 / float64(len(haplotypes))
	for _, h := range haplotypes {
		freq[h] = init
	}

	var perSample []InferredLatents
	var totalEvidence float64
	for pass := 0; pass < 2; pass++ {
		perSample = nil
		totalEvidence = 0
		nextFreq := make(map[*variant.Haplotype]float64, len(haplotypes))

		for _, m := range matrices {
			genotypes := enumerateGenotypes(haplotypes, ploidy)
			logJoint := make([]float64, len(genotypes))
			for i, g := range genotypes {
				logJoint[i] = genotypeLogLikelihood(m, g) + populationLogPrior(g, freq, priorModel)
			}
			evidence := log10SumLog10(logJoint)
			if math.IsInf(evidence, -1) {
				continue
			}
			totalEvidence += evidence
			posteriors := make([]float64, len(genotypes))
			for i, lj := range logJoint {
				p := math.Pow(10, lj-evidence)
				posteriors[i] = p
				for _, h := range genotypes[i] {
					nextFreq[h] += p / float64(ploidy)
				}
			}
			perSample = append(perSample, InferredLatents{Genotypes: genotypes, Posteriors: posteriors, LogEvidence: evidence})
		}

		var sum float64
		for _, v := range nextFreq {
			sum += v
		}
		if sum > 0 {
			for h := range nextFreq {
				nextFreq[h] /= sum
			}
			freq = nextFreq
		}
	}

	if len(perSample) == 0 {
		return PopulationLatents{}, errNoEvidence("inference.Population")
	}

	return PopulationLatents{PerSample: perSample, HaplotypeFreq: freq, LogEvidence: totalEvidence}, nil
}

// populationLogPrior blends the heterozygosity-derived per-sample
// prior with the shared haplotype-frequency posterior: a genotype is
// more likely if its haplotypes are common across the cohort.
func populationLogPrior(g []*variant.Haplotype, freq map[*variant.Haplotype]float64, model prior.Model) float64 {
	base := genotypeLogPrior(g, model)
	var freqTerm float64
	for _, h := range g {
		if f, ok := freq[h]; ok && f > 0 {
			freqTerm += math.Log10(f)
		} else {
			freqTerm += -10 // effectively unseen in the cohort so far
		}
	}
	return base + freqTerm
}
