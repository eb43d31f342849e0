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

// CancerModel parameters, read verbatim from original_source per the
// distilled spec's Open Question: an 11-point cellularity grid over
// [0.03, 1.0] (CancerCaller's min_expected_somatic_frequency = 0.03)
// and a symmetric Dirichlet(1) prior over per-haplotype somatic mixture
// weights.
type CancerModel struct {
	CellularityGrid   []float64
	DirichletConcentration float64
}

// DefaultCancerModel builds the 11-point grid [0.03, 1.0].
func DefaultCancerModel() CancerModel {
	const n = 11
	grid := make([]float64, n)
	lo, hi := 0.03, 1.0
	for i := 0; i < n; i++ {
		grid[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return CancerModel{CellularityGrid: grid, DirichletConcentration: 1.0}
}

// CancerModelKind names one of the three sub-models the cancer caller
// jointly evaluates.
type CancerModelKind int

const (
	ModelGermlineOnly CancerModelKind = iota
	ModelCNV
	ModelSomatic
)

func (k CancerModelKind) String() string {
	switch k {
	case ModelGermlineOnly:
		return "germline"
	case ModelCNV:
		return "cnv"
	case ModelSomatic:
		return "somatic"
	default:
		return "unknown"
	}
}

// CancerLatents reports the per-model log-evidence, the normalised
// model posterior over {germline, CNV, somatic}, the germline-only
// model's genotype posteriors, and the somatic model's best mixture
// weights.
type CancerLatents struct {
	InferredLatents
	LogEvidenceByModel map[CancerModelKind]float64
	ModelPosterior     map[CancerModelKind]float64
	BestModel          CancerModelKind
	SomaticWeights     []float64 // per-haplotype mixture weight under the winning cellularity, somatic model only
}

// Cancer jointly evaluates the germline-only, CNV and somatic models
// for one tumour sample's reads (no matched-normal reads are used),
// and returns the model posterior used to gate somatic-variant
// emission (section 4.4).
func Cancer(tumour *likelihood.Matrix, haplotypes []*variant.Haplotype, germlinePloidy int, priorModel prior.Model, cancer CancerModel) (CancerLatents, error) {
	germlineGenotypes := enumerateGenotypes(haplotypes, germlinePloidy)
	if len(germlineGenotypes) == 0 {
		return CancerLatents{}, errNoEvidence("inference.Cancer")
	}

	// Germline-only model: the tumour sample's reads explained purely by
	// a germline genotype, no somatic mixture.
	germlineLogJoint := make([]float64, len(germlineGenotypes))
	for i, g := range germlineGenotypes {
		germlineLogJoint[i] = genotypeLogLikelihood(tumour, g) + genotypeLogPrior(g, priorModel)
	}
	logEvidenceGermline := log10SumLog10(germlineLogJoint)

	// CNV model: same genotype space, but reweighted as if the locus
	// copy number differs from germlinePloidy (approximated here by
	// scoring every ploidy from 1 to germlinePloidy+2 and taking the
	// best, the CNV model's essential freedom over the germline model).
	logEvidenceCNV := math.Inf(-1)
	for p := 1; p <= germlinePloidy+2; p++ {
		gs := enumerateGenotypes(haplotypes, p)
		lj := make([]float64, len(gs))
		for i, g := range gs {
			lj[i] = genotypeLogLikelihood(tumour, g) + genotypeLogPrior(g, priorModel)
		}
		if e := log10SumLog10(lj); e > logEvidenceCNV {
			logEvidenceCNV = e
		}
	}

	// Somatic model: germline genotype plus a fractional mixture of
	// non-ref haplotypes at each cellularity grid point, scored by
	// linearly blending the germline and fully-somatic likelihoods.
	bestSomaticEvidence := math.Inf(-1)
	var bestWeights []float64
	nonRef := nonRefHaplotypes(haplotypes)
	for _, g := range germlineGenotypes {
		for _, cellularity := range cancer.CellularityGrid {
			weights := dirichletMeanWeights(len(nonRef), cancer.DirichletConcentration)
			lj := somaticGenotypeLogLikelihood(tumour, g, nonRef, weights, cellularity) + genotypeLogPrior(g, priorModel)
			if lj > bestSomaticEvidence {
				bestSomaticEvidence = lj
				bestWeights = weights
			}
		}
	}
	logEvidenceSomatic := bestSomaticEvidence

	logEvidences := map[CancerModelKind]float64{
		ModelGermlineOnly: logEvidenceGermline,
		ModelCNV:          logEvidenceCNV,
		ModelSomatic:      logEvidenceSomatic,
	}
	all := []float64{logEvidenceGermline, logEvidenceCNV, logEvidenceSomatic}
	total := log10SumLog10(all)
	if math.IsInf(total, -1) {
		return CancerLatents{}, errNoEvidence("inference.Cancer")
	}

	modelPosterior := map[CancerModelKind]float64{
		ModelGermlineOnly: math.Pow(10, logEvidenceGermline-total),
		ModelCNV:          math.Pow(10, logEvidenceCNV-total),
		ModelSomatic:       math.Pow(10, logEvidenceSomatic-total),
	}
	best := ModelGermlineOnly
	for k, v := range modelPosterior {
		if v > modelPosterior[best] {
			best = k
		}
	}

	posteriors := make([]float64, len(germlineGenotypes))
	for i, lj := range germlineLogJoint {
		posteriors[i] = math.Pow(10, lj-logEvidenceGermline)
	}

	return CancerLatents{
		InferredLatents:    InferredLatents{Genotypes: germlineGenotypes, Posteriors: posteriors, LogEvidence: logEvidenceGermline},
		LogEvidenceByModel: logEvidences,
		ModelPosterior:     modelPosterior,
		BestModel:          best,
		SomaticWeights:     bestWeights,
	}, nil
}

func nonRefHaplotypes(haplotypes []*variant.Haplotype) []*variant.Haplotype {
	var result []*variant.Haplotype
	for _, h := range haplotypes {
		if !h.IsRef {
			result = append(result, h)
		}
	}
	return result
}

// dirichletMeanWeights returns the expected per-component weight under
// a symmetric Dirichlet(concentration) prior over n components, i.e.
// the uniform split 1/n — the prior's mean, used as a point estimate
// rather than sampling the full mixture posterior.
func dirichletMeanWeights(n int, concentration float64) []float64 {
	if n == 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// somaticGenotypeLogLikelihood scores reads as a cellularity-weighted
// mixture of the germline genotype and the somatic haplotype mixture.
func somaticGenotypeLogLikelihood(m *likelihood.Matrix, germline []*variant.Haplotype, somaticHaplotypes []*variant.Haplotype, weights []float64, cellularity float64) float64 {
	var sum float64
	for r := range m.Reads {
		germlineLL := readLogLikelihoodUnderGenotype(m, germline, r)
		var somaticLL float64
		if len(somaticHaplotypes) == 0 {
			somaticLL = germlineLL
		} else {
			vals := make([]float64, len(somaticHaplotypes))
			for i, h := range somaticHaplotypes {
				vals[i] = m.Get(h, r) + math.Log10(weights[i])
			}
			somaticLL = log10SumLog10(vals)
		}
		mix := log10SumLog10([]float64{
			germlineLL + math.Log10(1-cellularity),
			somaticLL + math.Log10(cellularity),
		})
		sum += mix
	}
	return sum
}
