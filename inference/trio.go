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

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/prior"
	"github.com/exascience/varcall/variant"
)

// TrioPloidy carries the three samples' ploidies. The ploidy-
// combination contract below is resolved against
// original_source/src/core/callers/trio_caller.cpp's internal
// assertions.
type TrioPloidy struct {
	Maternal, Paternal, Child int
}

// DenovoModel parameterizes the transmission prior's de-novo mutation
// rate, combined with strict Mendelian inheritance over the enumerated
// joint genotypes.
type DenovoModel struct {
	DenovoRate float64 // probability any one non-inherited haplotype appears de novo
}

// DefaultDenovoModel matches the source's default per-site de-novo
// mutation rate order of magnitude (~1e-8 scaled up to the per-call
// granularity this model reasons over).
func DefaultDenovoModel() DenovoModel { return DenovoModel{DenovoRate: 1e-6} }

// normalPrior is the trio model's fixed prior weight on "this is a
// real trio" versus the dummy/null model, per section 4.4.
const normalPrior = 1 - 1e-7

// TrioLatents extends InferredLatents with the joint (maternal,
// paternal, child) genotype triples and the combined model posterior
// against the dummy (independent, untransmitted) model.
type TrioLatents struct {
	InferredLatents
	Triples        [][3][]*variant.Haplotype
	ModelPosterior float64
}

// Trio infers the joint posterior over (maternal, paternal, child)
// genotypes given per-sample likelihood matrices, validating the
// ploidy-combination contract before enumerating.
func Trio(mother, father, child *likelihood.Matrix, haplotypes []*variant.Haplotype, ploidy TrioPloidy, priorModel prior.Model, denovo DenovoModel) (TrioLatents, error) {
	if ploidy.Maternal == 0 && ploidy.Paternal == 0 && ploidy.Child == 0 {
		return TrioLatents{}, callerr.New(callerr.Model, "inference.Trio", "all three trio ploidies are zero", "at least one sample must have positive ploidy")
	}
	if ploidy.Child > 0 && ploidy.Maternal == 0 && ploidy.Paternal == 0 {
		return TrioLatents{}, callerr.New(callerr.Model, "inference.Trio", "child has positive ploidy but both parents have ploidy zero", "at most one of maternal/paternal may be zero when child_ploidy > 0")
	}

	motherGenotypes := enumerateGenotypes(haplotypes, ploidy.Maternal)
	fatherGenotypes := enumerateGenotypes(haplotypes, ploidy.Paternal)
	childGenotypes := enumerateGenotypes(haplotypes, ploidy.Child)

	var triples [][3][]*variant.Haplotype
	var logJoint []float64
	for _, mg := range motherGenotypes {
		mll := genotypeLogLikelihood(mother, mg) + genotypeLogPrior(mg, priorModel)
		for _, fg := range fatherGenotypes {
			fll := genotypeLogLikelihood(father, fg) + genotypeLogPrior(fg, priorModel)
			for _, cg := range childGenotypes {
				cll := genotypeLogLikelihood(child, cg)
				transmission := log10Transmission(mg, fg, cg, ploidy, denovo)
				triples = append(triples, [3][]*variant.Haplotype{mg, fg, cg})
				logJoint = append(logJoint, mll+fll+cll+transmission)
			}
		}
	}
	if len(logJoint) == 0 {
		return TrioLatents{}, errNoEvidence("inference.Trio")
	}

	logEvidenceNormal := log10SumLog10(logJoint)
	if math.IsInf(logEvidenceNormal, -1) {
		return TrioLatents{}, errNoEvidence("inference.Trio")
	}

	posteriors := make([]float64, len(logJoint))
	for i, lj := range logJoint {
		posteriors[i] = math.Pow(10, lj-logEvidenceNormal)
	}

	var genotypesFlat [][]*variant.Haplotype
	for _, t := range triples {
		genotypesFlat = append(genotypesFlat, append(append(append([]*variant.Haplotype{}, t[0]...), t[1]...), t[2]...))
	}

	logEvidenceDummy := independentLogEvidence(mother, motherGenotypes, priorModel) +
		independentLogEvidence(father, fatherGenotypes, priorModel) +
		independentLogEvidence(child, childGenotypes, prior.Model{})

	logPrior10 := math.Log10(normalPrior) - math.Log10(1-normalPrior)
	modelPosterior := sigmoid10(logEvidenceNormal - logEvidenceDummy + logPrior10)

	return TrioLatents{
		InferredLatents: InferredLatents{Genotypes: genotypesFlat, Posteriors: posteriors, LogEvidence: logEvidenceNormal},
		Triples:         triples,
		ModelPosterior:  modelPosterior,
	}, nil
}

// sigmoid10 computes the logistic sigmoid of a base-10 log-odds value.
func sigmoid10(logOdds10 float64) float64 {
	return 1 / (1 + math.Pow(10, -logOdds10))
}

// independentLogEvidence is the dummy model's per-sample marginal
// evidence: the same genotypes scored with no transmission coupling,
// used as the "independent samples" baseline the normal model is
// compared against.
func independentLogEvidence(m *likelihood.Matrix, genotypes [][]*variant.Haplotype, priorModel prior.Model) float64 {
	if m == nil || len(genotypes) == 0 {
		return 0
	}
	logJoint := make([]float64, len(genotypes))
	for i, g := range genotypes {
		logJoint[i] = genotypeLogLikelihood(m, g) + genotypeLogPrior(g, priorModel)
	}
	return log10SumLog10(logJoint)
}

// log10Transmission is the Mendelian-inheritance-plus-de-novo
// transmission prior for one (mother, father, child) genotype triple,
// per section 4.4. Every child haplotype must appear in one parent's
// genotype unless de novo; the probability of k de-novo haplotypes is
// DenovoRate^k.
func log10Transmission(mg, fg, cg []*variant.Haplotype, ploidy TrioPloidy, denovo DenovoModel) float64 {
	if ploidy.Child == 0 {
		return 0
	}
	parentPool := make(map[*variant.Haplotype]bool, len(mg)+len(fg))
	for _, h := range mg {
		parentPool[h] = true
	}
	for _, h := range fg {
		parentPool[h] = true
	}
	denovoCount := 0
	for _, h := range cg {
		if !parentPool[h] {
			denovoCount++
		}
	}
	if denovoCount == 0 {
		return 0
	}
	return float64(denovoCount) * math.Log10(denovo.DenovoRate)
}
