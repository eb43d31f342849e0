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

package phase

import (
	"github.com/google/uuid"

	"github.com/exascience/varcall/inference"
	"github.com/exascience/varcall/variant"
)

// SamplePosteriors is one sample's genotype posterior for the active
// region being considered for phasing.
type SamplePosteriors struct {
	Sample string
	Latents inference.InferredLatents
}

// Phaser holds the minimum per-sample phase score required for
// try_phase to commit a block (section 4.5).
type Phaser struct {
	MinPhaseScore variant.Phred
}

// mapGenotypeMargin returns the posterior margin between the
// maximum-a-posteriori genotype and the runner-up: a wide margin means
// the MAP configuration is robust to how the region is split or
// joined, which is exactly what a phase score measures (section 4.5's
// "posterior probability that the MAP configuration is preserved").
func mapGenotypeMargin(l inference.InferredLatents) float64 {
	if len(l.Posteriors) == 0 {
		return 0
	}
	best, second := 0.0, 0.0
	for _, p := range l.Posteriors {
		if p > best {
			second = best
			best = p
		} else if p > second {
			second = p
		}
	}
	return best - second
}

// phaseScore converts a genotype posterior margin to a Phred-scaled
// phase score, the probability that splitting/joining the region at
// this boundary would change the MAP call.
func phaseScore(l inference.InferredLatents) variant.Phred {
	margin := mapGenotypeMargin(l)
	pFalse := 1 - margin
	if pFalse < 0 {
		pFalse = 0
	}
	if pFalse > 1 {
		pFalse = 1
	}
	return variant.PhredFromProbability(pFalse)
}

// TryPhase attempts to close a phase block spanning region using every
// sample's genotype posteriors at this step. It succeeds only if every
// sample's phase score clears MinPhaseScore; the returned block's
// right edge is then committed by the caller (C8) via ForceForward.
func (p Phaser) TryPhase(region variant.Region, samples []SamplePosteriors) (*variant.PhaseBlock, bool) {
	if len(samples) == 0 {
		return nil, false
	}
	minScore := variant.Phred(1e18)
	for _, s := range samples {
		score := phaseScore(s.Latents)
		if score < minScore {
			minScore = score
		}
	}
	if minScore < p.MinPhaseScore {
		return nil, false
	}
	return &variant.PhaseBlock{Region: region, Score: minScore, ID: uuid.NewString()}, true
}

// ForcePhase always returns a phase block for region, even if its score
// falls short of MinPhaseScore; weakly phased blocks simply carry a low
// score for downstream consumers (e.g. PS/PQ in the VCF record) to see.
func (p Phaser) ForcePhase(region variant.Region, samples []SamplePosteriors) *variant.PhaseBlock {
	if len(samples) == 0 {
		return &variant.PhaseBlock{Region: region, Score: 0, ID: uuid.NewString()}
	}
	minScore := variant.Phred(1e18)
	for _, s := range samples {
		score := phaseScore(s.Latents)
		if score < minScore {
			minScore = score
		}
	}
	return &variant.PhaseBlock{Region: region, Score: minScore, ID: uuid.NewString()}
}
