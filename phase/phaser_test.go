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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/inference"
	"github.com/exascience/varcall/variant"
)

func latentsWithMargin(margin float64) inference.InferredLatents {
	best := 0.5 + margin/2
	second := 0.5 - margin/2
	return inference.InferredLatents{Posteriors: []float64{best, second}}
}

func TestTryPhaseCommitsWhenEveryScoreClearsThreshold(t *testing.T) {
	p := Phaser{MinPhaseScore: variant.Phred(3)}
	region := variant.Region{Contig: "chr1", Begin: 10, End: 20}
	samples := []SamplePosteriors{
		{Sample: "s1", Latents: latentsWithMargin(0.999)},
	}
	block, ok := p.TryPhase(region, samples)
	require.True(t, ok)
	assert.Equal(t, region, block.Region)
	assert.NotEmpty(t, block.ID)
}

func TestTryPhaseRefusesWhenAnySampleFallsShort(t *testing.T) {
	p := Phaser{MinPhaseScore: variant.Phred(30)}
	region := variant.Region{Contig: "chr1", Begin: 10, End: 20}
	samples := []SamplePosteriors{
		{Sample: "confident", Latents: latentsWithMargin(0.999999)},
		{Sample: "ambiguous", Latents: latentsWithMargin(0.1)},
	}
	block, ok := p.TryPhase(region, samples)
	assert.False(t, ok)
	assert.Nil(t, block)
}

// Boundary: no samples means nothing to phase.
func TestTryPhaseNoSamples(t *testing.T) {
	p := Phaser{MinPhaseScore: variant.Phred(0)}
	region := variant.Region{Contig: "chr1", Begin: 10, End: 20}
	block, ok := p.TryPhase(region, nil)
	assert.False(t, ok)
	assert.Nil(t, block)
}

// ForcePhase always returns a block, even one that would have failed
// TryPhase's threshold, but it must still honestly report the weak
// score rather than hide it.
func TestForcePhaseAlwaysReturnsABlock(t *testing.T) {
	p := Phaser{MinPhaseScore: variant.Phred(30)}
	region := variant.Region{Contig: "chr1", Begin: 10, End: 20}
	samples := []SamplePosteriors{
		{Sample: "ambiguous", Latents: latentsWithMargin(0.1)},
	}
	block := p.ForcePhase(region, samples)
	require.NotNil(t, block)
	assert.Less(t, block.Score, p.MinPhaseScore)

	_, ok := p.TryPhase(region, samples)
	assert.False(t, ok, "the same samples must fail TryPhase's gate that ForcePhase bypasses")
}

func TestForcePhaseNoSamplesYieldsZeroScore(t *testing.T) {
	p := Phaser{MinPhaseScore: variant.Phred(0)}
	region := variant.Region{Contig: "chr1", Begin: 10, End: 20}
	block := p.ForcePhase(region, nil)
	require.NotNil(t, block)
	assert.Equal(t, variant.Phred(0), block.Score)
}
