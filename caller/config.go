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

package caller

import (
	"github.com/exascience/varcall/candidate"
	"github.com/exascience/varcall/haplotype"
	"github.com/exascience/varcall/inference"
	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/prior"
	"github.com/exascience/varcall/variant"
)

// TrioSamples names which of the per-sample read sets play which role,
// for Kind == KindTrio.
type TrioSamples struct {
	Mother, Father, Child string
}

// Config bundles every sub-component's configuration needed to run one
// caller loop (section 4.6).
type Config struct {
	Kind Kind

	Candidate  candidate.Config
	Haplotype  haplotype.Config
	Likelihood likelihood.Config
	Prior      prior.Model
	Cancer     inference.CancerModel
	Denovo     inference.DenovoModel

	SamplePloidy map[string]int // sample name -> ploidy (individual/population)
	Trio         TrioSamples
	TrioPloidy   inference.TrioPloidy
	CancerSample string // tumour sample name, Kind == KindCancer
	CancerNormal string // matched normal sample name, may be empty

	MinHaplotypePosterior float64 // section 4.6 step g
	MinPhaseScore         variant.Phred
	RefCall               RefCallType
	ContigOrder           map[string]int
}

// DefaultConfig wires every sub-component's own defaults together for
// a single-sample individual caller at diploid ploidy.
func DefaultConfig() Config {
	return Config{
		Kind:                  KindIndividual,
		Candidate:             candidate.DefaultConfig(),
		Haplotype:             haplotype.DefaultConfig(),
		Likelihood:            likelihood.DefaultConfig(),
		Prior:                 prior.DefaultModel(),
		Cancer:                inference.DefaultCancerModel(),
		Denovo:                inference.DefaultDenovoModel(),
		SamplePloidy:          map[string]int{},
		MinHaplotypePosterior: 1e-3,
		MinPhaseScore:         variant.Phred(20),
		RefCall:               RefCallNone,
	}
}
