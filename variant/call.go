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

package variant

// GenotypeCall is one sample's contribution to a Call: its inferred
// genotype over alleles, the posterior mass behind that genotype, and
// an optional phase block.
type GenotypeCall struct {
	Sample   string
	Genotype Genotype[Allele]
	Posterior float64
	Phase    *PhaseBlock // nil if unphased
}

// Kind is a closed tag distinguishing Call variants, replacing the
// deep-virtual-inheritance caller hierarchy of the source system with a
// single tagged struct (design note: CallerKind tagged variant).
type Kind int

const (
	KindGermlineVariant Kind = iota
	KindDenovo
	KindDenovoReferenceReversion
	KindSomatic
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindGermlineVariant:
		return "germline"
	case KindDenovo:
		return "denovo"
	case KindDenovoReferenceReversion:
		return "denovo-reference-reversion"
	case KindSomatic:
		return "somatic"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Call is the abstract record produced by C8 and consumed by C9: a
// mapped region, reference allele, per-sample genotype calls, overall
// quality, and an optional model posterior (MP).
type Call struct {
	Kind   Kind
	Region Region
	Ref    Allele
	Alts   []Allele
	Genotypes []GenotypeCall
	Qual   Phred
	ModelPosterior *float64 // nil when no model comparison was performed

	// NS/DP/SB/BQ/MQ/MQ0 site-level evidence summaries, populated by C8
	// from the likelihood cache and read pile, required in C9's output.
	NumSamplesWithData int32
	Depth              int32
	StrandBias         float64
	MeanBaseQuality    float64
	MeanMappingQuality float64
	MQ0Count           int32

	// DenovoPosterior is set on KindDenovo/KindDenovoReferenceReversion
	// calls (scenario 4).
	DenovoPosterior *float64
}

// IsReference reports whether c is a homozygous-reference call (the
// refcall emitted per position or per interval).
func (c Call) IsReference() bool { return c.Kind == KindReference }
