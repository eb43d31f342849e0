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

// Package caller implements C8, the per-region orchestrator that drives
// C2 (candidates) through C3 (haplotypes) through C4 (likelihoods)
// through C6 (latent inference) through C7 (phasing), producing the
// Call stream C9 turns into VCF records. Grounded on
// filters/haplotypecaller.go's CallVariants (the computeRegionChannel
// -> assemblyRegionPipeline -> variantCallPipeline staged pargo
// pipeline) and filters/call-region.go's callRegion.
package caller

import "github.com/exascience/varcall/callerr"

// Kind is the closed tagged variant replacing the teacher's would-be
// deep virtual inheritance of caller backends (design note): one
// orchestrator, four interchangeable inference strategies.
type Kind int

const (
	KindIndividual Kind = iota
	KindTrio
	KindCancer
	KindPopulation
)

func (k Kind) String() string {
	switch k {
	case KindIndividual:
		return "individual"
	case KindTrio:
		return "trio"
	case KindCancer:
		return "cancer"
	case KindPopulation:
		return "population"
	default:
		return "unknown"
	}
}

// ParseKind parses a --caller flag value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "individual":
		return KindIndividual, nil
	case "trio":
		return KindTrio, nil
	case "cancer":
		return KindCancer, nil
	case "population":
		return KindPopulation, nil
	default:
		return 0, callerr.New(callerr.Usage, "caller.ParseKind", "unknown caller kind "+s, "use one of individual, trio, cancer, population")
	}
}

// RefCallType names the reference-call mode selected by the refcall
// flags (section 4.6). CallRegion does not read it and emits no
// reference calls in any mode.
type RefCallType int

const (
	RefCallNone RefCallType = iota
	RefCallPositional
	RefCallBlocked
)
