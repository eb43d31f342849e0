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

// PhaseBlock is one contiguous phased block: a region and the Phred
// score with which it was phased (the probability that the MAP
// genotype configuration is preserved across the block's internal
// boundaries).
type PhaseBlock struct {
	Region Region
	Score  Phred
	ID     string // stable identifier emitted as VCF PS
}

// PhaseSet is, for one sample, an interval-keyed mapping from region to
// phase block such that every call whose own region is contained in a
// block's region is assigned that block's ID and score (PQ).
type PhaseSet struct {
	Blocks []PhaseBlock
}

// BlockFor returns the phase block containing r, if any.
func (p *PhaseSet) BlockFor(r Region) (PhaseBlock, bool) {
	for _, b := range p.Blocks {
		if b.Region.Contains(r) {
			return b, true
		}
	}
	return PhaseBlock{}, false
}

// Add appends a new phase block. The caller is responsible for the
// phase-set-closure invariant: any two calls assigned to the same phase
// set must have their regions contained in that block's region.
func (p *PhaseSet) Add(b PhaseBlock) { p.Blocks = append(p.Blocks, b) }
