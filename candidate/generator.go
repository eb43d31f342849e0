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

// Package candidate implements C2, the candidate generator: it proposes
// a deduplicated, left-aligned set of Variants over a region from three
// sub-generators (CIGAR-derived, local re-assembly, external VCF
// source), grounded on the teacher's filters/assigngls.go makeEventMap
// (CIGAR walk) and filters/assemble-reads.go (de-Bruijn assembly).
package candidate

import (
	"sort"

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

// Config bounds the candidate generator's sub-generators.
type Config struct {
	MinBaseQuality     byte // Phred scale, not ASCII
	MinSupportingReads int
	KmerSizes          []int // primary first, fallbacks after
	BinSize            int32
	MaxVariantSize     int32
	External           []variant.Variant // always admitted, e.g. from a --given-candidates VCF
}

// DefaultConfig mirrors the teacher's HaplotypeCaller defaults
// (base-quality threshold, k-mer ladder) adapted to the spec's units.
func DefaultConfig() Config {
	return Config{
		MinBaseQuality:     10,
		MinSupportingReads: 2,
		KmerSizes:          []int{10, 25},
		BinSize:            100,
		MaxVariantSize:     150,
	}
}

// Generate returns the sorted, deduplicated, left-aligned candidate
// variant set for region, given the reads overlapping it and the
// reference sequence for region.Contig (0-based, full-contig slice so
// that ref[pos] indexes directly by 0-based coordinate).
func Generate(region variant.Region, reads []*sam.Alignment, ref []byte, cfg Config) ([]variant.Variant, error) {
	if region.Contig == "" {
		return nil, callerr.New(callerr.Input, "candidate.Generate", "empty contig name", "")
	}
	if int(region.End) > len(ref) {
		return nil, callerr.New(callerr.Input, "candidate.Generate", "region extends past reference contig length", "check --regions against the reference dictionary")
	}

	var all []variant.Variant
	all = append(all, cigarCandidates(region, reads, ref, cfg)...)
	all = append(all, assemblyCandidates(region, reads, ref, cfg)...)
	all = append(all, cfg.External...)

	return leftAlignAndDedup(all, ref, region), nil
}

// leftAlignAndDedup left-aligns every variant against ref and collapses
// duplicates sharing (region, ref_seq, alt_seq) after alignment.
func leftAlignAndDedup(vs []variant.Variant, ref []byte, region variant.Region) []variant.Variant {
	seen := make(map[variant.Key]bool, len(vs))
	result := make([]variant.Variant, 0, len(vs))
	for _, v := range vs {
		v = leftAlign(v, ref)
		if !region.Contains(v.Ref.Region) {
			continue
		}
		key := v.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return variant.Less(result[i], result[j], nil)
	})
	return result
}

// leftAlign shifts v's ref/alt region left while the base being
// uncovered on the left equals the base being freed on the right,
// producing the parsimonious, left-aligned representation required by
// section 3's Variant invariant.
func leftAlign(v variant.Variant, ref []byte) variant.Variant {
	if v.Ref.Region.Empty() || len(v.Alt.Seq) == 0 {
		// Insertion or deletion: try sliding the indel left by one base
		// at a time as long as the base rotated off the right equals the
		// base newly exposed on the left.
		indelSeq := v.Alt.Seq
		if len(indelSeq) == 0 {
			indelSeq = v.Ref.Seq
		}
		begin := v.Ref.Region.Begin
		for begin > 0 && len(indelSeq) > 0 && ref[begin-1] == indelSeq[len(indelSeq)-1] {
			indelSeq = append([]byte{ref[begin-1]}, indelSeq[:len(indelSeq)-1]...)
			begin--
		}
		shift := v.Ref.Region.Begin - begin
		if shift == 0 {
			return v
		}
		nv := v
		nv.Ref.Region.Begin -= shift
		nv.Ref.Region.End -= shift
		nv.Alt.Region = nv.Ref.Region
		if len(v.Alt.Seq) == 0 {
			nv.Ref.Seq = indelSeq
		} else {
			nv.Alt.Seq = indelSeq
		}
		return nv
	}
	return v
}
