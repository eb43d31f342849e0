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

// Sentinel bases used in Allele.Seq besides the usual nucleotides.
const (
	SpanningDeletion = '*' // covered by an upstream spanning deletion
	Padding          = '#' // not-yet-resolved padding base; never emitted
	Uncalled         = '.'
)

// Allele is a (region, sequence) pair.
type Allele struct {
	Region Region
	Seq    []byte
}

// Equal reports whether two alleles cover the same region with the same
// sequence.
func (a Allele) Equal(b Allele) bool {
	if a.Region != b.Region || len(a.Seq) != len(b.Seq) {
		return false
	}
	for i := range a.Seq {
		if a.Seq[i] != b.Seq[i] {
			return false
		}
	}
	return true
}

func (a Allele) String() string { return a.Region.String() + ":" + string(a.Seq) }

// IsSpanningDeletion reports whether a is the `*` sentinel allele.
func (a Allele) IsSpanningDeletion() bool {
	return len(a.Seq) == 1 && a.Seq[0] == SpanningDeletion
}

// Variant is a (ref, alt) pair of alleles sharing the same region, with
// ref != alt. A Variant is left-aligned and parsimonious unless marked
// otherwise by the generator that produced it.
type Variant struct {
	Ref, Alt Allele
}

// Key is the deduplication key: (region, ref sequence, alt sequence)
// after left-alignment.
type Key struct {
	Region   Region
	RefSeq   string
	AltSeq   string
}

// Key returns v's deduplication key.
func (v Variant) Key() Key {
	return Key{Region: v.Ref.Region, RefSeq: string(v.Ref.Seq), AltSeq: string(v.Alt.Seq)}
}

// IsSNV reports whether v substitutes a single base for another.
func (v Variant) IsSNV() bool {
	return len(v.Ref.Seq) == 1 && len(v.Alt.Seq) == 1
}

// IsInsertion reports whether v is a pure insertion (empty ref region).
func (v Variant) IsInsertion() bool {
	return v.Ref.Region.Empty() && len(v.Alt.Seq) > 0
}

// IsDeletion reports whether v is a pure deletion (empty alt sequence).
func (v Variant) IsDeletion() bool {
	return len(v.Alt.Seq) == 0 && !v.Ref.Region.Empty()
}

// Less orders variants by (contig-order, begin, end, sequence), the
// canonical ordering required of every container of candidates and
// calls.
func Less(a, b Variant, contigOrder map[string]int) bool {
	ra, rb := a.Ref.Region, b.Ref.Region
	if ra != rb {
		return RegionLess(ra, rb, contigOrder)
	}
	return string(a.Alt.Seq) < string(b.Alt.Seq)
}
