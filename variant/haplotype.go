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

import "github.com/exascience/varcall/internal"

// Haplotype is an ordered sequence of non-overlapping alleles covering
// a region, with a cached concrete nucleotide sequence. Two haplotypes
// with equal sequence over the same region are equal; callers should
// compare by Hash/Equal rather than pointer identity once a haplotype
// has passed through an Arena.
type Haplotype struct {
	Region  Region
	Alleles []Allele
	Seq     []byte
	IsRef   bool
}

// Hash returns a content hash of the haplotype's region and sequence,
// suitable for interning in an Arena (see design note: shared-ownership
// haplotype graphs are replaced by arena interning keyed by sequence
// hash).
func (h *Haplotype) Hash() uint64 {
	return internal.StringHash(h.Region.String()) ^ internal.StringHash(string(h.Seq))
}

// Equal reports whether two haplotypes cover the same region with the
// same concrete sequence.
func (h *Haplotype) Equal(o *Haplotype) bool {
	if h.Region != o.Region || len(h.Seq) != len(o.Seq) {
		return false
	}
	for i := range h.Seq {
		if h.Seq[i] != o.Seq[i] {
			return false
		}
	}
	return true
}

// Arena interns haplotypes for a single region, keyed by content hash,
// so that the same haplotype is represented once and referred to by
// index everywhere else (likelihood cache, inference engines, phaser).
// The arena is dropped at region end.
type Arena struct {
	byHash map[uint64][]*Haplotype
	all    []*Haplotype
}

// NewArena returns an empty per-region haplotype arena.
func NewArena() *Arena {
	return &Arena{byHash: make(map[uint64][]*Haplotype)}
}

// Intern returns the canonical *Haplotype equal to h, inserting h if no
// equal haplotype is already present.
func (a *Arena) Intern(h *Haplotype) *Haplotype {
	hash := h.Hash()
	for _, existing := range a.byHash[hash] {
		if existing.Equal(h) {
			return existing
		}
	}
	a.byHash[hash] = append(a.byHash[hash], h)
	a.all = append(a.all, h)
	return h
}

// All returns every haplotype interned so far, in insertion order.
func (a *Arena) All() []*Haplotype { return a.all }

// Len returns the number of distinct interned haplotypes.
func (a *Arena) Len() int { return len(a.all) }
