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

// equatable is satisfied by the two Genotype element types, Allele and
// *Haplotype. Neither is comparable with == (Allele embeds a []byte,
// and haplotype identity is content- not pointer-based), so Genotype
// is parameterised over this method-set constraint instead of the
// builtin comparable.
type equatable[T any] interface {
	Equal(T) bool
}

// Genotype is an unordered multiset of T of fixed ploidy. Instantiated
// with T = *Haplotype it represents a sample's phased/unphased
// haplotype set; with T = Allele it represents the per-site call.
//
// Equality of genotypes is defined over the multiset of elements, not
// their order: two genotypes with the same elements in different
// positions are the same genotype. Callers that need a canonical
// ordering (e.g. for VCF GT emission) should sort before comparing.
type Genotype[T equatable[T]] struct {
	Elements []T
}

// Ploidy returns the genotype's ploidy (number of elements, including
// duplicates).
func (g Genotype[T]) Ploidy() int { return len(g.Elements) }

// IsEmpty reports whether g has ploidy 0 (used for samples excluded
// from a joint inference, e.g. a ploidy-0 parent in the trio model).
func (g Genotype[T]) IsEmpty() bool { return len(g.Elements) == 0 }

// Count returns how many times t occurs among g's elements.
func (g Genotype[T]) Count(t T) int {
	n := 0
	for _, e := range g.Elements {
		if e.Equal(t) {
			n++
		}
	}
	return n
}

// IsHomozygous reports whether every element of g is equal.
func (g Genotype[T]) IsHomozygous() bool {
	if len(g.Elements) == 0 {
		return true
	}
	first := g.Elements[0]
	for _, e := range g.Elements[1:] {
		if !e.Equal(first) {
			return false
		}
	}
	return true
}

// CancerGenotype is a germline Genotype[*Haplotype] plus a non-empty
// set of somatic haplotypes with fractional mixture weights summing to
// 1 (within floating point tolerance).
type CancerGenotype struct {
	Germline Genotype[*Haplotype]
	Somatic  []*Haplotype
	Weights  []float64 // Weights[i] is the mixture weight of Somatic[i]
}

// WeightsSumToOne reports whether the somatic mixture weights sum to 1
// within the given tolerance.
func (c CancerGenotype) WeightsSumToOne(tolerance float64) bool {
	sum := 0.0
	for _, w := range c.Weights {
		sum += w
	}
	delta := sum - 1
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}
