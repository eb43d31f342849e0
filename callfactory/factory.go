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

// Package callfactory implements C9, turning the Call stream C8 produces
// into a flat, VCF-compatible record stream: four stable in-place
// rewrites (indel resolution, parsimonise & left-pad, block merging,
// spanning deletion marking), grounded on the teacher's
// filters/assigngls.go (makeEventMap, getOverlappingEvents, alleleMap,
// computeActiveVariantContextsWithSpanDelsReplaced) and
// filters/variant-combiner.go's block-finalization shape.
package callfactory

import (
	"sort"

	"github.com/exascience/varcall/variant"
)

// Build runs every resolution step over calls (assumed already sorted
// by (region, ref, alt) within one contig) and returns the finished,
// sorted record stream that C13's filter chain consumes next.
func Build(calls []*variant.Call, ref []byte, contigOrder map[string]int) []*variant.Call {
	calls = resolveIndels(calls)
	calls = parsimoniseAndLeftPad(calls, ref)
	calls = mergeBlocks(calls)
	calls = markSpanningDeletions(calls)
	sort.SliceStable(calls, func(i, j int) bool {
		return callLess(calls[i], calls[j], contigOrder)
	})
	return calls
}

func callLess(a, b *variant.Call, contigOrder map[string]int) bool {
	if a.Region != b.Region {
		return variant.RegionLess(a.Region, b.Region, contigOrder)
	}
	if string(a.Ref.Seq) != string(b.Ref.Seq) {
		return string(a.Ref.Seq) < string(b.Ref.Seq)
	}
	return altKey(a) < altKey(b)
}

func altKey(c *variant.Call) string {
	var s string
	for i, a := range c.Alts {
		if i > 0 {
			s += ","
		}
		s += string(a.Seq)
	}
	return s
}

// resolveIndels strips an insertion's inserted bases back out of any
// neighbouring call's alt allele at the same locus that echoes them
// verbatim (an assembly artifact: a substitution or deletion call
// whose alt sequence was built against a haplotype that also carried
// the insertion), the way the teacher's makeEventMap keeps one event
// from shadowing another that merely happens to share a start
// position.
func resolveIndels(calls []*variant.Call) []*variant.Call {
	insertionsByBegin := make(map[int32][][]byte)
	for _, c := range calls {
		if c.Ref.Region.Empty() {
			for _, alt := range c.Alts {
				insertionsByBegin[c.Region.Begin] = append(insertionsByBegin[c.Region.Begin], alt.Seq)
			}
		}
	}
	if len(insertionsByBegin) == 0 {
		return calls
	}
	for _, c := range calls {
		if c.Ref.Region.Empty() {
			continue // leave the insertion call itself untouched
		}
		inserted := insertionsByBegin[c.Region.Begin]
		for i := range c.Alts {
			c.Alts[i].Seq = stripEchoedInsertion(c.Ref.Seq, c.Alts[i].Seq, inserted)
		}
	}
	return calls
}

// stripEchoedInsertion drops an inserted run immediately following
// refSeq's length from altSeq, if altSeq is exactly refSeq followed by
// one of insertedRuns.
func stripEchoedInsertion(refSeq, altSeq []byte, insertedRuns [][]byte) []byte {
	if len(altSeq) <= len(refSeq) || string(altSeq[:len(refSeq)]) != string(refSeq) {
		return altSeq
	}
	tail := altSeq[len(refSeq):]
	for _, run := range insertedRuns {
		if string(tail) == string(run) {
			return altSeq[:len(refSeq)]
		}
	}
	return altSeq
}

// parsimoniseAndLeftPad ensures every call's reference allele is
// non-empty (VCF requires at least one anchor base) by borrowing the
// preceding reference base, extending the call's region and every
// allele left by one, and widening the sample's phase region to match
// so a left shift never splits a phase block.
func parsimoniseAndLeftPad(calls []*variant.Call, ref []byte) []*variant.Call {
	for _, c := range calls {
		if len(c.Ref.Seq) > 0 {
			continue
		}
		if c.Region.Begin == 0 {
			continue // no base to borrow; leave as-is (edge of contig)
		}
		pad := ref[c.Region.Begin-1]
		c.Region.Begin--
		c.Ref.Region.Begin--
		c.Ref.Seq = append([]byte{pad}, c.Ref.Seq...)
		for i := range c.Alts {
			c.Alts[i].Region.Begin--
			c.Alts[i].Seq = append([]byte{pad}, c.Alts[i].Seq...)
		}
		for i, gt := range c.Genotypes {
			if gt.Phase != nil {
				gt.Phase.Region.Begin--
				c.Genotypes[i].Phase = gt.Phase
			}
		}
	}
	return calls
}

// mergeBlocks groups calls that begin at the same position and whose
// regions overlap into one multi-allelic record with the sorted,
// de-duplicated union of ALT alleles, the Go-shaped equivalent of the
// teacher's getOverlappingEvents/alleleMap machinery.
func mergeBlocks(calls []*variant.Call) []*variant.Call {
	if len(calls) == 0 {
		return calls
	}
	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Region.Begin != calls[j].Region.Begin {
			return calls[i].Region.Begin < calls[j].Region.Begin
		}
		return calls[i].Region.End < calls[j].Region.End
	})
	var merged []*variant.Call
	group := []*variant.Call{calls[0]}
	flush := func() {
		merged = append(merged, mergeGroup(group))
		group = group[:0]
	}
	for i := 1; i < len(calls); i++ {
		last := group[len(group)-1]
		if calls[i].Region.Begin == last.Region.Begin && calls[i].Region.Overlaps(last.Region) {
			group = append(group, calls[i])
		} else {
			flush()
			group = append(group, calls[i])
		}
	}
	flush()
	return merged
}

func mergeGroup(group []*variant.Call) *variant.Call {
	if len(group) == 1 {
		return group[0]
	}
	base := group[0]
	seen := map[string]bool{}
	var alts []variant.Allele
	for _, c := range group {
		for _, a := range c.Alts {
			key := a.String()
			if !seen[key] {
				seen[key] = true
				alts = append(alts, a)
			}
		}
	}
	sort.Slice(alts, func(i, j int) bool { return string(alts[i].Seq) < string(alts[j].Seq) })
	merged := &variant.Call{
		Kind:   base.Kind,
		Region: base.Region,
		Ref:    base.Ref,
		Alts:   alts,
		Qual:   base.Qual,
	}
	for _, c := range group {
		merged.Genotypes = append(merged.Genotypes, c.Genotypes...)
		if c.Region.End > merged.Region.End {
			merged.Region.End = c.Region.End
		}
		if c.Qual > merged.Qual {
			merged.Qual = c.Qual
		}
		merged.NumSamplesWithData += c.NumSamplesWithData
		merged.Depth += c.Depth
	}
	return merged
}

// markSpanningDeletions replaces a sample's allele with the `*`
// sentinel wherever that sample's call region is contained (ends
// included) within a deletion already emitted earlier in the stream,
// mirroring computeActiveVariantContextsWithSpanDelsReplaced.
func markSpanningDeletions(calls []*variant.Call) []*variant.Call {
	var activeDeletions []*variant.Call
	for _, c := range calls {
		activeDeletions = pruneExpired(activeDeletions, c.Region.Begin)
		for _, d := range activeDeletions {
			if d.Region.Contains(c.Region) && d != c {
				replaceWithSpanningDeletion(c)
			}
		}
		if isDeletion(c) {
			activeDeletions = append(activeDeletions, c)
		}
	}
	return calls
}

func pruneExpired(active []*variant.Call, pos int32) []*variant.Call {
	kept := active[:0]
	for _, d := range active {
		if d.Region.End > pos {
			kept = append(kept, d)
		}
	}
	return kept
}

func isDeletion(c *variant.Call) bool {
	for _, a := range c.Alts {
		if len(a.Seq) == 0 || (len(c.Ref.Seq) > len(a.Seq) && c.Region.Len() > 0) {
			return true
		}
	}
	return false
}

func replaceWithSpanningDeletion(c *variant.Call) {
	for i := range c.Genotypes {
		gt := c.Genotypes[i]
		for j := range gt.Genotype.Elements {
			gt.Genotype.Elements[j] = variant.Allele{
				Region: c.Region,
				Seq:    []byte{variant.SpanningDeletion},
			}
		}
		c.Genotypes[i] = gt
	}
}
