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

// Package haplotype implements C3, the haplotype generator: a stateful
// iterator over (HaplotypeSet, active_region) pairs. Grounded on the
// teacher's filters/call-region.go (trim/trimRegion active-region and
// flank computation) and filters/haplotypecaller.go's
// computeAssemblyRegions banding, generalized from a fixed
// activity-profile scan into the spec's frontier/indicator/extension
// policy walk over an arbitrary candidate list.
package haplotype

import (
	"sort"

	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

// IndicatorPolicy controls how many already-processed candidates are
// retained as left-context when extending the active region rightward.
type IndicatorPolicy int

const (
	IndicatorNone IndicatorPolicy = iota
	IndicatorSharedWithNovel
	IndicatorLinkableToNovel
	IndicatorAll
)

// ExtensionPolicy controls how aggressively novel candidates to the
// right are folded into the active region.
type ExtensionPolicy int

const (
	ExtensionWithinReadLength ExtensionPolicy = iota
	ExtensionAllSamplesShareFrontier
	ExtensionAnySampleSharesFrontier
	ExtensionNoLimit
)

// Config bounds the generator's enumeration.
type Config struct {
	MaxHaplotypes    int
	Indicator        IndicatorPolicy
	Extension        ExtensionPolicy
	IgnoreCrossContigTemplates bool // Open Question decision, see DESIGN.md
	LagEnabled       bool
	MaxExtension     int32 // bases; extension policy ceiling
	ReadLength       int32 // typical read length, drives ExtensionWithinReadLength
}

// DefaultConfig mirrors the teacher's HaplotypeCaller defaults for
// active-region padding (150bp indel flank, 20bp SNP-only flank, see
// call-region.go's trim) adapted into the extension ceiling here.
func DefaultConfig() Config {
	return Config{
		MaxHaplotypes:              128,
		Indicator:                  IndicatorSharedWithNovel,
		Extension:                  ExtensionWithinReadLength,
		IgnoreCrossContigTemplates: true,
		LagEnabled:                 true,
		MaxExtension:               150,
		ReadLength:                 150,
	}
}

// Generator is the stateful C3 haplotype iterator. Not safe for
// concurrent use: the state machine is single-threaded per region, per
// section 5's concurrency model.
type Generator struct {
	region     variant.Region // the overall caller region
	candidates []variant.Variant // sorted, deduplicated (from C2)
	reads      []*sam.Alignment
	ref        []byte
	cfg        Config
	arena      *variant.Arena

	frontier int32           // index into candidates: everything before is processed
	excluded map[string]bool // sequences excluded by Remove/UniquelyKeep at the current frontier
	uniquelyKept map[string]bool
	pendingActive *variant.Region // set by ForceForward to commit past a region
}

// New opens a haplotype generator for region, given the region's
// candidates (already produced by C2, sorted) and reads.
func New(region variant.Region, candidates []variant.Variant, reads []*sam.Alignment, ref []byte, cfg Config) *Generator {
	return &Generator{
		region:     region,
		candidates: candidates,
		reads:      reads,
		ref:        ref,
		cfg:        cfg,
		arena:      variant.NewArena(),
		excluded:   make(map[string]bool),
	}
}

// TellNextActiveRegion is a pure query returning what the next Progress
// would choose, without mutating generator state.
func (g *Generator) TellNextActiveRegion() variant.Region {
	if g.pendingActive != nil {
		return *g.pendingActive
	}
	novel := g.selectNovelWindow()
	if len(novel) == 0 {
		return variant.Region{Contig: g.region.Contig, Begin: g.region.End, End: g.region.End}
	}
	return g.activeRegionFor(novel)
}

// Progress deterministically produces the next active region and
// enumerates every distinct haplotype spanning it, formed by the
// Cartesian combination of candidate alleles restricted by policy.
// Returns an empty set once the caller region is exhausted.
func (g *Generator) Progress() ([]*variant.Haplotype, variant.Region) {
	if g.pendingActive != nil {
		active := *g.pendingActive
		g.pendingActive = nil
		g.advanceFrontierPast(active)
		return g.enumerate(active), active
	}

	novel := g.selectNovelWindow()
	if len(novel) == 0 {
		return nil, variant.Region{Contig: g.region.Contig, Begin: g.region.End, End: g.region.End}
	}
	active := g.activeRegionFor(novel)
	haplotypes := g.enumerate(active)
	g.advanceFrontierPast(active)
	return haplotypes, active
}

// selectNovelWindow chooses candidates right of the frontier bounded so
// that 2^|novel| does not blow max_haplotypes (algorithm step 1).
func (g *Generator) selectNovelWindow() []variant.Variant {
	var novel []variant.Variant
	existing := 1
	for i := g.frontier; i < int32(len(g.candidates)); i++ {
		c := g.candidates[i]
		if c.Ref.Region.Begin >= g.region.End {
			break
		}
		if existing<<1 > g.cfg.MaxHaplotypes && len(novel) > 0 {
			break
		}
		novel = append(novel, c)
		existing <<= 1
	}
	return novel
}

// activeRegionFor computes the active region as the union of the novel
// candidates' regions, expanded per IndicatorPolicy/ExtensionPolicy
// (algorithm steps 2-3). A left-edge boundary insertion is shrunk by
// one position to keep it inactive, per edge case (a).
func (g *Generator) activeRegionFor(novel []variant.Variant) variant.Region {
	active := novel[0].Ref.Region
	for _, c := range novel[1:] {
		active = variant.Union(active, c.Ref.Region)
	}
	if active.Begin == g.region.Begin && active.Empty() {
		active.Begin++
	}

	switch g.cfg.Indicator {
	case IndicatorAll:
		for i := int32(0); i < g.frontier; i++ {
			active = variant.Union(active, g.candidates[i].Ref.Region)
		}
	case IndicatorSharedWithNovel, IndicatorLinkableToNovel:
		for i := g.frontier - 1; i >= 0; i-- {
			c := g.candidates[i]
			if !g.sharesReadWith(c, active) {
				break
			}
			active = variant.Union(active, c.Ref.Region)
		}
	case IndicatorNone:
	}

	extended := int32(0)
	limit := g.cfg.MaxExtension
	if g.cfg.Extension == ExtensionWithinReadLength {
		limit = g.cfg.ReadLength
	}
	for i := g.frontier + int32(len(novel)); i < int32(len(g.candidates)); i++ {
		c := g.candidates[i]
		if c.Ref.Region.Begin >= g.region.End {
			break
		}
		gap := c.Ref.Region.Begin - active.End
		if g.cfg.Extension != ExtensionNoLimit && extended+gap > limit {
			break
		}
		if g.cfg.Extension == ExtensionAllSamplesShareFrontier && !g.allSamplesShare(c) {
			break
		}
		if g.cfg.Extension == ExtensionAnySampleSharesFrontier && !g.sharesReadWith(c, active) {
			break
		}
		active = variant.Union(active, c.Ref.Region)
		extended += gap
	}

	if active.End > g.region.End {
		active.End = g.region.End
	}
	return active
}

// sharesReadWith reports whether any read spans both c's region and
// active, i.e. the two loci are linked by at least one read/template.
// Cross-contig read templates are never followed (Open Question
// decision, section 9 / DESIGN.md).
func (g *Generator) sharesReadWith(c variant.Variant, active variant.Region) bool {
	if c.Ref.Region.Contig != active.Contig {
		return false
	}
	for _, aln := range g.reads {
		if aln == nil || aln.IsUnmapped() {
			continue
		}
		if g.cfg.IgnoreCrossContigTemplates && aln.RNEXT != "" && aln.RNEXT != "=" && aln.RNEXT != aln.RNAME {
			continue
		}
		readRegion := variant.Region{Contig: aln.RNAME, Begin: aln.POS - 1, End: aln.POS - 1 + int32(len(aln.SEQ))}
		if readRegion.Overlaps(c.Ref.Region) && readRegion.Overlaps(active) {
			return true
		}
	}
	return false
}

func (g *Generator) allSamplesShare(c variant.Variant) bool {
	// Without a per-sample read index at this layer, approximate "all
	// samples" by requiring broad read support rather than a single
	// read, which is what distinguishes this policy from
	// ExtensionAnySampleSharesFrontier.
	count := 0
	for _, aln := range g.reads {
		if aln != nil && !aln.IsUnmapped() && variant.Region{Contig: aln.RNAME, Begin: aln.POS - 1, End: aln.POS - 1 + int32(len(aln.SEQ))}.Overlaps(c.Ref.Region) {
			count++
		}
	}
	return count >= 2
}

// enumerate builds every distinct haplotype spanning active by taking
// the Cartesian product of ref/alt at each candidate site overlapping
// active, deduplicating by final sequence, and interning the survivors
// in the per-region arena.
func (g *Generator) enumerate(active variant.Region) []*variant.Haplotype {
	var sites []variant.Variant
	for _, c := range g.candidates {
		if active.Overlaps(c.Ref.Region) {
			sites = append(sites, c)
		}
	}
	if len(sites) > 20 {
		sites = sites[:20] // hard safety valve; the total cap below bounds max_haplotypes
	}

	n := len(sites)
	total := 1 << n
	if total > g.cfg.MaxHaplotypes && g.cfg.MaxHaplotypes > 0 {
		total = g.cfg.MaxHaplotypes
	}
	seen := make(map[string]bool, total)
	result := make([]*variant.Haplotype, 0, total)
	for mask := 0; mask < (1 << n); mask++ {
		seq := g.buildSequence(active, sites, mask)
		key := string(seq)
		if seen[key] || g.excluded[key] {
			continue
		}
		if len(g.uniquelyKept) > 0 && !g.uniquelyKept[key] {
			continue
		}
		seen[key] = true
		var alleles []variant.Allele
		isRef := true
		for i, s := range sites {
			if mask&(1<<i) != 0 {
				alleles = append(alleles, s.Alt)
				isRef = false
			} else {
				alleles = append(alleles, s.Ref)
			}
		}
		h := &variant.Haplotype{Region: active, Alleles: alleles, Seq: seq, IsRef: isRef}
		result = append(result, g.arena.Intern(h))
		if len(result) >= total {
			break
		}
	}
	sort.Slice(result, func(i, j int) bool { return string(result[i].Seq) < string(result[j].Seq) })
	return result
}

// buildSequence concretely spells out the haplotype sequence for
// active by copying the reference and substituting each selected
// allele in place.
func (g *Generator) buildSequence(active variant.Region, sites []variant.Variant, mask int) []byte {
	seq := append([]byte(nil), g.ref[active.Begin:active.End]...)
	// Apply substitutions right-to-left so earlier offsets stay valid
	// across insertions/deletions that change length.
	type edit struct {
		offset int32
		del     int32
		ins     []byte
	}
	var edits []edit
	for i, s := range sites {
		var allele variant.Allele
		if mask&(1<<i) != 0 {
			allele = s.Alt
		} else {
			allele = s.Ref
		}
		refAllele := s.Ref
		edits = append(edits, edit{
			offset: refAllele.Region.Begin - active.Begin,
			del:    refAllele.Region.Len(),
			ins:    allele.Seq,
		})
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].offset > edits[j].offset })
	for _, e := range edits {
		if e.offset < 0 || e.offset > int32(len(seq)) {
			continue
		}
		end := e.offset + e.del
		if end > int32(len(seq)) {
			end = int32(len(seq))
		}
		tail := append([]byte(nil), seq[end:]...)
		seq = append(seq[:e.offset], append(append([]byte(nil), e.ins...), tail...)...)
	}
	return seq
}

// advanceFrontierPast moves the frontier index past every candidate
// wholly left of active's end, and resets the per-frontier exclusion
// sets (they only ever apply to the enumeration just returned).
func (g *Generator) advanceFrontierPast(active variant.Region) {
	for g.frontier < int32(len(g.candidates)) && g.candidates[g.frontier].Ref.Region.Begin < active.End {
		g.frontier++
	}
	g.excluded = make(map[string]bool)
	g.uniquelyKept = nil
}

// Remove excludes the given haplotypes' exact sequences from the next
// enumeration. The exclusion set is cleared whenever the frontier
// advances (and before a ForceForward region is enumerated), so it
// does not carry over to later steps, and longer haplotypes that
// extend a removed one are not pruned.
func (g *Generator) Remove(hs []*variant.Haplotype) {
	for _, h := range hs {
		g.excluded[string(h.Seq)] = true
	}
}

// UniquelyKeep retains only the specified haplotypes and their
// descendants for the remainder of the current step.
func (g *Generator) UniquelyKeep(hs []*variant.Haplotype) {
	g.uniquelyKept = make(map[string]bool, len(hs))
	for _, h := range hs {
		g.uniquelyKept[string(h.Seq)] = true
	}
}

// ForceForward commits forward past region even if lagging would
// otherwise hold position.
func (g *Generator) ForceForward(region variant.Region) {
	g.pendingActive = &region
}

// ClearProgress drops any region queued by ForceForward and the
// current Remove/UniquelyKeep sets. It does not move the frontier
// back: the next Progress continues with the candidates after the
// step just returned.
func (g *Generator) ClearProgress() {
	g.pendingActive = nil
	g.excluded = make(map[string]bool)
	g.uniquelyKept = nil
}

// Arena exposes the per-region haplotype arena so callers (C4/C6/C7)
// can look haplotypes up by sequence without re-interning.
func (g *Generator) Arena() *variant.Arena { return g.arena }
