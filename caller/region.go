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
	"sort"

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/candidate"
	"github.com/exascience/varcall/haplotype"
	"github.com/exascience/varcall/inference"
	"github.com/exascience/varcall/likelihood"
	"github.com/exascience/varcall/phase"
	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

// Reads maps sample name to the alignments overlapping a region for
// that sample; single-sample callers use one entry.
type Reads map[string][]*sam.Alignment

// RegionResult is one region's contribution to the call stream, plus
// the per-sample phase sets accumulated while processing it.
type RegionResult struct {
	Calls     []*variant.Call
	PhaseSets map[string]*variant.PhaseSet
}

// CallRegion runs the full C2->C3->C4->C6->C7 loop over one region
// (section 4.6's per-region algorithm), given the region's reads per
// sample and the reference sequence for region.Contig.
func CallRegion(region variant.Region, reads Reads, ref []byte, cfg Config, channel *phase.Channel) (RegionResult, error) {
	allReads := flattenReads(reads)

	candidates, err := candidate.Generate(region, allReads, ref, cfg.Candidate)
	if err != nil {
		return RegionResult{}, err
	}

	gen := haplotype.New(region, candidates, allReads, ref, cfg.Haplotype)
	phaser := phase.Phaser{MinPhaseScore: cfg.MinPhaseScore}

	var handler *phase.Handler
	if channel != nil {
		handler = channel.Handle()
	}

	result := RegionResult{PhaseSets: make(map[string]*variant.PhaseSet)}
	for sample := range reads {
		result.PhaseSets[sample] = &variant.PhaseSet{}
	}

	var lastActive variant.Region
	for {
		haplotypes, active := gen.Progress()
		if len(haplotypes) == 0 {
			break
		}

		matrices := make(map[string]*likelihood.Matrix, len(reads))
		for sample, sampleReads := range reads {
			overlapping := overlappingReads(sampleReads, active)
			matrices[sample] = likelihood.Compute(overlapping, haplotypes, cfg.Likelihood)
		}

		perSample, haplotypePosteriors, err := runInference(cfg, matrices, haplotypes)
		if err != nil {
			gen.ClearProgress()
			continue
		}

		var samplePosteriors []phase.SamplePosteriors
		for sample, latents := range perSample {
			samplePosteriors = append(samplePosteriors, phase.SamplePosteriors{Sample: sample, Latents: latents})
		}

		if block, ok := phaser.TryPhase(active, samplePosteriors); ok {
			for sample := range reads {
				result.PhaseSets[sample].Add(*block)
			}
			gen.ForceForward(block.Region)
		}

		calls := callsFromLatents(active, region.Contig, perSample, haplotypes, ref)
		result.Calls = append(result.Calls, calls...)

		var toRemove []*variant.Haplotype
		for h, p := range haplotypePosteriors {
			if p < cfg.MinHaplotypePosterior {
				toRemove = append(toRemove, h)
			}
		}
		gen.Remove(toRemove)

		lastActive = active
		next := gen.TellNextActiveRegion()
		if next.Begin >= region.End {
			break
		}
	}

	if handler != nil {
		var forced *variant.PhaseBlock
		if lastActive.Len() > 0 {
			forced = &variant.PhaseBlock{Region: lastActive}
		}
		handler.Close(forced)
	}

	sort.Slice(result.Calls, func(i, j int) bool {
		return variant.RegionLess(result.Calls[i].Region, result.Calls[j].Region, cfg.ContigOrder)
	})
	return result, nil
}

func flattenReads(reads Reads) []*sam.Alignment {
	var all []*sam.Alignment
	for _, rs := range reads {
		all = append(all, rs...)
	}
	return all
}

func overlappingReads(reads []*sam.Alignment, region variant.Region) []*sam.Alignment {
	var result []*sam.Alignment
	for _, aln := range reads {
		if aln == nil || aln.IsUnmapped() {
			continue
		}
		readRegion := variant.Region{Contig: aln.RNAME, Begin: aln.POS - 1, End: aln.POS - 1 + int32(len(aln.SEQ))}
		if readRegion.Overlaps(region) {
			result = append(result, aln)
		}
	}
	return result
}

// runInference dispatches to the configured Kind's C6 model and
// returns a per-sample posterior plus the union haplotype-posterior
// map C8 uses to decide what C3 should remove (step g).
func runInference(cfg Config, matrices map[string]*likelihood.Matrix, haplotypes []*variant.Haplotype) (map[string]inference.InferredLatents, map[*variant.Haplotype]float64, error) {
	perSample := make(map[string]inference.InferredLatents)
	union := make(map[*variant.Haplotype]float64)

	switch cfg.Kind {
	case KindTrio:
		mother, mOK := matrices[cfg.Trio.Mother]
		father, fOK := matrices[cfg.Trio.Father]
		child, cOK := matrices[cfg.Trio.Child]
		if !mOK || !fOK || !cOK {
			return nil, nil, callerr.New(callerr.Input, "caller.runInference", "missing trio sample reads", "check --maternal-sample/--paternal-sample and --samples")
		}
		trio, err := inference.Trio(mother, father, child, haplotypes, cfg.TrioPloidy, cfg.Prior, cfg.Denovo)
		if err != nil {
			return nil, nil, err
		}
		mLatents, fLatents, cLatents := marginalizeTrio(trio)
		perSample[cfg.Trio.Mother] = mLatents
		perSample[cfg.Trio.Father] = fLatents
		perSample[cfg.Trio.Child] = cLatents
		mergeHaplotypePosteriors(union, mLatents.HaplotypePosteriors())
		mergeHaplotypePosteriors(union, fLatents.HaplotypePosteriors())
		mergeHaplotypePosteriors(union, cLatents.HaplotypePosteriors())

	case KindCancer:
		tumour, ok := matrices[cfg.CancerSample]
		if !ok {
			return nil, nil, callerr.New(callerr.Input, "caller.runInference", "missing tumour sample reads", "check --samples")
		}
		ploidy := cfg.SamplePloidy[cfg.CancerSample]
		if ploidy == 0 {
			ploidy = 2
		}
		cancer, err := inference.Cancer(tumour, haplotypes, ploidy, cfg.Prior, cfg.Cancer)
		if err != nil {
			return nil, nil, err
		}
		perSample[cfg.CancerSample] = cancer.InferredLatents
		mergeHaplotypePosteriors(union, cancer.HaplotypePosteriors())

	case KindPopulation:
		var samples []string
		var mats []*likelihood.Matrix
		for s, m := range matrices {
			samples = append(samples, s)
			mats = append(mats, m)
		}
		ploidy := 2
		pop, err := inference.Population(mats, haplotypes, ploidy, cfg.Prior)
		if err != nil {
			return nil, nil, err
		}
		for i, s := range samples {
			if i < len(pop.PerSample) {
				perSample[s] = pop.PerSample[i]
				mergeHaplotypePosteriors(union, pop.PerSample[i].HaplotypePosteriors())
			}
		}

	default: // KindIndividual
		anyOK := false
		for sample, m := range matrices {
			ploidy := cfg.SamplePloidy[sample]
			if ploidy == 0 {
				ploidy = 2
			}
			latents, err := inference.Individual(m, haplotypes, ploidy, cfg.Prior)
			if err != nil {
				continue
			}
			anyOK = true
			perSample[sample] = latents
			mergeHaplotypePosteriors(union, latents.HaplotypePosteriors())
		}
		if !anyOK {
			return nil, nil, callerr.New(callerr.Numerical, "caller.runInference", "every sample's inference failed", "")
		}
	}

	return perSample, union, nil
}

func mergeHaplotypePosteriors(into map[*variant.Haplotype]float64, from map[*variant.Haplotype]float64) {
	for h, p := range from {
		if p > into[h] {
			into[h] = p
		}
	}
}

// marginalizeTrio splits a joint trio posterior into three per-sample
// InferredLatents by grouping triples that share the same sub-genotype
// and summing their posteriors, so that the phaser (which reasons
// per-sample) and the record factory (C9, per-sample GT/GQ) can treat
// a trio call like three individual ones.
func marginalizeTrio(trio inference.TrioLatents) (mother, father, child inference.InferredLatents) {
	type acc struct {
		genotypes  [][]*variant.Haplotype
		posteriors []float64
		index      map[string]int
	}
	newAcc := func() *acc { return &acc{index: make(map[string]int)} }
	add := func(a *acc, g []*variant.Haplotype, p float64) {
		key := genotypeKey(g)
		if i, ok := a.index[key]; ok {
			a.posteriors[i] += p
		} else {
			a.index[key] = len(a.genotypes)
			a.genotypes = append(a.genotypes, g)
			a.posteriors = append(a.posteriors, p)
		}
	}
	mAcc, fAcc, cAcc := newAcc(), newAcc(), newAcc()
	for i, triple := range trio.Triples {
		p := trio.Posteriors[i]
		add(mAcc, triple[0], p)
		add(fAcc, triple[1], p)
		add(cAcc, triple[2], p)
	}
	mother = inference.InferredLatents{Genotypes: mAcc.genotypes, Posteriors: mAcc.posteriors, LogEvidence: trio.LogEvidence}
	father = inference.InferredLatents{Genotypes: fAcc.genotypes, Posteriors: fAcc.posteriors, LogEvidence: trio.LogEvidence}
	child = inference.InferredLatents{Genotypes: cAcc.genotypes, Posteriors: cAcc.posteriors, LogEvidence: trio.LogEvidence}
	return
}

func genotypeKey(g []*variant.Haplotype) string {
	key := make([]byte, 0, len(g)*8)
	for _, h := range g {
		key = append(key, []byte(h.Region.String())...)
		key = append(key, h.Seq...)
		key = append(key, 0)
	}
	return string(key)
}

// callsFromLatents turns each sample's genotype posterior into Call
// records at the active region, choosing the MAP genotype as GT and
// the posterior margin as QUAL/GQ (section 3's Call shape).
func callsFromLatents(active variant.Region, contig string, perSample map[string]inference.InferredLatents, haplotypes []*variant.Haplotype, ref []byte) []*variant.Call {
	var calls []*variant.Call
	for sample, latents := range perSample {
		if len(latents.Posteriors) == 0 {
			continue
		}
		best, bestP := 0, -1.0
		for i, p := range latents.Posteriors {
			if p > bestP {
				best, bestP = i, p
			}
		}
		mapGenotype := latents.Genotypes[best]
		if isAllRef(mapGenotype) {
			continue
		}
		alleles := make([]variant.Allele, len(mapGenotype))
		var alts []variant.Allele
		seenAlt := make(map[string]bool)
		for i, h := range mapGenotype {
			alleles[i] = haplotypeAllele(h)
			if !h.IsRef {
				if key := string(alleles[i].Seq); !seenAlt[key] {
					seenAlt[key] = true
					alts = append(alts, alleles[i])
				}
			}
		}
		gt := variant.GenotypeCall{
			Sample:    sample,
			Genotype:  variant.Genotype[variant.Allele]{Elements: alleles},
			Posterior: bestP,
		}
		refAllele := variant.Allele{Region: active, Seq: ref[active.Begin:active.End]}
		calls = append(calls, &variant.Call{
			Kind:      variant.KindGermlineVariant,
			Region:    active,
			Ref:       refAllele,
			Alts:      alts,
			Genotypes: []variant.GenotypeCall{gt},
			Qual:      variant.PhredFromProbability(1 - bestP).Capped(variant.Phred(5000)).Round2(),
		})
	}
	return calls
}

func isAllRef(g []*variant.Haplotype) bool {
	for _, h := range g {
		if !h.IsRef {
			return false
		}
	}
	return true
}

// haplotypeAllele reduces a haplotype to its single dominant allele
// for genotype reporting when it carries exactly one non-reference
// allele (the common case for a locally re-assembled active region);
// haplotypes carrying several non-ref alleles report the first, since
// multi-allelic block decomposition is C9's job (callfactory), not C8's.
func haplotypeAllele(h *variant.Haplotype) variant.Allele {
	for _, a := range h.Alleles {
		if len(a.Seq) > 0 || a.Region.Empty() {
			return a
		}
	}
	if len(h.Alleles) > 0 {
		return h.Alleles[0]
	}
	return variant.Allele{Region: h.Region, Seq: h.Seq}
}
