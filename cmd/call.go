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

// Package cmd wires the cobra/viper command tree (C10) to the caller
// pipeline: it loads the reference and reads, buckets them into C8
// jobs, and drives Run -> MergeSorted -> callfactory.Build ->
// filter.NewChain -> vcfio into the output VCF. Grounded on
// filters/haplotypecaller.go's CallVariants for the overall
// load-call-write shape, generalized from its single BAM/single sample
// assumption to section 6's multi-file, multi-sample surface.
package cmd

import (
	"context"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exascience/varcall/caller"
	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/callfactory"
	"github.com/exascience/varcall/config"
	"github.com/exascience/varcall/fasta"
	"github.com/exascience/varcall/filter"
	"github.com/exascience/varcall/obslog"
	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
	"github.com/exascience/varcall/vcfio"
)

// NewRootCommand builds the varcall command tree: a root command that
// carries no behavior of its own, plus the call subcommand.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "varcall",
		Short:         "varcall calls germline, somatic, trio and population variants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCallCommand())
	return root
}

func newCallCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "call",
		Short: "call variants from one or more aligned read files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return callerr.New(callerr.Internal, "cmd.call", err.Error(), "")
			}
			cfg, err := config.Resolve(v)
			if err != nil {
				return err
			}
			return runCall(cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// referenceMap adapts a plain map[contig][]byte, loaded via fasta.ParseFasta,
// to caller.ReferenceProvider, so --reference need not be pre-converted to
// the teacher's memory-mapped .elfasta format.
type referenceMap map[string][]byte

func (r referenceMap) Seq(contig string) []byte { return r[contig] }

func runCall(cfg config.Call) error {
	if cfg.Threads > 0 {
		runtime.GOMAXPROCS(cfg.Threads)
	}
	logger, err := obslog.New(cfg.LogFile)
	if err != nil {
		return callerr.New(callerr.Resource, "cmd.runCall", err.Error(), "check --log-file directory permissions")
	}
	defer logger.Sync()
	progress := obslog.NewProgress(logger)

	fai := fasta.ParseFai(cfg.Reference + ".fai")
	if len(fai) == 0 {
		return callerr.New(callerr.Input, "cmd.runCall", "reference has no .fai index: "+cfg.Reference, "run samtools faidx on --reference first")
	}
	ref := referenceMap(fasta.ParseFasta(cfg.Reference, fai, true, false))

	contigOrder := contigOrderFromFai(fai)
	kind, err := caller.ParseKind(cfg.Caller)
	if err != nil {
		return err
	}

	reads, sampleNames, err := loadReads(cfg.Reads, cfg.Samples)
	if err != nil {
		return err
	}

	regions, err := resolveRegions(cfg, fai, contigOrder)
	if err != nil {
		return err
	}

	groups := groupRegionsByPloidy(regions, cfg)
	var allResults []caller.Result
	for ploidy, group := range groups {
		samplePloidy := make(map[string]int, len(sampleNames))
		for _, s := range sampleNames {
			samplePloidy[s] = ploidy
		}
		callCfg := buildCallerConfig(cfg, kind, samplePloidy, contigOrder)
		jobs := make([]caller.Job, len(group))
		for i, region := range group {
			jobs[i] = caller.Job{Region: region, Reads: bucketReads(reads, region)}
		}
		results := caller.Run(jobs, ref, callCfg)
		for _, r := range results {
			if r.Err != nil {
				logger.Sugar().Warnw("region call failed", "region", r.Job.Region.String(), "error", r.Err)
				continue
			}
			progress.Region()
			progress.Calls(len(r.Calls))
		}
		allResults = append(allResults, results...)
	}

	calls := caller.MergeSorted(allResults, contigOrder)
	calls = buildPerContig(calls, ref, contigOrder)

	chain := filter.NewChain(cfg.MinQual, cfg.MinDepth, cfg.MaxStrandBias)
	failures := chain.Apply(calls)

	writer, err := vcfio.Create(cfg.Output, sampleNames, cfg.SitesOnly)
	if err != nil {
		return err
	}
	defer writer.Close()
	for _, c := range calls {
		if err := writer.WriteCall(c, failures[c]); err != nil {
			return err
		}
	}
	progress.Report()
	return nil
}

func buildCallerConfig(cfg config.Call, kind caller.Kind, samplePloidy map[string]int, contigOrder map[string]int) caller.Config {
	callCfg := caller.DefaultConfig()
	callCfg.Kind = kind
	callCfg.SamplePloidy = samplePloidy
	callCfg.Haplotype.MaxHaplotypes = cfg.MaxHaplotypes
	callCfg.MinHaplotypePosterior = cfg.MinVariantPosterior
	callCfg.MinPhaseScore = variant.Phred(cfg.MinPhaseScore)
	callCfg.RefCall = cfg.RefCallType()
	callCfg.ContigOrder = contigOrder
	callCfg.Trio = caller.TrioSamples{Mother: cfg.MaternalSample, Father: cfg.PaternalSample}
	if kind == caller.KindTrio {
		for _, s := range cfg.Samples {
			if s != cfg.MaternalSample && s != cfg.PaternalSample {
				callCfg.Trio.Child = s
				break
			}
		}
	}
	callCfg.CancerSample = firstOrEmpty(cfg.Samples)
	callCfg.CancerNormal = cfg.NormalSample
	return callCfg
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func contigOrderFromFai(fai map[string]fasta.FaiReference) map[string]int {
	names := make([]string, 0, len(fai))
	for name := range fai {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return fai[names[i]].Offset < fai[names[j]].Offset })
	order := make(map[string]int, len(names))
	for i, name := range names {
		order[name] = i
	}
	return order
}

// resolveRegions parses --regions as "contig:begin-end" entries, or
// falls back to one whole-contig region per reference entry, then
// removes every --skip-regions interval from the result.
func resolveRegions(cfg config.Call, fai map[string]fasta.FaiReference, contigOrder map[string]int) ([]variant.Region, error) {
	var regions []variant.Region
	if len(cfg.Regions) > 0 {
		for _, spec := range cfg.Regions {
			r, err := parseRegionSpec(spec)
			if err != nil {
				return nil, err
			}
			regions = append(regions, r)
		}
	} else {
		for contig, entry := range fai {
			regions = append(regions, variant.Region{Contig: contig, Begin: 0, End: entry.Length})
		}
	}
	for _, spec := range cfg.SkipRegions {
		skip, err := parseRegionSpec(spec)
		if err != nil {
			return nil, err
		}
		regions = subtractRegion(regions, skip)
	}
	sort.Slice(regions, func(i, j int) bool { return variant.RegionLess(regions[i], regions[j], contigOrder) })
	return regions, nil
}

func parseRegionSpec(spec string) (variant.Region, error) {
	contigPart := strings.SplitN(spec, ":", 2)
	if len(contigPart) != 2 {
		return variant.Region{}, callerr.New(callerr.Usage, "cmd.parseRegionSpec", "malformed --regions entry "+spec, "use contig:begin-end")
	}
	bounds := strings.SplitN(contigPart[1], "-", 2)
	if len(bounds) != 2 {
		return variant.Region{}, callerr.New(callerr.Usage, "cmd.parseRegionSpec", "malformed --regions entry "+spec, "use contig:begin-end")
	}
	begin, err := strconv.Atoi(bounds[0])
	if err != nil {
		return variant.Region{}, callerr.New(callerr.Usage, "cmd.parseRegionSpec", "malformed --regions entry "+spec, "use contig:begin-end")
	}
	end, err := strconv.Atoi(bounds[1])
	if err != nil {
		return variant.Region{}, callerr.New(callerr.Usage, "cmd.parseRegionSpec", "malformed --regions entry "+spec, "use contig:begin-end")
	}
	return variant.Region{Contig: contigPart[0], Begin: int32(begin), End: int32(end)}, nil
}

func subtractRegion(regions []variant.Region, skip variant.Region) []variant.Region {
	var result []variant.Region
	for _, r := range regions {
		if r.Contig != skip.Contig || !r.Overlaps(skip) {
			result = append(result, r)
			continue
		}
		if r.Begin < skip.Begin {
			result = append(result, variant.Region{Contig: r.Contig, Begin: r.Begin, End: skip.Begin})
		}
		if skip.End < r.End {
			result = append(result, variant.Region{Contig: r.Contig, Begin: skip.End, End: r.End})
		}
	}
	return result
}

// groupRegionsByPloidy buckets regions by their contig's resolved
// ploidy, so that one caller.Run invocation (which carries a single
// SamplePloidy map) never mixes contigs that disagree on ploidy.
func groupRegionsByPloidy(regions []variant.Region, cfg config.Call) map[int][]variant.Region {
	groups := make(map[int][]variant.Region)
	for _, r := range regions {
		ploidy := cfg.ContigPloidy(r.Contig)
		groups[ploidy] = append(groups[ploidy], r)
	}
	return groups
}

// buildPerContig runs callfactory.Build per contig, since its left-pad
// step indexes ref by an absolute, single-contig offset: calls is
// assumed already grouped contiguously by contig (caller.MergeSorted's
// output, sorted by contigOrder).
func buildPerContig(calls []*variant.Call, ref referenceMap, contigOrder map[string]int) []*variant.Call {
	var result []*variant.Call
	i := 0
	for i < len(calls) {
		contig := calls[i].Region.Contig
		j := i + 1
		for j < len(calls) && calls[j].Region.Contig == contig {
			j++
		}
		result = append(result, callfactory.Build(calls[i:j], ref.Seq(contig), contigOrder)...)
		i = j
	}
	return result
}

func bucketReads(reads map[string][]*sam.Alignment, region variant.Region) caller.Reads {
	bucket := make(caller.Reads, len(reads))
	for sample, alns := range reads {
		var overlapping []*sam.Alignment
		for _, aln := range alns {
			if aln.IsUnmapped() || aln.RNAME != region.Contig {
				continue
			}
			alnRegion := variant.Region{Contig: aln.RNAME, Begin: aln.POS - 1, End: aln.POS - 1 + int32(len(aln.SEQ))}
			if alnRegion.Overlaps(region) {
				overlapping = append(overlapping, aln)
			}
		}
		bucket[sample] = overlapping
	}
	return bucket
}

// loadReads opens every path in paths, parses every alignment block
// sequentially via InputFile's lower-level Prepare/Fetch/Data/
// ParseAlignment methods, runs each file's reads through sam.CleanSam
// (soft-clipping reads whose CIGAR runs past the end of their contig,
// per the header's own SQ LN), and groups the cleaned reads by the
// RG -> SM sample name, per filters/haploutils.go's
// FilterReadsBySampleName. keepSamples, when non-empty, restricts the
// result to those sample names. Each sample's reads are left
// coordinate-sorted via sam.By(sam.CoordinateLess), matching the
// teacher's own parallel alignment sort, so that downstream windowing
// in bucketReads sees reads in a stable, reproducible order regardless
// of the input files' relative interleaving.
func loadReads(paths []string, keepSamples []string) (map[string][]*sam.Alignment, []string, error) {
	keep := make(map[string]bool, len(keepSamples))
	for _, s := range keepSamples {
		keep[s] = true
	}

	result := make(map[string][]*sam.Alignment)
	seenOrder := make([]string, 0)
	for _, path := range paths {
		file, err := sam.Open(path)
		if err != nil {
			return nil, nil, callerr.New(callerr.Resource, "cmd.loadReads", err.Error(), "check --reads path")
		}
		hdr := file.ParseHeader()
		rgToSample := make(map[string]string, len(hdr.RG))
		for _, rg := range hdr.RG {
			id, hasID := rg["ID"]
			sm, hasSM := rg["SM"]
			if hasID && hasSM {
				rgToSample[id] = sm
			}
		}
		clean := sam.CleanSam(hdr)

		ctx := context.Background()
		for {
			size := file.Prepare(ctx)
			if size <= 0 {
				size = 4096
			}
			fetched := file.Fetch(size)
			if fetched == 0 {
				break
			}
			blocks, ok := file.Data().([][]byte)
			if !ok {
				break
			}
			for _, block := range blocks {
				aln := file.ParseAlignment(block)
				if aln == nil {
					continue
				}
				clean(aln)
				sample := sampleForAlignment(aln, rgToSample)
				if sample == "" {
					continue
				}
				if len(keep) > 0 && !keep[sample] {
					continue
				}
				if _, ok := result[sample]; !ok {
					seenOrder = append(seenOrder, sample)
				}
				result[sample] = append(result[sample], aln)
			}
		}
		file.Close()
	}

	for _, alns := range result {
		sam.By(sam.CoordinateLess).ParallelStableSort(alns)
	}

	if len(keepSamples) > 0 {
		sort.Strings(keepSamples)
		return result, keepSamples, nil
	}
	sort.Strings(seenOrder)
	return result, seenOrder, nil
}

func sampleForAlignment(aln *sam.Alignment, rgToSample map[string]string) string {
	rg, ok := aln.TAGS.Get(sam.RG)
	if !ok {
		return ""
	}
	rgID, ok := rg.(string)
	if !ok {
		return ""
	}
	return rgToSample[rgID]
}
