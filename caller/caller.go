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
	"runtime"
	"sort"
	"sync"

	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/varcall/internal"
	"github.com/exascience/varcall/phase"
	"github.com/exascience/varcall/variant"
)

// ReferenceProvider returns the full, 0-based reference sequence for
// one contig, the C1 boundary this package depends on (fasta.MappedFasta
// satisfies it directly).
type ReferenceProvider interface {
	Seq(contig string) []byte
}

// Job is one unit of work for the orchestrator: a region to call plus
// that region's reads per sample.
type Job struct {
	Region variant.Region
	Reads  Reads
}

// Result pairs a job's outcome with its calls, or an
// error if the region's candidate generation or inference failed
// unrecoverably (section 4.6's "failure aborts the region" semantics:
// the caller logs and continues, it never aborts the run).
type Result struct {
	Job   Job
	Calls []*variant.Call
	Err   error
}

// indexedResult threads a job's position in the input slice through
// the pipeline's parallel stage so the ordered sink can write each
// result back to its slot regardless of completion order.
type indexedResult struct {
	index  int
	result Result
}

// Run drives every job through CallRegion, honoring section 4.6's
// concurrency wiring: an ordered dispatch stage feeds a bounded-
// parallel per-region calling stage feeding a single ordered sink,
// generalized from the teacher's CallVariants (computeRegionChannel ->
// assemblyRegionPipeline -> variantCallPipeline) into one two-stage
// pargo pipeline since C3's active-region banding already happens
// inside CallRegion. Consecutive jobs on the same contig are phase-
// linked via the C7 side channel; a contig boundary (or the first job)
// starts a fresh channel, exactly as the teacher links
// region.deletions from previousRegion.deletions.
func Run(jobs []Job, ref ReferenceProvider, cfg Config) []Result {
	channels := make([]phase.Channel, len(jobs))
	for i := range jobs {
		if i == 0 || jobs[i].Region.Contig != jobs[i-1].Region.Contig {
			channels[i].MakeInitial()
		} else {
			channels[i].LinkFrom(channels[i-1])
		}
	}

	results := make([]Result, len(jobs))
	var mu sync.Mutex

	var p pipeline.Pipeline
	next := 0
	p.Source(pipeline.NewFunc(-1, func(size int) (interface{}, int, error) {
		if next >= len(jobs) {
			return nil, 0, nil
		}
		stop := next + size
		if stop > len(jobs) {
			stop = len(jobs)
		}
		batch := make([]int, stop-next)
		for i := range batch {
			batch[i] = next + i
		}
		next = stop
		return batch, len(batch), nil
	}))
	p.SetVariableBatchSize(1, 1)
	p.Add(
		pipeline.LimitedPar(runtime.GOMAXPROCS(0), pipeline.Receive(func(_ int, data interface{}) interface{} {
			indices := data.([]int)
			out := make([]indexedResult, len(indices))
			for k, i := range indices {
				job := jobs[i]
				regionRef := ref.Seq(job.Region.Contig)
				regionResult, err := CallRegion(job.Region, job.Reads, regionRef, cfg, &channels[i])
				out[k] = indexedResult{index: i, result: Result{Job: job, Calls: regionResult.Calls, Err: err}}
			}
			return out
		})),
		pipeline.StrictOrd(pipeline.ReceiveAndFinalize(func(_ int, data interface{}) interface{} {
			out := data.([]indexedResult)
			mu.Lock()
			for _, ir := range out {
				results[ir.index] = ir.result
			}
			mu.Unlock()
			return nil
		}, func() {})),
	)
	internal.RunPipeline(&p)
	return results
}

// MergeSorted flattens every region's calls into one sorted stream,
// the input C13's filter chain and C11's writer consume.
func MergeSorted(results []Result, contigOrder map[string]int) []*variant.Call {
	var all []*variant.Call
	for _, r := range results {
		if r.Err != nil {
			continue // region aborted; already logged by the caller
		}
		all = append(all, r.Calls...)
	}
	sort.Slice(all, func(i, j int) bool {
		return variant.RegionLess(all[i].Region, all[j].Region, contigOrder)
	})
	return all
}
