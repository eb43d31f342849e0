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

// Package likelihood implements C4, the read/haplotype likelihood
// cache: a pair-HMM scoring a read against every haplotype spanning its
// region, with the teacher's cross-haplotype likelihood clamp and
// poorly-modeled-read rejection. Grounded on filters/pairhmm.go's
// computeReadLikelihoods (the match/insertion/deletion forward
// recursion and its Arndt-style rescaling) and filters/haploutils.go's
// log-sum-exp helpers.
package likelihood

import (
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

// Config tunes the model. GlobalMismappingRate is the teacher's
// globalReadMismappingRate: a read's likelihood under any haplotype
// (reference included) is never allowed to fall more than this many log10 units
// below its best non-ref haplotype, since a read that disagrees with
// every haplotype by that much is more likely simply mismapped.
type Config struct {
	GlobalMismappingRate float64
	MinIndelQuality      byte
}

// DefaultConfig mirrors the teacher's globalReadMismappingRate (-4.5)
// and its fixed gap-quality floor.
func DefaultConfig() Config {
	return Config{GlobalMismappingRate: -4.5, MinIndelQuality: 10}
}

// Matrix is a cache of read x haplotype log10-likelihoods for one
// active region, keyed by haplotype pointer so that callers (C6, C7)
// can look a value up without re-running the HMM.
type Matrix struct {
	Reads      []*sam.Alignment
	Haplotypes []*variant.Haplotype
	values     map[*variant.Haplotype][]float64 // per haplotype, one entry per surviving read
}

// Get returns the log10 likelihood of read i under haplotype h.
func (m *Matrix) Get(h *variant.Haplotype, readIndex int) float64 {
	row := m.values[h]
	if readIndex < 0 || readIndex >= len(row) {
		return math.Inf(-1)
	}
	return row[readIndex]
}

// Row returns every read's log10 likelihood under h, in Reads order.
func (m *Matrix) Row(h *variant.Haplotype) []float64 { return m.values[h] }

const (
	log10One = 0.0
	ln10     = math.Ln10
)

func log10(x float64) float64 { return math.Log10(x) }

func qualToErrorProb(q byte) float64 { return math.Pow(10, -float64(q)/10) }

// modifiedQuality caps a base's quality at the read's mapping quality
// and floors low qualities, matching the teacher's modifiedQuality: a
// base called under a weak alignment should never be trusted more than
// the alignment itself is.
func modifiedQuality(aln *sam.Alignment, index int) byte {
	qual := aln.QUAL[index] - 33
	if qual > aln.MAPQ {
		qual = aln.MAPQ
	}
	if qual < 18 {
		return 6
	}
	return qual
}

var (
	initialCondition      = math.Pow(2, 1020)
	initialConditionLog10 = log10(initialCondition)
)

// float64Matrix is a flat row-major matrix reused across haplotypes via
// a sync.Pool, the same layout the teacher's pairHMMMatrices pool uses
// to avoid reallocating per read/haplotype pair.
type float64Matrix struct {
	cols  int
	array []float64
}

func (m *float64Matrix) ensureSize(rows, cols int) {
	m.cols = cols
	total := rows * cols
	if total <= cap(m.array) {
		m.array = m.array[:total]
		for i := range m.array {
			m.array[i] = 0
		}
	} else {
		m.array = make([]float64, total)
	}
}

func (m *float64Matrix) rowView(row int) []float64 {
	offset := row * m.cols
	return m.array[offset : offset+m.cols]
}

type pairHMMMatrices struct {
	match, insertion, deletion float64Matrix
}

var pairHMMMatricesPool = sync.Pool{New: func() interface{} { return new(pairHMMMatrices) }}

func getMatrices() *pairHMMMatrices  { return pairHMMMatricesPool.Get().(*pairHMMMatrices) }
func putMatrices(p *pairHMMMatrices) { pairHMMMatricesPool.Put(p) }

// Compute scores every read against every haplotype, clamps
// cross-haplotype outliers, and drops reads that are poorly modeled by
// every haplotype (the teacher's checkPoorlyModeledReads loop), so that
// C6's latent inference never has to reason about mismapped reads.
func Compute(reads []*sam.Alignment, haplotypes []*variant.Haplotype, cfg Config) *Matrix {
	indelToIndel := qualToErrorProb(cfg.MinIndelQuality)
	indelToMatch := 1 - indelToIndel

	maxReadLength, maxHaplotypeLength := 0, 0
	for _, aln := range reads {
		if l := len(aln.SEQ); l > maxReadLength {
			maxReadLength = l
		}
	}
	for _, h := range haplotypes {
		if l := len(h.Seq); l > maxHaplotypeLength {
			maxHaplotypeLength = l
		}
	}

	values := make(map[*variant.Haplotype][]float64, len(haplotypes))
	for _, h := range haplotypes {
		values[h] = make([]float64, len(reads))
	}

	parallel.Range(0, len(reads), 0, func(low, high int) {
		p := getMatrices()
		defer putMatrices(p)
		p.ensureSize(maxReadLength+1, maxHaplotypeLength+1)

		for readIndex := low; readIndex < high; readIndex++ {
			aln := reads[readIndex]
			readBases := aln.SEQ

			for _, h := range haplotypes {
				haplotypeBases := h.Seq
				initialValue := initialCondition / float64(len(haplotypeBases))
				pDeletion0 := p.deletion.rowView(0)
				for j := 0; j <= maxHaplotypeLength; j++ {
					pDeletion0[j] = initialValue
				}

				for i := range aln.QUAL {
					x := readBases[i]
					qual := modifiedQuality(aln, i)
					matchPrior := 1 - qualToErrorProb(qual)
					nonMatchPrior := qualToErrorProb(qual) / 3
					matchToMatch := 1 - 2*indelToIndel
					matchToIndel := indelToIndel

					pMatchI := p.match.rowView(i)
					pMatchI1 := p.match.rowView(i + 1)
					pInsertionI := p.insertion.rowView(i)
					pInsertionI1 := p.insertion.rowView(i + 1)
					pDeletionI := p.deletion.rowView(i)
					pDeletionI1 := p.deletion.rowView(i + 1)

					for j := 0; j < len(haplotypeBases); j++ {
						y := haplotypeBases[j]
						var prior float64
						if x == y || x == 'N' || y == 'N' {
							prior = matchPrior
						} else {
							prior = nonMatchPrior
						}
						pMatchI1[j+1] = prior * (pMatchI[j]*matchToMatch +
							pInsertionI[j]*indelToMatch +
							pDeletionI[j]*indelToMatch)
						pInsertionI1[j+1] = pMatchI[j+1]*matchToIndel + pInsertionI[j+1]*indelToIndel
						pDeletionI1[j+1] = pMatchI1[j]*matchToIndel + pDeletionI1[j]*indelToIndel
					}
				}

				var sum float64
				pMatchEnd := p.match.rowView(len(aln.QUAL))
				pInsertionEnd := p.insertion.rowView(len(aln.QUAL))
				for j := 1; j <= len(haplotypeBases); j++ {
					sum += pMatchEnd[j] + pInsertionEnd[j]
				}
				values[h][readIndex] = log10(sum) - initialConditionLog10
			}
		}
	})

	clampCrossHaplotypeOutliers(reads, haplotypes, values, cfg.GlobalMismappingRate)
	reads, values = rejectPoorlyModeledReads(reads, haplotypes, values)

	return &Matrix{Reads: reads, Haplotypes: haplotypes, values: values}
}

// clampCrossHaplotypeOutliers is the teacher's worstLikelihoodCap loop:
// any haplotype likelihood of a read (reference included) that falls
// more than the cap below the read's best non-ref haplotype is raised
// to the cap, since that much disagreement signals mismapping, not a
// true allele.
func clampCrossHaplotypeOutliers(reads []*sam.Alignment, haplotypes []*variant.Haplotype, values map[*variant.Haplotype][]float64, globalMismappingRate float64) {
	if len(haplotypes) <= 1 {
		return
	}
	for r := range reads {
		best := math.Inf(-1)
		for _, h := range haplotypes {
			if !h.IsRef {
				if v := values[h][r]; v > best {
					best = v
				}
			}
		}
		if math.IsInf(best, -1) {
			continue
		}
		floor := best + globalMismappingRate
		for _, h := range haplotypes {
			if values[h][r] < floor {
				values[h][r] = floor
			}
		}
	}
}

// rejectPoorlyModeledReads drops reads whose best haplotype likelihood
// still implies an implausible number of per-base errors, the
// teacher's checkPoorlyModeledReads loop. keep is a bitset rather than
// a []bool since it is tested column-wise against every haplotype's
// value row below, the same membership-mask shape the teacher's own
// indel/homopolymer run tracking uses.
func rejectPoorlyModeledReads(reads []*sam.Alignment, haplotypes []*variant.Haplotype, values map[*variant.Haplotype][]float64) ([]*sam.Alignment, map[*variant.Haplotype][]float64) {
	keep := bitset.New(uint(len(reads)))
	for i, aln := range reads {
		maxErrors := math.Min(2, math.Ceil(float64(len(aln.QUAL))*0.02))
		threshold := maxErrors * -4.0
		for _, h := range haplotypes {
			if values[h][i] >= threshold {
				keep.Set(uint(i))
				break
			}
		}
	}
	if keep.Count() == uint(len(reads)) {
		return reads, values
	}
	newReads := make([]*sam.Alignment, 0, keep.Count())
	for i, aln := range reads {
		if keep.Test(uint(i)) {
			newReads = append(newReads, aln)
		}
	}
	newValues := make(map[*variant.Haplotype][]float64, len(haplotypes))
	for _, h := range haplotypes {
		row := values[h]
		newRow := make([]float64, 0, len(newReads))
		for i, v := range row {
			if keep.Test(uint(i)) {
				newRow = append(newRow, v)
			}
		}
		newValues[h] = newRow
	}
	return newReads, newValues
}
