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

package vcfio

import (
	"math"

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/utils"
	"github.com/exascience/varcall/variant"
	"github.com/exascience/varcall/vcf"
)

// maxGQ caps the Phred-scaled genotype quality VCF writers conventionally
// use; an Open Question decision (DESIGN.md) treats this as a fixed
// compatibility constant rather than a tunable.
const maxGQ = variant.Phred(999)

// Writer wraps a vcf.OutputFile with the sample order and sites-only
// flag needed to project Calls onto vcf.Variant lines.
type Writer struct {
	file        *vcf.OutputFile
	sampleOrder []string
	sitesOnly   bool
}

// Create opens path for output and writes the header for sampleNames.
func Create(path string, sampleNames []string, sitesOnly bool) (*Writer, error) {
	file, err := vcf.Create(path, false)
	if err != nil {
		return nil, callerr.New(callerr.Resource, "vcfio.Create", err.Error(), "check --output path permissions")
	}
	header := NewHeader(sampleNames, sitesOnly)
	if err := header.Format(file.Writer); err != nil {
		return nil, callerr.New(callerr.Resource, "vcfio.Create", err.Error(), "")
	}
	return &Writer{file: file, sampleOrder: sampleNames, sitesOnly: sitesOnly}, nil
}

// Close flushes and closes the underlying output file.
func (w *Writer) Close() error {
	return w.file.Close()
}

// WriteCall projects c onto a vcf.Variant and appends it to the file.
// filterTags is the set of C13 FILTER keys c failed, or nil to mark it
// PASS.
func (w *Writer) WriteCall(c *variant.Call, filterTags []string) error {
	v := ToVariant(c, w.sampleOrder, w.sitesOnly, filterTags)
	buf, err := v.Format(nil)
	if err != nil {
		return callerr.New(callerr.Internal, "vcfio.WriteCall", err.Error(), "")
	}
	if _, err := w.file.Write(buf); err != nil {
		return callerr.New(callerr.Resource, "vcfio.WriteCall", err.Error(), "")
	}
	return nil
}

// ToVariant converts one Call into the teacher's wire vcf.Variant,
// carrying exactly the INFO/FORMAT fields section 6 requires. QUAL is
// already capped/rounded by the caller (C8/C9); genotypes are rendered
// phased ("|") for any sample carrying a Phase block, unphased ("/")
// otherwise.
func ToVariant(c *variant.Call, sampleOrder []string, sitesOnly bool, filterTags []string) *vcf.Variant {
	alt := make([]string, len(c.Alts))
	for i, a := range c.Alts {
		alt[i] = string(a.Seq)
	}
	filter := []utils.Symbol{vcf.PASS}
	if len(filterTags) > 0 {
		filter = make([]utils.Symbol, len(filterTags))
		for i, tag := range filterTags {
			filter[i] = utils.Intern(tag)
		}
	}
	info := utils.SmallMap{
		{Key: NS, Value: int(c.NumSamplesWithData)},
		{Key: DP, Value: int(c.Depth)},
		{Key: SB, Value: c.StrandBias},
		{Key: BQ, Value: c.MeanBaseQuality},
		{Key: MQ, Value: c.MeanMappingQuality},
		{Key: MQ0, Value: int(c.MQ0Count)},
	}
	if c.ModelPosterior != nil {
		info = append(info, utils.SmallMapEntry{Key: MP, Value: *c.ModelPosterior})
	}

	v := &vcf.Variant{
		Source: "varcall",
		Chrom:  c.Region.Contig,
		Pos:    c.Region.Begin + 1, // VCF POS is 1-based
		Ref:    string(c.Ref.Seq),
		Alt:    alt,
		Qual:   math.Round(float64(c.Qual)*100) / 100,
		Filter: filter,
		Info:   info,
	}
	if !sitesOnly {
		byName := make(map[string]variant.GenotypeCall, len(c.Genotypes))
		for _, gt := range c.Genotypes {
			byName[gt.Sample] = gt
		}
		v.GenotypeFormat = []utils.Symbol{vcf.GT, GQ, DP, BQ, MQ}
		anyPhase := false
		for _, gt := range c.Genotypes {
			if gt.Phase != nil {
				anyPhase = true
				break
			}
		}
		if anyPhase {
			v.GenotypeFormat = append(v.GenotypeFormat, PS, PQ)
		}
		for _, sample := range sampleOrder {
			gt, ok := byName[sample]
			v.GenotypeData = append(v.GenotypeData, renderGenotype(gt, ok, c, alt))
		}
	}
	return v
}

func renderGenotype(gt variant.GenotypeCall, present bool, c *variant.Call, alt []string) vcf.Genotype {
	if !present {
		missing := make([]int32, 0)
		return vcf.Genotype{GT: missing}
	}
	gtIndices := make([]int32, len(gt.Genotype.Elements))
	for i, allele := range gt.Genotype.Elements {
		gtIndices[i] = alleleIndex(allele, c.Ref, alt)
	}
	gq := variant.PhredFromProbability(1 - gt.Posterior).Capped(maxGQ)
	data := utils.SmallMap{
		{Key: GQ, Value: int(gq)},
		{Key: DP, Value: int(c.Depth)},
		{Key: BQ, Value: c.MeanBaseQuality},
		{Key: MQ, Value: c.MeanMappingQuality},
	}
	if gt.Phase != nil {
		data = append(data,
			utils.SmallMapEntry{Key: PS, Value: phaseSetID(gt.Phase.ID)},
			utils.SmallMapEntry{Key: PQ, Value: float64(gt.Phase.Score)},
		)
	}
	return vcf.Genotype{
		Phased: gt.Phase != nil,
		GT:     gtIndices,
		Data:   data,
	}
}

// alleleIndex returns allele's 0-based ALT index (0 = ref) for GT
// encoding, matching it by sequence since spanning-deletion/padding
// sentinels never appear in ref/alt verbatim.
func alleleIndex(allele variant.Allele, ref variant.Allele, alt []string) int32 {
	if allele.Equal(ref) {
		return 0
	}
	seq := string(allele.Seq)
	for i, a := range alt {
		if a == seq {
			return int32(i + 1)
		}
	}
	return -1 // no matching allele: render as missing
}

// phaseSetID hashes a phase block's uuid string down to the integer PS
// VCF expects (PS is typed Integer per the FORMAT header above).
func phaseSetID(id string) int {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}
