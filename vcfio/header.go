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

// Package vcfio implements C11: the wire projection of a Call (after
// C9's record factory) onto the teacher's vcf.Variant/Header/Genotype
// types, and the header/writer wiring around them. Grounded on
// vcf/vcf-types.go and vcf/vcf-files.go, generalized from the source
// system's SAM-prep VCF sites format to section 6's INFO/FORMAT set.
package vcfio

import (
	"github.com/exascience/varcall/utils"
	"github.com/exascience/varcall/vcf"
)

// Info field symbols required by section 6.
var (
	NS  = utils.Intern("NS")
	DP  = utils.Intern("DP")
	SB  = utils.Intern("SB")
	BQ  = utils.Intern("BQ")
	MQ  = utils.Intern("MQ")
	MQ0 = utils.Intern("MQ0")
	MP  = utils.Intern("MP")
)

// Format field symbols required by section 6.
var (
	GQ = utils.Intern("GQ")
	PS = utils.Intern("PS")
	PQ = utils.Intern("PQ")
)

// NewHeader builds the VCF header for sampleNames; sitesOnly suppresses
// the FORMAT column and per-sample genotype columns.
func NewHeader(sampleNames []string, sitesOnly bool) *vcf.Header {
	h := vcf.NewHeader()
	h.Infos = []*vcf.FormatInformation{
		{ID: NS, Description: "Number of samples with data", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
		{ID: DP, Description: "Total read depth", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
		{ID: SB, Description: "Strand bias", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
		{ID: BQ, Description: "RMS base quality", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
		{ID: MQ, Description: "RMS mapping quality", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
		{ID: MQ0, Description: "Reads with mapping quality zero", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
		{ID: MP, Description: "Model posterior", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
	}
	if !sitesOnly {
		h.Formats = []*vcf.FormatInformation{
			{ID: vcf.GT, Description: "Genotype", Number: 1, Type: vcf.String, Fields: make(utils.StringMap)},
			{ID: GQ, Description: "Genotype quality", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
			{ID: DP, Description: "Read depth", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
			{ID: BQ, Description: "RMS base quality", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
			{ID: MQ, Description: "RMS mapping quality", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
			{ID: PS, Description: "Phase set", Number: 1, Type: vcf.Integer, Fields: make(utils.StringMap)},
			{ID: PQ, Description: "Phase quality", Number: 1, Type: vcf.Float, Fields: make(utils.StringMap)},
		}
		h.Columns = append(h.Columns, "FORMAT")
		h.Columns = append(h.Columns, sampleNames...)
	}
	return h
}
