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

package candidate

import (
	"github.com/exascience/varcall/sam"
	"github.com/exascience/varcall/variant"
)

// cigarCandidates walks each read's CIGAR against the reference and
// emits substitutions, insertions and deletions that clear the
// base-quality floor, counting read support so that only variants
// meeting MinSupportingReads are kept. Grounded on
// filters/assigngls.go's makeEventMap, generalized from "events on one
// haplotype's CIGAR vs reference" to "events on one read's CIGAR vs
// reference".
func cigarCandidates(region variant.Region, reads []*sam.Alignment, ref []byte, cfg Config) []variant.Variant {
	support := make(map[variant.Key]int)
	byKey := make(map[variant.Key]variant.Variant)

	for _, aln := range reads {
		if aln == nil || aln.IsUnmapped() || aln.IsSecondary() || aln.IsSupplementary() || aln.IsQCFailed() || aln.IsDuplicate() {
			continue
		}
		if aln.MAPQ < 20 {
			continue
		}
		ops, err := sam.ScanCigarString(aln.CIGAR)
		if err != nil {
			continue
		}
		refPos := aln.POS - 1 // SAM POS is 1-based
		readPos := int32(0)
		seq := aln.SEQ
		qual := aln.QUAL
		for _, op := range ops {
			switch op.Operation {
			case 'M', '=', 'X':
				for i := int32(0); i < op.Length; i++ {
					rp := refPos + i
					if rp < region.Begin || rp >= region.End || int(rp) >= len(ref) {
						continue
					}
					readBase := seq[int(readPos+i)]
					refBase := ref[rp]
					if readBase != refBase && baseQuality(qual, readPos+i) >= cfg.MinBaseQuality {
						v := variant.Variant{
							Ref: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: rp, End: rp + 1}, Seq: []byte{refBase}},
							Alt: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: rp, End: rp + 1}, Seq: []byte{readBase}},
						}
						accumulate(support, byKey, v)
					}
				}
				refPos += op.Length
				readPos += op.Length
			case 'I':
				if refPos >= region.Begin && refPos < region.End && op.Length <= cfg.MaxVariantSize {
					inserted := []byte(seq[int(readPos) : int(readPos)+int(op.Length)])
					if baseQuality(qual, readPos) >= cfg.MinBaseQuality {
						v := variant.Variant{
							Ref: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: refPos, End: refPos}, Seq: nil},
							Alt: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: refPos, End: refPos}, Seq: inserted},
						}
						accumulate(support, byKey, v)
					}
				}
				readPos += op.Length
			case 'D':
				if refPos >= region.Begin && refPos+op.Length <= region.End && op.Length <= cfg.MaxVariantSize && int(refPos+op.Length) <= len(ref) {
					deleted := append([]byte(nil), ref[refPos:refPos+op.Length]...)
					v := variant.Variant{
						Ref: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: refPos, End: refPos + op.Length}, Seq: deleted},
						Alt: variant.Allele{Region: variant.Region{Contig: region.Contig, Begin: refPos, End: refPos + op.Length}, Seq: nil},
					}
					accumulate(support, byKey, v)
				}
				refPos += op.Length
			case 'N':
				refPos += op.Length
			case 'S':
				readPos += op.Length
			case 'H', 'P':
				// consumes neither
			}
		}
	}

	var result []variant.Variant
	for key, count := range support {
		if count >= cfg.MinSupportingReads {
			result = append(result, byKey[key])
		}
	}
	return result
}

func accumulate(support map[variant.Key]int, byKey map[variant.Key]variant.Variant, v variant.Variant) {
	key := v.Key()
	support[key]++
	byKey[key] = v
}

// baseQuality returns the Phred-scaled base quality at read position
// pos, decoding SAM's QUAL string (ASCII - 33). Returns the maximum
// possible quality if qual is unavailable ("*"), matching SAM
// convention for absent quality strings.
func baseQuality(qual string, pos int32) byte {
	if qual == "*" || int(pos) >= len(qual) {
		return 255
	}
	return qual[pos] - 33
}
