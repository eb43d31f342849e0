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

import "github.com/exascience/varcall/variant"

// Affine gap-alignment scoring, the same parameters the teacher's
// runSmithWaterman uses for dangling-tail/head recovery
// (filters/sw.go, filters/assemble-reads.go's recoverDanglingTail(s)
// call sites: match 25, mismatch -50, gap-open -110, gap-extend -6).
const (
	matchScore     = 25
	mismatchScore  = -50
	gapOpenScore   = -110
	gapExtendScore = -6
)

// alignOp is one edit-script operation from aligning an assembled path
// against the reference window, in the same vocabulary as sam.CigarOperation.
type alignOp struct {
	length    int32
	operation byte // 'M', 'I', 'D'
}

// align performs a full affine-gap global alignment of alt against ref,
// condensed from the teacher's banded local Smith-Waterman
// (filters/sw.go's runSmithWaterman) into a straightforward
// Needleman-Wunsch recursion: local re-assembly windows are always
// padded so end-to-end alignment is the right model, unlike the
// teacher's read-to-haplotype realignment which needs local clipping.
func align(ref, alt []byte) []alignOp {
	n, m := len(ref), len(alt)
	if n == 0 || m == 0 {
		return nil
	}
	type cell struct{ m, x, y int32 } // match/mismatch, gap-in-ref(insertion), gap-in-alt(deletion)
	const negInf = int32(-1 << 30)
	rows := make([][]cell, n+1)
	for i := range rows {
		rows[i] = make([]cell, m+1)
	}
	for i := 1; i <= n; i++ {
		rows[i][0] = cell{negInf, negInf, gapOpenScore + int32(i-1)*gapExtendScore}
	}
	for j := 1; j <= m; j++ {
		rows[0][j] = cell{negInf, gapOpenScore + int32(j-1)*gapExtendScore, negInf}
	}
	best := func(c cell) int32 {
		v := c.m
		if c.x > v {
			v = c.x
		}
		if c.y > v {
			v = c.y
		}
		return v
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			s := int32(mismatchScore)
			if ref[i-1] == alt[j-1] {
				s = matchScore
			}
			diag := best(rows[i-1][j-1]) + s
			x := max32(rows[i][j-1].x+gapExtendScore, best(rows[i][j-1])+gapOpenScore) // insertion in alt
			y := max32(rows[i-1][j].y+gapExtendScore, best(rows[i-1][j])+gapOpenScore) // deletion from ref
			rows[i][j] = cell{diag, x, y}
		}
	}
	// backtrack from (n, m)
	var ops []alignOp
	i, j := n, m
	state := 0 // 0=diag,1=insertion,2=deletion, chosen by whichever is best at (i,j)
	pick := func(i, j int) int {
		c := rows[i][j]
		if c.m >= c.x && c.m >= c.y {
			return 0
		}
		if c.x >= c.y {
			return 1
		}
		return 2
	}
	state = pick(i, j)
	push := func(op byte) {
		if len(ops) > 0 && ops[len(ops)-1].operation == op {
			ops[len(ops)-1].length++
		} else {
			ops = append(ops, alignOp{1, op})
		}
	}
	for i > 0 || j > 0 {
		switch {
		case state == 0 && i > 0 && j > 0:
			push('M')
			i--
			j--
			state = pick(i, j)
		case (state == 1 || i == 0) && j > 0:
			push('I')
			j--
			state = pick(i, j)
		case i > 0:
			push('D')
			i--
			state = pick(i, j)
		}
	}
	// reverse in place
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// diffAgainstReference converts the edit script between refWindow and
// an assembled path into candidate Variants located at their absolute
// contig coordinates (refOffset + local offset).
func diffAgainstReference(contig string, refOffset int32, refWindow, path []byte, cfg Config) []variant.Variant {
	ops := align(refWindow, path)
	var result []variant.Variant
	refPos, altPos := int32(0), int32(0)
	for _, op := range ops {
		switch op.operation {
		case 'M':
			for k := int32(0); k < op.length; k++ {
				if refWindow[refPos+k] != path[altPos+k] {
					pos := refOffset + refPos + k
					result = append(result, variant.Variant{
						Ref: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos + 1}, Seq: []byte{refWindow[refPos+k]}},
						Alt: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos + 1}, Seq: []byte{path[altPos+k]}},
					})
				}
			}
			refPos += op.length
			altPos += op.length
		case 'I':
			if op.length <= cfg.MaxVariantSize {
				pos := refOffset + refPos
				inserted := append([]byte(nil), path[altPos:altPos+op.length]...)
				result = append(result, variant.Variant{
					Ref: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos}, Seq: nil},
					Alt: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos}, Seq: inserted},
				})
			}
			altPos += op.length
		case 'D':
			if op.length <= cfg.MaxVariantSize {
				pos := refOffset + refPos
				deleted := append([]byte(nil), refWindow[refPos:refPos+op.length]...)
				result = append(result, variant.Variant{
					Ref: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos + op.length}, Seq: deleted},
					Alt: variant.Allele{Region: variant.Region{Contig: contig, Begin: pos, End: pos + op.length}, Seq: nil},
				})
			}
			refPos += op.length
		}
	}
	return result
}
