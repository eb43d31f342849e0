package sam

import (
	"log"
)

type (
	// An AlignmentFilter receives an Alignment which it can modify. It
	// returns true if the alignment should be kept, and false if the
	// alignment should be removed.
	AlignmentFilter func(*Alignment) bool

	// A Filter receives a Header and returns an AlignmentFilter or nil.
	Filter func(*Header) AlignmentFilter
)

func CleanSam(header *Header) AlignmentFilter {
	referenceSequenceTable := make(map[string]int32)
	for _, sn := range header.SQ {
		referenceSequenceTable[sn["SN"]], _ = SQ_LN(sn)
	}
	return func(aln *Alignment) bool {
		if aln.IsUnmapped() {
			aln.MAPQ = 0
		} else if cigar, err := ScanCigarString(aln.CIGAR); err != nil {
			log.Fatal(err.Error(), ", while scanning a CIGAR string for ", aln.QNAME, " in CleanSam")
		} else if length := referenceSequenceTable[aln.RNAME]; end(aln, cigar) > length {
			clipFrom := length - aln.POS + 1
			aln.CIGAR = softClipEndOfRead(clipFrom, cigar)
		}
		return true
	}
}
