// Package sam parses and represents SAM/BAM alignment files and their
// headers, and provides the low-level InputFile/OutputFile streaming
// API that cmd's read loader drives directly via Prepare/Fetch/Data/
// ParseAlignment.
//
// Modifications to headers and alignments are expressed as
// AlignmentFilter values, functions that receive an *Alignment and
// report whether to keep it; CleanSam is the one such filter this
// module still exercises, soft-clipping reads whose CIGAR runs past
// the end of their reference contig before they reach the candidate
// generator.
package sam
