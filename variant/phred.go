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

package variant

import "math"

// Phred is a non-negative Phred-scaled quality score q, where
// q = -10*log10(p_false). It is always stored as the score, never the
// probability, so that accumulation (e.g. summing QUAL contributions)
// never has to round-trip through a probability.
type Phred float64

// PhredFromProbability constructs a Phred score from an error
// probability p_false in (0, 1]. p_false == 0 yields +Inf.
func PhredFromProbability(pFalse float64) Phred {
	if pFalse <= 0 {
		return Phred(math.Inf(1))
	}
	return Phred(-10 * math.Log10(pFalse))
}

// PhredFromScore constructs a Phred directly from an already Phred-
// scaled score.
func PhredFromScore(score float64) Phred { return Phred(score) }

// Probability returns the error probability p_false this score encodes.
func (q Phred) Probability() float64 {
	return math.Pow(10, -float64(q)/10)
}

// Capped returns q clamped to [0, max].
func (q Phred) Capped(max Phred) Phred {
	if q < 0 {
		return 0
	}
	if q > max {
		return max
	}
	return q
}

// Round2 rounds q to two decimal places, as required of the VCF QUAL
// field.
func (q Phred) Round2() Phred {
	return Phred(math.Round(float64(q)*100) / 100)
}
