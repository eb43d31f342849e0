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

package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/varcall/callerr"
)

func resolveArgs(t *testing.T, args []string) (Call, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	return Resolve(v)
}

func TestResolveRequiresReferenceAndOutput(t *testing.T) {
	_, err := resolveArgs(t, nil)
	require.Error(t, err)
	var cerr *callerr.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, callerr.Usage, cerr.Kind)
}

func TestResolveDefaultsAndBasicFlags(t *testing.T) {
	c, err := resolveArgs(t, []string{"--reference", "ref.fa", "--output", "out.vcf"})
	require.NoError(t, err)
	assert.Equal(t, "ref.fa", c.Reference)
	assert.Equal(t, "out.vcf", c.Output)
	assert.Equal(t, "individual", c.Caller)
	assert.Equal(t, 2, c.OrganismPloidy)
	assert.Equal(t, 128, c.MaxHaplotypes)
}

func TestResolveRejectsConflictingRefcallModes(t *testing.T) {
	_, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf",
		"--make-positional-refcalls", "--make-blocked-refcalls",
	})
	require.Error(t, err)
	var cerr *callerr.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, callerr.Usage, cerr.Kind)
}

func TestResolveRejectsUnknownCaller(t *testing.T) {
	_, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf", "--caller", "nonsense",
	})
	require.Error(t, err)
}

func TestResolveTrioRequiresBothParents(t *testing.T) {
	_, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf", "--caller", "trio",
		"--maternal-sample", "mother",
	})
	require.Error(t, err)

	c, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf", "--caller", "trio",
		"--maternal-sample", "mother", "--paternal-sample", "father",
	})
	require.NoError(t, err)
	assert.Equal(t, "mother", c.MaternalSample)
	assert.Equal(t, "father", c.PaternalSample)
}

func TestResolveCancerRequiresSamples(t *testing.T) {
	_, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf", "--caller", "cancer",
	})
	require.Error(t, err)

	c, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf", "--caller", "cancer",
		"--samples", "tumour",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tumour"}, c.Samples)
}

func TestContigPloidyFallsBackToOrganismPloidy(t *testing.T) {
	c, err := resolveArgs(t, []string{
		"--reference", "ref.fa", "--output", "out.vcf",
		"--organism-ploidy", "2", "--contig-ploidies", "chrX=1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, c.ContigPloidy("chrX"))
	assert.Equal(t, 2, c.ContigPloidy("chr1"))
}

func TestRefCallType(t *testing.T) {
	positional := Call{MakePositionalRefcalls: true}
	assert.Equal(t, 1, int(positional.RefCallType()))

	blocked := Call{MakeBlockedRefcalls: true}
	assert.NotEqual(t, positional.RefCallType(), blocked.RefCallType())

	none := Call{}
	assert.Equal(t, 0, int(none.RefCallType()))
}
