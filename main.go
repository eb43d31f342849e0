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

// varcall calls germline, somatic, trio and population variants from
// aligned sequencing reads.
//
// Please see https://github.com/exascience/varcall for documentation.
package main

import (
	"fmt"
	"os"

	"github.com/exascience/varcall/callerr"
	"github.com/exascience/varcall/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if cerr, ok := err.(*callerr.Error); ok {
			os.Exit(cerr.Kind.ExitCode())
		}
		os.Exit(1)
	}
}
