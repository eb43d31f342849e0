// elPrep: a high-performance tool for preparing SAM/BAM files.
// Copyright (c) 2017, 2018 imec vzw.

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

package sam

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"

	"github.com/exascience/varcall/internal"
)

// samReader is an alignmentReader for a SAM text InputFile.
type samReader struct {
	rc   io.Closer
	buf  *bufio.Reader
	data interface{}
}

// Close implements the method of the alignmentReader interface.
func (r *samReader) Close() {
	if r.rc != os.Stdin {
		internal.Close(r.rc)
	}
}

// ParseHeader implements the method of the alignmentReader interface.
func (r *samReader) ParseHeader() *Header {
	return ParseSamHeader(r.buf)
}

// SkipHeader implements the method of the alignmentReader interface.
func (r *samReader) SkipHeader() {
	if _, err := SkipHeader(r.buf); err != nil {
		log.Panic(err)
	}
}

// Err implements the method of the pipeline.Source interface.
func (r *samReader) Err() error {
	return nil
}

// Prepare implements the method of the pipeline.Source interface.
func (*samReader) Prepare(_ context.Context) int {
	return -1
}

// Fetch implements the method of the pipeline.Source interface. Each
// fetched record is one alignment line, stripped of its trailing
// newline.
func (r *samReader) Fetch(size int) (fetched int) {
	var records [][]byte
	for fetched = 0; fetched < size; fetched++ {
		line, err := r.buf.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			break
		}
		if n := len(line); n > 0 && line[n-1] == '\n' {
			line = line[:n-1]
		}
		records = append(records, line)
		if err != nil {
			fetched++
			break
		}
	}
	r.data = records
	return fetched
}

// Data implements the method of the pipeline.Source interface.
func (r *samReader) Data() interface{} {
	return r.data
}

// ParseAlignment implements the method of the alignmentReader interface.
func (r *samReader) ParseAlignment(record []byte) *Alignment {
	var sc StringScanner
	sc.Reset(string(record))
	aln := sc.ParseAlignment()
	if err := sc.Err(); err != nil {
		log.Panic(err)
	}
	return aln
}

// samWriter is an alignmentWriter for a SAM text OutputFile.
type samWriter struct {
	wc  io.Closer
	buf *bufio.Writer
}

// Close implements the method of the alignmentWriter interface.
func (w *samWriter) Close() {
	if err := w.buf.Flush(); err != nil {
		log.Panic(err)
	}
	if w.wc != os.Stdout {
		internal.Close(w.wc)
	}
}

// FormatHeader implements the method of the alignmentWriter interface.
func (w *samWriter) FormatHeader(hdr *Header) {
	hdr.Format(w.buf)
}

// FormatAlignment implements the method of the alignmentWriter interface.
func (w *samWriter) FormatAlignment(aln *Alignment, out []byte) []byte {
	out, err := aln.Format(out)
	if err != nil {
		log.Panic(err)
	}
	return out
}

// Write implements the method of the alignmentWriter interface.
func (w *samWriter) Write(p []byte) int {
	return internal.Write(w.buf, p)
}
