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

// Package obslog threads an immutable structured logger through the
// orchestrator's context (design note: no module-level logging
// singleton) and reports best-effort progress counters.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/exascience/varcall/callerr"
)

// New builds a *zap.Logger writing to stderr and, if path is non-empty,
// tee'd to a timestamped log file under path (adapted from
// cmd/util.go's setLogOutput, minus the fd-level stderr redirection:
// zap's own multi-core sink replaces the unix.Dup2 tee).
func New(path string) (*zap.Logger, error) {
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stderr), zap.InfoLevel),
	}
	if path != "" {
		full := filepath.Join(path, logFilename())
		if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
			return nil, callerr.New(callerr.Resource, "obslog.New", err.Error(), "check --log-file directory permissions")
		}
		f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, callerr.New(callerr.Resource, "obslog.New", err.Error(), "check --log-file directory permissions")
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.AddSync(f), zap.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func logFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("varcall-%d-%02d-%02d-%02d-%02d-%02d-%v.log",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), zone)
}

// Timed runs f, logging msg before and elapsed time after if timed is
// set (adapted from cmd/util.go's timedRun, generalized from a bare
// log.Println to a structured zap field).
func Timed(logger *zap.Logger, timed bool, msg string, f func()) {
	if !timed {
		f()
		return
	}
	logger.Info(msg)
	start := time.Now()
	f()
	logger.Info(msg+" done", zap.Duration("elapsed", time.Since(start)))
}

// Progress is a best-effort counters sink, logged whenever Report is
// called; per section 4.6, progress-meter callbacks never affect
// correctness.
type Progress struct {
	logger *zap.Logger
	regions, haplotypes, calls int64
}

// NewProgress returns a Progress sink logging through logger.
func NewProgress(logger *zap.Logger) *Progress { return &Progress{logger: logger} }

// Region records that one more region finished.
func (p *Progress) Region() { p.regions++ }

// Haplotypes records n haplotypes having been enumerated in one step.
func (p *Progress) Haplotypes(n int) { p.haplotypes += int64(n) }

// Calls records n calls having been emitted.
func (p *Progress) Calls(n int) { p.calls += int64(n) }

// Report logs the current counters. The counters are not synchronized,
// so Report and the counting methods run on one goroutine.
func (p *Progress) Report() {
	p.logger.Info("progress",
		zap.Int64("regions", p.regions),
		zap.Int64("haplotypes", p.haplotypes),
		zap.Int64("calls", p.calls),
	)
}
