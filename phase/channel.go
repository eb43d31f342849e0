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

// Package phase implements C7, the phaser: try_phase/force_phase over a
// stream of per-region genotype posteriors. The cross-region state
// threading (a phase block started in one assembly region may only be
// closed once a later region confirms no conflicting phase break) is
// grounded on filters/side-channel.go's sideChannel/deletionsHandler,
// generalized from deletion bookkeeping (forwarding
// []deletion between adjacent assembly regions) to forwarding
// *variant.PhaseBlock between adjacent calling regions.
package phase

import (
	"log"
	"sync"

	"github.com/exascience/varcall/variant"
)

// Channel threads phase-set state from one region's phaser to the
// next's, exactly as sideChannel threads deletion state: input receives
// from the left neighbour, output hands to the right neighbour.
type Channel struct {
	input, output chan interface{}
}

// MakeInitial opens a channel for the left-most region on a contig.
func (ch *Channel) MakeInitial() {
	ch.input = make(chan interface{})
	ch.output = make(chan interface{}, 1)
	close(ch.input)
}

// LinkFrom chains this channel's input to the previous region's output.
func (ch *Channel) LinkFrom(previous Channel) {
	ch.input = previous.output
	ch.output = make(chan interface{}, 1)
}

// receivePhase mirrors sideChannel.receiveDeletions: it follows forwarded
// channels until a concrete phase block (or nil, end of chain) arrives.
func (ch *Channel) receivePhase() *variant.PhaseBlock {
	for {
		item := <-ch.input
		if item == nil {
			return nil
		}
		switch it := item.(type) {
		case *variant.PhaseBlock:
			return it
		case chan interface{}:
			ch.input = it
		default:
			log.Panicf("phase: invalid value %v received from side channel", item)
		}
	}
}

// SendPhase hands a (possibly nil) phase block to the next region.
func (ch *Channel) SendPhase(block *variant.PhaseBlock) {
	ch.output <- block
	close(ch.output)
}

// Forward passes the left neighbour's phase block through unexamined,
// for regions that neither start nor close a block themselves.
func (ch *Channel) Forward() {
	ch.output <- ch.input
	close(ch.output)
}

// Handler resolves the incoming phase block asynchronously so that a
// region's own work can overlap with waiting on its left neighbour,
// mirroring deletionsHandler.
type Handler struct {
	wg    sync.WaitGroup
	ch    *Channel
	block *variant.PhaseBlock
}

// Handle starts waiting on ch's input in the background.
func (ch *Channel) Handle() *Handler {
	h := &Handler{ch: ch}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.block = ch.receivePhase()
	}()
	return h
}

// Block blocks until the incoming phase block is available.
func (h *Handler) Block() *variant.PhaseBlock {
	h.wg.Wait()
	return h.block
}

// Close sends this region's resulting phase block (nil if none) onward.
func (h *Handler) Close(result *variant.PhaseBlock) {
	h.wg.Wait()
	h.ch.SendPhase(result)
	h.ch = nil
}
