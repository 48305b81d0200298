// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package banking declares C6's input contract: the banking stage is
// specified only at the boundary the rest of the TPU depends on — three
// intake channels it may drain under its own load-shedding policy. The
// stage's actual execution and entry-production logic is out of scope
// (see external.BankHandle, external.BankingSink) and owned by the
// bank/runtime collaborator.
package banking

import (
	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/packet"
)

// Sink is the banking stage's intake contract, reusing
// external.BankingSink so callers can wire either a real banking stage
// or a test double through the same seam.
type Sink = external.BankingSink

// Router fans C1/C2/C3 output out to the three lanes a Sink expects:
// normal transactions, TPU-originated votes, and gossip-originated
// votes. It is a thin demultiplexer, not a scheduling policy — Sink
// itself decides what to keep or drop.
type Router struct {
	sink Sink
}

// NewRouter builds a Router over sink.
func NewRouter(sink Sink) *Router {
	return &Router{sink: sink}
}

// RunTransactions drains the normal-lane channel into the sink until it
// closes or exit fires.
func (r *Router) RunTransactions(exit <-chan struct{}, in <-chan packet.Batch) {
	r.drain(exit, in, r.sink.SubmitTransactions)
}

// RunTPUVotes drains the TPU vote-lane channel into the sink.
func (r *Router) RunTPUVotes(exit <-chan struct{}, in <-chan packet.Batch) {
	r.drain(exit, in, r.sink.SubmitTPUVotes)
}

// RunGossipVotes drains the gossip vote-lane channel into the sink.
func (r *Router) RunGossipVotes(exit <-chan struct{}, in <-chan packet.Batch) {
	r.drain(exit, in, r.sink.SubmitGossipVotes)
}

func (r *Router) drain(exit <-chan struct{}, in <-chan packet.Batch, submit func(packet.Batch)) {
	for {
		select {
		case <-exit:
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			submit(batch)
		}
	}
}
