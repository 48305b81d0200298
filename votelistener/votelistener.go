// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package votelistener implements C5: gossip-sourced vote ingestion,
// deduplication, and forwarding to the banking sink's gossip-vote input.
// Grounded on github.com/luxfi/consensus/networking/router's dedup-by-key
// forwarding shape and on uptime's use of a bounded map keyed by a
// composite identity.
package votelistener

import (
	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// voteKey is the dedup identity (vote_pubkey, slot, hash).
type voteKey struct {
	pubkey ids.NodeID
	slot   uint64
	hash   ids.ID
}

// GossipVote is one vote observed on the gossip layer.
type GossipVote struct {
	Pubkey ids.NodeID
	Slot   uint64
	Hash   ids.ID
	Tx     external.SanitizedTransaction
}

// SlotSink receives confirmed-slot notifications.
type SlotSink interface {
	ConfirmedSlot(slot uint64)
}

// HashSink receives verified-vote-hash notifications.
type HashSink interface {
	VerifiedVoteHash(pubkey ids.NodeID, slot uint64, hash ids.ID)
}

// Listener deduplicates gossip votes and forwards new ones downstream,
// while separately publishing confirmed-slot and verified-vote-hash
// events to external sinks. The dedup set is unbounded for the lifetime
// of the process — a validator's vote set for any one epoch is small
// relative to process memory.
type Listener struct {
	log       log.Logger
	seen      map[voteKey]struct{}
	slots     SlotSink
	hashes    HashSink
	out       chan<- packet.Batch
}

// New builds a vote listener. slots and hashes may be nil.
func New(logger log.Logger, slots SlotSink, hashes HashSink, out chan<- packet.Batch) *Listener {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Listener{
		log:    logger,
		seen:   make(map[voteKey]struct{}),
		slots:  slots,
		hashes: hashes,
		out:    out,
	}
}

// Run consumes votes from in until it is closed or exit fires, forwarding
// each not-previously-seen vote downstream and publishing its side-effect
// notifications.
func (l *Listener) Run(exit <-chan struct{}, in <-chan GossipVote) {
	for {
		select {
		case <-exit:
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			l.handle(exit, v)
		}
	}
}

func (l *Listener) handle(exit <-chan struct{}, v GossipVote) {
	key := voteKey{pubkey: v.Pubkey, slot: v.Slot, hash: v.Hash}
	if _, dup := l.seen[key]; dup {
		l.log.Debug("vote listener: duplicate vote dropped", "pubkey", v.Pubkey, "slot", v.Slot)
		return
	}
	l.seen[key] = struct{}{}

	if l.hashes != nil {
		l.hashes.VerifiedVoteHash(v.Pubkey, v.Slot, v.Hash)
	}
	if l.slots != nil {
		l.slots.ConfirmedSlot(v.Slot)
	}

	if l.out == nil {
		return
	}
	p := packet.New(v.Tx.Signature()[:], packet.Meta{Flags: packet.FlagSimpleVoteTx})
	select {
	case l.out <- packet.NewBatch([]packet.Packet{p}):
	case <-exit:
	}
}
