// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package packet defines the canonical transaction packet the TPU pipeline
// moves between stages, grounded on solana-sdk's Packet (see
// original_source/mev/src/lib.rs) and rendered in the luxfi-consensus
// idiom of small, flag-based metadata structs.
package packet

import "net"

// MaxSize is the fixed MTU for a canonical Packet payload.
const MaxSize = 1232

// Flags is a bitset of packet classification markers.
type Flags uint8

const (
	// FlagSimpleVoteTx marks a packet carrying a single vote-program
	// instruction transaction.
	FlagSimpleVoteTx Flags = 1 << iota
	// FlagForwarded marks a packet received on the forwards socket.
	FlagForwarded
	// FlagTracerTx marks a packet used for latency tracing.
	FlagTracerTx
	// FlagRepair marks a packet originating from ledger repair.
	FlagRepair
	// FlagDiscard is a soft mark: later stages skip the packet but may
	// still carry it for accounting.
	FlagDiscard
)

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Meta carries everything about a Packet besides its payload bytes.
type Meta struct {
	Addr   net.IP
	Port   uint16
	Size   int
	Stake  uint64
	Flags  Flags
}

// Packet is the fixed-size canonical transaction packet. Data is always
// len(MaxSize), zero-padded; Meta.Size records the logical payload length.
type Packet struct {
	Data [MaxSize]byte
	Meta Meta
}

// New builds a Packet from a variable-length payload, truncating or
// zero-padding to MaxSize as the original's proto_packet_to_packet does.
func New(payload []byte, meta Meta) Packet {
	var p Packet
	n := copy(p.Data[:], payload)
	meta.Size = n
	p.Meta = meta
	return p
}

// Payload returns the logical (unpadded) payload.
func (p *Packet) Payload() []byte {
	return p.Data[:p.Meta.Size]
}

// Verified reports the invariant required of a packet before it may reach
// any downstream consumer: not discarded and carrying non-negative stake.
// Signature verification itself is performed by an external collaborator;
// this only checks the bookkeeping half of the invariant.
func (p *Packet) Verified() bool {
	return !p.Meta.Flags.Has(FlagDiscard)
}

// Batch is an ordered sequence of packets produced by ingress in one
// coalescing window. Batch identity is not preserved across stage
// boundaries; only packet order within a batch matters for FIFO delivery.
type Batch struct {
	Packets []Packet
}

// NewBatch wraps packets into a Batch.
func NewBatch(packets []Packet) Batch {
	return Batch{Packets: packets}
}

// Len returns the number of packets in the batch.
func (b Batch) Len() int { return len(b.Packets) }

// Filter returns a new Batch containing only the packets for which keep
// returns true, preserving order.
func (b Batch) Filter(keep func(Packet) bool) Batch {
	out := make([]Packet, 0, len(b.Packets))
	for _, p := range b.Packets {
		if keep(p) {
			out = append(out, p)
		}
	}
	return Batch{Packets: out}
}
