// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authpb declares the auction service's abstract wire schema.
// Real services in luxfi-consensus generate these from .proto files via
// protoc (its networking/grpc/proto/pb), but absent a protoc toolchain
// here the same "plain struct named like the wire message" idiom
// networking/grpc/proto/pb/p2p/p2p.go uses is followed directly: these
// types describe the auction wire protocol's stable schema without
// depending on generated marshal code.
package authpb

// PacketFlags mirrors the optional boolean flag subset the remote may
// set on a packet.
type PacketFlags struct {
	SimpleVoteTx bool
	Forwarded    bool
	TracerTx     bool
	Repair       bool
}

// PacketMeta mirrors the remote packet's optional metadata.
type PacketMeta struct {
	Size  uint64
	Addr  string
	Port  uint32
	Flags *PacketFlags
}

// Packet mirrors the remote wire packet: raw data up to the fixed MTU,
// plus optional metadata.
type Packet struct {
	Data []byte
	Meta *PacketMeta
}

// PacketBatch is a batch of remote packets, as streamed from the local
// intercept channel to the remote for arbitration.
type PacketBatch struct {
	Packets []*Packet
}

// Bundle is an ordered list of remote packets that must be returned to
// the local bundle output as one unit.
type Bundle struct {
	Packets []*Packet
}

// InboundMessage is what the remote streams back: either a batch of
// verified packets or a bundle.
type InboundMessage struct {
	Batch  *PacketBatch
	Bundle *Bundle
}
