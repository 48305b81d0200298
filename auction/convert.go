// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"net"

	"github.com/luxfi/tpu/auction/authpb"
	"github.com/luxfi/tpu/packet"
)

// unknownIP is the fallback address used when a remote-supplied address
// literal fails to parse, mirroring original_source/mev/src/lib.rs's
// UNKNOWN_IP constant.
var unknownIP = net.IPv4(0, 0, 0, 0)

// lowerPacket converts a remote wire Packet into the canonical Packet,
// zero-padding/truncating data to packet.MaxSize, parsing the address
// with a safe fallback, and mapping the boolean flag subset — the Go
// rendition of proto_packet_to_packet.
func lowerPacket(p *authpb.Packet) packet.Packet {
	var meta packet.Meta
	meta.Addr = unknownIP
	if p.Meta != nil {
		meta.Size = int(p.Meta.Size)
		meta.Port = uint16(p.Meta.Port)
		if addr := net.ParseIP(p.Meta.Addr); addr != nil {
			meta.Addr = addr
		}
		if f := p.Meta.Flags; f != nil {
			if f.SimpleVoteTx {
				meta.Flags |= packet.FlagSimpleVoteTx
			}
			if f.Forwarded {
				meta.Flags |= packet.FlagForwarded
			}
			if f.TracerTx {
				meta.Flags |= packet.FlagTracerTx
			}
			if f.Repair {
				meta.Flags |= packet.FlagRepair
			}
		}
	}
	return packet.New(p.Data, meta)
}

// raisePacket converts a canonical Packet back to the wire schema, used
// when forwarding local intercept input to the remote for arbitration.
func raisePacket(p packet.Packet) *authpb.Packet {
	return &authpb.Packet{
		Data: append([]byte(nil), p.Payload()...),
		Meta: &authpb.PacketMeta{
			Size: uint64(p.Meta.Size),
			Addr: p.Meta.Addr.String(),
			Port: uint32(p.Meta.Port),
			Flags: &authpb.PacketFlags{
				SimpleVoteTx: p.Meta.Flags.Has(packet.FlagSimpleVoteTx),
				Forwarded:    p.Meta.Flags.Has(packet.FlagForwarded),
				TracerTx:     p.Meta.Flags.Has(packet.FlagTracerTx),
				Repair:       p.Meta.Flags.Has(packet.FlagRepair),
			},
		},
	}
}

func lowerBatch(b *authpb.PacketBatch) packet.Batch {
	if b == nil {
		return packet.Batch{}
	}
	pkts := make([]packet.Packet, 0, len(b.Packets))
	for _, p := range b.Packets {
		pkts = append(pkts, lowerPacket(p))
	}
	return packet.NewBatch(pkts)
}

func raiseBatch(b packet.Batch) *authpb.PacketBatch {
	pkts := make([]*authpb.Packet, 0, b.Len())
	for _, p := range b.Packets {
		pkts = append(pkts, raisePacket(p))
	}
	return &authpb.PacketBatch{Packets: pkts}
}

func lowerBundle(b *authpb.Bundle) []packet.Packet {
	if b == nil {
		return nil
	}
	out := make([]packet.Packet, 0, len(b.Packets))
	for _, p := range b.Packets {
		out = append(out, lowerPacket(p))
	}
	return out
}
