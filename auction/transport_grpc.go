// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luxfi/tpu/auction/authpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered once so the auction client can stream
// plain authpb structs without generated protobuf marshal code, the way
// luxfi-consensus's own networking/grpc/proto/pb/p2p.go ships hand-written
// stub message types rather than protoc output.
const jsonCodecName = "tpu-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return jsonCodecName }

const streamMethod = "/tpu.auction.AuctionService/StreamPackets"

// grpcClient dials the remote auction service, grounded directly on
// networking/grpc/grpcutils.DialContext.
type grpcClient struct {
	addr string
	conn *grpc.ClientConn
}

// NewGRPCClient dials addr eagerly and returns a Client. Dial itself
// does not block on a working connection (grpc.NewClient semantics);
// failures surface on the first OpenStream call, which is what drives
// the interceptor's backoff loop.
func NewGRPCClient(addr string) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("auction: dial %s: %w", addr, err)
	}
	return &grpcClient{addr: addr, conn: conn}, nil
}

func (c *grpcClient) OpenStream(ctx context.Context) (Stream, error) {
	desc := &grpc.StreamDesc{StreamName: "StreamPackets", ClientStreams: true, ServerStreams: true}
	cs, err := c.conn.NewStream(ctx, desc, streamMethod)
	if err != nil {
		return nil, fmt.Errorf("auction: open stream to %s: %w", c.addr, err)
	}
	return &grpcStream{cs: cs}, nil
}

type grpcStream struct {
	cs grpc.ClientStream
}

func (s *grpcStream) Send(batch *authpb.PacketBatch) error {
	return s.cs.SendMsg(batch)
}

func (s *grpcStream) Recv() (*authpb.InboundMessage, error) {
	msg := new(authpb.InboundMessage)
	if err := s.cs.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *grpcStream) CloseSend() error {
	return s.cs.CloseSend()
}
