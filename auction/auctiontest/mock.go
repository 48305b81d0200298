// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auctiontest provides hand-written mocks for the auction
// client/stream interfaces, in the style of
// github.com/luxfi/consensus/validators/validatorsmock rather than a
// generated mockgen package, since luxfi-consensus itself ships both styles
// and hand mocks are what it uses for its smallest interfaces.
package auctiontest

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/tpu/auction"
	"github.com/luxfi/tpu/auction/authpb"
)

// ErrUnreachable is returned by UnreachableClient.OpenStream, modeling
// an auction service that never comes up.
var ErrUnreachable = errors.New("auctiontest: remote unreachable")

// UnreachableClient always fails to open a stream.
type UnreachableClient struct{}

// OpenStream always fails, driving the interceptor's fallback path.
func (UnreachableClient) OpenStream(ctx context.Context) (auction.Stream, error) {
	return nil, ErrUnreachable
}

// ReorderClient opens streams that, once fed a batch via Send, reply
// with the same packets in reverse order — used to drive scenario S4
// (engaged auction reorder).
type ReorderClient struct{}

// NewReorderClient returns a client whose streams reverse whatever they
// are Sent, after first reporting readiness with an empty batch.
func NewReorderClient() *ReorderClient {
	return &ReorderClient{}
}

// OpenStream returns a fresh ReorderStream.
func (c *ReorderClient) OpenStream(ctx context.Context) (auction.Stream, error) {
	s := &ReorderStream{recvCh: make(chan *authpb.InboundMessage, 16)}
	s.recvCh <- &authpb.InboundMessage{Batch: &authpb.PacketBatch{}}
	return s, nil
}

// ReorderStream is the Stream returned by ReorderClient.
type ReorderStream struct {
	mu     sync.Mutex
	recvCh chan *authpb.InboundMessage
	closed bool
}

// Send reverses batch and queues it for the next Recv.
func (s *ReorderStream) Send(batch *authpb.PacketBatch) error {
	reversed := make([]*authpb.Packet, len(batch.Packets))
	for i, p := range batch.Packets {
		reversed[len(batch.Packets)-1-i] = p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("auctiontest: stream closed")
	}
	s.recvCh <- &authpb.InboundMessage{Batch: &authpb.PacketBatch{Packets: reversed}}
	return nil
}

// Recv blocks until a message is queued.
func (s *ReorderStream) Recv() (*authpb.InboundMessage, error) {
	msg, ok := <-s.recvCh
	if !ok {
		return nil, errors.New("auctiontest: stream closed")
	}
	return msg, nil
}

// CloseSend marks the stream closed; further Sends fail.
func (s *ReorderStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
