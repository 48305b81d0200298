// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"context"

	"github.com/luxfi/tpu/auction/authpb"
)

// Stream is a bidirectional session with the remote auction service:
// local intercept packets are Send, remote arbitration results arrive
// via Recv. Grounded on
// utils/networking/grpc/proto/pb/validatorstate's client/server interface
// pattern, generalized to a stream instead of unary calls since the
// auction service holds a long-lived bidirectional session.
type Stream interface {
	Send(*authpb.PacketBatch) error
	Recv() (*authpb.InboundMessage, error)
	CloseSend() error
}

// Client dials the remote auction service and opens a streaming
// session. Grounded on networking/grpc/grpcutils.DialContext.
type Client interface {
	OpenStream(ctx context.Context) (Stream, error)
}
