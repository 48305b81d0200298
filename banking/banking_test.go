// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package banking

import (
	"testing"
	"time"

	"github.com/luxfi/tpu/packet"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	transactions, tpuVotes, gossipVotes int
}

func (s *recordingSink) SubmitTransactions(batch packet.Batch) { s.transactions += batch.Len() }
func (s *recordingSink) SubmitTPUVotes(batch packet.Batch)     { s.tpuVotes += batch.Len() }
func (s *recordingSink) SubmitGossipVotes(batch packet.Batch)  { s.gossipVotes += batch.Len() }

func TestRouterFansOutToMatchingLane(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(sink)
	exit := make(chan struct{})
	txIn := make(chan packet.Batch, 1)
	voteIn := make(chan packet.Batch, 1)
	gossipIn := make(chan packet.Batch, 1)

	go r.RunTransactions(exit, txIn)
	go r.RunTPUVotes(exit, voteIn)
	go r.RunGossipVotes(exit, gossipIn)

	one := packet.NewBatch([]packet.Packet{packet.New([]byte("x"), packet.Meta{})})
	txIn <- one
	voteIn <- one
	gossipIn <- one

	require.Eventually(t, func() bool {
		return sink.transactions == 1 && sink.tpuVotes == 1 && sink.gossipVotes == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(exit)
}
