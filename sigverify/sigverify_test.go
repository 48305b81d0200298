// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sigverify

import (
	"errors"
	"testing"

	"github.com/luxfi/tpu/packet"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	passed []bool
	err    error
}

func (v *fakeVerifier) Verify(batch packet.Batch) ([]bool, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.passed, nil
}

type votePattern struct{ isVote bool }

func (p votePattern) IsVoteInstruction(payload []byte) bool { return p.isVote }

func TestVerifyBatchDropsFailedSignatures(t *testing.T) {
	batch := packet.NewBatch([]packet.Packet{
		packet.New([]byte("ok"), packet.Meta{}),
		packet.New([]byte("bad"), packet.Meta{}),
	})
	s := New(nil, &fakeVerifier{passed: []bool{true, false}}, nil)

	out := s.VerifyBatch(batch)

	require.Equal(t, 1, out.Len())
	require.Equal(t, "ok", string(out.Packets[0].Payload()))
}

func TestVerifyBatchVerifierErrorDropsWholeBatchWithoutFailing(t *testing.T) {
	batch := packet.NewBatch([]packet.Packet{packet.New([]byte("x"), packet.Meta{})})
	s := New(nil, &fakeVerifier{err: errors.New("verifier unreachable")}, nil)

	out := s.VerifyBatch(batch)

	require.Equal(t, 0, out.Len())
}

func TestVoteLaneRejectsNonVotePackets(t *testing.T) {
	vote := packet.New([]byte("vote"), packet.Meta{Flags: packet.FlagSimpleVoteTx})
	notVote := packet.New([]byte("transfer"), packet.Meta{})
	batch := packet.NewBatch([]packet.Packet{vote, notVote})

	s := NewRejectNonVote(nil, &fakeVerifier{passed: []bool{true, true}}, nil, nil)

	out := s.VerifyBatch(batch)

	require.Equal(t, 1, out.Len())
	require.True(t, out.Packets[0].Meta.Flags.Has(packet.FlagSimpleVoteTx))
}

func TestVoteLaneRejectsFlaggedVoteWithWrongInstruction(t *testing.T) {
	p := packet.New([]byte("not-actually-a-vote"), packet.Meta{Flags: packet.FlagSimpleVoteTx})
	batch := packet.NewBatch([]packet.Packet{p})

	s := NewRejectNonVote(nil, &fakeVerifier{passed: []bool{true}}, votePattern{isVote: false}, nil)

	out := s.VerifyBatch(batch)

	require.Equal(t, 0, out.Len())
}
