// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPadsAndTruncates(t *testing.T) {
	require := require.New(t)

	short := []byte{1, 2, 3}
	p := New(short, Meta{Addr: net.ParseIP("127.0.0.1")})
	require.Equal(3, p.Meta.Size)
	require.Equal(short, p.Payload())
	require.True(len(p.Data) == MaxSize)

	long := make([]byte, MaxSize+100)
	for i := range long {
		long[i] = byte(i)
	}
	p2 := New(long, Meta{})
	require.Equal(MaxSize, p2.Meta.Size)
	require.Equal(long[:MaxSize], p2.Payload())
}

func TestFlagsHas(t *testing.T) {
	f := FlagSimpleVoteTx | FlagForwarded
	require.True(t, f.Has(FlagSimpleVoteTx))
	require.True(t, f.Has(FlagForwarded))
	require.False(t, f.Has(FlagRepair))
	require.True(t, f.Has(FlagSimpleVoteTx|FlagForwarded))
}

func TestVerifiedExcludesDiscard(t *testing.T) {
	p := Packet{Meta: Meta{Flags: FlagDiscard}}
	require.False(t, p.Verified())

	p2 := Packet{Meta: Meta{Flags: FlagSimpleVoteTx}}
	require.True(t, p2.Verified())
}

func TestBatchFilterPreservesOrder(t *testing.T) {
	b := NewBatch([]Packet{
		{Meta: Meta{Port: 1, Flags: FlagSimpleVoteTx}},
		{Meta: Meta{Port: 2, Flags: 0}},
		{Meta: Meta{Port: 3, Flags: FlagSimpleVoteTx}},
	})
	votes := b.Filter(func(p Packet) bool { return p.Meta.Flags.Has(FlagSimpleVoteTx) })
	require.Equal(t, 2, votes.Len())
	require.Equal(t, uint16(1), votes.Packets[0].Meta.Port)
	require.Equal(t, uint16(3), votes.Packets[1].Meta.Port)
}
