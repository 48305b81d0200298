// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replay

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/tpu/external"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	isVote bool
}

func (f *fakeTx) IsVote() bool        { return f.isVote }
func (f *fakeTx) Signature() [64]byte { return [64]byte{} }

type fakeBank struct {
	units    uint64
	features map[string]bool
}

func (b *fakeBank) Slot() uint64 { return 1 }
func (b *fakeBank) FeatureActive(feature string) bool {
	return b.features[feature]
}
func (b *fakeBank) LoadExecuteAndCommit(ctx context.Context, tx external.SanitizedTransaction, recordStatus bool) (external.ExecutionOutcome, error) {
	return external.ExecutionOutcome{ComputeUnitsConsumed: b.units}, nil
}
func (b *fakeBank) AccountsDataSizeDelta() int64 { return 0 }

func TestCostCapSequence(t *testing.T) {
	// S2: cap 100, units 60/30/20 -> Ok, Ok, WouldExceedMaxBlockCostLimit;
	// remaining 40, 10, 0.
	meter := NewCostCapacityMeter(100)
	pool, handle := New(1, nil, nil)
	defer pool.Join()

	units := []uint64{60, 30, 20}
	wantErr := []error{nil, nil, ErrWouldExceedMaxBlockCostLimit}
	wantRemaining := []uint64{40, 10, 0}

	for i, u := range units {
		bank := &fakeBank{units: u, features: map[string]bool{"gate_large_block": true}}
		idx := i
		require.NoError(t, handle.Send(Request{
			Bank:      bank,
			Tx:        &fakeTx{},
			CostMeter: meter,
			Idx:       &idx,
		}))
		resps, err := handle.RecvAndDrain()
		require.NoError(t, err)
		require.Len(t, resps, 1)
		require.Equal(t, wantErr[i], resps[0].Result)
		require.Equal(t, wantRemaining[i], meter.Remaining())
	}
}

func TestRecvAndDrainCoalesces(t *testing.T) {
	// S7: 8 requests into a 4-worker pool; one RecvAndDrain call must
	// never split a single response and must eventually account for all.
	pool, handle := New(4, nil, nil)
	defer pool.Join()

	const n = 8
	for i := 0; i < n; i++ {
		idx := i
		require.NoError(t, handle.Send(Request{
			Bank: &fakeBank{features: map[string]bool{}},
			Tx:   &fakeTx{},
			Idx:  &idx,
		}))
	}

	seen := make(map[int]bool)
	calls := 0
	for len(seen) < n && calls < n {
		resps, err := handle.RecvAndDrain()
		require.NoError(t, err)
		require.NotEmpty(t, resps)
		for _, r := range resps {
			require.NotNil(t, r.Idx)
			seen[*r.Idx] = true
		}
		calls++
	}
	require.Len(t, seen, n)
	require.LessOrEqual(t, calls, n)
}

func TestVoteSideChannel(t *testing.T) {
	pool, handle := New(1, nil, nil)
	defer pool.Join()

	sink := &collectingVoteSink{}
	idx := 0
	require.NoError(t, handle.Send(Request{
		Bank:     &fakeBank{features: map[string]bool{}},
		Tx:       &fakeTx{isVote: true},
		VoteSink: sink,
		Idx:      &idx,
	}))
	_, err := handle.RecvAndDrain()
	require.NoError(t, err)
	require.Len(t, sink.votes, 1)
}

func TestSendAfterJoinReturnsChannelClosed(t *testing.T) {
	pool, handle := New(1, nil, nil)
	pool.Join()

	err := handle.Send(Request{Bank: &fakeBank{features: map[string]bool{}}, Tx: &fakeTx{}})
	require.ErrorIs(t, err, ErrChannelClosed)
}

func TestSendDoesNotBlockOnFullQueue(t *testing.T) {
	// The request side is an unbounded queue, so enqueuing far more
	// requests than any worker has had a chance to drain must still
	// return immediately rather than blocking on a fixed-size buffer.
	pool, handle := New(0, nil, nil)
	defer pool.Join()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			require.NoError(t, handle.Send(Request{Bank: &fakeBank{features: map[string]bool{}}, Tx: &fakeTx{}}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with zero workers draining the queue")
	}
}

type collectingVoteSink struct {
	votes []external.SanitizedTransaction
}

func (s *collectingVoteSink) SendVote(tx external.SanitizedTransaction) {
	s.votes = append(s.votes, tx)
}

func TestJoinWithTimeoutSucceedsPromptly(t *testing.T) {
	pool, _ := New(2, nil, nil)
	require.True(t, pool.JoinWithTimeout(2*time.Second))
}
