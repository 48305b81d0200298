// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replay

import (
	"context"
	"testing"

	"github.com/luxfi/tpu/external"
	"github.com/stretchr/testify/require"
)

type oversizedDataBank struct {
	fakeBank
	delta     int64
	exceeded  bool
}

func (b *oversizedDataBank) AccountsDataSizeDelta() int64 { return b.delta }
func (b *oversizedDataBank) LoadExecuteAndCommit(ctx context.Context, tx external.SanitizedTransaction, recordStatus bool) (external.ExecutionOutcome, error) {
	return external.ExecutionOutcome{AccountsDataExceeded: b.exceeded}, nil
}

func TestAccountsDataBlockSizeCapRejectsOversizedDelta(t *testing.T) {
	// S5: a bank reporting more than the 100_000_000-byte per-block delta
	// must fail with ErrWouldExceedAccountDataBlockLimit when the feature
	// gate is on. The feature-off case is
	// TestAccountsDataBlockSizeCapIgnoredWhenFeatureInactive.
	pool, handle := New(1, nil, nil)
	defer pool.Join()

	bank := &oversizedDataBank{
		fakeBank: fakeBank{features: map[string]bool{"cap_accounts_data_size_per_block": true}},
		delta:    100_000_001,
	}
	idx := 0
	require.NoError(t, handle.Send(Request{Bank: bank, Tx: &fakeTx{}, Idx: &idx}))

	resps, err := handle.RecvAndDrain()
	require.NoError(t, err)
	require.Len(t, resps, 1)
	require.ErrorIs(t, resps[0].Result, ErrWouldExceedAccountDataBlockLimit)
}

func TestAccountsDataBlockSizeCapIgnoredWhenFeatureInactive(t *testing.T) {
	pool, handle := New(1, nil, nil)
	defer pool.Join()

	bank := &oversizedDataBank{
		fakeBank: fakeBank{features: map[string]bool{}},
		delta:    100_000_001,
	}
	idx := 0
	require.NoError(t, handle.Send(Request{Bank: bank, Tx: &fakeTx{}, Idx: &idx}))

	resps, err := handle.RecvAndDrain()
	require.NoError(t, err)
	require.Len(t, resps, 1)
	require.NoError(t, resps[0].Result)
}

func TestMaxAccountsDataSizeExceededFlagRejectsTransaction(t *testing.T) {
	pool, handle := New(1, nil, nil)
	defer pool.Join()

	bank := &oversizedDataBank{
		fakeBank: fakeBank{features: map[string]bool{"cap_accounts_data_len": true}},
		exceeded: true,
	}
	idx := 0
	require.NoError(t, handle.Send(Request{Bank: bank, Tx: &fakeTx{}, Idx: &idx}))

	resps, err := handle.RecvAndDrain()
	require.NoError(t, err)
	require.Len(t, resps, 1)
	require.ErrorIs(t, resps[0].Result, ErrMaxAccountsDataSizeExceeded)
}
