// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bundle

import (
	"errors"
	"testing"

	"github.com/luxfi/tpu/external"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{ vote bool }

func (f fakeTx) IsVote() bool        { return f.vote }
func (f fakeTx) Signature() [64]byte { return [64]byte{} }

func TestValidateRejectsEmptyBundle(t *testing.T) {
	b := Bundle{TipTx: fakeTx{}}
	require.ErrorIs(t, b.Validate(), ErrEmptyBundle)
}

func TestValidateRejectsMissingTip(t *testing.T) {
	b := Bundle{Transactions: []external.SanitizedTransaction{fakeTx{}}}
	require.ErrorIs(t, b.Validate(), ErrMissingTipInstruction)
}

func TestStageSerializesUnderTipLock(t *testing.T) {
	tip := NewTipManager(ids.GenerateTestID())
	var observedLocked bool
	execute := func(bank external.BankHandle, b Bundle) error {
		// The lock is held for the duration of execute, so a TryLock
		// from here must fail.
		if tip.mu.TryLock() {
			tip.mu.Unlock()
			return nil
		}
		observedLocked = true
		return nil
	}
	s := New(tip, execute)

	locked := make(chan struct{})
	go func() {
		tip.Lock()
		close(locked)
	}()
	<-locked
	tip.Unlock()

	err := s.process(nil, Bundle{
		Transactions: []external.SanitizedTransaction{fakeTx{}},
		TipTx:        fakeTx{},
	})
	require.NoError(t, err)
	require.True(t, observedLocked)
}

func TestStageProcessPropagatesExecuteError(t *testing.T) {
	tip := NewTipManager(ids.GenerateTestID())
	wantErr := errors.New("execution failed")
	s := New(tip, func(bank external.BankHandle, b Bundle) error { return wantErr })

	err := s.process(nil, Bundle{
		Transactions: []external.SanitizedTransaction{fakeTx{}},
		TipTx:        fakeTx{},
	})
	require.ErrorIs(t, err, wantErr)
}
