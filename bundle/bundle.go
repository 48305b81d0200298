// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bundle implements C7: the bundle stage and its TipManager
// custodian, grounded on github.com/luxfi/consensus/networking/benchlist's
// mutex-guarded shared-state shape, generalized from a benchlist of
// nodes to a lock serializing tip-account access between the bundle and
// banking stages.
package bundle

import (
	"errors"
	"sync"

	"github.com/luxfi/tpu/external"
	"github.com/luxfi/ids"
)

// ErrEmptyBundle is returned when a bundle carries no transactions.
var ErrEmptyBundle = errors.New("bundle: empty transaction list")

// ErrMissingTipInstruction is returned when a bundle lacks the tip
// transfer its custodian expects.
var ErrMissingTipInstruction = errors.New("bundle: missing tip instruction")

// Bundle is a non-empty ordered sequence of transactions that must
// execute atomically, in order, within one block; if any fails, the
// whole bundle is reverted.
type Bundle struct {
	Transactions []external.SanitizedTransaction
	// TipTx is the required tip-account transfer. Validate checks only
	// that it is present; it is not compared with the custodian's
	// tip-program id.
	TipTx external.SanitizedTransaction
}

// Validate enforces invariant (c) as far as the transaction interface
// allows: a non-empty transaction list and a present tip transaction.
// The tip transaction's target program is not checked.
func (b Bundle) Validate() error {
	if len(b.Transactions) == 0 {
		return ErrEmptyBundle
	}
	if b.TipTx == nil {
		return ErrMissingTipInstruction
	}
	return nil
}

// TipManager is the custodian that tracks the expected tip-program
// public key and holds the lock that serializes tip-account access among
// the callers that take it; banking.Router does not take it, so C6's
// intake is not serialized against bundles. Any batch committed while
// holding the lock precedes, in the
// PoH entry stream, any batch the banking stage commits that was pulled
// after the lock was acquired — callers enforce that ordering by calling
// Lock before pulling from their own input and Unlock only after the
// resulting entries are hand off downstream.
type TipManager struct {
	mu            sync.Mutex
	tipProgramID  ids.ID
}

// NewTipManager builds a TipManager expecting tips addressed to
// tipProgramID.
func NewTipManager(tipProgramID ids.ID) *TipManager {
	return &TipManager{tipProgramID: tipProgramID}
}

// TipProgramID reports the expected tip-program public key.
func (t *TipManager) TipProgramID() ids.ID {
	return t.tipProgramID
}

// Lock acquires the tip-account custodian lock, blocking every other
// caller of Lock until Unlock.
func (t *TipManager) Lock() { t.mu.Lock() }

// Unlock releases the custodian lock.
func (t *TipManager) Unlock() { t.mu.Unlock() }

// ExecuteCallback executes one validated bundle against bank. Stage
// calls it while holding the custodian lock, so two bundles' callbacks
// never run at the same time.
type ExecuteCallback func(bank external.BankHandle, b Bundle) error

// Stage consumes bundles and executes each atomically under the tip
// custodian lock, producing ledger entries via the external banking
// collaborator's execution path (passed in as execute).
type Stage struct {
	tip     *TipManager
	execute ExecuteCallback
}

// New builds a bundle stage.
func New(tip *TipManager, execute ExecuteCallback) *Stage {
	return &Stage{tip: tip, execute: execute}
}

// Run consumes bundles from in against bank until in closes or exit
// fires, validating each and reporting per-bundle results on results
// (if non-nil).
func (s *Stage) Run(exit <-chan struct{}, bank external.BankHandle, in <-chan Bundle, results chan<- error) {
	for {
		select {
		case <-exit:
			return
		case b, ok := <-in:
			if !ok {
				return
			}
			err := s.process(bank, b)
			if results != nil {
				select {
				case results <- err:
				case <-exit:
					return
				}
			}
		}
	}
}

func (s *Stage) process(bank external.BankHandle, b Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.tip.Lock()
	defer s.tip.Unlock()
	return s.execute(bank, b)
}
