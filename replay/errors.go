// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replay

import "errors"

// Transaction-execution error taxonomy (see the TPU's error
// table). These are returned in ReplayResponse.Result, never as Go
// errors from the pool's own methods — a failing transaction is not a
// failure of the worker.
var (
	// ErrWouldExceedMaxBlockCostLimit is returned once the shared
	// CostCapacityMeter has saturated for the current block.
	ErrWouldExceedMaxBlockCostLimit = errors.New("would exceed max block cost limit")
	// ErrWouldExceedAccountDataBlockLimit is returned when the bank
	// reports an on-chain accounts-data-size delta beyond the
	// per-block cap.
	ErrWouldExceedAccountDataBlockLimit = errors.New("would exceed account data block limit")
	// ErrMaxAccountsDataSizeExceeded mirrors the bank's own
	// per-execution InstructionError variant, promoted unchanged.
	ErrMaxAccountsDataSizeExceeded = errors.New("max accounts data size exceeded")
)

// ErrChannelClosed is returned by Handle.Send and Handle.RecvAndDrain
// when the underlying channel has no more producers/consumers.
var ErrChannelClosed = errors.New("replay: channel closed")
