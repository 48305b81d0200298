// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package replay

import "sync"

// CostCapacityMeter is the per-block accumulator of executed compute
// units, shared by every replay worker for one block and reset at block
// boundaries by its owner. Zero is the saturation floor, not a sentinel
// checked for underflow: Accumulate never returns less than zero.
type CostCapacityMeter struct {
	mu        sync.Mutex
	limit     uint64
	consumed  uint64
}

// NewCostCapacityMeter returns a meter with the given block cost cap.
func NewCostCapacityMeter(limit uint64) *CostCapacityMeter {
	return &CostCapacityMeter{limit: limit}
}

// Accumulate adds units to the running total and returns the remaining
// capacity, saturating at zero. The returned sequence of values for any
// sequence of calls is non-increasing.
func (m *CostCapacityMeter) Accumulate(units uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed += units
	if m.consumed >= m.limit {
		m.consumed = m.limit
		return 0
	}
	return m.limit - m.consumed
}

// Reset zeroes the meter for a new block. Called by the meter's owner,
// never by a replay worker.
func (m *CostCapacityMeter) Reset(limit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.consumed = 0
}

// Remaining reports the current remaining capacity without mutating it.
func (m *CostCapacityMeter) Remaining() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumed >= m.limit {
		return 0
	}
	return m.limit - m.consumed
}
