// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stake implements the node-identity to stake map (C2's shared
// dependency), its Refresher, and the annotator stage itself.
// The locking shape (many readers, one exclusive refresher) is
// grounded on github.com/luxfi/consensus's
// networking/benchlist.manager; the refresh source is grounded on
// github.com/luxfi/consensus/validators.State.GetValidatorSet.
package stake

import (
	"sync"

	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/validators"
)

// Map is a node-identity to stake table. Readers take a shared lock;
// Refresh takes an exclusive one. Readers see whatever snapshot the last
// Refresh published; nothing in this package calls Refresh on a schedule.
type Map struct {
	mu   sync.RWMutex
	data map[ids.NodeID]uint64
}

// NewMap returns an empty stake map.
func NewMap() *Map {
	return &Map{data: make(map[ids.NodeID]uint64)}
}

// StakeOf returns the stake of nodeID, or 0 if unknown.
func (m *Map) StakeOf(nodeID ids.NodeID) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[nodeID]
}

// Refresh replaces the map contents wholesale under an exclusive lock.
func (m *Map) Refresh(snapshot map[ids.NodeID]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = snapshot
}

var _ external.StakeSource = (*Map)(nil)

// Refresher reads the validator set from the bank's validator state and
// republishes it into a Map, once per RefreshOnce call.
type Refresher struct {
	log     log.Logger
	state   validators.State
	subnet  ids.ID
	target  *Map
}

// NewRefresher builds a Refresher that keeps target in sync with state.
func NewRefresher(logger log.Logger, state validators.State, subnet ids.ID, target *Map) *Refresher {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Refresher{log: logger, state: state, subnet: subnet, target: target}
}

// RefreshOnce performs one refresh cycle, reading the current validator
// set height and set, and publishing it. It runs no timer loop of its
// own, so cadence and shutdown stay with the caller. tpu.Supervisor
// accepts a Refresher in Deps.StakeRefresh but never calls it, and its
// annotators read a Map of their own rather than the Refresher's target.
func (r *Refresher) RefreshOnce() error {
	height, err := r.state.GetCurrentHeight()
	if err != nil {
		r.log.Warn("stake refresh: failed to read height", "err", err)
		return err
	}
	set, err := r.state.GetValidatorSet(height, r.subnet)
	if err != nil {
		r.log.Warn("stake refresh: failed to read validator set", "height", height, "err", err)
		return err
	}
	r.target.Refresh(set)
	return nil
}

// Annotator is the C2 stage: it reads a batch, looks up sender stake via
// ClusterInfo + Map, writes per-packet stake, and re-emits in FIFO
// order. It performs no writes to the stake map.
type Annotator struct {
	log     log.Logger
	cluster external.ClusterInfo
	stakes  external.StakeSource
}

// NewAnnotator builds a stake annotation stage.
func NewAnnotator(logger log.Logger, cluster external.ClusterInfo, stakes external.StakeSource) *Annotator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Annotator{log: logger, cluster: cluster, stakes: stakes}
}

// Annotate attaches stake metadata to every packet in the batch, missing
// entries yielding stake 0.
func (a *Annotator) Annotate(batch packet.Batch) packet.Batch {
	for i := range batch.Packets {
		p := &batch.Packets[i]
		nodeID, ok := a.cluster.NodeIDFor(p.Meta.Addr, p.Meta.Port)
		if !ok {
			p.Meta.Stake = 0
			continue
		}
		p.Meta.Stake = a.stakes.StakeOf(nodeID)
	}
	return batch
}

// Run drains in, annotates each batch, and forwards it to out, until in
// is closed or exit fires.
func (a *Annotator) Run(exit <-chan struct{}, in <-chan packet.Batch, out chan<- packet.Batch) {
	for {
		select {
		case <-exit:
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- a.Annotate(batch):
			case <-exit:
				return
			}
		}
	}
}
