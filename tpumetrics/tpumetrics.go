// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tpumetrics wires prometheus counters for every TPU stage,
// grounded on github.com/luxfi/consensus/metrics.Metrics, which wraps a
// prometheus.Registerer and registers collectors through it.
package tpumetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Stage holds the per-stage counters used by sigverify and by the
// supervisor's bundle intake. Each field is optional — callers may leave a
// Stage's unused counters nil-registered.
type Stage struct {
	Dropped    prometheus.Counter
	Processed  prometheus.Counter
}

// NewStage registers a {dropped,processed} counter pair for a named
// stage against reg. reg may be nil, in which case the counters are
// created but never registered: calling Add or Inc on them is safe, and
// nothing is exported.
func NewStage(reg prometheus.Registerer, name string) *Stage {
	s := &Stage{
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu",
			Subsystem: name,
			Name:      "packets_dropped_total",
			Help:      "Packets dropped by this stage.",
		}),
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu",
			Subsystem: name,
			Name:      "packets_processed_total",
			Help:      "Packets successfully processed by this stage.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Dropped, s.Processed)
	}
	return s
}

// Replayer holds the counters the C9 worker pool maintains across all
// threads.
type Replayer struct {
	Executed            prometheus.Counter
	CostCapBreaches      prometheus.Counter
	AccountsDataBreaches prometheus.Counter
	ProcessEntryErrors   prometheus.Counter
}

// NewReplayer registers the replay pool's counters against reg.
func NewReplayer(reg prometheus.Registerer) *Replayer {
	r := &Replayer{
		Executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "replay", Name: "transactions_executed_total",
			Help: "Transactions executed by the replay worker pool.",
		}),
		CostCapBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "replay", Name: "cost_cap_breaches_total",
			Help: "Requests rejected with WouldExceedMaxBlockCostLimit.",
		}),
		AccountsDataBreaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "replay", Name: "accounts_data_breaches_total",
			Help: "Requests rejected for exceeding an accounts-data-size cap.",
		}),
		ProcessEntryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "replay", Name: "process_entry_errors_total",
			Help: "Fee-collection errors returned by replayed transactions (validator_process_entry_error analogue).",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.Executed, r.CostCapBreaches, r.AccountsDataBreaches, r.ProcessEntryErrors)
	}
	return r
}

// Auction holds the counters for the MEV interceptor's mode transitions.
type Auction struct {
	ModeTransitions prometheus.Counter
	FallbackPackets prometheus.Counter
	EngagedPackets  prometheus.Counter
}

// NewAuction registers the auction interceptor's counters against reg.
func NewAuction(reg prometheus.Registerer) *Auction {
	a := &Auction{
		ModeTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "auction", Name: "mode_transitions_total",
			Help: "Engaged/fallback mode transitions.",
		}),
		FallbackPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "auction", Name: "fallback_packets_total",
			Help: "Packets passed through while in fallback mode.",
		}),
		EngagedPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tpu", Subsystem: "auction", Name: "engaged_packets_total",
			Help: "Packets returned by the remote auction service.",
		}),
	}
	if reg != nil {
		reg.MustRegister(a.ModeTransitions, a.FallbackPackets, a.EngagedPackets)
	}
	return a
}
