// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tpu implements C10, the lifecycle supervisor: it wires C1
// through C9 into the full pipeline graph and owns bounded-time
// shutdown. Grounded on
// github.com/luxfi/consensus/engine/gpu_batch_pipeline.go's
// Start/processLoop/Stop lifecycle and PipelineConfig/DefaultPipelineConfig
// shape, generalized from one processing loop to the full multi-stage
// TPU graph.
package tpu

import (
	"net"
	"time"

	"github.com/luxfi/ids"
)

// DefaultTPUCoalesceMillis is DEFAULT_TPU_COALESCE_MS from the original.
const DefaultTPUCoalesceMillis = 5

// ThreadsJoinTimeoutSeconds is TPU_THREADS_JOIN_TIMEOUT_SECONDS: the hard
// wall-clock ceiling the supervisor gives every stage to stop.
const ThreadsJoinTimeoutSeconds = 10

// MaxQUICConnectionsPerIP is MAX_QUIC_CONNECTIONS_PER_IP from the
// original.
const MaxQUICConnectionsPerIP = 8

// Config carries every numeric/behavioral knob the supervisor needs to
// wire the graph. Like luxfi-consensus's config/ types, it is a plain struct
// built by the caller — no flag-parsing library is introduced.
type Config struct {
	// CoalesceInterval is how long an ingress reader waits to batch
	// datagrams before flushing early.
	CoalesceInterval time.Duration
	// IngressBatchSize caps datagrams per coalescing window.
	IngressBatchSize int
	// JoinTimeout bounds Shutdown's total wall-clock time.
	JoinTimeout time.Duration
	// MaxQUICConnsPerIP is the QUIC server's per-source-IP cap.
	MaxQUICConnsPerIP int
	// MyTPUIP is this node's advertised TPU address, used by the QUIC
	// listener for source filtering.
	MyTPUIP net.IP
	// TipProgramID is the tip-account custodian's expected program id.
	TipProgramID ids.ID
	// ReplayThreads sizes the replay worker pool.
	ReplayThreads int
	// ReplayCostLimit is the per-block compute-unit cap handed to every
	// replay request's CostCapacityMeter.
	ReplayCostLimit uint64
	// EnableAuction makes New dial AuctionAddr for an auction Client when
	// Deps.AuctionClient is nil; false with no Deps.AuctionClient disables
	// MEV entirely.
	EnableAuction bool
	// AuctionAddr is the remote auction service address, used only when
	// EnableAuction is true.
	AuctionAddr string
}

// DefaultConfig mirrors DefaultPipelineConfig: production
// defaults a caller can selectively override.
func DefaultConfig() Config {
	return Config{
		CoalesceInterval:  DefaultTPUCoalesceMillis * time.Millisecond,
		IngressBatchSize:  128,
		JoinTimeout:       ThreadsJoinTimeoutSeconds * time.Second,
		MaxQUICConnsPerIP: MaxQUICConnectionsPerIP,
		ReplayThreads:     4,
		ReplayCostLimit:   48_000_000,
		EnableAuction:     false,
	}
}
