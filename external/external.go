// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package external declares the typed interface boundaries of every
// collaborator the TPU treats as out of scope: the signature verifier,
// the QUIC server, cluster gossip, the proof-of-history recorder, the
// ledger/bank engines, broadcast shred assembly, and stake-weight lookup.
// Nothing in this package implements real validator logic; it exists so
// the rest of the module can be wired and tested against narrow seams.
package external

import (
	"context"
	"net"

	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/ids"
)

// TPUSockets groups the four UDP socket sets plus the QUIC socket handed
// to the TPU at construction, mirroring the original's TpuSockets.
type TPUSockets struct {
	Transactions         []net.PacketConn
	TransactionForwards  []net.PacketConn
	Vote                 []net.PacketConn
	Broadcast            []net.PacketConn
	TransactionsQUIC     net.PacketConn
}

// SigVerifier checks packet signatures. Two lane-typed instances are
// configured by the supervisor: a general verifier and a vote-lane
// verifier that additionally rejects non-vote transactions.
type SigVerifier interface {
	// Verify returns, for each packet in order, whether it passed.
	// A false result at index i means batch.Packets[i] must be dropped.
	// An error from the verifier itself is treated as "drop the packet",
	// never as fatal.
	Verify(batch packet.Batch) ([]bool, error)
}

// QUICListenerFactory starts the QUIC server that accepts inbound client
// transactions and forwards them onto the intercept channel. The only
// fatal startup condition in the whole TPU is this factory failing to
// bind.
type QUICListenerFactory interface {
	Listen(ctx context.Context, sock net.PacketConn, myTPUIP net.IP, stakeSource StakeSource, maxConnsPerIP int, out chan<- packet.Batch) error
}

// StakeSource resolves sender stake, backed by the bank's stake-weight
// computation (out of scope here).
type StakeSource interface {
	StakeOf(nodeID ids.NodeID) uint64
}

// ClusterInfo resolves a socket address to the node identity that
// advertised it in gossip, the join point for stake annotation (C2).
type ClusterInfo interface {
	NodeIDFor(addr net.IP, port uint16) (ids.NodeID, bool)
}

// BankHandle is an opaque, reference-counted handle to one slot's bank.
// Replay workers execute transactions against it; the TPU never
// constructs or destroys one.
type BankHandle interface {
	Slot() uint64
	FeatureActive(feature string) bool
	// LoadExecuteAndCommit runs tx against the bank and returns the
	// aggregate compute units consumed and any execution error. Real
	// bank/runtime semantics are out of scope; only the contract the
	// replayer depends on is declared.
	LoadExecuteAndCommit(ctx context.Context, tx SanitizedTransaction, recordStatus bool) (ExecutionOutcome, error)
	AccountsDataSizeDelta() int64
}

// SanitizedTransaction stands in for a fully parsed, verified
// transaction. Its internal shape is owned by the bank/runtime.
type SanitizedTransaction interface {
	IsVote() bool
	Signature() [64]byte
}

// ExecutionOutcome is what the bank reports after executing one
// transaction.
type ExecutionOutcome struct {
	// ComputeUnitsConsumed is used when the bank does not break down
	// consumption per program; ProgramUnits, when non-empty, takes
	// precedence and is aggregated the way the original replayer
	// aggregates per-program ExecuteTimings.
	ComputeUnitsConsumed uint64
	ProgramUnits         map[ids.ID]ProgramUnits
	FeeCollectionErr     error
	AccountsDataExceeded bool
	TokenAccounts        []ids.ID
}

// ProgramUnits is one program's accumulated compute-unit cost within a
// single execution, the unit the original's per-program ExecuteTimings
// tracks.
type ProgramUnits struct {
	AccumulatedUnits uint64
	Count            uint64
}

// StatusSender publishes post-execution status, the Go analogue of
// TransactionStatusSender.
type StatusSender interface {
	SendTransactionStatus(bank BankHandle, tx SanitizedTransaction, outcome ExecutionOutcome, preBalances, postBalances map[ids.ID]uint64)
}

// Blockstore is the ledger append-only store; out of scope.
type Blockstore interface {
	InsertShreds(slot uint64, shreds [][]byte) error
}

// BroadcastSink consumes produced entries and ships shreds to the
// cluster; out of scope beyond this input contract (C8).
type BroadcastSink interface {
	Send(entries []Entry) error
}

// Entry is one PoH-recorded batch of executed transactions, ready to
// shred and broadcast.
type Entry struct {
	Slot         uint64
	Transactions []SanitizedTransaction
}

// BankingSink is C6's input contract: it consumes verified transactions,
// verified TPU votes, and verified gossip votes, and is free to drop
// excess load on its own policy.
type BankingSink interface {
	SubmitTransactions(batch packet.Batch)
	SubmitTPUVotes(batch packet.Batch)
	SubmitGossipVotes(batch packet.Batch)
}
