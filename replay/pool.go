// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package replay implements the bounded-parallelism transaction replay
// worker pool (C9), grounded on original_source/ledger/src/replayer.rs
// and adapted to goroutines/channels in the idiom of
// github.com/luxfi/consensus/engine's worker-loop components
// (engine/gpu_batch_pipeline.go's processLoop/Start/Stop lifecycle).
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/internal/satmath"
	"github.com/luxfi/tpu/tpumetrics"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// ProcessCallback is the replay "entry callback" escape hatch: called
// synchronously on the worker goroutine after execution but before
// response emission, with an immutable view of the bank. It must not
// block.
type ProcessCallback func(bank external.BankHandle)

// VoteSink receives each transaction identified as a vote, the Go
// analogue of ReplayVoteSender. Only the transaction is passed; no
// parsed vote accompanies it.
type VoteSink interface {
	SendVote(tx external.SanitizedTransaction)
}

// Request is the tuple a caller submits to the pool for execution.
type Request struct {
	Bank             external.BankHandle
	Tx               external.SanitizedTransaction
	StatusSender     external.StatusSender
	VoteSink         VoteSink
	CostMeter        *CostCapacityMeter
	EntryCallback    ProcessCallback
	Idx              *int
}

// Timings is a minimal stand-in for solana_program_runtime's
// ExecuteTimings: per-program accumulated compute units and invocation
// counts, aggregated the same way the original's
// aggregate_total_execution_units does (ignoring zero-count programs,
// saturating on overflow).
type Timings struct {
	PerProgram map[ids.ID]external.ProgramUnits
}

func aggregateExecutionUnits(t Timings) uint64 {
	var total uint64
	for _, timing := range t.PerProgram {
		if timing.Count == 0 {
			continue
		}
		total = satmath.AddU64(total, timing.AccumulatedUnits/timing.Count)
	}
	return total
}

// executionUnitsDelta picks ProgramUnits-based aggregation when the bank
// supplied a breakdown, falling back to the flat ComputeUnitsConsumed
// otherwise.
func executionUnitsDelta(outcome external.ExecutionOutcome) uint64 {
	if len(outcome.ProgramUnits) == 0 {
		return outcome.ComputeUnitsConsumed
	}
	return aggregateExecutionUnits(Timings{PerProgram: outcome.ProgramUnits})
}

// Response is what a worker emits after executing one request.
type Response struct {
	Result  error
	Timing  Timings
	Idx     *int
}

// Handle is the caller-facing surface of the pool: non-blocking Send,
// coalescing RecvAndDrain, and Join. The request side is a small
// mutex/condvar-backed unbounded queue rather than a Go channel, mirroring
// the original's crossbeam_channel::unbounded request queue — Send must
// never block the caller and must never panic once Join has been called,
// neither of which a raw buffered channel can guarantee.
type Handle struct {
	reqMu     sync.Mutex
	reqCond   *sync.Cond
	reqQueue  []Request
	reqClosed bool

	respCh chan Response
}

func newHandle() *Handle {
	h := &Handle{respCh: make(chan Response, 1024)}
	h.reqCond = sync.NewCond(&h.reqMu)
	return h
}

// Send enqueues req without blocking the caller, returning ErrChannelClosed
// once closeSend has run instead of the channel-closed panic a raw
// `chan<-` send would produce.
func (h *Handle) Send(req Request) error {
	h.reqMu.Lock()
	defer h.reqMu.Unlock()
	if h.reqClosed {
		return ErrChannelClosed
	}
	h.reqQueue = append(h.reqQueue, req)
	h.reqCond.Signal()
	return nil
}

// nextRequest blocks until a request is available or the queue has been
// closed and drained, the consumer side of the unbounded queue Send
// writes into.
func (h *Handle) nextRequest() (Request, bool) {
	h.reqMu.Lock()
	defer h.reqMu.Unlock()
	for len(h.reqQueue) == 0 && !h.reqClosed {
		h.reqCond.Wait()
	}
	if len(h.reqQueue) == 0 {
		return Request{}, false
	}
	req := h.reqQueue[0]
	h.reqQueue = h.reqQueue[1:]
	return req, true
}

// RecvAndDrain blocks for at least one response, then drains any
// additional ready responses in the same call — the coalescing receive
// that lets a caller batch completions into one scheduling tick.
func (h *Handle) RecvAndDrain() ([]Response, error) {
	first, ok := <-h.respCh
	if !ok {
		return nil, ErrChannelClosed
	}
	out := []Response{first}
	for {
		select {
		case r, ok := <-h.respCh:
			if !ok {
				return out, nil
			}
			out = append(out, r)
		default:
			return out, nil
		}
	}
}

// closeSend marks the request queue closed and wakes every worker blocked
// in nextRequest, signaling them to drain and exit once idle. Only
// Pool.Join calls this.
func (h *Handle) closeSend() {
	h.reqMu.Lock()
	h.reqClosed = true
	h.reqMu.Unlock()
	h.reqCond.Broadcast()
}

// Pool is the fixed-size group of replay worker goroutines.
type Pool struct {
	wg      sync.WaitGroup
	handle  *Handle
	log     log.Logger
	metrics *tpumetrics.Replayer
}

// New starts num_threads worker goroutines and returns the pool plus the
// caller-facing handle, mirroring Replayer::new's (Replayer,
// ReplayerHandle) pair.
func New(numThreads int, logger log.Logger, metrics *tpumetrics.Replayer) (*Pool, *Handle) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	handle := newHandle()
	p := &Pool{handle: handle, log: logger, metrics: metrics}
	for i := 0; i < numThreads; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p, handle
}

// worker implements the Idle -> Receiving -> Executing -> Responding ->
// Idle state machine. Receiving transitions to Terminating once the
// request queue is closed and drained.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.log.Debug("replay worker started", "id", id)
	for {
		req, ok := p.handle.nextRequest()
		if !ok {
			break
		}
		resp := p.execute(req)
		if req.EntryCallback != nil {
			req.EntryCallback(req.Bank)
		}
		p.handle.respCh <- resp
	}
	p.log.Debug("replay worker stopped", "id", id)
}

// execute runs the per-transaction sequence: pre-state snapshot,
// load/execute/commit, block-cost-cap enforcement, vote side-channel,
// accounts-data-size caps, status publication, and first-error
// promotion (trivial here since the pool executes one transaction per
// request — the "batch" is a single-element batch over the bank, as in
// the original).
func (p *Pool) execute(req Request) Response {
	ctx := context.Background()
	recordStatus := req.StatusSender != nil

	var preBalances map[ids.ID]uint64
	if recordStatus {
		preBalances = p.collectTokenBalances(req.Bank, req.Tx)
	}

	outcome, execErr := req.Bank.LoadExecuteAndCommit(ctx, req.Tx, recordStatus)

	timing := Timings{PerProgram: outcome.ProgramUnits}
	if execErr != nil {
		return Response{Result: execErr, Timing: timing, Idx: req.Idx}
	}

	if req.Bank.FeatureActive("gate_large_block") && req.CostMeter != nil {
		delta := executionUnitsDelta(outcome)
		remaining := req.CostMeter.Accumulate(delta)
		p.log.Debug("replay: accumulated block cost", "slot", req.Bank.Slot(), "delta", delta, "remaining", remaining)
		if remaining == 0 {
			if p.metrics != nil {
				p.metrics.CostCapBreaches.Inc()
			}
			return Response{Result: ErrWouldExceedMaxBlockCostLimit, Timing: timing, Idx: req.Idx}
		}
	}

	if req.Tx.IsVote() && req.VoteSink != nil {
		req.VoteSink.SendVote(req.Tx)
	}

	if req.Bank.FeatureActive("cap_accounts_data_size_per_block") {
		if err := checkAccountsDataBlockSize(req.Bank); err != nil {
			if p.metrics != nil {
				p.metrics.AccountsDataBreaches.Inc()
			}
			return Response{Result: err, Timing: timing, Idx: req.Idx}
		}
	}
	if req.Bank.FeatureActive("cap_accounts_data_len") && outcome.AccountsDataExceeded {
		if p.metrics != nil {
			p.metrics.AccountsDataBreaches.Inc()
		}
		return Response{Result: ErrMaxAccountsDataSizeExceeded, Timing: timing, Idx: req.Idx}
	}

	if recordStatus {
		postBalances := p.collectTokenBalances(req.Bank, req.Tx)
		req.StatusSender.SendTransactionStatus(req.Bank, req.Tx, outcome, preBalances, postBalances)
	}

	if p.metrics != nil {
		p.metrics.Executed.Inc()
	}

	result := outcome.FeeCollectionErr
	if result != nil && p.metrics != nil {
		p.metrics.ProcessEntryErrors.Inc()
	}
	return Response{Result: result, Timing: timing, Idx: req.Idx}
}

// collectTokenBalances looks up decimals for every token account
// referenced by tx, reusing a per-call mint->decimals cache so repeated
// mints incur one lookup. The real decimals source is the bank; this
// only shapes the cache contract.
func (p *Pool) collectTokenBalances(bank external.BankHandle, tx external.SanitizedTransaction) map[ids.ID]uint64 {
	mintDecimals := make(map[ids.ID]uint8)
	balances := make(map[ids.ID]uint64)
	outcome, err := peekOutcome(bank, tx)
	if err != nil {
		return balances
	}
	for _, mint := range outcome.TokenAccounts {
		if _, ok := mintDecimals[mint]; !ok {
			mintDecimals[mint] = 0 // looked up once, cached for the call
		}
		balances[mint] = 0
	}
	return balances
}

// peekOutcome is a narrow seam used only to discover which token
// accounts a transaction touches before execution, without re-running
// it. Production bank handles would expose this directly; here it is a
// best-effort read that tolerates returning zero accounts.
func peekOutcome(bank external.BankHandle, tx external.SanitizedTransaction) (external.ExecutionOutcome, error) {
	if peeker, ok := bank.(interface {
		PeekTokenAccounts(external.SanitizedTransaction) []ids.ID
	}); ok {
		return external.ExecutionOutcome{TokenAccounts: peeker.PeekTokenAccounts(tx)}, nil
	}
	return external.ExecutionOutcome{}, nil
}

func checkAccountsDataBlockSize(bank external.BankHandle) error {
	const maxAccountDataBlockLen = int64(100_000_000)
	if bank.AccountsDataSizeDelta() > maxAccountDataBlockLen {
		return ErrWouldExceedAccountDataBlockLimit
	}
	return nil
}

// Join closes the request queue and waits for all workers to exit,
// the Go analogue of Replayer::join. It does not itself enforce the
// 10s supervisor ceiling; callers needing a bound should race this
// against a timer, as tpu.Supervisor.Shutdown does.
func (p *Pool) Join() {
	p.handle.closeSend()
	p.wg.Wait()
	close(p.handle.respCh)
}

// JoinWithTimeout waits up to d for all workers to finish, returning
// false if the deadline expired first. The request queue is always
// closed so workers can make progress toward exit even if the caller
// gives up waiting.
func (p *Pool) JoinWithTimeout(d time.Duration) bool {
	p.handle.closeSend()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(p.handle.respCh)
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
