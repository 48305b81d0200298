// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tpu

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/tpu/auction"
	"github.com/luxfi/tpu/banking"
	"github.com/luxfi/tpu/broadcast"
	"github.com/luxfi/tpu/bundle"
	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/ingress"
	"github.com/luxfi/tpu/internal/wrappers"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/tpu/replay"
	"github.com/luxfi/tpu/sigverify"
	"github.com/luxfi/tpu/stake"
	"github.com/luxfi/tpu/tpumetrics"
	"github.com/luxfi/tpu/votelistener"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the external collaborators the supervisor wires into the
// graph but does not own: the signature verifier, the QUIC server,
// gossip, the ledger/bank, broadcast shred assembly, and the auction's
// wire transport.
type Deps struct {
	Sockets       external.TPUSockets
	SigVerifier   external.SigVerifier
	VoteVerifier  external.SigVerifier
	VotePattern   sigverify.VotePattern
	QUICFactory   external.QUICListenerFactory
	ClusterInfo   external.ClusterInfo
	StakeRefresh  *stake.Refresher
	AuctionClient auction.Client
	BankingSink   external.BankingSink
	BroadcastSink external.BroadcastSink
	Bank          external.BankHandle
	Registerer    prometheus.Registerer
}

// Supervisor is C10: it constructs the full TPU graph end-to-end and
// owns bounded-time shutdown.
type Supervisor struct {
	log    log.Logger
	cfg    Config
	deps   Deps
	stakes *stake.Map
	tip    *bundle.TipManager
	replayPool   *replay.Pool
	replayHandle *replay.Handle

	exit chan struct{}

	pipelineWG  sync.WaitGroup
	quicWG      sync.WaitGroup
	broadcastWG sync.WaitGroup

	quicCancel context.CancelFunc
}

// New wires every channel and component in the fixed order required so
// that each producer's output channel exists before its consumer is
// constructed: ingress -> stake annotator -> sigverify -> auction ->
// banking/bundle -> broadcast, with the vote lane mirrored through its
// own sigverify and vote-listener paths.
func New(logger log.Logger, cfg Config, deps Deps) *Supervisor {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	s := &Supervisor{
		log:    logger,
		cfg:    cfg,
		deps:   deps,
		stakes: stake.NewMap(),
		tip:    bundle.NewTipManager(cfg.TipProgramID),
		exit:   make(chan struct{}),
	}

	stageMetrics := func(name string) *tpumetrics.Stage { return tpumetrics.NewStage(deps.Registerer, name) }
	replayMetrics := tpumetrics.NewReplayer(deps.Registerer)
	auctionMetrics := tpumetrics.NewAuction(deps.Registerer)

	s.replayPool, s.replayHandle = replay.New(cfg.ReplayThreads, logger, replayMetrics)

	// --- normal lane ---
	rawIn := make(chan packet.Batch, 1024)
	intercept := make(chan packet.Batch, 1024)
	stakedIn := make(chan packet.Batch, 1024)
	verifiedIn := make(chan packet.Batch, 1024)
	postAuction := make(chan packet.Batch, 1024)
	bundles := make(chan []packet.Packet, 256)

	annotator := stake.NewAnnotator(logger, deps.ClusterInfo, s.stakes)
	verifier := sigverify.New(logger, deps.SigVerifier, stageMetrics("tpu-verifier"))
	auctionClient := deps.AuctionClient
	if auctionClient == nil && cfg.EnableAuction {
		c, err := auction.NewGRPCClient(cfg.AuctionAddr)
		if err != nil {
			logger.Warn("tpu: auction client unavailable, running in fallback", "err", err)
		} else {
			auctionClient = c
		}
	}
	interceptor := auction.New(logger, auctionClient, auctionMetrics, verifiedIn, postAuction, bundles)

	s.spawnPipeline(func() { annotator.Run(s.exit, rawIn, stakedIn) })
	s.spawnPipeline(func() {
		stakeVerified := verifier.VerifyBatch
		s.pump(stakedIn, verifiedIn, stakeVerified)
	})
	s.spawnPipeline(func() { interceptor.Run(s.exit) })

	router := banking.NewRouter(deps.BankingSink)
	s.spawnPipeline(func() { router.RunTransactions(s.exit, postAuction) })

	// --- vote lane ---
	rawVoteIn := make(chan packet.Batch, 1024)
	stakedVoteIn := make(chan packet.Batch, 1024)
	verifiedVoteIn := make(chan packet.Batch, 1024)

	voteAnnotator := stake.NewAnnotator(logger, deps.ClusterInfo, s.stakes)
	voteVerifier := sigverify.NewRejectNonVote(logger, deps.VoteVerifier, deps.VotePattern, stageMetrics("tpu-vote-verifier"))

	s.spawnPipeline(func() { voteAnnotator.Run(s.exit, rawVoteIn, stakedVoteIn) })
	s.spawnPipeline(func() {
		s.pump(stakedVoteIn, verifiedVoteIn, voteVerifier.VerifyBatch)
	})
	s.spawnPipeline(func() { router.RunTPUVotes(s.exit, verifiedVoteIn) })

	// --- gossip vote lane ---
	gossipVotes := make(chan votelistener.GossipVote, 256)
	gossipOut := make(chan packet.Batch, 256)
	listener := votelistener.New(logger, nil, nil, gossipOut)
	s.spawnPipeline(func() { listener.Run(s.exit, gossipVotes) })
	s.spawnPipeline(func() { router.RunGossipVotes(s.exit, gossipOut) })

	// --- bundle lane ---
	bundleIn := make(chan bundle.Bundle, 256)
	bundleStage := bundle.New(s.tip, func(bank external.BankHandle, b bundle.Bundle) error {
		for _, tx := range b.Transactions {
			if err := s.replayHandle.Send(replay.Request{Bank: bank, Tx: tx}); err != nil {
				return err
			}
		}
		return nil
	})
	bundleIntakeMetrics := stageMetrics("tpu-bundle-intake")
	s.spawnPipeline(func() { bundleStage.Run(s.exit, deps.Bank, bundleIn, nil) })
	s.spawnPipeline(func() { s.convertBundlesToRequests(bundles, bundleIn, bundleIntakeMetrics) })
	s.spawnPipeline(func() { s.drainReplayResponses() })

	// --- ingress readers feed rawIn/rawVoteIn ---
	txReader := ingress.NewReader(logger, cfg.CoalesceInterval, cfg.IngressBatchSize, 0)
	fwdReader := ingress.NewReader(logger, cfg.CoalesceInterval, cfg.IngressBatchSize, packet.FlagForwarded)
	voteReader := ingress.NewReader(logger, cfg.CoalesceInterval, cfg.IngressBatchSize, 0)

	s.spawnPipeline(func() { ingress.RunMany(s.exit, txReader, deps.Sockets.Transactions, rawIn) })
	s.spawnPipeline(func() { ingress.RunMany(s.exit, fwdReader, deps.Sockets.TransactionForwards, rawIn) })
	s.spawnPipeline(func() { ingress.RunMany(s.exit, voteReader, deps.Sockets.Vote, rawVoteIn) })

	// --- QUIC listener: feeds the intercept channel, which is always
	// forwarded into verifiedIn, the auction interceptor's input; with no
	// auction client the interceptor passes it straight through ---
	if deps.Sockets.TransactionsQUIC != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.quicCancel = cancel
		s.quicWG.Add(1)
		go func() {
			defer s.quicWG.Done()
			if err := ingress.Splice(ctx, deps.QUICFactory, deps.Sockets.TransactionsQUIC, cfg.MyTPUIP, s.stakes, cfg.MaxQUICConnsPerIP, intercept); err != nil {
				logger.Error("tpu: QUIC listener failed to bind", "err", err)
			}
		}()
		s.spawnPipeline(func() { s.forward(intercept, verifiedIn) })
	}

	// --- broadcast ---
	entries := make(chan []external.Entry, 256)
	broadcastStage := broadcast.New(logger, deps.BroadcastSink)
	s.broadcastWG.Add(1)
	go func() {
		defer s.broadcastWG.Done()
		broadcastStage.Run(s.exit, entries)
	}()

	return s
}

// Start is a no-op: the replay worker pool and every other stage's
// goroutine are already running by the time New returns.
func (s *Supervisor) Start() {
	// The replay pool's workers are started by replay.New; nothing
	// further to launch here beyond what New already spawned.
}

// Shutdown flips the shared exit flag and joins all worker goroutines
// with a hard wall-clock ceiling, in the representative order: the replay
// pool first (its closed response channel is what lets
// drainReplayResponses return), then pipeline stages, the QUIC listener
// next, broadcast last since it carries the most in-flight state. If the ceiling expires, it logs and returns
// anyway — a stuck worker must not prevent process exit.
func (s *Supervisor) Shutdown() error {
	close(s.exit)
	if s.quicCancel != nil {
		s.quicCancel()
	}

	deadline := time.Now().Add(s.cfg.JoinTimeout)
	var errs wrappers.Errs

	if !s.replayPool.JoinWithTimeout(time.Until(deadline)) {
		errs.Add(errTimedOut("replay pool"))
	}
	if !joinByDeadline(&s.pipelineWG, deadline) {
		errs.Add(errTimedOut("pipeline stages"))
	}
	if !joinByDeadline(&s.quicWG, deadline) {
		errs.Add(errTimedOut("QUIC listener"))
	}
	if !joinByDeadline(&s.broadcastWG, deadline) {
		errs.Add(errTimedOut("broadcast"))
	}

	if errs.Errored() {
		s.log.Warn("tpu: shutdown hit join timeout", "err", errs.Err())
	}
	return errs.Err()
}

func (s *Supervisor) spawnPipeline(fn func()) {
	s.pipelineWG.Add(1)
	go func() {
		defer s.pipelineWG.Done()
		fn()
	}()
}

func (s *Supervisor) pump(in <-chan packet.Batch, out chan<- packet.Batch, verify func(packet.Batch) packet.Batch) {
	for {
		select {
		case <-s.exit:
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			verified := verify(batch)
			if verified.Len() == 0 {
				continue
			}
			select {
			case out <- verified:
			case <-s.exit:
				return
			}
		}
	}
}

func (s *Supervisor) forward(in <-chan packet.Batch, out chan<- packet.Batch) {
	for {
		select {
		case <-s.exit:
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- batch:
			case <-s.exit:
				return
			}
		}
	}
}

// convertBundlesToRequests adapts the auction interceptor's bundle
// output (raw packet groups) into C7's Bundle type. Real bundle
// sanitization (parsing the tip instruction out of the packet stream) is
// owned by the bank/runtime collaborator and out of scope here, so every
// bundle received is counted and logged as dropped rather than silently
// discarded, and nothing is ever written to out.
func (s *Supervisor) convertBundlesToRequests(in <-chan []packet.Packet, out chan<- bundle.Bundle, metrics *tpumetrics.Stage) {
	for {
		select {
		case <-s.exit:
			return
		case pkts, ok := <-in:
			if !ok {
				return
			}
			s.log.Debug("tpu: dropping bundle, no sanitizer wired", "packets", len(pkts))
			if metrics != nil {
				metrics.Dropped.Inc()
			}
		}
	}
}

// drainReplayResponses consumes bundle-triggered replay responses so the
// pool's response channel never fills and wedges its workers. It runs
// until replay.Pool.Join closes the response channel during shutdown,
// logging any execution error the bundle lane's transactions hit.
// Responses are only logged; they are not forwarded anywhere.
func (s *Supervisor) drainReplayResponses() {
	for {
		resps, err := s.replayHandle.RecvAndDrain()
		if err != nil {
			return
		}
		for _, r := range resps {
			if r.Result != nil {
				s.log.Warn("tpu: bundle-triggered replay failed", "err", r.Result)
			}
		}
	}
}

func joinByDeadline(wg *sync.WaitGroup, deadline time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(time.Until(deadline)):
		return false
	}
}

func errTimedOut(stage string) error {
	return &timeoutError{stage: stage}
}

type timeoutError struct{ stage string }

func (e *timeoutError) Error() string { return "tpu: " + e.stage + " did not join within the shutdown deadline" }
