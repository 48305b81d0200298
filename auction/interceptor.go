// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction implements C4, the optional MEV auction interceptor.
// It is modeled as a tagged two-state machine with backoff running in
// one supervisor goroutine — not as pluggable strategies — grounded on
// github.com/luxfi/consensus/engine/gpu_batch_pipeline.go's
// Start/processLoop/Stop lifecycle shape and reconnected with
// github.com/cenkalti/backoff's ExponentialBackOff, already an indirect
// dependency of luxfi-consensus's go.mod.
package auction

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/luxfi/tpu/auction/authpb"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/tpu/tpumetrics"
	"github.com/luxfi/log"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// mode is the interceptor's tagged state.
type mode int32

const (
	modeFallback mode = iota
	modeConnecting
	modeAwaitingReady
	modeEngaged
)

// Interceptor is C4: one input (intercept packets), one output for
// verified packets, one output for bundles. While disconnected from the
// remote it is a byte-for-byte pass-through (fallback mode); while
// connected, the remote arbitrates.
type Interceptor struct {
	log     log.Logger
	client  Client
	metrics *tpumetrics.Auction

	mode atomic.Int32

	in       <-chan packet.Batch
	verified chan<- packet.Batch
	bundles  chan<- []packet.Packet
}

// New builds an auction interceptor. client may be nil, which permanently
// disables engagement (the component behaves as an always-fallback
// pass-through) — this is how the supervisor disables MEV entirely.
func New(logger log.Logger, client Client, metrics *tpumetrics.Auction, in <-chan packet.Batch, verified chan<- packet.Batch, bundles chan<- []packet.Packet) *Interceptor {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	i := &Interceptor{log: logger, client: client, metrics: metrics, in: in, verified: verified, bundles: bundles}
	i.mode.Store(int32(modeFallback))
	return i
}

// Mode reports the interceptor's current state, for tests and metrics.
func (i *Interceptor) Mode() mode {
	return mode(i.mode.Load())
}

// Run drives the interceptor until exit fires or in is closed. It owns
// both the pass-through fallback path and the engaged session loop; the
// two never run concurrently. A local pass-through goroutine is kept
// running for the entire disconnected phase — connecting, awaiting
// readiness, and the backoff sleep between attempts — and is stopped
// only once a session is confirmed engaged, so a remote that is merely
// slow or unreachable never stalls i.in.
func (i *Interceptor) Run(exit <-chan struct{}) {
	if i.client == nil {
		i.runFallback(exit)
		return
	}

	b := newBackoff()
	pt := i.startPassthrough(exit)
	for {
		select {
		case <-exit:
			i.stopPassthrough(pt)
			return
		default:
		}

		i.setMode(modeConnecting)
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := i.client.OpenStream(ctx)
		if err != nil {
			cancel()
			i.setMode(modeFallback)
			i.log.Warn("auction: failed to open stream, staying in fallback", "err", err)
			if !i.sleepOrExit(exit, b.NextBackOff()) {
				i.stopPassthrough(pt)
				return
			}
			continue
		}

		i.setMode(modeAwaitingReady)
		// The first successful Recv is treated as the remote
		// acknowledging session readiness: only then does local
		// pass-through cease, so no packet is lost across the flip.
		first, err := stream.Recv()
		if err != nil {
			cancel()
			i.setMode(modeFallback)
			i.log.Warn("auction: stream closed before ready", "err", err)
			if !i.sleepOrExit(exit, b.NextBackOff()) {
				i.stopPassthrough(pt)
				return
			}
			continue
		}

		i.stopPassthrough(pt)
		b.Reset()
		i.setMode(modeEngaged)
		if i.metrics != nil {
			i.metrics.ModeTransitions.Inc()
		}
		i.deliverInbound(exit, first)

		runErr := i.runEngaged(exit, stream)
		cancel()
		i.setMode(modeFallback)
		if i.metrics != nil {
			i.metrics.ModeTransitions.Inc()
		}
		if runErr == errExit {
			return
		}
		i.log.Warn("auction: session ended, falling back", "err", runErr)
		pt = i.startPassthrough(exit)
		if !i.sleepOrExit(exit, b.NextBackOff()) {
			i.stopPassthrough(pt)
			return
		}
	}
}

// errExit signals that Run's caller asked the session loop to stop,
// distinct from any error the remote stream itself might return.
var errExit = errors.New("auction: exit requested")

// runEngaged forwards local intercept input to the remote and relays
// whatever the remote streams back, until the stream errors or exit
// fires. While entering fallback, any in-flight forwarded-to-remote
// packets are considered lost — the remote was the authority for them.
func (i *Interceptor) runEngaged(exit <-chan struct{}, stream Stream) error {
	recvErrCh := make(chan error, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvErrCh <- err
				return
			}
			i.deliverInbound(exit, msg)
		}
	}()

	for {
		select {
		case <-exit:
			_ = stream.CloseSend()
			return errExit
		case err := <-recvErrCh:
			return err
		case batch, ok := <-i.in:
			if !ok {
				_ = stream.CloseSend()
				return errExit
			}
			if err := stream.Send(raiseBatch(batch)); err != nil {
				return err
			}
		}
	}
}

// deliverInbound lowers one remote message — either a packet batch or a
// bundle — and hands it to the matching output channel, giving up if exit
// fires first rather than blocking forever on a downstream consumer that
// has already stopped reading.
func (i *Interceptor) deliverInbound(exit <-chan struct{}, msg *authpb.InboundMessage) {
	if msg == nil {
		return
	}
	i.deliver(exit, lowerBatch(msg.Batch), lowerBundle(msg.Bundle))
}

func (i *Interceptor) deliver(exit <-chan struct{}, batch packet.Batch, bundle []packet.Packet) {
	if batch.Len() > 0 {
		if i.metrics != nil {
			i.metrics.EngagedPackets.Add(float64(batch.Len()))
		}
		select {
		case i.verified <- batch:
		case <-exit:
			return
		}
	}
	if len(bundle) > 0 {
		select {
		case i.bundles <- bundle:
		case <-exit:
		}
	}
}

// runFallback splices intercept input directly to verified output,
// byte-for-byte, until exit fires or in closes.
func (i *Interceptor) runFallback(exit <-chan struct{}) {
	i.runFallbackUntil(exit, nil)
}

// runFallbackUntil is runFallback with an additional early-stop signal,
// used to run pass-through as a background goroutine for exactly the
// disconnected phase of Run. stop is only observed between deliveries,
// never in the middle of forwarding a received batch, so a batch already
// pulled off in is never lost to a stop racing with its delivery.
func (i *Interceptor) runFallbackUntil(exit <-chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-exit:
			return
		case <-stop:
			return
		case batch, ok := <-i.in:
			if !ok {
				return
			}
			if i.metrics != nil {
				i.metrics.FallbackPackets.Add(float64(batch.Len()))
			}
			select {
			case i.verified <- batch:
			case <-exit:
				return
			}
		}
	}
}

// passthroughLoop is a handle to a background runFallbackUntil goroutine.
type passthroughLoop struct {
	stop chan struct{}
	done chan struct{}
}

// startPassthrough launches a pass-through goroutine that runs until
// stopPassthrough is called or exit fires.
func (i *Interceptor) startPassthrough(exit <-chan struct{}) *passthroughLoop {
	p := &passthroughLoop{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		i.runFallbackUntil(exit, p.stop)
	}()
	return p
}

// stopPassthrough signals p to stop and waits for it to actually exit,
// so the caller can safely start reading i.in itself immediately after.
func (i *Interceptor) stopPassthrough(p *passthroughLoop) {
	close(p.stop)
	<-p.done
}

func (i *Interceptor) setMode(m mode) {
	i.mode.Store(int32(m))
}

func (i *Interceptor) sleepOrExit(exit <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-exit:
		return false
	case <-t.C:
		return true
	}
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // never give up; the supervisor controls lifetime
	return b
}
