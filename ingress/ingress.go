// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ingress implements C1: UDP socket readers that coalesce
// datagrams into batches on a time-or-size deadline, plus the QUIC
// intercept splice. The goroutine-per-socket, ctx/exit-driven loop shape
// is grounded on
// github.com/luxfi/consensus/engine/gpu_batch_pipeline.go's processLoop
// (select on a done/exit signal alongside a periodic timer). No pack
// repo performs raw net.PacketConn I/O, so the socket read/deadline
// mechanics themselves are plain stdlib net — see DESIGN.md.
package ingress

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/log"
)

// DefaultCoalesceMillis is DEFAULT_TPU_COALESCE_MS from the original.
const DefaultCoalesceMillis = 5

// DefaultBatchSize caps how many datagrams one coalescing window emits
// as a single batch, independent of the coalesce deadline.
const DefaultBatchSize = 128

// datagramMaxLen is the largest single read this package accepts; larger
// incoming UDP payloads are truncated by ReadFrom itself.
const datagramMaxLen = packet.MaxSize

// Reader owns one socket set (e.g. the normal TPU sockets, the forwards
// sockets, or the vote sockets) and coalesces their datagrams into
// batches.
type Reader struct {
	log          log.Logger
	coalesce     time.Duration
	batchSize    int
	forwardedTag packet.Flags
}

// NewReader builds a Reader. forwardedTag is packet.FlagForwarded for the
// forwards socket set, and zero for every other set.
func NewReader(logger log.Logger, coalesce time.Duration, batchSize int, forwardedTag packet.Flags) *Reader {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if coalesce <= 0 {
		coalesce = DefaultCoalesceMillis * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Reader{log: logger, coalesce: coalesce, batchSize: batchSize, forwardedTag: forwardedTag}
}

// Run reads datagrams from sock until exit fires, coalescing into
// batches on whichever comes first: the coalesce deadline or batchSize
// datagrams, and emitting each batch onto out. On exit it drains the
// socket one last time before terminating, matching the original's
// "read one more time" shutdown behavior.
func (r *Reader) Run(exit <-chan struct{}, sock net.PacketConn, out chan<- packet.Batch) {
	for {
		select {
		case <-exit:
			r.drainOnce(sock, out)
			return
		default:
		}
		batch, ok := r.readWindow(sock)
		if ok && batch.Len() > 0 {
			select {
			case out <- batch:
			case <-exit:
				return
			}
		}
	}
}

// readWindow reads datagrams for up to r.coalesce, returning early once
// r.batchSize datagrams have accumulated. ok is false if the socket
// returned a permanent error (e.g. closed).
func (r *Reader) readWindow(sock net.PacketConn) (packet.Batch, bool) {
	deadline := time.Now().Add(r.coalesce)
	var pkts []packet.Packet
	buf := make([]byte, datagramMaxLen)
	for len(pkts) < r.batchSize {
		_ = sock.SetReadDeadline(deadline)
		n, addr, err := sock.ReadFrom(buf)
		if err != nil {
			if ne, isNet := err.(net.Error); isNet && ne.Timeout() {
				break
			}
			r.log.Debug("ingress: read error, stopping reader", "err", err)
			return packet.Batch{}, false
		}
		meta := packet.Meta{Flags: r.forwardedTag}
		if udpAddr, isUDP := addr.(*net.UDPAddr); isUDP {
			meta.Addr = udpAddr.IP
			meta.Port = uint16(udpAddr.Port)
		}
		pkts = append(pkts, packet.New(buf[:n], meta))
		if time.Now().After(deadline) {
			break
		}
	}
	return packet.NewBatch(pkts), true
}

func (r *Reader) drainOnce(sock net.PacketConn, out chan<- packet.Batch) {
	batch, ok := r.readWindow(sock)
	if ok && batch.Len() > 0 {
		select {
		case out <- batch:
		default:
		}
	}
}

// RunMany starts one Reader goroutine per socket in socks, all sharing
// the same exit signal and output channel, and blocks until every one of
// them has returned. Callers that need RunMany's own readers bounded by a
// shutdown join (as tpu.Supervisor does) should invoke it from within
// their own tracked goroutine rather than firing it and forgetting it.
func RunMany(exit <-chan struct{}, r *Reader, socks []net.PacketConn, out chan<- packet.Batch) {
	var wg sync.WaitGroup
	for _, sock := range socks {
		wg.Add(1)
		go func(sock net.PacketConn) {
			defer wg.Done()
			r.Run(exit, sock, out)
		}(sock)
	}
	wg.Wait()
}

// Splice either starts the QUIC listener writing onto the intercept
// channel (factory non-nil), or, when no QUIC listener is configured,
// never produces anything on intercept. The rule that a disabled or
// disconnected auction interceptor passes intercept traffic straight
// through is handled entirely on the auction side (see auction.New's
// nil-client fallback).
func Splice(ctx context.Context, factory external.QUICListenerFactory, sock net.PacketConn, myTPUIP net.IP, stakes external.StakeSource, maxConnsPerIP int, intercept chan<- packet.Batch) error {
	if factory == nil {
		return nil
	}
	return factory.Listen(ctx, sock, myTPUIP, stakes, maxConnsPerIP, intercept)
}
