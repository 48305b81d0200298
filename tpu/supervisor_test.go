// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tpu

import (
	"testing"
	"time"

	"github.com/luxfi/tpu/bundle"
	"github.com/luxfi/tpu/replay"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

// TestShutdownReturnsWithinJoinTimeoutDespiteStuckWorker exercises S6: a
// worker that never honors the exit signal must not prevent Shutdown from
// returning once the configured join deadline elapses.
func TestShutdownReturnsWithinJoinTimeoutDespiteStuckWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JoinTimeout = 300 * time.Millisecond

	pool, handle := replay.New(1, nil, nil)
	s := &Supervisor{
		log:          log.NewNoOpLogger(),
		cfg:          cfg,
		stakes:       nil,
		tip:          bundle.NewTipManager(cfg.TipProgramID),
		replayPool:   pool,
		replayHandle: handle,
		exit:         make(chan struct{}),
	}

	blocked := make(chan struct{})
	s.spawnPipeline(func() {
		<-blocked // never honors s.exit; simulates a non-interruptible call
	})

	start := time.Now()
	err := s.Shutdown()
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Contains(t, err.Error(), "pipeline stages")
	require.Less(t, elapsed, cfg.JoinTimeout+time.Second)
	require.NotPanics(t, func() { close(blocked) })
}
