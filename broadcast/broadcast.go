// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package broadcast declares C8's input contract: consume produced
// ledger entries and ship shreds to the cluster. Shred assembly itself
// is out of scope (external.BroadcastSink); this package only drains
// the entry channel the rest of the TPU feeds, logging and continuing
// on a sink error since stage plumbing failures never abort the process.
package broadcast

import (
	"github.com/luxfi/tpu/external"
	"github.com/luxfi/log"
)

// Stage drains produced entries into a BroadcastSink.
type Stage struct {
	log  log.Logger
	sink external.BroadcastSink
}

// New builds a broadcast stage over sink.
func New(logger log.Logger, sink external.BroadcastSink) *Stage {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Stage{log: logger, sink: sink}
}

// Run drains in until it closes or exit fires, one entry batch at a
// time. A sink error is logged and the stage continues — it has the
// most in-flight state of any stage and so is always joined last during
// shutdown (see tpu.Supervisor.Shutdown).
func (s *Stage) Run(exit <-chan struct{}, in <-chan []external.Entry) {
	for {
		select {
		case <-exit:
			return
		case entries, ok := <-in:
			if !ok {
				return
			}
			if err := s.sink.Send(entries); err != nil {
				s.log.Warn("broadcast: sink failed, dropping entries", "err", err, "count", len(entries))
			}
		}
	}
}
