// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sigverify wraps the external signature verifier as a single
// capability, expressed as an interface with two configurations (general
// and vote-rejecting) rather than inheritance. Grounded on
// luxfi-consensus's poll.Factory pattern of one constructor producing
// differently-configured instances of one interface.
package sigverify

import (
	"github.com/luxfi/tpu/external"
	"github.com/luxfi/tpu/packet"
	"github.com/luxfi/tpu/tpumetrics"
	"github.com/luxfi/log"
)

// VotePattern recognizes a transaction as the known vote-program
// invocation by inspecting its first instruction. Real pattern matching
// lives with the bank/runtime; this module only consumes the verdict.
type VotePattern interface {
	IsVoteInstruction(payload []byte) bool
}

// Stage is C3: a thin adapter over an external.SigVerifier that also
// enforces lane policy (reject non-vote transactions on the vote lane).
type Stage struct {
	log         log.Logger
	verifier    external.SigVerifier
	rejectNonVote bool
	votePattern VotePattern
	metrics     *tpumetrics.Stage
	name        string
}

// New builds the general-purpose verifier stage.
func New(logger log.Logger, verifier external.SigVerifier, metrics *tpumetrics.Stage) *Stage {
	return newStage(logger, verifier, nil, false, metrics, "tpu-verifier")
}

// NewRejectNonVote builds the vote-lane verifier stage, which additionally
// discards any packet whose transaction is not exactly the known vote
// program invocation.
func NewRejectNonVote(logger log.Logger, verifier external.SigVerifier, pattern VotePattern, metrics *tpumetrics.Stage) *Stage {
	return newStage(logger, verifier, pattern, true, metrics, "tpu-vote-verifier")
}

func newStage(logger log.Logger, verifier external.SigVerifier, pattern VotePattern, rejectNonVote bool, metrics *tpumetrics.Stage, name string) *Stage {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Stage{log: logger, verifier: verifier, rejectNonVote: rejectNonVote, votePattern: pattern, metrics: metrics, name: name}
}

// VerifyBatch returns the subset of batch that passed signature
// verification and, if this is a vote-lane stage, lane policy. Verifier
// errors drop the whole batch's worth of undecided packets rather than
// propagating, matching the "never fatal" error policy.
func (s *Stage) VerifyBatch(batch packet.Batch) packet.Batch {
	passed, err := s.verifier.Verify(batch)
	if err != nil {
		s.log.Debug("sigverify: verifier error, dropping batch", "stage", s.name, "err", err)
		if s.metrics != nil {
			s.metrics.Dropped.Add(float64(batch.Len()))
		}
		return packet.Batch{}
	}

	out := make([]packet.Packet, 0, batch.Len())
	for i, p := range batch.Packets {
		if i >= len(passed) || !passed[i] {
			continue
		}
		if s.rejectNonVote && !p.Meta.Flags.Has(packet.FlagSimpleVoteTx) {
			continue
		}
		if s.rejectNonVote && s.votePattern != nil && !s.votePattern.IsVoteInstruction(p.Payload()) {
			continue
		}
		out = append(out, p)
	}
	dropped := batch.Len() - len(out)
	if s.metrics != nil && dropped > 0 {
		s.metrics.Dropped.Add(float64(dropped))
	}
	return packet.Batch{Packets: out}
}

// Run drains in, verifies each batch, and forwards survivors to out.
func (s *Stage) Run(exit <-chan struct{}, in <-chan packet.Batch, out chan<- packet.Batch) {
	for {
		select {
		case <-exit:
			return
		case batch, ok := <-in:
			if !ok {
				return
			}
			verified := s.VerifyBatch(batch)
			if verified.Len() == 0 {
				continue
			}
			select {
			case out <- verified:
			case <-exit:
				return
			}
		}
	}
}
