// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package broadcast

import (
	"errors"
	"testing"
	"time"

	"github.com/luxfi/tpu/external"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	sent [][]external.Entry
	err  error
}

func (s *recordingSink) Send(entries []external.Entry) error {
	s.sent = append(s.sent, entries)
	return s.err
}

func TestStageForwardsEntries(t *testing.T) {
	sink := &recordingSink{}
	st := New(nil, sink)
	in := make(chan []external.Entry, 1)
	exit := make(chan struct{})
	go st.Run(exit, in)

	in <- []external.Entry{{Slot: 1}}

	require.Eventually(t, func() bool { return len(sink.sent) == 1 }, time.Second, 5*time.Millisecond)
	close(exit)
}

func TestStageContinuesAfterSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("shred assembly failed")}
	st := New(nil, sink)
	in := make(chan []external.Entry, 2)
	exit := make(chan struct{})
	go st.Run(exit, in)

	in <- []external.Entry{{Slot: 1}}
	in <- []external.Entry{{Slot: 2}}

	require.Eventually(t, func() bool { return len(sink.sent) == 2 }, time.Second, 5*time.Millisecond)
	close(exit)
}
