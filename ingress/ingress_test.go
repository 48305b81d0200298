// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ingress

import (
	"net"
	"testing"
	"time"

	"github.com/luxfi/tpu/packet"
	"github.com/stretchr/testify/require"
)

func TestReaderCoalescesIntoOneBatch(t *testing.T) {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sock.Close()

	sender, err := net.DialUDP("udp", nil, sock.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte("one"))
	require.NoError(t, err)
	_, err = sender.Write([]byte("two"))
	require.NoError(t, err)

	out := make(chan packet.Batch, 4)
	exit := make(chan struct{})
	r := NewReader(nil, 50*time.Millisecond, 0, 0)
	go r.Run(exit, sock, out)

	select {
	case b := <-out:
		require.Equal(t, 2, b.Len())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for coalesced batch")
	}
	close(exit)
}

func TestRunManyBlocksUntilAllReadersReturn(t *testing.T) {
	socks := make([]net.PacketConn, 3)
	for i := range socks {
		sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		require.NoError(t, err)
		defer sock.Close()
		socks[i] = sock
	}

	out := make(chan packet.Batch, 4)
	exit := make(chan struct{})
	r := NewReader(nil, 10*time.Millisecond, 0, 0)

	done := make(chan struct{})
	go func() {
		RunMany(exit, r, socks, out)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("RunMany returned before exit was signaled")
	case <-time.After(100 * time.Millisecond):
	}

	close(exit)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunMany did not return after exit was signaled")
	}
}

func TestReaderTagsForwarded(t *testing.T) {
	sock, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sock.Close()

	sender, err := net.DialUDP("udp", nil, sock.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write([]byte("fwd"))
	require.NoError(t, err)

	out := make(chan packet.Batch, 4)
	exit := make(chan struct{})
	r := NewReader(nil, 50*time.Millisecond, 0, packet.FlagForwarded)
	go r.Run(exit, sock, out)

	select {
	case b := <-out:
		require.Equal(t, 1, b.Len())
		require.True(t, b.Packets[0].Meta.Flags.Has(packet.FlagForwarded))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tagged batch")
	}
	close(exit)
}
