// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uvloop

import (
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueWorkDeliversOnLoop(t *testing.T) {
	l := newTestLoop(t)

	var workRan atomic.Bool
	afterRan := false
	err := l.QueueWork(func() error {
		time.Sleep(5 * time.Millisecond)
		workRan.Store(true)
		return nil
	}, func(err error) {
		require.NoError(t, err)
		require.True(t, workRan.Load(), "after ran before work completed")
		afterRan = true
	})
	require.NoError(t, err)

	require.True(t, l.Alive(), "in-flight request must keep the loop alive")
	rc := l.Run(RunDefault)
	require.Zero(t, rc)
	require.True(t, afterRan)
	require.False(t, l.Alive())
}

func TestQueueWorkPropagatesError(t *testing.T) {
	l := newTestLoop(t)

	boom := errors.New("boom")
	var got error
	require.NoError(t, l.QueueWork(func() error {
		return boom
	}, func(err error) {
		got = err
	}))

	l.Run(RunDefault)
	require.ErrorIs(t, got, boom)
}

func TestQueueWorkRecoversPanic(t *testing.T) {
	l := newTestLoop(t)

	var got error
	require.NoError(t, l.QueueWork(func() error {
		panic("kaboom")
	}, func(err error) {
		got = err
	}))

	l.Run(RunDefault)
	require.Error(t, got)
	assert.Contains(t, got.Error(), "panicked")
}

func TestQueueWorkMany(t *testing.T) {
	l, err := New(WithWorkQueueSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	const n = 20
	completed := 0
	for i := 0; i < n; i++ {
		require.NoError(t, l.QueueWork(func() error {
			time.Sleep(time.Millisecond)
			return nil
		}, func(err error) {
			require.NoError(t, err)
			completed++
		}))
	}

	rc := l.Run(RunDefault)
	require.Zero(t, rc)
	require.Equal(t, n, completed)
}

func TestQueueWorkArguments(t *testing.T) {
	l := newTestLoop(t)
	require.ErrorIs(t, l.QueueWork(nil, func(error) {}), ErrArgument)
	require.ErrorIs(t, l.QueueWork(func() error { return nil }, nil), ErrArgument)
}

func TestGetaddrinfoLocalhost(t *testing.T) {
	l := newTestLoop(t)

	var gotErr error
	gotAddrs := 0
	require.NoError(t, l.Getaddrinfo("localhost", func(addrs []netip.Addr, err error) {
		gotErr = err
		gotAddrs = len(addrs)
	}))

	l.Run(RunDefault)
	require.NoError(t, gotErr)
	require.Greater(t, gotAddrs, 0)
}

func TestGetaddrinfoArguments(t *testing.T) {
	l := newTestLoop(t)
	require.ErrorIs(t, l.Getaddrinfo("", func([]netip.Addr, error) {}), ErrArgument)
	require.ErrorIs(t, l.Getaddrinfo("localhost", nil), ErrArgument)
}
