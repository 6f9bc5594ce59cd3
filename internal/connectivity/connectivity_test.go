package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepstash/keepstash/internal/logger"
)

func TestManual_NotifiesOnlyOnTransitions(t *testing.T) {
	m := NewManual(false)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	assert.False(t, m.Set(false), "no change")
	assert.True(t, m.Set(true))
	assert.False(t, m.Set(true), "no change")
	assert.True(t, m.Set(false))

	assert.Equal(t, []bool{true, false}, got)
	assert.False(t, m.Online())
}

func TestManual_Unsubscribe(t *testing.T) {
	m := NewManual(false)

	var first, second int
	unsubFirst := m.Subscribe(func(bool) { first++ })
	m.Subscribe(func(bool) { second++ })
	require.Equal(t, 2, m.Subscribers())

	m.Set(true)
	unsubFirst()
	unsubFirst()
	m.Set(false)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, m.Subscribers())
}

func TestManual_SubscriberMaySubscribe(t *testing.T) {
	m := NewManual(false)

	var inner atomic.Int32
	m.Subscribe(func(bool) {
		m.Subscribe(func(bool) { inner.Add(1) })
	})

	m.Set(true)
	m.Set(false)

	// The subscription added during the first transition sees the second.
	assert.Equal(t, int32(1), inner.Load())
}

func TestManual_ConcurrentSet(t *testing.T) {
	m := NewManual(false)

	var transitions atomic.Int32
	m.Subscribe(func(bool) { transitions.Add(1) })

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() { m.Set(i%2 == 0) })
	}
	wg.Wait()

	assert.LessOrEqual(t, transitions.Load(), int32(50))
	assert.Positive(t, transitions.Load())
}

type fakePinger struct {
	PingFn func(ctx context.Context) error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.PingFn(ctx)
}

func TestProber_Probe(t *testing.T) {
	var healthy atomic.Bool
	pinger := &fakePinger{PingFn: func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("connection refused")
	}}

	p := NewProber(pinger, time.Minute, logger.Discard())
	require.False(t, p.Online(), "starts offline")

	var got []bool
	p.Subscribe(func(online bool) { got = append(got, online) })

	assert.False(t, p.Probe(t.Context()))
	healthy.Store(true)
	assert.True(t, p.Probe(t.Context()))
	assert.True(t, p.Probe(t.Context()))
	healthy.Store(false)
	assert.False(t, p.Probe(t.Context()))

	assert.Equal(t, []bool{true, false}, got)
}

func TestProber_ProbeHasDeadline(t *testing.T) {
	pinger := &fakePinger{PingFn: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	}}

	p := NewProber(pinger, time.Minute, logger.Discard())
	assert.True(t, p.Probe(t.Context()))
}

func TestProber_RunProbesUntilCanceled(t *testing.T) {
	var calls atomic.Int32
	pinger := &fakePinger{PingFn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}

	p := NewProber(pinger, 10*time.Millisecond, logger.Discard())

	online := make(chan struct{})
	p.Subscribe(func(on bool) {
		if on {
			close(online)
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-online:
	case <-time.After(time.Second):
		t.Fatal("prober never went online")
	}

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
