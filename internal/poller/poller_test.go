package poller

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	err    error
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type fakeHandle struct {
	doneAfter int
	checks    int
	last      []byte
	result    any
	resultErr error
}

func (h *fakeHandle) Done(context.Context) (bool, error) {
	h.checks++
	return h.checks >= h.doneAfter, nil
}

func (h *fakeHandle) Result(context.Context) (any, error) { return h.result, h.resultErr }

func (h *fakeHandle) LastResponse() []byte { return h.last }

type recordingProgress struct {
	begun, updates, ended int
}

func (p *recordingProgress) Begin(string) { p.begun++ }
func (p *recordingProgress) Update()      { p.updates++ }
func (p *recordingProgress) End()         { p.ended++ }

func TestWaitDoneOnFirstCheckDoesNotSleep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := &fakeHandle{doneAfter: 1, result: "ok"}
	p := &Poller{Clock: clock}
	got, err := p.Wait(context.Background(), h, "Starting")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Empty(t, clock.sleeps)
	require.Equal(t, 1, h.checks)
}

func TestWaitThreeChecksSleepsTwice(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := &fakeHandle{doneAfter: 3, result: map[string]any{"name": "w"}}
	progress := &recordingProgress{}
	p := &Poller{Clock: clock, Progress: progress}
	got, err := p.Wait(context.Background(), h, "Starting")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "w"}, got)
	require.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, clock.sleeps)
	require.Equal(t, 1, progress.begun)
	require.Equal(t, 2, progress.updates)
	require.Equal(t, 1, progress.ended)
}

func TestWaitLooksUpProgressAtMostEveryInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := &fakeHandle{doneAfter: 30, last: []byte(`{"properties":{"correlationId":"corr-1"}}`)}
	var lookups []string
	p := &Poller{
		Clock: clock,
		Lookup: func(_ context.Context, id string) ([]string, error) {
			lookups = append(lookups, id)
			return nil, errors.New("activity log unavailable")
		},
	}
	_, err := p.Wait(context.Background(), h, "")
	require.NoError(t, err)
	// 29 one-second sleeps: lookups happen once more than 10s have passed.
	require.Equal(t, []string{"corr-1", "corr-1"}, lookups)
}

func TestWaitCancelledDuringSleep(t *testing.T) {
	var logs bytes.Buffer
	clock := &fakeClock{now: time.Unix(0, 0), err: context.Canceled}
	h := &fakeHandle{doneAfter: 5, last: []byte(`{"properties":{"correlationId":"corr-9"}}`)}
	progress := &recordingProgress{}
	p := &Poller{Clock: clock, Progress: progress, Logger: logging.New(&logs, logging.LevelWarn)}
	_, err := p.Wait(context.Background(), h, "")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, progress.ended)
	require.Contains(t, logs.String(), "Long running operation wait cancelled. Activity Id: corr-9")
}

func TestWaitIgnoresUnparseableLastResponse(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := &fakeHandle{doneAfter: 2, last: []byte("not json"), result: 1}
	got, err := (&Poller{Clock: clock}).Wait(context.Background(), h, "")
	require.NoError(t, err)
	require.Equal(t, 1, got)
}

func TestWaitMapsBackendResultError(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := &fakeHandle{doneAfter: 1, resultErr: &backend.Error{StatusCode: 400, Code: "Conflict", Message: "nope"}}

	_, err := (&Poller{Clock: clock}).Wait(context.Background(), h, "")
	require.True(t, clierr.Is(err, clierr.CodeBackend))

	custom := errors.New("custom")
	p := &Poller{Clock: clock, OnResultError: func(error) error { return custom }}
	h.checks = 0
	_, err = p.Wait(context.Background(), h, "")
	require.ErrorIs(t, err, custom)
}

func TestWaitPropagatesStatusError(t *testing.T) {
	boom := errors.New("status check failed")
	h := &erroringHandle{err: boom}
	_, err := (&Poller{Clock: &fakeClock{}}).Wait(context.Background(), h, "")
	require.ErrorIs(t, err, boom)
}

type erroringHandle struct{ err error }

func (h *erroringHandle) Done(context.Context) (bool, error)  { return false, h.err }
func (h *erroringHandle) Result(context.Context) (any, error) { return nil, nil }
func (h *erroringHandle) LastResponse() []byte                { return nil }

func TestNewProgressOnNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := NewProgress(&buf).(NopProgress); !ok {
		t.Fatal("expected NopProgress for a buffer")
	}
}
