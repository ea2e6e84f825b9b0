package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMissingRegistrationExtractsNamespace(t *testing.T) {
	body := []byte(`{"error":{"code":"MissingSubscriptionRegistration","message":"The subscription is not registered to use namespace 'Microsoft.Foo'. See https://aka.ms/rps-not-found"}}`)
	err := fmt.Errorf("call: %w", ParseError(409, body))
	ns, ok := MissingRegistration(err)
	if !ok {
		t.Fatal("expected missing registration to be detected")
	}
	if ns != "Microsoft.Foo" {
		t.Fatalf("unexpected namespace %q", ns)
	}
}

func TestMissingRegistrationFromRawBody(t *testing.T) {
	err := &Error{StatusCode: 409, Body: []byte(`{"error":{"code":"MissingSubscriptionRegistration","message":"namespace 'Microsoft.Cache'"}}`)}
	ns, ok := MissingRegistration(err)
	if !ok || ns != "Microsoft.Cache" {
		t.Fatalf("expected Microsoft.Cache, got %q (ok=%v)", ns, ok)
	}
}

func TestMissingRegistrationIgnoresOtherErrors(t *testing.T) {
	cases := []error{
		errors.New("plain"),
		ParseError(404, []byte(`{"error":{"code":"ResourceNotFound","message":"'x' not found"}}`)),
		ParseError(409, []byte(`{"error":{"code":"MissingSubscriptionRegistration","message":"no quotes here"}}`)),
	}
	for _, err := range cases {
		if _, ok := MissingRegistration(err); ok {
			t.Fatalf("did not expect detection for %v", err)
		}
	}
}

func TestParseErrorKeepsNonJSONBody(t *testing.T) {
	e := ParseError(502, []byte("bad gateway\n"))
	if e.Message != "bad gateway" || e.StatusCode != 502 {
		t.Fatalf("unexpected error %+v", e)
	}
	if e.Error() != "bad gateway" {
		t.Fatalf("unexpected text %q", e.Error())
	}
}

type fakeRegistrar struct {
	registered []string
	states     []string
	checks     int
}

func (f *fakeRegistrar) Register(_ context.Context, ns string) error {
	f.registered = append(f.registered, ns)
	return nil
}

func (f *fakeRegistrar) RegistrationState(context.Context, string) (string, error) {
	state := f.states[f.checks]
	f.checks++
	return state, nil
}

func TestRegisterAndWaitPollsUntilRegistered(t *testing.T) {
	reg := &fakeRegistrar{states: []string{"Registering", "Registering", "Registered"}}
	var sleeps []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	if err := RegisterAndWait(context.Background(), reg, "Microsoft.Foo", 0, sleep); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.registered) != 1 || reg.registered[0] != "Microsoft.Foo" {
		t.Fatalf("unexpected registrations %v", reg.registered)
	}
	if len(sleeps) != 2 || sleeps[0] != DefaultRegistrationInterval {
		t.Fatalf("expected two sleeps of the default interval, got %v", sleeps)
	}
}

func TestRegisterAndWaitStopsOnCancel(t *testing.T) {
	reg := &fakeRegistrar{states: []string{"Registering", "Registering"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RegisterAndWait(ctx, reg, "Microsoft.Foo", time.Hour, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestDrainKeepsPageOrder(t *testing.T) {
	p := &SlicePager{Pages: [][]any{{1, 2}, {}, {3}}}
	items, err := Drain(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(items) != "[1 2 3]" {
		t.Fatalf("unexpected items %v", items)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Fatalf("unexpected request id %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
