package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
	"github.com/LukaszStem/azure-cli/internal/commands"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/parser"
	"github.com/LukaszStem/azure-cli/internal/poller"
	"github.com/LukaszStem/azure-cli/internal/profile"
	"github.com/stretchr/testify/require"
)

type countingPrompter struct {
	answers []bool
	asked   []string
}

func (p *countingPrompter) Confirm(message string) (bool, error) {
	p.asked = append(p.asked, message)
	if len(p.answers) == 0 {
		return false, nil
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}

type mapConfig map[string]string

func (c mapConfig) Get(section, key, fallback string) string {
	if v, ok := c[section+"."+key]; ok {
		return v
	}
	return fallback
}

func (c mapConfig) GetBool(section, key string, fallback bool) bool {
	if v, ok := c[section+"."+key]; ok {
		return v == "true"
	}
	return fallback
}

type recordingTelemetry struct {
	requestID  string
	commands   []string
	exceptions []string
}

func (t *recordingTelemetry) SetRequestID(id string) { t.requestID = id }

func (t *recordingTelemetry) RecordCommand(name, _ string, _ []string) {
	t.commands = append(t.commands, name)
}

func (t *recordingTelemetry) RecordException(_ error, fault string) {
	t.exceptions = append(t.exceptions, fault)
}

type fakeRegistrar struct {
	registered []string
}

func (r *fakeRegistrar) Register(_ context.Context, ns string) error {
	r.registered = append(r.registered, ns)
	return nil
}

func (r *fakeRegistrar) RegistrationState(context.Context, string) (string, error) {
	return backend.RegisteredState, nil
}

func missingRegistration(ns string) error {
	return &backend.Error{
		StatusCode: 409,
		Code:       backend.MissingRegistrationCode,
		Message:    fmt.Sprintf("The subscription is not registered to use namespace '%s'.", ns),
	}
}

type calls struct {
	create []operation.Args
	delete []operation.Args
}

func widgetModule(c *calls, opts ...commands.Option) commands.Module {
	return commands.Module{Name: "widget", Load: func(r *commands.Registry) error {
		g := r.Group("widget", commands.CommandType{})
		if err := g.Custom("create", &operation.Operation{
			Name:   "create",
			Params: []operation.Param{{Name: "name", Required: true}},
			Run: func(_ context.Context, _ any, args operation.Args) (any, error) {
				c.create = append(c.create, args)
				return map[string]any{"name": args.String("name")}, nil
			},
		}); err != nil {
			return err
		}
		delOpts := append([]commands.Option{commands.WithConfirmation("")}, opts...)
		return g.Custom("delete", &operation.Operation{
			Name:   "delete",
			Params: []operation.Param{{Name: "name", Required: true}},
			Run: func(_ context.Context, _ any, args operation.Args) (any, error) {
				c.delete = append(c.delete, args)
				return nil, nil
			},
		}, delOpts...)
	}}
}

func newEngine(t *testing.T, mods []commands.Module, opts ...Option) *Engine {
	t.Helper()
	reg, err := operation.NewRegistry()
	require.NoError(t, err)
	p, err := profile.New("test", nil, nil, nil)
	require.NoError(t, err)
	r := commands.NewRegistry(operation.NewBinder(reg), p)
	base := []Option{
		WithModules(mods...),
		WithParser(parser.New(&bytes.Buffer{}, nil)),
		WithRequestIDs(func() string { return "req-1" }),
	}
	return New(r, append(base, opts...)...)
}

func TestWidgetDeletePromptsUnlessYes(t *testing.T) {
	c := &calls{}
	prompter := &countingPrompter{answers: []bool{true}}
	e := newEngine(t, []commands.Module{widgetModule(c)}, WithPrompter(prompter))

	_, err := e.Invoke(context.Background(), []string{"widget", "delete", "--name", "x"})
	require.NoError(t, err)
	require.Len(t, prompter.asked, 1)
	require.Equal(t, "Are you sure you want to perform this operation?", prompter.asked[0])
	require.Len(t, c.delete, 1)

	_, err = e.Invoke(context.Background(), []string{"widget", "delete", "--name", "x", "--yes"})
	require.NoError(t, err)
	require.Len(t, prompter.asked, 1)
	require.Len(t, c.delete, 2)
	require.Equal(t, operation.Args{"name": "x"}, c.delete[1])

	_, err = e.Invoke(context.Background(), []string{"widget", "create", "--name", "x"})
	require.NoError(t, err)
	require.Len(t, prompter.asked, 1)
	require.Len(t, c.create, 1)
}

func TestConfirmationDisabledByConfig(t *testing.T) {
	c := &calls{}
	prompter := &countingPrompter{}
	e := newEngine(t, []commands.Module{widgetModule(c)},
		WithPrompter(prompter),
		WithConfig(mapConfig{"core.disable_confirm_prompt": "true"}))

	_, err := e.Invoke(context.Background(), []string{"widget", "delete", "--name", "x"})
	require.NoError(t, err)
	require.Empty(t, prompter.asked)
	require.Len(t, c.delete, 1)
}

func TestDeclineStopsRemainingElements(t *testing.T) {
	c := &calls{}
	prompter := &countingPrompter{answers: []bool{true, false, true, true}}
	handled := false
	mod := widgetModule(c, commands.WithExceptionHandler(func(err error) error {
		handled = true
		return nil
	}))
	mod.Load = chainLoad(mod.Load, func(r *commands.Registry) {
		r.Argument("widget delete", "name", commands.Override{Multi: commands.Bool(true)})
	})
	e := newEngine(t, []commands.Module{mod}, WithPrompter(prompter))

	_, err := e.Invoke(context.Background(), []string{"widget", "delete", "--name", "a", "--name", "b", "--name", "c", "--name", "d"})
	require.True(t, clierr.Is(err, clierr.CodeCancelled), "got %v", err)
	require.False(t, handled, "cancellation must not reach the exception handler")
	require.Len(t, prompter.asked, 2)
	require.Len(t, c.delete, 1)
	require.Equal(t, "a", c.delete[0]["name"])
}

func chainLoad(load func(*commands.Registry) error, after func(*commands.Registry)) func(*commands.Registry) error {
	return func(r *commands.Registry) error {
		if err := load(r); err != nil {
			return err
		}
		after(r)
		return nil
	}
}

func TestExpansionAggregatesInOrder(t *testing.T) {
	c := &calls{}
	mod := widgetModule(c)
	mod.Load = chainLoad(mod.Load, func(r *commands.Registry) {
		r.Argument("widget create", "name", commands.Override{Multi: commands.Bool(true)})
	})
	tel := &recordingTelemetry{}
	e := newEngine(t, []commands.Module{mod}, WithTelemetry(tel))

	res, err := e.Invoke(context.Background(), []string{"widget", "create", "--name", "a", "--name", "b", "--name", "c"})
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	}, res.Value)
	require.Equal(t, []string{"widget create", "widget create", "widget create"}, tel.commands)
	require.Equal(t, "req-1", tel.requestID)
	require.Equal(t, "req-1", res.RequestID)
}

func registrationModule(failures int, attempts *int) commands.Module {
	return commands.Module{Name: "cache", Load: func(r *commands.Registry) error {
		return r.Register("cache create", commands.Descriptor{Handler: &operation.Operation{
			Name: "create",
			Run: func(context.Context, any, operation.Args) (any, error) {
				*attempts++
				if *attempts <= failures {
					return nil, missingRegistration("Microsoft.Cache")
				}
				return map[string]any{"ok": true}, nil
			},
		}})
	}}
}

func TestMissingRegistrationRegistersOnceAndRetries(t *testing.T) {
	attempts := 0
	registrar := &fakeRegistrar{}
	e := newEngine(t, []commands.Module{registrationModule(1, &attempts)},
		WithRegistrar(registrar, time.Millisecond, func(context.Context, time.Duration) error { return nil }))

	res, err := e.Invoke(context.Background(), []string{"cache", "create"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"ok": true}, res.Value)
	require.Equal(t, []string{"Microsoft.Cache"}, registrar.registered)
	require.Equal(t, 2, attempts)
}

func TestMissingRegistrationTwicePropagatesSecondFailure(t *testing.T) {
	attempts := 0
	registrar := &fakeRegistrar{}
	e := newEngine(t, []commands.Module{registrationModule(2, &attempts)},
		WithRegistrar(registrar, time.Millisecond, func(context.Context, time.Duration) error { return nil }))

	_, err := e.Invoke(context.Background(), []string{"cache", "create"})
	var be *backend.Error
	require.True(t, errors.As(err, &be))
	require.Equal(t, backend.MissingRegistrationCode, be.Code)
	require.Equal(t, []string{"Microsoft.Cache"}, registrar.registered)
	require.Equal(t, 2, attempts)
}

type fakeHandle struct {
	checks int
	result any
}

func (h *fakeHandle) Done(context.Context) (bool, error) {
	h.checks--
	return h.checks <= 0, nil
}

func (h *fakeHandle) Result(context.Context) (any, error) { return h.result, nil }
func (h *fakeHandle) LastResponse() []byte                { return nil }

type instantClock struct{ sleeps int }

func (c *instantClock) Now() time.Time { return time.Unix(0, 0) }

func (c *instantClock) Sleep(context.Context, time.Duration) error {
	c.sleeps++
	return nil
}

func lroModule(h *fakeHandle, seen *operation.Args) commands.Module {
	return commands.Module{Name: "vm", Load: func(r *commands.Registry) error {
		return r.Group("vm", commands.CommandType{}).Custom("start", &operation.Operation{
			Name:   "start",
			Params: []operation.Param{{Name: "name"}, {Name: "no_wait", Type: operation.TypeBool}},
			Run: func(_ context.Context, _ any, args operation.Args) (any, error) {
				*seen = args
				return h, nil
			},
		}, commands.WithNoWait("no_wait"))
	}}
}

func TestLongRunningResultIsAwaited(t *testing.T) {
	h := &fakeHandle{checks: 3, result: map[string]any{"status": "running"}}
	var seen operation.Args
	clock := &instantClock{}
	e := newEngine(t, []commands.Module{lroModule(h, &seen)}, WithPoller(&poller.Poller{Clock: clock}))

	res, err := e.Invoke(context.Background(), []string{"vm", "start", "--name", "v1"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"status": "running"}, res.Value)
	require.Equal(t, 2, clock.sleeps)
	_, hasNoWait := seen["no_wait"]
	require.False(t, hasNoWait)
}

func TestNoWaitSkipsPolling(t *testing.T) {
	h := &fakeHandle{checks: 3, result: "x"}
	var seen operation.Args
	clock := &instantClock{}
	e := newEngine(t, []commands.Module{lroModule(h, &seen)}, WithPoller(&poller.Poller{Clock: clock}))

	res, err := e.Invoke(context.Background(), []string{"vm", "start", "--name", "v1", "--no-wait"})
	require.NoError(t, err)
	require.Nil(t, res.Value)
	require.Equal(t, 0, clock.sleeps)
	require.Equal(t, 3, h.checks)
}

func TestPagedResultIsDrained(t *testing.T) {
	mod := commands.Module{Name: "group", Load: func(r *commands.Registry) error {
		return r.Register("group list", commands.Descriptor{Handler: &operation.Operation{
			Name: "list",
			Run: func(context.Context, any, operation.Args) (any, error) {
				return &backend.SlicePager{Pages: [][]any{{"a", "b"}, {}, {"c"}}}, nil
			},
		}})
	}}
	e := newEngine(t, []commands.Module{mod})

	res, err := e.Invoke(context.Background(), []string{"group", "list"})
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b", "c"}, res.Value)
}

func TestExceptionHandlerIsAuthoritative(t *testing.T) {
	boom := errors.New("boom")
	var handled error
	tel := &recordingTelemetry{}
	mod := commands.Module{Name: "x", Load: func(r *commands.Registry) error {
		return r.Register("x fail", commands.Descriptor{
			Handler: &operation.Operation{Run: func(context.Context, any, operation.Args) (any, error) { return nil, boom }},
			ExceptionHandler: func(err error) error {
				handled = err
				return nil
			},
		})
	}}
	e := newEngine(t, []commands.Module{mod}, WithTelemetry(tel))

	res, err := e.Invoke(context.Background(), []string{"x", "fail"})
	require.NoError(t, err)
	require.Nil(t, res.Value)
	require.ErrorIs(t, handled, boom)
	require.Equal(t, []string{"x-fail"}, tel.exceptions)
}

func TestUnhandledErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("boom")
	mod := commands.Module{Name: "x", Load: func(r *commands.Registry) error {
		return r.Register("x fail", commands.Descriptor{
			Handler: &operation.Operation{Run: func(context.Context, any, operation.Args) (any, error) { return nil, boom }},
		})
	}}
	e := newEngine(t, []commands.Module{mod})

	_, err := e.Invoke(context.Background(), []string{"x", "fail"})
	require.Same(t, boom, err)
}

func TestWelcomeHelpAndUnknown(t *testing.T) {
	e := newEngine(t, []commands.Module{widgetModule(&calls{})})

	res, err := e.Invoke(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, res.Welcome)

	res, err = e.Invoke(context.Background(), []string{"help"})
	require.NoError(t, err)
	require.True(t, res.Help)

	res, err = e.Invoke(context.Background(), []string{"widget", "create", "--help"})
	require.NoError(t, err)
	require.True(t, res.Help)
	require.Equal(t, "widget create", res.Command)

	_, err = e.Invoke(context.Background(), []string{"gadget", "create"})
	require.True(t, clierr.Is(err, clierr.CodeUsage))
}

func TestFailingModuleDoesNotBlockOthers(t *testing.T) {
	tel := &recordingTelemetry{}
	bad := commands.Module{Name: "bad", Load: func(*commands.Registry) error { panic("broken module") }}
	e := newEngine(t, []commands.Module{bad, widgetModule(&calls{})}, WithTelemetry(tel))

	_, err := e.Invoke(context.Background(), []string{"widget", "create", "--name", "a"})
	require.NoError(t, err)
	require.Equal(t, []string{"module-load-bad"}, tel.exceptions)
}

func TestCommandFilterAndValidator(t *testing.T) {
	mod := widgetModule(&calls{})
	mod.Load = chainLoad(mod.Load, func(r *commands.Registry) {
		d, _ := r.Table().Get("widget create")
		d.Validator = func(args operation.Args) error {
			if args.String("name") == "bad" {
				return clierr.New(clierr.CodeUsage, "invalid name")
			}
			return nil
		}
	})
	e := newEngine(t, []commands.Module{mod}, WithCommandFilter(func(name string) error {
		if name == "widget delete" {
			return clierr.New(clierr.CodeBlocked, "blocked")
		}
		return nil
	}))

	_, err := e.Invoke(context.Background(), []string{"widget", "delete", "--name", "x", "--yes"})
	require.True(t, clierr.Is(err, clierr.CodeBlocked))

	_, err = e.Invoke(context.Background(), []string{"widget", "create", "--name", "bad"})
	require.True(t, clierr.Is(err, clierr.CodeUsage))
}
