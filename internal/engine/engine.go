// Package engine runs one command invocation end to end: build the command
// table, resolve and parse arguments, then call the bound operation once per
// expanded argument set.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
	"github.com/LukaszStem/azure-cli/internal/commands"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/expand"
	"github.com/LukaszStem/azure-cli/internal/extension"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/out"
	"github.com/LukaszStem/azure-cli/internal/parser"
	"github.com/LukaszStem/azure-cli/internal/poller"
	"github.com/LukaszStem/azure-cli/internal/prompt"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Parser turns the tokens after a command name into a parsed argument set.
// A nil descriptor asks for group help or an unknown-command error.
type Parser interface {
	Parse(ctx context.Context, table *commands.Table, d *commands.Descriptor, args []string) (commands.Params, error)
}

type Telemetry interface {
	RecordCommand(name, output string, flags []string)
	RecordException(err error, fault string)
}

// Result is the outcome of a successful invocation.
type Result struct {
	Value            any
	Command          string
	RequestID        string
	Extension        string
	TableTransformer func(any) any
	// Welcome is set when no arguments were given.
	Welcome bool
	// Help is set when help text was printed instead of running a command.
	Help bool
}

type Engine struct {
	registry   *commands.Registry
	modules    []commands.Module
	extensions *extension.Loader
	config     commands.ConfigStore
	parser     Parser
	prompter   prompt.Prompter
	poller     *poller.Poller
	registrar  backend.Registrar
	telemetry  Telemetry
	logger     *log.Logger
	filter     func(command string) error

	outputMode           string
	registrationInterval time.Duration
	sleep                backend.Sleeper
	newRequestID         func() string

	built    bool
	statuses []extension.Status
}

type Option func(*Engine)

func WithModules(mods ...commands.Module) Option {
	return func(e *Engine) { e.modules = append(e.modules, mods...) }
}

func WithExtensions(l *extension.Loader) Option {
	return func(e *Engine) { e.extensions = l }
}

func WithConfig(c commands.ConfigStore) Option {
	return func(e *Engine) { e.config = c }
}

func WithParser(p Parser) Option {
	return func(e *Engine) { e.parser = p }
}

func WithPrompter(p prompt.Prompter) Option {
	return func(e *Engine) { e.prompter = p }
}

func WithPoller(p *poller.Poller) Option {
	return func(e *Engine) { e.poller = p }
}

// WithRegistrar enables automatic resource provider registration.
func WithRegistrar(r backend.Registrar, interval time.Duration, sleep backend.Sleeper) Option {
	return func(e *Engine) {
		e.registrar = r
		e.registrationInterval = interval
		e.sleep = sleep
	}
}

func WithTelemetry(t Telemetry) Option {
	return func(e *Engine) { e.telemetry = t }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCommandFilter rejects commands before they are parsed.
func WithCommandFilter(f func(command string) error) Option {
	return func(e *Engine) { e.filter = f }
}

// WithOutputMode names the output format recorded in telemetry.
func WithOutputMode(mode string) Option {
	return func(e *Engine) { e.outputMode = mode }
}

func WithRequestIDs(f func() string) Option {
	return func(e *Engine) { e.newRequestID = f }
}

func New(registry *commands.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		prompter:     prompt.Always(false),
		poller:       &poller.Poller{},
		telemetry:    noTelemetry{},
		logger:       logging.Discard(),
		newRequestID: timeBasedID,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.poller.Logger == nil {
		e.poller.Logger = e.logger
	}
	return e
}

func timeBasedID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type noTelemetry struct{}

func (noTelemetry) RecordCommand(string, string, []string) {}
func (noTelemetry) RecordException(error, string)          {}

func (e *Engine) Registry() *commands.Registry { return e.registry }

// Table builds the command table on first use: built-in modules first, then
// extensions so they can override built-in commands.
func (e *Engine) Table() *commands.Table {
	if !e.built {
		e.built = true
		for name, err := range e.registry.LoadModules(e.modules) {
			e.telemetry.RecordException(err, "module-load-"+name)
		}
		if e.extensions != nil {
			e.statuses = e.extensions.LoadAll(e.registry)
			for _, s := range e.statuses {
				if !s.Loaded && s.Error != "" {
					e.telemetry.RecordException(errors.New(s.Error), "extension-load-"+s.Name)
				}
			}
		}
	}
	return e.registry.Table()
}

// Extensions returns the load status of every discovered extension.
func (e *Engine) Extensions() []extension.Status {
	e.Table()
	return append([]extension.Status(nil), e.statuses...)
}

// Invoke runs the command named by args.
func (e *Engine) Invoke(ctx context.Context, args []string) (Result, error) {
	requestID := e.newRequestID()
	ctx = backend.WithRequestID(ctx, requestID)
	if t, ok := e.telemetry.(interface{ SetRequestID(string) }); ok {
		t.SetRequestID(requestID)
	}

	table := e.Table()

	if len(args) == 0 {
		return Result{Welcome: true, RequestID: requestID}, nil
	}
	if args[0] == "help" {
		args = append([]string{"--help"}, args[1:]...)
	}

	d, consumed := table.Lookup(args)
	if d == nil {
		if e.parser == nil {
			return Result{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("'%s' is misspelled or not recognized by the system.", strings.Join(args, " ")))
		}
		if _, err := e.parser.Parse(ctx, table, nil, args); err != nil {
			if errors.Is(err, parser.ErrHelp) {
				return Result{Help: true, RequestID: requestID}, nil
			}
			return Result{}, err
		}
		return Result{Help: true, RequestID: requestID}, nil
	}
	if e.filter != nil {
		if err := e.filter(d.Name); err != nil {
			return Result{}, err
		}
	}

	if err := e.registry.Resolver(e.config).Finalize(table.Subset(d.Name)); err != nil {
		return Result{}, err
	}

	params, err := e.parse(ctx, table, d, args[consumed:])
	if err != nil {
		if errors.Is(err, parser.ErrHelp) {
			return Result{Help: true, Command: d.Name, RequestID: requestID}, nil
		}
		return Result{}, err
	}

	res := Result{Command: d.Name, RequestID: requestID, TableTransformer: d.TableTransformer}
	if src, ok := e.registry.Provenance().Lookup(d.Name); ok {
		res.Extension = src.Extension
		e.logger.Warn(src.Warning())
	}
	if d.Deprecation != nil {
		e.logger.Warn(d.Deprecation.Message())
	}

	value, err := e.execute(ctx, d, params)
	if err != nil {
		if clierr.Is(err, clierr.CodeCancelled) {
			return Result{}, err
		}
		e.telemetry.RecordException(err, faultName(d.Name))
		if d.ExceptionHandler != nil {
			if herr := d.ExceptionHandler(err); herr != nil {
				return Result{}, herr
			}
			return res, nil
		}
		return Result{}, err
	}
	res.Value = value
	return res, nil
}

func (e *Engine) parse(ctx context.Context, table *commands.Table, d *commands.Descriptor, args []string) (commands.Params, error) {
	if e.parser != nil {
		return e.parser.Parse(ctx, table, d, args)
	}
	arguments, err := d.Arguments.Get()
	if err != nil {
		return nil, err
	}
	params := commands.Params{}
	for _, a := range arguments {
		params[a.Dest] = a.Default
	}
	return params, nil
}

func (e *Engine) execute(ctx context.Context, d *commands.Descriptor, params commands.Params) (any, error) {
	op, err := d.Bound()
	if err != nil {
		return nil, err
	}
	elements, err := expand.Expand(params)
	if err != nil {
		return nil, err
	}
	flags := setFlags(params)

	results := []any{}
	for element := range elements {
		args := operation.Args(element)
		if d.Validator != nil {
			if err := d.Validator(args); err != nil {
				return nil, err
			}
		}
		if err := e.confirm(d, args); err != nil {
			return nil, err
		}

		noWait := d.NoWaitParam != "" && args.Bool(d.NoWaitParam)
		callArgs := filterParams(d, args)

		var client any
		if d.ClientFactory != nil {
			client, err = d.ClientFactory(ctx, callArgs)
			if err != nil {
				return nil, err
			}
		}

		value, err := e.callWithRegistration(ctx, op, client, callArgs)
		if err != nil {
			return nil, err
		}

		if noWait {
			value = nil
		}
		switch v := value.(type) {
		case poller.Handle:
			value, err = e.poller.Wait(ctx, v, "Starting "+d.Name)
			if err != nil {
				return nil, err
			}
		case backend.Pager:
			value, err = backend.Drain(ctx, v)
			if err != nil {
				return nil, err
			}
		}

		results = append(results, out.Normalize(value))
		e.telemetry.RecordCommand(d.Name, e.outputMode, flags)
	}

	var aggregate any = results
	if len(results) == 1 {
		aggregate = results[0]
	}
	if d.Transform != nil && aggregate != nil {
		transformed, err := d.Transform(aggregate)
		if err != nil {
			return nil, err
		}
		aggregate = out.Normalize(transformed)
	}
	return aggregate, nil
}

func (e *Engine) confirm(d *commands.Descriptor, args operation.Args) error {
	if !d.Confirmation || args.Bool(commands.ConfirmParam) {
		return nil
	}
	if e.config != nil && e.config.GetBool("core", "disable_confirm_prompt", false) {
		return nil
	}
	ok, err := e.prompter.Confirm(d.ConfirmationPrompt())
	if err != nil {
		return err
	}
	if !ok {
		return clierr.New(clierr.CodeCancelled, "Operation cancelled.")
	}
	return nil
}

// filterParams drops the engine-owned switches before the operation call.
func filterParams(d *commands.Descriptor, args operation.Args) operation.Args {
	out := args.Clone()
	delete(out, commands.ConfirmParam)
	if d.NoWaitParam != "" {
		delete(out, d.NoWaitParam)
	}
	return out
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeNeedsRegistration
	outcomeFailed
)

type outcome struct {
	kind      outcomeKind
	value     any
	namespace string
	err       error
}

func call(ctx context.Context, op *operation.Operation, client any, args operation.Args) outcome {
	value, err := op.Call(ctx, client, args)
	if err == nil {
		return outcome{kind: outcomeOK, value: value}
	}
	if ns, ok := backend.MissingRegistration(err); ok {
		return outcome{kind: outcomeNeedsRegistration, namespace: ns, err: err}
	}
	return outcome{kind: outcomeFailed, err: err}
}

// callWithRegistration registers a missing resource provider at most once and
// retries the call.
func (e *Engine) callWithRegistration(ctx context.Context, op *operation.Operation, client any, args operation.Args) (any, error) {
	registered := false
	for {
		res := call(ctx, op, client, args)
		switch res.kind {
		case outcomeOK:
			return res.value, nil
		case outcomeNeedsRegistration:
			if registered || e.registrar == nil {
				return nil, res.err
			}
			registered = true
			e.logger.Warn(fmt.Sprintf("Resource provider '%s' used by this operation is not registered. We are registering for you.", res.namespace))
			if err := backend.RegisterAndWait(ctx, e.registrar, res.namespace, e.registrationInterval, e.sleep); err != nil {
				return nil, clierr.Wrap(clierr.CodeMissingRegistration, fmt.Sprintf("failed to register resource provider '%s'", res.namespace), err)
			}
			e.logger.Warn("Registration succeeded.")
		default:
			return nil, res.err
		}
	}
}

// setFlags lists the argument destinations given a value, for telemetry.
func setFlags(params commands.Params) []string {
	out := []string{}
	for k, v := range params {
		switch t := v.(type) {
		case nil:
			continue
		case bool:
			if !t {
				continue
			}
		case string:
			if t == "" {
				continue
			}
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func faultName(command string) string {
	return strings.ReplaceAll(command, " ", "-")
}
