package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/LukaszStem/azure-cli/internal/backend"
	"github.com/LukaszStem/azure-cli/internal/commands"
	"github.com/LukaszStem/azure-cli/internal/config"
	"github.com/LukaszStem/azure-cli/internal/engine"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/extension"
	"github.com/LukaszStem/azure-cli/internal/fileargs"
	"github.com/LukaszStem/azure-cli/internal/httpx"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/LukaszStem/azure-cli/internal/model"
	"github.com/LukaszStem/azure-cli/internal/modules"
	"github.com/LukaszStem/azure-cli/internal/modules/arm"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/out"
	"github.com/LukaszStem/azure-cli/internal/parser"
	"github.com/LukaszStem/azure-cli/internal/policy"
	"github.com/LukaszStem/azure-cli/internal/poller"
	"github.com/LukaszStem/azure-cli/internal/profile"
	"github.com/LukaszStem/azure-cli/internal/prompt"
	"github.com/LukaszStem/azure-cli/internal/telemetry"
	"github.com/LukaszStem/azure-cli/internal/version"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	// prompter and clock replace the terminal prompt and wall clock in tests.
	prompter prompt.Prompter
	clock    poller.Clock
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return NewRunnerWithIO(strings.NewReader(""), stdout, stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	globals     *pflag.FlagSet
	logger      *log.Logger
	store       *config.Store
	telemetry   *telemetry.Store
	engine      *engine.Engine
	lastCommand string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, flags: config.GlobalFlags{Retries: -1}}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := state.run(ctx, args)
	err = normalizeRunError(err)
	if state.telemetry != nil {
		_ = state.telemetry.Close()
	}
	if err == nil {
		return 0
	}

	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) run(ctx context.Context, args []string) error {
	s.globals = s.newGlobalFlags()
	globalArgs, rest := splitGlobalFlags(s.globals, args)
	if err := s.globals.Parse(globalArgs); err != nil {
		return clierr.Wrap(clierr.CodeUsage, "parse global flags", err)
	}

	settings, err := config.Load(s.flags)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
	}
	s.settings = settings
	s.logger = logging.New(s.runner.stderr, logging.LevelFromFlags(settings.Debug, settings.Verbose, settings.OnlyShowErrors, settings.LogLevel))

	rest, err = fileargs.Expand(rest, s.runner.stdin)
	if err != nil {
		return err
	}

	store, err := config.OpenStore(settings.ConfigPath)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "open configuration store", err)
	}
	s.store = store

	eng, err := s.newEngine(ctx)
	if err != nil {
		return err
	}
	s.engine = eng

	if len(rest) > 0 && rest[0] == "--version" {
		rest[0] = "version"
	}
	if len(rest) > 0 && isBuiltin(rest[0]) {
		return s.runBuiltin(ctx, rest)
	}

	if d, _ := eng.Table().Lookup(rest); d != nil {
		s.lastCommand = d.Name
	}
	res, err := eng.Invoke(ctx, rest)
	if err != nil {
		return err
	}
	switch {
	case res.Welcome:
		return s.renderWelcome(eng.Table())
	case res.Help:
		return nil
	}
	return s.emitSuccess(res.Command, res.Value, res.RequestID, res.Extension, out.WithTableTransformer(res.TableTransformer))
}

func (s *runtimeState) newGlobalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet(version.CLIName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&s.flags.Output, "output", "o", "", "Output format: json or plain")
	fs.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	fs.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	fs.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths or groups (comma-separated)")
	fs.StringVar(&s.flags.Timeout, "timeout", "", "Backend request timeout")
	fs.IntVar(&s.flags.Retries, "retries", -1, "Retries per backend request")
	fs.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&s.flags.Debug, "debug", false, "Increase logging verbosity to show all debug logs")
	fs.BoolVar(&s.flags.Verbose, "verbose", false, "Increase logging verbosity")
	fs.BoolVar(&s.flags.OnlyShowErrors, "only-show-errors", false, "Only show errors, suppressing warnings")
	return fs
}

// splitGlobalFlags moves the tokens of flags known to fs out of args so they
// can be parsed before the command table exists. Everything after "--" is
// left in place.
func splitGlobalFlags(fs *pflag.FlagSet, args []string) (globals, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		f, inline := lookupFlag(fs, arg)
		if f == nil {
			rest = append(rest, arg)
			continue
		}
		globals = append(globals, arg)
		if !inline && f.NoOptDefVal == "" && i+1 < len(args) {
			i++
			globals = append(globals, args[i])
		}
	}
	return globals, rest
}

func lookupFlag(fs *pflag.FlagSet, arg string) (*pflag.Flag, bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return nil, false
	}
	name, _, inline := strings.Cut(strings.TrimLeft(arg, "-"), "=")
	if strings.HasPrefix(arg, "--") {
		return fs.Lookup(name), inline
	}
	if len(name) == 1 {
		return fs.ShorthandLookup(name), inline
	}
	// -ojson
	if f := fs.ShorthandLookup(name[:1]); f != nil && f.NoOptDefVal == "" {
		return f, true
	}
	return nil, false
}

func (s *runtimeState) newEngine(ctx context.Context) (*engine.Engine, error) {
	settings := s.settings

	p, err := profile.Builtin().Get(settings.Profile)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "select API profile", err)
	}
	ops, err := operation.NewRegistry(modules.Operations()...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "register operations", err)
	}
	registry := commands.NewRegistry(operation.NewBinder(ops), p, commands.WithLogger(s.logger))

	httpClient := httpx.New(settings.Timeout, settings.Retries,
		httpx.WithBaseURL(settings.Endpoint),
		httpx.WithBearerToken(settings.AccessToken),
	)
	factory := arm.Factory(httpClient, settings.SubscriptionID)

	pl := &poller.Poller{
		Interval: settings.PollInterval,
		Clock:    s.runner.clock,
		Progress: poller.NewProgress(s.runner.stderr),
		Logger:   s.logger,
	}
	opts := []engine.Option{
		engine.WithModules(modules.Builtin(factory)...),
		engine.WithExtensions(extension.NewLoader(settings.ExtensionDir, modules.Extensions(factory), s.logger)),
		engine.WithConfig(s.store),
		engine.WithParser(parser.New(s.runner.stdout, s.globals)),
		engine.WithPrompter(s.prompter()),
		engine.WithPoller(pl),
		engine.WithTelemetry(s.openTelemetry(ctx)),
		engine.WithLogger(s.logger),
		engine.WithOutputMode(settings.OutputMode),
		engine.WithCommandFilter(func(command string) error {
			return policy.CheckCommandAllowed(settings.EnableCommands, command)
		}),
	}
	if strings.TrimSpace(settings.SubscriptionID) != "" {
		client := arm.New(httpClient, settings.SubscriptionID)
		pl.Lookup = arm.ActivityLookup(client)
		var sleep backend.Sleeper
		if s.runner.clock != nil {
			sleep = s.runner.clock.Sleep
		}
		opts = append(opts, engine.WithRegistrar(arm.Registrar{Client: client}, settings.RegistrationInterval, sleep))
	}
	return engine.New(registry, opts...), nil
}

func (s *runtimeState) prompter() prompt.Prompter {
	if s.runner.prompter != nil {
		return s.runner.prompter
	}
	return prompt.NewTerminal(s.runner.stdin, s.runner.stderr)
}

// openTelemetry returns the event recorder. Telemetry never fails a command:
// when the store cannot be opened events are dropped.
func (s *runtimeState) openTelemetry(ctx context.Context) engine.Telemetry {
	if !s.settings.TelemetryEnabled {
		return telemetry.Nop{}
	}
	store, err := telemetry.Open(s.settings.TelemetryPath, s.settings.TelemetryLockPath)
	if err != nil {
		s.logger.Debug("telemetry disabled", "err", err)
		return telemetry.Nop{}
	}
	s.telemetry = store
	return telemetry.NewRecorder(ctx, store, s.logger)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, requestID, ext string, opts ...out.Option) error {
	if requestID == "" {
		requestID = newRequestID()
	}
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: nil,
		Meta: model.EnvelopeMeta{
			RequestID: requestID,
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Profile:   s.profileName(),
			Extension: ext,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings, opts...)
}

func (s *runtimeState) renderError(err error) {
	commandPath := s.lastCommand
	if commandPath == "" {
		commandPath = version.CLIName
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.CodeInternal)
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Profile:   s.profileName(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) profileName() string {
	if s.engine == nil {
		return ""
	}
	if p := s.engine.Registry().Profile(); p != nil {
		return p.Name
	}
	return ""
}

func newRequestID() string {
	return uuid.NewString()
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	var bErr *backend.Error
	if errors.As(err, &bErr) {
		return clierr.Wrap(clierr.CodeBackend, "backend request failed", err)
	}
	if errors.Is(err, context.Canceled) {
		return clierr.Wrap(clierr.CodeCancelled, "operation interrupted", err)
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
