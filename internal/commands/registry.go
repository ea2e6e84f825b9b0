package commands

import (
	"fmt"
	"runtime/debug"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/profile"
	"github.com/charmbracelet/log"
)

type scopedOverride struct {
	scope    string
	dest     string
	override Override
}

// Registry collects command registrations for one invocation. It is not safe
// for concurrent use.
type Registry struct {
	binder  *operation.Binder
	profile *profile.Profile
	logger  *log.Logger

	table      *Table
	provenance Provenance
	overrides  []scopedOverride
	extras     map[string][]*Argument
	source     string
	skipped    []string
}

type RegistryOption func(*Registry)

func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(binder *operation.Binder, p *profile.Profile, opts ...RegistryOption) *Registry {
	r := &Registry{
		binder:     binder,
		profile:    p,
		logger:     logging.Discard(),
		table:      NewTable(),
		provenance: Provenance{},
		extras:     map[string][]*Argument{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Table() *Table { return r.table }

func (r *Registry) Provenance() Provenance { return r.provenance }

func (r *Registry) Profile() *profile.Profile { return r.profile }

// Skipped lists commands left out because the profile cannot serve their API
// range.
func (r *Registry) Skipped() []string { return append([]string(nil), r.skipped...) }

// Register adds d to the table under its canonical name. A later registration
// of the same name replaces the earlier one.
func (r *Registry) Register(name string, d Descriptor) error {
	name = CanonicalName(name)
	if name == "" {
		return clierr.New(clierr.CodeArgumentConflict, "command name is required")
	}
	hasOp := strings.TrimSpace(d.Operation) != ""
	hasHandler := d.Handler != nil
	if hasOp == hasHandler {
		return clierr.New(clierr.CodeArgumentConflict,
			fmt.Sprintf("command %s: must specify exactly one of either operation or handler", name))
	}
	if d.ResourceType != "" && !profile.Supported(r.profile, d.ResourceType, d.MinAPI, d.MaxAPI) {
		r.logger.Debug("skipping command unsupported by profile", "command", name, "resource_type", d.ResourceType)
		r.skipped = append(r.skipped, name)
		return nil
	}

	desc := d
	desc.Name = name
	if hasHandler {
		desc.op = Resolved(d.Handler)
	} else {
		ref := d.Operation
		desc.op = NewLazy(func() (*operation.Operation, error) {
			return r.binder.Bind(ref, r.profile)
		})
	}
	dp := &desc
	dp.Arguments = NewLazy(func() ([]*Argument, error) { return synthesizeArguments(dp) })
	dp.Description = NewLazy(func() (string, error) { return describe(dp) })

	replaced := r.table.Set(dp)
	if r.source != "" {
		r.provenance[name] = Source{Extension: r.source, Overrides: replaced}
	} else {
		delete(r.provenance, name)
	}
	return nil
}

// Argument registers an override for dest on every command under scope. The
// empty scope applies to all commands.
func (r *Registry) Argument(scope, dest string, o Override) {
	r.overrides = append(r.overrides, scopedOverride{scope: CanonicalName(scope), dest: dest, override: o})
}

// ExtraArgument adds an argument that the command's operation does not
// declare.
func (r *Registry) ExtraArgument(command, dest string, a Argument) {
	command = CanonicalName(command)
	arg := a
	arg.Dest = dest
	if len(arg.Options) == 0 {
		arg.Options = []string{OptionFor(dest)}
	}
	if arg.Type == "" {
		arg.Type = operation.TypeString
	}
	r.extras[command] = append(r.extras[command], &arg)
}

// WithSource runs fn with registrations attributed to the named extension.
func (r *Registry) WithSource(extension string, fn func() error) error {
	prev := r.source
	r.source = extension
	defer func() { r.source = prev }()
	return fn()
}

// Module is a built-in command provider.
type Module struct {
	Name string
	Load func(r *Registry) error
}

// LoadModules loads each module in turn. A failing module is logged and
// reported but does not stop the others.
func (r *Registry) LoadModules(mods []Module) map[string]error {
	failures := map[string]error{}
	for _, m := range mods {
		if err := safeLoad(m.Name, func() error { return m.Load(r) }); err != nil {
			r.logger.Warn(fmt.Sprintf("Unable to load command module '%s'.", m.Name), "err", err)
			failures[m.Name] = err
		}
	}
	return failures
}

func safeLoad(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v\n%s", name, rec, debug.Stack())
		}
	}()
	return fn()
}

// SafeCall runs fn and converts a panic into an error.
func SafeCall(name string, fn func() error) error {
	return safeLoad(name, fn)
}

func synthesizeArguments(d *Descriptor) ([]*Argument, error) {
	op, err := d.Bound()
	if err != nil {
		return nil, err
	}
	args := make([]*Argument, 0, len(op.Params)+2)
	for _, p := range op.Params {
		if d.NoWaitParam != "" && p.Name == d.NoWaitParam {
			continue
		}
		args = append(args, argumentFromParam(p))
	}
	if d.NoWaitParam != "" {
		args = append(args, noWaitArgument(d.NoWaitParam))
	}
	if d.Confirmation {
		args = append(args, confirmArgument())
	}
	return args, nil
}

func describe(d *Descriptor) (string, error) {
	op, err := d.Bound()
	if err != nil {
		return "", err
	}
	switch {
	case strings.TrimSpace(op.Description) != "":
		return op.Description, nil
	case strings.TrimSpace(d.Summary) != "":
		return d.Summary, nil
	default:
		return op.Summary, nil
	}
}
