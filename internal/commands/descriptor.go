// Package commands builds the command table: descriptors registered by
// built-in modules and extensions, their lazily loaded arguments, and the
// argument overrides applied before parsing.
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/operation"
)

// ConfirmParam is the destination of the synthesized --yes flag.
const ConfirmParam = "yes"

// Params is a parsed argument set keyed by argument destination.
type Params = map[string]any

// ClientFactory builds the backend client handed to an operation.
type ClientFactory func(ctx context.Context, args operation.Args) (any, error)

// Deprecation marks a command for removal. RedirectTo names its replacement.
type Deprecation struct {
	RedirectTo string
}

func (d *Deprecation) Message() string {
	text := "This command is deprecating and will be removed in future releases."
	if d.RedirectTo != "" {
		text += fmt.Sprintf(" Use '%s' instead.", d.RedirectTo)
	}
	return text
}

// Descriptor is the registered, bindable definition of one command. Exactly
// one of Operation and Handler is set.
type Descriptor struct {
	Name      string
	Operation string
	Handler   *operation.Operation
	Summary   string

	Confirmation        bool
	ConfirmationMessage string
	NoWaitParam         string

	ClientFactory    ClientFactory
	Validator        func(args operation.Args) error
	Transform        func(result any) (any, error)
	TableTransformer func(result any) any
	// ExceptionHandler replaces error propagation. Returning nil suppresses
	// the error.
	ExceptionHandler func(err error) error
	Deprecation      *Deprecation

	ResourceType string
	MinAPI       string
	MaxAPI       string

	Arguments   *Lazy[[]*Argument]
	Description *Lazy[string]

	op        *Lazy[*operation.Operation]
	finalized bool
}

// Bound returns the operation this descriptor calls, binding it on first use.
func (d *Descriptor) Bound() (*operation.Operation, error) {
	if d.op == nil {
		if d.Handler == nil {
			return nil, fmt.Errorf("command %s is not bound", d.Name)
		}
		d.op = Resolved(d.Handler)
	}
	return d.op.Get()
}

// Argument returns the named argument after loading the argument list.
func (d *Descriptor) Argument(dest string) (*Argument, error) {
	args, err := d.Arguments.Get()
	if err != nil {
		return nil, err
	}
	for _, a := range args {
		if a.Dest == dest {
			return a, nil
		}
	}
	return nil, nil
}

// ConfirmationPrompt is the question shown before running the command.
func (d *Descriptor) ConfirmationPrompt() string {
	if strings.TrimSpace(d.ConfirmationMessage) != "" {
		return d.ConfirmationMessage
	}
	return "Are you sure you want to perform this operation?"
}

// Argument is one parameter of a command as exposed on the command line.
type Argument struct {
	Dest              string
	Options           []string
	Required          bool
	Default           any
	ConfiguredDefault string
	Help              string
	Type              string
	Metavar           string
	Completer         string
	// Multi values are broadcast, one invocation per value.
	Multi bool
	// Ignore hides the argument from the parser; it always takes Default.
	Ignore bool

	configuredDefaultApplied bool
}

// ConfiguredDefaultApplied reports whether the configured default lookup ran.
func (a *Argument) ConfiguredDefaultApplied() bool { return a.configuredDefaultApplied }

// OptionFor derives the long flag for a destination name.
func OptionFor(dest string) string {
	return "--" + strings.ReplaceAll(strings.TrimSpace(dest), "_", "-")
}

func argumentFromParam(p operation.Param) *Argument {
	typ := p.Type
	if typ == "" {
		typ = operation.TypeString
	}
	return &Argument{
		Dest:     p.Name,
		Options:  []string{OptionFor(p.Name)},
		Required: p.Required,
		Default:  p.Default,
		Help:     p.Help,
		Type:     typ,
		Metavar:  p.Metavar,
	}
}

func noWaitArgument(dest string) *Argument {
	return &Argument{
		Dest:    dest,
		Options: []string{"--no-wait"},
		Type:    operation.TypeBool,
		Default: false,
		Help:    "Do not wait for the long-running operation to finish.",
	}
}

func confirmArgument() *Argument {
	return &Argument{
		Dest:    ConfirmParam,
		Options: []string{"--yes", "-y"},
		Type:    operation.TypeBool,
		Default: false,
		Help:    "Do not prompt for confirmation.",
	}
}

// Override is a partial argument update registered against a scope.
type Override struct {
	Options           []string
	Required          *bool
	Default           any
	ConfiguredDefault string
	Help              string
	Type              string
	Metavar           string
	Completer         string
	Multi             *bool
	Ignore            *bool
}

// Bool returns a pointer for the optional boolean fields of Override.
func Bool(v bool) *bool { return &v }

func (o Override) apply(a *Argument) {
	if len(o.Options) > 0 {
		a.Options = append([]string(nil), o.Options...)
	}
	if o.Required != nil {
		a.Required = *o.Required
	}
	if o.Default != nil {
		a.Default = o.Default
	}
	if o.ConfiguredDefault != "" {
		a.ConfiguredDefault = o.ConfiguredDefault
	}
	if o.Help != "" {
		a.Help = o.Help
	}
	if o.Type != "" {
		a.Type = o.Type
	}
	if o.Metavar != "" {
		a.Metavar = o.Metavar
	}
	if o.Completer != "" {
		a.Completer = o.Completer
	}
	if o.Multi != nil {
		a.Multi = *o.Multi
	}
	if o.Ignore != nil {
		a.Ignore = *o.Ignore
	}
}
