package commands

import (
	"strings"

	"github.com/LukaszStem/azure-cli/internal/operation"
)

// CommandType holds settings shared by every command of a group.
// OperationsTmpl contains "{}" where the method name goes, e.g.
// "mgmt/resource#ResourceGroups.{}".
type CommandType struct {
	OperationsTmpl string
	Options        []Option
}

// Option sets a descriptor field.
type Option func(*Descriptor)

func WithSummary(s string) Option {
	return func(d *Descriptor) { d.Summary = s }
}

// WithConfirmation requires a confirmation before the command runs. An empty
// message uses the default prompt.
func WithConfirmation(message string) Option {
	return func(d *Descriptor) {
		d.Confirmation = true
		d.ConfirmationMessage = message
	}
}

func WithNoWait(param string) Option {
	return func(d *Descriptor) { d.NoWaitParam = param }
}

func WithClientFactory(f ClientFactory) Option {
	return func(d *Descriptor) { d.ClientFactory = f }
}

func WithValidator(v func(operation.Args) error) Option {
	return func(d *Descriptor) { d.Validator = v }
}

func WithTransform(f func(any) (any, error)) Option {
	return func(d *Descriptor) { d.Transform = f }
}

func WithTableTransformer(f func(any) any) Option {
	return func(d *Descriptor) { d.TableTransformer = f }
}

func WithExceptionHandler(h func(error) error) Option {
	return func(d *Descriptor) { d.ExceptionHandler = h }
}

func WithDeprecation(redirectTo string) Option {
	return func(d *Descriptor) { d.Deprecation = &Deprecation{RedirectTo: redirectTo} }
}

// WithAPIRange restricts the command to profiles that can serve resourceType
// within [minAPI, maxAPI].
func WithAPIRange(resourceType, minAPI, maxAPI string) Option {
	return func(d *Descriptor) {
		d.ResourceType = resourceType
		d.MinAPI = minAPI
		d.MaxAPI = maxAPI
	}
}

// Group registers commands under a common name prefix. Options apply in
// order: command type, group, command.
type Group struct {
	registry *Registry
	name     string
	typ      CommandType
	opts     []Option
}

func (r *Registry) Group(name string, typ CommandType, opts ...Option) *Group {
	return &Group{registry: r, name: CanonicalName(name), typ: typ, opts: opts}
}

// Command registers a command bound to a method of the group's operations
// template.
func (g *Group) Command(name, method string, opts ...Option) error {
	ref := strings.ReplaceAll(g.typ.OperationsTmpl, "{}", method)
	return g.registry.Register(g.fullName(name), g.descriptor(Descriptor{Operation: ref}, opts))
}

// Custom registers a command with a direct handler.
func (g *Group) Custom(name string, handler *operation.Operation, opts ...Option) error {
	return g.registry.Register(g.fullName(name), g.descriptor(Descriptor{Handler: handler}, opts))
}

// Argument registers an override scoped to the group.
func (g *Group) Argument(dest string, o Override) {
	g.registry.Argument(g.name, dest, o)
}

func (g *Group) fullName(name string) string {
	return CanonicalName(g.name + " " + name)
}

func (g *Group) descriptor(d Descriptor, opts []Option) Descriptor {
	for _, set := range [][]Option{g.typ.Options, g.opts, opts} {
		for _, opt := range set {
			opt(&d)
		}
	}
	return d
}
