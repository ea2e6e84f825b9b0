package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/charmbracelet/log"
)

// DefaultsSection is the configuration section holding configured defaults.
const DefaultsSection = "defaults"

// ConfigStore reads persisted user configuration.
type ConfigStore interface {
	Get(section, key, fallback string) string
	GetBool(section, key string, fallback bool) bool
}

// Resolver finalizes descriptor arguments: scoped overrides, configured
// defaults and extra arguments.
type Resolver struct {
	overrides []scopedOverride
	extras    map[string][]*Argument
	config    ConfigStore
	logger    *log.Logger
}

func (r *Registry) Resolver(config ConfigStore) *Resolver {
	return &Resolver{
		overrides: r.overrides,
		extras:    r.extras,
		config:    config,
		logger:    r.logger,
	}
}

// Finalize resolves arguments of every command in t. Finalizing a command a
// second time is a no-op.
func (res *Resolver) Finalize(t *Table) error {
	for _, d := range t.All() {
		if err := res.FinalizeCommand(d); err != nil {
			return err
		}
	}
	return nil
}

func (res *Resolver) FinalizeCommand(d *Descriptor) error {
	if d.finalized {
		return nil
	}
	args, err := d.Arguments.Get()
	if err != nil {
		return err
	}
	matching := res.matchingOverrides(d.Name)
	for _, arg := range args {
		for _, so := range matching {
			if so.dest == arg.Dest {
				so.override.apply(arg)
			}
		}
		res.applyConfiguredDefault(d.Name, arg)
	}
	for _, extra := range res.extras[d.Name] {
		if hasDest(args, extra.Dest) {
			continue
		}
		arg := *extra
		for _, so := range matching {
			if so.dest == arg.Dest {
				so.override.apply(&arg)
			}
		}
		res.applyConfiguredDefault(d.Name, &arg)
		args = append(args, &arg)
	}
	d.Arguments = Resolved(args)
	d.finalized = true
	return nil
}

// matchingOverrides returns overrides whose scope is the command or one of its
// ancestors, least specific first so later applications win.
func (res *Resolver) matchingOverrides(command string) []scopedOverride {
	out := []scopedOverride{}
	for _, so := range res.overrides {
		if scopeMatches(so.scope, command) {
			out = append(out, so)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scopeDepth(out[i].scope) < scopeDepth(out[j].scope)
	})
	return out
}

func (res *Resolver) applyConfiguredDefault(command string, arg *Argument) {
	if arg.ConfiguredDefault == "" || arg.configuredDefaultApplied {
		return
	}
	// Never default the primary name of a create command; it could silently
	// target an existing resource.
	if lastWord(command) == "create" && arg.Metavar == "NAME" {
		return
	}
	arg.configuredDefaultApplied = true
	if res.config == nil {
		return
	}
	value := res.config.Get(DefaultsSection, arg.ConfiguredDefault, "")
	if strings.TrimSpace(value) == "" {
		return
	}
	logger := res.logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger.Warn(fmt.Sprintf("Using default '%s' for argument %s", value, arg.Dest))
	arg.Default = value
	arg.Required = false
}

func scopeMatches(scope, command string) bool {
	return scope == "" || scope == command || strings.HasPrefix(command, scope+" ")
}

func scopeDepth(scope string) int {
	return len(strings.Fields(scope))
}

func lastWord(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func hasDest(args []*Argument, dest string) bool {
	for _, a := range args {
		if a.Dest == dest {
			return true
		}
	}
	return false
}
