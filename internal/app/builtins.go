package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/commands"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/model"
	"github.com/LukaszStem/azure-cli/internal/parser"
	"github.com/LukaszStem/azure-cli/internal/policy"
	"github.com/LukaszStem/azure-cli/internal/schema"
	"github.com/LukaszStem/azure-cli/internal/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var builtinNames = []string{"configure", "extension", "schema", "version"}

func isBuiltin(name string) bool {
	return slices.Contains(builtinNames, name)
}

// runBuiltin executes the shell commands that live outside the command table.
func (s *runtimeState) runBuiltin(ctx context.Context, args []string) error {
	root := &cobra.Command{
		Use:           version.CLIName,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			return policy.CheckCommandAllowed(s.settings.EnableCommands, path)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().AddFlagSet(s.globals)
	root.AddCommand(s.newBuiltinCommands()...)
	root.SetArgs(args)
	root.SetOut(s.runner.stdout)
	root.SetErr(s.runner.stderr)
	return root.ExecuteContext(ctx)
}

func (s *runtimeState) newBuiltinCommands() []*cobra.Command {
	return []*cobra.Command{
		s.newConfigureCommand(),
		s.newExtensionCommand(),
		s.newSchemaCommand(),
		newVersionCommand(),
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := s.engine.Table()
			if err := s.engine.Registry().Resolver(s.store).Finalize(table); err != nil {
				return err
			}
			root, err := parser.Tree(table, true)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "build command tree", err)
			}
			root.AddCommand(s.newBuiltinCommands()...)
			data, err := schema.Build(root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, "", "")
		},
	}
}

func (s *runtimeState) newConfigureCommand() *cobra.Command {
	var (
		defaults []string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage persisted CLI defaults",
		Long: "Manage persisted CLI defaults.\n\n" +
			"Defaults are stored in the config file under the defaults section and\n" +
			"fill arguments such as --resource-group when they are omitted.\n" +
			"Pass an empty value (group=) to clear a default.",
		Example: "  az configure --defaults group=myrg location=westus\n  az configure --list-defaults",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				if len(defaults) > 0 || len(args) > 0 {
					return clierr.New(clierr.CodeUsage, "--list-defaults cannot be combined with --defaults")
				}
				return s.emitSuccess(trimRootPath(cmd.CommandPath()), s.listDefaults(), "", "")
			}
			if len(defaults) == 0 {
				return clierr.New(clierr.CodeUsage, "specify --defaults key=value or --list-defaults")
			}
			items := append(append([]string(nil), defaults...), args...)
			updated := make([]model.ConfiguredDefault, 0, len(items))
			for _, item := range items {
				key, value, ok := strings.Cut(item, "=")
				key = strings.TrimSpace(key)
				if !ok || key == "" {
					return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid default %q; use key=value", item))
				}
				s.store.Set(commands.DefaultsSection, key, strings.TrimSpace(value))
				updated = append(updated, model.ConfiguredDefault{Name: key, Value: strings.TrimSpace(value)})
			}
			if err := s.store.Save(cmd.Context()); err != nil {
				return clierr.Wrap(clierr.CodeInternal, "save configuration", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), updated, "", "")
		},
	}
	cmd.Flags().StringArrayVar(&defaults, "defaults", nil, "Space-separated key=value defaults, e.g. group=myrg")
	cmd.Flags().BoolVarP(&list, "list-defaults", "l", false, "List configured defaults")
	return cmd
}

func (s *runtimeState) listDefaults() []model.ConfiguredDefault {
	section := s.store.Section(commands.DefaultsSection)
	items := make([]model.ConfiguredDefault, 0, len(section))
	for _, key := range s.store.Keys(commands.DefaultsSection) {
		if section[key] == "" {
			continue
		}
		items = append(items, model.ConfiguredDefault{Name: key, Value: section[key]})
	}
	return items
}

func (s *runtimeState) newExtensionCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "extension",
		Short: "Inspect installed extensions",
	}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed extensions and their load status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := s.engine.Extensions()
			items := make([]model.ExtensionInfo, 0, len(statuses))
			for _, st := range statuses {
				items = append(items, model.ExtensionInfo{
					Name:          st.Name,
					Version:       st.Version,
					MinCLIVersion: st.MinCLIVersion,
					Summary:       st.Summary,
					Path:          st.Path,
					Loaded:        st.Loaded,
					Error:         st.Error,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, "", "")
		},
	})
	return root
}

const banner = `
     /\
    /  \    _____   _ _  ___ _
   / /\ \  |_  / | | | \'__/ _\
  / ____ \  / /| |_| | | |  __/
 /_/    \_\/___|\__,_|_|  \___|
`

func (s *runtimeState) renderWelcome(table *commands.Table) error {
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	name := lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Width(16)
	faint := lipgloss.NewStyle().Faint(true)

	seen := map[string]bool{}
	var groups []string
	for _, n := range append(table.Names(), builtinNames...) {
		first := strings.Fields(n)[0]
		if !seen[first] {
			seen[first] = true
			groups = append(groups, first)
		}
	}
	slices.Sort(groups)

	var b strings.Builder
	b.WriteString(title.Render(banner))
	b.WriteString("\n\nWelcome to the cool new Azure CLI!\n\n")
	b.WriteString(faint.Render(fmt.Sprintf("Use `%s --version` to display the current version.", version.CLIName)))
	b.WriteString("\nHere are the base commands:\n\n")
	for _, g := range groups {
		b.WriteString("    " + name.Render(g) + "\n")
	}
	_, err := fmt.Fprint(s.runner.stdout, b.String())
	return err
}
