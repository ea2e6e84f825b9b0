// Package parser turns command-line tokens into a parsed argument set for a
// command descriptor. Each invocation builds a throwaway cobra tree so help
// output and flag errors follow the usual cobra conventions.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/commands"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/expand"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ErrHelp is returned when help was printed instead of parsing.
var ErrHelp = errors.New("help requested")

type Parser struct {
	out     io.Writer
	globals *pflag.FlagSet
}

// New returns a parser writing help to out. globals, when set, is shown as
// the global flags of every command.
func New(out io.Writer, globals *pflag.FlagSet) *Parser {
	return &Parser{out: out, globals: globals}
}

// Parse parses args for d. args are the tokens after the command name. With
// a nil descriptor the tokens name a command group: its help is printed, or
// an unknown-command error is returned.
func (p *Parser) Parse(ctx context.Context, table *commands.Table, d *commands.Descriptor, args []string) (commands.Params, error) {
	if d == nil {
		return nil, p.groupHelp(ctx, table, args)
	}

	arguments, err := d.Arguments.Get()
	if err != nil {
		return nil, err
	}

	root := p.newRoot()
	parent := root
	words := strings.Fields(d.Name)
	for _, w := range words[:len(words)-1] {
		g := &cobra.Command{Use: w}
		parent.AddCommand(g)
		parent = g
	}

	ran := false
	leaf := &cobra.Command{
		Use:   words[len(words)-1],
		Short: d.Summary,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ran = true
			return nil
		},
	}
	if d.Description != nil {
		if long, err := d.Description.Get(); err == nil {
			leaf.Long = long
		}
	}
	if d.Deprecation != nil {
		leaf.Long = strings.TrimSpace(leaf.Long + "\n\n" + d.Deprecation.Message())
	}
	parent.AddCommand(leaf)

	values, err := bindFlags(leaf.Flags(), arguments)
	if err != nil {
		return nil, err
	}
	for _, a := range arguments {
		if a.Required && !a.Ignore {
			if name, _ := flagNames(a); name != "" {
				_ = leaf.MarkFlagRequired(name)
			}
		}
	}

	root.SetArgs(append(append([]string(nil), words...), args...))
	if _, err := root.ExecuteContextC(ctx); err != nil {
		return nil, usageError(err)
	}
	if !ran {
		return nil, ErrHelp
	}

	params := commands.Params{}
	for _, a := range arguments {
		v, err := values.value(leaf.Flags(), a)
		if err != nil {
			return nil, err
		}
		params[a.Dest] = v
	}
	return params, nil
}

func (p *Parser) newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           version.CLIName,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(p.out)
	root.SetErr(p.out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	if p.globals != nil {
		root.PersistentFlags().AddFlagSet(p.globals)
	}
	return root
}

func (p *Parser) groupHelp(ctx context.Context, table *commands.Table, args []string) error {
	words := []string{}
	for _, tok := range args {
		if strings.HasPrefix(tok, "-") {
			break
		}
		words = append(words, tok)
	}
	group := strings.Join(words, " ")
	if group != "" && !isGroup(table, group) {
		parent := version.CLIName
		for n := len(words) - 1; n > 0; n-- {
			if prefix := strings.Join(words[:n], " "); isGroup(table, prefix) {
				parent = version.CLIName + " " + prefix
				break
			}
		}
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("'%s' is misspelled or not recognized by the system. See '%s --help'.", group, parent))
	}

	root := p.newRoot()
	if err := addTree(root, table, false); err != nil {
		return err
	}
	root.SetArgs(append(words, "--help"))
	if _, err := root.ExecuteContextC(ctx); err != nil {
		return usageError(err)
	}
	return ErrHelp
}

func isGroup(table *commands.Table, name string) bool {
	for _, g := range table.Groups() {
		if g == name {
			return true
		}
	}
	return false
}

// Tree builds a cobra command tree holding every command in table. With
// flags set each leaf carries its argument flags, which loads every command's
// arguments.
func Tree(table *commands.Table, flags bool) (*cobra.Command, error) {
	root := &cobra.Command{Use: version.CLIName}
	if err := addTree(root, table, flags); err != nil {
		return nil, err
	}
	return root, nil
}

func addTree(root *cobra.Command, table *commands.Table, flags bool) error {
	groups := map[string]*cobra.Command{"": root}
	var ensure func(path []string) *cobra.Command
	ensure = func(path []string) *cobra.Command {
		key := strings.Join(path, " ")
		if c, ok := groups[key]; ok {
			return c
		}
		parent := ensure(path[:len(path)-1])
		c := &cobra.Command{Use: path[len(path)-1], Short: "Commands to manage " + key + "."}
		parent.AddCommand(c)
		groups[key] = c
		return c
	}

	for name, d := range table.All() {
		words := strings.Fields(name)
		parent := ensure(words[:len(words)-1])
		leaf := &cobra.Command{
			Use:   words[len(words)-1],
			Short: d.Summary,
			RunE:  func(*cobra.Command, []string) error { return nil },
		}
		if d.Deprecation != nil {
			leaf.Deprecated = d.Deprecation.Message()
		}
		if flags {
			arguments, err := d.Arguments.Get()
			if err != nil {
				return fmt.Errorf("load arguments of %s: %w", name, err)
			}
			if _, err := bindFlags(leaf.Flags(), arguments); err != nil {
				return err
			}
			for _, a := range arguments {
				if a.Required && !a.Ignore {
					if primary, _ := flagNames(a); primary != "" {
						_ = leaf.MarkFlagRequired(primary)
					}
				}
			}
		}
		parent.AddCommand(leaf)
	}
	return nil
}

func usageError(err error) error {
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
}

// flagNames returns the primary long flag name and the single-letter
// shorthand of a, without dashes.
func flagNames(a *commands.Argument) (string, string) {
	long, short := "", ""
	for _, opt := range a.Options {
		switch {
		case strings.HasPrefix(opt, "--"):
			if long == "" {
				long = strings.TrimPrefix(opt, "--")
			}
		case strings.HasPrefix(opt, "-") && len(opt) == 2:
			if short == "" {
				short = opt[1:]
			}
		}
	}
	if long == "" {
		long = strings.TrimPrefix(commands.OptionFor(a.Dest), "--")
	}
	return long, short
}

func aliases(a *commands.Argument, primary string) []string {
	out := []string{}
	for _, opt := range a.Options {
		if strings.HasPrefix(opt, "--") {
			if name := strings.TrimPrefix(opt, "--"); name != primary {
				out = append(out, name)
			}
		}
	}
	return out
}

type flagValues map[string]string

// bindFlags declares one flag per visible argument and maps long aliases to
// the primary name.
func bindFlags(fs *pflag.FlagSet, arguments []*commands.Argument) (flagValues, error) {
	names := flagValues{}
	alias := map[string]string{}
	for _, a := range arguments {
		if a.Ignore {
			continue
		}
		long, short := flagNames(a)
		if fs.Lookup(long) != nil {
			return nil, clierr.New(clierr.CodeArgumentConflict, fmt.Sprintf("argument %s conflicts with an existing option --%s", a.Dest, long))
		}
		if short != "" && fs.ShorthandLookup(short) != nil {
			short = ""
		}
		names[a.Dest] = long
		for _, al := range aliases(a, long) {
			alias[al] = long
		}

		help := a.Help
		if a.ConfiguredDefault != "" {
			help = strings.TrimSpace(help + fmt.Sprintf(" You can configure the default using `%s configure --defaults %s=<name>`.", version.CLIName, a.ConfiguredDefault))
		}
		switch {
		case a.Multi:
			fs.StringArrayP(long, short, nil, help)
		case a.Type == operation.TypeBool:
			def, _ := a.Default.(bool)
			fs.BoolP(long, short, def, help)
		case a.Type == operation.TypeInt:
			def, _ := a.Default.(int)
			fs.IntP(long, short, def, help)
		case a.Type == operation.TypeList:
			def, _ := a.Default.([]string)
			fs.StringSliceP(long, short, def, help)
		default:
			def := ""
			if a.Default != nil {
				def = fmt.Sprint(a.Default)
			}
			fs.StringP(long, short, def, help)
		}
	}
	if len(alias) > 0 {
		fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
			if primary, ok := alias[name]; ok {
				return pflag.NormalizedName(primary)
			}
			return pflag.NormalizedName(name)
		})
	}
	return names, nil
}

// value reads the parsed value of a. Unset flags yield the argument default,
// which may be nil.
func (names flagValues) value(fs *pflag.FlagSet, a *commands.Argument) (any, error) {
	long, ok := names[a.Dest]
	if !ok || !fs.Changed(long) {
		return a.Default, nil
	}
	switch {
	case a.Multi:
		raw, err := fs.GetStringArray(long)
		if err != nil {
			return nil, err
		}
		items := make(expand.Multi, 0, len(raw))
		for _, s := range raw {
			v, err := convert(a, s)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case a.Type == operation.TypeBool:
		return fs.GetBool(long)
	case a.Type == operation.TypeInt:
		return fs.GetInt(long)
	case a.Type == operation.TypeList:
		return fs.GetStringSlice(long)
	default:
		return fs.GetString(long)
	}
}

func convert(a *commands.Argument, s string) (any, error) {
	switch a.Type {
	case operation.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("argument --%s expects a boolean", a.Dest), err)
		}
		return b, nil
	case operation.TypeInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("argument --%s expects an integer", a.Dest), err)
		}
		return n, nil
	default:
		return s, nil
	}
}
