// Package resource registers the resource group and resource provider
// commands.
package resource

import (
	"github.com/LukaszStem/azure-cli/internal/commands"
	"github.com/LukaszStem/azure-cli/internal/profile"
)

func Module(factory commands.ClientFactory) commands.Module {
	return commands.Module{Name: "resource", Load: func(r *commands.Registry) error {
		return load(r, factory)
	}}
}

func load(r *commands.Registry, factory commands.ClientFactory) error {
	r.Argument("", "resource_group_name", commands.Override{
		Options:           []string{"--resource-group", "-g"},
		ConfiguredDefault: "group",
		Help:              "Name of resource group.",
	})
	r.Argument("", "location", commands.Override{
		Options:           []string{"--location", "-l"},
		ConfiguredDefault: "location",
		Help:              "Location.",
	})

	groupType := commands.CommandType{
		OperationsTmpl: "mgmt/resource#ResourceGroupsOperations.{}",
		Options: []commands.Option{
			commands.WithClientFactory(factory),
			commands.WithAPIRange(profile.ResourceTypeResources, "", ""),
		},
	}
	g := r.Group("group", groupType)
	g.Argument("resource_group_name", commands.Override{
		Options: []string{"--name", "-n", "--resource-group", "-g"},
		Metavar: "NAME",
	})
	cmds := []struct {
		name, method string
		opts         []commands.Option
	}{
		{"create", "create_or_update", []commands.Option{commands.WithValidator(ValidateTags)}},
		{"show", "get", nil},
		{"exists", "check_existence", nil},
		{"list", "list", []commands.Option{commands.WithTableTransformer(groupTable)}},
		{"delete", "delete", []commands.Option{
			commands.WithConfirmation(""),
			commands.WithNoWait("no_wait"),
		}},
		{"update", "update", []commands.Option{
			commands.WithValidator(ValidateTags),
			commands.WithAPIRange(profile.ResourceTypeResources, "2017-05-10", ""),
		}},
	}
	for _, c := range cmds {
		if err := g.Command(c.name, c.method, c.opts...); err != nil {
			return err
		}
	}

	providerType := commands.CommandType{
		OperationsTmpl: "mgmt/resource#ProvidersOperations.{}",
		Options: []commands.Option{
			commands.WithClientFactory(factory),
			commands.WithAPIRange(profile.ResourceTypeResources, "", ""),
		},
	}
	p := r.Group("provider", providerType)
	p.Argument("resource_provider_namespace", commands.Override{Options: []string{"--namespace", "-n"}})
	for _, c := range [][2]string{{"show", "get"}, {"list", "list"}, {"register", "register"}, {"unregister", "unregister"}} {
		if err := p.Command(c[0], c[1]); err != nil {
			return err
		}
	}
	return nil
}

func groupTable(v any) any {
	items, ok := v.([]any)
	if !ok {
		return v
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := map[string]any{"Name": m["name"], "Location": m["location"]}
		if props, ok := m["properties"].(map[string]any); ok {
			row["Status"] = props["provisioningState"]
		}
		rows = append(rows, row)
	}
	return rows
}
