// Package graph is the resource-graph extension. It adds `graph query` and
// replaces `group list` with a variant that can filter by tag.
package graph

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/commands"
	"github.com/LukaszStem/azure-cli/internal/extension"
	"github.com/LukaszStem/azure-cli/internal/modules/arm"
	"github.com/LukaszStem/azure-cli/internal/operation"
)

// Name is the extension name expected in manifest.yaml.
const Name = "resource-graph"

const apiVersion = "2017-05-10"

func Register(factory commands.ClientFactory) extension.RegisterFunc {
	return func(r *commands.Registry) error {
		query := &operation.Operation{
			Name:    "query",
			Summary: "Query resources across subscriptions with a Kusto query.",
			Params: []operation.Param{
				{Name: "graph_query", Required: true, Help: "The resource graph query to execute."},
				{Name: "first", Type: operation.TypeInt, Default: 100, Help: "The maximum number of results to return."},
			},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				body := map[string]any{
					"subscriptions": []string{},
					"query":         args.String("graph_query"),
					"options":       map[string]any{"$top": args.Int("first")},
				}
				return c.Post(ctx, "2018-09-01-preview", "/providers/Microsoft.ResourceGraph/resources", body)
			},
		}
		g := r.Group("graph", commands.CommandType{Options: []commands.Option{commands.WithClientFactory(factory)}})
		if err := g.Custom("query", query); err != nil {
			return err
		}
		g.Argument("graph_query", commands.Override{Options: []string{"--graph-query", "-q"}})

		list := &operation.Operation{
			Name:    "list",
			Summary: "List resource groups, optionally filtered by tag.",
			Params:  []operation.Param{{Name: "tag", Help: "A single tag in 'key[=value]' format."}},
			Run: func(_ context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				path := c.SubscriptionPath("resourcegroups")
				if filter := tagFilter(args.String("tag")); filter != "" {
					path += "?$filter=" + url.QueryEscape(filter)
				}
				return c.List(apiVersion, path), nil
			},
		}
		return r.Group("group", commands.CommandType{}).Custom("list", list, commands.WithClientFactory(factory))
	}
}

func tagFilter(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	k, v, ok := strings.Cut(tag, "=")
	if !ok {
		return fmt.Sprintf("tagName eq '%s'", k)
	}
	return fmt.Sprintf("tagName eq '%s' and tagValue eq '%s'", k, v)
}
