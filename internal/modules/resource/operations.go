package resource

import (
	"context"
	"fmt"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/modules/arm"
	"github.com/LukaszStem/azure-cli/internal/operation"
)

// Operations returns one bindable module per supported api-version.
func Operations() []*operation.Module {
	return []*operation.Module{
		operations("mgmt/resource/v2016_09_01", "2016-09-01", false),
		operations("mgmt/resource/v2017_05_10", "2017-05-10", true),
	}
}

func operations(path, apiVersion string, patch bool) *operation.Module {
	groups := operation.Namespace{
		"create_or_update": &operation.Operation{
			Name:    "create_or_update",
			Summary: "Create a new resource group.",
			Params: []operation.Param{
				groupNameParam(),
				{Name: "location", Required: true, Help: "Location."},
				{Name: "tags", Type: operation.TypeList, Help: "Space-separated tags in 'key[=value]' format."},
			},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				body := map[string]any{"location": args.String("location")}
				if tags := ParseTags(args.Strings("tags")); len(tags) > 0 {
					body["tags"] = tags
				}
				return c.Put(ctx, apiVersion, groupPath(c, args), body)
			},
		},
		"get": &operation.Operation{
			Name:    "get",
			Summary: "Get a resource group.",
			Params:  []operation.Param{groupNameParam()},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Get(ctx, apiVersion, groupPath(c, args))
			},
		},
		"check_existence": &operation.Operation{
			Name:    "check_existence",
			Summary: "Check if a resource group exists.",
			Params:  []operation.Param{groupNameParam()},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Head(ctx, apiVersion, groupPath(c, args))
			},
		},
		"list": &operation.Operation{
			Name:    "list",
			Summary: "List resource groups.",
			Run: func(_ context.Context, client any, _ operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.List(apiVersion, c.SubscriptionPath("resourcegroups")), nil
			},
		},
		"delete": &operation.Operation{
			Name:        "delete",
			Summary:     "Delete a resource group.",
			Description: "Deleting a resource group deletes every resource it contains.",
			Params: []operation.Param{
				groupNameParam(),
				{Name: "no_wait", Type: operation.TypeBool},
			},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Delete(ctx, apiVersion, groupPath(c, args))
			},
		},
	}
	if patch {
		groups["update"] = &operation.Operation{
			Name:    "update",
			Summary: "Update the tags of a resource group.",
			Params: []operation.Param{
				groupNameParam(),
				{Name: "tags", Type: operation.TypeList, Required: true, Help: "Space-separated tags in 'key[=value]' format."},
			},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Patch(ctx, apiVersion, groupPath(c, args), map[string]any{"tags": ParseTags(args.Strings("tags"))})
			},
		}
	}

	providers := operation.Namespace{
		"get": &operation.Operation{
			Name:    "get",
			Summary: "Get information about a resource provider.",
			Params:  []operation.Param{namespaceParam()},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Get(ctx, apiVersion, c.SubscriptionPath("providers", args.String("resource_provider_namespace")))
			},
		},
		"list": &operation.Operation{
			Name:    "list",
			Summary: "List resource providers.",
			Run: func(_ context.Context, client any, _ operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.List(apiVersion, c.SubscriptionPath("providers")), nil
			},
		},
		"register": providerAction(apiVersion, "register", "Register a resource provider."),
		"unregister": providerAction(apiVersion, "unregister", "Unregister a resource provider."),
	}

	return &operation.Module{Path: path, Attrs: operation.Namespace{
		"ResourceGroupsOperations": groups,
		"ProvidersOperations":      providers,
	}}
}

func providerAction(apiVersion, action, summary string) *operation.Operation {
	return &operation.Operation{
		Name:    action,
		Summary: summary,
		Params:  []operation.Param{namespaceParam()},
		Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
			c, err := arm.From(client)
			if err != nil {
				return nil, err
			}
			return c.Post(ctx, apiVersion, c.SubscriptionPath("providers", args.String("resource_provider_namespace"), action), nil)
		},
	}
}

func groupNameParam() operation.Param {
	return operation.Param{Name: "resource_group_name", Required: true, Help: "Name of resource group."}
}

func namespaceParam() operation.Param {
	return operation.Param{Name: "resource_provider_namespace", Required: true, Help: "The resource namespace, e.g. Microsoft.Cache."}
}

func groupPath(c *arm.Client, args operation.Args) string {
	return c.SubscriptionPath("resourcegroups", args.String("resource_group_name"))
}

// ParseTags turns "key=value" items into a tag map. A bare key maps to "".
func ParseTags(items []string) map[string]string {
	out := map[string]string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, _ := strings.Cut(item, "=")
		out[k] = v
	}
	return out
}

// ValidateTags rejects tags with an empty key.
func ValidateTags(args operation.Args) error {
	for _, item := range args.Strings("tags") {
		if strings.HasPrefix(strings.TrimSpace(item), "=") {
			return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid tag %q: expected key[=value]", item))
		}
	}
	return nil
}
