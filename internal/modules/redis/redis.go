// Package redis registers the Redis cache commands. Patch schedules need the
// 2017-10-01 api-version and are absent from older profiles.
package redis

import (
	"context"
	"strings"

	"github.com/LukaszStem/azure-cli/internal/commands"
	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/modules/arm"
	"github.com/LukaszStem/azure-cli/internal/operation"
	"github.com/LukaszStem/azure-cli/internal/profile"
)

// ProviderNamespace owns every Redis resource.
const ProviderNamespace = "Microsoft.Cache"

var skus = []string{"Basic", "Standard", "Premium"}

func Operations() []*operation.Module {
	return []*operation.Module{
		operations("mgmt/redis/v2016_04_01", "2016-04-01", false),
		operations("mgmt/redis/v2017_10_01", "2017-10-01", true),
	}
}

func operations(path, apiVersion string, schedules bool) *operation.Module {
	redis := operation.Namespace{
		"create": &operation.Operation{
			Name:    "create",
			Summary: "Create a new Redis cache instance.",
			Params: []operation.Param{
				nameParam(),
				groupParam(),
				{Name: "location", Required: true},
				{Name: "sku", Required: true, Help: "Type of Redis cache: " + strings.Join(skus, ", ") + "."},
				{Name: "vm_size", Required: true, Help: "Size of the cache, e.g. c0, c1, p1."},
				{Name: "enable_non_ssl_port", Type: operation.TypeBool},
				{Name: "shard_count", Type: operation.TypeInt},
				{Name: "no_wait", Type: operation.TypeBool},
			},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				size := strings.ToUpper(args.String("vm_size"))
				props := map[string]any{
					"sku": map[string]any{
						"name":     args.String("sku"),
						"family":   size[:1],
						"capacity": size[1:],
					},
					"enableNonSslPort": args.Bool("enable_non_ssl_port"),
				}
				if n := args.Int("shard_count"); n > 0 {
					props["shardCount"] = n
				}
				return c.Put(ctx, apiVersion, cachePath(c, args), map[string]any{
					"location":   args.String("location"),
					"properties": props,
				})
			},
		},
		"get": &operation.Operation{
			Name:    "get",
			Summary: "Get the details of a Redis cache.",
			Params:  []operation.Param{nameParam(), groupParam()},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Get(ctx, apiVersion, cachePath(c, args))
			},
		},
		"list": &operation.Operation{
			Name:    "list",
			Summary: "List Redis caches in a resource group or subscription.",
			Params:  []operation.Param{{Name: "resource_group_name"}},
			Run: func(_ context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				if rg := args.String("resource_group_name"); rg != "" {
					return c.List(apiVersion, c.SubscriptionPath("resourceGroups", rg, "providers", ProviderNamespace, "Redis")), nil
				}
				return c.List(apiVersion, c.SubscriptionPath("providers", ProviderNamespace, "Redis")), nil
			},
		},
		"delete": &operation.Operation{
			Name:    "delete",
			Summary: "Delete a Redis cache.",
			Params:  []operation.Param{nameParam(), groupParam(), {Name: "no_wait", Type: operation.TypeBool}},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Delete(ctx, apiVersion, cachePath(c, args))
			},
		},
		"force_reboot": &operation.Operation{
			Name:    "force_reboot",
			Summary: "Reboot specified Redis node(s).",
			Params:  []operation.Param{nameParam(), groupParam(), {Name: "reboot_type", Required: true, Help: "PrimaryNode, SecondaryNode or AllNodes."}},
			Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
				c, err := arm.From(client)
				if err != nil {
					return nil, err
				}
				return c.Post(ctx, apiVersion, cachePath(c, args)+"/forceReboot", map[string]any{"rebootType": args.String("reboot_type")})
			},
		},
	}
	attrs := operation.Namespace{"RedisOperations": redis}
	if schedules {
		attrs["PatchSchedulesOperations"] = operation.Namespace{
			"get": &operation.Operation{
				Name:    "get",
				Summary: "Get the patching schedule of a Redis cache.",
				Params:  []operation.Param{nameParam(), groupParam()},
				Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
					c, err := arm.From(client)
					if err != nil {
						return nil, err
					}
					return c.Get(ctx, apiVersion, cachePath(c, args)+"/patchSchedules/default")
				},
			},
			"create_or_update": &operation.Operation{
				Name:    "create_or_update",
				Summary: "Set the patching schedule of a Redis cache.",
				Params: []operation.Param{
					nameParam(),
					groupParam(),
					{Name: "day_of_week", Required: true},
					{Name: "start_hour_utc", Type: operation.TypeInt, Required: true},
				},
				Run: func(ctx context.Context, client any, args operation.Args) (any, error) {
					c, err := arm.From(client)
					if err != nil {
						return nil, err
					}
					body := map[string]any{"properties": map[string]any{"scheduleEntries": []map[string]any{{
						"dayOfWeek":    args.String("day_of_week"),
						"startHourUtc": args.Int("start_hour_utc"),
					}}}}
					return c.Put(ctx, apiVersion, cachePath(c, args)+"/patchSchedules/default", body)
				},
			},
		}
	}
	return &operation.Module{Path: path, Attrs: attrs}
}

func nameParam() operation.Param {
	return operation.Param{Name: "name", Required: true, Metavar: "NAME", Help: "Name of the Redis cache."}
}

func groupParam() operation.Param {
	return operation.Param{Name: "resource_group_name", Required: true}
}

func cachePath(c *arm.Client, args operation.Args) string {
	return c.SubscriptionPath("resourceGroups", args.String("resource_group_name"), "providers", ProviderNamespace, "Redis", args.String("name"))
}

func validateCreate(args operation.Args) error {
	sku := args.String("sku")
	found := false
	for _, s := range skus {
		if strings.EqualFold(s, sku) {
			found = true
		}
	}
	if !found {
		return clierr.New(clierr.CodeUsage, "invalid --sku "+sku+": allowed values are "+strings.Join(skus, ", "))
	}
	size := strings.ToLower(args.String("vm_size"))
	if len(size) < 2 || (size[0] != 'c' && size[0] != 'p') {
		return clierr.New(clierr.CodeUsage, "invalid --vm-size "+args.String("vm_size")+": expected c0-c6 or p1-p4")
	}
	if strings.EqualFold(sku, "Premium") != (size[0] == 'p') {
		return clierr.New(clierr.CodeUsage, "--vm-size "+args.String("vm_size")+" does not match --sku "+sku)
	}
	return nil
}

func Module(factory commands.ClientFactory) commands.Module {
	return commands.Module{Name: "redis", Load: func(r *commands.Registry) error {
		typ := commands.CommandType{
			OperationsTmpl: "mgmt/redis#RedisOperations.{}",
			Options: []commands.Option{
				commands.WithClientFactory(factory),
				commands.WithAPIRange(profile.ResourceTypeRedis, "", ""),
			},
		}
		g := r.Group("redis", typ)
		g.Argument("name", commands.Override{Options: []string{"--name", "-n"}})
		if err := g.Command("create", "create", commands.WithValidator(validateCreate), commands.WithNoWait("no_wait")); err != nil {
			return err
		}
		if err := g.Command("show", "get"); err != nil {
			return err
		}
		if err := g.Command("list", "list"); err != nil {
			return err
		}
		if err := g.Command("delete", "delete", commands.WithConfirmation(""), commands.WithNoWait("no_wait")); err != nil {
			return err
		}
		if err := g.Command("force-reboot", "force_reboot", commands.WithConfirmation("Rebooting interrupts client connections. Continue?")); err != nil {
			return err
		}

		schedules := commands.CommandType{
			OperationsTmpl: "mgmt/redis#PatchSchedulesOperations.{}",
			Options: []commands.Option{
				commands.WithClientFactory(factory),
				commands.WithAPIRange(profile.ResourceTypeRedis, "2017-10-01", ""),
			},
		}
		ps := r.Group("redis patch-schedule", schedules)
		if err := ps.Command("show", "get"); err != nil {
			return err
		}
		return ps.Command("set", "create_or_update")
	}}
}
