// Package modules lists the command modules and extensions compiled into the
// binary.
package modules

import (
	"github.com/LukaszStem/azure-cli/internal/commands"
	"github.com/LukaszStem/azure-cli/internal/extension"
	"github.com/LukaszStem/azure-cli/internal/modules/graph"
	"github.com/LukaszStem/azure-cli/internal/modules/redis"
	"github.com/LukaszStem/azure-cli/internal/modules/resource"
	"github.com/LukaszStem/azure-cli/internal/operation"
)

// Operations returns every bindable operation module.
func Operations() []*operation.Module {
	mods := resource.Operations()
	mods = append(mods, redis.Operations()...)
	return mods
}

// Builtin returns the built-in command modules in load order.
func Builtin(factory commands.ClientFactory) []commands.Module {
	return []commands.Module{
		resource.Module(factory),
		redis.Module(factory),
	}
}

// Extensions returns the entry points of extensions that can be enabled by
// installing their manifest.
func Extensions(factory commands.ClientFactory) extension.Catalog {
	return extension.Catalog{
		graph.Name: graph.Register(factory),
	}
}
