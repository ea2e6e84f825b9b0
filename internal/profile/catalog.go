package profile

import (
	"fmt"
	"sort"
	"strings"
)

const (
	ResourceTypeResources = "resources"
	ResourceTypeRedis     = "redis"

	// DefaultProfile is used when no profile is configured.
	DefaultProfile = Latest
)

var builtinTypes = []ResourceType{
	{Name: ResourceTypeResources, Prefix: "mgmt/resource"},
	{Name: ResourceTypeRedis, Prefix: "mgmt/redis"},
}

var builtinEntries = map[string][]Entry{
	ResourceTypeResources: {
		{APIVersion: "2016-09-01", ModulePath: "mgmt/resource/v2016_09_01"},
		{APIVersion: "2017-05-10", ModulePath: "mgmt/resource/v2017_05_10"},
	},
	ResourceTypeRedis: {
		{APIVersion: "2016-04-01", ModulePath: "mgmt/redis/v2016_04_01"},
		{APIVersion: "2017-10-01", ModulePath: "mgmt/redis/v2017_10_01"},
	},
}

var builtinCeilings = map[string]map[string]string{
	Latest: {},
	"2017-03-09-profile": {
		ResourceTypeResources: "2016-09-01",
		ResourceTypeRedis:     "2016-04-01",
	},
}

// Catalog holds the named profiles known to this build.
type Catalog struct {
	profiles map[string]*Profile
}

// Builtin returns the compiled-in profile catalog.
func Builtin() *Catalog {
	c := &Catalog{profiles: map[string]*Profile{}}
	for name, ceilings := range builtinCeilings {
		p, err := New(name, builtinTypes, builtinEntries, ceilings)
		if err != nil {
			panic(err)
		}
		c.profiles[name] = p
	}
	return c
}

// Get looks up a profile by name; an empty name selects DefaultProfile.
func (c *Catalog) Get(name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultProfile
	}
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Add registers or replaces a profile.
func (c *Catalog) Add(p *Profile) {
	c.profiles[p.Name] = p
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
