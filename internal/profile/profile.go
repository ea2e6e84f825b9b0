// Package profile picks the concrete API version, and the module path that
// implements it, for a resource type under a named backend profile.
package profile

import (
	"fmt"
	"sort"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
)

// Latest marks an unbounded version constraint.
const Latest = "latest"

// ResourceType is a logical backend capability. Operation references whose
// module path starts with Prefix are rewritten to a versioned module path.
type ResourceType struct {
	Name   string
	Prefix string
}

// Entry binds one API version of a resource type to its module path.
type Entry struct {
	APIVersion string
	ModulePath string
}

// Binding is the result of a successful resolution.
type Binding struct {
	ResourceType string
	APIVersion   string
	ModulePath   string
}

// Profile is a named version set. Ceilings pins the highest version a
// resource type may resolve to; a missing entry or Latest leaves it open.
type Profile struct {
	Name     string
	Ceilings map[string]string

	types   map[string]ResourceType
	entries map[string][]Entry
}

// New builds an immutable profile. Entries are sorted ascending by version.
func New(name string, types []ResourceType, entries map[string][]Entry, ceilings map[string]string) (*Profile, error) {
	p := &Profile{
		Name:     name,
		Ceilings: map[string]string{},
		types:    make(map[string]ResourceType, len(types)),
		entries:  make(map[string][]Entry, len(entries)),
	}
	for _, rt := range types {
		p.types[rt.Name] = rt
	}
	for rt, list := range entries {
		if _, ok := p.types[rt]; !ok {
			return nil, fmt.Errorf("profile %s: versions for unknown resource type %q", name, rt)
		}
		sorted := append([]Entry(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return Compare(sorted[i].APIVersion, sorted[j].APIVersion) < 0
		})
		for i := 1; i < len(sorted); i++ {
			if Compare(sorted[i-1].APIVersion, sorted[i].APIVersion) == 0 {
				return nil, fmt.Errorf("profile %s: duplicate version %s for %s", name, sorted[i].APIVersion, rt)
			}
		}
		p.entries[rt] = sorted
	}
	for rt, v := range ceilings {
		p.Ceilings[rt] = v
	}
	return p, nil
}

// ResourceTypes returns the registered resource types ordered by name.
func (p *Profile) ResourceTypes() []ResourceType {
	out := make([]ResourceType, 0, len(p.types))
	for _, rt := range p.types {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Versions returns the ascending version list for a resource type.
func (p *Profile) Versions(resourceType string) []Entry {
	return append([]Entry(nil), p.entries[resourceType]...)
}

// Resolve returns the greatest version within [minVersion, maxVersion] that the
// profile allows for resourceType. Empty or Latest bounds are unbounded.
func Resolve(p *Profile, resourceType, minVersion, maxVersion string) (Binding, error) {
	if p == nil {
		return Binding{}, unsupported(resourceType, "", minVersion, maxVersion)
	}
	list := p.entries[resourceType]
	ceiling := p.Ceilings[resourceType]
	for i := len(list) - 1; i >= 0; i-- {
		v := list[i].APIVersion
		if !unbounded(ceiling) && Compare(v, ceiling) > 0 {
			continue
		}
		if !unbounded(maxVersion) && Compare(v, maxVersion) > 0 {
			continue
		}
		if !unbounded(minVersion) && Compare(v, minVersion) < 0 {
			// list is ascending, nothing lower can satisfy the floor
			break
		}
		return Binding{ResourceType: resourceType, APIVersion: v, ModulePath: list[i].ModulePath}, nil
	}
	return Binding{}, unsupported(resourceType, p.Name, minVersion, maxVersion)
}

// Supported reports whether Resolve would succeed.
func Supported(p *Profile, resourceType, minVersion, maxVersion string) bool {
	_, err := Resolve(p, resourceType, minVersion, maxVersion)
	return err == nil
}

// Substitute rewrites modulePath when it begins with a resource type prefix.
// The second return is false when no prefix matched.
func Substitute(p *Profile, modulePath string) (string, bool, error) {
	if p == nil {
		return modulePath, false, nil
	}
	var match ResourceType
	for _, rt := range p.types {
		if rt.Prefix == "" || !hasPathPrefix(modulePath, rt.Prefix) {
			continue
		}
		if len(rt.Prefix) > len(match.Prefix) {
			match = rt
		}
	}
	if match.Name == "" {
		return modulePath, false, nil
	}
	binding, err := Resolve(p, match.Name, "", "")
	if err != nil {
		return "", false, err
	}
	return binding.ModulePath + strings.TrimPrefix(modulePath, match.Prefix), true, nil
}

func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '.' || rest[0] == '/'
}

func unbounded(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, Latest)
}

func unsupported(resourceType, profileName, minVersion, maxVersion string) error {
	bounds := fmt.Sprintf("min=%s max=%s", orLatest(minVersion), orLatest(maxVersion))
	msg := fmt.Sprintf("no API version of %s satisfies %s", resourceType, bounds)
	if profileName != "" {
		msg += fmt.Sprintf(" in profile %s", profileName)
	}
	return clierr.New(clierr.CodeUnsupportedVersion, msg)
}

func orLatest(v string) string {
	if unbounded(v) {
		return Latest
	}
	return v
}
