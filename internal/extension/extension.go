// Package extension discovers installed extensions and merges their commands
// into the registry after the built-in modules.
package extension

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LukaszStem/azure-cli/internal/commands"
	"github.com/LukaszStem/azure-cli/internal/logging"
	"github.com/LukaszStem/azure-cli/internal/version"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// ManifestFile is read from each extension directory.
const ManifestFile = "manifest.yaml"

// RegisterFunc is the entry point every extension exports.
type RegisterFunc func(r *commands.Registry) error

// Catalog maps extension names to their entry points.
type Catalog map[string]RegisterFunc

// Identity describes one installed extension.
type Identity struct {
	Name          string `yaml:"name" json:"name"`
	Version       string `yaml:"version" json:"version"`
	MinCLIVersion string `yaml:"min_cli_version" json:"min_cli_version,omitempty"`
	Summary       string `yaml:"summary" json:"summary,omitempty"`
	Path          string `yaml:"-" json:"path"`
}

// Status is the load outcome of one extension.
type Status struct {
	Identity
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

type Loader struct {
	dir     string
	catalog Catalog
	logger  *log.Logger
	now     func() time.Time
}

func NewLoader(dir string, catalog Catalog, logger *log.Logger) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{dir: dir, catalog: catalog, logger: logger, now: time.Now}
}

// Discover lists installed extensions ordered by name. A missing extension
// directory means no extensions.
func (l *Loader) Discover() ([]Identity, error) {
	if strings.TrimSpace(l.dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read extension directory: %w", err)
	}
	out := []Identity{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		id, err := readManifest(path)
		if err != nil {
			l.logger.Warn(fmt.Sprintf("Skipping extension '%s': %v", entry.Name(), err))
			continue
		}
		if id.Name == "" {
			id.Name = entry.Name()
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func readManifest(dir string) (Identity, error) {
	buf, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Identity{}, fmt.Errorf("read manifest: %w", err)
	}
	var id Identity
	if err := yaml.Unmarshal(buf, &id); err != nil {
		return Identity{}, fmt.Errorf("parse manifest: %w", err)
	}
	id.Path = dir
	return id, nil
}

// Load registers the commands of one extension. Any failure, including a
// panic in the extension, is returned as an error.
func (l *Loader) Load(r *commands.Registry, id Identity) error {
	fn, ok := l.catalog[id.Name]
	if !ok || fn == nil {
		return fmt.Errorf("extension %s is not available in this build", id.Name)
	}
	if id.MinCLIVersion != "" && compareVersions(version.CLIVersion, id.MinCLIVersion) < 0 {
		return fmt.Errorf("extension %s requires CLI version %s or later", id.Name, id.MinCLIVersion)
	}
	return commands.SafeCall(id.Name, func() error {
		return r.WithSource(id.Name, func() error { return fn(r) })
	})
}

// LoadAll discovers and loads every extension. Failures are logged and
// recorded per extension; they never stop the remaining loads.
func (l *Loader) LoadAll(r *commands.Registry) []Status {
	ids, err := l.Discover()
	if err != nil {
		l.logger.Warn("Unable to load extensions. Use --debug for more information.")
		l.logger.Debug("discover extensions", "err", err)
		return nil
	}
	if len(ids) > 0 {
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, id.Name)
		}
		l.logger.Debug(fmt.Sprintf("Found %d extensions: %s", len(ids), strings.Join(names, ", ")))
	}
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		start := l.now()
		if err := l.Load(r, id); err != nil {
			l.logger.Warn(fmt.Sprintf("Unable to load extension '%s'. Use --debug for more information.", id.Name))
			l.logger.Debug("load extension", "extension", id.Name, "err", err)
			out = append(out, Status{Identity: id, Error: err.Error()})
			continue
		}
		l.logger.Debug(fmt.Sprintf("Loaded extension '%s' in %.3f seconds.", id.Name, l.now().Sub(start).Seconds()))
		out = append(out, Status{Identity: id, Loaded: true})
	}
	return out
}

// compareVersions orders dotted numeric versions; missing parts count as 0.
func compareVersions(a, b string) int {
	pa := strings.Split(strings.TrimSpace(a), ".")
	pb := strings.Split(strings.TrimSpace(b), ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		na, nb := part(pa, i), part(pb, i)
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func part(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimLeft(parts[i], "v"))
	return n
}
