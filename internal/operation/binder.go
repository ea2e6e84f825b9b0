package operation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/LukaszStem/azure-cli/internal/profile"
)

// Namespace is a tree of named attributes. Leaves are *Operation values.
type Namespace map[string]any

// Module is a bindable unit. Init runs at most once per process, on the first
// successful lookup of the module.
type Module struct {
	Path  string
	Attrs Namespace
	Init  func() error

	once    sync.Once
	initErr error
}

func (m *Module) init() error {
	m.once.Do(func() {
		if m.Init != nil {
			m.initErr = m.Init()
		}
	})
	return m.initErr
}

// Registry maps module paths to modules. It is populated at process start and
// read-only afterwards.
type Registry struct {
	modules map[string]*Module
}

func NewRegistry(modules ...*Module) (*Registry, error) {
	r := &Registry{modules: map[string]*Module{}}
	for _, m := range modules {
		if err := r.Add(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(m *Module) error {
	if m == nil || strings.TrimSpace(m.Path) == "" {
		return fmt.Errorf("module path is required")
	}
	if _, exists := r.modules[m.Path]; exists {
		return fmt.Errorf("module %s already registered", m.Path)
	}
	r.modules[m.Path] = m
	return nil
}

func (r *Registry) Paths() []string {
	out := make([]string, 0, len(r.modules))
	for p := range r.modules {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Binder resolves operation references against a module registry.
type Binder struct {
	modules *Registry
}

func NewBinder(modules *Registry) *Binder {
	return &Binder{modules: modules}
}

// Split breaks an operation reference into module path and attribute path.
func Split(ref string) (string, string, error) {
	parts := strings.Split(ref, "#")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", invalidRef(ref, "expected <module-path>#<attribute-path>", nil)
	}
	return parts[0], parts[1], nil
}

// Bind returns the operation named by ref. Module paths that start with a
// resource type prefix of p are rewritten to the version p resolves to.
func (b *Binder) Bind(ref string, p *profile.Profile) (*Operation, error) {
	modulePath, attrPath, err := Split(ref)
	if err != nil {
		return nil, err
	}
	resolved, _, err := profile.Substitute(p, modulePath)
	if err != nil {
		return nil, err
	}
	if b == nil || b.modules == nil {
		return nil, invalidRef(ref, "no modules registered", nil)
	}
	mod, ok := b.modules.modules[resolved]
	if !ok {
		return nil, invalidRef(ref, fmt.Sprintf("module %s not found", resolved), nil)
	}
	if err := mod.init(); err != nil {
		return nil, invalidRef(ref, fmt.Sprintf("initialize module %s", resolved), err)
	}

	var cur any = mod.Attrs
	for _, name := range strings.Split(attrPath, ".") {
		ns, ok := cur.(Namespace)
		if !ok {
			return nil, invalidRef(ref, fmt.Sprintf("%s is not a namespace", name), nil)
		}
		next, ok := ns[name]
		if !ok {
			return nil, invalidRef(ref, fmt.Sprintf("attribute %s not found", name), nil)
		}
		cur = next
	}
	op, ok := cur.(*Operation)
	if !ok || op == nil {
		return nil, invalidRef(ref, "attribute path does not name an operation", nil)
	}
	return op, nil
}

func invalidRef(ref, reason string, cause error) error {
	msg := fmt.Sprintf("invalid operation reference %q: %s", ref, reason)
	if cause != nil {
		return clierr.Wrap(clierr.CodeInvalidOperation, msg, cause)
	}
	return clierr.New(clierr.CodeInvalidOperation, msg)
}
