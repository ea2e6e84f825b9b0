package commands

import (
	"iter"
	"sort"
	"strings"
)

// CanonicalName collapses internal whitespace in a command name.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Table maps command names to descriptors, keeping first-insertion order.
type Table struct {
	order []string
	items map[string]*Descriptor
}

func NewTable() *Table {
	return &Table{items: map[string]*Descriptor{}}
}

// Set stores d under its name. It reports whether an entry was replaced.
func (t *Table) Set(d *Descriptor) bool {
	_, exists := t.items[d.Name]
	if !exists {
		t.order = append(t.order, d.Name)
	}
	t.items[d.Name] = d
	return exists
}

func (t *Table) Get(name string) (*Descriptor, bool) {
	d, ok := t.items[CanonicalName(name)]
	return d, ok
}

func (t *Table) Len() int { return len(t.order) }

func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// All yields descriptors in table order.
func (t *Table) All() iter.Seq2[string, *Descriptor] {
	return func(yield func(string, *Descriptor) bool) {
		for _, name := range t.order {
			if !yield(name, t.items[name]) {
				return
			}
		}
	}
}

// Subset returns a table holding only the named commands that exist.
func (t *Table) Subset(names ...string) *Table {
	out := NewTable()
	for _, name := range names {
		if d, ok := t.Get(name); ok {
			out.Set(d)
		}
	}
	return out
}

// Lookup finds the command named by the longest run of leading words in
// tokens. It returns the descriptor and how many tokens it consumed.
func (t *Table) Lookup(tokens []string) (*Descriptor, int) {
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") {
			break
		}
		words = append(words, tok)
	}
	for n := len(words); n > 0; n-- {
		if d, ok := t.Get(strings.Join(words[:n], " ")); ok {
			return d, n
		}
	}
	return nil, 0
}

// Groups returns every command group prefix, sorted.
func (t *Table) Groups() []string {
	seen := map[string]struct{}{}
	for _, name := range t.order {
		parts := strings.Fields(name)
		for i := 1; i < len(parts); i++ {
			seen[strings.Join(parts[:i], " ")] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
