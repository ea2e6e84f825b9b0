package commands

import "fmt"

// Source records the extension that contributed a command.
type Source struct {
	Extension string
	Overrides bool
}

// Warning is shown once before running an extension-provided command.
func (s Source) Warning() string {
	if s.Overrides {
		return fmt.Sprintf("The behavior of this command has been altered by the following extension: %s", s.Extension)
	}
	return fmt.Sprintf("This command is from the following extension: %s", s.Extension)
}

// Provenance maps command names to the extension that registered them.
// Built-in commands have no entry.
type Provenance map[string]Source

func (p Provenance) Lookup(name string) (Source, bool) {
	s, ok := p[CanonicalName(name)]
	return s, ok
}
