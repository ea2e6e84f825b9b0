// Package prompt asks the user yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"golang.org/x/term"
)

// Prompter answers a yes/no question.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// Terminal reads answers from in and writes questions to out. Interactive
// reports whether in is attached to a terminal; without one Confirm fails
// instead of blocking.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Scripted returns a Terminal that treats in as interactive input.
func Scripted(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, interactive: true}
}

// Confirm asks message until the answer is y/yes or n/no. An empty answer
// means no.
func (t *Terminal) Confirm(message string) (bool, error) {
	if !t.interactive {
		return false, clierr.New(clierr.CodeUsage, "unable to prompt for confirmation as no tty available. Use --yes.")
	}
	for {
		fmt.Fprintf(t.out, "%s (y/n): ", message)
		line, err := t.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if err != nil {
				if err == io.EOF {
					return false, nil
				}
				return false, clierr.Wrap(clierr.CodeInternal, "read confirmation", err)
			}
			return false, nil
		}
		if err != nil {
			return false, nil
		}
		fmt.Fprintln(t.out, "Please enter 'y' or 'n'.")
	}
}

// Always answers every question with a fixed value.
type Always bool

func (a Always) Confirm(string) (bool, error) { return bool(a), nil }
