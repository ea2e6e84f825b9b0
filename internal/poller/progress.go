package poller

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Progress reports a wait in progress.
type Progress interface {
	Begin(message string)
	Update()
	End()
}

type NopProgress struct{}

func (NopProgress) Begin(string) {}
func (NopProgress) Update()      {}
func (NopProgress) End()         {}

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner draws a single-line indicator on a terminal.
type Spinner struct {
	w       io.Writer
	message string
	frame   int
	width   int
}

// NewProgress returns a Spinner when w is a terminal and NopProgress otherwise.
func NewProgress(w io.Writer) Progress {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return NopProgress{}
	}
	return &Spinner{w: w}
}

func (s *Spinner) Begin(message string) {
	s.message = strings.TrimSpace(message)
	s.frame = 0
	s.draw()
}

func (s *Spinner) Update() {
	s.frame = (s.frame + 1) % len(spinnerFrames)
	s.draw()
}

func (s *Spinner) End() {
	if s.width > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
	}
	s.width = 0
}

func (s *Spinner) draw() {
	line := spinnerFrames[s.frame]
	if s.message != "" {
		line += " " + s.message
	}
	s.width = len(line)
	fmt.Fprintf(s.w, "\r%s", line)
}
