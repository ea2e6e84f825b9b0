package prompt

import (
	"bytes"
	"strings"
	"testing"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
)

func TestConfirmAcceptsYesAndNo(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "no": false}
	for input, want := range cases {
		var out bytes.Buffer
		got, err := Scripted(strings.NewReader(input), &out).Confirm("Delete?")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", input, err)
		}
		if got != want {
			t.Fatalf("%q: expected %v, got %v", input, want, got)
		}
		if !strings.Contains(out.String(), "Delete? (y/n): ") {
			t.Fatalf("%q: missing prompt in %q", input, out.String())
		}
	}
}

func TestConfirmRepromptsOnUnknownAnswer(t *testing.T) {
	var out bytes.Buffer
	got, err := Scripted(strings.NewReader("maybe\ny\n"), &out).Confirm("Go?")
	if err != nil || !got {
		t.Fatalf("expected yes after reprompt, got %v %v", got, err)
	}
	if strings.Count(out.String(), "Go? (y/n): ") != 2 {
		t.Fatalf("expected two prompts, got %q", out.String())
	}
}

func TestConfirmWithoutTerminal(t *testing.T) {
	_, err := NewTerminal(strings.NewReader("y\n"), &bytes.Buffer{}).Confirm("Go?")
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("expected hint about --yes, got %v", err)
	}
}
