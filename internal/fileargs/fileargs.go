// Package fileargs expands command-line values that reference files: "@path"
// is replaced by the file's contents, "key=@path" by "key=<contents>" and
// "@-" reads standard input.
package fileargs

import (
	"fmt"
	"io"
	"os"
	"strings"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
)

// Expand returns args with file references replaced. Flags and plain words
// pass through. One trailing newline is stripped from file contents.
func Expand(args []string, stdin io.Reader) ([]string, error) {
	out := make([]string, 0, len(args))
	stdinUsed := false
	for _, arg := range args {
		prefix, ref, ok := reference(arg)
		if !ok {
			out = append(out, arg)
			continue
		}
		if ref == "-" {
			if stdinUsed {
				return nil, clierr.New(clierr.CodeUsage, "standard input can only be referenced once")
			}
			stdinUsed = true
		}
		content, err := read(ref, stdin)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix+content)
	}
	return out, nil
}

func reference(arg string) (prefix, ref string, ok bool) {
	if strings.HasPrefix(arg, "@") && len(arg) > 1 {
		return "", arg[1:], true
	}
	if i := strings.Index(arg, "=@"); i > 0 && len(arg) > i+2 {
		return arg[:i+1], arg[i+2:], true
	}
	return "", "", false
}

func read(ref string, stdin io.Reader) (string, error) {
	var (
		buf []byte
		err error
	)
	if ref == "-" {
		if stdin == nil {
			return "", clierr.New(clierr.CodeUsage, "standard input is not available")
		}
		buf, err = io.ReadAll(stdin)
	} else {
		buf, err = os.ReadFile(ref)
	}
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("read argument file %s", ref), err)
	}
	s := string(buf)
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}
