// Package operation holds the explicit module registry that operation
// references ("module/path#Attr.Path") are bound against.
package operation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Parameter value types understood by the argument parser.
const (
	TypeString = "string"
	TypeBool   = "bool"
	TypeInt    = "int"
	TypeList   = "list"
)

// Param describes one input of an operation. It is the signature that
// argument specs are synthesized from.
type Param struct {
	Name     string
	Type     string
	Required bool
	Default  any
	Help     string
	Metavar  string
}

// Args is a parsed argument set keyed by parameter name.
type Args map[string]any

// Func executes an operation against a backend client.
type Func func(ctx context.Context, client any, args Args) (any, error)

// Operation is a bindable callable plus its signature.
type Operation struct {
	Name        string
	Summary     string
	Description string
	Params      []Param
	Run         Func
}

func (o *Operation) Call(ctx context.Context, client any, args Args) (any, error) {
	if o == nil || o.Run == nil {
		return nil, fmt.Errorf("operation has no implementation")
	}
	return o.Run(ctx, client, args)
}

func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (a Args) Bool(name string) bool {
	switch v := a[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func (a Args) Strings(name string) []string {
	switch v := a[name].(type) {
	case []string:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Clone returns a shallow copy.
func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
