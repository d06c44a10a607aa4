package filtergraph

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidGraph reports a label discipline violation.
var ErrInvalidGraph = errors.New("invalid filter graph")

// ArgKind controls how an argument value is rendered.
type ArgKind int

const (
	// ArgPlain values are escaped for the option and graph parsers.
	ArgPlain ArgKind = iota
	// ArgExpr values are evaluated expressions. They are escaped like plain
	// values, so commas inside function calls do not split the chain.
	ArgExpr
	// ArgText values are drawtext text and are also escaped against text
	// expansion.
	ArgText
)

// Arg is one filter option. An empty Key renders a positional value.
type Arg struct {
	Key   string
	Value string
	Kind  ArgKind
}

// Filter is a single ffmpeg filter with its options.
type Filter struct {
	Name string
	Args []Arg
}

// Node is a linear filter chain reading Inputs and writing Outputs.
type Node struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

// Graph is an ordered list of chains.
type Graph struct {
	Nodes []Node
}

// Plain builds an argument from a string, number or bool.
func Plain(key string, value any) Arg {
	return Arg{Key: key, Value: formatValue(value), Kind: ArgPlain}
}

// Expr builds an expression argument.
func Expr(key, value string) Arg {
	return Arg{Key: key, Value: value, Kind: ArgExpr}
}

// Text builds an escaped text argument.
func Text(key, value string) Arg {
	return Arg{Key: key, Value: value, Kind: ArgText}
}

// NewFilter is shorthand for Filter{Name: name, Args: args}.
func NewFilter(name string, args ...Arg) Filter {
	return Filter{Name: name, Args: args}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return formatSeconds(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// streamSpecifier matches direct input references such as "0:v" or "12:a".
var streamSpecifier = regexp.MustCompile(`^(\d+):([va])$`)

// Validate checks label discipline against the number of ffmpeg inputs.
// Input stream references may repeat; produced labels may be consumed once.
func (g Graph) Validate(inputCount int) error {
	produced := make(map[string]bool)
	consumed := make(map[string]bool)
	for i, node := range g.Nodes {
		if len(node.Filters) == 0 {
			return fmt.Errorf("%w: node %d has no filters", ErrInvalidGraph, i)
		}
		if len(node.Outputs) == 0 {
			return fmt.Errorf("%w: node %d has no outputs", ErrInvalidGraph, i)
		}
		for _, label := range node.Inputs {
			if m := streamSpecifier.FindStringSubmatch(label); m != nil {
				idx, _ := strconv.Atoi(m[1])
				if idx >= inputCount {
					return fmt.Errorf("%w: node %d reads input %d of %d", ErrInvalidGraph, i, idx, inputCount)
				}
				continue
			}
			if !produced[label] {
				return fmt.Errorf("%w: node %d reads [%s] before it is produced", ErrInvalidGraph, i, label)
			}
			if consumed[label] {
				return fmt.Errorf("%w: label [%s] consumed twice", ErrInvalidGraph, label)
			}
			consumed[label] = true
		}
		for _, label := range node.Outputs {
			if label == "" || streamSpecifier.MatchString(label) {
				return fmt.Errorf("%w: node %d has invalid output label %q", ErrInvalidGraph, i, label)
			}
			if produced[label] {
				return fmt.Errorf("%w: label [%s] produced twice", ErrInvalidGraph, label)
			}
			produced[label] = true
		}
	}
	return nil
}

// Produces reports whether some node outputs label.
func (g Graph) Produces(label string) bool {
	for _, node := range g.Nodes {
		for _, out := range node.Outputs {
			if out == label {
				return true
			}
		}
	}
	return false
}

// String renders the graph in ffmpeg -filter_complex syntax.
func (g Graph) String() string {
	var b strings.Builder
	for i, node := range g.Nodes {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, label := range node.Inputs {
			b.WriteString("[" + label + "]")
		}
		for j, filter := range node.Filters {
			if j > 0 {
				b.WriteByte(',')
			}
			writeFilter(&b, filter)
		}
		for _, label := range node.Outputs {
			b.WriteString("[" + label + "]")
		}
	}
	return b.String()
}

func writeFilter(b *strings.Builder, f Filter) {
	b.WriteString(f.Name)
	for i, arg := range f.Args {
		if i == 0 {
			b.WriteByte('=')
		} else {
			b.WriteByte(':')
		}
		if arg.Key != "" {
			b.WriteString(arg.Key)
			b.WriteByte('=')
		}
		if arg.Kind == ArgText {
			b.WriteString(EscapeText(arg.Value))
		} else {
			b.WriteString(escapeValue(arg.Value))
		}
	}
}

// Render validates the graph and returns its text.
func (g Graph) Render(inputCount int) (string, error) {
	if err := g.Validate(inputCount); err != nil {
		return "", err
	}
	return g.String(), nil
}
