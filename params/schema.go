// Package params resolves command line options into an immutable parameter
// bag shared by benchmark drivers and the measurement harness.
package params

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/weiihann/mlbench/bencherr"
)

// Kind is the declared type of an option.
type Kind int

// Option kinds.
const (
	String Kind = iota
	Int
	Float
	Bool
	// FloatOrIntKind holds a FloatOrInt.
	FloatOrIntKind
	// StringList accumulates comma separated tokens across repeats.
	StringList
)

// String names k in usage text.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case FloatOrIntKind:
		return "float_or_int"
	case StringList:
		return "strings"
	default:
		return "unknown"
	}
}

// Option declares one command line option. A nil Default leaves the
// option unset in the bag unless it is given on the command line.
type Option struct {
	Name    string
	Kind    Kind
	Default any
	Choices []string
	Usage   string
}

// Schema is an ordered list of option declarations.
type Schema []Option

// Extend returns a new schema with opts appended after s.
func (s Schema) Extend(opts ...Option) Schema {
	out := make(Schema, 0, len(s)+len(opts))
	out = append(out, s...)

	return append(out, opts...)
}

// rawValue collects the literal tokens of one option. Typed parsing is
// deferred to Resolve so that every failure surfaces as a ValidationError.
type rawValue struct {
	kind   Kind
	tokens []string
}

func (v *rawValue) String() string {
	return strings.Join(v.tokens, ",")
}

func (v *rawValue) Set(s string) error {
	if v.kind == StringList {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				v.tokens = append(v.tokens, part)
			}
		}

		return nil
	}

	v.tokens = []string{s}

	return nil
}

func (v *rawValue) Type() string {
	return v.kind.String()
}

// Register binds every option of s onto fs.
func (s Schema) Register(fs *pflag.FlagSet) {
	for _, opt := range s {
		fs.Var(&rawValue{kind: opt.Kind}, opt.Name, usage(opt))

		if opt.Kind == Bool {
			fs.Lookup(opt.Name).NoOptDefVal = "true"
		}
	}
}

func usage(opt Option) string {
	u := opt.Usage
	if len(opt.Choices) > 0 {
		u += fmt.Sprintf(" (one of: %s)", strings.Join(opt.Choices, ", "))
	}

	if opt.Default != nil {
		u += fmt.Sprintf(" (default %v)", opt.Default)
	}

	return u
}

// Resolve reads the options of s back from fs, which must have been
// populated by Register and parsed.
func (s Schema) Resolve(fs *pflag.FlagSet) (Bag, error) {
	bag := Bag{values: make(map[string]any, len(s))}

	for _, opt := range s {
		flag := fs.Lookup(opt.Name)
		if flag == nil {
			return Bag{}, bencherr.Configuration(
				opt.Name, "option declared but not registered",
			)
		}

		raw, ok := flag.Value.(*rawValue)
		if !ok {
			return Bag{}, bencherr.Configuration(
				opt.Name, "option registered outside the schema",
			)
		}

		var value any
		if flag.Changed {
			v, err := parse(opt, raw.tokens)
			if err != nil {
				return Bag{}, err
			}

			value = v
		} else {
			value = opt.Default
		}

		if err := checkChoice(opt, value); err != nil {
			return Bag{}, err
		}

		bag.order = append(bag.order, opt.Name)
		bag.values[opt.Name] = value
	}

	return bag, nil
}

// Parse registers s on a private flag set, parses args and resolves the bag.
func (s Schema) Parse(args []string) (Bag, error) {
	fs := pflag.NewFlagSet("params", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	s.Register(fs)

	if err := fs.Parse(args); err != nil {
		return Bag{}, bencherr.Validation("", "%v", err)
	}

	return s.Resolve(fs)
}

func parse(opt Option, tokens []string) (any, error) {
	if opt.Kind == StringList {
		return slices.Clone(tokens), nil
	}

	token := ""
	if len(tokens) > 0 {
		token = tokens[len(tokens)-1]
	}

	switch opt.Kind {
	case String:
		return token, nil

	case Int:
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, bencherr.Validation(opt.Name, "%q is not an integer", token)
		}

		return n, nil

	case Float:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, bencherr.Validation(opt.Name, "%q is not a number", token)
		}

		return f, nil

	case Bool:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return nil, bencherr.Validation(opt.Name, "%q is not a boolean", token)
		}

		return b, nil

	case FloatOrIntKind:
		v, err := ParseFloatOrInt(token)
		if err != nil {
			return nil, bencherr.Validation(opt.Name, "%v", err)
		}

		return v, nil

	default:
		return nil, bencherr.Configuration(opt.Name, "unknown option kind %d", opt.Kind)
	}
}

func checkChoice(opt Option, value any) error {
	if len(opt.Choices) == 0 || value == nil {
		return nil
	}

	s := fmt.Sprint(value)
	if !slices.Contains(opt.Choices, s) {
		return bencherr.Validation(opt.Name,
			"invalid choice %q (choose from %s)", s, strings.Join(opt.Choices, ", "),
		)
	}

	return nil
}
