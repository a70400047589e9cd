package object

import (
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Ellipsis marks truncated output.
const Ellipsis = "..."

// DefaultMaxDepth bounds nesting when ShowOptions.MaxDepth is zero.
const DefaultMaxDepth = 64

// ShowOptions limits the text produced by Show. Zero means unlimited for
// MaxStringLength and MaxElements, and DefaultMaxDepth for MaxDepth.
type ShowOptions struct {
	MaxStringLength int `yaml:"max_string_length" toml:"max_string_length"`
	MaxElements     int `yaml:"max_elements" toml:"max_elements"`
	MaxDepth        int `yaml:"max_depth" toml:"max_depth"`
}

// Printer accumulates the text of a value. Carriers write through it so the
// limits apply uniformly.
type Printer struct {
	sb    strings.Builder
	opts  ShowOptions
	depth int
}

// NewPrinter creates a printer with the given limits.
func NewPrinter(opts ShowOptions) *Printer {
	return &Printer{opts: opts}
}

func (p *Printer) WriteString(s string) {
	p.sb.WriteString(s)
}

func (p *Printer) String() string {
	return p.sb.String()
}

// Quoted writes s as a string literal, cut to MaxStringLength runes.
func (p *Printer) Quoted(s string) {
	if n := p.opts.MaxStringLength; n > 0 && utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n]) + Ellipsis
	}
	p.sb.WriteString(strconv.Quote(s))
}

// Value writes v. Past the depth limit the value is replaced by Ellipsis.
func (p *Printer) Value(ctx *Context, v Value) error {
	limit := p.opts.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if p.depth >= limit {
		p.sb.WriteString(Ellipsis)
		return nil
	}
	p.depth++
	err := v.behavior().Show(ctx, p, v)
	p.depth--
	return err
}

// Sequence writes the elements of seq between open and close, separated by
// commas, stopping after MaxElements.
func (p *Printer) Sequence(ctx *Context, open, close string, seq iter.Seq[Value]) error {
	p.sb.WriteString(open)
	i := 0
	var err error
	for v := range seq {
		if i > 0 {
			p.sb.WriteString(",")
		}
		if p.opts.MaxElements > 0 && i >= p.opts.MaxElements {
			p.sb.WriteString(Ellipsis)
			break
		}
		if err = p.Value(ctx, v); err != nil {
			break
		}
		i++
	}
	if err != nil {
		return err
	}
	p.sb.WriteString(close)
	return nil
}

// Show renders v with the context's options. Thunks are shown forced only
// if they are already evaluated.
func Show(ctx *Context, v Value) (string, error) {
	p := NewPrinter(ctx.Options)
	if err := p.Value(ctx, v); err != nil {
		return "", err
	}
	return p.String(), nil
}

// ShowString is Show for callers that only need text; failures render as
// the kind name.
func ShowString(ctx *Context, v Value) string {
	s, err := Show(ctx, v)
	if err != nil {
		return "<" + v.kind.String() + ">"
	}
	return s
}
