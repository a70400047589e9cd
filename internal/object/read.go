package object

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/funvibe/ela/internal/diagnostics"
)

// Read parses the literal syntax produced by Show back into a value:
// unit, numbers with their width suffixes, chars, strings, bools, lists,
// tuples, records and variants. Opaque renderings such as <fun f> are
// rejected.
func Read(text string) (Value, error) {
	r := &reader{input: text}
	v, err := r.value()
	if err != nil {
		return Value{}, err
	}
	r.skipSpace()
	if r.pos < len(r.input) {
		return Value{}, r.errorf("unexpected %q", r.input[r.pos:])
	}
	return v, nil
}

type reader struct {
	input string
	pos   int
}

func (r *reader) errorf(format string, args ...interface{}) error {
	e := diagnostics.NewError(diagnostics.ConversionFailed, format, args...)
	e.Message += " at offset " + strconv.Itoa(r.pos)
	return e
}

func (r *reader) skipSpace() {
	for r.pos < len(r.input) && unicode.IsSpace(rune(r.input[r.pos])) {
		r.pos++
	}
}

func (r *reader) peek() byte {
	if r.pos < len(r.input) {
		return r.input[r.pos]
	}
	return 0
}

func (r *reader) expect(c byte) error {
	r.skipSpace()
	if r.peek() != c {
		return r.errorf("expected %q", c)
	}
	r.pos++
	return nil
}

func (r *reader) value() (Value, error) {
	r.skipSpace()
	switch c := r.peek(); {
	case c == 0:
		return Value{}, r.errorf("unexpected end of input")
	case c == '(':
		return r.tuple()
	case c == '[':
		return r.list()
	case c == '{':
		return r.record()
	case c == '"':
		s, err := r.quoted('"')
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == '\'':
		s, err := r.quoted('\'')
		if err != nil {
			return Value{}, err
		}
		ch, _, tail, err := strconv.UnquoteChar(s[1:len(s)-1], '\'')
		if err != nil || tail != "" {
			return Value{}, r.errorf("bad char literal %s", s)
		}
		return Char(ch), nil
	case c == '-' || c >= '0' && c <= '9':
		return r.number()
	case unicode.IsLetter(rune(c)) || c == '_':
		return r.word()
	}
	return Value{}, r.errorf("unexpected %q", r.peek())
}

// quoted scans a quoted literal. For strings it returns the unquoted text;
// for chars it returns the literal with its quotes.
func (r *reader) quoted(q byte) (string, error) {
	start := r.pos
	r.pos++
	for r.pos < len(r.input) {
		switch r.input[r.pos] {
		case '\\':
			r.pos += 2
			continue
		case q:
			r.pos++
			lit := r.input[start:r.pos]
			if q == '\'' {
				return lit, nil
			}
			s, err := strconv.Unquote(lit)
			if err != nil {
				return "", r.errorf("bad string literal %s", lit)
			}
			return s, nil
		}
		r.pos++
	}
	return "", r.errorf("unterminated literal")
}

func (r *reader) number() (Value, error) {
	start := r.pos
	if r.peek() == '-' {
		r.pos++
		if strings.HasPrefix(r.input[r.pos:], "Inf") {
			r.pos += 3
			return Double(math.Inf(-1)), nil
		}
	}
	for r.pos < len(r.input) && strings.IndexByte("0123456789.eE+-", r.input[r.pos]) >= 0 {
		if c := r.input[r.pos]; (c == '+' || c == '-') && !strings.ContainsAny(r.input[r.pos-1:r.pos], "eE") {
			break
		}
		r.pos++
	}
	text := r.input[start:r.pos]
	switch r.peek() {
	case 'L':
		r.pos++
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, r.errorf("bad long %s", text)
		}
		return Long(n), nil
	case 'f':
		r.pos++
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, r.errorf("bad single %s", text)
		}
		return Single(float32(f)), nil
	}
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, r.errorf("bad double %s", text)
		}
		return Double(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return Value{}, r.errorf("bad int %s", text)
	}
	return Int(int32(n)), nil
}

func (r *reader) ident() string {
	start := r.pos
	for r.pos < len(r.input) {
		c := rune(r.input[r.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '\'' {
			break
		}
		r.pos++
	}
	return r.input[start:r.pos]
}

// isIdent reports whether a record field name reads back unquoted. Only
// ASCII names qualify, matching ident.
func isIdent(name string) bool {
	for i := 0; i < len(name); i++ {
		c := rune(name[i])
		switch {
		case c >= unicode.MaxASCII:
			return false
		case unicode.IsLetter(c) || c == '_':
		case i > 0 && (unicode.IsDigit(c) || c == '\''):
		default:
			return false
		}
	}
	return name != ""
}

func (r *reader) word() (Value, error) {
	name := r.ident()
	switch name {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "NaN":
		return Double(math.NaN()), nil
	case "Inf":
		return Double(math.Inf(1)), nil
	}
	if !unicode.IsUpper(rune(name[0])) {
		return Value{}, r.errorf("unexpected identifier %s", name)
	}
	r.skipSpace()
	switch r.peek() {
	case 0, ',', ')', ']', '}':
		return NewVariant(name, Unit()), nil
	}
	payload, err := r.value()
	if err != nil {
		return Value{}, err
	}
	return NewVariant(name, payload), nil
}

func (r *reader) elements(close byte) ([]Value, bool, error) {
	var elems []Value
	trailing := false
	r.skipSpace()
	if r.peek() == close {
		r.pos++
		return nil, false, nil
	}
	for {
		v, err := r.value()
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, v)
		r.skipSpace()
		switch r.peek() {
		case ',':
			r.pos++
			r.skipSpace()
			if r.peek() == close {
				r.pos++
				return elems, true, nil
			}
		case close:
			r.pos++
			return elems, trailing, nil
		default:
			return nil, false, r.errorf("expected ',' or %q", close)
		}
	}
}

func (r *reader) tuple() (Value, error) {
	r.pos++
	elems, trailing, err := r.elements(')')
	if err != nil {
		return Value{}, err
	}
	switch {
	case len(elems) == 0:
		return Unit(), nil
	case len(elems) == 1 && !trailing:
		return elems[0], nil
	}
	return NewTuple(elems...), nil
}

func (r *reader) list() (Value, error) {
	r.pos++
	elems, _, err := r.elements(']')
	if err != nil {
		return Value{}, err
	}
	return NewList(elems...), nil
}

func (r *reader) record() (Value, error) {
	r.pos++
	var names []string
	var values []Value
	r.skipSpace()
	if r.peek() == '}' {
		r.pos++
		return NewRecord(nil, nil), nil
	}
	for {
		r.skipSpace()
		name, err := r.fieldName()
		if err != nil {
			return Value{}, err
		}
		if err := r.expect('='); err != nil {
			return Value{}, err
		}
		v, err := r.value()
		if err != nil {
			return Value{}, err
		}
		names = append(names, name)
		values = append(values, v)
		r.skipSpace()
		switch r.peek() {
		case ',':
			r.pos++
		case '}':
			r.pos++
			return NewRecord(names, values), nil
		default:
			return Value{}, r.errorf("expected ',' or '}'")
		}
	}
}

// fieldName reads a bare or quoted record field name.
func (r *reader) fieldName() (string, error) {
	if r.peek() == '"' {
		return r.quoted('"')
	}
	name := r.ident()
	if name == "" {
		return "", r.errorf("expected field name")
	}
	return name, nil
}
