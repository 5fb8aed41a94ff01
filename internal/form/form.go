package form

import (
	"fmt"
	"strings"
)

// Length is the number of results a form string carries.
const Length = 5

// Padding marks a slot with no real result behind it.
const Padding byte = '-'

// Form holds a team's last results, most recent first.
type Form [Length]byte

// Parse accepts up to five W/D/L characters and pads the rest.
func Parse(s string) (Form, error) {
	var f Form
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > Length {
		return f, fmt.Errorf("form %q longer than %d results", s, Length)
	}
	for i := 0; i < Length; i++ {
		if i >= len(s) {
			f[i] = Padding
			continue
		}
		switch s[i] {
		case 'W', 'D', 'L', Padding:
			f[i] = s[i]
		default:
			return Form{}, fmt.Errorf("invalid form result %q in %q", s[i], s)
		}
	}
	return f, nil
}

func fromResults(results []byte) Form {
	var f Form
	for i := range f {
		if i < len(results) {
			f[i] = results[i]
		} else {
			f[i] = Padding
		}
	}
	return f
}

// String renders padding as a draw so callers always see five W/D/L
// characters.
func (f Form) String() string {
	out := make([]byte, Length)
	for i, c := range f {
		if c == Padding || c == 0 {
			c = 'D'
		}
		out[i] = c
	}
	return string(out)
}

// Raw keeps the padding sentinel visible.
func (f Form) Raw() string {
	out := make([]byte, Length)
	for i, c := range f {
		if c == 0 {
			c = Padding
		}
		out[i] = c
	}
	return string(out)
}

// Played counts the slots backed by a real result.
func (f Form) Played() int {
	n := 0
	for _, c := range f {
		if isResult(c) {
			n++
		}
	}
	return n
}

func (f Form) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Form) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func isResult(c byte) bool {
	return c == 'W' || c == 'D' || c == 'L'
}
