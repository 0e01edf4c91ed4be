// Package ident validates names that are spliced into SQL as identifiers.
//
// Every model name, source, table, column, index and generated temporary
// name passes through Validate before it reaches a statement.
package ident

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leaprun/pkg/core"
)

var pattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// InvalidIdentifierError is returned for names outside the identifier alphabet.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	if e.Name == "" {
		return "invalid identifier: empty name"
	}
	return fmt.Sprintf("invalid identifier %q: must match %s", e.Name, pattern.String())
}

// Kind implements core.KindedError.
func (e *InvalidIdentifierError) Kind() core.ErrorKind { return core.ErrInvalidIdentifier }

// Validate returns name unchanged if it is a safe identifier.
func Validate(name string) (string, error) {
	if !pattern.MatchString(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return name, nil
}

// ValidateOptional is Validate for fields where empty means "not set".
func ValidateOptional(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return Validate(name)
}

// ValidateAll validates every name and returns the first failure.
func ValidateAll(names ...string) error {
	for _, n := range names {
		if _, err := Validate(n); err != nil {
			return err
		}
	}
	return nil
}

// Valid reports whether name is a safe identifier.
func Valid(name string) bool {
	return pattern.MatchString(name)
}

// Join composes parts with underscores and validates the result.
func Join(parts ...string) (string, error) {
	return Validate(strings.Join(parts, "_"))
}

// Sanitize maps s onto the identifier alphabet. Runs of other characters
// become a single underscore and a leading digit gets an underscore prefix.
// The result still has to pass Validate before use.
func Sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
