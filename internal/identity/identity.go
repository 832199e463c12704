// Package identity parses and validates student identity labels.
//
// A label is the name of an enrollment folder, of the form
// <rollcode>_<display name>. The roll code is everything before the first
// underscore; the display name is everything after it.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMissingSeparator means the label contains no underscore.
	ErrMissingSeparator = errors.New("missing separator")
	// ErrEmptyField means the roll code or the display name is empty.
	ErrEmptyField = errors.New("empty field")
	// ErrInvalidRollCode means the roll code contains characters outside [A-Za-z0-9_-].
	ErrInvalidRollCode = errors.New("invalid roll code")
)

var rollCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Identity is a parsed student label.
type Identity struct {
	RollNo string
	Name   string
}

// Parse splits a label into roll code and display name on the first
// underscore. Both fields are trimmed of surrounding whitespace; the name
// otherwise stays as written, so labels like "21045001_aman_meena" keep the
// underscores inside the name.
func Parse(label string) (Identity, error) {
	idx := strings.Index(label, "_")
	if idx < 0 {
		return Identity{}, fmt.Errorf("label %q: %w", label, ErrMissingSeparator)
	}

	rollNo := strings.TrimSpace(label[:idx])
	name := strings.TrimSpace(label[idx+1:])
	if rollNo == "" || name == "" {
		return Identity{}, fmt.Errorf("label %q: %w", label, ErrEmptyField)
	}
	if !rollCodeRe.MatchString(rollNo) {
		return Identity{}, fmt.Errorf("label %q: %w", label, ErrInvalidRollCode)
	}

	return Identity{RollNo: rollNo, Name: name}, nil
}
