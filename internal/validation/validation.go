// Package validation provides centralized input validation for archivist.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xtxerr/archivist/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DefaultNameRules returns the default rules for names.
func DefaultNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ServiceNameRules returns rules for bot and service names, which may be
// dotted like channel names.
func ServiceNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules. Errors wrap
// errors.ErrInvalidName.
func ValidateName(name string, rules NameRules) error {
	if err := validateName(name, rules); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidName, err)
	}
	return nil
}

func validateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// =============================================================================
// Archive Path Validation
// =============================================================================

// ValidateArchivePath validates a slash-separated archive path. Every
// component must be non-empty, must not be '.' or '..' and must not contain
// control characters or backslashes. Errors wrap errors.ErrInvalidPath.
func ValidateArchivePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty archive path", errors.ErrInvalidPath)
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q is absolute", errors.ErrInvalidPath, path)
	}

	for _, part := range strings.Split(path, "/") {
		if err := validateComponent(part); err != nil {
			return fmt.Errorf("%w: %q: %s", errors.ErrInvalidPath, path, err)
		}
	}
	return nil
}

func validateComponent(part string) error {
	if part == "" {
		return fmt.Errorf("empty component")
	}

	if part == "." || part == ".." {
		return fmt.Errorf("component cannot be '.' or '..'")
	}

	for i, c := range part {
		if c < 32 || c == 127 {
			return fmt.Errorf("control character at position %d", i)
		}
		if c == '\\' {
			return fmt.Errorf("backslash at position %d", i)
		}
	}

	if len(part) > 255 {
		return fmt.Errorf("component too long: maximum 255 characters")
	}

	return nil
}
