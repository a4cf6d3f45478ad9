package schema

import (
	"fmt"
)

// ValidIdent reports whether s is a legal identifier for a unit name, type
// name, field name, or enum variant name: a non-empty run of ASCII
// letters, digits and underscores that does not start with a digit.
func ValidIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// ValidateIdent returns an error naming what in kind is invalid about s.
// kind is a short noun such as "field" or "type" used only in the message.
func ValidateIdent(kind, s string) error {
	if !ValidIdent(s) {
		return fmt.Errorf("invalid %s name %q: must be letters, digits and underscores, not starting with a digit", kind, s)
	}
	return nil
}
