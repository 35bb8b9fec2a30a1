package types

import (
	"strings"

	// Packages
	pgx "github.com/jackc/pgx/v5"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Quote returns a string literal, with embedded single quotes doubled
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DoubleQuote returns a quoted identifier
func DoubleQuote(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// IsNumeric returns true if the string is non-empty and consists of digits only
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsSingleQuoted returns true if the string is wrapped in single quotes
func IsSingleQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

// IsDoubleQuoted returns true if the string is wrapped in double quotes
func IsDoubleQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// IsIdentifier returns true if the string is a lower-case unquoted identifier:
// a letter or underscore followed by letters, digits or underscores
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			continue
		case r >= '0' && r <= '9' && i > 0:
			continue
		default:
			return false
		}
	}
	return true
}
