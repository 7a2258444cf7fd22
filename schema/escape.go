package schema

import (
	"fmt"
	"strings"
)

// EscapeIdentifier backtick-quotes an identifier for use in DDL or DML.
// Identifiers have already been validated against the identifier regex at
// collection time, but escaping of embedded backticks is still applied for
// defense in depth.
func EscapeIdentifier(input string) string {
	escaped := strings.Replace(input, "`", "``", -1)
	return fmt.Sprintf("`%s`", escaped)
}

// EscapeValue doubles single quotes in a string literal destined for a
// quoted SQL value, e.g. a DEFAULT clause or a COMMENT clause.
func EscapeValue(input string) string {
	return strings.Replace(input, "'", "''", -1)
}
