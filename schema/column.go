package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Column represents a single declared column of a table. Instances are built
// by the collector and are immutable afterwards.
type Column struct {
	Name         string `json:"name"`
	PropertyName string `json:"propertyName"`
	Type         Type   `json:"type"`
	SourceType   string `json:"sourceType"`
	Nullable     bool   `json:"nullable,omitempty"`
	Length       int    `json:"length,omitempty"`
	Precision    int    `json:"precision,omitempty"`
	Scale        int    `json:"scale,omitempty"`
	Default      any    `json:"default,omitempty"`
	HasDefault   bool   `json:"hasDefault,omitempty"`
	PrimaryKey   bool   `json:"isPrimaryKey,omitempty"`
	PKStrategy   PKStrategy `json:"pkStrategy,omitempty"`
	Deprecated   bool   `json:"isDeprecated,omitempty"`

	// FieldIndex locates the backing struct field for hydration. Empty for
	// synthetic columns (e.g. tenant_id or pivot columns).
	FieldIndex []int `json:"-"`
}

// AutoIncrement returns true if the column is an integer primary key using
// the auto strategy, which is the only situation where the declared side is
// auto-increment.
func (c *Column) AutoIncrement() bool {
	return c.PrimaryKey && c.PKStrategy == PKAuto && c.Type.Integer()
}

// TypeSQL returns the full physical type for this column, exactly as MySQL
// 8.0 reports it in information_schema COLUMN_TYPE (integer display widths
// omitted, boolean rendered as tinyint(1)).
func (c *Column) TypeSQL() string {
	switch c.Type {
	case TypeVarchar:
		return fmt.Sprintf("varchar(%d)", c.lengthOr(255))
	case TypeChar:
		return fmt.Sprintf("char(%d)", c.lengthOr(1))
	case TypeBinary:
		return fmt.Sprintf("binary(%d)", c.lengthOr(16))
	case TypeDecimal:
		precision, scale := c.Precision, c.Scale
		if precision == 0 {
			precision = 10
		}
		return fmt.Sprintf("decimal(%d,%d)", precision, scale)
	case TypeBoolean:
		return "tinyint(1)"
	default:
		return string(c.Type)
	}
}

func (c *Column) lengthOr(fallback int) int {
	if c.Length > 0 {
		return c.Length
	}
	return fallback
}

// Definition returns this column's definition clause, for use as part of a
// CREATE TABLE or MODIFY COLUMN statement.
func (c *Column) Definition() string {
	var nullability, autoInc, defaultClause string
	if !c.Nullable {
		nullability = " NOT NULL"
	}
	if c.AutoIncrement() {
		autoInc = " AUTO_INCREMENT"
	}
	if clause, ok := c.DefaultClause(); ok {
		defaultClause = " DEFAULT " + clause
	}
	return fmt.Sprintf("%s %s%s%s%s", EscapeIdentifier(c.Name), c.TypeSQL(), nullability, defaultClause, autoInc)
}

// DefaultClause renders the declared default as a SQL literal. The second
// return value is false when no DEFAULT clause should be emitted at all,
// which is the case for NOT NULL columns without a declared default.
// Auto-increment columns never carry a default.
func (c *Column) DefaultClause() (string, bool) {
	if c.AutoIncrement() {
		return "", false
	}
	if !c.HasDefault || c.Default == nil {
		if c.Nullable {
			return "NULL", true
		}
		return "", false
	}
	switch v := c.Default.(type) {
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	default:
		return fmt.Sprintf("'%s'", EscapeValue(fmt.Sprint(v))), true
	}
}

// NormalizedDefault returns the exact string MySQL stores for the declared
// default in information_schema COLUMN_DEFAULT, or ok=false when the column
// has no default. This is what the comparator matches verbatim against the
// live side.
func (c *Column) NormalizedDefault() (string, bool) {
	if c.AutoIncrement() || !c.HasDefault || c.Default == nil {
		return "", false
	}
	switch v := c.Default.(type) {
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	default:
		return fmt.Sprint(v), true
	}
}

// NormalizeLiveType canonicalizes a COLUMN_TYPE string read from
// information_schema so it can be compared against TypeSQL output: lowercase,
// trimmed, integer display widths stripped.
func NormalizeLiveType(columnType string) string {
	normalized := strings.ToLower(strings.TrimSpace(columnType))
	return StripDisplayWidth(normalized)
}

// StripDisplayWidth removes a display width from an integer type string,
// e.g. "int(11)" becomes "int". tinyint(1) is preserved since it is the
// conventional boolean representation, not a display width. Non-integer
// types pass through unchanged.
func StripDisplayWidth(typeStr string) string {
	open := strings.IndexByte(typeStr, '(')
	if open < 0 {
		return typeStr
	}
	base := typeStr[:open]
	switch base {
	case "tinyint":
		if strings.HasPrefix(typeStr, "tinyint(1)") {
			return "tinyint(1)" + typeStr[len("tinyint(1)"):]
		}
	case "smallint", "mediumint", "int", "bigint", "year":
	default:
		return typeStr
	}
	close := strings.IndexByte(typeStr, ')')
	if close < 0 {
		return typeStr
	}
	return base + typeStr[close+1:]
}

// Equals returns true if two columns are identical, false otherwise.
// Field indexes are ignored; they are a hydration concern, not part of the
// schema identity.
func (c *Column) Equals(other *Column) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return c.Name == other.Name && c.PropertyName == other.PropertyName &&
		c.Type == other.Type && c.SourceType == other.SourceType &&
		c.Nullable == other.Nullable && c.Length == other.Length &&
		c.Precision == other.Precision && c.Scale == other.Scale &&
		c.HasDefault == other.HasDefault && c.Default == other.Default &&
		c.PrimaryKey == other.PrimaryKey && c.PKStrategy == other.PKStrategy &&
		c.Deprecated == other.Deprecated
}
