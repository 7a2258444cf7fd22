package schema

import (
	"reflect"
	"regexp"
	"time"
)

// Type enumerates the MySQL physical column types supported by the schema
// layer. The set is closed: the collector rejects anything else.
type Type string

// Constants for every supported column type.
const (
	TypeVarchar    Type = "varchar"
	TypeChar       Type = "char"
	TypeText       Type = "text"
	TypeMediumText Type = "mediumtext"
	TypeLongText   Type = "longtext"
	TypeTinyInt    Type = "tinyint"
	TypeSmallInt   Type = "smallint"
	TypeInt        Type = "int"
	TypeBigInt     Type = "bigint"
	TypeFloat      Type = "float"
	TypeDouble     Type = "double"
	TypeDecimal    Type = "decimal"
	TypeBoolean    Type = "boolean"
	TypeDateTime   Type = "datetime"
	TypeTimestamp  Type = "timestamp"
	TypeDate       Type = "date"
	TypeTime       Type = "time"
	TypeYear       Type = "year"
	TypeJSON       Type = "json"
	TypeBlob       Type = "blob"
	TypeBinary     Type = "binary"
)

var allTypes = map[Type]bool{
	TypeVarchar: true, TypeChar: true, TypeText: true, TypeMediumText: true,
	TypeLongText: true, TypeTinyInt: true, TypeSmallInt: true, TypeInt: true,
	TypeBigInt: true, TypeFloat: true, TypeDouble: true, TypeDecimal: true,
	TypeBoolean: true, TypeDateTime: true, TypeTimestamp: true, TypeDate: true,
	TypeTime: true, TypeYear: true, TypeJSON: true, TypeBlob: true,
	TypeBinary: true,
}

// Known returns true if t is a member of the supported type set.
func (t Type) Known() bool {
	return allTypes[t]
}

// Integer returns true for the integer type family (including year, which
// stores a 4-digit integer).
func (t Type) Integer() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt, TypeYear:
		return true
	}
	return false
}

// Stringish returns true for types whose natural in-memory representation is
// a string.
func (t Type) Stringish() bool {
	switch t {
	case TypeVarchar, TypeChar, TypeText, TypeMediumText, TypeLongText, TypeTime:
		return true
	}
	return false
}

// Temporal returns true for date/time types that hydrate into time values.
func (t Type) Temporal() bool {
	switch t {
	case TypeDateTime, TypeTimestamp, TypeDate:
		return true
	}
	return false
}

// PKStrategy determines how primary key values are produced.
type PKStrategy string

// Supported primary key strategies.
const (
	PKAuto   PKStrategy = "auto"
	PKUUID   PKStrategy = "uuid"
	PKManual PKStrategy = "manual"
)

// Known returns true if s is a recognized strategy.
func (s PKStrategy) Known() bool {
	return s == PKAuto || s == PKUUID || s == PKManual
}

// FKAction is a referential action for ON DELETE / ON UPDATE clauses.
type FKAction string

// Supported referential actions.
const (
	ActionRestrict FKAction = "RESTRICT"
	ActionCascade  FKAction = "CASCADE"
	ActionSetNull  FKAction = "SET NULL"
	ActionNoAction FKAction = "NO ACTION"
)

// Known returns true if a is a recognized referential action.
func (a FKAction) Known() bool {
	switch a {
	case ActionRestrict, ActionCascade, ActionSetNull, ActionNoAction:
		return true
	}
	return false
}

var reIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is usable as a table, column, or index
// name. Identifiers are validated at collection time, which is what makes
// backtick-quoted interpolation safe everywhere downstream.
func ValidIdentifier(name string) bool {
	return reIdentifier.MatchString(name)
}

var timeType = reflect.TypeOf(time.Time{})
var byteSliceType = reflect.TypeOf([]byte(nil))

// CompatibleWith reports whether a source field of type ft may be mapped to
// column type t. Pointer types are unwrapped first (a pointer only affects
// nullability), and named types are reduced to their underlying kind, which
// is how backed enumerations become their backing scalar.
func (t Type) CompatibleWith(ft reflect.Type) bool {
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}
	kind := ft.Kind()
	switch t {
	case TypeVarchar, TypeChar, TypeText, TypeMediumText, TypeLongText, TypeTime:
		return kind == reflect.String
	case TypeJSON:
		return kind == reflect.String || kind == reflect.Slice || kind == reflect.Map
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt, TypeYear:
		return isIntegerKind(kind)
	case TypeFloat, TypeDouble:
		return kind == reflect.Float32 || kind == reflect.Float64
	case TypeDecimal:
		return kind == reflect.String || kind == reflect.Float32 || kind == reflect.Float64
	case TypeBoolean:
		return kind == reflect.Bool || isIntegerKind(kind)
	case TypeDateTime, TypeTimestamp, TypeDate:
		return ft == timeType || kind == reflect.String
	case TypeBlob, TypeBinary:
		return ft == byteSliceType || kind == reflect.String
	}
	return false
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
