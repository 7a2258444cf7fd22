package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// TagName is the struct tag namespace read by the collector.
const TagName = "sx"

// fieldTag is the parsed form of a single sx struct tag. A tag declares
// either a column, a relation, or an aggregate (virtual) field.
type fieldTag struct {
	col        string
	typ        string
	length     int
	precision  int
	scale      int
	defaultRaw string
	hasDefault bool
	nullable   *bool
	pk         string
	deprecated bool
	filterable bool
	filterName string
	aggregate  bool

	rel      string
	fk       string
	pivot    string
	related  string
	target   string
	onDelete string
	onUpdate string
}

func (ft *fieldTag) isRelation() bool { return ft.rel != "" }

// parseFieldTag splits an sx tag into key[=value] pairs. Unknown keys are an
// error so that typos in annotations fail collection instead of silently
// producing a wrong schema.
func parseFieldTag(raw string) (*fieldTag, error) {
	ft := &fieldTag{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value := part, ""
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			key, value = part[:eq], part[eq+1:]
		}
		var err error
		switch key {
		case "col":
			ft.col = value
		case "type":
			ft.typ = value
		case "len":
			ft.length, err = strconv.Atoi(value)
		case "prec":
			ft.precision, err = strconv.Atoi(value)
		case "scale":
			ft.scale, err = strconv.Atoi(value)
		case "default":
			ft.defaultRaw = value
			ft.hasDefault = true
		case "null":
			b := value == "" || value == "true"
			ft.nullable = &b
		case "pk":
			if value == "" {
				value = string(PKAuto)
			}
			ft.pk = value
		case "deprecated":
			ft.deprecated = true
		case "filterable":
			ft.filterable = true
			ft.filterName = value
		case "aggregate":
			ft.aggregate = true
		case "rel":
			ft.rel = value
		case "fk":
			ft.fk = value
		case "pivot":
			ft.pivot = value
		case "related":
			ft.related = value
		case "target":
			ft.target = value
		case "on_delete":
			ft.onDelete = strings.ToUpper(strings.ReplaceAll(value, "_", " "))
		case "on_update":
			ft.onUpdate = strings.ToUpper(strings.ReplaceAll(value, "_", " "))
		default:
			return nil, fmt.Errorf("unknown tag key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("tag key %q: invalid value %q", key, value)
		}
	}
	return ft, nil
}

// typedDefault converts the raw tag default into the value space of the
// column type, so that rendering and comparison are type-aware (booleans to
// 1/0, numerics unquoted).
func typedDefault(raw string, typ Type) (any, error) {
	switch {
	case typ == TypeBoolean:
		switch raw {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean default %q", raw)
	case typ.Integer():
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer default %q", raw)
		}
		return v, nil
	case typ == TypeFloat || typ == TypeDouble:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float default %q", raw)
		}
		return v, nil
	default:
		return raw, nil
	}
}
