package hydrate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/semitexa/orm/schema"
)

// Temporal formats accepted on the way in and emitted on the way out.
const (
	datetimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

// Hydrate copies a materialized row into a resource value. Row keys without a
// declared column are ignored; NULL values leave the field untouched. dest
// must be a pointer to the resource struct.
func (m *Mapper) Hydrate(row map[string]any, dest any) error {
	meta, err := m.Metadata(dest)
	if err != nil {
		return err
	}
	return hydrateInto(meta, row, dest)
}

func hydrateInto(meta *Metadata, row map[string]any, dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("hydration target must be a non-nil pointer, not %T", dest)
	}
	rv = rv.Elem()
	for name, raw := range row {
		col, declared := meta.Columns[name]
		if !declared || raw == nil {
			continue
		}
		field := rv.FieldByIndex(col.FieldIndex)
		if err := setField(field, col, raw); err != nil {
			return fmt.Errorf("column %s.%s: %s", meta.Table.Name, name, err)
		}
	}
	return nil
}

// setField converts one raw driver value to the field's declared in-memory
// type. Named types with scalar underlying kinds (backed enumerations) are
// handled by the kind-based setters.
func setField(field reflect.Value, col *schema.Column, raw any) error {
	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setField(elem.Elem(), col, raw); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	switch field.Kind() {
	case reflect.Bool:
		b, err := toBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(raw)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt(raw)
		if err != nil {
			return err
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := toFloat(raw)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.String:
		field.SetString(toString(raw))
	case reflect.Struct:
		if field.Type() == timeType {
			t, err := toTime(raw)
			if err != nil {
				return err
			}
			field.Set(reflect.ValueOf(t))
			return nil
		}
		return decodeJSON(field, col, raw)
	case reflect.Slice:
		if field.Type() == byteSliceType && col.Type != schema.TypeJSON {
			field.SetBytes(toBytes(raw))
			return nil
		}
		return decodeJSON(field, col, raw)
	case reflect.Map:
		return decodeJSON(field, col, raw)
	default:
		return fmt.Errorf("cannot hydrate into %s", field.Type())
	}
	return nil
}

// decodeJSON fills a structured field from a JSON column. A string (or bytes)
// value is decoded; an already-structured value is passed through when the
// types line up.
func decodeJSON(field reflect.Value, col *schema.Column, raw any) error {
	switch v := raw.(type) {
	case string:
		return json.Unmarshal([]byte(v), field.Addr().Interface())
	case []byte:
		return json.Unmarshal(v, field.Addr().Interface())
	}
	rawValue := reflect.ValueOf(raw)
	if rawValue.Type().AssignableTo(field.Type()) {
		field.Set(rawValue)
		return nil
	}
	return fmt.Errorf("cannot decode %T into %s column %s", raw, col.Type, col.Name)
}

// Dehydrate converts a resource value into a column-name-keyed row, restricted
// to declared columns whose fields are initialized: nil pointers are skipped,
// as are zero-valued auto-increment keys. An unset uuid-strategy primary key
// is generated here.
func (m *Mapper) Dehydrate(resource any) (map[string]any, error) {
	meta, err := m.Metadata(resource)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(resource)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot dehydrate a nil %s", rv.Type())
		}
		rv = rv.Elem()
	}

	row := make(map[string]any, len(meta.Columns))
	for _, col := range meta.Table.Columns {
		if len(col.FieldIndex) == 0 {
			continue
		}
		field := rv.FieldByIndex(col.FieldIndex)
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				continue
			}
			field = field.Elem()
		}
		if field.IsZero() {
			if col.AutoIncrement() {
				continue
			}
			if col.PrimaryKey && col.PKStrategy == schema.PKUUID {
				row[col.Name] = generatedUUID(col)
				continue
			}
		}
		value, err := dehydrateValue(field, col)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %s", meta.Table.Name, col.Name, err)
		}
		row[col.Name] = value
	}
	return row, nil
}

func dehydrateValue(field reflect.Value, col *schema.Column) (any, error) {
	switch field.Kind() {
	case reflect.Bool:
		if field.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(field.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return field.Float(), nil
	case reflect.String:
		return field.String(), nil
	case reflect.Struct:
		if field.Type() == timeType {
			return formatTime(field.Interface().(time.Time), col.Type), nil
		}
		return encodeJSON(field)
	case reflect.Slice:
		if field.Type() == byteSliceType && col.Type != schema.TypeJSON {
			return field.Bytes(), nil
		}
		return encodeJSON(field)
	case reflect.Map:
		return encodeJSON(field)
	}
	return nil, fmt.Errorf("cannot dehydrate %s", field.Type())
}

func encodeJSON(field reflect.Value) (any, error) {
	encoded, err := json.Marshal(field.Interface())
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func formatTime(t time.Time, colType schema.Type) string {
	switch colType {
	case schema.TypeDate:
		return t.Format(dateLayout)
	case schema.TypeTime:
		return t.Format(timeLayout)
	default:
		return t.Format(datetimeLayout)
	}
}

// generatedUUID produces a fresh primary key value for the uuid strategy,
// rendered to match the column's physical type.
func generatedUUID(col *schema.Column) any {
	id := uuid.New()
	if col.Type == schema.TypeBinary {
		return id[:]
	}
	return id.String()
}

///// Raw value conversions /////

var timeType = reflect.TypeOf(time.Time{})
var byteSliceType = reflect.TypeOf([]byte(nil))

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case []byte:
		return string(v) != "0" && string(v) != "", nil
	case string:
		return v != "0" && v != "", nil
	}
	return false, fmt.Errorf("cannot interpret %T as bool", raw)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot interpret %T as integer", raw)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("cannot interpret %T as float", raw)
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(datetimeLayout)
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return []byte(fmt.Sprint(raw))
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return parseTime(string(v))
	case string:
		return parseTime(v)
	}
	return time.Time{}, fmt.Errorf("cannot interpret %T as time", raw)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{datetimeLayout, dateLayout, timeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a temporal value", s)
}
