package rapidsql

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// entityIndex maps registered entity types to their column-to-field index.
// It is built once at setup and read-only afterward, which makes it safe to
// share across call chains without further synchronization.
type entityIndex struct {
	fields map[reflect.Type]map[string]int
}

// RegisterEntities builds the column-to-field index for the given entity
// prototypes. Column names come from `db` struct tags, falling back to the
// snake_cased field name; fields tagged `db:"-"` and unexported fields are
// skipped. It is a one-shot guard: nil or non-struct entries and a second
// call fail.
func (r *Runtime) RegisterEntities(prototypes ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entities != nil {
		return r.errorf(KindConfig, nil, "entity types already registered")
	}
	if len(prototypes) == 0 {
		return r.errorf(KindConfig, nil, "no entity prototypes given")
	}

	idx := &entityIndex{fields: make(map[reflect.Type]map[string]int, len(prototypes))}

	for _, prototype := range prototypes {
		if prototype == nil {
			return r.errorf(KindConfig, nil, "entity prototype is nil")
		}

		t := reflect.TypeOf(prototype)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return r.errorf(KindConfig, nil, "entity prototype %s is not a struct", t)
		}

		idx.fields[t] = structFieldIndex(t)
	}
	r.entities = idx

	return nil
}

func (r *Runtime) entityFields(t reflect.Type) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entities == nil {
		return nil, r.errorf(KindConfig, nil, "no entity types have been registered")
	}

	fields, ok := r.entities.fields[t]
	if !ok {
		return nil, r.errorf(KindEntity, nil, "entity type %s has not been registered", t)
	}

	return fields, nil
}

func structFieldIndex(t reflect.Type) map[string]int {
	index := make(map[string]int)

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}

		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}

		name := tag
		if name == "" {
			name = ToSnakeCase(f.Name)
		}
		index[name] = i
	}

	return index
}

// Materialize fills out, a pointer to a registered entity struct, from the
// current row. The struct is reset to its zero value first; each result
// column with a matching field is assigned, unmatched columns are ignored
// and unmatched fields keep their zero value.
func (c *Cursor) Materialize(out any) error {
	if c.closed {
		return c.rt.errorf(KindCursor, nil, "no query has been executed or the cursor is closed")
	}
	if !c.onRow {
		return c.rt.errorf(KindCursor, nil, "cursor is not positioned on a row")
	}

	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return c.rt.errorf(KindEntity, nil, "materialize target must be a non-nil struct pointer, got %T", out)
	}
	elem := rv.Elem()

	fields, err := c.rt.entityFields(elem.Type())
	if err != nil {
		return err
	}

	elem.Set(reflect.Zero(elem.Type()))

	for i, column := range c.columns {
		fieldIdx, ok := fields[column]
		if !ok {
			continue
		}

		if err := assignValue(elem.Field(fieldIdx), c.values[i]); err != nil {
			return c.rt.errorf(KindEntity, err, "assigning column %q to %s", column, elem.Type())
		}
	}

	return nil
}

// assignValue sets a raw driver value into a struct field. A nil value
// leaves the field at its zero value.
func assignValue(field reflect.Value, v any) error {
	if v == nil {
		return nil
	}

	if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(v)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	if b, ok := v.([]byte); ok {
		switch {
		case field.Kind() == reflect.String:
			field.SetString(string(b))
			return nil
		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
			field.SetBytes(append([]byte(nil), b...))
			return nil
		}
	}

	if rv.Type().ConvertibleTo(field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", v, field.Type())
}

var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")

func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")

	return strings.ToLower(snake)
}
