package store

import "fmt"

// Kind is the value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNullString
	KindBool
	KindInt
)

// Column describes one column of an entity.
type Column struct {
	Name string
	Kind Kind
}

var schema = map[Entity][]Column{
	Profiles: {
		{"id", KindString},
		{"user_id", KindString},
		{"display_name", KindString},
		{"age_mode", KindString},
		{"created_at", KindInt},
	},
	Avatars: {
		{"id", KindString},
		{"profile_id", KindString},
		{"skin_tone_id", KindString},
		{"face_id", KindString},
		{"hair_id", KindString},
		{"hair_color_id", KindString},
		{"outfit_id", KindString},
		{"accessory_id", KindNullString},
		{"is_active", KindBool},
		{"created_at", KindInt},
	},
}

// Columns returns the columns of entity in table order.
func Columns(entity Entity) ([]Column, error) {
	cols, ok := schema[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return cols, nil
}

// ColumnNames returns the column names of entity in table order.
func ColumnNames(entity Entity) ([]string, error) {
	cols, err := Columns(entity)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// CheckColumns rejects unknown columns and values of the wrong type.
// Adapters build SQL from column names, so this is also the injection guard.
func CheckColumns[M ~map[string]any](entity Entity, m M) error {
	cols, err := Columns(entity)
	if err != nil {
		return err
	}
	kinds := make(map[string]Kind, len(cols))
	for _, c := range cols {
		kinds[c.Name] = c.Kind
	}
	for name, v := range m {
		kind, ok := kinds[name]
		if !ok {
			return fmt.Errorf("unknown column %s.%s", entity, name)
		}
		if !kindAccepts(kind, v) {
			return fmt.Errorf("column %s.%s: unexpected value type %T", entity, name, v)
		}
	}
	return nil
}

func kindAccepts(kind Kind, v any) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNullString:
		if v == nil {
			return true
		}
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindInt:
		_, ok := v.(int64)
		return ok
	}
	return false
}
