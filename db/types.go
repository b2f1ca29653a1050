package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata represents a flexible key-value store for additional data, stored as JSON in the database.
// It implements the sql.Scanner and driver.Valuer interfaces to handle database serialization.
type Metadata map[string]any

// Scan implements the sql.Scanner interface, allowing Metadata to be read from the database.
// NULL and empty values scan into an empty, non-nil map.
func (m *Metadata) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = make(Metadata)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T", v)
	}

	decoded := make(Metadata)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("unmarshalling metadata : %w", err)
		}
	}
	if decoded == nil {
		decoded = make(Metadata)
	}
	*m = decoded
	return nil
}

// Value implements the driver.Valuer interface, allowing Metadata to be written to the database.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata : %w", err)
	}
	return string(encoded), nil
}
