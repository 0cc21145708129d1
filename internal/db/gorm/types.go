// Package gorm provides GORM-based database operations for promptdock.
package gorm

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// Int64Array is a custom type for handling JSON integer arrays in jsonb
// columns (the pinned-folder-ID set).
type Int64Array []int64

// Scan implements sql.Scanner for Int64Array.
func (a *Int64Array) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*a = nil
			return nil
		}
		return json.Unmarshal(v, a)
	case string:
		if v == "" {
			*a = nil
			return nil
		}
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("Int64Array: unsupported type %T", src)
	}
}

// Value implements driver.Valuer for Int64Array.
func (a Int64Array) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// StringArray is a custom type for handling JSON string arrays in jsonb
// columns (the stored interests list).
type StringArray []string

// Scan implements sql.Scanner for StringArray.
func (a *StringArray) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*a = nil
			return nil
		}
		return json.Unmarshal(v, a)
	case string:
		if v == "" {
			*a = nil
			return nil
		}
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("StringArray: unsupported type %T", src)
	}
}

// Value implements driver.Valuer for StringArray.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
