package postgres

import (
	"database/sql/driver"
	"encoding/json"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

// jsonColumn adapts any Go value to a JSONB column for sqlx binding
type jsonColumn[T any] struct {
	V T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *jsonColumn[T]) Scan(src interface{}) error {
	if src == nil {
		var zero T
		c.V = zero
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return ierr.NewError("unsupported jsonb source type").
			Mark(ierr.ErrDatabase)
	}
	return json.Unmarshal(b, &c.V)
}
