package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UnmarshalJSON accepts either a bare id string or a full object.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// StringList is a list of strings stored in a JSON column.
type StringList []string

func (l *StringList) Scan(src any) error { return scanJSON(src, l) }
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return valueJSON(l)
}

// TimeList is a list of timestamps stored in a JSON column.
type TimeList []time.Time

func (l *TimeList) Scan(src any) error { return scanJSON(src, l) }
func (l TimeList) Value() (driver.Value, error) {
	if l == nil {
		l = TimeList{}
	}
	return valueJSON(l)
}

// Location is a GeoJSON point with descriptive metadata.  Coordinates are
// longitude first, latitude second.
type Location struct {
	Type        string    `json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" validate:"omitempty,len=2"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}

// Scan decodes a nullable JSON column.
func (l *Location) Scan(src any) error { return scanJSON(src, l) }

func (l Location) Value() (driver.Value, error) {
	if l.Type == "" {
		l.Type = "Point"
	}
	return valueJSON(l)
}

// LocationList is a list of GeoJSON points stored in a JSON column.
type LocationList []Location

func (l *LocationList) Scan(src any) error { return scanJSON(src, l) }
func (l LocationList) Value() (driver.Value, error) {
	out := make([]Location, len(l))
	for i, loc := range l {
		if loc.Type == "" {
			loc.Type = "Point"
		}
		out[i] = loc
	}
	return valueJSON(out)
}

func scanJSON(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
