package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Date is a calendar date without time of day and without time zone. It is serialized as
// "YYYY-MM-DD" both in JSON and in the database.
type Date struct {
	civil.Date
}

// NewDate returns the date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// DateOf returns the date on which t falls, in t's location.
func DateOf(t time.Time) Date {
	return Date{civil.DateOf(t)}
}

// ParseDate accepts "YYYY-MM-DD" as well as RFC 3339 timestamps. For timestamps only the
// date part is kept, the offset is not applied.
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err == nil {
		return Date{d}, nil
	}
	t, errTime := time.Parse(time.RFC3339Nano, s)
	if errTime != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}}, nil
}

// AddDays returns the date that is n days later. n may be negative.
func (d Date) AddDays(n int) Date {
	return Date{d.Date.AddDays(n)}
}

// Before reports whether d is strictly before d2.
func (d Date) Before(d2 Date) bool {
	return d.Date.Before(d2.Date)
}

// After reports whether d is strictly after d2.
func (d Date) After(d2 Date) bool {
	return d.Date.After(d2.Date)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. Drivers hand out DATE columns either as time.Time (mysql with
// parseTime, postgres, sqlite with a DATE column type) or as text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into a date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	parsed, err := civil.ParseDate(s)
	if err != nil {
		return err
	}
	*d = Date{parsed}
	return nil
}
