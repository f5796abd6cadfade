package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ISO8601 is the layout used for every timestamp sent over the wire, UTC with milliseconds.
const ISO8601 = "2006-01-02T15:04:05.000Z"

var ErrInvalidDateTime = errors.New("invalid date time")

// DateTime wraps a time.Time struct, allowing for improved dateTime JSON compatibility.
type DateTime struct {
	time.Time
}

// NewDateTime Creates a new DateTime struct, embedding a time.Time struct.
func NewDateTime(time time.Time) *DateTime {
	return &DateTime{Time: time}
}

func Now() *DateTime {
	return NewDateTime(time.Now())
}

func (dt *DateTime) String() string {
	return dt.UTC().Format(ISO8601)
}

func (dt *DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *DateTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDateTime, string(data))
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDateTime, s)
	}
	dt.Time = t
	return nil
}
