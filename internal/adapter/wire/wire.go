// Package wire decodes the loosely-typed values third-party APIs send: numbers
// that arrive as strings, identifiers that arrive as numbers and blank strings
// that mean "no value".
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenError is returned when a field carries a JSON token of a shape the
// decoder cannot accept.
type TokenError struct {
	Type  string
	Value string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("wire: cannot decode %s into %s", e.Value, e.Type)
}

var null = []byte("null")

// FlexInt decodes a JSON number or a numeric string into an int. null decodes
// to 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*f = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &TokenError{Type: "FlexInt", Value: raw}
		}
		raw = strings.TrimSpace(s)
	} else if len(data) == 0 || !(data[0] == '-' || (data[0] >= '0' && data[0] <= '9')) {
		return &TokenError{Type: "FlexInt", Value: raw}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Upstreams sometimes render integral values as "2.0".
		fl, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || fl != float64(int(fl)) {
			return &TokenError{Type: "FlexInt", Value: string(data)}
		}
		n = int(fl)
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(f))), nil
}

// Int returns the decoded value.
func (f FlexInt) Int() int { return int(f) }

// FlexString decodes a JSON string or number into a string and always
// encodes back out as a JSON string.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &TokenError{Type: "FlexString", Value: ""}
	}
	switch {
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &TokenError{Type: "FlexString", Value: string(data)}
		}
		*f = FlexString(s)
		return nil
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return &TokenError{Type: "FlexString", Value: string(data)}
		}
		*f = FlexString(n.String())
		return nil
	default:
		return &TokenError{Type: "FlexString", Value: string(data)}
	}
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(f))
}

func (f FlexString) String() string { return string(f) }

// Float parses the value as a float64.
func (f FlexString) Float() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil {
		return 0, &TokenError{Type: "float", Value: string(f)}
	}
	return v, nil
}

// layouts accepted for NullableTime, most specific first.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NullableTime is an optional timestamp. Absent values encode to null; null,
// "" and whitespace-only strings decode to absent.
type NullableTime struct {
	Time  time.Time
	Valid bool
}

// NewNullableTime wraps t as a present value.
func NewNullableTime(t time.Time) NullableTime {
	return NullableTime{Time: t, Valid: true}
}

func (n *NullableTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*n = NullableTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &TokenError{Type: "NullableTime", Value: string(data)}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*n = NullableTime{}
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			*n = NullableTime{Time: t, Valid: true}
			return nil
		}
	}
	return &TokenError{Type: "NullableTime", Value: string(data)}
}

func (n NullableTime) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return null, nil
	}
	return json.Marshal(n.Time.Format(time.RFC3339))
}

// Ptr returns the time or nil when absent.
func (n NullableTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
