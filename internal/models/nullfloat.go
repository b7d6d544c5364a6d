package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a real value that may be missing. Market data fields use it
// instead of the "NA" placeholder so that missing is a state, not a string.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// NA is the missing value.
var NA = NullFloat{}

// Some returns a present value.
func Some(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// Get returns the value and whether it is present.
func (n NullFloat) Get() (float64, bool) {
	return n.Float64, n.Valid
}

// Or returns the value, or def when missing.
func (n NullFloat) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Float64
}

// String renders the value, or "NA" when missing.
func (n NullFloat) String() string {
	if !n.Valid {
		return "NA"
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// ParseNullFloat parses s. Empty strings and NA markers are missing values.
func ParseNullFloat(s string) (NullFloat, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "NAN", "NULL":
		return NA, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NA, fmt.Errorf("parse %q: %w", s, err)
	}
	if math.IsNaN(v) {
		return NA, nil
	}
	return Some(v), nil
}

// Scan implements sql.Scanner.
func (n *NullFloat) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*n = NA
	case float64:
		*n = Some(v)
	case int64:
		*n = Some(float64(v))
	case []byte:
		parsed, err := ParseNullFloat(string(v))
		if err != nil {
			return err
		}
		*n = parsed
	case string:
		parsed, err := ParseNullFloat(v)
		if err != nil {
			return err
		}
		*n = parsed
	default:
		return fmt.Errorf("cannot scan %T into NullFloat", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (n NullFloat) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Float64, nil
}

// MarshalJSON encodes a missing value as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON accepts null, numbers and numeric strings.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*n = NA
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := ParseNullFloat(str)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (n NullFloat) MarshalCSV() (string, error) {
	if !n.Valid {
		return "", nil
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (n *NullFloat) UnmarshalCSV(s string) error {
	parsed, err := ParseNullFloat(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
