// Package render turns entity configurations into table-column and
// form-field descriptors and formats record values for display.
package render

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ContentType is the shape of a runtime value, independent of the field's
// declared kind. Admin data often arrives as loosely typed strings, so
// cells are rendered by what the value looks like.
type ContentType string

const (
	ContentNumber  ContentType = "number"
	ContentDate    ContentType = "date"
	ContentBoolean ContentType = "boolean"
	ContentString  ContentType = "string"
)

var (
	numericPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?$`)
)

var booleanWords = map[string]bool{
	"true": true, "oui": true, "yes": true, "1": true,
	"false": false, "non": false, "no": false, "0": false,
}

// DetectContentType classifies v, checking number, then date, then
// boolean, and falling back to string.
func DetectContentType(v any) ContentType {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return ContentNumber
	case time.Time:
		return ContentDate
	case bool:
		return ContentBoolean
	case string:
		s := strings.TrimSpace(x)
		switch {
		case numericPattern.MatchString(s):
			return ContentNumber
		case isoDatePattern.MatchString(s):
			return ContentDate
		}
		if _, ok := booleanWords[strings.ToLower(s)]; ok {
			return ContentBoolean
		}
	}
	return ContentString
}

// toFloat converts a number-like value.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if !numericPattern.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// toBool converts a boolean-like value.
func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, ok := booleanWords[strings.ToLower(strings.TrimSpace(x))]
		return b, ok
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// toTime parses time values, ISO strings and epoch milliseconds.
func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if f, ok := toFloat(v); ok {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Time{}, false
}
