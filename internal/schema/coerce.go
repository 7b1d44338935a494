package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the accepted textual date format (yyyy-MM-dd)
const DateLayout = "2006-01-02"

var (
	// ErrCoercion marks a token that could not be converted. The field falls
	// back to its zero value; callers log it and keep the row.
	ErrCoercion = errors.New("coercion failed")

	// ErrTypeMismatch marks a decoded value of the wrong structural type,
	// e.g. an object where a string was expected.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Zero returns the zero value for a kind. Lists are empty, never nil.
func Zero(k Kind) any {
	switch k {
	case KindDate:
		return time.Time{}
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindStringList:
		return []string{}
	default:
		return ""
	}
}

// ParseToken converts a raw textual token (a CSV cell) to the field's kind.
// On failure it returns the zero value together with an ErrCoercion error.
func ParseToken(f Field, raw string) (any, error) {
	token := strings.TrimSpace(raw)

	switch f.Kind {
	case KindString:
		return token, nil
	case KindDate:
		return parseDate(f, token, false)
	case KindInt:
		if token == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(token)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrCoercion, f.Name, token)
		}
		return n, nil
	case KindFloat:
		if token == "" {
			return 0.0, nil
		}
		n, err := strconv.ParseFloat(token, 64)
		if err != nil || !isFinite(n) {
			return 0.0, fmt.Errorf("%w: %s: %q is not a number", ErrCoercion, f.Name, token)
		}
		return n, nil
	case KindBool:
		return strings.EqualFold(token, "true"), nil
	case KindStringList:
		return splitList(token, f.delimiter()), nil
	}
	return Zero(f.Kind), fmt.Errorf("%w: %s: unknown kind %s", ErrCoercion, f.Name, f.Kind)
}

// FromValue converts an already decoded value (encoding/json with UseNumber,
// BSON, or a cached document) to the field's kind. nil yields the zero
// value. Structurally wrong values return ErrTypeMismatch; unparsable
// strings return ErrCoercion with the zero value.
func FromValue(f Field, v any) (any, error) {
	if v == nil {
		return Zero(f.Kind), nil
	}

	switch f.Kind {
	case KindString:
		switch t := v.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		case int, int32, int64:
			return fmt.Sprint(t), nil
		case bool:
			return strconv.FormatBool(t), nil
		}

	case KindDate:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			return parseDate(f, strings.TrimSpace(t), true)
		case json.Number:
			ms, err := t.Int64()
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: %s: %q is not epoch milliseconds", ErrCoercion, f.Name, t)
			}
			return time.UnixMilli(ms).UTC(), nil
		case float64:
			return time.UnixMilli(int64(t)).UTC(), nil
		case int64:
			return time.UnixMilli(t).UTC(), nil
		}

	case KindInt:
		switch t := v.(type) {
		case int:
			return t, nil
		case int32:
			return int(t), nil
		case int64:
			return int(t), nil
		case float64:
			return truncateInt(f, t)
		case json.Number:
			if n, err := t.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
				return int(n), nil
			}
			fl, err := t.Float64()
			if err != nil {
				return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrCoercion, f.Name, t)
			}
			return truncateInt(f, fl)
		case string:
			return ParseToken(f, t)
		}

	case KindFloat:
		switch t := v.(type) {
		case float64:
			if !isFinite(t) {
				return 0.0, fmt.Errorf("%w: %s: %v is not a finite number", ErrCoercion, f.Name, t)
			}
			return t, nil
		case int:
			return float64(t), nil
		case int32:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case json.Number:
			fl, err := t.Float64()
			if err != nil || !isFinite(fl) {
				return 0.0, fmt.Errorf("%w: %s: %q is not a number", ErrCoercion, f.Name, t)
			}
			return fl, nil
		case string:
			return ParseToken(f, t)
		}

	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return strings.EqualFold(strings.TrimSpace(t), "true"), nil
		}

	case KindStringList:
		switch t := v.(type) {
		case []string:
			return normalizeList(t), nil
		case []any:
			items := make([]string, 0, len(t))
			for _, item := range t {
				s, err := FromValue(Field{Name: f.Name, Kind: KindString}, item)
				if err != nil {
					return []string{}, fmt.Errorf("%w: %s: list item %v (%T) is not a string", ErrTypeMismatch, f.Name, item, item)
				}
				items = append(items, s.(string))
			}
			return normalizeList(items), nil
		}
	}

	return Zero(f.Kind), fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, f.Name, f.Kind, v)
}

// IsPresent reports whether a value counts as supplied: strings must be
// non-blank, lists non-empty and dates non-zero. Numbers and booleans are
// always present since their zero value cannot be told apart from absence.
func IsPresent(k Kind, v any) bool {
	if v == nil {
		return false
	}
	switch k {
	case KindString:
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	case KindStringList:
		l, ok := v.([]string)
		return ok && len(l) > 0
	case KindDate:
		t, ok := v.(time.Time)
		return ok && !t.IsZero()
	default:
		return true
	}
}

// parseDate reads yyyy-MM-dd. Decoded documents may also carry RFC 3339
// timestamps, so allowTimestamp widens it for FromValue.
func parseDate(f Field, token string, allowTimestamp bool) (any, error) {
	if token == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, token); err == nil {
		return t, nil
	}
	if allowTimestamp {
		if t, err := time.Parse(time.RFC3339Nano, token); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s: %q is not a yyyy-MM-dd date", ErrCoercion, f.Name, token)
}

func isFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// truncateInt drops the fraction; values outside the int range coerce to 0.
func truncateInt(f Field, n float64) (any, error) {
	n = math.Trunc(n)
	if !isFinite(n) || n < math.MinInt || n >= math.MaxInt {
		return 0, fmt.Errorf("%w: %s: %v is out of integer range", ErrCoercion, f.Name, n)
	}
	return int(n), nil
}

// splitList splits a delimited cell. Brackets and quotes left over from
// spreadsheet exports are stripped; items are trimmed and blanks dropped.
func splitList(token, delimiter string) []string {
	cleaned := strings.NewReplacer("[", "", "]", "", `"`, "").Replace(token)
	if strings.TrimSpace(cleaned) == "" {
		return []string{}
	}
	return normalizeList(strings.Split(cleaned, delimiter))
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
