package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Record is one imported document: a system-assigned identifier plus the
// schema fields keyed by their logical name. Field values are typed by the
// schema kind: string, time.Time, int, float64, bool or []string.
type Record struct {
	ID     string
	Fields map[string]any

	// Line is the 1-based position of the record in the uploaded file
	// (CSV line number or JSON array position). Zero when not parsed.
	Line int
}

// NewRecord returns an empty record with an initialized field map
func NewRecord() *Record {
	return &Record{Fields: make(map[string]any)}
}

func (r *Record) Get(name string) any {
	return r.Fields[name]
}

func (r *Record) Set(name string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// String returns the string value of a field, or "" when absent
func (r *Record) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Strings returns the list value of a field, or nil when absent
func (r *Record) Strings(name string) []string {
	l, _ := r.Fields[name].([]string)
	return l
}

// Time returns the date value of a field, or the zero time when absent
func (r *Record) Time(name string) time.Time {
	t, _ := r.Fields[name].(time.Time)
	return t
}

func (r *Record) Int(name string) int {
	i, _ := r.Fields[name].(int)
	return i
}

func (r *Record) Float(name string) float64 {
	f, _ := r.Fields[name].(float64)
	return f
}

func (r *Record) Bool(name string) bool {
	b, _ := r.Fields[name].(bool)
	return b
}

// Clone returns a deep copy; list values are copied so the clone can be
// mutated without touching the original.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID, Line: r.Line, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		if l, ok := v.([]string); ok {
			cp := make([]string, len(l))
			copy(cp, l)
			out.Fields[k] = cp
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// MarshalJSON flattens the record into a single object with "id" next to
// the schema fields. Zero dates are rendered as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		if t, ok := v.(time.Time); ok && t.IsZero() {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	if r.ID != "" {
		out["id"] = r.ID
	}
	return json.Marshal(out)
}

// JSON type for PostgreSQL JSONB
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Error represents error details
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}
