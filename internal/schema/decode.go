package schema

import (
	"fmt"

	"impex-service/internal/models"
)

// FieldError reports a field whose decoded value could not be coerced
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Decode builds a record from decoded document values. Every schema field
// is populated; missing keys take their kind's zero value and unknown keys
// are ignored. Fields that failed coercion keep the zero value and are
// reported back so the caller can decide whether to log or abort.
func (d *Descriptor) Decode(values map[string]any) (*models.Record, []*FieldError) {
	rec := models.NewRecord()
	var problems []*FieldError

	for _, f := range d.fields {
		v, err := FromValue(f, values[f.Name])
		if err != nil {
			problems = append(problems, &FieldError{Field: f.Name, Err: err})
		}
		rec.Set(f.Name, v)
	}
	return rec, problems
}

// Encode returns the schema fields of a record as a plain document map.
// Fields missing from the record are written as their zero value.
func (d *Descriptor) Encode(rec *models.Record) map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		v, ok := rec.Fields[f.Name]
		if !ok || v == nil {
			v = Zero(f.Kind)
		}
		out[f.Name] = v
	}
	return out
}
