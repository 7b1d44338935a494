package merge

import (
	"time"

	"impex-service/internal/models"
	"impex-service/internal/schema"
)

// Engine merges a partial incoming record into an existing one
type Engine struct {
	now func() time.Time
}

// New returns an engine stamping modifications with now; nil means time.Now
func New(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Merge returns a copy of existing where every incoming field that is
// present overwrites the existing value. Numbers and booleans are always
// present, so they always overwrite. The identifier and immutable creation
// metadata are kept from existing, and the schema's modification field is
// set to the current time. Neither input is modified.
func (e *Engine) Merge(existing, incoming *models.Record, d *schema.Descriptor) *models.Record {
	merged := existing.Clone()
	modified := d.ModifiedField()

	for _, f := range d.Fields() {
		if f.Immutable || f.Name == modified {
			continue
		}
		value, ok := incoming.Fields[f.Name]
		if !ok || !schema.IsPresent(f.Kind, value) {
			continue
		}
		if l, isList := value.([]string); isList {
			cp := make([]string, len(l))
			copy(cp, l)
			value = cp
		}
		merged.Set(f.Name, value)
	}

	if modified != "" {
		merged.Set(modified, e.now().UTC())
	}
	return merged
}
