package schema

import (
	"fmt"

	"impex-service/internal/models"
)

// Kind is the coercion kind of a schema field
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindInt
	KindFloat
	KindBool
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindStringList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultListDelimiter separates list items inside a single CSV cell
const DefaultListDelimiter = ";"

// Field describes one logical field of a record type
type Field struct {
	Name     string
	Kind     Kind
	Required bool

	// ListDelimiter splits list-valued CSV cells. Defaults to ";".
	ListDelimiter string

	// Rules holds extra validator tags checked on the create path,
	// e.g. "gt=0" or "len=3,alpha,uppercase".
	Rules string

	// Immutable fields are creation metadata and are never merged.
	Immutable bool

	Description string
	Example     string
}

func (f Field) delimiter() string {
	if f.ListDelimiter == "" {
		return DefaultListDelimiter
	}
	return f.ListDelimiter
}

// Options names a record type and its bookkeeping fields
type Options struct {
	// Entity is the URL segment and template name, e.g. "categories"
	Entity string
	// Collection is the document collection / table name
	Collection string
	// Subject prefixes domain event types, e.g. "category"
	Subject string

	CreatedField  string
	ModifiedField string
}

// Descriptor is the immutable field schema of one record type. It is built
// once at startup and shared read-only by parsers, validator and merge.
type Descriptor struct {
	opts   Options
	fields []Field
	index  map[string]int
}

// New builds a descriptor, rejecting duplicate field names and bookkeeping
// fields that are not declared as dates.
func New(opts Options, fields ...Field) (*Descriptor, error) {
	if opts.Entity == "" || opts.Collection == "" {
		return nil, fmt.Errorf("schema: entity and collection are required")
	}

	d := &Descriptor{
		opts:   opts,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field without name", opts.Entity)
		}
		if _, dup := d.index[f.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", opts.Entity, f.Name)
		}
		if f.Kind == KindStringList && f.ListDelimiter == "" {
			f.ListDelimiter = DefaultListDelimiter
		}
		d.index[f.Name] = len(d.fields)
		d.fields = append(d.fields, f)
	}

	for _, name := range []string{opts.CreatedField, opts.ModifiedField} {
		if name == "" {
			continue
		}
		f, ok := d.Field(name)
		if !ok || f.Kind != KindDate {
			return nil, fmt.Errorf("schema %s: bookkeeping field %q must be a declared date", opts.Entity, name)
		}
	}
	return d, nil
}

// MustNew is New that panics on an invalid definition
func MustNew(opts Options, fields ...Field) *Descriptor {
	d, err := New(opts, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Entity() string        { return d.opts.Entity }
func (d *Descriptor) Collection() string    { return d.opts.Collection }
func (d *Descriptor) Subject() string       { return d.opts.Subject }
func (d *Descriptor) CreatedField() string  { return d.opts.CreatedField }
func (d *Descriptor) ModifiedField() string { return d.opts.ModifiedField }

// Fields returns a copy of the field list in declaration order
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Field looks up a field by logical name
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// NewRecord returns a record with every field set to its zero value
func (d *Descriptor) NewRecord() *models.Record {
	rec := models.NewRecord()
	for _, f := range d.fields {
		rec.Set(f.Name, Zero(f.Kind))
	}
	return rec
}
