package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/sirupsen/logrus"
)

// Format is the detected format of an uploaded file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Media types recognised by DetectFormat
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
)

var (
	ErrMissingFilename   = errors.New("file name is required")
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrIOFailure         = errors.New("failed to read file")
	ErrMalformedJSON     = errors.New("malformed JSON")
)

// FormatError carries the offending filename and content type of an
// unsupported upload. It matches ErrUnsupportedFormat with errors.Is.
type FormatError struct {
	Filename    string
	ContentType string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: filename %q, content type %q", ErrUnsupportedFormat, e.Filename, e.ContentType)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// DetectFormat picks the parser format for an upload. An exact media type
// match wins; otherwise the case-sensitive filename suffix decides.
func DetectFormat(filename, contentType string) (Format, error) {
	if filename == "" {
		return "", ErrMissingFilename
	}

	switch contentType {
	case ContentTypeCSV:
		return FormatCSV, nil
	case ContentTypeJSON:
		return FormatJSON, nil
	}

	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(filename, ".json"):
		return FormatJSON, nil
	}
	return "", &FormatError{Filename: filename, ContentType: contentType}
}

// Parser turns one uploaded stream into a batch of records. The batch may
// be empty but is never nil.
type Parser interface {
	Parse(r io.Reader, d *schema.Descriptor) ([]*models.Record, error)
}

// Registry maps formats to parsers
type Registry map[Format]Parser

// NewRegistry returns the CSV and JSON parsers sharing one logger
func NewRegistry(logger *logrus.Entry) Registry {
	return Registry{
		FormatCSV:  NewCSVParser(logger),
		FormatJSON: NewJSONParser(logger),
	}
}

// For returns the parser for a format
func (r Registry) For(f Format) (Parser, error) {
	p, ok := r[f]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %q", ErrUnsupportedFormat, f)
	}
	return p, nil
}
