package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/sirupsen/logrus"
)

// JSONParser decodes a JSON array of objects. Unknown keys are ignored and
// missing keys take the zero value of their field kind.
type JSONParser struct {
	logger *logrus.Entry
}

func NewJSONParser(logger *logrus.Entry) *JSONParser {
	return &JSONParser{logger: logger.WithField("parser", "json")}
}

func (p *JSONParser) Parse(r io.Reader, d *schema.Descriptor) ([]*models.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of objects", ErrMalformedJSON)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}

	records := make([]*models.Record, 0, len(items))
	for i, raw := range items {
		values, err := decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrMalformedJSON, i, err)
		}

		rec, problems := d.Decode(values)
		for _, problem := range problems {
			if errors.Is(problem, schema.ErrTypeMismatch) {
				return nil, fmt.Errorf("%w: element %d: %w", ErrMalformedJSON, i, problem)
			}
			p.logger.WithFields(logrus.Fields{
				"entity":  d.Entity(),
				"element": i,
				"field":   problem.Field,
			}).WithError(problem.Err).Warn("Field coercion failed, using zero value")
		}
		rec.Line = i + 1
		records = append(records, rec)
	}

	p.logger.WithFields(logrus.Fields{
		"entity":  d.Entity(),
		"records": len(records),
	}).Debug("Parsed JSON file")
	return records, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("element is not an object")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
