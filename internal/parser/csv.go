package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/sirupsen/logrus"
)

// CSVParser reads a header line followed by data lines. Cells are split on
// plain commas: quoted fields are not supported, so a value containing a
// comma shifts the remaining columns of its row.
type CSVParser struct {
	logger *logrus.Entry
}

func NewCSVParser(logger *logrus.Entry) *CSVParser {
	return &CSVParser{logger: logger.WithField("parser", "csv")}
}

// Parse buffers the whole stream. Columns are matched to schema fields by
// exact header name; missing columns and short rows yield zero values.
// Coercion failures are logged and leave the field at its zero value.
func (p *CSVParser) Parse(r io.Reader, d *schema.Descriptor) ([]*models.Record, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	records := make([]*models.Record, 0, len(lines))
	if len(lines) == 0 {
		return records, nil
	}

	// spreadsheet exports prefix UTF-8 files with a byte order mark
	header := strings.TrimPrefix(lines[0], "\ufeff")

	headerMap := make(map[string]int)
	for i, h := range strings.Split(header, ",") {
		headerMap[strings.TrimSpace(h)] = i
	}

	fields := d.Fields()
	for i, line := range lines[1:] {
		lineNum := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")

		rec := models.NewRecord()
		rec.Line = lineNum
		for _, f := range fields {
			value, err := schema.ParseToken(f, fieldValue(cells, headerMap, f.Name))
			if err != nil {
				p.logger.WithFields(logrus.Fields{
					"entity": d.Entity(),
					"line":   lineNum,
					"field":  f.Name,
				}).WithError(err).Warn("Field coercion failed, using zero value")
			}
			rec.Set(f.Name, value)
		}
		records = append(records, rec)
	}

	p.logger.WithFields(logrus.Fields{
		"entity":  d.Entity(),
		"records": len(records),
	}).Debug("Parsed CSV file")
	return records, nil
}

func fieldValue(cells []string, headerMap map[string]int, name string) string {
	idx, ok := headerMap[name]
	if !ok || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// readLines reads the stream to completion, splitting on \n and dropping a
// trailing \r so CRLF files parse like LF files.
func readLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
	}
}
