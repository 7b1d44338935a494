package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordClone(t *testing.T) {
	rec := NewRecord()
	rec.ID = "r1"
	rec.Line = 3
	rec.Set("ids", []string{"a", "b"})
	rec.Set("name", "Widgets")

	cp := rec.Clone()
	cp.Strings("ids")[0] = "changed"
	cp.Set("name", "Other")

	assert.Equal(t, []string{"a", "b"}, rec.Strings("ids"))
	assert.Equal(t, "Widgets", rec.String("name"))
	assert.Equal(t, "r1", cp.ID)
	assert.Equal(t, 3, cp.Line)

	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
}

func TestRecordMarshalJSON(t *testing.T) {
	rec := NewRecord()
	rec.ID = "r1"
	rec.Set("name", "Widgets")
	rec.Set("createdOn", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	rec.Set("modifiedOn", time.Time{})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "r1", out["id"])
	assert.Equal(t, "Widgets", out["name"])
	assert.Equal(t, "2024-01-15T00:00:00Z", out["createdOn"])
	v, ok := out["modifiedOn"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRecordTypedGettersOnMissingFields(t *testing.T) {
	rec := &Record{}
	assert.Equal(t, "", rec.String("x"))
	assert.Nil(t, rec.Strings("x"))
	assert.True(t, rec.Time("x").IsZero())
	assert.Equal(t, 0, rec.Int("x"))
	assert.Equal(t, 0.0, rec.Float("x"))
	assert.False(t, rec.Bool("x"))

	rec.Set("x", 1)
	assert.Equal(t, 1, rec.Int("x"))
}

func TestJSONScan(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), j["a"])

	require.NoError(t, j.Scan(`{"b":"x"}`))
	assert.Equal(t, "x", j["b"])

	require.NoError(t, j.Scan(nil))
	assert.Empty(t, j)
}
