package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamFor(t *testing.T) {
	assert.Equal(t, "CATEGORY_EVENTS", StreamFor("category"))
	assert.Equal(t, "RETURN_ORDER_EVENTS", StreamFor("return_order"))
}

func TestImportEventRouting(t *testing.T) {
	e := &ImportEvent{stream: StreamFor("return_order")}
	e.EventType = "return_order." + ActionImported

	assert.Equal(t, "return_order.imported", e.GetSubject())
	assert.Equal(t, "RETURN_ORDER_EVENTS", e.GetStream())
}
