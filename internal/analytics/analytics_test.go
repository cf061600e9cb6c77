package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorderLabelsFallBackToAction(t *testing.T) {
	var r Recorder
	r.Track(ActionCreate, "Shipped v2")
	r.Track(ActionExport, "")

	assert.Equal(t, []Event{
		{Action: ActionCreate, Category: Category, Label: "Shipped v2"},
		{Action: ActionExport, Category: Category, Label: "export"},
	}, r.Events())
}

func TestLogTrackerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewLogTracker(zap.New(core)).Track(ActionDelete, "Old talk")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "delete", fields["action"])
		assert.Equal(t, Category, fields["category"])
		assert.Equal(t, "Old talk", fields["label"])
		assert.Equal(t, "analytics", entries[0].LoggerName)
	}
}
