package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/revenue-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	completed := started.Add(2 * time.Minute)
	runs := []model.RunEntry{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Status:      model.RunStatusComplete,
			StartedAt:   started,
			CompletedAt: &completed,
			RowsIn:      500,
			RowsOut:     40,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			StartedAt: started.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "500")
}

func TestFormatRunsList_TruncatesError(t *testing.T) {
	runs := []model.RunEntry{
		{
			ID:        "ffff0000-0000-0000-0000-000000000000",
			Status:    model.RunStatusFailed,
			StartedAt: time.Now().UTC(),
			Error:     "ingest: table \"subscriptions\" missing required column \"customer_email\" in export",
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "in export")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
