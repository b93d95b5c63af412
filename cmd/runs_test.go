package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/acceslibre/erpsync/internal/dataset"
	"github.com/acceslibre/erpsync/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(2 * time.Minute)
	runs := []model.ImportRun{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Dataset:     "gendarmerie",
			Status:      model.RunStatusComplete,
			Counts:      model.RunCounts{Imported: 3021, Skipped: 12, Errors: 4},
			StartedAt:   now,
			CompletedAt: &done,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Dataset:   "vaccination",
			Status:    model.RunStatusRunning,
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "DATASET")
	assert.Contains(t, output, "gendarmerie")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "3021")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "vaccination")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatDatasets(t *testing.T) {
	var buf bytes.Buffer
	formatDatasets(&buf, dataset.NewRegistry().All())

	output := buf.String()
	assert.Contains(t, output, "MAPPER")
	assert.Contains(t, output, "service-public")
	assert.Contains(t, output, "json")
}
