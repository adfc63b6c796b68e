package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/revenue-cli/internal/model"
)

func TestAddRollupSheet(t *testing.T) {
	trialStart := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	file := xlsx.NewFile()
	err := addRollupSheet(file, []model.OrgRollup{
		{
			OrgKey:     "org-1",
			OrgName:    "Acme",
			Stage:      model.StagePaid,
			OwnerEmail: "owner@acme.com",
			Paid:       model.BucketTotals{ARR: 1200, MRR: 100, Subscriptions: 1},
			ARRTotal:   1200,
			MRRTotal:   100,
			TrialStart: &trialStart,
		},
	})
	require.NoError(t, err)

	sheet := file.Sheets[0]
	assert.Equal(t, "Rollups", sheet.Name)
	require.Len(t, sheet.Rows, 2)

	header := sheet.Rows[0]
	assert.Equal(t, "Org Key", header.Cells[0].Value)
	assert.Equal(t, "Org Name", header.Cells[1].Value)

	row := sheet.Rows[1]
	assert.Equal(t, "org-1", row.Cells[0].Value)
	assert.Equal(t, "Acme", row.Cells[1].Value)
	assert.Equal(t, "paid", row.Cells[2].Value)
	assert.Equal(t, "2025-01-01", row.Cells[10].Value)
	assert.Equal(t, "2025-01", row.Cells[12].Value)
}

func TestAddRetentionSheet_NilSummary(t *testing.T) {
	file := xlsx.NewFile()
	require.NoError(t, addRetentionSheet(file, nil))

	sheet := file.Sheets[0]
	// Header only when nothing has been computed yet.
	assert.Len(t, sheet.Rows, 1)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", formatDate(nil))
	d := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-15", formatDate(&d))
}
