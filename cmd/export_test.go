package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/carebridge/leadtrust/internal/model"
)

func sampleLeads() []model.Lead {
	ov := 30
	return []model.Lead{
		{
			ID: "l1", Email: "a@b.c", Phone: "1", FirstName: "Ana", Locale: "de",
			Status: model.LeadStatusNew, RuleScore: 80, FinalScore: 80,
			TrustStatus: model.TrustActive, CreatedAt: time.Now().UTC(),
		},
		{
			ID: "l2", DisplayName: "M. Schmidt", Status: model.LeadStatusContacted,
			RuleScore: 45, FinalScore: 30, TrustStatus: model.TrustBlacklisted,
			OverrideScore: &ov, OverrideBy: "admin", CreatedAt: time.Now().UTC(),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, writeCSV(path, sampleLeads()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "l1", rows[1][0])
	assert.Equal(t, "Ana", rows[1][3])
	assert.Equal(t, "M. Schmidt", rows[2][3])
	assert.Equal(t, "30", rows[2][9]) // override column
	assert.Equal(t, "admin", rows[2][10])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, writeXLSX(path, sampleLeads()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "id", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "l1", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "blacklisted", sheet.Rows[2].Cells[8].Value)
}
