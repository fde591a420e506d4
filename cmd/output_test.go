package cmd

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"powerball/database"
	"powerball/models"
	"powerball/source"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestPrintSyncResult(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := models.NewSyncResult("run-1", models.SyncModeFull, start)
	r.Status = models.SyncStatusCompleted
	r.YearsProcessed = []int{2023, 2024}
	r.AddCounts(3, 1, 2)
	for i := range models.MaxProblems + 2 {
		r.AddProblem(fmt.Sprintf("problem %d", i))
	}
	r.FinishedAt = start.Add(1500 * time.Millisecond)

	var buf bytes.Buffer
	printSyncResult(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "full sync ✓ completed")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "[2023 2024]")
	assert.Contains(t, out, "inserted: 3  updated: 1  unchanged: 2")
	assert.Contains(t, out, "duration: 1.5s")
	assert.Contains(t, out, "... and 2 more")
}

func TestPrintSyncResult_Failed(t *testing.T) {
	r := models.NewSyncResult("", models.SyncModeIncremental, time.Now())
	r.Status = models.SyncStatusFailed
	r.Error = "store unavailable: upsert: connection refused"

	var buf bytes.Buffer
	printSyncResult(&buf, r)
	assert.Contains(t, buf.String(), "✗ failed")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestPrintFetchResult(t *testing.T) {
	entries := []source.RawEntry{
		source.HTMLEntry{DrawNumber: 1001, DateText: "19 April, 2018", Numbers: []int{1, 2, 3, 4, 5, 6, 7, 10}},
		source.HTMLEntry{DrawNumber: 999, DateText: "5 April, 2018", Numbers: []int{1, 2, 3}},
	}
	result := source.NewFetchResult(models.SourceHTML, "https://feed.test/archive", entries)

	var buf bytes.Buffer
	printFetchResult(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "2 entries via html")
	assert.Contains(t, out, "1001  2018-04-19  [1 2 3 4 5 6 7]  PB 10")
	assert.Contains(t, out, "✗")
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, &database.MigrationStatus{})
	assert.Contains(t, buf.String(), "No migrations applied")

	buf.Reset()
	printMigrationStatus(&buf, &database.MigrationStatus{Version: 2, Applied: true})
	assert.Contains(t, buf.String(), "Migration version 2 (clean)")
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, setupLogging("debug", "json"))
	require.NoError(t, setupLogging("info", "text"))
	assert.Error(t, setupLogging("loud", "text"))
	assert.Error(t, setupLogging("info", "xml"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "sync", "scrape", "migrate"} {
		assert.True(t, names[want], want)
	}
}
