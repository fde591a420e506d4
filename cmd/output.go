package cmd

import (
	"fmt"
	"io"

	"powerball/database"
	"powerball/models"
	"powerball/source"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func statusLabel(status models.SyncStatus) string {
	switch status {
	case models.SyncStatusCompleted:
		return okColor.Sprint("✓ completed")
	case models.SyncStatusBusy:
		return warnColor.Sprint("! busy")
	default:
		return failColor.Sprint("✗ " + string(status))
	}
}

// printSyncResult writes a human summary of one run
func printSyncResult(w io.Writer, r *models.SyncResult) {
	fmt.Fprintf(w, "%s sync %s\n", r.Mode, statusLabel(r.Status))
	if r.RunID != "" {
		fmt.Fprintf(w, "  run:      %s\n", dimColor.Sprint(r.RunID))
	}
	fmt.Fprintf(w, "  years:    %v\n", r.YearsProcessed)
	fmt.Fprintf(w, "  inserted: %d  updated: %d  unchanged: %d\n", r.Inserted, r.Updated, r.Skipped)
	fmt.Fprintf(w, "  duration: %s\n", r.Duration())

	if r.ProblemCount > 0 {
		fmt.Fprintf(w, "  problems: %s\n", warnColor.Sprint(r.ProblemCount))
		for _, p := range r.Problems {
			fmt.Fprintf(w, "    - %s\n", p)
		}
		if hidden := r.ProblemCount - len(r.Problems); hidden > 0 {
			fmt.Fprintf(w, "    ... and %d more\n", hidden)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", failColor.Sprint(r.Error))
	}
}

// printFetchResult writes what a fetch found without storing it
func printFetchResult(w io.Writer, r *source.FetchResult) {
	d := r.Diagnostics
	fmt.Fprintf(w, "%s %s\n", okColor.Sprintf("%d entries", r.Len()), dimColor.Sprintf("via %s (%s)", r.Source, r.URL))
	fmt.Fprintf(w, "  attempts: %d  duration: %s\n", d.Attempts, d.Duration)
	if d.APIError != "" {
		fmt.Fprintf(w, "  api fallback: %s\n", warnColor.Sprint(d.APIError))
	}
	if r.Source == models.SourceHTML {
		fmt.Fprintf(w, "  anchors: %d  draw anchors: %d  lists: %d  items: %d  skipped: %d\n",
			d.Anchors, d.DrawAnchors, d.Lists, d.ListItems, d.Skipped)
	}
	for entry := range r.Entries() {
		draw, err := entry.ToDraw()
		if err != nil {
			fmt.Fprintf(w, "  %s %s\n", failColor.Sprint("✗"), err)
			continue
		}
		fmt.Fprintf(w, "  %d  %s  %v  PB %d\n", draw.DrawNumber, draw.DrawDate.Format(models.DateLayout), draw.MainNumbers, draw.Powerball)
	}
}

func printMigrationStatus(w io.Writer, s *database.MigrationStatus) {
	if !s.Applied {
		fmt.Fprintln(w, warnColor.Sprint("No migrations applied"))
		return
	}
	state := okColor.Sprint("clean")
	if s.Dirty {
		state = failColor.Sprint("dirty")
	}
	fmt.Fprintf(w, "Migration version %d (%s)\n", s.Version, state)
}
