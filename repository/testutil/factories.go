package testutil

import (
	"time"

	"powerball/models"
)

// CreateTestDraw creates a valid API-sourced draw
func CreateTestDraw(drawNumber int, drawDate time.Time) *models.Draw {
	main := make([]int, models.MainNumberCount)
	for i := range main {
		main[i] = (drawNumber+i*5)%models.MainNumberMax + 1
	}
	draw, err := models.NewDraw(drawNumber, drawDate, distinct(main), drawNumber%models.PowerballMax+1, models.SourceAPI, "https://feed.test")
	if err != nil {
		panic(err)
	}
	return draw
}

// CreateTestDrawWithNumbers creates a draw with the given results
func CreateTestDrawWithNumbers(drawNumber int, drawDate time.Time, main []int, powerball int) *models.Draw {
	draw, err := models.NewDraw(drawNumber, drawDate, main, powerball, models.SourceAPI, "https://feed.test")
	if err != nil {
		panic(err)
	}
	return draw
}

// CreateTestSyncResult creates a completed run summary
func CreateTestSyncResult(runID string, startedAt time.Time) *models.SyncResult {
	result := models.NewSyncResult(runID, models.SyncModeIncremental, startedAt)
	result.Status = models.SyncStatusCompleted
	result.YearsProcessed = []int{startedAt.Year()}
	result.AddCounts(2, 1, 5)
	result.AddProblem("year 2024: html draw 1 (1 January, 2024): malformed draw record")
	result.FinishedAt = startedAt.Add(3 * time.Second)
	return result
}

// distinct nudges repeated values upward so the set stays valid
func distinct(numbers []int) []int {
	seen := make(map[int]bool, len(numbers))
	for i, n := range numbers {
		for seen[n] {
			n = n%models.MainNumberMax + 1
		}
		seen[n] = true
		numbers[i] = n
	}
	return numbers
}
