package source

import (
	"fmt"
	"strings"
	"time"

	"powerball/models"
)

// RawEntry is one unvalidated draw as read from the feed.
// It is either an APIEntry or an HTMLEntry.
type RawEntry interface {
	// ToDraw validates the entry and converts it into a draw
	ToDraw() (*models.Draw, error)
	// Tag names the acquisition path that produced the entry
	Tag() models.SourceTag
	// String identifies the entry in problem messages
	String() string

	rawEntry()
}

// apiDateLayouts are the draw date shapes the results API has been seen to emit
var apiDateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	models.DateLayout,
}

// APIEntry is a draw decoded from the structured results API
type APIEntry struct {
	DrawNumber       int    `json:"DrawNumber"`
	DrawDate         string `json:"DrawDate"`
	PrimaryNumbers   []int  `json:"PrimaryNumbers"`
	SecondaryNumbers []int  `json:"SecondaryNumbers"`
	URL              string `json:"-"`
}

func (APIEntry) rawEntry() {}

// Tag implements RawEntry
func (e APIEntry) Tag() models.SourceTag { return models.SourceAPI }

func (e APIEntry) String() string {
	return fmt.Sprintf("api draw %d (%s)", e.DrawNumber, e.DrawDate)
}

// ToDraw implements RawEntry
func (e APIEntry) ToDraw() (*models.Draw, error) {
	date, err := parseAPIDate(e.DrawDate)
	if err != nil {
		return nil, fmt.Errorf("%w: draw %d: %v", models.ErrMalformedRecord, e.DrawNumber, err)
	}
	if len(e.SecondaryNumbers) != 1 {
		return nil, fmt.Errorf("%w: draw %d has %d powerball numbers, want 1", models.ErrMalformedRecord, e.DrawNumber, len(e.SecondaryNumbers))
	}
	return models.NewDraw(e.DrawNumber, date, e.PrimaryNumbers, e.SecondaryNumbers[0], models.SourceAPI, e.URL)
}

func parseAPIDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty draw date")
	}
	for _, layout := range apiDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised draw date %q", value)
}

// htmlDateLayout matches dates such as "19 April, 2018"
const htmlDateLayout = "2 January, 2006"

// htmlNumberCount is the seven main numbers followed by the powerball
const htmlNumberCount = models.MainNumberCount + 1

// HTMLEntry is a draw scraped from an archive page
type HTMLEntry struct {
	DrawNumber int
	DateText   string
	Numbers    []int
	URL        string
}

func (HTMLEntry) rawEntry() {}

// Tag implements RawEntry
func (e HTMLEntry) Tag() models.SourceTag { return models.SourceHTML }

func (e HTMLEntry) String() string {
	return fmt.Sprintf("html draw %d (%s)", e.DrawNumber, e.DateText)
}

// ToDraw implements RawEntry
func (e HTMLEntry) ToDraw() (*models.Draw, error) {
	date, err := time.Parse(htmlDateLayout, strings.Join(strings.Fields(e.DateText), " "))
	if err != nil {
		return nil, fmt.Errorf("%w: draw %d has unreadable date %q", models.ErrMalformedRecord, e.DrawNumber, e.DateText)
	}
	if len(e.Numbers) != htmlNumberCount {
		return nil, fmt.Errorf("%w: draw %d has %d numbers, want %d", models.ErrMalformedRecord, e.DrawNumber, len(e.Numbers), htmlNumberCount)
	}
	return models.NewDraw(e.DrawNumber, date, e.Numbers[:models.MainNumberCount], e.Numbers[models.MainNumberCount], models.SourceHTML, e.URL)
}
