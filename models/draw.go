package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Game shape for AU Powerball
const (
	MainNumberCount = 7
	MainNumberMin   = 1
	MainNumberMax   = 35
	PowerballMin    = 1
	PowerballMax    = 20
)

// DateLayout is the wire format of a draw date
const DateLayout = "2006-01-02"

// ErrMalformedRecord marks a candidate draw that fails validation
var ErrMalformedRecord = errors.New("malformed draw record")

// SourceTag identifies which acquisition path produced a draw
type SourceTag string

const (
	SourceAPI  SourceTag = "api"
	SourceHTML SourceTag = "html"
)

// Valid reports whether the tag is a known acquisition path
func (s SourceTag) Valid() bool {
	return s == SourceAPI || s == SourceHTML
}

// Draw represents one official Powerball drawing
type Draw struct {
	DrawNumber  int       `db:"draw_number"`
	DrawDate    time.Time `db:"draw_date"`
	MainNumbers []int     `db:"main_numbers"`
	Powerball   int       `db:"powerball"`
	Source      SourceTag `db:"source"`
	SourceURL   string    `db:"source_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// NewDraw builds a draw and validates it.
// The returned draw holds the canonical (ascending) main numbers.
func NewDraw(drawNumber int, drawDate time.Time, mainNumbers []int, powerball int, source SourceTag, sourceURL string) (*Draw, error) {
	d := &Draw{
		DrawNumber:  drawNumber,
		DrawDate:    DateOnly(drawDate),
		MainNumbers: slices.Clone(mainNumbers),
		Powerball:   powerball,
		Source:      source,
		SourceURL:   sourceURL,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	slices.Sort(d.MainNumbers)
	return d, nil
}

// Validate checks the draw against the game rules
func (d *Draw) Validate() error {
	if d.DrawNumber <= 0 {
		return fmt.Errorf("%w: draw number must be positive, got %d", ErrMalformedRecord, d.DrawNumber)
	}
	if d.DrawDate.IsZero() {
		return fmt.Errorf("%w: draw %d has no date", ErrMalformedRecord, d.DrawNumber)
	}
	if len(d.MainNumbers) != MainNumberCount {
		return fmt.Errorf("%w: draw %d has %d main numbers, want %d", ErrMalformedRecord, d.DrawNumber, len(d.MainNumbers), MainNumberCount)
	}
	seen := make(map[int]bool, MainNumberCount)
	for _, n := range d.MainNumbers {
		if n < MainNumberMin || n > MainNumberMax {
			return fmt.Errorf("%w: draw %d main number %d out of range [%d,%d]", ErrMalformedRecord, d.DrawNumber, n, MainNumberMin, MainNumberMax)
		}
		if seen[n] {
			return fmt.Errorf("%w: draw %d repeats main number %d", ErrMalformedRecord, d.DrawNumber, n)
		}
		seen[n] = true
	}
	if d.Powerball < PowerballMin || d.Powerball > PowerballMax {
		return fmt.Errorf("%w: draw %d powerball %d out of range [%d,%d]", ErrMalformedRecord, d.DrawNumber, d.Powerball, PowerballMin, PowerballMax)
	}
	if d.Source != "" && !d.Source.Valid() {
		return fmt.Errorf("%w: draw %d has unknown source %q", ErrMalformedRecord, d.DrawNumber, d.Source)
	}
	return nil
}

// SameContent reports whether two draws carry identical results.
// Source tag and URL are diagnostics and are not compared.
func (d *Draw) SameContent(other *Draw) bool {
	if other == nil {
		return false
	}
	if d.DrawNumber != other.DrawNumber || d.Powerball != other.Powerball {
		return false
	}
	if !DateOnly(d.DrawDate).Equal(DateOnly(other.DrawDate)) {
		return false
	}
	a := slices.Sorted(slices.Values(d.MainNumbers))
	b := slices.Sorted(slices.Values(other.MainNumbers))
	return slices.Equal(a, b)
}

// Year returns the calendar year of the draw
func (d *Draw) Year() int {
	return d.DrawDate.Year()
}

type drawJSON struct {
	DrawNumber  int       `json:"draw_number"`
	DrawDate    string    `json:"draw_date"`
	MainNumbers []int     `json:"main_numbers"`
	Powerball   int       `json:"powerball"`
	Source      SourceTag `json:"source,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// MarshalJSON writes the draw date as a calendar date
func (d Draw) MarshalJSON() ([]byte, error) {
	return json.Marshal(drawJSON{
		DrawNumber:  d.DrawNumber,
		DrawDate:    d.DrawDate.Format(DateLayout),
		MainNumbers: d.MainNumbers,
		Powerball:   d.Powerball,
		Source:      d.Source,
		SourceURL:   d.SourceURL,
	})
}

// UnmarshalJSON reads the shape produced by MarshalJSON
func (d *Draw) UnmarshalJSON(data []byte) error {
	var raw drawJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := time.Parse(DateLayout, raw.DrawDate)
	if err != nil {
		return fmt.Errorf("invalid draw_date %q: %w", raw.DrawDate, err)
	}
	*d = Draw{
		DrawNumber:  raw.DrawNumber,
		DrawDate:    date,
		MainNumbers: raw.MainNumbers,
		Powerball:   raw.Powerball,
		Source:      raw.Source,
		SourceURL:   raw.SourceURL,
	}
	return nil
}

// DateOnly truncates t to a UTC calendar date, keeping its wall-clock day
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
