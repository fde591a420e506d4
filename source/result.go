package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"powerball/models"

	"github.com/sony/gobreaker"
)

// maxSample bounds the entries echoed back in diagnostics
const maxSample = 3

// Diagnostics describes how a fetch went. It is served as-is by /debug/scrape.
type Diagnostics struct {
	Source      models.SourceTag `json:"source,omitempty"`
	URL         string           `json:"url"`
	APIURL      string           `json:"api_url,omitempty"`
	APIStatus   int              `json:"api_status,omitempty"`
	APIError    string           `json:"api_error,omitempty"`
	HTMLURL     string           `json:"html_url,omitempty"`
	HTMLStatus  int              `json:"html_status,omitempty"`
	HTMLError   string           `json:"html_error,omitempty"`
	EntryCount  int              `json:"entry_count"`
	Sample      []RawEntry       `json:"sample"`
	Anchors     int              `json:"anchors"`
	DrawAnchors int              `json:"draw_anchors"`
	Lists       int              `json:"lists"`
	ListItems   int              `json:"list_items"`
	Skipped     int              `json:"skipped"`
	Attempts    int              `json:"attempts"`
	Duration    time.Duration    `json:"duration_ns"`
}

// FetchResult holds the entries of one fetch and how they were obtained
type FetchResult struct {
	Source      models.SourceTag
	URL         string
	Diagnostics Diagnostics

	entries []RawEntry
}

func newFetchResult(tag models.SourceTag, url string, entries []RawEntry, diag Diagnostics) *FetchResult {
	diag.Source = tag
	diag.URL = url
	diag.EntryCount = len(entries)
	diag.Sample = append([]RawEntry{}, entries[:min(len(entries), maxSample)]...)
	return &FetchResult{
		Source:      tag,
		URL:         url,
		Diagnostics: diag,
		entries:     entries,
	}
}

// NewFetchResult wraps entries that were read some other way, such as a fixture file
func NewFetchResult(tag models.SourceTag, url string, entries []RawEntry) *FetchResult {
	return newFetchResult(tag, url, entries, Diagnostics{})
}

// Entries yields the raw entries in feed order
func (r *FetchResult) Entries() iter.Seq[RawEntry] {
	return slices.Values(r.entries)
}

// Len returns the number of entries
func (r *FetchResult) Len() int {
	return len(r.entries)
}

// FetchError is returned when neither the API nor the HTML archive produced a result
type FetchError struct {
	Year        int // zero for the latest-results fetch
	APIErr      error
	HTMLErr     error
	Diagnostics Diagnostics
}

func (e *FetchError) Error() string {
	target := "latest results"
	if e.Year != 0 {
		target = fmt.Sprintf("year %d", e.Year)
	}
	return fmt.Sprintf("failed to fetch %s: api: %v; html: %v", target, e.APIErr, e.HTMLErr)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.APIErr, e.HTMLErr}
}

// StatusError is a non-2xx response from the feed
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Retryable reports whether a request that produced err is worth repeating
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		return code >= 500 || code == 408 || code == 429
	}
	return err != nil
}
