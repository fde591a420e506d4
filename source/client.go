package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"powerball/models"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// UserAgent identifies this service to the results sites
	UserAgent      = "Mozilla/5.0 (compatible; AU-Powerball-Stats/1.0; +https://github.com/barnard704344/au-powerball-stats)"
	acceptLanguage = "en-AU,en;q=0.9"

	// latestWindow is how far back FetchLatest looks
	latestWindow = 183 * 24 * time.Hour

	maxBodyBytes = 8 << 20
)

// Config controls where and how the client fetches draws
type Config struct {
	APIURL          string // empty disables the API path
	Companies       []string
	HTMLBase        string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Location        *time.Location
}

// Client fetches draw results, preferring the structured API and falling back to HTML
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	// each acquisition path trips on its own so a dead API never blocks the HTML fallback
	apiBreaker  *gobreaker.CircuitBreaker
	htmlBreaker *gobreaker.CircuitBreaker
}

// NewClient creates a source client. A nil httpClient gets a default one.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:         cfg,
		http:        httpClient,
		now:         time.Now,
		apiBreaker:  newBreaker("powerball-source-api", cfg),
		htmlBreaker: newBreaker("powerball-source-html", cfg),
	}
}

func newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Source circuit breaker changed state")
		},
	})
}

// FetchYear returns every draw of the given calendar year
func (c *Client) FetchYear(ctx context.Context, year int) (*FetchResult, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, c.cfg.Location)
	to := time.Date(year, time.December, 31, 23, 59, 59, 0, c.cfg.Location)
	return c.fetch(ctx, year, from, to, c.archiveURL(year))
}

// FetchLatest returns the draws of roughly the last six months
func (c *Client) FetchLatest(ctx context.Context) (*FetchResult, error) {
	to := c.now().In(c.cfg.Location)
	return c.fetch(ctx, 0, to.Add(-latestWindow), to, c.pastResultsURL())
}

func (c *Client) fetch(ctx context.Context, year int, from, to time.Time, htmlURL string) (*FetchResult, error) {
	start := time.Now()
	diag := Diagnostics{}

	logger := log.WithFields(log.Fields{
		"year": year,
		"from": from.Format(models.DateLayout),
		"to":   to.Format(models.DateLayout),
	})

	apiErr := errors.New("api disabled")
	if c.cfg.APIURL != "" {
		var entries []RawEntry
		entries, apiErr = c.fetchAPI(ctx, from, to, &diag)
		if apiErr == nil {
			diag.Duration = time.Since(start)
			logger.WithField("entries", len(entries)).Debug("Fetched draws from api")
			return newFetchResult(models.SourceAPI, c.cfg.APIURL, entries, diag), nil
		}
		logger.WithError(apiErr).Warn("Results api failed, falling back to html")
	}
	diag.APIError = apiErr.Error()

	entries, htmlErr := c.fetchHTML(ctx, htmlURL, &diag)
	diag.Duration = time.Since(start)
	if htmlErr != nil {
		diag.HTMLError = htmlErr.Error()
		return nil, &FetchError{Year: year, APIErr: apiErr, HTMLErr: htmlErr, Diagnostics: diag}
	}

	logger.WithFields(log.Fields{
		"entries": len(entries),
		"skipped": diag.Skipped,
		"url":     htmlURL,
	}).Debug("Fetched draws from html")
	return newFetchResult(models.SourceHTML, htmlURL, entries, diag), nil
}

type response struct {
	body   []byte
	status int
}

// do performs a request with retries and the circuit breaker, returning the body of a 2xx response
func (c *Client) do(ctx context.Context, breaker *gobreaker.CircuitBreaker, diag *Diagnostics, build func(ctx context.Context) (*http.Request, error)) ([]byte, int, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.RetryBackoff * time.Duration(attempt)
			log.WithFields(log.Fields{
				"attempt": attempt + 1,
				"wait":    wait,
				"error":   lastErr,
			}).Debug("Retrying source request")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastStatus, ctx.Err()
			case <-timer.C:
			}
		}

		diag.Attempts++
		resp, err := c.attempt(ctx, breaker, build)
		if resp != nil {
			lastStatus = resp.status
		}
		if err == nil {
			return resp.body, resp.status, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
	}

	return nil, lastStatus, lastErr
}

func (c *Client) attempt(ctx context.Context, breaker *gobreaker.CircuitBreaker, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	result, err := breaker.Execute(func() (any, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept-Language", acceptLanguage)

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		body, err := readBody(httpResp.Body)
		if err != nil {
			return &response{status: httpResp.StatusCode}, fmt.Errorf("failed to read response from %s: %w", req.URL, err)
		}
		resp := &response{body: body, status: httpResp.StatusCode}
		if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
			return resp, &StatusError{URL: req.URL.String(), StatusCode: httpResp.StatusCode}
		}
		return resp, nil
	})

	resp, _ := result.(*response)
	return resp, err
}
