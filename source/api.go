package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// productPowerball is the product filter of the results API
const productPowerball = "Powerball"

type apiRequest struct {
	DateStart     string   `json:"DateStart"`
	DateEnd       string   `json:"DateEnd"`
	ProductFilter []string `json:"ProductFilter"`
	CompanyFilter []string `json:"CompanyFilter"`
}

type apiResponse struct {
	Success   *bool      `json:"Success"`
	ErrorInfo any        `json:"ErrorInfo"`
	Draws     []APIEntry `json:"Draws"`
}

// fetchAPI asks the results API for every draw between from and to, inclusive
func (c *Client) fetchAPI(ctx context.Context, from, to time.Time, diag *Diagnostics) ([]RawEntry, error) {
	body, err := json.Marshal(apiRequest{
		DateStart:     from.Format("2006-01-02T15:04:05"),
		DateEnd:       to.Format("2006-01-02T15:04:05"),
		ProductFilter: []string{productPowerball},
		CompanyFilter: c.cfg.Companies,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode api request: %w", err)
	}

	diag.APIURL = c.cfg.APIURL
	payload, status, err := c.do(ctx, c.apiBreaker, diag, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	diag.APIStatus = status
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode api response: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("api reported failure: %v", resp.ErrorInfo)
	}
	if len(resp.Draws) == 0 {
		return nil, fmt.Errorf("api returned no draws")
	}

	entries := make([]RawEntry, 0, len(resp.Draws))
	for _, d := range resp.Draws {
		d.URL = c.cfg.APIURL
		entries = append(entries, d)
	}
	return entries, nil
}

// readBody drains a response body up to a sane limit
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
