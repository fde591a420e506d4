package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"powerball/models"
	"powerball/service"
	"powerball/source"

	log "github.com/sirupsen/logrus"
)

const defaultRunLimit = 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ScrapeResponse is the body of /debug/scrape
type ScrapeResponse struct {
	OK          bool               `json:"ok"`
	Mode        string             `json:"mode"`
	Year        int                `json:"year,omitempty"`
	Count       int                `json:"count"`
	Sample      []SampleEntry      `json:"sample"`
	Diagnostics source.Diagnostics `json:"diagnostics"`
	Error       string             `json:"error,omitempty"`
}

// SampleEntry is one parsed entry echoed by /debug/scrape
type SampleEntry struct {
	Entry string       `json:"entry"`
	Draw  *models.Draw `json:"draw,omitempty"`
	Error string       `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Query.Ping(r.Context()); err != nil {
		respondWithError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDraws(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	draws, err := s.deps.Query.RecentDraws(r.Context(), limit)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, draws)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	draw, err := s.deps.Query.LatestDraw(r.Context())
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if draw == nil {
		respondWithError(w, "no draws stored", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, draw)
}

func (s *Server) handleFrequencies(w http.ResponseWriter, r *http.Request) {
	freq, ok := s.frequencies(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, freq)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chart == nil {
		respondWithError(w, "chart rendering is disabled", http.StatusNotFound)
		return
	}
	freq, ok := s.frequencies(w, r)
	if !ok {
		return
	}
	png, err := s.deps.Chart.Generate(freq)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func (s *Server) frequencies(w http.ResponseWriter, r *http.Request) (*models.Frequencies, bool) {
	window, err := queryInt(r, "window")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	freq, err := s.deps.Query.Frequencies(r.Context(), window)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return freq, true
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Sync.Status())
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	runs, err := s.deps.Query.RecentRuns(r.Context(), limit)
	if err != nil {
		respondWithError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := service.Options{
		Full:       queryBool(r, "full"),
		TargetYear: year,
	}

	result, err := s.deps.Sync.Sync(r.Context(), opts)
	switch {
	case errors.Is(err, service.ErrInvalidOptions):
		respondWithError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSyncInProgress):
		respondJSON(w, http.StatusConflict, result)
	case err != nil && result == nil:
		respondWithError(w, err.Error(), http.StatusInternalServerError)
	case err != nil:
		respondJSON(w, http.StatusInternalServerError, result)
	default:
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := ScrapeResponse{Mode: "latest", Sample: []SampleEntry{}}
	var result *source.FetchResult
	if year > 0 {
		resp.Mode = "year"
		resp.Year = year
		result, err = s.deps.Scraper.FetchYear(r.Context(), year)
	} else {
		result, err = s.deps.Scraper.FetchLatest(r.Context())
	}

	if err != nil {
		resp.Error = err.Error()
		var fetchErr *source.FetchError
		if errors.As(err, &fetchErr) {
			resp.Diagnostics = fetchErr.Diagnostics
		}
		log.WithFields(log.Fields{
			"mode":  resp.Mode,
			"year":  year,
			"error": err,
		}).Warn("Debug scrape failed")
		respondJSON(w, http.StatusBadGateway, resp)
		return
	}

	resp.OK = true
	resp.Count = result.Len()
	resp.Diagnostics = result.Diagnostics
	for _, entry := range result.Diagnostics.Sample {
		sample := SampleEntry{Entry: entry.String()}
		if draw, err := entry.ToDraw(); err != nil {
			sample.Error = err.Error()
		} else {
			sample.Draw = draw
		}
		resp.Sample = append(resp.Sample, sample)
	}
	respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{OK: false, Error: message})
}
