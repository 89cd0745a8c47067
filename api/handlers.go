package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/sawtmedia/discovery/internal/cache"
	"github.com/sawtmedia/discovery/internal/config"
	"github.com/sawtmedia/discovery/internal/metrics"
	"github.com/sawtmedia/discovery/internal/search"
)

type programSearcher interface {
	SearchPrograms(ctx context.Context, p search.SearchParams) (*search.Result, error)
	Health(ctx context.Context) (string, error)
}

type server struct {
	log   *slog.Logger
	cfg   *config.API
	es    programSearcher
	cache *cache.SearchCache
	mtr   *metrics.API
}

type searchResponse struct {
	Query          string                     `json:"query"`
	Total          int64                      `json:"total"`
	Page           int                        `json:"page"`
	PageSize       int                        `json:"page_size"`
	TotalPages     int64                      `json:"total_pages"`
	Results        []map[string]any           `json:"results"`
	Took           int64                      `json:"took"`
	Aggregations   map[string]json.RawMessage `json:"aggregations"`
	FiltersApplied map[string]any             `json:"filters_applied"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, err := s.es.Health(ctx)
	if err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}

	render.JSON(w, r, map[string]string{"status": "ok", "elasticsearch": status})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.mtr.SearchRequestsTotal.WithLabelValues("400").Inc()
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Query parameter 'q' is required"})
		return
	}

	params := search.SearchParams{
		Query:            query,
		Category:         strings.TrimSpace(q.Get("category")),
		Language:         strings.TrimSpace(q.Get("language")),
		MediaType:        strings.TrimSpace(q.Get("media_type")),
		DurationMin:      strings.TrimSpace(q.Get("duration_min")),
		DurationMax:      strings.TrimSpace(q.Get("duration_max")),
		PublishDateFrom:  strings.TrimSpace(q.Get("publish_date_from")),
		PublishDateTo:    strings.TrimSpace(q.Get("publish_date_to")),
		Tags:             parseCSV(q.Get("tags")),
		SortBy:           strings.TrimSpace(q.Get("sort_by")),
		SortOrder:        strings.TrimSpace(q.Get("sort_order")),
		Page:             parseInt(q.Get("page"), 1),
		PageSize:         parseInt(q.Get("page_size"), s.cfg.DefaultPageSize),
		Highlight:        parseBool(q.Get("highlight"), true),
		Fuzzy:            parseBool(q.Get("fuzzy"), true),
		HighlightPreTag:  s.cfg.HighlightPreTag,
		HighlightPostTag: s.cfg.HighlightPostTag,
	}
	params.Normalize(s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	data, err := s.runSearch(ctx, params)
	if err != nil {
		s.mtr.SearchRequestsTotal.WithLabelValues("500").Inc()
		s.log.Error("search failed", slog.Any("err", err), slog.String("query", query))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Search failed", "details": err.Error()})
		return
	}

	s.mtr.SearchRequestsTotal.WithLabelValues("200").Inc()
	s.mtr.SearchLatency.Observe(time.Since(started).Seconds())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// runSearch executes the query, serving from the response cache when
// one is configured. The cached value is the fully rendered JSON body.
func (s *server) runSearch(ctx context.Context, params search.SearchParams) (json.RawMessage, error) {
	compute := func() (json.RawMessage, error) {
		result, err := s.es.SearchPrograms(ctx, params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(s.buildResponse(params, result))
	}

	if s.cache == nil {
		return compute()
	}

	data, hit, err := s.cache.GetOrCompute(ctx, cacheKey(params), compute)
	if err != nil {
		return nil, err
	}
	if hit {
		s.mtr.CacheHitsTotal.Inc()
	} else {
		s.mtr.CacheMissesTotal.Inc()
	}
	return data, nil
}

func (s *server) buildResponse(params search.SearchParams, result *search.Result) searchResponse {
	results := make([]map[string]any, 0, len(result.Hits))
	for _, hit := range result.Hits {
		row := make(map[string]any, len(hit.Source)+2)
		for k, v := range hit.Source {
			row[k] = v
		}
		row["score"] = hit.Score
		if hit.Highlights != nil {
			row["highlights"] = hit.Highlights
		} else {
			row["highlights"] = map[string][]string{}
		}
		results = append(results, row)
	}

	aggs := result.Aggregations
	if aggs == nil {
		aggs = map[string]json.RawMessage{}
	}

	return searchResponse{
		Query:        params.Query,
		Total:        result.Total,
		Page:         params.Page,
		PageSize:     params.PageSize,
		TotalPages:   search.TotalPages(result.Total, params.PageSize),
		Results:      results,
		Took:         result.Took,
		Aggregations: aggs,
		FiltersApplied: map[string]any{
			"category":          orNil(params.Category),
			"language":          orNil(params.Language),
			"media_type":        orNil(params.MediaType),
			"duration_min":      orNil(params.DurationMin),
			"duration_max":      orNil(params.DurationMax),
			"publish_date_from": orNil(params.PublishDateFrom),
			"publish_date_to":   orNil(params.PublishDateTo),
			"tags":              params.Tags,
			"sort_by":           params.SortBy,
			"sort_order":        params.SortOrder,
		},
	}
}

func cacheKey(p search.SearchParams) string {
	return cache.Key(map[string]string{
		"q":                 p.Query,
		"category":          p.Category,
		"language":          p.Language,
		"media_type":        p.MediaType,
		"duration_min":      p.DurationMin,
		"duration_max":      p.DurationMax,
		"publish_date_from": p.PublishDateFrom,
		"publish_date_to":   p.PublishDateTo,
		"sort_by":           p.SortBy,
		"sort_order":        p.SortOrder,
		"page":              strconv.Itoa(p.Page),
		"page_size":         strconv.Itoa(p.PageSize),
		"highlight":         strconv.FormatBool(p.Highlight),
		"fuzzy":             strconv.FormatBool(p.Fuzzy),
	}, p.Tags)
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
