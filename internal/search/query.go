package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// SearchParams carries one search request after HTTP-layer parsing.
// Query is required; everything else is optional.
type SearchParams struct {
	Query string

	Category        string
	Language        string
	MediaType       string
	DurationMin     string
	DurationMax     string
	PublishDateFrom string
	PublishDateTo   string
	Tags            []string

	SortBy    string
	SortOrder string
	Page      int
	PageSize  int

	Highlight bool
	Fuzzy     bool

	HighlightPreTag  string
	HighlightPostTag string
}

// Hit is one scored document from a search response.
type Hit struct {
	Source     map[string]any
	Score      float64
	Highlights map[string][]string
}

// Result bundles hits, total count, timing, and facet counts.
type Result struct {
	Total        int64
	Took         int64
	Hits         []Hit
	Aggregations map[string]json.RawMessage
}

// Normalize applies defaults and clamps pagination. Page is 1-based;
// PageSize is clamped to [1, maxSize].
func (p *SearchParams) Normalize(defaultSize, maxSize int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultSize
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	if p.SortBy == "" {
		p.SortBy = "_score"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	if p.HighlightPreTag == "" {
		p.HighlightPreTag = "<em>"
	}
	if p.HighlightPostTag == "" {
		p.HighlightPostTag = "</em>"
	}
}

// From returns the pagination offset for the 1-based page number.
func (p SearchParams) From() int {
	return (p.Page - 1) * p.PageSize
}

// BuildSearchBody assembles the full query DSL body: a weighted
// multi_match over the text fields, exact-match and range filters for
// the supplied parameters, sorting with a created_at tie-break,
// optional highlighting, and facet aggregations.
func BuildSearchBody(p SearchParams) map[string]any {
	fuzziness := any("AUTO")
	if !p.Fuzzy {
		fuzziness = 0
	}

	filters := make([]map[string]any, 0, 6)
	if p.Category != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"category": p.Category}})
	}
	if p.Language != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"language": p.Language}})
	}
	if p.MediaType != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"media_type": p.MediaType}})
	}
	if p.DurationMin != "" || p.DurationMax != "" {
		bounds := map[string]any{}
		if p.DurationMin != "" {
			bounds["gte"] = p.DurationMin
		}
		if p.DurationMax != "" {
			bounds["lte"] = p.DurationMax
		}
		filters = append(filters, map[string]any{"range": map[string]any{"duration": bounds}})
	}
	if p.PublishDateFrom != "" || p.PublishDateTo != "" {
		bounds := map[string]any{}
		if p.PublishDateFrom != "" {
			bounds["gte"] = p.PublishDateFrom
		}
		if p.PublishDateTo != "" {
			bounds["lte"] = p.PublishDateTo
		}
		filters = append(filters, map[string]any{"range": map[string]any{"publish_date": bounds}})
	}
	if len(p.Tags) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"metadata.tags": p.Tags}})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{
						"multi_match": map[string]any{
							"query":     p.Query,
							"fields":    []string{"title^3", "description^2", "metadata.tags^2", "category"},
							"type":      "best_fields",
							"fuzziness": fuzziness,
							"operator":  "or",
						},
					},
				},
				"filter": filters,
			},
		},
		"from":             p.From(),
		"size":             p.PageSize,
		"track_total_hits": true,
		"sort": []map[string]any{
			{p.SortBy: map[string]any{"order": p.SortOrder}},
			{"created_at": map[string]any{"order": "desc"}},
		},
		"aggs": map[string]any{
			"categories":       map[string]any{"terms": map[string]any{"field": "category"}},
			"languages":        map[string]any{"terms": map[string]any{"field": "language"}},
			"media_types":      map[string]any{"terms": map[string]any{"field": "media_type"}},
			"duration_buckets": map[string]any{"terms": map[string]any{"field": "duration", "size": 20}},
		},
	}

	if p.Highlight {
		body["highlight"] = map[string]any{
			"fields": map[string]any{
				"title":         map[string]any{},
				"description":   map[string]any{},
				"metadata.tags": map[string]any{},
			},
			"pre_tags":  []string{p.HighlightPreTag},
			"post_tags": []string{p.HighlightPostTag},
		}
	}

	return body
}

// SearchPrograms executes the query and parses the response.
func (c *Client) SearchPrograms(ctx context.Context, p SearchParams) (*Result, error) {
	payload, err := json.Marshal(BuildSearchBody(p))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source    map[string]any      `json:"_source"`
				Score     float64             `json:"_score"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]json.RawMessage `json:"aggregations"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			Source:     h.Source,
			Score:      h.Score,
			Highlights: h.Highlight,
		})
	}

	return &Result{
		Total:        parsed.Hits.Total.Value,
		Took:         parsed.Took,
		Hits:         hits,
		Aggregations: parsed.Aggregations,
	}, nil
}

// TotalPages returns ceil(total/pageSize).
func TotalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
