package search_test

import (
	"testing"

	"github.com/sawtmedia/discovery/internal/search"
	"github.com/stretchr/testify/require"
)

func newParams(query string) search.SearchParams {
	p := search.SearchParams{Query: query, Highlight: true, Fuzzy: true}
	p.Normalize(20, 100)
	return p
}

func boolClause(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	query, ok := body["query"].(map[string]any)
	require.True(t, ok)
	boolQ, ok := query["bool"].(map[string]any)
	require.True(t, ok)
	return boolQ
}

func TestBuildSearchBodyWeightedMatch(t *testing.T) {
	body := search.BuildSearchBody(newParams("coffee"))

	must := boolClause(t, body)["must"].([]map[string]any)
	require.Len(t, must, 1)

	mm := must[0]["multi_match"].(map[string]any)
	require.Equal(t, "coffee", mm["query"])
	require.Equal(t, []string{"title^3", "description^2", "metadata.tags^2", "category"}, mm["fields"])
	require.Equal(t, "best_fields", mm["type"])
	require.Equal(t, "or", mm["operator"])
	require.Equal(t, "AUTO", mm["fuzziness"])
}

func TestBuildSearchBodyFuzzyDisabled(t *testing.T) {
	p := newParams("coffee")
	p.Fuzzy = false

	body := search.BuildSearchBody(p)
	mm := boolClause(t, body)["must"].([]map[string]any)[0]["multi_match"].(map[string]any)
	require.Equal(t, 0, mm["fuzziness"])
}

func TestBuildSearchBodyFilterCombination(t *testing.T) {
	p := newParams("coffee")
	p.Category = "Technology"
	p.Language = "English"

	filters := boolClause(t, search.BuildSearchBody(p))["filter"].([]map[string]any)
	require.Len(t, filters, 2)
	require.Equal(t, map[string]any{"term": map[string]any{"category": "Technology"}}, filters[0])
	require.Equal(t, map[string]any{"term": map[string]any{"language": "English"}}, filters[1])
}

func TestBuildSearchBodyNoFiltersByDefault(t *testing.T) {
	filters := boolClause(t, search.BuildSearchBody(newParams("coffee")))["filter"].([]map[string]any)
	require.Empty(t, filters)
}

func TestBuildSearchBodyRangeFilters(t *testing.T) {
	p := newParams("coffee")
	p.DurationMin = "0:30:00"
	p.DurationMax = "2:00:00"
	p.PublishDateFrom = "2023-01-01"
	p.Tags = []string{"coffee", "history"}

	filters := boolClause(t, search.BuildSearchBody(p))["filter"].([]map[string]any)
	require.Len(t, filters, 3)

	require.Equal(t, map[string]any{
		"range": map[string]any{"duration": map[string]any{"gte": "0:30:00", "lte": "2:00:00"}},
	}, filters[0])
	require.Equal(t, map[string]any{
		"range": map[string]any{"publish_date": map[string]any{"gte": "2023-01-01"}},
	}, filters[1])
	require.Equal(t, map[string]any{
		"terms": map[string]any{"metadata.tags": []string{"coffee", "history"}},
	}, filters[2])
}

func TestBuildSearchBodyPaginationOffset(t *testing.T) {
	p := search.SearchParams{Query: "coffee", Page: 2, PageSize: 10}
	p.Normalize(20, 100)

	body := search.BuildSearchBody(p)
	require.Equal(t, 10, body["from"])
	require.Equal(t, 10, body["size"])
}

func TestBuildSearchBodyDefaultSort(t *testing.T) {
	body := search.BuildSearchBody(newParams("coffee"))

	sorts := body["sort"].([]map[string]any)
	require.Len(t, sorts, 2)
	require.Equal(t, map[string]any{"order": "desc"}, sorts[0]["_score"])
	require.Equal(t, map[string]any{"order": "desc"}, sorts[1]["created_at"])
}

func TestBuildSearchBodyExplicitSort(t *testing.T) {
	p := search.SearchParams{Query: "coffee", SortBy: "publish_date", SortOrder: "asc"}
	p.Normalize(20, 100)

	sorts := search.BuildSearchBody(p)["sort"].([]map[string]any)
	require.Equal(t, map[string]any{"order": "asc"}, sorts[0]["publish_date"])
	require.Equal(t, map[string]any{"order": "desc"}, sorts[1]["created_at"])
}

func TestBuildSearchBodyHighlight(t *testing.T) {
	p := newParams("coffee")
	p.HighlightPreTag = "<mark>"
	p.HighlightPostTag = "</mark>"

	hl := search.BuildSearchBody(p)["highlight"].(map[string]any)
	require.Equal(t, []string{"<mark>"}, hl["pre_tags"])
	require.Equal(t, []string{"</mark>"}, hl["post_tags"])

	fields := hl["fields"].(map[string]any)
	require.Contains(t, fields, "title")
	require.Contains(t, fields, "description")
	require.Contains(t, fields, "metadata.tags")

	p.Highlight = false
	_, ok := search.BuildSearchBody(p)["highlight"]
	require.False(t, ok)
}

func TestBuildSearchBodyAlwaysAggregates(t *testing.T) {
	aggs := search.BuildSearchBody(newParams("coffee"))["aggs"].(map[string]any)
	require.Contains(t, aggs, "categories")
	require.Contains(t, aggs, "languages")
	require.Contains(t, aggs, "media_types")
	require.Contains(t, aggs, "duration_buckets")
}

func TestNormalizeClampsPageSize(t *testing.T) {
	p := search.SearchParams{Query: "coffee", Page: 0, PageSize: 500}
	p.Normalize(20, 100)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 100, p.PageSize)
	require.Equal(t, 0, p.From())

	p = search.SearchParams{Query: "coffee"}
	p.Normalize(20, 100)
	require.Equal(t, 20, p.PageSize)
	require.Equal(t, "_score", p.SortBy)
	require.Equal(t, "desc", p.SortOrder)
}

func TestTotalPages(t *testing.T) {
	require.Equal(t, int64(3), search.TotalPages(25, 10))
	require.Equal(t, int64(1), search.TotalPages(1, 20))
	require.Equal(t, int64(0), search.TotalPages(0, 20))
	require.Equal(t, int64(2), search.TotalPages(40, 20))
}
