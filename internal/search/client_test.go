package search_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sawtmedia/discovery/internal/search"
	"github.com/stretchr/testify/require"
)

// capturedRequest records what the client sent, for assertions back on
// the test goroutine.
type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// newStubES starts an httptest server that impersonates Elasticsearch.
// The product header is required or the v8 client rejects every response.
func newStubES(t *testing.T, handler http.HandlerFunc) *search.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := search.New(srv.URL, "programs", nil)
	require.NoError(t, err)
	return client
}

func capture(r *http.Request) capturedRequest {
	body, _ := io.ReadAll(r.Body)
	return capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
	}
}

func TestEnsureIndexCreatesWhenAbsent(t *testing.T) {
	var created capturedRequest
	var createCalls atomic.Int32

	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/programs":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/programs":
			createCalls.Add(1)
			created = capture(r)
			w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	require.Equal(t, int32(1), createCalls.Load())

	var mapping map[string]any
	require.NoError(t, json.Unmarshal(created.Body, &mapping))

	props := mapping["mappings"].(map[string]any)["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "integer"}, props["id"])
	require.Equal(t, "text", props["title"].(map[string]any)["type"])
	require.Equal(t, "text", props["description"].(map[string]any)["type"])
	require.Equal(t, "keyword", props["category"].(map[string]any)["type"])
	require.Equal(t, "keyword", props["duration"].(map[string]any)["type"])
	require.Equal(t, "date", props["publish_date"].(map[string]any)["type"])
	require.Equal(t, "object", props["metadata"].(map[string]any)["type"])
}

func TestEnsureIndexLeavesExistingAlone(t *testing.T) {
	var otherCalls atomic.Int32

	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/programs" {
			w.WriteHeader(http.StatusOK)
			return
		}
		otherCalls.Add(1)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	require.Zero(t, otherCalls.Load())
}

func TestUpsertProgramWritesThroughWithRefresh(t *testing.T) {
	var got capturedRequest

	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		got = capture(r)
		w.Write([]byte(`{"result":"created"}`))
	})

	payload := map[string]any{"title": "Coffee journey", "category": "Technology"}
	require.NoError(t, client.UpsertProgram(context.Background(), 6, payload))

	require.Equal(t, http.MethodPut, got.Method)
	require.Equal(t, "/programs/_doc/6", got.Path)
	require.Contains(t, got.Query, "refresh=true")

	var gotBody map[string]any
	require.NoError(t, json.Unmarshal(got.Body, &gotBody))
	require.Equal(t, "Coffee journey", gotBody["title"])
}

func TestDeleteProgramNotFound(t *testing.T) {
	var got capturedRequest

	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		got = capture(r)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"result":"not_found"}`))
	})

	err := client.DeleteProgram(context.Background(), 42)
	require.ErrorIs(t, err, search.ErrNotFound)
	require.Equal(t, http.MethodDelete, got.Method)
	require.Equal(t, "/programs/_doc/42", got.Path)
}

func TestSearchProgramsParsesResponse(t *testing.T) {
	response := `{
		"took": 5,
		"hits": {
			"total": {"value": 1},
			"hits": [{
				"_score": 1.5,
				"_source": {"id": 6, "title": "Coffee journey", "category": "Technology"},
				"highlight": {"title": ["<em>Coffee</em> journey"]}
			}]
		},
		"aggregations": {
			"categories": {"buckets": [{"key": "Technology", "doc_count": 1}]}
		}
	}`

	var got capturedRequest
	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		got = capture(r)
		w.Write([]byte(response))
	})

	p := search.SearchParams{Query: "coffee", Highlight: true, Fuzzy: true}
	p.Normalize(20, 100)

	result, err := client.SearchPrograms(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "/programs/_search", got.Path)
	require.Equal(t, int64(1), result.Total)
	require.Equal(t, int64(5), result.Took)
	require.Len(t, result.Hits, 1)
	require.Equal(t, 1.5, result.Hits[0].Score)
	require.Equal(t, "Coffee journey", result.Hits[0].Source["title"])
	require.Equal(t, []string{"<em>Coffee</em> journey"}, result.Hits[0].Highlights["title"])
	require.Contains(t, result.Aggregations, "categories")

	// The engine received the normalized pagination.
	var gotBody map[string]any
	require.NoError(t, json.Unmarshal(got.Body, &gotBody))
	require.Equal(t, float64(0), gotBody["from"])
	require.Equal(t, float64(20), gotBody["size"])
}

func TestSearchProgramsSurfacesEngineError(t *testing.T) {
	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"reason":"malformed query"}}`))
	})

	p := search.SearchParams{Query: "coffee"}
	p.Normalize(20, 100)

	_, err := client.SearchPrograms(context.Background(), p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed query")
}

func TestWaitReadyAcceptsYellow(t *testing.T) {
	var calls atomic.Int32
	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"red"}`))
			return
		}
		w.Write([]byte(`{"status":"yellow"}`))
	})

	err := client.WaitReady(context.Background(), 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestWaitReadyExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"red"}`))
	})

	err := client.WaitReady(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestRecreateIndexDropsAndCreates(t *testing.T) {
	var deleted, created atomic.Int32
	client := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/programs":
			deleted.Add(1)
			w.Write([]byte(`{"acknowledged":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/programs":
			created.Add(1)
			w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, client.RecreateIndex(context.Background()))
	require.Equal(t, int32(1), deleted.Load())
	require.Equal(t, int32(1), created.Load())
}
