package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ErrNotFound is returned when a document id has no entry in the index.
var ErrNotFound = errors.New("document not found")

// Client wraps go-elasticsearch with helpers tailored to the programs index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health returns the cluster health status string (green/yellow/red).
func (c *Client) Health(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("cluster health: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode health response: %w", err)
	}

	return parsed.Status, nil
}

// WaitReady polls cluster health until the cluster reports green or
// yellow, retrying attempts times with delay between polls. Yellow is
// accepted because a single-node cluster never reaches green.
func (c *Client) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		status, err := c.Health(ctx)
		if err == nil && (status == "green" || status == "yellow") {
			c.log.Info("elasticsearch ready", slog.String("status", status))
			return nil
		}
		if err != nil {
			c.log.Info("elasticsearch not ready",
				slog.Any("err", err),
				slog.Int("attempt", i+1),
				slog.Int("max_attempts", attempts),
			)
		} else {
			c.log.Info("elasticsearch starting",
				slog.String("status", status),
				slog.Int("attempt", i+1),
			)
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("elasticsearch not ready after %d attempts", attempts)
}

// UpsertProgram writes the event payload under the program id with an
// immediate refresh, so the document is visible to the next search.
func (c *Client) UpsertProgram(ctx context.Context, id int64, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: strconv.FormatInt(id, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index program %d: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index program %d failed: %s", id, strings.TrimSpace(string(data)))
	}

	return nil
}

// DeleteProgram removes the document for the program id. A missing
// document yields ErrNotFound so callers can treat it as idempotent.
func (c *Client) DeleteProgram(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete program %d: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return ErrNotFound
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete program %d failed: %s", id, strings.TrimSpace(string(data)))
	}

	return nil
}
