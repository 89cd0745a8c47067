package search

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

//go:embed mapping_programs.json
var programsMapping string

// EnsureIndex creates the programs index with its field mapping if it
// does not exist yet. An existing index is left untouched; mapping
// changes require an explicit rebuild via RecreateIndex.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", c.index, err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		c.log.Info("index already exists", slog.String("index", c.index))
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("check index %s: unexpected status %s", c.index, res.Status())
	}

	if err := c.createIndex(ctx); err != nil {
		return err
	}
	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// RecreateIndex drops the index if present and creates it from the
// mapping. Destructive; only reachable through the operator CLI.
func (c *Client) RecreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index %s: %w", c.index, err)
	}
	res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index %s: unexpected status %s", c.index, res.Status())
	}

	if err := c.createIndex(ctx); err != nil {
		return err
	}
	c.log.Info("recreated index", slog.String("index", c.index))
	return nil
}

func (c *Client) createIndex(ctx context.Context) error {
	res, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(programsMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", c.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index %s failed: %s", c.index, strings.TrimSpace(string(data)))
	}

	return nil
}
