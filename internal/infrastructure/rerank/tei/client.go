// Package tei scores query-document pairs with a text-embeddings-inference
// re-ranker over its HTTP /rerank endpoint.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/academic-rag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

type Options struct {
	Timeout    time.Duration
	Resilience resilience.Config
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg := opts.Resilience
	if cfg == (resilience.Config{}) {
		cfg = resilience.DefaultConfig()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		exec:       resilience.NewExecutor(cfg),
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per document, aligned with the
// input order. The server answers sorted by relevance with original
// indices, so results are mapped back before returning.
func (c *Client) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var results []rerankResult
	err := c.exec.Execute(ctx, "rerank_score", func(ctx context.Context) error {
		return c.postRerank(ctx, rerankRequest{Query: query, Texts: docs}, &results)
	}, classifyRerankError)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	scores := make([]float64, len(docs))
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(scores) {
			return nil, fmt.Errorf("rerank result index %d out of range for %d texts", result.Index, len(docs))
		}
		scores[result.Index] = result.Score
	}
	return scores, nil
}

func (c *Client) postRerank(ctx context.Context, payload rerankRequest, out *[]rerankResult) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
