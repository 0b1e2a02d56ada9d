package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

// Extractor is the LLM fallback for entity extraction. Its output is
// unverified; the caller checks every proposed entity against the
// catalog before accepting it.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (x *Extractor) ExtractEntities(ctx context.Context, query string) (domain.PartialEntities, error) {
	raw, err := x.client.generateJSON(ctx, buildExtractionPrompt(query))
	if err != nil {
		return domain.PartialEntities{}, err
	}

	var payload struct {
		CourseCode  string          `json:"course_code"`
		CourseTitle string          `json:"course_title"`
		Lecturers   json.RawMessage `json:"lecturers"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return domain.PartialEntities{}, fmt.Errorf("parse extraction json: %w", err)
	}

	return domain.PartialEntities{
		CourseCode:  strings.ToUpper(strings.TrimSpace(payload.CourseCode)),
		CourseTitle: strings.TrimSpace(payload.CourseTitle),
		Lecturers:   decodeLecturers(payload.Lecturers),
	}, nil
}

// decodeLecturers accepts either a JSON array of names or a single
// string; models answer with both shapes.
func decodeLecturers(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, name := range list {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if trimmed := strings.TrimSpace(single); trimmed != "" {
			return []string{trimmed}
		}
	}
	return nil
}

// Judge rates answer coherence with a JSON-mode model call.
type Judge struct {
	client *Client
}

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) JudgeCoherence(ctx context.Context, query, answer string, docCount int) (float64, string, error) {
	raw, err := j.client.generateJSON(ctx, buildCoherencePrompt(query, answer, docCount))
	if err != nil {
		return 0, "", err
	}

	var payload struct {
		ConfidenceScore float64 `json:"confidence_score"`
		Reasoning       string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return 0, "", fmt.Errorf("parse coherence json: %w", err)
	}

	score := payload.ConfidenceScore
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	reasoning := strings.TrimSpace(payload.Reasoning)
	if reasoning == "" {
		reasoning = "Evaluation completed"
	}
	return score, reasoning, nil
}
