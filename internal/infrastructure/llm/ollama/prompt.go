package ollama

import "fmt"

func buildExtractionPrompt(query string) string {
	return fmt.Sprintf("Extract ONLY from this query: '%s' as JSON.", query)
}

func buildCoherencePrompt(query, answer string, docCount int) string {
	return fmt.Sprintf(`Evaluate this RAG response. Return ONLY valid JSON.

Query: %s...
Answer: %s...
Context: %d documents

Return JSON:
{"confidence_score": 0.75, "reasoning": "Brief explanation"}`,
		truncate(query, 100), truncate(answer, 200), docCount)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
