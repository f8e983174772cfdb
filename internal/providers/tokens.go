package providers

import "encoding/json"

// EstimateTokens approximates the token count of a transcript at four
// characters per token, counting message content plus serialized tool
// calls. Used wherever the endpoint does not report usage.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
		if len(m.ToolCalls) > 0 {
			if b, err := json.Marshal(m.ToolCalls); err == nil {
				total += len(b)
			}
		}
	}
	return total / 4
}

// EstimateText is the same four-chars-per-token heuristic for a single
// string.
func EstimateText(s string) int {
	return len(s) / 4
}
