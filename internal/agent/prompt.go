package agent

import (
	"strconv"
	"strings"

	"github.com/askyhq/asky/internal/config"
)

// ConstructSystemPrompt assembles the system prompt for the mode flags:
// prefix, optional force-search directive, the turn-budget suffix, then
// deep-research and deep-dive addenda.
func ConstructSystemPrompt(p config.Prompts, maxTurns, deepResearchN int, deepDive, forceSearch bool) string {
	var b strings.Builder
	b.WriteString(p.SystemPrefix)
	if forceSearch {
		b.WriteString(p.ForceSearch)
	}
	b.WriteString(strings.ReplaceAll(p.SystemSuffix, "{max_turns}", strconv.Itoa(maxTurns)))
	if deepResearchN > 0 {
		b.WriteString(strings.ReplaceAll(p.DeepResearch, "{n}", strconv.Itoa(deepResearchN)))
	}
	if deepDive {
		b.WriteString(p.DeepDive)
	}
	return b.String()
}
