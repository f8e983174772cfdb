package cmd

import (
	"github.com/charmbracelet/glamour"

	"github.com/askyhq/asky/internal/agent"
)

// renderAnswer decides how the final answer reaches the terminal.
// Markdown answers on a TTY are rendered with glamour; everything else
// passes through untouched so piped output stays machine-readable.
func renderAnswer(answer string, tty bool) string {
	if !tty || !agent.IsMarkdown(answer) {
		return answer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return answer
	}
	out, err := r.Render(answer)
	if err != nil {
		return answer
	}
	return out
}
