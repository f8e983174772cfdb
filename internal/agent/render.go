package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/sessions"
)

// reportTemplate renders a markdown answer client-side; the content is
// injected into a JS template literal, so backticks and ${ must be
// escaped before substitution.
const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>asky report</title>
<script src="https://cdn.jsdelivr.net/npm/marked/marked.min.js"></script>
<style>
body { max-width: 860px; margin: 2rem auto; padding: 0 1rem;
       font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
       line-height: 1.6; color: #1c1e21; }
pre { background: #f6f8fa; padding: 1rem; border-radius: 6px; overflow-x: auto; }
code { background: #f6f8fa; padding: 0.15rem 0.3rem; border-radius: 4px; }
blockquote { border-left: 4px solid #d0d7de; margin-left: 0; padding-left: 1rem; color: #57606a; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.7rem; }
</style>
</head>
<body>
<div id="content"></div>
<script>
document.getElementById("content").innerHTML = marked.parse(` + "`{{CONTENT}}`" + `);
</script>
</body>
</html>
`

// SaveHTMLReport writes the answer as a standalone HTML page under dir
// and returns the file path. The filename comes from hint, then the
// answer's H1 title, then "untitled".
func SaveHTMLReport(content, hint, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	slugSource := hint
	if slugSource == "" {
		slugSource = ExtractMarkdownTitle(content)
	}
	if slugSource == "" {
		slugSource = "untitled"
	}
	slug := sessions.GenerateSlug(slugSource, 5)

	safe := strings.ReplaceAll(content, "`", "\\`")
	safe = strings.ReplaceAll(safe, "${", "\\${")
	html := strings.Replace(reportTemplate, "{{CONTENT}}", safe, 1)

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.html", slug, time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
