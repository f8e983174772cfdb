package research

import "strings"

// ChunkText splits content into size-bounded chunks for embedding.
// Splitting is paragraph-first: paragraphs are packed into chunks up to
// size chars; a paragraph longer than size is cut with overlap chars of
// carry-over so sentences spanning a boundary stay findable.
func ChunkText(content string, size, overlap int) []string {
	if size <= 0 {
		size = 1200
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= size {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > size {
			flush()
			for start := 0; start < len(para); {
				end := start + size
				if end >= len(para) {
					chunks = append(chunks, strings.TrimSpace(para[start:]))
					break
				}
				chunks = append(chunks, strings.TrimSpace(para[start:end]))
				start = end - overlap
			}
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
