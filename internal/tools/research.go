package tools

import (
	"context"

	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/research"
)

// RegisterResearchTools exposes the research-memory subsystem. These
// tools replace get_url_content in research mode: content is cached and
// read back selectively instead of dumped into the context.
func RegisterResearchTools(r *Registry, svc *research.Service) {
	wrap := func(f func(context.Context, map[string]interface{}) map[string]interface{}) Executor {
		return func(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
			return f(ctx, args), nil
		}
	}

	r.Register(providers.FunctionSchema{
		Name: "extract_links",
		Description: "Extract and discover links from web pages for research exploration.\n" +
			"Returns ONLY link labels and URLs - the actual page content is cached for later retrieval.\n" +
			"Use this to explore what information is available before deciding what to read in depth.\n" +
			"Optionally provide a research query to rank links by semantic relevance (requires embedding model).\n\n" +
			`Example: extract_links(urls=["https://example.com"], query="machine learning applications")`,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "URLs to extract links from",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Single URL (alternative to urls array)",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Optional: research query to rank links by relevance",
				},
				"max_links": map[string]interface{}{
					"type":        "integer",
					"default":     30,
					"description": "Maximum links to return per URL",
				},
			},
			"required": []string{},
		},
	}, wrap(svc.ExtractLinks))

	r.Register(providers.FunctionSchema{
		Name: "get_link_summaries",
		Description: "Get AI-generated summaries of previously cached pages.\n" +
			"Use after extract_links to preview page contents before requesting full content.\n" +
			"Summaries are generated in the background - status may show 'processing' if not ready yet.\n" +
			"This is efficient for deciding which pages are worth reading in full.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "URLs to get summaries for (must be previously cached via extract_links)",
				},
			},
			"required": []string{"urls"},
		},
	}, wrap(svc.GetLinkSummaries))

	r.Register(providers.FunctionSchema{
		Name: "get_relevant_content",
		Description: "Retrieve only the most relevant content sections from cached pages using RAG.\n" +
			"Uses semantic search to find sections matching your specific query - much more efficient than full content.\n" +
			"Best for extracting specific information without loading entire pages.\n" +
			"Requires embedding model to be available.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "URLs to retrieve content from (must be cached)",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What specific information are you looking for?",
				},
				"max_chunks": map[string]interface{}{
					"type":        "integer",
					"default":     5,
					"description": "Maximum content sections to return per URL",
				},
			},
			"required": []string{"urls", "query"},
		},
	}, wrap(svc.GetRelevantContent))

	r.Register(providers.FunctionSchema{
		Name: "get_full_content",
		Description: "Retrieve the complete cached content from pages.\n" +
			"Use when you need comprehensive understanding of a page, not just specific sections.\n" +
			"More token-intensive than get_relevant_content - use sparingly.\n" +
			"Content must have been cached previously via extract_links.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "URLs to get full content from (must be cached)",
				},
			},
			"required": []string{"urls"},
		},
	}, wrap(svc.GetFullContent))

	r.Register(providers.FunctionSchema{
		Name: "save_finding",
		Description: "Save a discovered fact or insight to research memory for future reference.\n" +
			"Use this to persist important findings that may be useful in future research sessions.\n" +
			"Findings are stored with embeddings for semantic retrieval.\n" +
			"Include source URL and tags for better organization and retrieval.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"finding": map[string]interface{}{
					"type":        "string",
					"description": "The fact, insight, or piece of information to save",
				},
				"source_url": map[string]interface{}{
					"type":        "string",
					"description": "URL where this information was found",
				},
				"source_title": map[string]interface{}{
					"type":        "string",
					"description": "Title of the source page",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Tags for categorization (e.g., ['climate', 'statistics', '2024'])",
				},
			},
			"required": []string{"finding"},
		},
	}, wrap(svc.SaveFinding))

	r.Register(providers.FunctionSchema{
		Name: "query_research_memory",
		Description: "Search your research memory for previously saved findings.\n" +
			"Uses semantic search to find relevant information from past research sessions.\n" +
			"Useful for recalling facts, statistics, or insights you've discovered before.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What to search for in research memory",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"default":     10,
					"description": "Maximum number of findings to return",
				},
			},
			"required": []string{"query"},
		},
	}, wrap(svc.QueryResearchMemory))
}
