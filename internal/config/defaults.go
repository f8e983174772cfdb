package config

// Default returns the built-in configuration. Load decodes the user's
// config file over this value, so anything the file omits keeps these
// settings.
func Default() *Config {
	return &Config{
		General: General{
			DBPathEnvVar:               "ASKY_HISTORY_DB_PATH",
			MaxTurns:                   20,
			DefaultModel:               "gf",
			SummarizationModel:         "lfm",
			QuerySummaryMaxChars:       40,
			AnswerSummaryMaxChars:      200,
			SessionCompactionThreshold: 80,
			SessionCompactionStrategy:  "summaries",
			SessionNameMaxTokens:       2,
		},
		API: API{
			SearxURL:           "http://localhost:8888",
			UserAgent:          "asky/1.0 (research agent)",
			RequestTimeoutSecs: 120,
			FetchTimeoutSecs:   20,
		},
		Models: map[string]Model{
			"q34": {
				ID:          "qwen/qwen3-4b-2507",
				BaseURL:     "http://localhost:1234/v1/chat/completions",
				MaxChars:    4000,
				ContextSize: 32000,
			},
			"lfm": {
				ID:          "liquid/lfm2.5-1.2b",
				BaseURL:     "http://localhost:1234/v1/chat/completions",
				MaxChars:    100000,
				ContextSize: 32000,
			},
			"gf": {
				ID:          "gemini-flash-latest",
				BaseURL:     "https://generativelanguage.googleapis.com/v1beta/chat/completions",
				APIKeyEnv:   "GOOGLE_API_KEY",
				MaxChars:    1000000,
				ContextSize: 1000000,
			},
		},
		Prompts: Prompts{
			SystemPrefix: "You are a helpful assistant with web search and URL retrieval capabilities. " +
				"Use get_date_time for current date/time if needed (e.g., for 'today' or 'recently'). ",
			ForceSearch: "Unless you are asked to use a specific URL, always use web_search, " +
				"never try to answer without using web_search. ",
			SystemSuffix: "Then use get_url_content for details of the search results. " +
				"You can pass a list of URLs to get_url_content to fetch multiple pages efficiently at once. " +
				"Use tools, don't say you can't. " +
				"You have {max_turns} turns to complete your task, if you reach the limit, process will be terminated. " +
				"You should finish your task before reaching 100% of your token limit.",
			DeepResearch: "\nYou are in DEEP RESEARCH mode. You MUST perform at least {n} " +
				"distinct web searches, or make {n} get_url_content calls to gather comprehensive information " +
				"before providing a final answer. " +
				"If you need to get links from a URL, use get_url_details. " +
				"If you just need to get content from a URL, use get_url_content.",
			DeepDive: "\nYou are in DEEP DIVE mode. Follow these instructions:\n" +
				"1. Use 'get_url_details' for the INITIAL page to retrieve content and links.\n" +
				"2. Follow up to 25 relevant links within the same domain to gather comprehensive information.\n" +
				"3. IMPORTANT: Use 'get_url_details' ONLY for the first page. Use 'get_url_content' for all subsequent links.\n" +
				"4. Do not rely on your internal knowledge; base your answer strictly on the retrieved content.\n" +
				"5. Do not use web_search in deep dive mode.",
			SummarizeAnswer: "Summarize the following text in at most {max_chars} characters, " +
				"keeping the key facts and figures:\n\n{content}",
			SummarizeQuery: "Summarize the following question in at most {max_chars} characters:\n\n{content}",
			SummarizeSession: "Provide a concise summary of this conversation, preserving key context " +
				"in at most {max_chars} characters:\n\n{content}",
		},
		Research: Research{
			EmbeddingURL:         "http://localhost:1234/v1/embeddings",
			EmbeddingModel:       "text-embedding-nomic-embed-text-v1.5",
			EmbeddingTimeoutSecs: 30,
			EmbeddingBatchSize:   32,
			MaxLinksPerURL:       50,
			MaxRelevantLinks:     20,
			MemoryMaxResults:     10,
			ChunkSize:            1200,
			ChunkOverlap:         200,
			SummaryWorkers:       2,
			SummaryCallsPerMin:   30,
		},
		Tracing: Tracing{
			Enabled:     false,
			ServiceName: "asky",
		},
	}
}
