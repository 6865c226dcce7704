package leaderboard

// Pinned leaderboard snapshots used whenever external fetching is
// disabled or an upstream fails. Refreshed manually alongside releases.

// StaticArenaRatings returns crowd-voted Elo ratings for chat models.
func StaticArenaRatings() map[string]float64 {
	return map[string]float64{
		"gpt-4o":                1287,
		"claude-3-5-sonnet":     1269,
		"claude-3-opus":         1238,
		"llama-3.1-70b":         1213,
		"gpt-4o-mini":           1206,
		"gemini-1.5-pro":        1201,
		"claude-3-haiku":        1180,
		"llama-3.1-8b":          1156,
		"mixtral-8x7b-instruct": 1149,
		"phi3-medium-instruct":  1098,
	}
}

// StaticMTEBScores returns embedding benchmark scores.
func StaticMTEBScores() map[string]float64 {
	return map[string]float64{
		"text-embedding-3-large": 64.6,
		"bge-large-en-v1.5":      63.5,
		"text-embedding-3-small": 62.3,
		"e5-large-v2":            62.3,
		"text-embedding-ada-002": 61.0,
		"instructor-xl":          58.8,
		"all-mpnet-base-v2":      57.8,
		"all-minilm-l6-v2":       56.3,
	}
}

// StaticInternalEvaluations returns the seed internal evaluation metrics
// shipped with the engine, replaced by the live evaluation feed when one
// is wired in.
func StaticInternalEvaluations() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"gpt-4o":            {"faithfulness": 0.85, "answer_relevancy": 0.82},
		"claude-3-5-sonnet": {"faithfulness": 0.83, "answer_relevancy": 0.84},
		"llama-3.1-70b":     {"faithfulness": 0.78, "answer_relevancy": 0.76},
	}
}
