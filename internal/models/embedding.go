package models

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	PageNumber int
	ChunkID    int
	Section    string
}

// ScoredChunk is a retrieved chunk with its index position and similarity.
type ScoredChunk struct {
	Position int     `json:"position"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Sources []ScoredChunk
	Content string
}

// Texts returns the chunk contents in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out
}
