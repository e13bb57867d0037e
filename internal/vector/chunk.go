package vector

import "strings"

// DefaultChunkWords is the target passage size for ingestion.
const DefaultChunkWords = 200

// Chunk splits text into passages of roughly targetWords words, breaking
// only on paragraph boundaries. A single paragraph longer than the
// target becomes its own chunk rather than being split mid-thought.
func Chunk(text string, targetWords int) []string {
	if targetWords <= 0 {
		targetWords = DefaultChunkWords
	}

	var (
		chunks  []string
		current []string
		words   int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			words = 0
		}
	}

	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		current = append(current, block)
		words += len(strings.Fields(block))
		if words >= targetWords {
			flush()
		}
	}
	flush()
	return chunks
}
