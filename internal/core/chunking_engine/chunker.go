package chunkingengine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/internal/models"
)

// chunkIDNamespace pins the namespace for deterministic chunk identifiers.
// Never change it: redelivered extraction events must re-produce
// byte-identical chunk events.
var chunkIDNamespace = uuid.MustParse("7a3c9f04-52de-4f3b-9c1a-6b8f0e2d4a71")

// ChunkText splits text into overlapping character windows. It is pure and
// fully deterministic: offsets follow the sliding-window arithmetic and chunk
// IDs derive from (documentID, index), so re-running on the same input yields
// identical chunks.
//
// Offsets are character (rune) offsets into the input. A final chunk shorter
// than chunkSize is expected; empty text yields no chunks, any non-empty text
// yields at least one.
func ChunkText(text string, chunkSize, chunkOverlap int, tenantID, documentID string) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk_size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk_overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		// the window would never advance
		return nil, fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", chunkOverlap, chunkSize)
	}

	runes := []rune(text)

	var chunks []models.Chunk
	start, index := 0, 0
	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			ChunkID:     ChunkID(documentID, index),
			TenantID:    tenantID,
			DocumentID:  documentID,
			ChunkText:   string(runes[start:end]),
			ChunkIndex:  index,
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			// the text is fully covered; advancing would only re-emit a
			// suffix of this chunk
			break
		}
		start += chunkSize - chunkOverlap
		index++
	}
	return chunks, nil
}

// ChunkID derives a stable identifier from the document ID and chunk index,
// so at-least-once redelivery produces duplicate events with identical IDs
// that downstream consumers can deduplicate.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(fmt.Sprintf("%s:%d", documentID, index))).String()
}
