package domain

import "fmt"

// DocumentType identifies the kind of record a document was derived from
type DocumentType string

const (
	DocumentTypeProduct DocumentType = "product"
	DocumentTypeSale    DocumentType = "sale"
	DocumentTypeDebt    DocumentType = "debt"
)

// DocumentMetadata identifies the source record of a chunk
type DocumentMetadata struct {
	Type       DocumentType `json:"type"`
	RecordID   string       `json:"record_id"`
	Name       string       `json:"name"`
	UserID     string       `json:"user_id"`
	ChunkIndex int          `json:"chunk_index"`
}

// Document is a chunk of text derived from one record.
// Documents are immutable once built.
type Document struct {
	ID       string           `json:"id"`
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// DocumentID builds the stable identifier of a record chunk
func DocumentID(docType DocumentType, recordID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%s:%d", docType, recordID, chunkIndex)
}

// ScoredDocument is a retrieval hit
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// IndexStats describes the index cache
type IndexStats struct {
	CachedUsers    int `json:"cached_users"`
	InFlightBuilds int `json:"in_flight_builds"`
}
