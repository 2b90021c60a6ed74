package driven

// PostProcessor applies one stage of text processing to record chunks.
// Processors form a pipeline: Chunker -> WhitespaceNormalizer -> Deduplicator.
type PostProcessor interface {
	// Process transforms chunks. The first processor (Chunker) receives a
	// single chunk holding a whole rendered record.
	Process(chunks []Chunk) []Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	// Chunker should be 0, subsequent processors increment from there.
	Order() int
}

// Chunk is a piece of rendered record text ready for embedding
type Chunk struct {
	// Content is the text content of the chunk
	Content string

	// Position is the chunk index within the record (0-based)
	Position int

	// StartOffset is the byte offset of the chunk in the record text
	StartOffset int

	// EndOffset is the byte offset for chunk end
	EndOffset int
}

// PostProcessorPipeline chains multiple post-processors in order.
type PostProcessorPipeline interface {
	// Process applies all processors in order to one record's text.
	Process(content string) []Chunk

	// Add adds a processor to the pipeline.
	// Processors are sorted by Order() before processing.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
