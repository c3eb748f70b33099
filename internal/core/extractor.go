package core

import "context"

// Chunk is one extracted text record with its metadata. Chunks are ephemeral:
// they exist only between extraction and embedding.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// ExtractRequest names the inputs to a content extraction run.
type ExtractRequest struct {
	FilePath     string
	DocumentID   int64
	OriginalName string
	MimeType     string
	Summary      string
	Overview     string
}

// Extractor converts a placed file into ordered text chunks. TempFiles lists
// intermediate artifacts (converted CSV/TXT files) the caller should remove
// once ingestion finishes.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (chunks []Chunk, tempFiles []string, err error)
}
