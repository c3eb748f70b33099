package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// SummaryResult carries the summarizer's output. OK is false when the model
// produced nothing usable; callers skip the Summary row in that case.
type SummaryResult struct {
	Output   string
	Overview string
	OK       bool
}

// Summarizer produces a natural-language summary and overview for a placed
// document file.
type Summarizer interface {
	Summarize(ctx context.Context, filePath string, documentID int64, fileName string, userID int64) (SummaryResult, error)
}

// MediaDescriber generates a short description for image, audio and video
// uploads, which have no text to extract.
type MediaDescriber interface {
	DescribeImage(ctx context.Context, filePath string) (string, error)
	DescribeAudio(ctx context.Context, filePath string) (string, error)
	DescribeVideo(ctx context.Context, filePath string) (string, error)
}
