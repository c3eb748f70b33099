package ingestion

import "time"

// Config tunes the ingestion pipeline.
//
// ChunkTokens:        approximate tokens per extracted chunk.
// OverlapTokens:      token overlap between consecutive chunks for context bleed.
// WindowChars:        character window the embedder re-splits chunk text into.
// BatchCharLimit:     total characters allowed in one embedding request batch.
// DeletePollInterval: delay between write-buffer drain checks before deletion.
// DeletePollAttempts: drain checks before deletion gives up.
type Config struct {
	ChunkTokens        int
	OverlapTokens      int
	WindowChars        int
	BatchCharLimit     int
	DeletePollInterval time.Duration
	DeletePollAttempts int
	QueueSize          int
	Workers            int
}

func DefaultConfig() Config {
	return Config{
		ChunkTokens:        1000,
		OverlapTokens:      50,
		WindowChars:        1500,
		BatchCharLimit:     18000,
		DeletePollInterval: 5 * time.Second,
		DeletePollAttempts: 12,
		QueueSize:          64,
		Workers:            1,
	}
}
