package ingestion

import "errors"

var (
	// ErrQuotaExceeded means the tenant's storage ceiling is reached; the
	// upload is rejected and its placeholder cleaned up.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrExtractionFailed means the document produced no usable text.
	ErrExtractionFailed = errors.New("content extraction produced no chunks")

	// ErrEmbeddingFailed wraps embedding API or vector-store insert errors.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrMissingFile means the raw file was absent when a step expected it.
	ErrMissingFile = errors.New("raw file missing")

	// ErrNotRetryable means a retry was requested for a job that is not in
	// the failed state.
	ErrNotRetryable = errors.New("job is not in a retryable state")
)
