package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/models"
)

// Embedder turns extracted chunks into vector rows. Each source chunk's text
// is re-split into fixed-size character windows, windows are packed into
// request batches bounded by a total character ceiling, and each batch is
// embedded with one API call and written with one bulk insert.
type Embedder struct {
	db       core.DbClient
	provider core.EmbeddingProvider
	log      *logger.Logger
	cfg      Config
}

func NewEmbedder(db core.DbClient, provider core.EmbeddingProvider, log *logger.Logger, cfg Config) *Embedder {
	return &Embedder{db: db, provider: provider, log: log.With("component", "embedder"), cfg: cfg}
}

// EmbedAndIndex indexes the chunks under (namespace, documentID). It reports
// (false, nil) when there was no non-empty content to embed at all.
//
// Calls are not deduplicated: embedding the same document twice writes
// duplicate rows, so callers must delete prior embeddings first.
func (e *Embedder) EmbedAndIndex(ctx context.Context, chunks []core.Chunk, namespace string, documentID int64) (bool, error) {
	var records []models.EmbeddingRecord
	for _, c := range chunks {
		objectRef := c.Metadata["source"]
		for _, w := range splitWindows(c.Text, e.cfg.WindowChars) {
			records = append(records, models.EmbeddingRecord{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				Namespace:  namespace,
				Text:       w,
				ObjectRef:  objectRef,
			})
		}
	}
	if len(records) == 0 {
		return false, nil
	}

	chunkIDs := make([]string, 0, len(records))
	for start := 0; start < len(records); {
		end := start + 1
		batchChars := len(records[start].Text)
		// Pack records until the character ceiling; a single oversized
		// window still forms its own batch.
		for end < len(records) && batchChars+len(records[end].Text) <= e.cfg.BatchCharLimit {
			batchChars += len(records[end].Text)
			end++
		}

		batch := records[start:end]
		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}

		vecs, err := e.provider.EmbedTexts(ctx, texts)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		if len(vecs) != len(batch) {
			return false, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vecs), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		if err := e.db.InsertEmbeddingRecords(ctx, batch); err != nil {
			return false, fmt.Errorf("%w: insert: %v", ErrEmbeddingFailed, err)
		}
		for i := range batch {
			chunkIDs = append(chunkIDs, batch[i].ID)
		}
		start = end
	}

	if err := e.db.SaveEmbeddingIDs(ctx, documentID, chunkIDs); err != nil {
		return false, fmt.Errorf("%w: save chunk ids: %v", ErrEmbeddingFailed, err)
	}
	return true, nil
}

// DeleteEmbeddings removes a document's vector rows in the background.
// The caller proceeds immediately; failures are logged, never surfaced.
func (e *Embedder) DeleteEmbeddings(documentID int64, namespace string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(e.cfg.DeletePollAttempts+1)*e.cfg.DeletePollInterval+time.Minute)
		defer cancel()

		if err := e.deleteEmbeddings(ctx, documentID, namespace); err != nil {
			e.log.Error("embedding deletion failed", "document_id", documentID, "error", err)
		}
	}()
}

// deleteEmbeddings waits for the vector table's write buffer to drain, then
// issues the filtered delete. The wait is bounded: after DeletePollAttempts
// checks it gives up and reports the stall instead of looping forever.
func (e *Embedder) deleteEmbeddings(ctx context.Context, documentID int64, namespace string) error {
	for attempt := 0; ; attempt++ {
		pending, err := e.db.PendingEmbeddingWrites(ctx)
		if err != nil {
			return fmt.Errorf("pending-writes check: %w", err)
		}
		if pending == 0 {
			break
		}
		if attempt+1 >= e.cfg.DeletePollAttempts {
			return fmt.Errorf("write buffer still has %d pending inserts after %d checks", pending, attempt+1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.DeletePollInterval):
		}
	}

	if err := e.db.DeleteEmbeddingsByDocument(ctx, documentID, namespace); err != nil {
		return fmt.Errorf("delete by document: %w", err)
	}
	return nil
}

// splitWindows cuts text into fixed-size character windows with no overlap,
// dropping whitespace-only content.
func splitWindows(text string, size int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		w := string(runes[start:end])
		if strings.TrimSpace(w) == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}
