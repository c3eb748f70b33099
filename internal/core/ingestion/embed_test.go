package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/core/coretest"
	"github.com/docforge/docforge/internal/logger"
)

type fakeProvider struct {
	calls [][]string
	err   error
}

func (p *fakeProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.calls = append(p.calls, append([]string(nil), texts...))
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{0.1, 0.2, 0.3}
	}
	return vecs, nil
}

func newTestEmbedder(db *coretest.FakeDB, p *fakeProvider) *Embedder {
	cfg := DefaultConfig()
	cfg.DeletePollInterval = time.Millisecond
	cfg.DeletePollAttempts = 3
	return NewEmbedder(db, p, logger.NewNop(), cfg)
}

func TestEmbedAndIndexWindowConservation(t *testing.T) {
	db := coretest.NewFakeDB()
	emb := newTestEmbedder(db, &fakeProvider{})

	// 4000 chars at a 1500-char window: exactly ceil(4000/1500) = 3 rows.
	chunks := []core.Chunk{{
		Text:     strings.Repeat("a", 4000),
		Metadata: map[string]string{"source": "/docs/ns/1.txt"},
	}}

	indexed, err := emb.EmbedAndIndex(context.Background(), chunks, "ns", 1)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !indexed {
		t.Fatal("indexed = false")
	}

	records := db.InsertedRecords()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if len(records[0].Text) != 1500 || len(records[1].Text) != 1500 || len(records[2].Text) != 1000 {
		t.Errorf("window sizes = %d, %d, %d", len(records[0].Text), len(records[1].Text), len(records[2].Text))
	}
	for i, r := range records {
		if r.DocumentID != 1 || r.Namespace != "ns" || r.ObjectRef != "/docs/ns/1.txt" {
			t.Errorf("record %d = %+v", i, r)
		}
		if len(r.Embedding) == 0 {
			t.Errorf("record %d has no vector", i)
		}
	}

	ids, _ := db.GetEmbeddingIDs(context.Background(), 1)
	if len(ids) != 3 {
		t.Errorf("saved %d chunk ids, want 3", len(ids))
	}
}

func TestEmbedAndIndexBatchCeiling(t *testing.T) {
	db := coretest.NewFakeDB()
	p := &fakeProvider{}
	emb := newTestEmbedder(db, p)

	// 13 full windows = 19500 chars; the 18000-char ceiling allows 12 per
	// batch, so the 13th spills into a second call and a second insert.
	chunks := []core.Chunk{{
		Text:     strings.Repeat("b", 13*1500),
		Metadata: map[string]string{"source": "s"},
	}}

	if _, err := emb.EmbedAndIndex(context.Background(), chunks, "ns", 2); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if len(p.calls) != 2 {
		t.Fatalf("got %d embed calls, want 2", len(p.calls))
	}
	if len(p.calls[0]) != 12 || len(p.calls[1]) != 1 {
		t.Errorf("batch sizes = %d, %d", len(p.calls[0]), len(p.calls[1]))
	}
	if len(db.InsertBatches) != 2 {
		t.Errorf("got %d bulk inserts, want 2", len(db.InsertBatches))
	}

	ids, _ := db.GetEmbeddingIDs(context.Background(), 2)
	if len(ids) != 13 {
		t.Errorf("saved %d chunk ids, want 13", len(ids))
	}
}

func TestEmbedAndIndexNothingToEmbed(t *testing.T) {
	db := coretest.NewFakeDB()
	emb := newTestEmbedder(db, &fakeProvider{})

	indexed, err := emb.EmbedAndIndex(context.Background(), []core.Chunk{
		{Text: "   \n\t "},
		{Text: ""},
	}, "ns", 3)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if indexed {
		t.Error("indexed = true for whitespace-only input")
	}
	if len(db.InsertBatches) != 0 {
		t.Errorf("unexpected inserts: %d", len(db.InsertBatches))
	}
}

func TestEmbedAndIndexProviderError(t *testing.T) {
	db := coretest.NewFakeDB()
	emb := newTestEmbedder(db, &fakeProvider{err: errors.New("api down")})

	_, err := emb.EmbedAndIndex(context.Background(), []core.Chunk{{Text: "hello"}}, "ns", 4)
	if !errors.Is(err, ErrEmbeddingFailed) {
		t.Fatalf("err = %v, want ErrEmbeddingFailed", err)
	}
	if len(db.InsertBatches) != 0 {
		t.Error("rows inserted despite provider failure")
	}
}

func TestDeleteEmbeddingsWaitsForDrain(t *testing.T) {
	db := coretest.NewFakeDB()
	db.PendingSequence = []int{2, 1} // drains on the third check
	emb := newTestEmbedder(db, &fakeProvider{})

	if err := emb.deleteEmbeddings(context.Background(), 5, "ns"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(db.DeletedEmbeddings) != 1 || db.DeletedEmbeddings[0] != 5 {
		t.Errorf("deletions = %v", db.DeletedEmbeddings)
	}
}

func TestDeleteEmbeddingsGivesUpOnStall(t *testing.T) {
	db := coretest.NewFakeDB()
	db.PendingSequence = []int{9, 9, 9, 9, 9}
	emb := newTestEmbedder(db, &fakeProvider{})

	err := emb.deleteEmbeddings(context.Background(), 6, "ns")
	if err == nil {
		t.Fatal("expected stall error")
	}
	if len(db.DeletedEmbeddings) != 0 {
		t.Errorf("delete ran despite stalled buffer: %v", db.DeletedEmbeddings)
	}
}

func TestSplitWindows(t *testing.T) {
	if got := splitWindows("", 10); got != nil {
		t.Errorf("splitWindows(empty) = %v", got)
	}
	got := splitWindows("abcdefghij", 4)
	want := []string{"abcd", "efgh", "ij"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d = %q, want %q", i, got[i], want[i])
		}
	}
}
