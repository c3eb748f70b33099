package ingestion

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

func collectChunks(t *testing.T, text string, targetTokens, overlapTokens int) []chunk {
	t.Helper()

	g, ctx := errgroup.WithContext(context.Background())
	frags := streamFragments(ctx, g, text)
	out := streamChunk(ctx, g, frags, targetTokens, overlapTokens)

	var got []chunk
	g.Go(func() error {
		for c := range out {
			got = append(got, c)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	return got
}

func TestChunkerDropsEmptyLines(t *testing.T) {
	got := collectChunks(t, "alpha\n\n\nbeta\n", 1000, 0)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].Text != "alpha\nbeta" {
		t.Errorf("chunk text = %q", got[0].Text)
	}
	if got[0].Pos != 0 {
		t.Errorf("chunk pos = %d", got[0].Pos)
	}
}

func TestChunkerSplitsAtTokenTarget(t *testing.T) {
	// Four 40-char lines at ~10 tokens each, target 20: two lines per chunk.
	line := strings.Repeat("x", 40)
	text := strings.Join([]string{line, line, line, line}, "\n")

	got := collectChunks(t, text, 20, 0)
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	for i, c := range got {
		if c.Pos != i {
			t.Errorf("chunk %d has pos %d", i, c.Pos)
		}
		if c.Text != line+"\n"+line {
			t.Errorf("chunk %d text = %q", i, c.Text)
		}
	}
}

func TestChunkerOverlapSeedsNextChunk(t *testing.T) {
	lines := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
		strings.Repeat("d", 40),
	}
	got := collectChunks(t, strings.Join(lines, "\n"), 20, 10)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(got))
	}
	// The second chunk starts with the tail of the first.
	firstLines := strings.Split(got[0].Text, "\n")
	tail := firstLines[len(firstLines)-1]
	if !strings.HasPrefix(got[1].Text, tail) {
		t.Errorf("chunk 1 %q does not start with overlap %q", got[1].Text, tail)
	}
}

func TestChunkerNeverReemitsBareOverlap(t *testing.T) {
	// Input ends exactly on a flush boundary: the retained overlap seed must
	// not surface as a trailing chunk of its own.
	line := strings.Repeat("z", 40)
	got := collectChunks(t, line+"\n"+line, 20, 10)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1: %#v", len(got), got)
	}
}

func TestChunkerBoundsLongLines(t *testing.T) {
	text := strings.Repeat("y", 5000) // one line, no newlines
	got := collectChunks(t, text, 1_000_000, 0)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	// 2000 + 2000 + 1000 fragments rejoined with newlines.
	if len(got[0].Text) != 5002 {
		t.Errorf("chunk length = %d, want 5002", len(got[0].Text))
	}
}

func TestChunkerFragmentsLongLinesOnRuneBoundaries(t *testing.T) {
	// One 3000-rune line of three-byte characters. Fragment bounds must land
	// between runes, never inside one.
	text := strings.Repeat("日", 3000)
	got := collectChunks(t, text, 1_000_000, 0)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if !utf8.ValidString(got[0].Text) {
		t.Fatal("chunk contains a split rune")
	}
	// 2000 + 1000 rune fragments rejoined with one newline.
	if n := utf8.RuneCountInString(got[0].Text); n != 3001 {
		t.Errorf("chunk rune count = %d, want 3001", n)
	}
}

func TestApproxTokens(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"ab":    1,
		"abcd":  1,
		"abcde": 2,
	}
	for in, want := range cases {
		if got := approxTokens(in); got != want {
			t.Errorf("approxTokens(%q) = %d, want %d", in, got, want)
		}
	}
}
