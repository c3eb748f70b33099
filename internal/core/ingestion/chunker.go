package ingestion

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// chunk is the internal representation passed through the extraction stages.
//
// Pos:      stable, zero-based position of the chunk inside the document.
// Text:     chunk content (built from one or more fragments).
// TokenCnt: approximate token count (used for batching and overlap math).
type chunk struct {
	Pos      int
	Text     string
	TokenCnt int
}

// maxFragmentLen is a soft cap on individual fragments so a single long line
// never dominates a chunk.
const maxFragmentLen = 2000

// streamFragments turns extracted text into a stream of small fragments.
// Empty lines are dropped; long lines are split into bounded pieces.
func streamFragments(ctx context.Context, g *errgroup.Group, text string) <-chan string {
	out := make(chan string, 8)

	g.Go(func() error {
		defer close(out)

		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			// Slice on runes so a multi-byte character never straddles
			// two fragments.
			runes := []rune(line)
			for len(runes) > maxFragmentLen {
				frag := string(runes[:maxFragmentLen])
				runes = runes[maxFragmentLen:]

				select {
				case out <- frag:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			select {
			case out <- string(runes):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return out
}

// streamChunk groups incoming fragments into token-bounded chunks with optional overlap.
//
// frags:          upstream fragments channel.
// targetTokens:   approximate tokens per chunk.
// overlapTokens:  tokens to retain from the end of the previous chunk as seed of the next (e.g., 50).
// out:            receive-only channel of chunk structs with Pos/Text/TokenCnt.
func streamChunk(
	ctx context.Context,
	g *errgroup.Group,
	frags <-chan string,
	targetTokens int,
	overlapTokens int,
) <-chan chunk {
	out := make(chan chunk, 8)

	g.Go(func() error {
		defer close(out)

		var (
			buf    []string
			tokSum int
			pos    int
			fresh  int // fragments accumulated since the last flush
		)

		// flush emits the current buffer as a chunk and prepares the buffer for the next chunk,
		// preserving overlapTokens from the tail if configured.
		flush := func() error {
			if tokSum == 0 {
				return nil
			}
			text := strings.Join(buf, "\n")
			ch := chunk{Pos: pos, Text: text, TokenCnt: tokSum}
			pos++

			// Emit the chunk to downstream; backpressure applies here.
			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}

			// Compute overlap: keep a tail whose token sum ≈ overlapTokens.
			if overlapTokens > 0 {
				keep := []string{}
				remain := overlapTokens
				for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
					t := approxTokens(buf[j])
					keep = append([]string{buf[j]}, keep...) // prepend to keep original order
					remain -= t
				}
				buf = keep

				// Recompute tokSum for the kept tail.
				tokSum = 0
				for _, s := range buf {
					tokSum += approxTokens(s)
				}
			} else {
				buf = buf[:0]
				tokSum = 0
			}
			fresh = 0
			return nil
		}

		for frag := range frags {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			// Accumulate fragment and its token estimate.
			t := approxTokens(frag)
			buf = append(buf, frag)
			tokSum += t
			fresh++

			// If we've reached the target, emit a chunk.
			if tokSum >= targetTokens {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		// Emit remaining tail, but never re-emit a bare overlap seed.
		if fresh > 0 {
			return flush()
		}
		return nil
	})

	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
