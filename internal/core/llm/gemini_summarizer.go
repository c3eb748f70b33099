package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/docforge/docforge/internal/core"
)

// maxSummarizeChars bounds how much extracted text is sent to the model.
const maxSummarizeChars = 60000

const summaryPrompt = "Summarize the following document for a knowledge base. " +
	"Capture the key points, entities and conclusions in a few paragraphs."

const overviewPrompt = "Write a one-paragraph overview of the following document, " +
	"suitable as a short description shown next to the file name."

// GeminiSummarizer produces the per-file summary and overview texts by
// converting the placed file to plain text and prompting a generative model.
type GeminiSummarizer struct {
	client    *genai.Client
	modelName string
}

func NewGeminiSummarizer(ctx context.Context, apiKey, modelName string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiSummarizer{client: cl, modelName: modelName}, nil
}

func (g *GeminiSummarizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, filePath string, documentID int64, fileName string, userID int64) (core.SummaryResult, error) {
	res, err := docconv.ConvertPath(filePath)
	if err != nil {
		return core.SummaryResult{}, fmt.Errorf("convert %s: %w", fileName, err)
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return core.SummaryResult{}, nil
	}
	if len(text) > maxSummarizeChars {
		text = text[:maxSummarizeChars]
	}

	output, err := g.generate(ctx, summaryPrompt, text)
	if err != nil {
		return core.SummaryResult{}, fmt.Errorf("summary for %s: %w", fileName, err)
	}
	overview, err := g.generate(ctx, overviewPrompt, text)
	if err != nil {
		return core.SummaryResult{}, fmt.Errorf("overview for %s: %w", fileName, err)
	}

	return core.SummaryResult{
		Output:   output,
		Overview: overview,
		OK:       output != "",
	}, nil
}

func (g *GeminiSummarizer) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ core.Summarizer = (*GeminiSummarizer)(nil)
