package llm

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/docforge/docforge/internal/core"
)

// GeminiMediaDescriber generates short descriptions for image, audio and
// video uploads by sending the raw bytes inline to a multimodal model.
type GeminiMediaDescriber struct {
	client    *genai.Client
	modelName string
}

func NewGeminiMediaDescriber(ctx context.Context, apiKey, modelName string) (*GeminiMediaDescriber, error) {
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
	return &GeminiMediaDescriber{client: cl, modelName: modelName}, nil
}

func (g *GeminiMediaDescriber) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiMediaDescriber) DescribeImage(ctx context.Context, filePath string) (string, error) {
	return g.describe(ctx, filePath, "Describe this image in detail, including any visible text.")
}

func (g *GeminiMediaDescriber) DescribeAudio(ctx context.Context, filePath string) (string, error) {
	return g.describe(ctx, filePath, "Summarize the content of this audio recording.")
}

func (g *GeminiMediaDescriber) DescribeVideo(ctx context.Context, filePath string) (string, error) {
	return g.describe(ctx, filePath, "Summarize what happens in this video.")
}

func (g *GeminiMediaDescriber) describe(ctx context.Context, filePath, prompt string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read media: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	// genai wants the bare subtype-qualified type, no parameters.
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	m := g.client.GenerativeModel(g.modelName)
	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("gemini describe: %w", err)
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
	return strings.TrimSpace(b.String()), nil
}

var _ core.MediaDescriber = (*GeminiMediaDescriber)(nil)
