package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Drafter wraps a Gemini generative model for the drafting workflow.
type Drafter struct {
	client *genai.Client
	model  string
}

func NewDrafter(ctx context.Context, apiKey string) (*Drafter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Drafter{client: client, model: "gemini-2.0-flash"}, nil
}

func (d *Drafter) Draft(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating draft", "model", d.model, "prompt_length", len(prompt))

	gm := d.client.GenerativeModel(d.model)
	res, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}
