package producer

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiProducer generates plans through Google's Gemini API.
type GeminiProducer struct {
	client       *genai.Client
	model        string
	systemPrompt string
}

// NewGeminiProducer creates a Gemini-backed plan producer.
func NewGeminiProducer(ctx context.Context, apiKey, model string) (*GeminiProducer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProducer{
		client:       client,
		model:        model,
		systemPrompt: planSystemPrompt,
	}, nil
}

// GeneratePlan sends the planning prompt and returns the raw completion.
func (p *GeminiProducer) GeneratePlan(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	}
	if p.systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(p.systemPrompt, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(text), nil
}

// GetModel returns the current model.
func (p *GeminiProducer) GetModel() string {
	return p.model
}
