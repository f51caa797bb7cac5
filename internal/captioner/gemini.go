package captioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const captionPrompt = "Describe this image in one or two sentences. " +
	"Include any text visible in the image verbatim."

// Gemini captions images through Google's multimodal Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if model == "" {
		return nil, errors.New("gemini model name cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Extract(ctx context.Context, resourceLocator string) (string, error) {
	if err := validateImage(resourceLocator); err != nil {
		return "", err
	}

	data, err := os.ReadFile(resourceLocator)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", resourceLocator, err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeTypeFor(resourceLocator)),
			genai.NewPartFromText(captionPrompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	description := strings.TrimSpace(resp.Text())
	if description == "" {
		return "", errors.New("gemini returned an empty description")
	}

	log.Debug().Str("image", resourceLocator).Int("len", len(description)).Msg("gemini description generated")
	return description, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
