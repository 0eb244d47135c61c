package agent

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// VertexCompleter implements Completer on Google's Vertex AI.
type VertexCompleter struct {
	config Config
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexCompleter returns an unloaded Vertex AI completer.
func NewVertexCompleter(config Config) *VertexCompleter {
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &VertexCompleter{config: config}
}

// Load creates the Vertex AI client.
func (m *VertexCompleter) Load(ctx context.Context) error {
	opts := []option.ClientOption{}
	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	m.client = client
	m.model = client.GenerativeModel(m.config.Model)
	return nil
}

// Complete sends the prompt (plus optional image) to the model and returns
// the first candidate's text.
func (m *VertexCompleter) Complete(ctx context.Context, prompt string, image []byte) (string, error) {
	if m.model == nil {
		return "", fmt.Errorf("%w: model not loaded", ErrUnavailable)
	}

	parts := []genai.Part{genai.Text(prompt)}
	if len(image) > 0 {
		parts = append(parts, genai.ImageData("image/jpeg", image))
	}

	resp, err := m.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrUnavailable)
	}
	candidate := resp.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content in response", ErrUnavailable)
	}

	return fmt.Sprintf("%v", candidate.Content.Parts[0]), nil
}
