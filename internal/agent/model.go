// Package agent wraps the language-model collaborators the service talks
// to: meal intake, meal editing, per-meal context analysis and the
// end-of-day review. The ledger core never calls a model directly; it only
// consumes the validated, normalized records these agents produce.
package agent

import (
	"context"
	"errors"
)

// Completer is a text-in/text-out language model call. Implementations may
// attach an optional image to the prompt.
type Completer interface {
	// Load initializes the model client with its configuration.
	Load(ctx context.Context) error
	// Complete sends the prompt (plus optional image) and returns the raw
	// model output.
	Complete(ctx context.Context, prompt string, image []byte) (string, error)
}

var (
	// ErrUnavailable means the collaborator could not be reached or did
	// not respond; the caller may retry the whole operation.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrInvalidPayload means the collaborator answered but the response
	// did not normalize into the strict meal schema; the caller should
	// fall back to the prior state instead of retrying.
	ErrInvalidPayload = errors.New("collaborator returned invalid structure")
)

// Config selects and configures the completer backend.
type Config struct {
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
}

// NewCompleter builds a completer from config. Without a project id the
// returned completer reports ErrUnavailable on every call, which lets the
// rest of the service run (and be tested) with no model configured.
func NewCompleter(cfg Config) Completer {
	if cfg.ProjectID == "" {
		return disabledCompleter{}
	}
	return NewVertexCompleter(cfg)
}

type disabledCompleter struct{}

func (disabledCompleter) Load(context.Context) error { return nil }

func (disabledCompleter) Complete(context.Context, string, []byte) (string, error) {
	return "", ErrUnavailable
}
