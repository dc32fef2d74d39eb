package llm

import "context"

// Options are the generation parameters passed to a provider.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultOptions match the service's fixed generation settings.
var DefaultOptions = Options{
	Temperature: 0.1,
	TopP:        0.9,
	MaxTokens:   500,
}

// Provider is an interchangeable text-generation backend. The provider is
// selected once from configuration at startup; callers never branch on
// provider identity.
type Provider interface {
	// Name identifies the backend ("ollama", "gemini").
	Name() string

	// Model reports the configured model name.
	Model() string

	// Generate sends the prompt and returns the complete response text.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateStream sends the prompt and invokes emit for every text
	// fragment as it arrives. The stream is finite and not restartable;
	// a new call re-executes the request. Returning an error from emit
	// stops production, and ctx cancellation is honored between
	// fragments.
	GenerateStream(ctx context.Context, prompt string, opts Options, emit func(delta string) error) error
}
