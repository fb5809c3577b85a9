package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"healthassist/internal/models"

	genai "google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("analysis: empty model response")

// GeminiGenerator calls the Gemini API. A genai client is created lazily for
// each credential and reused afterwards.
type GeminiGenerator struct {
	model       string
	httpOptions genai.HTTPOptions

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// GeminiOption configures the HTTP side of every client the generator opens.
type GeminiOption func(*genai.HTTPOptions)

// WithBaseURL points the clients at another endpoint, such as a proxy.
func WithBaseURL(baseURL string) GeminiOption {
	return func(o *genai.HTTPOptions) {
		o.BaseURL = baseURL
	}
}

// WithUserAgent sends userAgent ahead of the SDK's own identifier.
func WithUserAgent(userAgent string) GeminiOption {
	return func(o *genai.HTTPOptions) {
		if o.Headers == nil {
			o.Headers = http.Header{}
		}
		o.Headers.Set("User-Agent", userAgent)
	}
}

func NewGeminiGenerator(model string, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		model:   model,
		clients: make(map[string]*genai.Client),
	}
	for _, opt := range opts {
		opt(&g.httpOptions)
	}
	return g
}

func (g *GeminiGenerator) Name() string { return "Gemini:" + g.model }

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cli, ok := g.clients[apiKey]; ok {
		return cli, nil
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: g.httpOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.clients[apiKey] = cli
	return cli, nil
}

// Generate sends prompt, plus attachment as inline data when present, and
// returns the concatenated text of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, apiKey, prompt string, attachment *models.Attachment) (string, error) {
	cli, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{{Text: prompt}}
	if attachment != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: attachment.MIMEType, Data: attachment.Data},
		})
	}

	resp, err := cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
