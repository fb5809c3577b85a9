package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"healthassist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedPart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MIMEType string `json:"mimeType"`
		Data     []byte `json:"data"`
	} `json:"inlineData"`
}

type capturedRequest struct {
	Path      string
	APIKey    string
	UserAgent string
	Body      struct {
		Contents []struct {
			Role  string         `json:"role"`
			Parts []capturedPart `json:"parts"`
		} `json:"contents"`
		GenerationConfig struct {
			ResponseMIMEType string `json:"responseMimeType"`
		} `json:"generationConfig"`
	}
}

// fakeGemini answers generateContent with a fixed status and body and keeps
// every request it saw.
type fakeGemini struct {
	server *httptest.Server
	status int
	body   string

	mu       sync.Mutex
	requests []capturedRequest
}

func newFakeGemini(t *testing.T, status int, body string) *fakeGemini {
	t.Helper()
	f := &fakeGemini{status: status, body: body}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{
			Path:      r.URL.Path,
			APIKey:    r.Header.Get("x-goog-api-key"),
			UserAgent: r.UserAgent(),
		}
		if err := json.NewDecoder(r.Body).Decode(&req.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGemini) seen() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func TestGeminiGenerator_Generate_SendsPromptAndJoinsParts(t *testing.T) {
	fake := newFakeGemini(t, http.StatusOK, `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "{\"severity\":"}, {"text": "\"Low\"}"}]}
		}]
	}`)
	g := NewGeminiGenerator("gemini-test", WithBaseURL(fake.server.URL), WithUserAgent("healthassist/test"))

	text, err := g.Generate(context.Background(), "key-a", "describe: cough", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"severity":"Low"}`, text)

	requests := fake.seen()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.True(t, strings.HasSuffix(req.Path, "models/gemini-test:generateContent"), req.Path)
	assert.Equal(t, "key-a", req.APIKey)
	assert.Equal(t, "healthassist/test", req.UserAgent)
	assert.Equal(t, "application/json", req.Body.GenerationConfig.ResponseMIMEType)
	require.Len(t, req.Body.Contents, 1)
	assert.Equal(t, "user", req.Body.Contents[0].Role)
	require.Len(t, req.Body.Contents[0].Parts, 1)
	assert.Equal(t, "describe: cough", req.Body.Contents[0].Parts[0].Text)
}

func TestGeminiGenerator_Generate_AttachmentAsInlineData(t *testing.T) {
	fake := newFakeGemini(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	g := NewGeminiGenerator("gemini-test", WithBaseURL(fake.server.URL))

	attachment := &models.Attachment{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	_, err := g.Generate(context.Background(), "key-a", "look at this", attachment)
	require.NoError(t, err)

	requests := fake.seen()
	require.Len(t, requests, 1)
	parts := requests[0].Body.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "look at this", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, attachment.Data, parts[1].InlineData.Data)
}

func TestGeminiGenerator_Generate_EmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates":[]}`},
		{"candidate without content", `{"candidates":[{"finishReason":"SAFETY"}]}`},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeGemini(t, http.StatusOK, tt.body)
			g := NewGeminiGenerator("gemini-test", WithBaseURL(fake.server.URL))

			_, err := g.Generate(context.Background(), "key-a", "prompt", nil)
			assert.ErrorIs(t, err, ErrEmptyResponse)
		})
	}
}

func TestGeminiGenerator_Generate_UpstreamError(t *testing.T) {
	fake := newFakeGemini(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	g := NewGeminiGenerator("gemini-test", WithBaseURL(fake.server.URL))

	_, err := g.Generate(context.Background(), "key-a", "prompt", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "gemini generate")
}

func TestGeminiGenerator_ReusesClientPerKey(t *testing.T) {
	fake := newFakeGemini(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	g := NewGeminiGenerator("gemini-test", WithBaseURL(fake.server.URL))
	ctx := context.Background()

	for _, key := range []string{"key-a", "key-b", "key-a"} {
		_, err := g.Generate(ctx, key, "prompt", nil)
		require.NoError(t, err)
	}

	a1, err := g.client(ctx, "key-a")
	require.NoError(t, err)
	a2, err := g.client(ctx, "key-a")
	require.NoError(t, err)
	b, err := g.client(ctx, "key-b")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Len(t, g.clients, 2)

	var keys []string
	for _, req := range fake.seen() {
		keys = append(keys, req.APIKey)
	}
	assert.Equal(t, []string{"key-a", "key-b", "key-a"}, keys)
	assert.Equal(t, "Gemini:gemini-test", g.Name())
}
