package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const answer = `{"confidence":0.82,"fields":[{"role":"title","selector":"#title","confidence":0.9},{"role":"submit","selector":"#submit","confidence":0.8}]}`

func TestOpenAI_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body openAIRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.Equal(t, "json_object", body.ResponseFormat["type"])
		if assert.Len(t, body.Messages, 2) {
			assert.Contains(t, body.Messages[1].Content, "Board: Acme Careers")
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": answer}}},
			"usage":   map[string]any{"prompt_tokens": 1000, "completion_tokens": 200},
		})
	}))
	defer srv.Close()

	p := NewOpenAI(HTTPConfig{BaseURL: srv.URL + "/v1", Model: "gpt-test", APIKey: "sk-test", InputPrice: 0.15, OutputPrice: 0.60}, nil)
	res, err := p.Discover(context.Background(), Request{Excerpt: "<form></form>", BoardName: "Acme Careers"})
	require.NoError(t, err)
	assert.Len(t, res.Fields, 2)
	assert.InDelta(t, 0.82, res.Confidence, 1e-9)
	assert.InDelta(t, 1000*0.15/1e6+200*0.60/1e6, res.Cost, 1e-12)
}

func TestOpenAI_MalformedContentKeepsCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "sorry, no"}}},
			"usage":   map[string]any{"prompt_tokens": 100, "completion_tokens": 10},
		})
	}))
	defer srv.Close()

	p := NewOpenAI(HTTPConfig{BaseURL: srv.URL, Model: "m", APIKey: "k", InputPrice: 1, OutputPrice: 1}, nil)
	res, err := p.Discover(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.InDelta(t, 110.0/1e6, res.Cost, 1e-12)
}

func TestOpenAI_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI(HTTPConfig{BaseURL: srv.URL, Model: "m", APIKey: "k"}, nil).Discover(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestOpenAI_MissingKey(t *testing.T) {
	_, err := NewOpenAI(HTTPConfig{Model: "m"}, nil).Discover(context.Background(), Request{})
	assert.Error(t, err)
}

func TestAnthropic_Discover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var body anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, systemPrompt, body.System)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "Here you go:\n" + answer}},
			"usage":   map[string]any{"input_tokens": 2000, "output_tokens": 100},
		})
	}))
	defer srv.Close()

	p := NewAnthropic(HTTPConfig{BaseURL: srv.URL, Model: "claude-test", APIKey: "ak-test", InputPrice: 0.8, OutputPrice: 4}, nil)
	res, err := p.Discover(context.Background(), Request{Excerpt: "<form></form>"})
	require.NoError(t, err)
	assert.Len(t, res.Fields, 2)
	assert.InDelta(t, 2000*0.8/1e6+100*4/1e6, res.Cost, 1e-12)
}
