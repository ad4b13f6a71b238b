package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/leitner/internal/logger"
)

const validReply = `{
"corrected_paragraph": "Sverige är ett vackert land.",
"translated_paragraph": "Sweden is a beautiful country.",
"phrases": [{"phrase": "ett vackert land", "translation": "a beautiful country"}],
"words": [{"word": "vacker", "translation": "beautiful"}, {"word": "land", "translation": "country"}]
}`

func chatServer(t *testing.T, replies ...string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model string `json:"model"`
		}
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "test-model", req.Model)

		reply := replies[len(replies)-1]
		if int(n) <= len(replies) {
			reply = replies[n-1]
		}
		if reply == "500" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failed","type":"server_error"}}`))
			return
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    srv.URL + "/v1",
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: retries,
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, logger.NewNop())
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	srv, _ := chatServer(t, validReply)
	c := newTestClient(t, srv, 1)

	analysis, err := c.Analyze(context.Background(), "Sverig är en vackert land.")
	require.NoError(t, err)
	assert.Equal(t, "Sverige är ett vackert land.", analysis.CorrectedText)
	assert.Equal(t, "Sweden is a beautiful country.", analysis.Translation)
	assert.Equal(t, []Candidate{
		{Term: "ett vackert land", Meaning: "a beautiful country"},
		{Term: "vacker", Meaning: "beautiful"},
		{Term: "land", Meaning: "country"},
	}, analysis.Vocabulary())
}

func TestAnalyzeExtractsJSONFromProse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"markdown fence", "```json\n" + validReply + "\n```"},
		{"surrounding text", "Here is the analysis:\n" + validReply + "\nHope this helps!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := chatServer(t, tt.reply)
			c := newTestClient(t, srv, 1)

			analysis, err := c.Analyze(context.Background(), "text")
			require.NoError(t, err)
			assert.Len(t, analysis.Words, 2)
		})
	}
}

func TestAnalyzeParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "I cannot help with that."},
		{"broken json", "{\"corrected_paragraph\": "},
		{"missing translation", `{"corrected_paragraph": "a", "phrases": [], "words": []}`},
		{"missing words", `{"corrected_paragraph": "a", "translated_paragraph": "b", "phrases": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := chatServer(t, tt.reply)
			c := newTestClient(t, srv, 1)

			_, err := c.Analyze(context.Background(), "text")
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.reply, perr.Raw)
		})
	}
}

func TestAnalyzeServiceError(t *testing.T) {
	srv, calls := chatServer(t, "500")
	c := newTestClient(t, srv, 1)

	_, err := c.Analyze(context.Background(), "text")
	var serr *ServiceError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestAnalyzeRetries(t *testing.T) {
	srv, calls := chatServer(t, "500", validReply)
	c := newTestClient(t, srv, 2)

	_, err := c.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
}

func TestExplainRoot(t *testing.T) {
	srv, _ := chatServer(t, "  From Old Norse sjór, meaning sea.  ")
	c := newTestClient(t, srv, 1)

	root, err := c.ExplainRoot(context.Background(), "sjö")
	require.NoError(t, err)
	assert.Equal(t, "From Old Norse sjór, meaning sea.", root)

	_, err = c.ExplainRoot(context.Background(), " ")
	assert.Error(t, err)
}

func TestPromptsMentionLanguages(t *testing.T) {
	p := analysisPrompt("Swedish", "English", "Hej")
	assert.True(t, strings.Contains(p, "Swedish paragraph"))
	assert.True(t, strings.Contains(p, "English translation"))
	assert.True(t, strings.Contains(p, "Input paragraph: Hej"))
}
