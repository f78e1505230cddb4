package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listsync/backend/internal/domain/shopping"
	"github.com/listsync/backend/internal/infrastructure/config"
)

func completionServer(t *testing.T, status int, content string, inspect func(*http.Request, chatRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if inspect != nil {
			inspect(r, req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewHTTPClassifier_Validation(t *testing.T) {
	_, err := NewHTTPClassifier(nil)
	assert.Error(t, err)

	_, err = NewHTTPClassifier(&config.ClassifierConfig{BaseURL: "::"})
	assert.Error(t, err)
}

func TestHTTPClassifier_Classify(t *testing.T) {
	content := `{"items":[
		{"name":"Milk","category":"Dairy","confidence":0.93},
		{"name":"Bread","category":"Bakery","confidence":0.41},
		{"name":"","category":"Other","confidence":1}
	]}`

	var seen chatRequest
	var auth, path string
	server := completionServer(t, http.StatusOK, content, func(r *http.Request, req chatRequest) {
		seen = req
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
	})

	c, err := NewHTTPClassifier(&config.ClassifierConfig{
		BaseURL: server.URL + "/v1/",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)

	answers, err := c.Classify(context.Background(), []string{"Milk", "Bread"}, []string{"Dairy", "Bakery", "Other"})
	require.NoError(t, err)

	assert.Equal(t, []shopping.Classification{
		{Name: "Milk", Category: "Dairy", Confidence: 0.93},
		{Name: "Bread", Category: "Bakery", Confidence: 0.41},
	}, answers)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-mini", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.JSONEq(t, `{"categories":["Dairy","Bakery","Other"],"items":["Milk","Bread"]}`, seen.Messages[1].Content)
}

func TestHTTPClassifier_Errors(t *testing.T) {
	categories := []string{"Dairy", "Other"}

	t.Run("http error", func(t *testing.T) {
		server := completionServer(t, http.StatusTooManyRequests, "", nil)
		c, err := NewHTTPClassifier(&config.ClassifierConfig{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = c.Classify(context.Background(), []string{"Milk"}, categories)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})

	t.Run("unparseable content", func(t *testing.T) {
		server := completionServer(t, http.StatusOK, "Milk is dairy.", nil)
		c, err := NewHTTPClassifier(&config.ClassifierConfig{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = c.Classify(context.Background(), []string{"Milk"}, categories)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("no names skips the call", func(t *testing.T) {
		c, err := NewHTTPClassifier(&config.ClassifierConfig{BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err)

		answers, err := c.Classify(context.Background(), nil, categories)
		assert.NoError(t, err)
		assert.Empty(t, answers)
	})
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"wrapped object", `{"items":[{"name":"Milk","category":"Dairy","confidence":1}]}`, 1},
		{"bare array", `[{"name":"Milk","category":"Dairy","confidence":1},{"name":"Eggs","category":"Dairy","confidence":0.7}]`, 2},
		{"code fence", "```json\n[{\"name\":\"Milk\",\"category\":\"Dairy\",\"confidence\":1}]\n```", 1},
		{"empty object", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers, err := parseAnswers(tt.content)
			require.NoError(t, err)
			assert.Len(t, answers, tt.want)
		})
	}
}
