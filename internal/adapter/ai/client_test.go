package ai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirehub/profile-evaluator/internal/adapter/ai"
	"github.com/hirehub/profile-evaluator/internal/config"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		AppEnv:       "test",
		LLMAPIKey:    "key-1",
		LLMBaseURL:   baseURL,
		LLMModel:     "some/model",
		LLMMaxTokens: 512,
	}
}

func TestChatJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "some/model", body["model"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"totalScore\":70}"}}]}`))
	}))
	defer srv.Close()

	c := ai.NewWithHTTPClient(testConfig(srv.URL), srv.Client())
	out, err := c.ChatJSON(context.Background(), "system", "user", 256)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalScore":70}`, out)
}

func TestChatJSONRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := ai.NewWithHTTPClient(testConfig(srv.URL), srv.Client())
	out, err := c.ChatJSON(context.Background(), "s", "u", 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestChatJSON4xxIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := ai.NewWithHTTPClient(testConfig(srv.URL), srv.Client())
	_, err := c.ChatJSON(context.Background(), "s", "u", 0)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestChatJSONMissingKey(t *testing.T) {
	c := ai.New(config.Config{AppEnv: "test"})
	_, err := c.ChatJSON(context.Background(), "s", "u", 0)
	require.Error(t, err)
}
