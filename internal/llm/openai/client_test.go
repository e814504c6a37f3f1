package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e6ai/expense-agent/constants"
	"github.com/e6ai/expense-agent/internal/llm"
)

type staticSecret string

func (s staticSecret) Get() string { return string(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func successEnvelope(content string) string {
	env := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(env)
	return string(b)
}

func TestExtractNoCredentialSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, staticSecret(""), testLogger())
	_, _, err := c.Extract(context.Background(), sampleImage(t))

	assert.ErrorIs(t, err, llm.ErrNoCredential)
	assert.Zero(t, hits.Load())
}

func TestExtractEncodingFailure(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, staticSecret("sk-test"), testLogger())
	_, _, err := c.Extract(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, llm.ErrEncodingFailed)
}

func TestExtractSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, successEnvelope(`{"vendor":"Starbucks","amount":4.5,"currency":"USD","date":"2025-03-02","category":"Food & Drink"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, staticSecret("sk-test"), testLogger())
	result, raw, err := c.Extract(context.Background(), sampleImage(t))
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, 300.0, gotBody["max_tokens"])
	assert.InDelta(t, 0.1, gotBody["temperature"], 0.001)

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	text := content[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Food & Drink")
	imageURL := content[1].(map[string]any)["image_url"].(map[string]any)
	assert.True(t, strings.HasPrefix(imageURL["url"].(string), "data:image/jpeg;base64,"))
	assert.Equal(t, "low", imageURL["detail"])

	assert.Equal(t, "Starbucks", result.Vendor)
	assert.Equal(t, 4.5, result.Amount)
	assert.Equal(t, constants.FoodAndDrink, result.Category)
	assert.NotEmpty(t, raw)
}

func TestExtractAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, staticSecret("sk-test"), testLogger())
	_, _, err := c.Extract(context.Background(), sampleImage(t))

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestExtractParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, staticSecret("sk-test"), testLogger())
	_, _, err := c.Extract(context.Background(), sampleImage(t))
	assert.ErrorIs(t, err, llm.ErrParseFailed)
}

func TestExtractSingleFlightGuard(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
			<-release
		}
		_, _ = io.WriteString(w, successEnvelope(`{"vendor":"Shop"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, staticSecret("sk-test"), testLogger())
	img := sampleImage(t)

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := c.Extract(context.Background(), img)
		firstDone <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first extraction never reached the server")
	}

	// The slot is held by the in-flight call.
	_, _, err := c.Extract(context.Background(), img)
	assert.ErrorIs(t, err, llm.ErrExtractionInFlight)

	close(release)
	require.NoError(t, <-firstDone)

	// Slot is free again.
	_, _, err = c.Extract(context.Background(), img)
	require.NoError(t, err)
}
