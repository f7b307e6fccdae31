package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-rag/internal/models"
)

type fakeAsker struct {
	question string
	k        int
	resp     *models.PromptResponse
	err      error
}

func (f *fakeAsker) Query(_ context.Context, question string, k int) (*models.PromptResponse, error) {
	f.question, f.k = question, k
	return f.resp, f.err
}

func newApp(asker Asker) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewAskHandler(asker, 4)
	h.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	app.Get("/check/healthy", NewCheckHandler().HandleHealthy)
	app.Post("/api/v1/ask", h.HandleAsk)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp, out
}

func TestHealthy(t *testing.T) {
	resp, err := newApp(&fakeAsker{}).Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"result":"ok"}`, string(body))
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{resp: &models.PromptResponse{
		Content: "Flood damage is not covered.",
		Sources: []models.ScoredChunk{{Position: 1, Score: 0.42, Text: "Flood damage is excluded."}},
	}}
	resp, out := post(t, newApp(asker), `{"question": "Is flood covered?"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Is flood covered?", asker.question)
	assert.Equal(t, 4, asker.k)
	assert.Equal(t, "Flood damage is not covered.", out["answer"])
	assert.Equal(t, "2025-01-01T12:00:00Z", out["timestamp"])

	sources := out["sources"].([]any)
	require.Len(t, sources, 1)
	src := sources[0].(map[string]any)
	assert.EqualValues(t, 1, src["position"])
	assert.Equal(t, "Flood damage is excluded.", src["text"])
}

func TestAskCustomK(t *testing.T) {
	asker := &fakeAsker{resp: &models.PromptResponse{Content: "ok"}}
	resp, out := post(t, newApp(asker), `{"question": "grace period?", "k": 2}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, asker.k)
	assert.Equal(t, []any{}, out["sources"])
}

func TestAskValidation(t *testing.T) {
	app := newApp(&fakeAsker{})

	resp, out := post(t, app, `{"k": 3}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["errors"], "question")

	resp, out = post(t, app, `{"question": "q", "k": 50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out["errors"], "k")
}

func TestAskBadJSON(t *testing.T) {
	resp, out := post(t, newApp(&fakeAsker{}), `{"question": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON request", out["error"])
}

func TestAskMapsPipelineErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", models.ValidationError("retrieve", models.ErrEmptyInput), http.StatusUnprocessableEntity},
		{"upstream", models.UpstreamError("generate answer", errors.New("429")), http.StatusBadGateway},
		{"consistency", models.ConsistencyError("retrieve", models.ErrCorpusMismatch), http.StatusInternalServerError},
		{"io", models.IOError("retrieve", errors.New("disk")), http.StatusInternalServerError},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, out := post(t, newApp(&fakeAsker{err: tc.err}), `{"question": "q"}`)
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.Equal(t, tc.err.Error(), out["error"])
		})
	}
}

func TestErrorHandlerFiberErrors(t *testing.T) {
	resp, err := newApp(&fakeAsker{}).Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
