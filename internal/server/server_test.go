package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/brollweave/internal/pipeline"
	"github.com/forPelevin/brollweave/internal/store"
	"github.com/forPelevin/brollweave/internal/types"
)

const (
	waitLong = 2 * time.Second
	waitTick = 10 * time.Millisecond
)

type stubRunner struct {
	mu      sync.Mutex
	result  types.Result
	err     error
	gotReqs []pipeline.Request
	block   chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (types.Result, error) {
	s.mu.Lock()
	s.gotReqs = append(s.gotReqs, req)
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return types.Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return types.Result{}, s.err
	}
	return s.result, nil
}

func newTestServer(t *testing.T, r *stubRunner, maxJobs int) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(r, st, nil, maxJobs), st
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, 1)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIndexBanner(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, 1)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.NotEmpty(t, body["message"])
}

func TestAutoSplice(t *testing.T) {
	runner := &stubRunner{result: types.Result{
		JobID:          "j1",
		Recipe:         types.RecipeSplice,
		InsertionPoint: 7,
		Transcript:     "hello world",
		OutputRef:      "/temp/j1/output.mp4",
	}}
	srv, _ := newTestServer(t, runner, 1)

	rec := postJSON(t, srv.Handler(), "/auto-splice", map[string]any{
		"main_video_url": "http://cdn/main.mp4",
		"broll_clips":    []map[string]string{{"url": "http://cdn/b1.mp4"}, {"url": "http://cdn/b2.mp4"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body spliceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "complete", body.Status)
	assert.Equal(t, 7, body.TimestampUsed)
	assert.Equal(t, "hello world", body.Transcript)
	assert.Equal(t, "/temp/j1/output.mp4", body.Output)

	// Only the first clip is consumed.
	require.Len(t, runner.gotReqs, 1)
	assert.Equal(t, types.RecipeSplice, runner.gotReqs[0].Recipe)
	assert.Equal(t, "http://cdn/b1.mp4", runner.gotReqs[0].BrollURL)
}

func TestOverlayBroll(t *testing.T) {
	runner := &stubRunner{result: types.Result{
		InsertionPoint: 10,
		BrollDuration:  5,
		OutputRef:      "/temp/j2/output.mp4",
	}}
	srv, _ := newTestServer(t, runner, 1)

	rec := postJSON(t, srv.Handler(), "/overlay-broll", map[string]any{
		"main_video_url": "http://cdn/main.mp4",
		"broll_clips":    []map[string]string{{"url": "http://cdn/b.mp4"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body overlayResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "overlay complete", body.Status)
	assert.Equal(t, 10, body.TimestampUsed)
	assert.Equal(t, 5, body.BrollDuration)

	require.Len(t, runner.gotReqs, 1)
	assert.Equal(t, types.RecipeOverlay, runner.gotReqs[0].Recipe)
}

func TestProcessChunk(t *testing.T) {
	runner := &stubRunner{result: types.Result{
		InsertionPoint: 12,
		ChunkStart:     45,
		OutputRef:      "/temp/j3/output.mp4",
	}}
	srv, _ := newTestServer(t, runner, 1)

	rec := postJSON(t, srv.Handler(), "/process-chunk", map[string]any{
		"main_video_url": "http://cdn/main.mp4",
		"broll_url":      "http://cdn/b.mp4",
		"start_time":     45,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body chunkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "processed", body.Status)
	assert.Equal(t, 45, body.ChunkStart)
	assert.Equal(t, 12, body.BrollTimestamp)

	require.Len(t, runner.gotReqs, 1)
	assert.Equal(t, types.RecipeChunkedOverlay, runner.gotReqs[0].Recipe)
	assert.Equal(t, 45, runner.gotReqs[0].ChunkStart)
}

func TestValidationErrors(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, 1)
	h := srv.Handler()

	cases := []struct {
		name string
		path string
		body any
	}{
		{"splice missing main", "/auto-splice", map[string]any{"broll_clips": []map[string]string{{"url": "http://b"}}}},
		{"splice no clips", "/auto-splice", map[string]any{"main_video_url": "http://m"}},
		{"splice empty clip url", "/auto-splice", map[string]any{"main_video_url": "http://m", "broll_clips": []map[string]string{{"url": ""}}}},
		{"overlay missing main", "/overlay-broll", map[string]any{"broll_clips": []map[string]string{{"url": "http://b"}}}},
		{"chunk missing broll", "/process-chunk", map[string]any{"main_video_url": "http://m", "start_time": 0}},
		{"chunk negative start", "/process-chunk", map[string]any{"main_video_url": "http://m", "broll_url": "http://b", "start_time": -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, body.Stage)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auto-splice", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStageFailureIdentifiesStage(t *testing.T) {
	runner := &stubRunner{err: &pipeline.StageError{
		Stage: pipeline.StageTranscribing,
		Err:   &pipeline.TranscriptionError{Err: assert.AnError},
	}}
	srv, _ := newTestServer(t, runner, 1)

	rec := postJSON(t, srv.Handler(), "/auto-splice", map[string]any{
		"main_video_url": "http://cdn/main.mp4",
		"broll_clips":    []map[string]string{{"url": "http://cdn/b.mp4"}},
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(pipeline.StageTranscribing), body.Stage)
	assert.NotEmpty(t, body.Error)
}

func TestSaturationReturns503(t *testing.T) {
	block := make(chan struct{})
	runner := &stubRunner{block: block, result: types.Result{OutputRef: "/temp/j/output.mp4"}}
	srv, _ := newTestServer(t, runner, 1)
	h := srv.Handler()

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- postJSON(t, h, "/overlay-broll", map[string]any{
			"main_video_url": "http://cdn/main.mp4",
			"broll_clips":    []map[string]string{{"url": "http://cdn/b.mp4"}},
		})
	}()

	// Wait until the first job holds the only slot.
	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.gotReqs) == 1
	}, waitLong, waitTick)

	rec := postJSON(t, h, "/overlay-broll", map[string]any{
		"main_video_url": "http://cdn/main.mp4",
		"broll_clips":    []map[string]string{{"url": "http://cdn/b.mp4"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(block)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestDownload(t *testing.T) {
	srv, st := newTestServer(t, &stubRunner{}, 1)
	h := srv.Handler()

	require.NoError(t, st.InitJob("j1"))
	path := st.Allocate("j1", types.RoleFinalOutput)
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/temp/j1/output.mp4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video bytes", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/temp/j1/missing.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/temp/j1/%2e%2e", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{}, 1)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auto-splice", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
