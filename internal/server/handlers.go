package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/brollweave/internal/pipeline"
	"github.com/forPelevin/brollweave/internal/types"
)

type brollClip struct {
	URL string `json:"url"`
}

type spliceRequest struct {
	MainVideoURL string      `json:"main_video_url"`
	BrollClips   []brollClip `json:"broll_clips"`
}

type chunkRequest struct {
	MainVideoURL string `json:"main_video_url"`
	BrollURL     string `json:"broll_url"`
	StartTime    int    `json:"start_time"`
}

type spliceResponse struct {
	Status        string `json:"status"`
	TimestampUsed int    `json:"timestamp_used"`
	Transcript    string `json:"transcript"`
	Output        string `json:"output"`
}

type overlayResponse struct {
	Status        string `json:"status"`
	TimestampUsed int    `json:"timestamp_used"`
	BrollDuration int    `json:"broll_duration"`
	Output        string `json:"output"`
}

type chunkResponse struct {
	Status         string `json:"status"`
	ChunkStart     int    `json:"chunk_start"`
	BrollTimestamp int    `json:"broll_timestamp"`
	Output         string `json:"output"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "FFmpeg + Whisper API is live!"})
}

func (s *Server) handleAutoSplice(w http.ResponseWriter, r *http.Request) {
	preq, ok := s.decodeSpliceShaped(w, r, types.RecipeSplice)
	if !ok {
		return
	}
	res, ok := s.runJob(w, r, preq)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, spliceResponse{
		Status:        "complete",
		TimestampUsed: res.InsertionPoint,
		Transcript:    res.Transcript,
		Output:        res.OutputRef,
	})
}

func (s *Server) handleOverlayBroll(w http.ResponseWriter, r *http.Request) {
	preq, ok := s.decodeSpliceShaped(w, r, types.RecipeOverlay)
	if !ok {
		return
	}
	res, ok := s.runJob(w, r, preq)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, overlayResponse{
		Status:        "overlay complete",
		TimestampUsed: res.InsertionPoint,
		BrollDuration: res.BrollDuration,
		Output:        res.OutputRef,
	})
}

func (s *Server) handleProcessChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.MainVideoURL == "" {
		writeError(w, http.StatusBadRequest, "main_video_url is required", "")
		return
	}
	if req.BrollURL == "" {
		writeError(w, http.StatusBadRequest, "broll_url is required", "")
		return
	}
	if req.StartTime < 0 {
		writeError(w, http.StatusBadRequest, "start_time must be >= 0", "")
		return
	}

	res, ok := s.runJob(w, r, pipeline.Request{
		Recipe:     types.RecipeChunkedOverlay,
		MainURL:    req.MainVideoURL,
		BrollURL:   req.BrollURL,
		ChunkStart: req.StartTime,
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chunkResponse{
		Status:         "processed",
		ChunkStart:     res.ChunkStart,
		BrollTimestamp: res.InsertionPoint,
		Output:         res.OutputRef,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")
	file := chi.URLParam(r, "file")
	path, err := s.store.Resolve(job, file)
	if err != nil {
		writeError(w, http.StatusNotFound, "no such artifact", "")
		return
	}
	http.ServeFile(w, r, path)
}

// decodeSpliceShaped handles the shared {main_video_url, broll_clips} body
// of the splice and overlay routes. Only the first B-roll clip is consumed.
func (s *Server) decodeSpliceShaped(w http.ResponseWriter, r *http.Request, recipe types.Recipe) (pipeline.Request, bool) {
	var req spliceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return pipeline.Request{}, false
	}
	if req.MainVideoURL == "" {
		writeError(w, http.StatusBadRequest, "main_video_url is required", "")
		return pipeline.Request{}, false
	}
	if len(req.BrollClips) == 0 || req.BrollClips[0].URL == "" {
		writeError(w, http.StatusBadRequest, "at least one broll clip with a url is required", "")
		return pipeline.Request{}, false
	}
	return pipeline.Request{
		Recipe:   recipe,
		MainURL:  req.MainVideoURL,
		BrollURL: req.BrollClips[0].URL,
	}, true
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request, preq pipeline.Request) (types.Result, bool) {
	select {
	case s.slots <- struct{}{}:
	default:
		writeError(w, http.StatusServiceUnavailable, "server at capacity, retry later", "")
		return types.Result{}, false
	}
	defer func() { <-s.slots }()

	res, err := s.runner.Run(r.Context(), preq)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			writeError(w, http.StatusBadGateway, err.Error(), string(se.Stage))
		} else {
			writeError(w, http.StatusInternalServerError, err.Error(), "")
		}
		return types.Result{}, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, errorResponse{Error: msg, Stage: stage})
}
