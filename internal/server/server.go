// Package server exposes the splice pipeline over HTTP. Handlers validate
// request shape, reserve a worker slot and block on the job; all media
// semantics live in the pipeline.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/forPelevin/brollweave/internal/pipeline"
	"github.com/forPelevin/brollweave/internal/store"
	"github.com/forPelevin/brollweave/internal/types"
)

// runner is the pipeline surface the server needs; tests stub it.
type runner interface {
	Run(ctx context.Context, req pipeline.Request) (types.Result, error)
}

type Server struct {
	runner runner
	store  *store.Store
	log    *zap.Logger

	// slots bounds concurrently running jobs so slow external calls cannot
	// exhaust the whole service. A full channel yields 503, not a queue.
	slots chan struct{}
}

func New(r runner, st *store.Store, log *zap.Logger, maxJobs int) *Server {
	if maxJobs <= 0 {
		maxJobs = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		runner: r,
		store:  st,
		log:    log,
		slots:  make(chan struct{}, maxJobs),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/auto-splice", s.handleAutoSplice)
	r.Post("/overlay-broll", s.handleOverlayBroll)
	r.Post("/process-chunk", s.handleProcessChunk)
	r.Get("/temp/{job}/{file}", s.handleDownload)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
