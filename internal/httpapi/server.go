package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ocrtranslate/internal/config"
	"ocrtranslate/internal/failure"
	"ocrtranslate/internal/model"
	"ocrtranslate/internal/pipeline"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type PipelineService interface {
	Process(ctx context.Context, in pipeline.ProcessInput) (pipeline.ProcessResult, error)
}

type UpstreamChecker interface {
	CheckModel(ctx context.Context, model string) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	IncPipelineFailure(kind, stage string)
	IncTranslationSkipped()
}

type Dependencies struct {
	Pipeline       PipelineService
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	pipeline     PipelineService
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader       = "X-Request-Id"
	requestIDContext      = ctxKey("request_id")
	multipartMemoryBytes  = 8 << 20
	uploadFieldName       = "file"
	readinessCheckTimeout = 2 * time.Second
)

// corsMethods lists every method net/http defines. The cors package matches
// methods literally and has no wildcard.
var corsMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
}

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Pipeline == nil || deps.Upstream == nil {
		panic("httpapi: pipeline and upstream dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		pipeline:     deps.Pipeline,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, _ string) bool { return true },
		AllowedMethods:   corsMethods,
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}
	r.Post("/ocr-translate", s.handleOCRTranslate)

	return r
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.WelcomeResponse{Message: model.WelcomeMessage})
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
	defer cancel()
	if err := s.upstream.CheckModel(ctx, s.cfg.Model); err != nil {
		s.logger.Warn("readiness check failed",
			"request_id", requestIDFromContext(r.Context()),
			"provider", s.cfg.Provider,
			"model", s.cfg.Model,
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "upstream check failed")
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, Provider: s.cfg.Provider, Model: s.cfg.Model})
}

func (s *server) handleOCRTranslate(w http.ResponseWriter, r *http.Request) {
	data, header, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, r, failure.New(failure.KindRequest, failure.StageUpload, err))
		return
	}

	result, err := s.pipeline.Process(r.Context(), pipeline.ProcessInput{
		Image:    data,
		FileName: header.Filename,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if result.TranslationSkipped && s.metrics != nil {
		s.metrics.IncTranslationSkipped()
	}

	s.logger.Debug("ocr_translate_completed",
		"request_id", requestIDFromContext(r.Context()),
		"format", result.Format,
		"english_chars", len(result.EnglishText),
		"translation_skipped", result.TranslationSkipped,
		"extraction_ms", result.Timings.Extraction.Milliseconds(),
		"translation_ms", result.Timings.Translation.Milliseconds(),
	)

	writeJSON(w, http.StatusOK, model.OCRTranslateResponse{
		EnglishText:    result.EnglishText,
		TranslatedText: result.TranslatedText,
	})
}

// readUpload reads the whole "file" part into memory.
func (s *server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, error) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		return nil, nil, err
	}
	defer cleanupMultipartForm(r.MultipartForm)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, err
	}
	return data, header, nil
}

// fail logs the cause and answers with the uniform error body. The cause is
// never sent to the client.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := string(failure.KindOf(err))
	stage := string(failure.StageOf(err))
	s.logger.Error("ocr_translate_failed",
		"request_id", requestIDFromContext(r.Context()),
		"kind", kind,
		"stage", stage,
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.IncPipelineFailure(kind, stage)
	}
	writeError(w, http.StatusInternalServerError, model.GenericErrorMessage)
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				if s.metrics != nil {
					s.metrics.IncPipelineFailure(string(failure.KindInternal), "")
				}
				writeError(w, http.StatusInternalServerError, model.GenericErrorMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}

func cleanupMultipartForm(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}
