package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/k11v/etex/internal/docs" // registers the OpenAPI document
	"github.com/k11v/etex/internal/relay"
)

const (
	queryMakefileName = "makefile_name"
	queryOutputPath   = "output_path"

	headerXRequestID = "X-Request-Id"
)

// kindInternalError is reported for errors that didn't come from relay.Relay.
const kindInternalError relay.Kind = "InternalError"

type handler struct {
	mux            *http.ServeMux
	relay          *relay.Relay
	log            *slog.Logger
	maxArchiveSize int64
}

func newHandler(r *relay.Relay, log *slog.Logger, maxArchiveSize int64, development bool) *handler {
	mux := http.NewServeMux()
	h := &handler{mux: mux, relay: r, log: log, maxArchiveSize: maxArchiveSize}

	if development {
		mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}

	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("POST /{$}", h.Build)

	return h
}

type requestIDKey struct{}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	w.Header().Set(headerXRequestID, id.String())
	r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)

	h.log.Info(
		"handled request",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start),
	)
}

// GetHealth reports that the server is up.
//
//	@Summary	Get health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("didn't write response", "error", err)
		return
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Build builds the workspace archive in the request body
// and responds with the archive of the output directory.
//
//	@Summary	Build workspace
//	@Accept		application/zip
//	@Produce	application/zip
//	@Param		makefile_name	query		string	true	"Makefile path inside the archive"
//	@Param		output_path		query		string	true	"Output directory path inside the archive"
//	@Success	200				{file}		binary
//	@Failure	400				{object}	errorResponse
//	@Failure	411				{object}	errorResponse
//	@Failure	413				{object}	errorResponse
//	@Failure	422				{object}	errorResponse
//	@Failure	500				{object}	errorResponse
//	@Failure	504				{object}	errorResponse
//	@Router		/ [post]
func (h *handler) Build(w http.ResponseWriter, r *http.Request) {
	// Query makefile_name and output_path.
	query := r.URL.Query()
	makefileName, err := queryValue(query, queryMakefileName)
	if err != nil {
		h.serveError(w, r, relay.NewBadRequestError(0, err.Error(), nil))
		return
	}
	outputPath, err := queryValue(query, queryOutputPath)
	if err != nil {
		h.serveError(w, r, relay.NewBadRequestError(0, err.Error(), nil))
		return
	}

	// Header Content-Length.
	if r.ContentLength < 0 {
		h.serveError(w, r, relay.NewBadRequestError(http.StatusLengthRequired, "missing Content-Length request header", nil))
		return
	}
	if r.ContentLength > h.maxArchiveSize {
		message := fmt.Sprintf("request body is larger than %d bytes", h.maxArchiveSize)
		h.serveError(w, r, relay.NewBadRequestError(http.StatusRequestEntityTooLarge, message, nil))
		return
	}

	// Body. The buffer grows with the bytes actually received.
	body, err := io.ReadAll(io.LimitReader(r.Body, r.ContentLength))
	if err != nil {
		h.serveError(w, r, relay.NewBadRequestError(0, "didn't read request body", err))
		return
	}
	if got, want := int64(len(body)), r.ContentLength; got != want {
		message := fmt.Sprintf("got %d request body bytes, want %d", got, want)
		h.serveError(w, r, relay.NewBadRequestError(0, message, nil))
		return
	}

	result, err := h.relay.Do(r.Context(), &relay.Request{
		ID:           requestID(r.Context()),
		MakefileName: makefileName,
		OutputPath:   outputPath,
		Archive:      body,
	})
	if err != nil {
		h.serveError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(result)))
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(result); err != nil {
		h.log.Warn("didn't write response", "request_id", requestID(r.Context()), "error", err)
		return
	}
}

type errorResponse struct {
	Status  int    `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (h *handler) serveError(w http.ResponseWriter, r *http.Request, err error) {
	relayErr := (*relay.Error)(nil)
	if !errors.As(err, &relayErr) {
		relayErr = &relay.Error{
			Kind:    kindInternalError,
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
			Err:     err,
		}
	}

	resp := errorResponse{
		Status:  relayErr.Status,
		Kind:    string(relayErr.Kind),
		Message: relayErr.Message,
	}
	if relayErr.Status < http.StatusInternalServerError {
		// Client errors are caused by the request, so the cause is worth showing.
		if relayErr.Err != nil {
			resp.Message += ": " + relayErr.Err.Error()
		}
		h.log.Warn("client error", "request_id", requestID(r.Context()), "error", err)
	} else {
		h.log.Error("server error", "request_id", requestID(r.Context()), "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(relayErr.Status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("didn't write response", "error", err)
		return
	}
}

// queryValue returns the only value of key.
// It returns an error if key is missing, repeated or empty.
func queryValue(query url.Values, key string) (string, error) {
	values := query[key]
	if got, want := len(values), 1; got != want {
		if got == 0 {
			return "", fmt.Errorf("missing %s query parameter", key)
		}
		return "", fmt.Errorf("multiple %s query parameters", key)
	}
	if values[0] == "" {
		return "", fmt.Errorf("empty %s query parameter", key)
	}
	return values[0], nil
}

func requestID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(requestIDKey{}).(uuid.UUID)
	return id
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
