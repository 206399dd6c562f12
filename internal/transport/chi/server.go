// Package chi exposes the gateway HTTP API: media batch upload, search,
// search history, voice entry creation, health, and metrics.
package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/domain/entry"
	"github.com/keepsakehq/keepsake/internal/domain/media"
	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
	entryuc "github.com/keepsakehq/keepsake/internal/usecase/entry"
	healthuc "github.com/keepsakehq/keepsake/internal/usecase/health"
	historyuc "github.com/keepsakehq/keepsake/internal/usecase/history"
	searchuc "github.com/keepsakehq/keepsake/internal/usecase/search"
	uploaduc "github.com/keepsakehq/keepsake/internal/usecase/upload"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing.
const maxMultipartMemory = 32 << 20

// sniffLen is how many leading bytes feed content-type detection.
const sniffLen = 3072

type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeUnauthorized     errorCode = "unauthorized"
	codeNotFound         errorCode = "not_found"
	codeBatchInProgress  errorCode = "batch_in_progress"
	codeSearchFailed     errorCode = "search_unavailable"
	codeBackendFailed    errorCode = "backend_unavailable"
	codeTranscription    errorCode = "transcription_failed"
	codeInternalError    errorCode = "internal_error"
)

// ErrorResponse is the API error body.
type ErrorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the gateway handlers.
type Server struct {
	uploads       *uploaduc.Service
	search        *searchuc.Service
	history       *historyuc.Service
	voice         *entryuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	defaultLimit  int
	errorHandlers []errorHandler
}

// NewServer creates the gateway HTTP server.
func NewServer(
	uploads *uploaduc.Service,
	search *searchuc.Service,
	history *historyuc.Service,
	voice *entryuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		uploads: uploads,
		search:  search,
		history: history,
		voice:   voice,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrBatchInProgress, http.StatusConflict, codeBatchInProgress),
		sentinelHandler(domain.ErrTooManyFiles, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidFilter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidEntry, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEntryNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusBadGateway, codeSearchFailed),
		sentinelHandler(domain.ErrTranscription, http.StatusBadGateway, codeTranscription),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, codeBackendFailed),
	}
	return s
}

// WithDefaultLimit sets the result count used when a search request does
// not ask for one.
func (s *Server) WithDefaultLimit(n int) *Server {
	if n > 0 {
		s.defaultLimit = n
	}
	return s
}

// Register mounts the gateway routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/v1/entries/{entryID}/media", s.UploadMedia)
	r.Post("/api/v1/entries/voice", s.CreateVoiceEntry)
	r.Post("/api/v1/search", s.Search)
	r.Get("/api/v1/search/history", s.SearchHistory)
	r.Delete("/api/v1/search/history", s.ClearSearchHistory)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// taskResponse is the per-file outcome in the upload response.
type taskResponse struct {
	Name       string `json:"name"`
	MimeType   string `json:"mimeType"`
	Size       int64  `json:"size"`
	Progress   int    `json:"progress"`
	Status     string `json:"status"`
	ObjectPath string `json:"objectPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

type rejectedResponse struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type uploadResponse struct {
	Tasks    []taskResponse          `json:"tasks"`
	Rejected []rejectedResponse      `json:"rejected,omitempty"`
	Paths    []string                `json:"paths"`
	Media    []domupload.StoredMedia `json:"media"`
}

// UploadMedia handles POST /api/v1/entries/{entryID}/media.
func (s *Server) UploadMedia(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "no files in request")
		return
	}

	files := make([]domupload.File, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("open part %s: %v", fh.Filename, err))
			return
		}
		opened = append(opened, f)

		mimeType, reader, err := sniffMIME(fh.Header.Get("Content-Type"), f)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("read part %s: %v", fh.Filename, err))
			return
		}
		files = append(files, domupload.File{
			Name:    fh.Filename,
			MIME:    mimeType,
			Size:    fh.Size,
			Content: reader,
		})
	}

	batch, err := s.uploads.Run(r.Context(), entryID, files)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := uploadResponse{
		Tasks: make([]taskResponse, len(batch.Tasks)),
		Paths: batch.Paths,
		Media: batch.Media,
	}
	if resp.Paths == nil {
		resp.Paths = []string{}
	}
	if resp.Media == nil {
		resp.Media = []domupload.StoredMedia{}
	}
	for i, t := range batch.Tasks {
		resp.Tasks[i] = taskResponse{
			Name:       t.Name(),
			MimeType:   t.MIME(),
			Size:       t.Size(),
			Progress:   t.Progress(),
			Status:     string(t.Status()),
			ObjectPath: t.Path(),
			Error:      t.ErrMessage(),
		}
	}
	for _, rej := range batch.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedResponse{Name: rej.Name, Reason: rej.Reason})
	}

	writeJSON(w, http.StatusOK, resp)
}

// sniffMIME trusts the declared content type unless it is missing or
// generic, in which case the leading bytes decide.
func sniffMIME(declared string, f io.Reader) (string, io.Reader, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, f, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	return media.Detect(head), io.MultiReader(bytes.NewReader(head), f), nil
}

// searchRequest is the gateway search payload.
type searchRequest struct {
	Query   string `json:"query"`
	Mode    string `json:"mode"`
	Limit   int    `json:"limit"`
	Filters struct {
		Tags      []string `json:"tags"`
		People    []string `json:"people"`
		DateRange struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"dateRange"`
		FeedType string `json:"feedType"`
	} `json:"filters"`
}

type entryResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Transcript string   `json:"transcript,omitempty"`
	AudioPath  string   `json:"audioPath,omitempty"`
	MediaPaths []string `json:"mediaPaths,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	People     []string `json:"people,omitempty"`
	Privacy    string   `json:"privacy"`
	CreatedAt  int64    `json:"createdAt"`
}

func entryToResponse(e entry.Entry) entryResponse {
	return entryResponse{
		ID:         e.ID(),
		Title:      e.Title(),
		Content:    e.Content(),
		Transcript: e.Transcript(),
		AudioPath:  e.AudioPath(),
		MediaPaths: e.MediaPaths(),
		Tags:       e.Tags(),
		People:     e.People(),
		Privacy:    string(e.Privacy()),
		CreatedAt:  e.CreatedAt(),
	}
}

type hydratedResponse struct {
	EntryID     string        `json:"entryId"`
	Similarity  float64       `json:"similarity"`
	Snippet     string        `json:"snippet"`
	MatchReason string        `json:"matchReason,omitempty"`
	Entry       entryResponse `json:"entry"`
}

type answerResponse struct {
	Text            string   `json:"text"`
	RelevantEntries []string `json:"relevantEntries,omitempty"`
	Confidence      float64  `json:"confidence"`
}

type searchResponse struct {
	Query         string             `json:"query"`
	Entries       []hydratedResponse `json:"entries"`
	Answer        *answerResponse    `json:"answer,omitempty"`
	TotalResults  int                `json:"totalResults"`
	ExecutionTime float64            `json:"executionTime"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	q, err := s.queryFromRequest(req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilter) {
			s.handleDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchToResponse(resp))
}

func (s *Server) queryFromRequest(req searchRequest) (query.Query, error) {
	dates, err := dateRangeFromRequest(req.Filters.DateRange.From, req.Filters.DateRange.To)
	if err != nil {
		return query.Query{}, err
	}

	filters, err := query.NewFilters(req.Filters.Tags, req.Filters.People, dates, req.Filters.FeedType)
	if err != nil {
		return query.Query{}, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	return query.New(req.Query, query.Mode(req.Mode), limit, filters)
}

func dateRangeFromRequest(from, to string) (query.DateRange, error) {
	var dr query.DateRange
	var err error
	if from != "" {
		if dr.From, err = time.Parse(time.RFC3339, from); err != nil {
			return query.DateRange{}, fmt.Errorf("invalid dateRange.from: %w", err)
		}
	}
	if to != "" {
		if dr.To, err = time.Parse(time.RFC3339, to); err != nil {
			return query.DateRange{}, fmt.Errorf("invalid dateRange.to: %w", err)
		}
	}
	return dr, nil
}

func searchToResponse(resp *result.Response) searchResponse {
	out := searchResponse{
		Query:         resp.Query,
		Entries:       make([]hydratedResponse, len(resp.Entries)),
		TotalResults:  resp.TotalResults,
		ExecutionTime: resp.ExecutionTime,
	}
	for i, h := range resp.Entries {
		out.Entries[i] = hydratedResponse{
			EntryID:     h.Result.EntryID(),
			Similarity:  h.Result.Similarity(),
			Snippet:     h.Result.Snippet(),
			MatchReason: h.Result.MatchReason(),
			Entry:       entryToResponse(h.Entry),
		}
	}
	if resp.Answer != nil {
		out.Answer = &answerResponse{
			Text:            resp.Answer.Text,
			RelevantEntries: resp.Answer.RelevantEntries,
			Confidence:      resp.Answer.Confidence,
		}
	}
	return out
}

// SearchHistory handles GET /api/v1/search/history.
func (s *Server) SearchHistory(w http.ResponseWriter, r *http.Request) {
	queries, err := s.history.Recent(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if queries == nil {
		queries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"queries": queries})
}

// ClearSearchHistory handles DELETE /api/v1/search/history.
func (s *Server) ClearSearchHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context(), UserFromContext(r.Context())); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateVoiceEntry handles POST /api/v1/entries/voice.
func (s *Server) CreateVoiceEntry(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, fh, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "audio file is required")
		return
	}
	defer func() { _ = f.Close() }()

	req := entryuc.VoiceRequest{
		Audio: domupload.File{
			Name:    fh.Filename,
			MIME:    fh.Header.Get("Content-Type"),
			Size:    fh.Size,
			Content: f,
		},
		Title:   r.FormValue("title"),
		Tags:    splitList(r.FormValue("tags")),
		People:  splitList(r.FormValue("people")),
		Privacy: r.FormValue("privacy"),
	}

	e, err := s.voice.CreateVoice(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/entries/"+e.ID())
	writeJSON(w, http.StatusCreated, entryToResponse(e))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrBatchInProgress,
		domain.ErrTooManyFiles,
		domain.ErrFileTooLarge,
		domain.ErrUnsupportedMediaType,
		domain.ErrInvalidFilter,
		domain.ErrInvalidEntry,
		domain.ErrEntryNotFound,
		domain.ErrSearchUnavailable,
		domain.ErrTranscription,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("domain error", zap.Error(err), zap.String("path", r.URL.Path))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
