package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/keepsakehq/keepsake/internal/domain/entry"
	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
	"github.com/keepsakehq/keepsake/internal/kv"
	entryuc "github.com/keepsakehq/keepsake/internal/usecase/entry"
	healthuc "github.com/keepsakehq/keepsake/internal/usecase/health"
	historyuc "github.com/keepsakehq/keepsake/internal/usecase/history"
	searchuc "github.com/keepsakehq/keepsake/internal/usecase/search"
	uploaduc "github.com/keepsakehq/keepsake/internal/usecase/upload"
)

// --- Collaborator fakes ---

type stubIssuer struct{ err error }

func (s *stubIssuer) IssueDestination(_ context.Context, entryID string) (uploaduc.Destination, error) {
	if s.err != nil {
		return uploaduc.Destination{}, s.err
	}
	return uploaduc.Destination{
		UploadURL:  "https://store.example/signed",
		ObjectPath: "entries/" + entryID + "/media/obj",
	}, nil
}

type stubTransferrer struct{}

func (s *stubTransferrer) Transfer(_ context.Context, _ uploaduc.Destination, f domupload.File, progress func(int)) error {
	_, _ = io.Copy(io.Discard, f.Content)
	progress(100)
	return nil
}

type stubFinalizer struct{}

func (s *stubFinalizer) FinalizeMedia(_ context.Context, _ string, m domupload.StoredMedia) (domupload.StoredMedia, error) {
	return m, nil
}

type stubGateway struct {
	resp searchuc.GatewayResponse
	err  error
}

func (s *stubGateway) Search(_ context.Context, _ query.Query) (searchuc.GatewayResponse, error) {
	return s.resp, s.err
}

type stubFetcher struct{ entries []entry.Entry }

func (s *stubFetcher) BulkFetch(_ context.Context, _ []string) ([]entry.Entry, error) {
	return s.entries, nil
}

type memStore struct {
	lists map[string][]string
}

func newMemStore() *memStore { return &memStore{lists: make(map[string][]string)} }

func (m *memStore) Ping(context.Context) error                        { return nil }
func (m *memStore) WaitForReady(context.Context, time.Duration) error { return nil }
func (m *memStore) Close()                                            {}
func (m *memStore) Get(context.Context, string) ([]byte, error)       { return nil, kv.ErrKeyNotFound }
func (m *memStore) Set(context.Context, string, []byte) error         { return nil }
func (m *memStore) SetWithTTL(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (m *memStore) Del(_ context.Context, key string) error {
	delete(m.lists, key)
	return nil
}
func (m *memStore) ListPush(_ context.Context, key, value string, maxLen int, _ time.Duration) error {
	list := append([]string{value}, m.lists[key]...)
	if len(list) > maxLen {
		list = list[:maxLen]
	}
	m.lists[key] = list
	return nil
}
func (m *memStore) ListRange(_ context.Context, key string, count int) ([]string, error) {
	list := m.lists[key]
	if len(list) > count {
		list = list[:count]
	}
	return list, nil
}
func (m *memStore) ListRemove(_ context.Context, key, value string) error {
	out := m.lists[key][:0]
	for _, v := range m.lists[key] {
		if v != value {
			out = append(out, v)
		}
	}
	m.lists[key] = out
	return nil
}

type stubTranscriber struct{ text string }

func (s *stubTranscriber) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, audio)
	return s.text, nil
}

type stubSummarizer struct{ title string }

func (s *stubSummarizer) Summarize(context.Context, string) (string, error) { return s.title, nil }

type stubAudioStore struct{}

func (s *stubAudioStore) StoreAudio(_ context.Context, f domupload.File) (string, error) {
	_, _ = io.Copy(io.Discard, f.Content)
	return "audio/rec.webm", nil
}

type stubWriter struct{}

func (s *stubWriter) CreateEntry(_ context.Context, e entry.Entry) (entry.Entry, error) {
	return e, nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type testDeps struct {
	gateway *stubGateway
	fetcher *stubFetcher
	store   *memStore
	pinger  *stubPinger
	uploads *uploaduc.Service
}

func newTestRouter(t *testing.T, deps *testDeps) http.Handler {
	t.Helper()

	if deps.gateway == nil {
		deps.gateway = &stubGateway{}
	}
	if deps.fetcher == nil {
		deps.fetcher = &stubFetcher{}
	}
	if deps.store == nil {
		deps.store = newMemStore()
	}
	if deps.pinger == nil {
		deps.pinger = &stubPinger{}
	}
	if deps.uploads == nil {
		deps.uploads = uploaduc.New(&stubIssuer{}, &stubTransferrer{}, &stubFinalizer{})
	}

	histSvc := historyuc.New(deps.store)
	searchSvc := searchuc.New(deps.gateway, deps.fetcher).WithHistory(NewHistoryRecorder(histSvc))
	voiceSvc := entryuc.New(&stubTranscriber{text: "a voice note"}, &stubSummarizer{title: "Voice note"}, &stubAudioStore{}, &stubWriter{})
	healthSvc := healthuc.New(deps.pinger, nil)

	server := NewServer(deps.uploads, searchSvc, histSvc, voiceSvc, healthSvc, zap.NewNop())
	r := chirouter.NewRouter()
	r.Use(UserMiddleware)
	server.Register(r)
	return r
}

type filePart struct {
	name    string
	mime    string
	content []byte
}

func multipartBody(t *testing.T, files []filePart, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, fp := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, fp.name))
		if fp.mime != "" {
			h.Set("Content-Type", fp.mime)
		}
		fw, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = fw.Write(fp.content)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

// jpegHead carries the JPEG magic so content sniffing recognizes parts
// that declare no type.
var jpegHead = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestUploadMedia(t *testing.T) {
	router := newTestRouter(t, &testDeps{})

	body, contentType := multipartBody(t, []filePart{
		{name: "a.jpg", content: jpegHead},
		{name: "doc.pdf", mime: "application/pdf", content: []byte("%PDF-1.4")},
	}, nil)

	req := httptest.NewRequest("POST", "/api/v1/entries/e1/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Tasks []struct {
			Name     string `json:"name"`
			Status   string `json:"status"`
			Progress int    `json:"progress"`
		} `json:"tasks"`
		Rejected []struct {
			Name string `json:"name"`
		} `json:"rejected"`
		Paths []string `json:"paths"`
		Media []struct {
			Path string `json:"objectPath"`
		} `json:"media"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Tasks) != 1 || resp.Tasks[0].Name != "a.jpg" {
		t.Fatalf("tasks = %+v", resp.Tasks)
	}
	if resp.Tasks[0].Status != "completed" || resp.Tasks[0].Progress != 100 {
		t.Errorf("task = %+v", resp.Tasks[0])
	}
	if len(resp.Rejected) != 1 || resp.Rejected[0].Name != "doc.pdf" {
		t.Errorf("rejected = %+v", resp.Rejected)
	}
	if len(resp.Paths) != 1 || len(resp.Media) != 1 {
		t.Errorf("paths = %v, media = %v", resp.Paths, resp.Media)
	}
}

func TestUploadMedia_TooManyFiles(t *testing.T) {
	uploads := uploaduc.New(&stubIssuer{}, &stubTransferrer{}, &stubFinalizer{}).WithLimits(1, 0)
	router := newTestRouter(t, &testDeps{uploads: uploads})

	body, contentType := multipartBody(t, []filePart{
		{name: "a.jpg", mime: "image/jpeg", content: []byte("x")},
		{name: "b.jpg", mime: "image/jpeg", content: []byte("y")},
	}, nil)

	req := httptest.NewRequest("POST", "/api/v1/entries/e1/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestUploadMedia_NoFiles(t *testing.T) {
	router := newTestRouter(t, &testDeps{})

	body, contentType := multipartBody(t, nil, map[string]string{"unused": "x"})
	req := httptest.NewRequest("POST", "/api/v1/entries/e1/media", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearch(t *testing.T) {
	gateway := &stubGateway{resp: searchuc.GatewayResponse{
		Results: []result.Result{
			result.New("C", 0.9, "snippet c", "", "semantic"),
			result.New("A", 0.8, "snippet a", "", "semantic"),
		},
		TotalResults: 2,
	}}
	fetcher := &stubFetcher{entries: []entry.Entry{
		entry.Reconstruct("A", "a", "ca", "", "", nil, nil, nil, entry.Private, 0),
		entry.Reconstruct("C", "c", "cc", "", "", nil, nil, nil, entry.Private, 0),
	}}
	store := newMemStore()
	router := newTestRouter(t, &testDeps{gateway: gateway, fetcher: fetcher, store: store})

	reqBody := `{"query":"lake","mode":"semantic","limit":10,"filters":{"tags":["hiking"]}}`
	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(reqBody))
	req.Header.Set("X-User-ID", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Entries []struct {
			EntryID string `json:"entryId"`
		} `json:"entries"`
		TotalResults int `json:"totalResults"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].EntryID != "C" || resp.Entries[1].EntryID != "A" {
		t.Errorf("entries = %+v, want ranked order [C A]", resp.Entries)
	}

	// Запрос попал в историю пользователя.
	if queries := store.lists["search:history:u1"]; len(queries) != 1 || queries[0] != "lake" {
		t.Errorf("history = %v", queries)
	}
}

func TestSearch_BackendFailureIsDistinctFromEmpty(t *testing.T) {
	router := newTestRouter(t, &testDeps{gateway: &stubGateway{err: errors.New("upstream down")}})

	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"x"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}

	router = newTestRouter(t, &testDeps{})
	req = httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"x"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("zero results must be 200, got %d", rr.Code)
	}
}

func TestSearch_InvalidRequests(t *testing.T) {
	router := newTestRouter(t, &testDeps{})

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"empty query", `{"query":""}`},
		{"unknown mode", `{"query":"x","mode":"psychic"}`},
		{"bad feed type", `{"query":"x","filters":{"feedType":"secret"}}`},
		{"bad date", `{"query":"x","filters":{"dateRange":{"from":"yesterday"}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestSearchHistoryEndpoints(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(t, &testDeps{store: store})

	// Seed through the search endpoint.
	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(`{"query":"lake"}`))
	req.Header.Set("X-User-ID", "u1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/v1/search/history", http.NoBody)
	req.Header.Set("X-User-ID", "u1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["queries"]) != 1 || resp["queries"][0] != "lake" {
		t.Errorf("queries = %v", resp["queries"])
	}

	req = httptest.NewRequest("DELETE", "/api/v1/search/history", http.NoBody)
	req.Header.Set("X-User-ID", "u1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/search/history", http.NoBody)
	req.Header.Set("X-User-ID", "u1")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp["queries"]) != 0 {
		t.Errorf("queries after clear = %v", resp["queries"])
	}
}

func TestCreateVoiceEntry(t *testing.T) {
	router := newTestRouter(t, &testDeps{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "rec.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("audio-bytes"))
	_ = mw.WriteField("tags", "hiking, lake")
	_ = mw.WriteField("privacy", "shared")
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/entries/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") == "" {
		t.Error("missing Location header")
	}

	var resp struct {
		Title      string   `json:"title"`
		Transcript string   `json:"transcript"`
		Tags       []string `json:"tags"`
		Privacy    string   `json:"privacy"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Title != "Voice note" || resp.Transcript != "a voice note" {
		t.Errorf("entry = %+v", resp)
	}
	if len(resp.Tags) != 2 || resp.Tags[0] != "hiking" {
		t.Errorf("tags = %v", resp.Tags)
	}
	if resp.Privacy != "shared" {
		t.Errorf("privacy = %s", resp.Privacy)
	}
}

func TestCreateVoiceEntry_MissingAudio(t *testing.T) {
	router := newTestRouter(t, &testDeps{})

	body, contentType := multipartBody(t, nil, map[string]string{"title": "x"})
	req := httptest.NewRequest("POST", "/api/v1/entries/voice", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, &testDeps{})
	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}

	router = newTestRouter(t, &testDeps{pinger: &stubPinger{err: errors.New("down")}})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rr.Code)
	}
}
