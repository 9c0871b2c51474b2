package web

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/stdgap"
	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/ai/mock"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const robotsStandard = "# Scope\nThis standard applies to collaborative robots.\n\n" +
	"# Emergency stop\nRobots shall stop within 500 ms of an emergency stop signal.\n\n" +
	"# Marking\nEach robot shall carry a rating plate.\n"

const oneGap = `{"gaps": [{"title": "Sensor spoofing", "description": "No spoofing tests", "risk_level": "High"}]}`

const oneRecommendation = `{"recommendations": [{
	"title": "Add spoofing tests",
	"proposed_text": "Sensors shall be tested against spoofed inputs.",
	"rationale": "Spoofing defeats perception.",
	"implementation_difficulty": "Easy"
}]}`

func newTestServer(t *testing.T, responses []string, opts ...Option) (*Server, *stdgap.Workspace) {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)

	provider := mock.NewMockProviderWithServices(&mock.MockEmbedder{Dimension: 16}, mock.NewMockCompleter(responses...))
	ws, err := stdgap.Open("", stdgap.WithStore(store), stdgap.WithProvider(provider),
		stdgap.WithBatchOptions(ingestion.WithRetryPolicy(ai.RetryPolicy{
			MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		})))
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return NewServer(ws, opts...), ws
}

func do(t *testing.T, s *Server, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename, content, format string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if format != "" {
		require.NoError(t, mw.WriteField("format", format))
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func uploadFile(t *testing.T, s *Server, target, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content, "")
	return do(t, s, http.MethodPost, target, body, contentType)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, codec.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func postJSON(t *testing.T, s *Server, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodPost, target, []byte(body), "application/json")
}

func postForm(t *testing.T, s *Server, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, http.MethodPost, target, []byte(form.Encode()), "application/x-www-form-urlencoded")
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestAPI_UploadAndBrowse(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := uploadFile(t, s, "/api/documents", "robots.md", robotsStandard)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	uploaded := decode[uploadResponse](t, rec)
	assert.Equal(t, 3, uploaded.Sections)
	assert.Equal(t, 3, uploaded.Embedded)
	assert.Equal(t, core.StatusEmbedded, uploaded.Document.Status)
	docID := uploaded.Document.Id

	rec = do(t, s, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]*core.Document](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "robots.md", docs[0].Filename)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/documents/%d/sections", docID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sections := decode[[]*core.Section](t, rec)
	require.Len(t, sections, 3)
	assert.Equal(t, "Emergency stop", sections[1].Label)

	rec = do(t, s, http.MethodGet, "/api/search?k=2&q="+url.QueryEscape("emergency stop signal"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]*core.SearchResult](t, rec)
	assert.Len(t, results, 2)

	rec = do(t, s, http.MethodGet, "/api/documents/99", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "not found")
}

func TestAPI_UploadErrors(t *testing.T) {
	s, _ := newTestServer(t, nil, WithMaxUploadBytes(1024))

	rec := uploadFile(t, s, "/api/documents", "robots.md", robotsStandard)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name     string
		filename string
		content  string
		status   int
	}{
		{"duplicate content", "copy.md", robotsStandard, http.StatusConflict},
		{"unsupported format", "robots.exe", "binary", http.StatusBadRequest},
		{"whitespace only", "blank.txt", "  \n\t ", http.StatusUnprocessableEntity},
		{"body too large", "big.txt", strings.Repeat("a", 4096), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := uploadFile(t, s, "/api/documents", tt.filename, tt.content)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("missing file part", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("format", "txt"))
		require.NoError(t, mw.Close())
		rec := do(t, s, http.MethodPost, "/api/documents", buf.Bytes(), mw.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_SearchErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, target := range []string{"/api/search?q=", "/api/search?q=x&k=abc", "/api/search?q=x&k=0", "/api/search?q=x&document=zero"} {
		rec := do(t, s, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAPI_AnalyzeAndRecommend(t *testing.T) {
	s, _ := newTestServer(t, []string{oneGap, oneRecommendation})
	require.Equal(t, http.StatusCreated, uploadFile(t, s, "/api/documents", "robots.md", robotsStandard).Code)

	rec := postJSON(t, s, "/api/analyses", `{"research_text": "Lidar can be spoofed.", "domain": "Autonomous Vehicles"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	analyzed := decode[analysisResponse](t, rec)
	require.Len(t, analyzed.Gaps, 1)
	assert.NotEmpty(t, analyzed.AnalysisId)
	assert.Len(t, analyzed.Context, 3)
	gapID := analyzed.Gaps[0].Id
	require.NotZero(t, gapID)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/api/gaps/%d/recommendations", gapID), nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	recommended := decode[recommendResponse](t, rec)
	require.Len(t, recommended.Recommendations, 1)
	assert.Equal(t, core.DifficultyEasy, recommended.Recommendations[0].Difficulty)

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/gaps/%d", gapID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[gapResponse](t, rec)
	assert.Equal(t, "Sensor spoofing", detail.Gap.Title)
	assert.Len(t, detail.Recommendations, 1)

	rec = do(t, s, http.MethodGet, "/api/dashboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[stdgap.Dashboard](t, rec)
	assert.Equal(t, 1, dashboard.Gaps)
	assert.Equal(t, 1, dashboard.Recommendations)
	assert.Equal(t, 1, dashboard.GapsByRisk[core.RiskHigh])

	rec = do(t, s, http.MethodDelete, "/api/gaps", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/gaps", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodGet, fmt.Sprintf("/api/gaps/%d", gapID), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name      string
		responses []string
		body      string
		status    int
	}{
		{"malformed body", nil, `{"research_text": `, http.StatusBadRequest},
		{"empty research", nil, `{"research_text": "  ", "domain": "AI Systems"}`, http.StatusBadRequest},
		{"missing domain", nil, `{"research_text": "Lidar can be spoofed."}`, http.StatusBadRequest},
		{"unparseable completion", []string{"not json at all"}, `{"research_text": "Lidar can be spoofed.", "domain": "AI Systems"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.responses)
			rec := postJSON(t, s, "/api/analyses", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_BadIDs(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{"/api/documents/abc", "/api/documents/0", "/api/gaps/-1", "/api/gaps/x/recommendations"} {
		rec := do(t, s, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestAPI_Domains(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/domains", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	domains := decode[[]string](t, rec)
	assert.Contains(t, domains, "Medical Devices")
}

func TestAPI_Pending(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/pending", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]*stdgap.Pending](t, rec))

	rec = do(t, s, http.MethodPost, "/api/pending/save", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[map[string]int](t, rec)
	assert.Equal(t, 0, saved["saved"])
	assert.Equal(t, 0, saved["remaining"])
}

func TestPages(t *testing.T) {
	s, ws := newTestServer(t, []string{oneGap, oneRecommendation})

	rec := do(t, s, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "No gaps identified yet.")

	rec = uploadFile(t, s, "/documents", "robots.md", robotsStandard)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Stored robots.md: 3 sections, 3 embedded.")

	rec = do(t, s, http.MethodGet, "/documents?q="+url.QueryEscape("rating plate"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Marking")

	docs, err := ws.Documents(context.Background())
	require.NoError(t, err)
	rec = do(t, s, http.MethodGet, fmt.Sprintf("/documents/%d", docs[0].Id), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Emergency stop")

	rec = postForm(t, s, "/analysis", url.Values{
		"domain":        {"Other"},
		"other_domain":  {"Warehouse Robots"},
		"research_text": {"Lidar can be spoofed."},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Identified 1 gaps.")
	assert.Contains(t, rec.Body.String(), "Warehouse Robots")

	gaps, err := ws.Gaps(context.Background())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "Warehouse Robots", gaps[0].Domain)

	rec = do(t, s, http.MethodPost, fmt.Sprintf("/gaps/%d/recommendations", gaps[0].Id), nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Add spoofing tests")

	rec = do(t, s, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sensor spoofing")

	rec = postForm(t, s, "/analysis/clear", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No gaps yet.")
}

func TestPages_Errors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/documents/99", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")

	rec = do(t, s, http.MethodGet, "/gaps/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(t, s, "/analysis", url.Values{"domain": {"AI Systems"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="error"`)
}
