package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/stdgap"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
)

func (s *Server) routeAPI(r chi.Router) {
	r.Get("/documents", s.apiListDocuments)
	r.Post("/documents", s.apiUpload)
	r.Get("/documents/{id}", s.apiGetDocument)
	r.Get("/documents/{id}/sections", s.apiListSections)
	r.Get("/search", s.apiSearch)
	r.Post("/analyses", s.apiAnalyze)
	r.Get("/gaps", s.apiListGaps)
	r.Delete("/gaps", s.apiClearGaps)
	r.Get("/gaps/{id}", s.apiGetGap)
	r.Get("/gaps/{id}/recommendations", s.apiListRecommendations)
	r.Post("/gaps/{id}/recommendations", s.apiRecommend)
	r.Get("/dashboard", s.apiDashboard)
	r.Get("/network", s.apiNetwork)
	r.Get("/domains", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, analysis.Domains)
	})
	r.Get("/pending", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.ws.Pending())
	})
	r.Post("/pending/save", s.apiSavePending)
}

type uploadResponse struct {
	Document *core.Document `json:"document"`
	Sections int            `json:"sections"`
	Embedded int            `json:"embedded"`
	Skipped  int            `json:"skipped"`
	Error    string         `json:"error,omitempty"`
}

type analysisRequest struct {
	ResearchText string `json:"research_text"`
	Domain       string `json:"domain"`
}

type analysisResponse struct {
	AnalysisId string               `json:"analysis_id"`
	Gaps       []*core.Gap          `json:"gaps"`
	Context    []*core.SearchResult `json:"context"`
	Error      string               `json:"error,omitempty"`
}

type gapResponse struct {
	Gap             *core.Gap              `json:"gap"`
	Recommendations []*core.Recommendation `json:"recommendations"`
}

type recommendResponse struct {
	Recommendations []*core.Recommendation `json:"recommendations"`
	Error           string                 `json:"error,omitempty"`
}

func (s *Server) apiListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ws.Documents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

// apiUpload stores an uploaded file. A document that was stored but only
// partly embedded is answered with 202 and the batch error.
func (s *Server) apiUpload(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.ws.Upload(r.Context(), upload)
	if report == nil {
		writeError(w, err)
		return
	}

	resp := uploadResponse{
		Document: report.Document,
		Sections: len(report.Sections),
		Embedded: report.Embedded,
		Skipped:  report.Skipped,
	}
	status := http.StatusCreated
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (s *Server) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	doc, _, err := s.ws.Document(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) apiListSections(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	_, sections, err := s.ws.Document(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sections))
}

func (s *Server) apiSearch(w http.ResponseWriter, r *http.Request) {
	opts, err := s.searchOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := s.ws.Search(r.Context(), r.URL.Query().Get("q"), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

func (s *Server) apiAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := codec.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %w", errBadBody, err))
		return
	}
	result, err := s.ws.Analyze(r.Context(), analysis.Request{ResearchText: req.ResearchText, Domain: req.Domain})
	if result == nil {
		writeError(w, err)
		return
	}

	resp := analysisResponse{
		AnalysisId: result.AnalysisId,
		Gaps:       nonNil(result.Gaps),
		Context:    nonNil(result.Context),
	}
	status := http.StatusCreated
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) apiListGaps(w http.ResponseWriter, r *http.Request) {
	gaps, err := s.ws.Gaps(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(gaps))
}

func (s *Server) apiClearGaps(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.ClearGaps(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiGetGap(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	gap, recs, err := s.ws.Gap(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gapResponse{Gap: gap, Recommendations: nonNil(recs)})
}

func (s *Server) apiListRecommendations(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	_, recs, err := s.ws.Gap(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func (s *Server) apiRecommend(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.ws.Recommend(r.Context(), id)
	if err != nil && !errors.Is(err, stdgap.ErrNotSaved) {
		writeError(w, err)
		return
	}

	resp := recommendResponse{Recommendations: nonNil(recs)}
	status := http.StatusCreated
	if err != nil {
		resp.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) apiDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.ws.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) apiNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.ws.Network(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, network)
}

func (s *Server) apiSavePending(w http.ResponseWriter, r *http.Request) {
	saved, err := s.ws.RetryPending(r.Context())
	resp := map[string]any{
		"saved":     saved,
		"remaining": len(s.ws.Pending()),
	}
	status := http.StatusOK
	if err != nil {
		resp["error"] = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// readUpload reads the "file" part of a multipart form. An optional
// "format" field overrides detection from the file name.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ingestion.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ingestion.Upload{}, err
		}
		return ingestion.Upload{}, fmt.Errorf("%w: %w", errBadBody, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return ingestion.Upload{}, errMissingFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingestion.Upload{}, err
	}
	return ingestion.Upload{
		Filename: header.Filename,
		Format:   core.Format(strings.ToLower(strings.TrimSpace(r.FormValue("format")))),
		Data:     data,
	}, nil
}

// searchOptions reads the k and document query parameters.
func (s *Server) searchOptions(r *http.Request) (search.Options, error) {
	opts := search.Options{K: s.searchK}
	q := r.URL.Query()
	if v := q.Get("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 1 {
			return opts, fmt.Errorf("%w: k=%q", search.ErrInvalidK, v)
		}
		opts.K = k
	}
	if v := q.Get("document"); v != "" {
		id, err := parseID(v)
		if err != nil {
			return opts, err
		}
		opts.DocumentID = id
	}
	return opts, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
