package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/stdgap"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	byName map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
	"score": func(f float64) string {
		return fmt.Sprintf("%.3f", f)
	},
	"riskClass": func(level core.RiskLevel) string {
		return "risk-" + strings.ToLower(string(level))
	},
	"join": strings.Join,
}

func loadPages() *pages {
	p := &pages{byName: make(map[string]*template.Template)}
	for _, name := range []string{"dashboard", "documents", "document", "analysis", "gap"} {
		p.byName[name] = template.Must(template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return p
}

// page is the data every template receives.
type page struct {
	Title  string
	Active string
	Notice string
	Error  string
	Data   any
}

func (s *Server) render(w http.ResponseWriter, status int, name string, p page) {
	var buf bytes.Buffer
	if err := s.pages.byName[name].Execute(&buf, p); err != nil {
		s.logger.Error("template failed", "page", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) routePages(r chi.Router) {
	r.Get("/", s.dashboardPage)
	r.Post("/pending/save", s.savePending)
	r.Get("/documents", s.documentsPage)
	r.Post("/documents", s.uploadDocument)
	r.Get("/documents/{id}", s.documentPage)
	r.Get("/analysis", s.analysisPage)
	r.Post("/analysis", s.runAnalysis)
	r.Post("/analysis/clear", s.clearGaps)
	r.Get("/gaps/{id}", s.gapPage)
	r.Post("/gaps/{id}/recommendations", s.generateRecommendations)
}

type dashboardData struct {
	Stats   *stdgap.Dashboard
	Network *core.Network
	Pending []*stdgap.Pending
	Names   map[core.ID]string
}

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	s.showDashboard(w, r, http.StatusOK, "", "")
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request, status int, notice, errMsg string) {
	p := page{Title: "Dashboard", Active: "dashboard", Notice: notice, Error: errMsg}
	stats, err := s.ws.Dashboard(r.Context())
	if err != nil {
		p.Error = err.Error()
		s.render(w, statusFor(err), "dashboard", p)
		return
	}
	network, err := s.ws.Network(r.Context())
	if err != nil {
		p.Error = err.Error()
		s.render(w, statusFor(err), "dashboard", p)
		return
	}
	names := make(map[core.ID]string, len(network.Nodes))
	for _, n := range network.Nodes {
		names[n.DocumentId] = n.Filename
	}
	p.Data = dashboardData{Stats: stats, Network: network, Pending: s.ws.Pending(), Names: names}
	s.render(w, status, "dashboard", p)
}

func (s *Server) savePending(w http.ResponseWriter, r *http.Request) {
	saved, err := s.ws.RetryPending(r.Context())
	if err != nil {
		s.showDashboard(w, r, statusFor(err), fmt.Sprintf("Saved %d pending results.", saved), err.Error())
		return
	}
	s.showDashboard(w, r, http.StatusOK, fmt.Sprintf("Saved %d pending results.", saved), "")
}

type documentsData struct {
	Documents []*core.Document
	Query     string
	Searched  bool
	Results   []*core.SearchResult
}

func (s *Server) documentsPage(w http.ResponseWriter, r *http.Request) {
	s.showDocuments(w, r, http.StatusOK, "", "")
}

func (s *Server) showDocuments(w http.ResponseWriter, r *http.Request, status int, notice, errMsg string) {
	p := page{Title: "Documents", Active: "documents", Notice: notice, Error: errMsg}
	data := documentsData{Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	if data.Query != "" {
		opts, err := s.searchOptions(r)
		if err == nil {
			data.Results, err = s.ws.Search(r.Context(), data.Query, opts)
		}
		if err != nil {
			p.Error = err.Error()
			status = statusFor(err)
		}
		data.Searched = err == nil
	}

	docs, err := s.ws.Documents(r.Context())
	if err != nil {
		p.Error = err.Error()
		status = statusFor(err)
	}
	data.Documents = docs
	p.Data = data
	s.render(w, status, "documents", p)
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r)
	if err != nil {
		s.showDocuments(w, r, statusFor(err), "", err.Error())
		return
	}
	report, err := s.ws.Upload(r.Context(), upload)
	switch {
	case report == nil:
		s.showDocuments(w, r, statusFor(err), "", err.Error())
	case err != nil:
		s.showDocuments(w, r, http.StatusAccepted, uploadNotice(report),
			"Some sections could not be embedded; run backfill later. "+err.Error())
	default:
		s.showDocuments(w, r, http.StatusCreated, uploadNotice(report), "")
	}
}

func uploadNotice(report *ingestion.Report) string {
	return fmt.Sprintf("Stored %s: %d sections, %d embedded.",
		report.Document.Filename, len(report.Sections), report.Embedded)
}

type documentData struct {
	Document *core.Document
	Sections []*core.Section
}

func (s *Server) documentPage(w http.ResponseWriter, r *http.Request) {
	p := page{Title: "Document", Active: "documents"}
	id, err := parseID(chi.URLParam(r, "id"))
	if err == nil {
		var data documentData
		data.Document, data.Sections, err = s.ws.Document(r.Context(), id)
		p.Data = data
	}
	if err != nil {
		p.Data = documentData{}
		p.Error = err.Error()
		s.render(w, statusFor(err), "document", p)
		return
	}
	s.render(w, http.StatusOK, "document", p)
}

type analysisData struct {
	Domains  []string
	Domain   string
	Research string
	Result   *analysis.Result
	Gaps     []*core.Gap
}

func (s *Server) analysisPage(w http.ResponseWriter, r *http.Request) {
	s.showAnalysis(w, r, http.StatusOK, page{}, analysisData{})
}

func (s *Server) showAnalysis(w http.ResponseWriter, r *http.Request, status int, p page, data analysisData) {
	p.Title, p.Active = "Gap analysis", "analysis"
	data.Domains = analysis.Domains
	gaps, err := s.ws.Gaps(r.Context())
	if err != nil {
		p.Error = err.Error()
		status = statusFor(err)
	}
	data.Gaps = gaps
	p.Data = data
	s.render(w, status, "analysis", p)
}

func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	data := analysisData{
		Domain:   strings.TrimSpace(r.FormValue("domain")),
		Research: r.FormValue("research_text"),
	}
	if other := strings.TrimSpace(r.FormValue("other_domain")); data.Domain == "Other" && other != "" {
		data.Domain = other
	}

	result, err := s.ws.Analyze(r.Context(), analysis.Request{ResearchText: data.Research, Domain: data.Domain})
	data.Result = result
	switch {
	case err != nil && errors.Is(err, stdgap.ErrNotSaved):
		s.showAnalysis(w, r, statusFor(err), page{Error: err.Error() + ". Save it from the dashboard once storage recovers."}, data)
	case err != nil:
		s.showAnalysis(w, r, statusFor(err), page{Error: err.Error()}, data)
	default:
		s.showAnalysis(w, r, http.StatusCreated, page{Notice: fmt.Sprintf("Identified %d gaps.", len(result.Gaps))}, data)
	}
}

func (s *Server) clearGaps(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.ClearGaps(r.Context()); err != nil {
		s.showAnalysis(w, r, statusFor(err), page{Error: err.Error()}, analysisData{})
		return
	}
	s.showAnalysis(w, r, http.StatusOK, page{Notice: "All gaps and recommendations cleared."}, analysisData{})
}

type gapData struct {
	Gap             *core.Gap
	Recommendations []*core.Recommendation
}

func (s *Server) gapPage(w http.ResponseWriter, r *http.Request) {
	s.showGap(w, r, http.StatusOK, page{})
}

func (s *Server) showGap(w http.ResponseWriter, r *http.Request, status int, p page) {
	p.Title, p.Active = "Gap", "analysis"
	id, err := parseID(chi.URLParam(r, "id"))
	var data gapData
	if err == nil {
		data.Gap, data.Recommendations, err = s.ws.Gap(r.Context(), id)
	}
	p.Data = data
	if err != nil {
		p.Error = err.Error()
		s.render(w, statusFor(err), "gap", p)
		return
	}
	s.render(w, status, "gap", p)
}

func (s *Server) generateRecommendations(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err == nil {
		var recs []*core.Recommendation
		recs, err = s.ws.Recommend(r.Context(), id)
		if err == nil {
			s.showGap(w, r, http.StatusCreated, page{Notice: fmt.Sprintf("Generated %d recommendations.", len(recs))})
			return
		}
	}
	s.showGap(w, r, statusFor(err), page{Error: err.Error()})
}

