package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/legalquote/internal/estimate"
	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/quotedoc"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

const (
	CodeValidation       = "validation"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeConfiguration    = "configuration"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"

	maxBodyBytes = 64 << 10
)

type Assembler interface {
	Assemble(ctx context.Context, req intake.Request, catalog *ratecard.Catalog, rates *ratecard.RateTable) (estimate.Result, error)
}

type Options struct {
	Assembler Assembler
	Catalog   *ratecard.Catalog
	Rates     *ratecard.RateTable
	// PDF is optional; without it the pdf report format answers 503.
	PDF    quotedoc.PDFRenderer
	Logger *zap.Logger
}

type Server struct {
	assembler Assembler
	catalog   *ratecard.Catalog
	rates     *ratecard.RateTable
	pdf       quotedoc.PDFRenderer
	logger    *zap.Logger
}

func NewServer(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		assembler: opts.Assembler,
		catalog:   opts.Catalog,
		rates:     opts.Rates,
		pdf:       opts.PDF,
		logger:    logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/catalog", s.handleCatalog)
	mux.HandleFunc("/v1/estimates", s.handleEstimates)
	mux.HandleFunc("/v1/estimates/report", s.handleReport)
	return s.logRequests(mux)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": apiError{Code: code, Message: message},
	})
}

func (s *Server) writeEstimateError(w http.ResponseWriter, err error) {
	var ee *estimate.Error
	if errors.As(err, &ee) {
		switch ee.Code {
		case estimate.CodeValidation:
			writeError(w, http.StatusBadRequest, CodeValidation, ee.Message)
		default:
			// Configuration details stay in the log.
			writeError(w, http.StatusInternalServerError, CodeConfiguration, "pricing is not configured correctly")
		}
		return
	}
	s.logger.Error("unexpected estimate failure", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, fmt.Sprintf("%s only", method))
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"catalog_services": s.catalog.Len(),
	})
}

type catalogService struct {
	Name  string         `json:"name"`
	Hours map[string]any `json:"hours"`
}

type catalogDomain struct {
	Name     string           `json:"name"`
	Services []catalogService `json:"services"`
}

type clientTypeView struct {
	Code  intake.ClientType `json:"code"`
	Label string            `json:"label"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	domains := []catalogDomain{}
	for _, d := range s.catalog.Domains() {
		cd := catalogDomain{Name: d.Name, Services: []catalogService{}}
		for _, svc := range d.Services {
			cd.Services = append(cd.Services, catalogService{
				Name:  svc.Name,
				Hours: map[string]any{"min": json.Number(svc.Hours.Min.String()), "max": json.Number(svc.Hours.Max.String())},
			})
		}
		domains = append(domains, cd)
	}
	clients := []clientTypeView{}
	for _, ct := range intake.ClientTypes() {
		clients = append(clients, clientTypeView{Code: ct, Label: ct.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"currency":     s.rates.Currency(),
		"domains":      domains,
		"client_types": clients,
		"urgencies":    []intake.Urgency{intake.UrgencyNormal, intake.UrgencyUrgent},
	})
}

func (s *Server) handleEstimates(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	res, ok := s.assemble(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, estimate.BuildResponse(res))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" && format != "pdf" {
		writeError(w, http.StatusBadRequest, CodeValidation, "format must be markdown, html or pdf")
		return
	}
	if format == "pdf" && s.pdf == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "pdf rendering is not available")
		return
	}

	res, ok := s.assemble(w, r)
	if !ok {
		return
	}
	report := estimate.BuildMarkdown(res)
	if format == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, report)
		return
	}

	doc, err := quotedoc.HTML(report, reportMeta(res))
	if err != nil {
		s.logger.Error("report html failed", zap.String("request_id", res.RequestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "report rendering failed")
		return
	}
	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, doc)
		return
	}

	pdf, err := s.pdf.Render(r.Context(), doc)
	if err != nil {
		s.logger.Error("report pdf failed", zap.String("request_id", res.RequestID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "report rendering failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "quote-"+res.RequestID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) assemble(w http.ResponseWriter, r *http.Request) (estimate.Result, bool) {
	var req intake.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body: "+err.Error())
		return estimate.Result{}, false
	}
	res, err := s.assembler.Assemble(r.Context(), req, s.catalog, s.rates)
	if err != nil {
		s.writeEstimateError(w, err)
		return estimate.Result{}, false
	}
	return res, true
}

func reportMeta(res estimate.Result) quotedoc.Meta {
	meta := quotedoc.Meta{
		Title:     "Legal Quote " + res.RequestID,
		Reference: res.RequestID,
		Date:      res.CreatedAt,
	}
	if res.Classification.Confidence != nil {
		meta.Badges = append(meta.Badges, fmt.Sprintf("Confidence: %d%%", *res.Classification.Confidence))
	}
	if res.Request.Urgency.Elevated() {
		meta.Badges = append(meta.Badges, res.Request.Urgency.Label())
	}
	return meta
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(started)))
	})
}
