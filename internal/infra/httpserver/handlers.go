package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appanalysis "github.com/verifai/verifai/internal/application/analysis"
	appdocs "github.com/verifai/verifai/internal/application/documents"
	appreports "github.com/verifai/verifai/internal/application/reports"
	analysisdomain "github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/audit"
	docsdomain "github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
	"github.com/verifai/verifai/internal/middleware"
	"github.com/verifai/verifai/internal/security"
)

// Hard ceiling on request bodies, above the largest plan limit. Plan-level
// size checks happen in the upload service.
const maxUploadBytes = 512 << 20

func requireUser(req *http.Request) (*users.User, error) {
	u, ok := middleware.UserFromContext(req.Context())
	if !ok {
		return nil, &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	}
	return u, nil
}

func requestInfo(req *http.Request) audit.RequestInfo {
	return audit.RequestInfo{
		IPAddress: security.ClientIP(req),
		UserAgent: req.UserAgent(),
	}
}

// POST /api/documents
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	user, err := requireUser(req)
	if err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxUploadBytes)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return &apiError{Status: http.StatusBadRequest, Code: "expected_multipart_form_data",
			Message: "Request must be multipart/form-data with a file field"}
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Code: "file_missing",
			Message: "No file provided"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	doc, err := r.documents.Upload(req.Context(), appdocs.UploadCommand{
		User:     user,
		FileName: header.Filename,
		MimeType: mimeType,
		Category: req.FormValue("category"),
		Data:     data,
		Request:  requestInfo(req),
	})
	if err != nil {
		return err
	}

	signature, expires := r.signer.Sign(string(doc.ID), doc.UploadedAt)
	return writeJSON(w, http.StatusOK, struct {
		*docsdomain.Document
		DownloadURL string `json:"downloadUrl"`
	}{
		Document: doc,
		DownloadURL: fmt.Sprintf("/api/files/%s?expires=%d&signature=%s",
			doc.ID, expires, signature),
	})
}

// POST /api/analysis
func (r *Router) handleRunAnalysis(w http.ResponseWriter, req *http.Request) error {
	user, err := requireUser(req)
	if err != nil {
		return err
	}

	var body struct {
		DocumentID   string `json:"documentId"`
		DocumentName string `json:"documentName"`
		Category     string `json:"category"`
		Text         string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return &appanalysis.ValidationError{Msg: "invalid JSON body"}
	}

	result, err := r.analysis.Run(req.Context(), appanalysis.RunCommand{
		DocumentID:   body.DocumentID,
		DocumentName: body.DocumentName,
		Category:     body.Category,
		Text:         body.Text,
		User:         user,
		Request:      requestInfo(req),
	})
	if err != nil {
		if isServerFault(err) {
			middleware.IncrementAnalysesFailed()
			return &apiError{Status: http.StatusInternalServerError, Code: "analysis_failed",
				Message: "Analysis could not be completed"}
		}
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

func isServerFault(err error) bool {
	var validationErr *appanalysis.ValidationError
	var entitlementErr *appanalysis.EntitlementError
	return !errors.As(err, &validationErr) &&
		!errors.As(err, &entitlementErr) &&
		!errors.Is(err, docsdomain.ErrNotFound) &&
		!errors.Is(err, analysisdomain.ErrNotFound)
}

// GET /api/analysis/{id}
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	user, err := requireUser(req)
	if err != nil {
		return err
	}

	id := chi.URLParam(req, "id")
	result, err := r.analysis.Get(req.Context(), analysisdomain.AnalysisID(id), user.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

// GET /api/reports/{id}?format=csv|pdf
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	user, err := requireUser(req)
	if err != nil {
		return err
	}

	format := req.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}
	if format != "csv" && format != "pdf" {
		return &appanalysis.ValidationError{Msg: "format must be csv or pdf"}
	}

	id := chi.URLParam(req, "id")
	report, err := r.reports.Generate(req.Context(), user, analysisdomain.AnalysisID(id), format, requestInfo(req))
	if err != nil {
		if isServerFault(err) && !isExportDenied(err) {
			return &apiError{Status: http.StatusInternalServerError, Code: "report_failed",
				Message: "Report could not be generated"}
		}
		return err
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(report.Body)
	return err
}

// GET /api/metrics
func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) error {
	user, err := requireUser(req)
	if err != nil {
		return err
	}

	dashboard, err := r.metrics.Dashboard(req.Context(), user)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Code: "metrics_failed",
			Message: "Metrics could not be loaded"}
	}
	return writeJSON(w, http.StatusOK, dashboard)
}

// GET /api/files/{id}?expires=&signature=
// Signed URLs stand in for API-key auth here so reports and previews can be
// fetched by a browser.
func (r *Router) handleFile(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	signature := req.URL.Query().Get("signature")
	expires, err := strconv.ParseInt(req.URL.Query().Get("expires"), 10, 64)
	if err != nil || signature == "" {
		return &apiError{Status: http.StatusForbidden, Code: "invalid_signature",
			Message: "Missing or malformed signature"}
	}
	if !r.signer.Validate(id, signature, expires, r.clock.Now()) {
		return &apiError{Status: http.StatusForbidden, Code: "invalid_signature",
			Message: "Signature is invalid or expired"}
	}

	doc, err := r.docRepo.Get(req.Context(), docsdomain.DocumentID(id))
	if err != nil {
		return err
	}

	obj, err := r.store.Fetch(req.Context(), doc.StorageKey)
	if err != nil {
		return docsdomain.ErrNotFound
	}
	defer obj.Close()

	r.audit.Record(audit.Entry{
		DocumentID: string(doc.ID),
		Action:     audit.ActionFileServed,
		Details:    map[string]any{"filename": doc.OriginalName},
		IPAddress:  security.ClientIP(req),
		UserAgent:  req.UserAgent(),
	})

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.OriginalName))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, err = io.Copy(w, obj)
	return err
}

func isExportDenied(err error) bool {
	var exportErr *appreports.ExportError
	return errors.As(err, &exportErr)
}
