package httpserver

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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	appanalysis "github.com/verifai/verifai/internal/application/analysis"
	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	appdocs "github.com/verifai/verifai/internal/application/documents"
	appmetrics "github.com/verifai/verifai/internal/application/metrics"
	appreports "github.com/verifai/verifai/internal/application/reports"
	"github.com/verifai/verifai/internal/domain/ai"
	analysisdomain "github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/audit"
	"github.com/verifai/verifai/internal/domain/billing"
	docsdomain "github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
	"github.com/verifai/verifai/internal/infra/ratelimit"
	"github.com/verifai/verifai/internal/middleware"
	"github.com/verifai/verifai/internal/security"
)

type memDocRepo struct {
	mu   sync.Mutex
	docs map[string]*docsdomain.Document
}

func (m *memDocRepo) Save(_ context.Context, d *docsdomain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[string(d.ID)] = d
	return nil
}

func (m *memDocRepo) Get(_ context.Context, id docsdomain.DocumentID) (*docsdomain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[string(id)]; ok {
		return d, nil
	}
	return nil, docsdomain.ErrNotFound
}

func (m *memDocRepo) FindAccessible(_ context.Context, id docsdomain.DocumentID, userID string) (*docsdomain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[string(id)]
	if !ok {
		return nil, docsdomain.ErrNotFound
	}
	if (userID == "user-1" && d.OrgID != "org-1") || (userID == "user-2" && d.OrgID != "org-2") {
		return nil, docsdomain.ErrNotFound
	}
	return d, nil
}

type memAnalysisRepo struct {
	mu       sync.Mutex
	rows     map[analysisdomain.AnalysisID]*analysisdomain.Analysis
	findings map[analysisdomain.AnalysisID][]analysisdomain.Finding
}

func newMemAnalysisRepo() *memAnalysisRepo {
	return &memAnalysisRepo{
		rows:     make(map[analysisdomain.AnalysisID]*analysisdomain.Analysis),
		findings: make(map[analysisdomain.AnalysisID][]analysisdomain.Finding),
	}
}

func (m *memAnalysisRepo) Create(_ context.Context, a *analysisdomain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memAnalysisRepo) Update(_ context.Context, a *analysisdomain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[a.ID]; ok && existing.Status != analysisdomain.StatusCompleted {
		cp := *a
		m.rows[a.ID] = &cp
	}
	return nil
}

func (m *memAnalysisRepo) Get(_ context.Context, id analysisdomain.AnalysisID) (*analysisdomain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, analysisdomain.ErrNotFound
}

func (m *memAnalysisRepo) GetAccessible(ctx context.Context, id analysisdomain.AnalysisID, _ string) (*analysisdomain.Analysis, error) {
	return m.Get(ctx, id)
}

func (m *memAnalysisRepo) LatestCompletedByDocument(_ context.Context, documentID string) (*analysisdomain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.DocumentID == documentID && a.Status == analysisdomain.StatusCompleted {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAnalysisRepo) CountForOrgSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

func (m *memAnalysisRepo) SaveFindings(_ context.Context, id analysisdomain.AnalysisID, findings []analysisdomain.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[id] = findings
	return nil
}

func (m *memAnalysisRepo) FindingsByAnalysis(_ context.Context, id analysisdomain.AnalysisID) ([]analysisdomain.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findings[id], nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memUserRepo struct{}

func (memUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	switch id {
	case "user-1":
		return &users.User{ID: "user-1", Email: "a@acme.test", Memberships: []users.OrgMembership{
			{Role: "OWNER", Org: users.Org{ID: "org-1"}},
		}}, nil
	case "user-2":
		return &users.User{ID: "user-2", Email: "b@other.test", Memberships: []users.OrgMembership{
			{Role: "OWNER", Org: users.Org{ID: "org-2"}},
		}}, nil
	}
	return nil, users.ErrNotFound
}

type memSubs struct{}

func (memSubs) GetByOrg(context.Context, string) (*billing.Subscription, error) {
	return &billing.Subscription{Plan: billing.PlanProfessional, Status: billing.SubscriptionActive}, nil
}

type memAuditRepo struct{}

func (memAuditRepo) Save(context.Context, *audit.Entry) error { return nil }

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, ai.Request) ai.Result {
	return ai.Result{
		RiskScore: 40,
		Summary:   "Geringes Risiko",
		Findings: []analysisdomain.Finding{
			{Type: analysisdomain.FindingRisk, Severity: analysisdomain.SeverityLow, Title: "t", Description: "d"},
		},
	}
}

type memMetricsRepo struct {
	err error
}

func (m *memMetricsRepo) Aggregates(context.Context, string, time.Time) (appmetrics.Aggregates, error) {
	if m.err != nil {
		return appmetrics.Aggregates{}, m.err
	}
	return appmetrics.Aggregates{TotalDocuments: 4, TotalAnalyses: 2, CompletedAnalyses: 2, AvgRiskScore: 45.0}, nil
}

type testEnv struct {
	handler http.Handler
	docs    *memDocRepo
	store   *memStore
	signer  *security.Signer
	metrics *memMetricsRepo
}

func newTestEnv(t *testing.T, defaultMax int) *testEnv {
	t.Helper()
	clock := application.SystemClock{}
	log := zap.NewNop()

	docs := &memDocRepo{docs: map[string]*docsdomain.Document{
		"doc-1": {ID: "doc-1", OrgID: "org-1", UploaderID: "user-1", OriginalName: "contract.pdf",
			StorageKey: "org-1/doc-1/contract.pdf", Size: 4, MimeType: "application/pdf", Text: "text"},
	}}
	analyses := newMemAnalysisRepo()
	store := &memStore{objects: map[string][]byte{
		"org-1/doc-1/contract.pdf": []byte("%PDF"),
	}}
	auditSvc := &appaudit.Service{Repo: memAuditRepo{}, Clock: clock, Log: log}
	billingSvc := &appbilling.Service{Subscriptions: memSubs{}, Analyses: analyses, Clock: clock}
	signer := security.NewSigner("test-secret", time.Hour)
	metricsRepo := &memMetricsRepo{}

	handler := NewRouter(Deps{
		Documents: &appdocs.Service{
			Repo:         docs,
			Store:        store,
			Entitlements: billingSvc,
			Scanner:      passScanner{},
			Extractor:    stubExtractor{},
			Audit:        auditSvc,
			Clock:        clock,
			Log:          log,
		},
		Analysis: &appanalysis.Service{
			Documents:    docs,
			Analyses:     analyses,
			Entitlements: billingSvc,
			Analyzer:     stubAnalyzer{},
			Audit:        auditSvc,
			Clock:        clock,
			Log:          log,
		},
		Reports: &appreports.Service{
			Analyses:     analyses,
			Documents:    docs,
			Entitlements: billingSvc,
			Audit:        auditSvc,
			Log:          log,
		},
		Metrics: &appmetrics.Service{Repo: metricsRepo, Clock: clock},
		Audit:   auditSvc,
		Clock:   clock,
		DocRepo: docs,
		Store:   store,
		Signer:  signer,
		Limiter: ratelimit.NewLimiter(ratelimit.NewMemoryStore(), log),
		Limits: Limits{
			Window:      time.Minute,
			Default:     defaultMax,
			Upload:      defaultMax,
			RunAnalysis: defaultMax,
		},
		APIKeys: map[string]string{"test-key": "user-1", "other-key": "user-2"},
		Users:   memUserRepo{},
		Health:  map[string]middleware.HealthChecker{},
		Log:     log,
	})
	return &testEnv{handler: handler, docs: docs, store: store, signer: signer, metrics: metricsRepo}
}

type passScanner struct{}

func (passScanner) Scan([]byte, string) appdocs.ScanResult { return appdocs.ScanResult{Clean: true} }

type stubExtractor struct{}

func (stubExtractor) Extract([]byte) (string, error) { return "extracted", nil }

func (e *testEnv) do(t *testing.T, method, path, apiKey string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var env map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, 100)

	t.Run("missing key is unauthorized", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/metrics", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", errEnvelope(t, rec)["error"])
	})

	t.Run("wrong key is unauthorized", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/metrics", "bogus", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key passes", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/metrics", "test-key", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("liveness needs no key", func(t *testing.T) {
		rec := env.do(t, "GET", "/live", "", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRunAnalysisEndpoint(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", errEnvelope(t, rec)["error"])
	})

	t.Run("missing document id", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env2 := errEnvelope(t, rec)
		assert.Equal(t, "validation_failed", env2["error"])
		assert.Equal(t, "documentId is required", env2["message"])
	})

	t.Run("unknown document", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{"documentId":"missing"}`), "application/json")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "document_not_found", errEnvelope(t, rec)["error"])
	})

	t.Run("foreign document looks identical to missing", func(t *testing.T) {
		env := newTestEnv(t, 100)
		recMissing := env.do(t, "POST", "/api/analysis", "other-key", strings.NewReader(`{"documentId":"missing"}`), "application/json")
		recForeign := env.do(t, "POST", "/api/analysis", "other-key", strings.NewReader(`{"documentId":"doc-1"}`), "application/json")

		assert.Equal(t, http.StatusNotFound, recMissing.Code)
		assert.Equal(t, http.StatusNotFound, recForeign.Code)
		assert.Equal(t, errEnvelope(t, recMissing), errEnvelope(t, recForeign))
	})

	t.Run("happy path returns the result", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{"documentId":"doc-1"}`), "application/json")
		require.Equal(t, http.StatusOK, rec.Code)

		var res map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "COMPLETED", res["status"])
		assert.Equal(t, float64(40), res["riskScore"])
		assert.Equal(t, "Geringes Risiko", res["summary"])
	})

	t.Run("repeat run returns the same analysis", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec1 := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{"documentId":"doc-1"}`), "application/json")
		rec2 := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{"documentId":"doc-1"}`), "application/json")
		require.Equal(t, http.StatusOK, rec1.Code)
		require.Equal(t, http.StatusOK, rec2.Code)

		var r1, r2 map[string]any
		require.NoError(t, json.Unmarshal(rec1.Body.Bytes(), &r1))
		require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &r2))
		assert.Equal(t, r1["id"], r2["id"])
	})
}

func TestRateLimitHeaders(t *testing.T) {
	env := newTestEnv(t, 2)

	rec := env.do(t, "GET", "/api/metrics", "test-key", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	env.do(t, "GET", "/api/metrics", "test-key", nil, "")
	rec3 := env.do(t, "GET", "/api/metrics", "test-key", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec3.Code)
	assert.Equal(t, "0", rec3.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec3.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", errEnvelope(t, rec3)["error"])
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	t.Run("non multipart body", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "POST", "/api/documents", "test-key", strings.NewReader("{}"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "expected_multipart_form_data", errEnvelope(t, rec)["error"])
	})

	t.Run("multipart without file field", func(t *testing.T) {
		env := newTestEnv(t, 100)
		body, ct := multipartBody(t, "", "", "", nil)
		rec := env.do(t, "POST", "/api/documents", "test-key", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "file_missing", errEnvelope(t, rec)["error"])
	})

	t.Run("unsupported type", func(t *testing.T) {
		env := newTestEnv(t, 100)
		body, ct := multipartBody(t, "file", "archive.zip", "application/zip", []byte("PK"))
		rec := env.do(t, "POST", "/api/documents", "test-key", body, ct)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "unsupported_type", errEnvelope(t, rec)["error"])
	})

	t.Run("happy path returns the document fields and signed url", func(t *testing.T) {
		env := newTestEnv(t, 100)
		body, ct := multipartBody(t, "file", "nda.pdf", "application/pdf", []byte("%PDF-1.4"))
		rec := env.do(t, "POST", "/api/documents", "test-key", body, ct)
		require.Equal(t, http.StatusOK, rec.Code)

		var res struct {
			ID           string `json:"id"`
			OriginalName string `json:"filename"`
			Size         int64  `json:"size"`
			MimeType     string `json:"type"`
			Category     string `json:"category"`
			Status       string `json:"status"`
			UploadedAt   string `json:"uploadedAt"`
			DownloadURL  string `json:"downloadUrl"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "nda.pdf", res.OriginalName)
		assert.Equal(t, int64(8), res.Size)
		assert.Equal(t, "application/pdf", res.MimeType)
		assert.Equal(t, "UPLOADED", res.Status)
		assert.NotEmpty(t, res.UploadedAt)
		assert.Contains(t, res.DownloadURL, "/api/files/"+res.ID)
		assert.Contains(t, res.DownloadURL, "signature=")

		t.Run("signed url serves the file without a key", func(t *testing.T) {
			rec2 := env.do(t, "GET", res.DownloadURL, "", nil, "")
			require.Equal(t, http.StatusOK, rec2.Code)
			assert.Equal(t, "%PDF-1.4", rec2.Body.String())
			assert.Equal(t, "application/pdf", rec2.Header().Get("Content-Type"))
		})

		t.Run("tampered signature is rejected", func(t *testing.T) {
			bad := strings.Replace(res.DownloadURL, "signature=", "signature=ff", 1)
			rec2 := env.do(t, "GET", bad, "", nil, "")
			assert.Equal(t, http.StatusForbidden, rec2.Code)
			assert.Equal(t, "invalid_signature", errEnvelope(t, rec2)["error"])
		})
	})
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)

	run := env.do(t, "POST", "/api/analysis", "test-key", strings.NewReader(`{"documentId":"doc-1"}`), "application/json")
	require.Equal(t, http.StatusOK, run.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(run.Body.Bytes(), &res))
	id := res["id"].(string)

	t.Run("csv download", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/reports/"+id+"?format=csv", "test-key", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Body.String(), `"Document","Analysis Date"`)
	})

	t.Run("default format is html for pdf", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/reports/"+id, "test-key", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Contract Analysis Report")
	})

	t.Run("invalid format", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/reports/"+id+"?format=xml", "test-key", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_failed", errEnvelope(t, rec)["error"])
	})

	t.Run("unknown analysis", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/reports/missing?format=csv", "test-key", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "analysis_not_found", errEnvelope(t, rec)["error"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("dashboard aggregates", func(t *testing.T) {
		env := newTestEnv(t, 100)
		rec := env.do(t, "GET", "/api/metrics", "test-key", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var dash map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
		assert.Equal(t, float64(4), dash["totalDocuments"])
		assert.Equal(t, float64(2), dash["completedAnalyses"])
	})

	t.Run("repository failure", func(t *testing.T) {
		env := newTestEnv(t, 100)
		env.metrics.err = errors.New("connection reset")

		rec := env.do(t, "GET", "/api/metrics", "test-key", nil, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "metrics_failed", errEnvelope(t, rec)["error"])
	})
}

func TestRuntimeMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.do(t, "GET", "/metrics/runtime", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/metrics/runtime", "test-key", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap, "requests_total")
	assert.Contains(t, snap, "goroutines")
}
