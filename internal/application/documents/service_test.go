package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	"github.com/verifai/verifai/internal/domain/analysis"
	"github.com/verifai/verifai/internal/domain/audit"
	"github.com/verifai/verifai/internal/domain/billing"
	domain "github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fakeRepo struct {
	saved []*domain.Document
}

func (f *fakeRepo) Save(_ context.Context, d *domain.Document) error {
	f.saved = append(f.saved, d)
	return nil
}

func (f *fakeRepo) Get(context.Context, domain.DocumentID) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) FindAccessible(context.Context, domain.DocumentID, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

type fakeStore struct {
	keys []string
	err  error
}

func (f *fakeStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeStore) Fetch(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

type fakeSubscriptions struct{}

func (fakeSubscriptions) GetByOrg(context.Context, string) (*billing.Subscription, error) {
	return nil, nil
}

type fakeAnalyses struct {
	analysis.Repository
}

func (fakeAnalyses) CountForOrgSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}

type fakeAuditRepo struct {
	entries []audit.Entry
}

func (f *fakeAuditRepo) Save(_ context.Context, e *audit.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeScanner struct {
	threats []string
}

func (f fakeScanner) Scan([]byte, string) ScanResult {
	return ScanResult{Clean: len(f.threats) == 0, Threats: f.threats}
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract([]byte) (string, error) { return f.text, f.err }

func testUser() *users.User {
	return &users.User{
		ID: "user-1",
		Memberships: []users.OrgMembership{
			{Role: "OWNER", Org: users.Org{ID: "org-1"}},
		},
	}
}

type fixture struct {
	svc    *Service
	repo   *fakeRepo
	store  *fakeStore
	audits *fakeAuditRepo
}

func newFixture() *fixture {
	clock := fixedClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	repo := &fakeRepo{}
	store := &fakeStore{}
	audits := &fakeAuditRepo{}

	svc := &Service{
		Repo:  repo,
		Store: store,
		Entitlements: &appbilling.Service{
			Subscriptions: fakeSubscriptions{},
			Analyses:      fakeAnalyses{},
			Clock:         clock,
		},
		Scanner:   fakeScanner{},
		Extractor: fakeExtractor{text: "extracted"},
		Audit:     &appaudit.Service{Repo: audits, Clock: clock, Log: zap.NewNop()},
		Clock:     clock,
		Log:       zap.NewNop(),
	}
	return &fixture{svc: svc, repo: repo, store: store, audits: audits}
}

func upload(f *fixture, mutate func(*UploadCommand)) (*domain.Document, error) {
	cmd := UploadCommand{
		User:     testUser(),
		FileName: "contract.pdf",
		MimeType: "application/pdf",
		Category: "nda",
		Data:     []byte("%PDF-1.4 content"),
	}
	if mutate != nil {
		mutate(&cmd)
	}
	return f.svc.Upload(context.Background(), cmd)
}

func TestUpload(t *testing.T) {
	t.Run("happy path stores object, row and audit entry", func(t *testing.T) {
		f := newFixture()

		doc, err := upload(f, nil)
		require.NoError(t, err)
		assert.Equal(t, "org-1", doc.OrgID)
		assert.Equal(t, "contract.pdf", doc.OriginalName)
		assert.Equal(t, "nda", doc.Category)
		assert.Equal(t, domain.StatusUploaded, doc.Status)
		assert.Equal(t, "extracted", doc.Text)

		require.Len(t, f.store.keys, 1)
		assert.True(t, strings.HasPrefix(f.store.keys[0], "org-1/"))
		require.Len(t, f.repo.saved, 1)
		require.Len(t, f.audits.entries, 1)
		assert.Equal(t, audit.ActionDocumentUploaded, f.audits.entries[0].Action)
	})

	t.Run("user without organization is rejected", func(t *testing.T) {
		f := newFixture()
		_, err := upload(f, func(cmd *UploadCommand) {
			cmd.User = &users.User{ID: "user-1"}
		})
		assert.ErrorIs(t, err, ErrNoOrganization)
	})

	t.Run("oversized upload for the plan is rejected", func(t *testing.T) {
		f := newFixture()
		_, err := upload(f, func(cmd *UploadCommand) {
			cmd.Data = make([]byte, 11<<20)
		})
		var sizeErr *SizeError
		require.ErrorAs(t, err, &sizeErr)
		assert.Contains(t, sizeErr.Reason, "exceeds limit of 10MB")
		assert.Empty(t, f.store.keys)
	})

	t.Run("disallowed mime type is rejected", func(t *testing.T) {
		f := newFixture()
		_, err := upload(f, func(cmd *UploadCommand) {
			cmd.MimeType = "application/zip"
		})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("flagged upload is rejected", func(t *testing.T) {
		f := newFixture()
		f.svc.Scanner = fakeScanner{threats: []string{"trojan"}}

		_, err := upload(f, nil)
		var virusErr *VirusError
		require.ErrorAs(t, err, &virusErr)
		assert.Equal(t, []string{"trojan"}, virusErr.Threats)
		assert.Empty(t, f.store.keys)
		assert.Empty(t, f.repo.saved)
	})

	t.Run("unreadable pdf still uploads without text", func(t *testing.T) {
		f := newFixture()
		f.svc.Extractor = fakeExtractor{err: errors.New("corrupt xref")}

		doc, err := upload(f, nil)
		require.NoError(t, err)
		assert.Empty(t, doc.Text)
	})

	t.Run("plain text keeps content as text", func(t *testing.T) {
		f := newFixture()
		doc, err := upload(f, func(cmd *UploadCommand) {
			cmd.FileName = "notes.txt"
			cmd.MimeType = "text/plain"
			cmd.Data = []byte("plain body")
		})
		require.NoError(t, err)
		assert.Equal(t, "plain body", doc.Text)
	})

	t.Run("missing category defaults", func(t *testing.T) {
		f := newFixture()
		doc, err := upload(f, func(cmd *UploadCommand) {
			cmd.Category = ""
		})
		require.NoError(t, err)
		assert.Equal(t, "unspecified", doc.Category)
	})

	t.Run("filename is sanitized", func(t *testing.T) {
		f := newFixture()
		doc, err := upload(f, func(cmd *UploadCommand) {
			cmd.FileName = "../..//etc passwd.pdf"
		})
		require.NoError(t, err)
		assert.NotContains(t, doc.OriginalName, "/")
		assert.NotContains(t, doc.OriginalName, "..")
	})

	t.Run("store failure aborts before the row insert", func(t *testing.T) {
		f := newFixture()
		f.store.err = errors.New("bucket unavailable")

		_, err := upload(f, nil)
		require.Error(t, err)
		assert.Empty(t, f.repo.saved)
		assert.Empty(t, f.audits.entries)
	})
}
