package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verifai/verifai/internal/application"
	appaudit "github.com/verifai/verifai/internal/application/audit"
	appbilling "github.com/verifai/verifai/internal/application/billing"
	"github.com/verifai/verifai/internal/domain/audit"
	domain "github.com/verifai/verifai/internal/domain/documents"
	"github.com/verifai/verifai/internal/domain/users"
	"github.com/verifai/verifai/internal/security"
)

// ErrUnsupportedType rejects uploads outside the MIME allow-list.
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrNoOrganization rejects uploads from users without an organization.
var ErrNoOrganization = errors.New("no organization found")

// SizeError carries the entitlement denial reason for oversized uploads.
type SizeError struct {
	Reason string
}

func (e *SizeError) Error() string { return e.Reason }

// VirusError rejects uploads flagged by the scanner.
type VirusError struct {
	Threats []string
}

func (e *VirusError) Error() string {
	return fmt.Sprintf("virus scan flagged upload: %s", strings.Join(e.Threats, ", "))
}

// ScanResult mirrors what the scanner reports per file.
type ScanResult struct {
	Clean   bool
	Threats []string
}

// Scanner port. A heuristic stub in this deployment; swap for a real
// scanning service in production.
type Scanner interface {
	Scan(data []byte, filename string) ScanResult
}

// TextExtractor pulls plain text out of a PDF for later analysis.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// UploadCommand is one upload request.
type UploadCommand struct {
	User     *users.User
	FileName string
	MimeType string
	Category string
	Data     []byte
	Request  audit.RequestInfo
}

// Service handles the upload pipeline: entitlement size check, MIME
// allow-list, virus scan, text extraction, object-store write, row insert
// and audit entry.
type Service struct {
	Repo         domain.Repository
	Store        domain.ObjectStore
	Entitlements *appbilling.Service
	Scanner      Scanner
	Extractor    TextExtractor
	Audit        *appaudit.Service
	Clock        application.Clock
	Log          *zap.Logger
}

// Upload validates and persists one document.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (*domain.Document, error) {
	org := cmd.User.DefaultOrg()
	if org == nil {
		return nil, ErrNoOrganization
	}

	if d := s.Entitlements.IsDocumentSizeAllowed(ctx, cmd.User, int64(len(cmd.Data))); !d.Allowed {
		return nil, &SizeError{Reason: d.Reason}
	}
	if !allowedMimeTypes[cmd.MimeType] {
		return nil, ErrUnsupportedType
	}
	if res := s.Scanner.Scan(cmd.Data, cmd.FileName); !res.Clean {
		return nil, &VirusError{Threats: res.Threats}
	}

	name := security.SanitizeFilename(cmd.FileName)
	id := uuid.New().String()
	key := fmt.Sprintf("%s/%s/%s", org.ID, id, name)

	// Text extraction is best effort; an unreadable PDF still uploads and
	// the analysis later degrades to the fallback result.
	text := ""
	switch cmd.MimeType {
	case "application/pdf":
		extracted, err := s.Extractor.Extract(cmd.Data)
		if err != nil {
			s.Log.Warn("pdf text extraction failed",
				zap.String("document_id", id),
				zap.Error(err),
			)
		} else {
			text = extracted
		}
	case "text/plain":
		text = string(cmd.Data)
	}

	if err := s.Store.Put(ctx, key, bytes.NewReader(cmd.Data), int64(len(cmd.Data)), cmd.MimeType); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	category := cmd.Category
	if category == "" {
		category = "unspecified"
	}
	doc := &domain.Document{
		ID:           domain.DocumentID(id),
		OrgID:        org.ID,
		UploaderID:   cmd.User.ID,
		OriginalName: name,
		StorageKey:   key,
		Size:         int64(len(cmd.Data)),
		MimeType:     cmd.MimeType,
		Category:     category,
		Status:       domain.StatusUploaded,
		Text:         text,
		UploadedAt:   s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	s.Audit.Record(audit.Entry{
		UserID:     cmd.User.ID,
		DocumentID: id,
		Action:     audit.ActionDocumentUploaded,
		Details:    map[string]any{"filename": name, "size": doc.Size, "mimeType": doc.MimeType, "orgId": org.ID},
		IPAddress:  cmd.Request.IPAddress,
		UserAgent:  cmd.Request.UserAgent,
	})

	return doc, nil
}
