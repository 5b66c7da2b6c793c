package documents

import "time"

// DocumentID identifier type
type DocumentID string

// Status enum
type Status string

const (
	StatusUploaded Status = "UPLOADED"
)

// Document is an uploaded file owned by an organization. Immutable after
// upload except for status.
type Document struct {
	ID           DocumentID `json:"id"`
	OrgID        string     `json:"orgId"`
	UploaderID   string     `json:"uploaderId"`
	OriginalName string     `json:"filename"`
	StorageKey   string     `json:"-"`
	Size         int64      `json:"size"`
	MimeType     string     `json:"type"`
	Category     string     `json:"category"`
	Status       Status     `json:"status"`
	// Text extracted at upload time, fed to analysis when the request body
	// carries none. Not serialized in API responses.
	Text       string    `json:"-"`
	UploadedAt time.Time `json:"uploadedAt"`
}
