package document

import "time"

// Status is the document's processing lifecycle state. A document is
// Processing exactly while one active ingestion process references it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known document status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is the persistent document model. CreatedBy and ContentRef are
// immutable after creation; Status and ExtractedText are written only through
// the field-scoped repository operations.
type Document struct {
	ID            string                 `bson:"_id,omitempty" json:"id"`
	Title         string                 `bson:"title" json:"title"`
	Description   string                 `bson:"description,omitempty" json:"description,omitempty"`
	FileName      string                 `bson:"fileName" json:"fileName"`
	ContentRef    string                 `bson:"contentRef" json:"contentRef"`
	MimeType      string                 `bson:"mimeType" json:"mimeType"`
	Size          int64                  `bson:"size" json:"size"`
	Status        Status                 `bson:"status" json:"status"`
	ExtractedText string                 `bson:"extractedText,omitempty" json:"extractedText,omitempty"`
	Metadata      map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedBy     string                 `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// OwnerID satisfies the access-control resource contract.
func (d *Document) OwnerID() string { return d.CreatedBy }

// Patch is a field-level partial update. Only non-nil fields are applied;
// identity, ownership and lifecycle fields are deliberately not patchable.
type Patch struct {
	Title       *string                `json:"title,omitempty"`
	Description *string                `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Query carries list filters. CreatedBy is honored only for admins; other
// actors are always scoped to their own documents.
type Query struct {
	Search    string
	Status    Status
	CreatedBy string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}
